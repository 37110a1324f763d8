package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/mcp"
	"github.com/Aman-CERP/artifactidx/internal/ui"
)

func newContextsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "List configured contexts",
		Long: `List every configured context with its repository, searchable flag,
document count and last update time. Merged contexts list their members.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			contexts := s.idx.Contexts()
			descs := make([]index.Description, 0, len(contexts))
			for _, c := range contexts {
				descs = append(descs, c.Describe())
			}

			p := ui.NewPrinter(newUIConfig(cmd))
			if jsonOutput {
				out := make([]mcp.ContextOutput, 0, len(descs))
				for _, d := range descs {
					out = append(out, mcp.ToContextOutput(d))
				}
				return p.JSON(out)
			}
			if len(descs) == 0 {
				p.Dim("No contexts configured. Add contexts to .artifactidx.yaml.")
				return nil
			}
			return p.Table(ui.ContextsTable(descs))
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
