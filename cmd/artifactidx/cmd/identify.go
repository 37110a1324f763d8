package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/mcp"
	"github.com/Aman-CERP/artifactidx/internal/ui"
)

// identifyOptions holds CLI flags for identify.
type identifyOptions struct {
	sha1       string
	field      string
	value      string
	contexts   []string
	jsonOutput bool
}

func newIdentifyCmd() *cobra.Command {
	var opts identifyOptions

	cmd := &cobra.Command{
		Use:   "identify [file]",
		Short: "Find the artifact a file or checksum belongs to",
		Long: `Identify an artifact by the SHA-1 of a local file, by a SHA-1 checksum,
or by an exact field value.

Examples:
  artifactidx identify ./lib/commons-io-2.15.1.jar
  artifactidx identify --sha1 8ccd2c54b7c0a52ad4a9a0ff1e11bcdcb1a78e3b
  artifactidx identify --field classNames --value org.slf4j.LoggerFactory`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runIdentify(commandContext(cmd), cmd, path, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sha1, "sha1", "", "SHA-1 checksum to look up")
	cmd.Flags().StringVar(&opts.field, "field", "", "Field to match exactly")
	cmd.Flags().StringVar(&opts.value, "value", "", "Value for --field")
	cmd.Flags().StringSliceVarP(&opts.contexts, "context", "c", nil, "Look only in these contexts (repeatable)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runIdentify(ctx context.Context, cmd *cobra.Command, path string, opts identifyOptions) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	contexts, err := lookupContexts(s.idx, opts.contexts)
	if err != nil {
		return err
	}

	var infos []*artifact.Info
	switch {
	case path != "":
		infos, err = s.idx.IdentifyFile(ctx, path, contexts...)
	case opts.sha1 != "":
		infos, err = s.idx.Identify(ctx, artifact.FieldSHA1, strings.ToLower(strings.TrimSpace(opts.sha1)), contexts...)
	case opts.field != "" && opts.value != "":
		infos, err = s.idx.Identify(ctx, opts.field, opts.value, contexts...)
	default:
		return ierrors.New(ierrors.ErrCodeInvalidInput, "nothing to identify", nil).
			WithSuggestion("Pass a file, --sha1, or --field with --value")
	}
	if err != nil {
		return err
	}

	p := ui.NewPrinter(newUIConfig(cmd))
	if opts.jsonOutput {
		return p.JSON(mcp.IdentifyOutput{Matches: toOutputs(infos)})
	}
	if len(infos) == 0 {
		p.Dim("No matching artifact")
		return nil
	}
	return p.Table(ui.HitsTable(infos))
}
