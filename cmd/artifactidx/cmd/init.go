package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/artifactidx/configs"
	"github.com/Aman-CERP/artifactidx/internal/config"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/ui"
)

type initOptions struct {
	id         string
	repository string
	force      bool
}

func newInitCmd() *cobra.Command {
	opts := initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project configuration",
		Long: `Write .artifactidx.yaml in the current directory with one context over a
local repository and a merged "all" context.

An existing file is preserved unless --force is given.

Examples:
  artifactidx init
  artifactidx init --id central --repository /srv/maven/central`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "local", "Context id")
	cmd.Flags().StringVar(&opts.repository, "repository", "", "Repository root (default ~/.m2/repository)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, opts initOptions) error {
	p := ui.NewPrinter(newUIConfig(cmd))

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}
	path := filepath.Join(cwd, config.ProjectFileName)
	if _, err := os.Stat(path); err == nil && !opts.force {
		p.Dim(fmt.Sprintf("Existing %s preserved (use --force to overwrite)", config.ProjectFileName))
		return nil
	}

	repo := opts.repository
	if repo == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ierrors.New(ierrors.ErrCodeInvalidInput, "cannot locate the home directory", err).
				WithSuggestion("Pass --repository explicitly")
		}
		repo = filepath.Join(home, ".m2", "repository")
	}
	if repo, err = filepath.Abs(repo); err != nil {
		return fmt.Errorf("failed to resolve repository: %w", err)
	}

	content, err := configs.RenderProject(configs.ProjectValues{ContextID: opts.id, Repository: repo})
	if err != nil {
		return ierrors.New(ierrors.ErrCodeInvalidInput, err.Error(), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	// Reject what the next command would fail to load.
	if _, err := config.Load(cwd, path); err != nil {
		_ = os.Remove(path)
		return ierrors.ConfigError("generated configuration is invalid", err).
			WithSuggestion("Choose a different --id")
	}

	slog.Info("project_config_created", slog.String("path", path), slog.String("context_id", opts.id))
	p.Success(fmt.Sprintf("Created %s with context %q over %s", config.ProjectFileName, opts.id, repo))
	if _, err := os.Stat(repo); err != nil {
		p.Warn(fmt.Sprintf("Repository %s does not exist yet", repo))
	}
	p.Dim(fmt.Sprintf("Next: artifactidx rescan %s", opts.id))
	return nil
}
