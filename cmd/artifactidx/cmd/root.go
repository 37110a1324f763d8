// Package cmd provides the CLI commands for artifactidx.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/artifactidx/internal/config"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/journal"
	"github.com/Aman-CERP/artifactidx/internal/logging"
	"github.com/Aman-CERP/artifactidx/internal/nexus"
	"github.com/Aman-CERP/artifactidx/internal/profiling"
	"github.com/Aman-CERP/artifactidx/internal/ui"
	"github.com/Aman-CERP/artifactidx/pkg/searcher"
	"github.com/Aman-CERP/artifactidx/pkg/version"
)

// Global flags
var (
	configFile string
	debugMode  bool
	plainMode  bool
	noColor    bool

	profileCPU   string
	profileMem   string
	profileTrace string
)

// Per-invocation state set up by the persistent pre-run hook.
var (
	loadedConfig   *config.Config
	loggingCleanup func()
	profiler       *profiling.Profiler
)

// NewRootCmd creates the root command for the artifactidx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifactidx",
		Short: "Index and search Maven artifact repositories",
		Long: `artifactidx keeps full-text indexes over local Maven-2 layout repositories.

Each configured context indexes one repository. Contexts can be merged into
virtual contexts, rescanned atomically, searched by coordinates, class names
or free text, and kept in sync with their repository by a watcher.

Configuration is read from ~/.config/artifactidx/config.yaml and
./.artifactidx.yaml (or --config).`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupConfigAndLogging,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return finishCommand()
		},
	}

	cmd.SetVersionTemplate("artifactidx version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a configuration file (default ./.artifactidx.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging (also mirrored to stderr)")
	cmd.PersistentFlags().BoolVar(&plainMode, "plain", false, "Plain text output without styling or progress animation")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")
	_ = cmd.PersistentFlags().MarkHidden("profile-trace")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newContextsCmd())
	cmd.AddCommand(newRescanCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIdentifyCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failure in CLI form.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), ierrors.FormatForCLI(err))
	}
	return err
}

// setupConfigAndLogging loads the configuration and routes slog to the
// rotating log file under the data directory.
func setupConfigAndLogging(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}
	cfg, err := config.Load(cwd, configFile)
	if err != nil {
		return ierrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Check the YAML syntax and context ids in your configuration file")
	}
	loadedConfig = cfg

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  filepath.Join(cfg.LogDir(), logging.LogFileName),
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
		logCfg.Stderr = cmd.ErrOrStderr()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Version),
		slog.Int("contexts", len(cfg.Contexts)),
		slog.Int("merged", len(cfg.Merged)))

	opts := profiling.Options{CPUPath: profileCPU, HeapPath: profileMem, TracePath: profileTrace}
	if opts.Enabled() {
		p, err := profiling.Start(opts)
		if err != nil {
			return err
		}
		profiler = p
	}
	return nil
}

// finishCommand flushes profiles before the log file is closed.
func finishCommand() error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		slog.Debug("profiles_written",
			slog.String("cpu", profileCPU),
			slog.String("heap", profileMem),
			slog.String("trace", profileTrace),
			slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))
		profiler = nil
	}
	stopLogging()
	return err
}

func stopLogging() {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// session is an opened indexer with its journal.
type session struct {
	cfg     *config.Config
	idx     *nexus.Indexer
	journal *journal.Journal
}

// openSession opens the journal and registers every configured context.
func openSession() (*session, error) {
	cfg := loadedConfig
	if cfg == nil {
		cfg = config.NewConfig()
	}

	j, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open rescan journal: %w", err)
	}

	logger := slog.Default()
	idx := nexus.New(
		nexus.WithJournal(j),
		nexus.WithExclude(cfg.Scan.Exclude...),
		nexus.WithDigestCacheSize(cfg.Search.DigestCacheSize),
		nexus.WithSearcher(searcher.New(
			searcher.WithPageSize(cfg.Search.PageSize),
			searcher.WithParallelism(cfg.Search.Parallelism),
			searcher.WithLogger(logger),
		)),
		nexus.WithLogger(logger),
	)
	if err := idx.LoadContexts(cfg); err != nil {
		_ = idx.Close()
		_ = j.Close()
		return nil, err
	}
	return &session{cfg: cfg, idx: idx, journal: j}, nil
}

// Close closes the contexts and the journal.
func (s *session) Close() error {
	return errors.Join(s.idx.Close(), s.journal.Close())
}

// newUIConfig builds the output configuration from the global flags.
func newUIConfig(cmd *cobra.Command) ui.Config {
	return ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(plainMode), ui.WithNoColor(noColor))
}

// commandContext returns the command context, never nil.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
