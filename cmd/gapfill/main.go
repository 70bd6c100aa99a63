package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gapfill/internal/config"
	"gapfill/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Set up by the root command before any subcommand runs.
	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gapfill",
	Short: "Suggest missing reactions for metabolic reconstructions from subsystem coverage",
	Long: `gapfill proposes candidate reactions for gap-filling a genome-scale
metabolic reconstruction.

The reactions currently scheduled to run are translated into functional roles.
Every curated subsystem those roles touch is scored by the fraction of its roles
already present; subsystems at or above the threshold contribute their missing
roles, which are expanded back into reactions from the known universe.

Reference data is read from the biochemistry directory or, after
'gapfill import', from the SQLite reference store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspaceDir()
		path := configPath
		if path == "" {
			path = filepath.Join(ws, ".gapfill", "config.yaml")
		}
		if err := logging.Initialize(ws, path); err != nil {
			logger.Debug("Category logging unavailable", zap.Error(err))
		}

		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration %s: %w", path, err)
		}
		logging.Boot("gapfill %s: config=%s reference=%s", cfg.Version, path, cfg.Reference.Root)
		logging.BootDebug("command=%s verbose=%v timeout=%v workspace=%s", cmd.Name(), verbose, timeout, ws)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.gapfill/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(subsystemsCmd)
	rootCmd.AddCommand(reactionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func workspaceDir() string {
	if workspace != "" {
		return workspace
	}
	cwd, _ := os.Getwd()
	return cwd
}

// inWorkspace resolves relative paths against the workspace.
func inWorkspace(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspaceDir(), p)
}

// commandContext returns a context bounded by --timeout (when d > 0) and
// cancelled on SIGINT/SIGTERM.
func commandContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	return tctx, func() {
		cancel()
		stop()
	}
}

// activeConfig returns the loaded config, falling back to defaults when a
// command function is invoked without the root command (tests).
func activeConfig() *config.Config {
	if cfg == nil {
		cfg = config.FromEnv()
	}
	return cfg
}

func activeLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}
