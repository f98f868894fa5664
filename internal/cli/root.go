package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fmueller/silkconv/internal/config"
	"github.com/fmueller/silkconv/internal/convert"
	"github.com/fmueller/silkconv/internal/logging"
	"github.com/fmueller/silkconv/internal/platform"
	"github.com/fmueller/silkconv/internal/version"
)

type appState struct {
	configPath   string
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	toolsDir     string
	workers      int
	stageTimeout time.Duration
	collision    string
	strict       bool
	metricsFile  string

	cfg    config.Config
	logger *zap.Logger
	getenv func(string) string

	// stages replaces the os/exec stage runner in tests.
	stages convert.StageRunner
}

func NewRootCmd() *cobra.Command {
	app := &appState{
		workers:   1,
		collision: convert.CollisionOverwrite.String(),
		cfg:       config.Default(),
		getenv:    os.Getenv,
	}

	cmd := &cobra.Command{
		Use:           "silkconv",
		Short:         "Convert Silk voice messages to and from common audio formats",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.loadConfig(cmd); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, Level: app.cfg.Logging.Level})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindConfigFlag(cmd, app)
	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindToolFlags(cmd, app)
	bindBatchFlags(cmd, app)

	cmd.AddCommand(newDecodeCmd(app))
	cmd.AddCommand(newEncodeCmd(app))
	cmd.AddCommand(newToolsCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindConfigFlag(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.configPath, "config", app.configPath, "Config file (default: per-user silkconv/config.yaml)")
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindToolFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.toolsDir, "tools-dir", app.toolsDir, "Directory holding silk_v3_decoder, silk_v3_encoder and ffmpeg")
}

func bindBatchFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().IntVar(&app.workers, "workers", app.workers, "Files converted in parallel")
	cmd.PersistentFlags().DurationVar(&app.stageTimeout, "stage-timeout", app.stageTimeout, "Kill an external tool after this long; 0 disables the limit")
	cmd.PersistentFlags().StringVar(&app.collision, "collision", app.collision, "Existing output files: overwrite|rename")
	cmd.PersistentFlags().BoolVar(&app.strict, "strict", app.strict, "Only pick files with a known extension in batch mode")
	cmd.PersistentFlags().StringVar(&app.metricsFile, "metrics-file", app.metricsFile, "Write Prometheus metrics to this file after the run")
}

// loadConfig reads the config file and applies it to every flag the user did
// not set explicitly.
func (a *appState) loadConfig(cmd *cobra.Command) error {
	path, err := platform.ResolveConfigPath(a.configPath)
	if err != nil {
		if a.configPath != "" {
			return err
		}
		path = ""
	}

	cfg, err := config.Load(path, a.configPath != "")
	if err != nil {
		return err
	}
	a.cfg = cfg

	flags := cmd.Flags()
	if !flags.Changed("json") {
		a.jsonLogs = cfg.Logging.JSON
	}
	if !flags.Changed("tools-dir") {
		a.toolsDir = cfg.Tools.Dir
	}
	if !flags.Changed("workers") {
		a.workers = cfg.Batch.Workers
	}
	if !flags.Changed("stage-timeout") {
		a.stageTimeout = cfg.Batch.StageTimeout
	}
	if !flags.Changed("collision") {
		a.collision = cfg.Batch.Collision
	}
	if !flags.Changed("strict") {
		a.strict = cfg.Batch.Strict
	}
	if !flags.Changed("metrics-file") {
		a.metricsFile = cfg.Metrics.File
	}
	if a.workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", a.workers)
	}
	if a.stageTimeout < 0 {
		return fmt.Errorf("--stage-timeout cannot be negative, got %s", a.stageTimeout)
	}
	return nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) env(key string) string {
	if a.getenv == nil {
		return os.Getenv(key)
	}
	return a.getenv(key)
}
