// Package cli provides the command-line interface for Vancelle
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyike/VancelleGo/config"
	"github.com/dyike/VancelleGo/consts"
	"github.com/dyike/VancelleGo/internal/app"
	"github.com/dyike/VancelleGo/internal/logging"
)

// Run starts the CLI application
func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	debug      bool

	cfg       *config.Config
	logCloser io.Closer
	appOpts   []app.Option
}

// openApp builds the application for one command. requireInference makes a
// missing model credential fatal before anything else is opened.
func (o *rootOptions) openApp(ctx context.Context, requireInference bool) (*app.App, error) {
	opts := append([]app.Option{}, o.appOpts...)
	if requireInference {
		opts = append(opts, app.RequireInference())
	}
	return app.New(ctx, o.cfg, opts...)
}

// NewRootCmd creates the root command. Options are passed to every app the
// commands build.
func NewRootCmd(appOpts ...app.Option) *cobra.Command {
	opts := &rootOptions{appOpts: appOpts}

	rootCmd := &cobra.Command{
		Use:   consts.AppName,
		Short: "Vancelle - Forex chart diagnostics",
		Long: `Vancelle sends a chart screenshot to a multimodal model and renders the
structured verdict it returns: directive, levels, annotations and rationale.
Completed analyses are kept in a local journal together with your outcomes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.debug {
				cfg.Debug = true
				cfg.LogLevel = "debug"
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}

			var console io.Writer
			if cfg.Debug {
				console = cmd.ErrOrStderr()
			}
			closer, err := logging.Setup(cfg.LogLevel, cfg.LogFile, console)
			if err != nil {
				return fmt.Errorf("failed to set up logging: %w", err)
			}
			opts.cfg = cfg
			opts.logCloser = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive mode
			return runInteractiveMode(cmd, opts)
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd(opts))
	rootCmd.AddCommand(newInteractiveCmd(opts))
	rootCmd.AddCommand(newJournalCmd(opts))
	rootCmd.AddCommand(newSettingsCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path (YAML)")

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", consts.AppName, consts.AppVersion)
			fmt.Fprintln(cmd.OutOrStdout(), "Forex chart diagnostic client")
		},
	}
}
