package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
	"github.com/aperture-cli/aperture/internal/config"
	"github.com/aperture-cli/aperture/internal/fsutil"
	"github.com/aperture-cli/aperture/internal/logging"
)

// getOutputFlags returns the global --format and -o/--output (path) from the root command.
// -o/--output = output path (file to write). --format/-F = output format (json|yaml|text|quiet).
func getOutputFlags(c *cobra.Command) (format string, outputPath string) {
	format, _ = c.Root().PersistentFlags().GetString("format")
	outputPath, _ = c.Root().PersistentFlags().GetString("output")
	return format, outputPath
}

// session is what every command needs: the manager over the config root,
// the loaded configuration and a logger at the configured level.
type session struct {
	Manager *app.Manager
	Config  *config.Config
	Logger  *log.Logger
}

// openSession resolves the config root and loads config.toml from it.
func openSession() (*session, error) {
	root, err := config.Dir()
	if err != nil {
		return nil, err
	}
	fs := fsutil.OS()
	cfg, err := config.Load(fs, root)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)
	return &session{
		Manager: app.NewManager(fs, root, logger),
		Config:  cfg,
		Logger:  logger,
	}, nil
}

// fail converts err into the exit result for the current --format.
func fail(cmd *cobra.Command, err error) error {
	format, _ := getOutputFlags(cmd)
	return app.ErrorExit(err, format)
}

// interruptContext is cancelled on Ctrl-C.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
