package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itohio/photorig/pkg/batch"
	"github.com/itohio/photorig/pkg/clock"
	"github.com/itohio/photorig/pkg/config"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// notifyContext is swapped in tests.
var notifyContext = signal.NotifyContext

// loggedError marks an error that run has already reported through the logger.
type loggedError struct{ error }

func (e loggedError) Unwrap() error { return e.error }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var logged loggedError
		if !errors.As(err, &logged) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "photorig",
		Short:         "Run timed photochemical absorbance experiments on the optical rig",
		Long:          "Runs the configured number of baseline/irradiation/monitoring experiments.\nSettings are read from " + config.DefaultFile + " in the working directory.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), config.DefaultFile)
		},
	}
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "photorig %s (build %s)\n", Version, BuildTime)
			return err
		},
	}
}

func run(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := setupLogger(cfg.Log)
	log.Infof("photorig %s starting", Version)
	if cfg.Serial.UseMock {
		log.Info("Using simulated rig")
	} else {
		log.Infof("Serial port: %s @ %d baud", cfg.Serial.Port, cfg.Serial.BaudRate)
	}

	ctx, stop := interruptContext(ctx)
	defer stop()

	clk := clock.System{}
	ctrl := batch.New(cfg, batch.DefaultOpener(cfg, clk), clk, log)

	results, err := ctrl.Run(ctx)
	if err != nil {
		log.WithError(err).WithField("completed", len(results)).Error("Batch aborted")
		return loggedError{err}
	}

	log.WithField("runs", len(results)).Info("Batch finished")
	return nil
}

// interruptContext cancels on SIGINT or SIGTERM so pending delays end and the
// port is released. Signal capture stops once the context is done, so a
// second signal terminates the process even if a serial read is blocked.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := notifyContext(parent, os.Interrupt, syscall.SIGTERM)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}
