package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/knockknock/internal/build"
	"github.com/shaharia-lab/knockknock/internal/command"
	"github.com/shaharia-lab/knockknock/internal/config"
	"github.com/shaharia-lab/knockknock/internal/notification"
)

// NewRunCmd returns the "run" subcommand that wraps a program with
// lifecycle notifications.
func NewRunCmd(cfg *config.AppConfig) *cobra.Command {
	var recipient, sender, name, metricsFile string

	cmd := &cobra.Command{
		Use:   "run [flags] -- <program> [args...]",
		Short: "Run a program and email when it starts, finishes or crashes",
		Long: `Run a program with its output forwarded to the terminal. An email is sent
when it starts, when it exits with status 0, and when it exits with any
other status. The crash email carries the last lines the program wrote to
stderr. knock exits with the program's exit status.

Examples:
  knock run -r me@example.com -- python train.py --epochs 10
  knock run --name nightly-backup -- ./backup.sh`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("recipient") {
				cfg.Recipient = recipient
			}
			if cmd.Flags().Changed("sender") {
				cfg.Sender = sender
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			return runProgram(cmd, cfg, name, metricsFile, args)
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVarP(&recipient, "recipient", "r", cfg.Recipient, "Notification recipient (overrides KNOCK_RECIPIENT env var)")
	cmd.Flags().StringVarP(&sender, "sender", "s", cfg.Sender, "Sender address, defaults to the recipient (overrides KNOCK_SENDER env var)")
	cmd.Flags().StringVar(&name, "name", "", "Name used for the call in notifications (default: program base name)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file when the program exits")

	return cmd
}

func runProgram(cmd *cobra.Command, cfg *config.AppConfig, name, metricsFile string, argv []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	log.Info("knock starting",
		"version", build.Version,
		"name", name,
		"program", argv[0],
		"args", argv[1:],
	)

	opts := []notification.Option{
		notification.WithLogger(log),
		notification.WithSendTimeout(cfg.SendTimeout),
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Warn("delivery log unavailable, continuing without it", "error", err)
	} else {
		defer func() { _ = closeStore() }()
		opts = append(opts, notification.WithStore(store))
	}

	var reg *prometheus.Registry
	if metricsFile != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, notification.WithMetrics(notification.NewMetrics(reg)))
	}

	n, err := dialNotifier(ctx, cfg.Recipient, cfg.Sender, cfg.Transport(), opts...)
	if err != nil {
		log.Error("could not set up notifier", "error", err)
		return err
	}
	defer func() { _ = n.Close() }()

	code, runErr := notification.WrapNamed(n, name, command.New(argv[0], argv[1:]...))(ctx)
	log.Info("program finished", "name", name, "exit_code", code, "error", runErr)

	if reg != nil {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			log.Warn("failed to write metrics file", "path", metricsFile, "error", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "knock: writing metrics file: %v\n", err)
		}
	}

	return exitStatus(runErr)
}

// exitStatus maps the wrapped call's error to the error knock exits with.
// A program's non-zero status passes through unchanged; anything else is
// knock's own failure.
func exitStatus(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *command.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.Code
		if code <= 0 {
			code = 1
		}
		return &ExitCodeError{Code: code}
	}
	if errors.Is(err, context.Canceled) {
		return &ExitCodeError{Code: 130}
	}
	return err
}
