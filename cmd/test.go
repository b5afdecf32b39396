package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/knockknock/internal/config"
	"github.com/shaharia-lab/knockknock/internal/notification"
)

const testSubject = "knockknock test notification 🔔"

// NewTestCmd returns the "test" subcommand that sends one test email with
// the configured transport.
func NewTestCmd(cfg *config.AppConfig) *cobra.Command {
	var recipient, sender string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		Long:  "Send one test email to check the recipient, sender and SMTP settings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("recipient") {
				cfg.Recipient = recipient
			}
			if cmd.Flags().Changed("sender") {
				cfg.Sender = sender
			}
			return sendTestNotification(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&recipient, "recipient", "r", cfg.Recipient, "Notification recipient (overrides KNOCK_RECIPIENT env var)")
	cmd.Flags().StringVarP(&sender, "sender", "s", cfg.Sender, "Sender address, defaults to the recipient (overrides KNOCK_SENDER env var)")

	return cmd
}

func sendTestNotification(ctx context.Context, cfg *config.AppConfig, out io.Writer) error {
	nc, err := notification.NewConfig(cfg.Recipient, cfg.Sender)
	if err != nil {
		return err
	}

	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	if cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.SendTimeout)
		defer cancel()
	}

	transport, err := openTransport(ctx, cfg.Transport(), nc.Sender())
	if err != nil {
		log.Error("could not open transport", "host", cfg.SMTP.Host, "error", err)
		return err
	}
	if c, ok := transport.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	lines := []string{
		"This is a test notification from knock.",
		"Machine name: " + host,
		"Sent at: " + time.Now().Format(notification.DateFormat),
	}

	if err := transport.Send(ctx, nc.Recipient(), testSubject, lines); err != nil {
		log.Error("test notification failed", "recipient", nc.Recipient(), "error", err)
		return fmt.Errorf("sending test notification: %w", err)
	}

	log.Info("test notification sent", "recipient", nc.Recipient(), "sender", nc.Sender())
	fmt.Fprintf(out, "Test notification sent to %s via %s:%d\n", nc.Recipient(), cfg.SMTP.Host, cfg.SMTP.Port)
	return nil
}
