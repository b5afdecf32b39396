package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shaharia-lab/knockknock/internal/config"
	"github.com/shaharia-lab/knockknock/internal/logger"
	"github.com/shaharia-lab/knockknock/internal/notification"
	"github.com/shaharia-lab/knockknock/internal/storage"
)

// Replaced in tests.
var (
	dialNotifier  = notification.Dial
	openTransport = func(ctx context.Context, cfg notification.SMTPConfig, sender string) (notification.Transport, error) {
		return notification.NewSMTPTransport(ctx, cfg, sender)
	}
)

// newLogger opens the rotating system log. All structured logs go to the
// log file; the terminal only gets command output and the wrapped program's.
func newLogger(cfg *config.AppConfig) (*slog.Logger, io.Closer, error) {
	log, closer, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return log, closer, nil
}

// openStore opens the delivery log database and returns the store with a
// function that closes it.
func openStore(cfg *config.AppConfig) (*storage.SQLiteNotificationStore, func() error, error) {
	db, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening delivery log: %w", err)
	}
	return storage.NewSQLiteNotificationStore(db), db.Close, nil
}
