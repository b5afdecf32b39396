package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/knockknock/internal/config"
	"github.com/shaharia-lab/knockknock/internal/notification"
	"github.com/shaharia-lab/knockknock/internal/storage"
)

const (
	historyStatusCol = 4
	maxErrorWidth    = 60
)

// NewHistoryCmd returns the "history" subcommand that prints the delivery log.
func NewHistoryCmd(cfg *config.AppConfig) *cobra.Command {
	var limit int
	var noColor bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent notification deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			entries, err := store.ListNotifications(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing notifications: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No notifications recorded yet.")
				return nil
			}

			var opts []termenv.OutputOption
			if noColor {
				opts = append(opts, termenv.WithProfile(termenv.Ascii))
			}
			fmt.Fprintln(out, renderHistory(lipgloss.NewRenderer(out, opts...), entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func renderHistory(r *lipgloss.Renderer, entries []storage.NotificationLogEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(notification.DateFormat),
			shortID(e.InvocationID),
			e.FunctionName,
			e.Event,
			e.Status,
			e.Recipient,
			truncate(e.ErrorMsg, maxErrorWidth),
		})
	}

	base := r.NewStyle().Padding(0, 1)
	failed := base.Foreground(lipgloss.Color("9"))
	sent := base.Foreground(lipgloss.Color("10"))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return base.Bold(true)
			case col != historyStatusCol:
				return base
			case entries[row].Status == storage.StatusFailed:
				return failed
			default:
				return sent
			}
		}).
		Headers("TIME", "INVOCATION", "FUNCTION", "EVENT", "STATUS", "RECIPIENT", "ERROR").
		Rows(rows...)

	return t.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
