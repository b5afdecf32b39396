package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/knockknock/internal/config"
)

// ExitCodeError makes the process exit with Code without printing anything.
// The run command returns it to pass the wrapped program's status through.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewRootCmd returns the knock root command with every subcommand attached.
func NewRootCmd(cfg *config.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:   "knock",
		Short: "Get an email when a long-running job starts, finishes or crashes",
		Long: `knock wraps a program and emails a recipient when it starts, when it
finishes successfully, and when it crashes, including the error and the
tail of its stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(NewRunCmd(cfg))
	root.AddCommand(NewTestCmd(cfg))
	root.AddCommand(NewHistoryCmd(cfg))
	root.AddCommand(NewVersionCmd())
	return root
}

// Execute loads configuration and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := NewRootCmd(cfg).Execute(); err != nil {
		var exitErr *ExitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
