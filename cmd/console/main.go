// cmd/console/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketplace-console/internal/common/errors"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPathFlag string
	console        *app
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Marketplace staff console",
	Long: `Marketplace staff console

Signs staff in against the marketplace API, reviews vendor applications,
reads and sends messages, and follows the realtime event stream.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPathFlag, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		console = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Path to a config file (default: configs/config.yaml)")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, watchCmd)
	rootCmd.AddCommand(reviewCmd, messagesCmd, notificationsCmd)
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	reported := false
	if console != nil {
		reported = console.flushToasts() > 0
		console.Close()
	}
	if err == nil {
		return 0
	}
	if !reported {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
	}
	return 1
}

// describe prefers the user-facing message and falls back to the raw error
// for failures that never went through the taxonomy (flags, config).
func describe(err error) string {
	if errors.Normalize(err).Code == errors.ErrCodeInternal {
		return err.Error()
	}
	return errors.UserMessage(err)
}
