// cmd/console/notifications.go
package main

import (
	"fmt"
	"text/tabwriter"

	"marketplace-console/internal/notifications"

	"github.com/spf13/cobra"
)

var (
	notificationsPageFlag  int
	notificationsLimitFlag int
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Read sub-admin notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications with the unread count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := console.requireUser(ctx); err != nil {
			return err
		}
		if notificationsPageFlag > 1 {
			return listPage(cmd, notificationsPageFlag, notificationsLimitFlag)
		}
		feed := console.notificationFeed().WithPageSize(notificationsLimitFlag)
		if err := feed.Refresh(ctx); err != nil {
			return err
		}
		w := tabwriter.NewWriter(console.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "%d unread\n", feed.Unread())
		for _, n := range feed.Items() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", readMark(n.Read), n.ID, n.Title, truncate(n.Message, 60))
		}
		return w.Flush()
	},
}

func listPage(cmd *cobra.Command, page, limit int) error {
	p, err := notifications.NewClient(console.api).List(cmd.Context(), page, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(console.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "page %d, %d total\n", page, p.Total)
	for _, n := range p.Notifications {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", readMark(n.Read), n.ID, n.Title, truncate(n.Message, 60))
	}
	return w.Flush()
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark one notification read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := console.requireUser(ctx); err != nil {
			return err
		}
		return console.notificationFeed().MarkRead(ctx, args[0])
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := console.requireUser(ctx); err != nil {
			return err
		}
		return console.notificationFeed().MarkAllRead(ctx)
	},
}

func init() {
	notificationsListCmd.Flags().IntVar(&notificationsPageFlag, "page", 1, "Page number")
	notificationsListCmd.Flags().IntVar(&notificationsLimitFlag, "limit", 20, "Page size")
	notificationsCmd.AddCommand(notificationsListCmd, notificationsReadCmd, notificationsReadAllCmd)
}

func readMark(read bool) string {
	if read {
		return " "
	}
	return "*"
}
