// cmd/console/messages.go
package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"marketplace-console/internal/messaging"

	"github.com/spf13/cobra"
)

var messagesArchivedFlag bool

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Read and send messages",
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, pinned first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := console.requireUser(ctx); err != nil {
			return err
		}
		convs, err := console.messages().LoadConversations(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(console.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWITH\tUNREAD\tLAST MESSAGE")
		for _, c := range convs {
			if c.IsArchived && !messagesArchivedFlag {
				continue
			}
			last := ""
			if c.LastMessage != nil {
				last = truncate(c.LastMessage.Message, 48)
			}
			id := c.ID
			if c.IsPinned {
				id += " *"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", id, participantNames(c), c.UnreadCount, last)
		}
		return w.Flush()
	},
}

var messagesShowCmd = &cobra.Command{
	Use:   "show <conversation>",
	Short: "Print a conversation and mark it read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, err := console.requireUser(ctx)
		if err != nil {
			return err
		}
		store := console.messages()
		if _, err := store.LoadConversations(ctx); err != nil {
			return err
		}
		msgs, err := store.LoadMessages(ctx, args[0])
		if err != nil {
			return err
		}
		for _, m := range msgs {
			who := m.SenderID
			if m.SenderID == user.ID {
				who = "you"
			}
			edited := ""
			if m.EditedAt != nil {
				edited = " (edited)"
			}
			fmt.Fprintf(console.out, "[%s] %s: %s%s\n", m.CreatedAt.Format("01-02 15:04"), who, m.Message, edited)
		}
		return store.MarkRead(ctx, args[0])
	},
}

var messagesSendCmd = &cobra.Command{
	Use:   "send <conversation> <text...>",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := console.requireUser(ctx); err != nil {
			return err
		}
		sent, err := console.messages().SendMessage(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(console.out, "sent %s\n", sent.ID)
		return nil
	},
}

var messagesDeleteCmd = &cobra.Command{
	Use:   "delete <message>",
	Short: "Delete a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := console.requireUser(ctx); err != nil {
			return err
		}
		if err := console.messages().DeleteMessage(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(console.out, "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	messagesListCmd.Flags().BoolVar(&messagesArchivedFlag, "archived", false, "Include archived conversations")
	messagesCmd.AddCommand(messagesListCmd, messagesShowCmd, messagesSendCmd, messagesDeleteCmd)
}

func participantNames(c messaging.Conversation) string {
	var names []string
	for _, p := range c.Participants {
		if p.Name != "" {
			names = append(names, p.Name)
		} else {
			names = append(names, p.ID)
		}
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
