// cmd/console/review.go
package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"marketplace-console/internal/approval"

	"github.com/spf13/cobra"
)

var (
	reviewStatusFlag string
	reviewNotesFlag  string
	reviewReasonFlag string
	reviewTargetFlag string
	reviewCheckFlag  []string
	reviewWaitFlag   bool
)

var reviewCmd = &cobra.Command{
	Use:     "review",
	Aliases: []string{"approvals"},
	Short:   "Review vendor applications",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vendor applications, optionally filtered by --status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := console.requireUser(ctx); err != nil {
			return err
		}
		apps, err := approval.NewClient(console.api).List(ctx, approval.Status(reviewStatusFlag))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(console.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBUSINESS\tSTATUS\tLOCKED BY\tSUBMITTED")
		for _, a := range apps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				a.ID, a.BusinessName, a.Approval.Status, a.Approval.LockedBy.Label(),
				a.SubmittedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an application with its checklist, freeze and permissions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadReviewer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printApplication(console.out, r)
		return nil
	},
}

var reviewCountdownCmd = &cobra.Command{
	Use:   "countdown <id>",
	Short: "Print the remaining checklist freeze until it runs out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := loadReviewer(ctx, args[0])
		if err != nil {
			return err
		}
		if !r.Freeze().Started {
			fmt.Fprintln(console.out, "Phone not verified yet; the freeze has not started")
			return nil
		}
		for remaining := range r.Countdown(ctx, console.cfg.Approval.TickDuration()) {
			fmt.Fprintf(console.out, "\rchecklist unlocks in %s", approval.FormatRemaining(remaining))
		}
		fmt.Fprintln(console.out)
		if r.Freeze().Done() {
			fmt.Fprintln(console.out, "Checklist unlocked")
		}
		return nil
	},
}

func actionCommand(use, short string, run func(ctx context.Context, r *approval.Reviewer) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := loadReviewer(ctx, args[0])
			if err != nil {
				return err
			}
			if err := run(ctx, r); err != nil {
				return err
			}
			printApplication(console.out, r)
			return nil
		},
	}
}

var (
	reviewVerifyPhoneCmd = actionCommand("verify-phone", "Record phone verification and start the freeze",
		func(ctx context.Context, r *approval.Reviewer) error { return r.VerifyPhone(ctx) })
	reviewAcceptCmd = actionCommand("accept", "Take responsibility for the application",
		func(ctx context.Context, r *approval.Reviewer) error { return r.AcceptResponsibility(ctx) })
	reviewUnderReviewCmd = actionCommand("under-review", "Mark the application under review",
		func(ctx context.Context, r *approval.Reviewer) error { return r.MarkUnderReview(ctx) })
	reviewTransferCmd = actionCommand("transfer", "Hand the application to another staff member (--to)",
		func(ctx context.Context, r *approval.Reviewer) error { return r.Transfer(ctx, reviewTargetFlag) })
	reviewRejectCmd = actionCommand("reject", "Reject the application (--reason required)",
		func(ctx context.Context, r *approval.Reviewer) error { return r.Reject(ctx, reviewReasonFlag) })
	reviewApproveCmd = actionCommand("approve", "Approve with a complete checklist (--check item, repeatable, or --check all)",
		runApprove)
)

func init() {
	reviewListCmd.Flags().StringVar(&reviewStatusFlag, "status", "", "Filter by status: pending, under_review, approved, rejected")
	reviewTransferCmd.Flags().StringVar(&reviewTargetFlag, "to", "", "Target staff user id")
	reviewRejectCmd.Flags().StringVar(&reviewReasonFlag, "reason", "", "Rejection reason")
	reviewApproveCmd.Flags().StringVar(&reviewNotesFlag, "notes", "", "Approval notes")
	reviewApproveCmd.Flags().StringSliceVar(&reviewCheckFlag, "check", nil, "Checklist items to tick before approving")
	reviewApproveCmd.Flags().BoolVar(&reviewWaitFlag, "wait", false, "Wait for the checklist freeze to run out before ticking items")

	reviewCmd.AddCommand(
		reviewListCmd,
		reviewShowCmd,
		reviewCountdownCmd,
		reviewVerifyPhoneCmd,
		reviewAcceptCmd,
		reviewUnderReviewCmd,
		reviewTransferCmd,
		reviewApproveCmd,
		reviewRejectCmd,
	)
}

func loadReviewer(ctx context.Context, id string) (*approval.Reviewer, error) {
	if _, err := console.requireUser(ctx); err != nil {
		return nil, err
	}
	r := console.reviewer(id)
	if _, err := r.Load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// runApprove ticks the requested items on the draft, then submits it.
func runApprove(ctx context.Context, r *approval.Reviewer) error {
	items, err := checkItems(reviewCheckFlag)
	if err != nil {
		return err
	}
	if reviewWaitFlag {
		for range r.Countdown(ctx, console.cfg.Approval.TickDuration()) {
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	for _, item := range items {
		if err := r.ToggleItem(item, true); err != nil {
			return err
		}
	}
	return r.Approve(ctx, reviewNotesFlag)
}

func checkItems(names []string) ([]approval.ChecklistItem, error) {
	var items []approval.ChecklistItem
	for _, name := range names {
		if name == "all" {
			return approval.Items, nil
		}
		item, err := approval.ParseItem(name)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func printApplication(out io.Writer, r *approval.Reviewer) {
	app := r.Application()
	if app == nil {
		return
	}
	a := app.Approval
	fmt.Fprintf(out, "%s  %s\n", app.ID, app.BusinessName)
	fmt.Fprintf(out, "  contact:   %s <%s> %s\n", app.ContactName, app.Email, app.Phone)
	fmt.Fprintf(out, "  status:    %s\n", a.Status)
	if a.LockedBy != nil {
		fmt.Fprintf(out, "  locked by: %s\n", a.LockedBy.Label())
	}

	freeze := r.Freeze()
	switch {
	case !freeze.Started:
		fmt.Fprintln(out, "  phone:     not verified")
	case freeze.Done():
		fmt.Fprintf(out, "  phone:     verified by %s, checklist unlocked\n", a.PhoneVerifiedBy)
	default:
		fmt.Fprintf(out, "  phone:     verified by %s, checklist unlocks in %s\n", a.PhoneVerifiedBy, approval.FormatRemaining(freeze.Remaining))
	}

	draft := r.Draft()
	fmt.Fprintln(out, "  checklist:")
	for _, item := range approval.Items {
		mark := " "
		if draft.Get(item) {
			mark = "x"
		}
		fmt.Fprintf(out, "    [%s] %s\n", mark, item)
	}

	p := r.Permissions()
	var can []string
	if p.CanAccept {
		can = append(can, "accept")
	}
	if p.CanVerifyPhone {
		can = append(can, "verify-phone")
	}
	if p.CanTransfer {
		can = append(can, "transfer")
	}
	if p.CanDecide {
		can = append(can, "approve", "reject")
	}
	if len(can) > 0 {
		fmt.Fprintf(out, "  actions:   %s\n", strings.Join(can, ", "))
	}

	if n := len(a.ActivityLog); n > 0 {
		last := a.ActivityLog[n-1]
		fmt.Fprintf(out, "  last:      %s by %s at %s\n", last.Action, last.PerformedBy.Label(), last.PerformedAt.Format("2006-01-02 15:04"))
	}
}
