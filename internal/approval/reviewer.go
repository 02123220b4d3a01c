// internal/approval/reviewer.go
package approval

import (
	"context"
	"strings"
	"sync"
	"time"

	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"
	"marketplace-console/internal/common/metrics"
	"marketplace-console/internal/common/toast"
	"marketplace-console/internal/session"
)

// CurrentUser supplies the approver identity.
type CurrentUser interface {
	Current() *session.User
}

// ActionRecorder receives workflow outcomes; observability.Observability
// implements it.
type ActionRecorder interface {
	RecordAction(ctx context.Context, action, outcome string)
}

// Action names, also used as metric labels and URL suffixes.
const (
	ActionVerifyPhone    = "verify-phone"
	ActionAccept         = "accept"
	ActionTransfer       = "transfer"
	ActionUnderReview    = "under-review"
	ActionApprove        = "approve"
	ActionReject         = "reject"
	ActionLoad           = "load"
	ActionToggle         = "toggle"
	outcomeSucceeded     = "succeeded"
	outcomeFailed        = "failed"
	outcomeRejectedLocal = "rejected_locally"
)

// Reviewer drives the review of one application. It holds the last server
// snapshot plus a locally edited checklist draft. Every mutation is a server
// round trip followed by a full re-fetch; failures leave state untouched.
type Reviewer struct {
	id       string
	client   *Client
	api      API
	users    CurrentUser
	notifier toast.Notifier
	reporter *errors.Reporter
	recorder ActionRecorder
	logger   logger.Logger
	period   time.Duration
	now      func() time.Time

	mu         sync.Mutex
	app        *Application
	draft      Checklist
	draftDirty bool
}

func NewReviewer(applicationID string, api API, users CurrentUser, notifier toast.Notifier, log logger.Logger) *Reviewer {
	log = logger.ForComponent(log, "approval").WithFields(map[string]interface{}{
		"applicationId": applicationID,
	})
	if notifier == nil {
		notifier = toast.NewLogNotifier(log)
	}
	return &Reviewer{
		id:       applicationID,
		client:   NewClient(api),
		api:      api,
		users:    users,
		notifier: notifier,
		reporter: errors.NewReporter(log, notifier),
		logger:   log,
		period:   DefaultFreezePeriod,
		now:      time.Now,
	}
}

// WithFreezePeriod overrides the ten minute cooling-off period.
func (r *Reviewer) WithFreezePeriod(period time.Duration) *Reviewer {
	if period > 0 {
		r.period = period
	}
	return r
}

func (r *Reviewer) WithClock(now func() time.Time) *Reviewer {
	r.now = now
	return r
}

func (r *Reviewer) WithRecorder(rec ActionRecorder) *Reviewer {
	r.recorder = rec
	return r
}

// Application returns a copy of the last loaded snapshot, or nil.
func (r *Reviewer) Application() *Application {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.app.clone()
}

// Draft returns the locally edited checklist.
func (r *Reviewer) Draft() Checklist {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft
}

// Permissions derives the current user's affordances on the snapshot.
func (r *Reviewer) Permissions() Permissions {
	r.mu.Lock()
	app := r.app
	r.mu.Unlock()
	return PermissionsFor(r.users.Current(), app)
}

// Freeze returns the cooling-off state of the snapshot.
func (r *Reviewer) Freeze() FreezeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.app == nil {
		return FreezeRemaining(nil, r.now(), r.period)
	}
	return FreezeRemaining(r.app.Approval.PhoneVerifiedAt, r.now(), r.period)
}

// Countdown streams the remaining freeze once per tick. The channel is
// closed immediately when phone verification has not happened.
func (r *Reviewer) Countdown(ctx context.Context, tick time.Duration) <-chan time.Duration {
	r.mu.Lock()
	var verifiedAt *time.Time
	if r.app != nil && r.app.Approval.PhoneVerifiedAt != nil {
		t := *r.app.Approval.PhoneVerifiedAt
		verifiedAt = &t
	}
	r.mu.Unlock()

	if verifiedAt == nil {
		ch := make(chan time.Duration)
		close(ch)
		return ch
	}
	return Countdown(ctx, *verifiedAt, r.period, tick, r.now)
}

// Load fetches the application. A clean draft is reset to the server's
// checklist; a draft with local edits is kept.
func (r *Reviewer) Load(ctx context.Context) (*Application, error) {
	app, err := r.client.Get(ctx, r.id)
	if err != nil {
		r.record(ctx, ActionLoad, outcomeFailed)
		return nil, r.reporter.Report(ctx, ActionLoad, err)
	}

	r.mu.Lock()
	r.app = app
	if !r.draftDirty {
		r.draft = app.Approval.VerificationChecklist
	}
	r.mu.Unlock()

	r.logger.Debug("application loaded", map[string]interface{}{
		"status": string(app.Approval.Status),
	})
	return app.clone(), nil
}

// ToggleItem edits the draft. Items other than phoneVerified stay locked
// until the freeze after phone verification has elapsed.
func (r *Reviewer) ToggleItem(item ChecklistItem, value bool) error {
	if _, err := ParseItem(string(item)); err != nil {
		return r.reporter.Report(context.Background(), ActionToggle, err)
	}

	r.mu.Lock()
	var verifiedAt *time.Time
	if r.app != nil {
		verifiedAt = r.app.Approval.PhoneVerifiedAt
	}
	now := r.now()
	if !ItemEditable(item, verifiedAt, now, r.period) {
		remaining := FreezeRemaining(verifiedAt, now, r.period).Remaining
		r.mu.Unlock()
		return r.reporter.Report(context.Background(), ActionToggle, errors.NewFreezeActiveError(remaining))
	}
	_ = r.draft.Set(item, value)
	r.draftDirty = true
	r.mu.Unlock()
	return nil
}

func (r *Reviewer) approverName() string {
	if r.users == nil {
		return ""
	}
	return r.users.Current().DisplayName()
}

// VerifyPhone records phone verification; the server stamps
// phoneVerifiedAt which starts the freeze. The draft picks up the server's
// checklist through the re-fetch.
func (r *Reviewer) VerifyPhone(ctx context.Context) error {
	return r.act(ctx, ActionVerifyPhone, approverRequest{ApproverName: r.approverName()}, "Phone verified")
}

// AcceptResponsibility locks the application to the current user.
func (r *Reviewer) AcceptResponsibility(ctx context.Context) error {
	return r.act(ctx, ActionAccept, approverRequest{ApproverName: r.approverName()}, "Application accepted")
}

// Transfer hands the lock to another staff member.
func (r *Reviewer) Transfer(ctx context.Context, targetUserID string) error {
	if strings.TrimSpace(targetUserID) == "" {
		return r.rejectLocally(ctx, ActionTransfer, errors.NewTransferTargetRequiredError())
	}
	body := transferRequest{TargetUserID: targetUserID, ApproverName: r.approverName()}
	return r.act(ctx, ActionTransfer, body, "Application transferred")
}

func (r *Reviewer) MarkUnderReview(ctx context.Context) error {
	return r.act(ctx, ActionUnderReview, approverRequest{ApproverName: r.approverName()}, "Application marked under review")
}

// Approve submits the draft checklist. An incomplete checklist fails locally
// and nothing is sent.
func (r *Reviewer) Approve(ctx context.Context, notes string) error {
	draft := r.Draft()
	if missing := draft.Missing(); len(missing) > 0 {
		return r.rejectLocally(ctx, ActionApprove, errors.NewChecklistIncompleteError(itemNames(missing)))
	}
	body := approveRequest{
		VerificationChecklist: draft,
		ApproverName:          r.approverName(),
		Notes:                 strings.TrimSpace(notes),
	}
	err := r.act(ctx, ActionApprove, body, "Vendor approved")
	if err == nil {
		r.resetDraft()
	}
	return err
}

// Reject requires a non-blank reason.
func (r *Reviewer) Reject(ctx context.Context, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return r.rejectLocally(ctx, ActionReject, errors.NewRejectionReasonRequiredError())
	}
	err := r.act(ctx, ActionReject, rejectRequest{Reason: reason, ApproverName: r.approverName()}, "Vendor rejected")
	if err == nil {
		r.resetDraft()
	}
	return err
}

func (r *Reviewer) resetDraft() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draftDirty = false
	if r.app != nil {
		r.draft = r.app.Approval.VerificationChecklist
	}
}

func (r *Reviewer) rejectLocally(ctx context.Context, action string, err error) error {
	metrics.ApprovalActions.WithLabelValues(action, outcomeRejectedLocal).Inc()
	r.record(ctx, action, outcomeRejectedLocal)
	return r.reporter.Report(ctx, action, err)
}

// act posts one transition and re-fetches on success.
func (r *Reviewer) act(ctx context.Context, action string, body interface{}, success string) error {
	if err := r.api.Post(ctx, applicationPath(r.id, action), body, nil); err != nil {
		metrics.ApprovalActions.WithLabelValues(action, outcomeFailed).Inc()
		r.record(ctx, action, outcomeFailed)
		return r.reporter.Report(ctx, action, err)
	}

	metrics.ApprovalActions.WithLabelValues(action, outcomeSucceeded).Inc()
	r.record(ctx, action, outcomeSucceeded)
	r.logger.Info("approval action completed", map[string]interface{}{"action": action})
	r.notifier.Success(success)

	// The action itself succeeded; a failed re-fetch is reported by Load and
	// the previous snapshot stays in place.
	_, _ = r.Load(ctx)
	return nil
}

func (r *Reviewer) record(ctx context.Context, action, outcome string) {
	if r.recorder != nil {
		r.recorder.RecordAction(ctx, action, outcome)
	}
}
