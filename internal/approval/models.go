// internal/approval/models.go
package approval

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition mirrors the server's transition graph. It is for display
// only; the server is the authority.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusUnderReview || to == StatusApproved || to == StatusRejected
	case StatusUnderReview:
		return to == StatusApproved || to == StatusRejected
	}
	return false
}

// UserRef is a staff member as embedded in an application. The backend sends
// either a populated object or a bare id.
type UserRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func (u *UserRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		u.ID = id
		return nil
	}
	type alias UserRef
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.AltID
	}
	return nil
}

// Label is the best human name for the ref.
func (u *UserRef) Label() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

type ActivityEntry struct {
	Action      string    `json:"action"`
	PerformedBy *UserRef  `json:"performedBy,omitempty"`
	PerformedAt time.Time `json:"performedAt"`
	Details     string    `json:"details,omitempty"`
}

type Approval struct {
	Status                Status          `json:"status"`
	LockedBy              *UserRef        `json:"lockedBy,omitempty"`
	LockedAt              *time.Time      `json:"lockedAt,omitempty"`
	PhoneVerifiedAt       *time.Time      `json:"phoneVerifiedAt,omitempty"`
	PhoneVerifiedBy       string          `json:"phoneVerifiedBy,omitempty"`
	VerificationChecklist Checklist       `json:"verificationChecklist"`
	ActivityLog           []ActivityEntry `json:"activityLog,omitempty"`
	ApproverName          string          `json:"approverName,omitempty"`
	Notes                 string          `json:"notes,omitempty"`
	RejectionReason       string          `json:"rejectionReason,omitempty"`
}

// Application is a vendor application. Fields the console does not model are
// kept verbatim in Extra.
type Application struct {
	ID           string                     `json:"_id"`
	BusinessName string                     `json:"businessName"`
	ContactName  string                     `json:"contactName,omitempty"`
	Email        string                     `json:"email,omitempty"`
	Phone        string                     `json:"phone,omitempty"`
	SubmittedAt  time.Time                  `json:"submittedAt"`
	Approval     Approval                   `json:"approval"`
	Extra        map[string]json.RawMessage `json:"-"`
}

var applicationFields = map[string]bool{
	"_id": true, "id": true, "businessName": true, "contactName": true, "email": true,
	"phone": true, "submittedAt": true, "approval": true,
}

func (a *Application) UnmarshalJSON(data []byte) error {
	type alias Application
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = aux.AltID
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	a.Extra = nil
	for k, v := range all {
		if applicationFields[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]json.RawMessage)
		}
		a.Extra[k] = v
	}
	return nil
}

func (a *Application) clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	if a.Approval.LockedBy != nil {
		ref := *a.Approval.LockedBy
		c.Approval.LockedBy = &ref
	}
	if a.Approval.LockedAt != nil {
		t := *a.Approval.LockedAt
		c.Approval.LockedAt = &t
	}
	if a.Approval.PhoneVerifiedAt != nil {
		t := *a.Approval.PhoneVerifiedAt
		c.Approval.PhoneVerifiedAt = &t
	}
	c.Approval.ActivityLog = append([]ActivityEntry(nil), a.Approval.ActivityLog...)
	if a.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(a.Extra))
		for k, v := range a.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// Request bodies.

type approverRequest struct {
	ApproverName string `json:"approverName"`
}

type transferRequest struct {
	TargetUserID string `json:"targetUserId"`
	ApproverName string `json:"approverName"`
}

type approveRequest struct {
	VerificationChecklist Checklist `json:"verificationChecklist"`
	ApproverName          string    `json:"approverName"`
	Notes                 string    `json:"notes,omitempty"`
}

type rejectRequest struct {
	Reason       string `json:"reason"`
	ApproverName string `json:"approverName"`
}
