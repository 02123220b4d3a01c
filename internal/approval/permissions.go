// internal/approval/permissions.go
package approval

import "marketplace-console/internal/session"

// Permissions are UI affordances only. The Reviewer never enforces them; the
// server decides.
type Permissions struct {
	CanAccept      bool
	CanDecide      bool
	CanTransfer    bool
	CanVerifyPhone bool
}

// PermissionsFor derives what user may do on app.
func PermissionsFor(user *session.User, app *Application) Permissions {
	if user == nil || app == nil || !user.IsStaff() || app.Approval.Status.Terminal() {
		return Permissions{}
	}

	lockedBy := app.Approval.LockedBy
	holdsLock := lockedBy != nil && lockedBy.ID == user.ID
	decide := holdsLock || user.IsSuperAdmin()

	return Permissions{
		CanAccept:      lockedBy == nil,
		CanDecide:      decide,
		CanTransfer:    decide,
		CanVerifyPhone: decide && app.Approval.PhoneVerifiedAt == nil,
	}
}
