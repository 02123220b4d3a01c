// internal/session/models.go
package session

import "encoding/json"

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAgent      Role = "agent" // vendor
	RoleSubAdmin   Role = "subadmin"
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleSubAdmin, RoleSuperAdmin, RoleAdmin:
		return true
	}
	return false
}

// User is the authenticated account. Role flags are derived on every call.
type User struct {
	ID              string   `json:"_id"`
	Email           string   `json:"email"`
	Name            string   `json:"name,omitempty"`
	Role            Role     `json:"role"`
	RolePermissions []string `json:"rolePermissions,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id" for the identifier.
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
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

func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleSuperAdmin)
}

func (u *User) IsSuperAdmin() bool {
	return u != nil && u.Role == RoleSuperAdmin
}

func (u *User) IsSubAdmin() bool {
	return u != nil && u.Role == RoleSubAdmin
}

func (u *User) IsVendor() bool {
	return u != nil && u.Role == RoleAgent
}

// IsStaff covers every role allowed into the review console.
func (u *User) IsStaff() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleSuperAdmin || u.Role == RoleSubAdmin)
}

// HasPermission checks rolePermissions; super admins hold every permission.
func (u *User) HasPermission(permission string) bool {
	if u == nil {
		return false
	}
	if u.IsSuperAdmin() {
		return true
	}
	for _, p := range u.RolePermissions {
		if p == permission {
			return true
		}
	}
	return false
}

// DisplayName is used as the approver name on review actions.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.RolePermissions = append([]string(nil), u.RolePermissions...)
	return &c
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the data of a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
