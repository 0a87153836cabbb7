package domain

import "time"

const (
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
	RoleTeamMember     = "team_member"
)

// AllRoles lists every role known to the system.
var AllRoles = []string{RoleAdmin, RoleProjectManager, RoleTeamMember}

// IsValidRole reports whether r is one of AllRoles.
func IsValidRole(r string) bool {
	for _, known := range AllRoles {
		if known == r {
			return true
		}
	}
	return false
}

// User models an account and its live profile. Role is mutated only by an
// approved role-change request or a direct admin action.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the authenticated caller attached to a request by the auth
// middleware. Role comes from the profile store, not from the token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IdentityOf builds the request identity for u.
func IdentityOf(u *User) Identity {
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}
