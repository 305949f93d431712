package entity

import (
	"encoding/json"
	"time"
)

// Role is an authorisation tier. Roles are totally ordered: the position in
// roleHierarchy (lowest first) is the single source of truth for
// minimum-role checks, so call sites never encode ordering themselves.
type Role string

const (
	RoleApprentice       Role = "APPRENTICE"
	RoleMentor           Role = "MENTOR"
	RoleEducationalTutor Role = "EDUCATIONAL_TUTOR"
	RoleProfessor        Role = "PROFESSOR"
	RoleAccountManager   Role = "ACCOUNT_MANAGER"
	RoleCenterManager    Role = "CENTER_MANAGER"
	RoleAdmin            Role = "ADMIN"
)

var roleHierarchy = []Role{
	RoleApprentice,
	RoleMentor,
	RoleEducationalTutor,
	RoleProfessor,
	RoleAccountManager,
	RoleCenterManager,
	RoleAdmin,
}

// Rank returns the position of the role in the hierarchy (0 = lowest).
// The second return is false for unknown roles.
func Rank(r Role) (int, bool) {
	for i, v := range roleHierarchy {
		if v == r {
			return i, true
		}
	}
	return 0, false
}

// IsValidRole reports whether r is one of the defined roles.
func IsValidRole(r Role) bool {
	_, ok := Rank(r)
	return ok
}

// Roles returns the full hierarchy, lowest first.
func Roles() []Role {
	out := make([]Role, len(roleHierarchy))
	copy(out, roleHierarchy)
	return out
}

// User represents an account profile row in the `users` table. Passwords
// never live here; the auth subsystem owns the paired credential record.
type User struct {
	ID            string          `db:"id" json:"id"`
	Username      string          `db:"username" json:"username"`
	Email         string          `db:"email" json:"email"`
	FirstName     string          `db:"first_name" json:"firstName"`
	LastName      string          `db:"last_name" json:"lastName"`
	Role          Role            `db:"role" json:"role"`
	AttributesRaw json.RawMessage `db:"attributes" json:"attributes,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// Summary is the projection returned alongside login and profile reads.
type Summary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
}

// Summary returns the public projection of the user.
func (u *User) Summary() Summary {
	return Summary{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}
