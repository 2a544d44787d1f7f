package auth

import "time"

type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleStaff       Role = "staff"
	RoleAgencyAdmin Role = "agency_admin"
	RoleAgent       Role = "agent"
	RoleCustomer    Role = "user"
)

// AgencyScoped reports whether the role requires an agency affiliation to
// perform agency-scoped actions. super_admin and staff are agency-agnostic.
func (r Role) AgencyScoped() bool {
	return r == RoleAgencyAdmin || r == RoleAgent
}

// Actor is the domain representation of an authenticated caller.
// It mirrors the actors table and carries no JSON annotations so it can be
// reused by different presentation layers.
type Actor struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Phone        *string
	AgencyID     *string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Agency returns the actor's agency id or "" when unaffiliated.
func (a Actor) Agency() string {
	if a.AgencyID == nil {
		return ""
	}
	return *a.AgencyID
}

// RegisterRequest contains actor registration data supplied by callers.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Role     Role    `json:"role"`
	AgencyID *string `json:"agency_id"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
