package domain

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// roleRank orders roles for permission checks.
var roleRank = map[Role]int{
	RoleCustomer: 1,
	RoleStaff:    2,
	RoleAdmin:    3,
}

// HasPermission reports whether the role grants at least the given role's access.
func (r Role) HasPermission(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// IsStaff reports whether the role belongs to operations personnel.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

type User struct {
	ID        string
	Email     string
	FullName  string
	Password  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefreshToken is a persisted refresh token for a user session.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LoginCode is a short-lived one-time code for customer passwordless login.
type LoginCode struct {
	ID        string
	UserID    string
	Code      string
	Attempts  int
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
