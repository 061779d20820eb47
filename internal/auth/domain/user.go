package domain

import "time"

// Role is the closed set of console access levels.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleReadOnly Role = "read_only"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleReadOnly:
		return true
	}
	return false
}

type User struct {
	ID            string
	Email         string
	PasswordHash  string // argon2 encoded
	Role          Role
	EmailVerified *time.Time // nullable, set on first successful verification
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u User) IsVerified() bool {
	return u.EmailVerified != nil
}
