// internal/session/domain.go
package session

import (
	"errors"
	"strings"
)

// Role is the account role reported by the remote service.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	// ErrNoToken is returned by a TokenStore that holds no credential.
	ErrNoToken = errors.New("no stored token")

	// ErrNotAuthenticated means no identity is active.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrForbidden means the active identity lacks the requested role.
	ErrForbidden = errors.New("forbidden")

	// ErrTokenCorrupt is returned when a stored token cannot be decrypted.
	ErrTokenCorrupt = errors.New("stored token is corrupt or the passphrase is wrong")
)

// User is the identity returned by GET /api/auth/me.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AdminFlag bool   `json:"isAdmin,omitempty"`
}

// IsAdmin accepts any role containing "admin" as well as an explicit isAdmin flag.
func (u *User) IsAdmin() bool {
	if u == nil {
		return false
	}
	return u.AdminFlag || strings.Contains(strings.ToLower(string(u.Role)), string(RoleAdmin))
}

// DisplayName joins the name parts, falling back to the email.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}
