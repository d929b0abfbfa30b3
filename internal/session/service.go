// internal/session/service.go
package session

import (
	"context"
)

// Service holds the zero-or-one active identity and its persisted credential.
type Service interface {
	Restore(ctx context.Context) error
	Login(ctx context.Context, email, password string) (*User, error)
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Logout(ctx context.Context) error
	Token(ctx context.Context) (string, error)
	User() *User
	IsAuthenticated() bool
	RequireRole(role Role) (*User, error)
	Loading() bool
}
