// internal/session/remote.go
package session

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/clients"
)

// Remote is the slice of the remote service the session needs.
type Remote interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, req RegisterRequest) error
	Me(ctx context.Context) (*User, error)
}

// HTTPRemote implements Remote on top of the shared API client.
type HTTPRemote struct {
	api *clients.APIClient
}

func NewHTTPRemote(api *clients.APIClient) *HTTPRemote {
	return &HTTPRemote{api: api}
}

func (r *HTTPRemote) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	if err := r.api.Post(ctx, "/api/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("login response carried no token")
	}
	return resp.Token, nil
}

func (r *HTTPRemote) Register(ctx context.Context, req RegisterRequest) error {
	return r.api.Do(ctx, http.MethodPost, "/api/auth/register", req, nil)
}

func (r *HTTPRemote) Me(ctx context.Context) (*User, error) {
	var user User
	if err := r.api.Get(ctx, "/api/auth/me", &user); err != nil {
		return nil, err
	}
	if user.ID == "" && user.Email == "" {
		return nil, errors.New("identity response was empty")
	}
	return &user, nil
}
