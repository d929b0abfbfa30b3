// internal/session/implementation.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("storefront/session")

// manager implements the Service interface.
type manager struct {
	remote Remote
	store  TokenStore
	logger *logrus.Logger
	now    func() time.Time

	mu      sync.RWMutex
	user    *User
	loading bool
}

// NewManager creates a session that starts in the loading state until Restore runs.
func NewManager(remote Remote, store TokenStore, logger *logrus.Logger) Service {
	return &manager{
		remote:  remote,
		store:   store,
		logger:  logger,
		now:     time.Now,
		loading: true,
	}
}

// Restore re-establishes the identity from a persisted token. Any rejection
// deletes the token and leaves the session anonymous.
func (m *manager) Restore(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.restore")
	defer span.End()
	defer m.setLoading(false)

	token, err := m.store.Load(ctx)
	if errors.Is(err, ErrNoToken) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		m.discardToken(ctx)
		return fmt.Errorf("load token: %w", err)
	}

	if m.expired(token) {
		m.logger.Info("stored token has expired, discarding it")
		m.discardToken(ctx)
		return nil
	}

	user, err := m.remote.Me(ctx)
	if err != nil {
		span.RecordError(err)
		m.logger.WithError(err).Warn("stored token was not accepted, discarding it")
		m.discardToken(ctx)
		return fmt.Errorf("restore session: %w", err)
	}

	m.setUser(user)
	span.SetAttributes(attribute.String("user.id", user.ID))
	return nil
}

func (m *manager) Login(ctx context.Context, email, password string) (*User, error) {
	ctx, span := tracer.Start(ctx, "session.login", trace.WithAttributes(attribute.String("user.email", email)))
	defer span.End()

	token, err := m.remote.Login(ctx, email, password)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := m.store.Save(ctx, token); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist token: %w", err)
	}

	user, err := m.remote.Me(ctx)
	if err != nil {
		span.RecordError(err)
		m.discardToken(ctx)
		return nil, err
	}

	m.setUser(user)
	m.logger.WithFields(logrus.Fields{"user": user.ID, "role": user.Role}).Info("logged in")
	return user, nil
}

// Register creates the account and then logs in with the same credentials.
func (m *manager) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	ctx, span := tracer.Start(ctx, "session.register", trace.WithAttributes(attribute.String("user.email", req.Email)))
	defer span.End()

	if err := m.remote.Register(ctx, req); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return m.Login(ctx, req.Email, req.Password)
}

func (m *manager) Logout(ctx context.Context) error {
	m.setUser(nil)
	if err := m.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Token lets the session act as the API client's token source.
func (m *manager) Token(ctx context.Context) (string, error) {
	token, err := m.store.Load(ctx)
	if errors.Is(err, ErrNoToken) {
		return "", nil
	}
	return token, err
}

func (m *manager) User() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *manager) IsAuthenticated() bool {
	return m.User() != nil
}

// RequireRole gates an operation on the active identity. An empty role only
// requires a login; "admin" accepts any admin-like role; anything else must
// match exactly.
func (m *manager) RequireRole(role Role) (*User, error) {
	user := m.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	requested := strings.ToLower(string(role))
	switch {
	case requested == "":
	case requested == string(RoleAdmin):
		if !user.IsAdmin() {
			return nil, ErrForbidden
		}
	case strings.ToLower(string(user.Role)) != requested:
		return nil, ErrForbidden
	}
	return user, nil
}

func (m *manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *manager) setUser(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
}

func (m *manager) setLoading(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = v
}

func (m *manager) discardToken(ctx context.Context) {
	if err := m.store.Delete(ctx); err != nil {
		m.logger.WithError(err).Warn("failed to delete stored token")
	}
}

// expired inspects the exp claim without verifying the signature. Opaque
// tokens and tokens without exp are left for the server to judge.
func (m *manager) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !m.now().Before(exp.Time)
}
