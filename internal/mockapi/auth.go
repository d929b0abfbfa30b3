// internal/mockapi/auth.go
package mockapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

var errUserExists = errors.New("User already exists")

// Argon2id cost for stored credentials.
const (
	credentialTime    = 2
	credentialMemory  = 19 * 1024
	credentialThreads = 1
	credentialKeyLen  = 32
)

var errMalformedCredential = errors.New("malformed credential")

// newCredential encodes password as "argon2id$<salt>$<key>".
func newCredential(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, credentialTime, credentialMemory, credentialThreads, credentialKeyLen)
	enc := base64.RawStdEncoding
	return "argon2id$" + enc.EncodeToString(salt) + "$" + enc.EncodeToString(key), nil
}

func credentialMatches(credential, password string) (bool, error) {
	parts := strings.Split(credential, "$")
	if len(parts) != 3 || parts[0] != "argon2id" {
		return false, errMalformedCredential
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", errMalformedCredential, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("%w: key: %v", errMalformedCredential, err)
	}
	got := argon2.IDKey([]byte(password), salt, credentialTime, credentialMemory, credentialThreads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func (s *Server) createAccount(email, password, role, firstName, lastName string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, errors.New("email and password are required")
	}

	credential, err := newCredential(password)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[email]; exists {
		return User{}, errUserExists
	}

	a := &account{
		user: User{
			ID:        uuid.NewString(),
			Email:     email,
			Role:      role,
			FirstName: firstName,
			LastName:  lastName,
		},
		credential: credential,
	}
	s.accounts[email] = a
	return a.user, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.createAccount(req.Email, req.Password, "user", req.FirstName, req.LastName)
	switch {
	case errors.Is(err, errUserExists):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.Allow() {
		http.Error(w, "Too many login attempts", http.StatusTooManyRequests)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.RLock()
	a, ok := s.accounts[strings.ToLower(strings.TrimSpace(req.Email))]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	valid, err := credentialMatches(a.credential, req.Password)
	if err != nil || !valid {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.issueToken(a)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())

	s.mu.RLock()
	a, ok := s.accounts[c.Email]
	s.mu.RUnlock()
	if !ok || a.user.ID != c.Subject {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, a.user)
}
