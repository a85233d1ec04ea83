// Package session replaces the browser's global "current user" with an
// explicit object: set on login or register, cleared on logout or on any
// 401 from the backend.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/clock"
	"github.com/campe111/turnero/internal/models"
)

const (
	ReasonLogout       = "logout"
	ReasonUnauthorized = "unauthorized"
	ReasonExpired      = "expired"
)

type Session struct {
	mu      sync.RWMutex
	store   Store
	clock   clock.Clock
	logger  *zap.Logger
	token   string
	user    models.User
	expires time.Time
	hooks   []func(reason string)
}

// New restores any credentials found in store. A store that cannot be
// read yields an empty session and the error, so callers can warn and
// carry on unauthenticated.
func New(store Store, clk clock.Clock, logger *zap.Logger) (*Session, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{store: store, clock: clk, logger: logger}
	creds, found, err := store.Load()
	if err != nil {
		return s, err
	}
	if found {
		s.token = creds.Token
		s.user = models.User{ID: creds.UserID, Name: creds.Name, Email: creds.Email, IsAdmin: creds.IsAdmin}
		s.expires = tokenExpiry(creds.Token)
	}
	return s, nil
}

func (s *Session) Set(token string, user models.User) error {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.expires = tokenExpiry(token)
	s.mu.Unlock()

	return s.store.Save(Credentials{
		Token:   token,
		UserID:  user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		SavedAt: s.clock.Now().UTC(),
	})
}

// UpdateUser refreshes the cached user, e.g. after /auth/me, keeping the
// current token.
func (s *Session) UpdateUser(user models.User) error {
	s.mu.Lock()
	token := s.token
	s.user = user
	s.mu.Unlock()
	if token == "" {
		return nil
	}
	return s.Set(token, user)
}

// Clear drops the token and user, deletes stored credentials and runs the
// OnCleared hooks with reason. Hooks only run when a token was held.
func (s *Session) Clear(reason string) {
	s.clear(reason, "")
}

// clear resets the session. A non-empty onlyToken limits it to that token,
// so an expiry noticed late cannot wipe a newer login.
func (s *Session) clear(reason, onlyToken string) {
	s.mu.Lock()
	if onlyToken != "" && s.token != onlyToken {
		s.mu.Unlock()
		return
	}
	held := s.token != ""
	s.token = ""
	s.user = models.User{}
	s.expires = time.Time{}
	var hooks []func(string)
	if held {
		hooks = append(hooks, s.hooks...)
	}
	s.mu.Unlock()

	if err := s.store.Delete(); err != nil {
		s.logger.Warn("delete stored credentials", zap.Error(err))
	}
	if held {
		s.logger.Info("session cleared", zap.String("reason", reason))
	}
	for _, hook := range hooks {
		hook(reason)
	}
}

func (s *Session) OnCleared(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return models.User{}, false
	}
	return s.user, true
}

// IsAuthenticated reports whether a token is held and, for JWTs, not yet
// past its exp claim. An expired token is cleared on the spot with
// ReasonExpired, so the stored credentials go too and the hooks fire.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	token, expires := s.token, s.expires
	s.mu.RUnlock()
	if token == "" {
		return false
	}
	if expires.IsZero() || s.clock.Now().Before(expires) {
		return true
	}
	s.clear(ReasonExpired, token)
	return false
}

func (s *Session) IsAdmin() bool {
	if !s.IsAuthenticated() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsAdmin
}

// ExpiresAt is the token's exp claim; ok is false for opaque tokens.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expires, !s.expires.IsZero()
}

// tokenExpiry reads exp without verifying the signature. Verification
// is the backend's job; the client only wants to avoid a doomed request.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
