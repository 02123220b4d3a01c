// internal/session/session.go
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"marketplace-console/internal/common/errors"
	"marketplace-console/internal/common/logger"

	"github.com/golang-jwt/jwt/v5"
)

// API is the part of the REST collaborator the session talks to.
type API interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
}

// Session is the explicit auth handle passed to every component that needs
// the current user. It is safe for concurrent use.
type Session struct {
	api    API
	store  TokenStore
	logger logger.Logger
	now    func() time.Time

	mu        sync.RWMutex
	user      *User
	observers map[int]func(*User)
	order     []int
	nextID    int
}

func New(api API, store TokenStore, log logger.Logger) *Session {
	return &Session{
		api:       api,
		store:     store,
		logger:    logger.ForComponent(log, "session"),
		now:       time.Now,
		observers: make(map[int]func(*User)),
	}
}

// WithClock replaces the clock used for token expiry checks.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// Current returns a copy of the signed-in user, or nil.
func (s *Session) Current() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.clone()
}

// Token reads the persisted bearer token. It satisfies restclient.TokenSource.
func (s *Session) Token(ctx context.Context) (string, error) {
	return s.store.Load(ctx)
}

// OnChange registers fn to be called with the new user (nil when signed out)
// after every login, successful auth check and logout.
func (s *Session) OnChange(fn func(*User)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.observers, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Login exchanges credentials for a token and user.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.NewValidationError("email", "email is required")
	}
	if password == "" {
		return nil, errors.NewValidationError("password", "password is required")
	}

	var resp LoginResponse
	if err := s.api.Post(ctx, "/auth/login", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		s.logger.Warn("login failed", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.NewValidationError("token", "login response did not include a token")
	}

	if err := s.store.Save(ctx, resp.Token); err != nil {
		return nil, errors.Normalize(err)
	}

	user := resp.User
	s.logger.Info("logged in", map[string]interface{}{
		"userId": user.ID,
		"role":   string(user.Role),
	})
	s.setUser(&user)
	return user.clone(), nil
}

// meResponse accepts both {"user": {...}} and a bare user object.
type meResponse struct {
	User
	Wrapped *User `json:"user"`
}

func (m *meResponse) UnmarshalJSON(data []byte) error {
	var probe struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if len(probe.User) > 0 && string(probe.User) != "null" {
		m.Wrapped = &User{}
		return json.Unmarshal(probe.User, m.Wrapped)
	}
	return json.Unmarshal(data, &m.User)
}

func (m *meResponse) user() User {
	if m.Wrapped != nil {
		return *m.Wrapped
	}
	return m.User
}

// CheckAuth validates the persisted token. An expired token is cleared
// without contacting the server; a 401 from /auth/me clears it as well.
func (s *Session) CheckAuth(ctx context.Context) (*User, error) {
	token, err := s.store.Load(ctx)
	if err != nil {
		return nil, errors.Normalize(err)
	}
	if token == "" {
		s.setUser(nil)
		return nil, errors.NewUnauthenticatedError("no token stored")
	}

	if exp, ok := TokenExpiry(token); ok && !exp.After(s.now()) {
		s.logger.Info("stored token expired", map[string]interface{}{
			"expiredAt": exp.Format(time.RFC3339),
		})
		s.clear(ctx)
		return nil, errors.NewUnauthenticatedError("token expired")
	}

	var resp meResponse
	if err := s.api.Get(ctx, "/auth/me", &resp); err != nil {
		if errors.HasCode(err, errors.ErrCodeUnauthenticated) {
			s.clear(ctx)
		}
		return nil, err
	}

	user := resp.user()
	s.setUser(&user)
	return user.clone(), nil
}

// Logout clears the token and user. Calling it while signed out is a no-op
// apart from clearing the store again.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return errors.Normalize(err)
	}
	s.mu.RLock()
	signedIn := s.user != nil
	s.mu.RUnlock()
	if signedIn {
		s.logger.Info("logged out", nil)
		s.setUser(nil)
	}
	return nil
}

func (s *Session) clear(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear token", map[string]interface{}{"error": err.Error()})
	}
	s.setUser(nil)
}

func (s *Session) setUser(u *User) {
	s.mu.Lock()
	if s.user == nil && u == nil {
		s.mu.Unlock()
		return
	}
	s.user = u.clone()
	observers := make([]func(*User), 0, len(s.order))
	for _, id := range s.order {
		observers = append(observers, s.observers[id])
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(u.clone())
	}
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// ok is false when the token is not a JWT or carries no exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
