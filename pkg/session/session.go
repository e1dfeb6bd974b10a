// Package session holds the authentication context shared by the API client
// and the CLI. The token is read from a Store when the session opens and
// cleared again on logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNotAuthenticated is returned by operations that need a token.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// Authenticator performs the remote half of login and logout. *api.Client
// satisfies it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context) error
}

// Option customises a Session.
type Option func(*Session)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is the current user's auth state.
type Session struct {
	mu     sync.RWMutex
	store  Store
	record Record
	active bool
	logger *zap.Logger
}

// Open restores the persisted record, if any.
func Open(ctx context.Context, store Store, options ...Option) (*Session, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{store: store, logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	record, ok, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}
	if ok && record.Token != "" {
		s.record = record
		s.active = true
		s.logger.Debug("session restored", zap.String("username", record.Username))
	}
	return s, nil
}

// Token implements api.TokenSource. An anonymous session yields "".
func (s *Session) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Token, nil
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Username returns the logged-in user, or "".
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Username
}

// Login authenticates through auth and persists the token.
func (s *Session) Login(ctx context.Context, auth Authenticator, username, password string) error {
	token, err := auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("session: login: %w", err)
	}
	record := Record{Username: username, Token: token}
	if err := s.store.Save(ctx, record); err != nil {
		return err
	}
	s.mu.Lock()
	s.record = record
	s.active = true
	s.mu.Unlock()
	s.logger.Info("logged in", zap.String("username", username))
	return nil
}

// Logout tells the backend to drop the token, then clears local state. The
// local teardown happens even when the remote call fails; that failure is
// returned.
func (s *Session) Logout(ctx context.Context, auth Authenticator) error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	var remoteErr error
	if auth != nil {
		if err := auth.Logout(ctx); err != nil {
			remoteErr = fmt.Errorf("session: logout: %w", err)
			s.logger.Warn("remote logout failed", zap.Error(err))
		}
	}
	if err := s.Invalidate(ctx); err != nil {
		return errors.Join(remoteErr, err)
	}
	return remoteErr
}

// Invalidate clears the session without contacting the backend, e.g. after
// a 401.
func (s *Session) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.record = Record{}
	s.active = false
	s.mu.Unlock()
	return s.store.Clear(ctx)
}
