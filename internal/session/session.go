// Package session holds the wallet auth state that the wizard reads its
// address and token from, and signs the wallet in against the backend.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

const persistTimeout = 3 * time.Second

// Session is an injected auth state with an observer list. It is safe for
// concurrent use.
type Session struct {
	id     string
	store  domain.SessionStore
	logger *slog.Logger

	mu        sync.Mutex
	state     domain.AuthState
	observers map[uint64]func(domain.AuthState)
	nextObs   uint64
}

// Option configures a Session.
type Option func(*Session)

// WithStore persists every change through store, keyed by the session ID.
func WithStore(store domain.SessionStore) Option {
	return func(s *Session) { s.store = store }
}

// New creates an empty session.
func New(id string, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		id:        id,
		logger:    logger.With(slog.String("component", "session"), slog.String("session_id", id)),
		observers: make(map[uint64]func(domain.AuthState)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Restore loads persisted state, if a store is configured and has any.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	st, err := s.store.Load(ctx, s.id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.update(func(domain.AuthState) domain.AuthState { return st })
	return nil
}

// AuthState returns a copy of the current state.
func (s *Session) AuthState() domain.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClearAuth drops the token and keeps the address so the next sign-in can
// reuse it.
func (s *Session) ClearAuth() {
	s.update(func(st domain.AuthState) domain.AuthState {
		st.Token = ""
		st.TokenExpiresAt = nil
		return st
	})
}

// SetConnectedAddress records the wallet address. Switching to a different
// account invalidates the token, which was issued to the old one.
func (s *Session) SetConnectedAddress(address string) {
	address = strings.TrimSpace(address)
	s.update(func(st domain.AuthState) domain.AuthState {
		if !strings.EqualFold(st.Address, address) {
			st.Token = ""
			st.TokenExpiresAt = nil
		}
		st.Address = address
		return st
	})
}

// SetToken records a freshly issued token.
func (s *Session) SetToken(token string, expiresAt *time.Time) {
	s.update(func(st domain.AuthState) domain.AuthState {
		st.Token = token
		st.TokenExpiresAt = expiresAt
		return st
	})
}

// Disconnect forgets both address and token, as on a chain switch.
func (s *Session) Disconnect() {
	s.update(func(domain.AuthState) domain.AuthState { return domain.AuthState{} })
}

// Subscribe registers fn for every state change.
func (s *Session) Subscribe(fn func(domain.AuthState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Session) update(fn func(domain.AuthState) domain.AuthState) {
	s.mu.Lock()
	prev := s.state
	next := fn(prev)
	if sameState(prev, next) {
		s.mu.Unlock()
		return
	}
	s.state = next
	observers := make([]func(domain.AuthState), 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.mu.Unlock()

	s.persist(next)
	for _, obs := range observers {
		obs(next)
	}
}

func (s *Session) persist(st domain.AuthState) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if st.Address == "" && st.Token == "" {
		err = s.store.Delete(ctx, s.id)
	} else {
		err = s.store.Save(ctx, s.id, st)
	}
	if err != nil {
		s.logger.Warn("persist auth state failed", slog.String("error", err.Error()))
	}
}

func sameState(a, b domain.AuthState) bool {
	if a.Address != b.Address || a.Token != b.Token {
		return false
	}
	switch {
	case a.TokenExpiresAt == nil && b.TokenExpiresAt == nil:
		return true
	case a.TokenExpiresAt == nil || b.TokenExpiresAt == nil:
		return false
	default:
		return a.TokenExpiresAt.Equal(*b.TokenExpiresAt)
	}
}
