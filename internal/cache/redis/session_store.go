package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// SessionStore implements domain.SessionStore. Each session's auth state is
// one JSON value with a sliding TTL.
type SessionStore struct {
	c   *Client
	ttl time.Duration
}

// NewSessionStore creates a SessionStore whose entries expire ttl after the
// last write. A zero ttl keeps entries forever.
func NewSessionStore(c *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{c: c, ttl: ttl}
}

// Save writes state for sessionID.
func (s *SessionStore) Save(ctx context.Context, sessionID string, state domain.AuthState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: marshal session %s: %w", sessionID, err)
	}
	if err := s.c.rdb.Set(ctx, s.c.key("session", sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save session %s: %w", sessionID, err)
	}
	return nil
}

// Load reads state for sessionID, or domain.ErrNotFound.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (domain.AuthState, error) {
	data, err := s.c.rdb.Get(ctx, s.c.key("session", sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AuthState{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AuthState{}, fmt.Errorf("redis: load session %s: %w", sessionID, err)
	}
	var state domain.AuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.AuthState{}, fmt.Errorf("redis: decode session %s: %w", sessionID, err)
	}
	return state, nil
}

// Delete removes sessionID.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.c.rdb.Del(ctx, s.c.key("session", sessionID)).Err(); err != nil {
		return fmt.Errorf("redis: delete session %s: %w", sessionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
