package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// VerificationStore persists verification results.
type VerificationStore interface {
	Save(ctx context.Context, res VerificationResult) error
	GetByID(ctx context.Context, id string) (VerificationResult, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]VerificationResult, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// SessionStore persists wallet auth state between process restarts, keyed by
// wizard session ID.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, state AuthState) error
	Load(ctx context.Context, sessionID string) (AuthState, error)
	Delete(ctx context.Context, sessionID string) error
}
