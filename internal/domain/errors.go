package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Verification error taxonomy. Every failure the wizard can hit maps onto
// exactly one of these sentinels.
var (
	ErrEvidenceUnreadable = errors.New("evidence unreadable")
	ErrFieldsMissing      = errors.New("required fields missing")
	ErrEvidenceMismatch   = errors.New("evidence does not match selection")
	ErrCryptoUnavailable  = errors.New("hashing unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUpstream           = errors.New("upstream error")
	ErrUnknown            = errors.New("unknown error")
)

// Infrastructure errors shared by stores and caches.
var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
)

// ErrorKind is the stable, serialisable name of an error in the taxonomy.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindEvidenceUnreadable ErrorKind = "evidence_unreadable"
	ErrorKindFieldsMissing      ErrorKind = "fields_missing"
	ErrorKindEvidenceMismatch   ErrorKind = "evidence_mismatch"
	ErrorKindCryptoUnavailable  ErrorKind = "crypto_unavailable"
	ErrorKindUnauthorized       ErrorKind = "unauthorized"
	ErrorKindUpstream           ErrorKind = "upstream_error"
	ErrorKindUnknown            ErrorKind = "unknown"
)

// KindOf classifies err. A nil error has kind ErrorKindNone; anything not in
// the taxonomy is ErrorKindUnknown.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrEvidenceUnreadable):
		return ErrorKindEvidenceUnreadable
	case errors.Is(err, ErrFieldsMissing):
		return ErrorKindFieldsMissing
	case errors.Is(err, ErrEvidenceMismatch):
		return ErrorKindEvidenceMismatch
	case errors.Is(err, ErrCryptoUnavailable):
		return ErrorKindCryptoUnavailable
	case errors.Is(err, ErrUnauthorized):
		return ErrorKindUnauthorized
	case errors.Is(err, ErrUpstream):
		return ErrorKindUpstream
	default:
		return ErrorKindUnknown
	}
}

// APIError is a non-2xx response from the insurance backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is see 401 as ErrUnauthorized and every other status as
// ErrUpstream.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return ErrUpstream
}
