package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/liqguard/internal/crypto"
	"github.com/alanyoungcy/liqguard/internal/domain"
)

// Verifier sends a verification request to the insurance backend.
type Verifier interface {
	VerifyOrder(ctx context.Context, token string, req domain.VerificationRequest) (*domain.VerificationResult, error)
}

// Session is the auth collaborator the controller reads the wallet and token
// from. ClearAuth drops the token and keeps the address.
type Session interface {
	AuthState() domain.AuthState
	ClearAuth()
}

// Authenticator obtains a fresh token through the wallet.
type Authenticator interface {
	SignIn(ctx context.Context) (domain.AuthState, error)
}

// Controller builds verification requests from wizard state and sends them.
// It holds no wizard state itself.
type Controller struct {
	verifier Verifier
	session  Session
	auth     Authenticator
	hasher   crypto.Hasher
	logger   *slog.Logger
	now      func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithAuthenticator lets the controller sign in once when the session has no
// valid token. Without it a missing token fails the submission.
func WithAuthenticator(a Authenticator) ControllerOption {
	return func(c *Controller) { c.auth = a }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController creates a Controller. A nil hasher makes every submission
// fail with domain.ErrCryptoUnavailable.
func NewController(v Verifier, sess Session, hasher crypto.Hasher, logger *slog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		verifier: v,
		session:  sess,
		hasher:   hasher,
		logger:   logger.With(slog.String("component", "submission_controller")),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Prepare checks every precondition and builds the request, digests
// included. It makes no network calls.
func (c *Controller) Prepare(s State) (domain.VerificationRequest, error) {
	if missing := MissingFields(s); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = string(f)
		}
		err := fmt.Errorf("%w: %s", domain.ErrFieldsMissing, strings.Join(names, ", "))
		if m := blockingMismatch(s); m != domain.MismatchNone {
			err = fmt.Errorf("%w: %w (%s)", err, domain.ErrEvidenceMismatch, m)
		}
		return domain.VerificationRequest{}, err
	}

	sel := s.Selection
	orderHash, err := crypto.OrderHash(c.hasher, sel.OrderID, sel.PairID)
	if err != nil {
		return domain.VerificationRequest{}, cryptoError("order hash", err)
	}
	evidenceDigest, err := crypto.EvidenceDigest(c.hasher, s.Evidence.RawText)
	if err != nil {
		return domain.VerificationRequest{}, cryptoError("evidence digest", err)
	}

	return domain.VerificationRequest{
		Exchange:       sel.ExchangeID,
		Pair:           sel.PairID,
		OrderRef:       sel.OrderID,
		Wallet:         c.session.AuthState().Address,
		SKU:            sel.SKUCode,
		Environment:    sel.EnvironmentID,
		Principal:      sel.Principal.Value,
		Leverage:       sel.Leverage.Value,
		OrderHash:      orderHash,
		EvidenceDigest: evidenceDigest,
	}, nil
}

func cryptoError(what string, err error) error {
	if errors.Is(err, domain.ErrCryptoUnavailable) {
		return fmt.Errorf("wizard: %s: %w", what, err)
	}
	return fmt.Errorf("wizard: %s: %w: %v", what, domain.ErrCryptoUnavailable, err)
}

// Dispatch sends req with the session token. A 401 clears the session token
// and is returned as is; the request is never retried.
func (c *Controller) Dispatch(ctx context.Context, req domain.VerificationRequest) (*domain.VerificationResult, error) {
	auth := c.session.AuthState()
	if !auth.TokenValid(c.now()) {
		if c.auth == nil {
			return nil, fmt.Errorf("wizard: %w: no valid session token", domain.ErrUnauthorized)
		}
		var err error
		auth, err = c.auth.SignIn(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				return nil, fmt.Errorf("wizard: sign in: %w", err)
			}
			return nil, fmt.Errorf("wizard: sign in: %w: %v", domain.ErrUnauthorized, err)
		}
	}
	if auth.Address != "" {
		req.Wallet = auth.Address
	}
	if req.Wallet == "" {
		return nil, fmt.Errorf("wizard: %w: no wallet connected", domain.ErrUnauthorized)
	}

	res, err := c.verifier.VerifyOrder(ctx, auth.Token, req)
	if err != nil {
		var apiErr *domain.APIError
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			c.session.ClearAuth()
			c.logger.Warn("verification rejected, session token cleared",
				slog.String("wallet", req.Wallet),
				slog.String("order_ref", req.OrderRef),
			)
		case errors.As(err, &apiErr):
			c.logger.Error("verification upstream error",
				slog.Int("status", apiErr.Status),
				slog.String("message", apiErr.Message),
				slog.String("order_ref", req.OrderRef),
			)
		default:
			c.logger.Error("verification request failed",
				slog.String("error", err.Error()),
				slog.String("order_ref", req.OrderRef),
			)
		}
		return nil, fmt.Errorf("wizard: verify: %w", err)
	}

	if res == nil {
		return nil, fmt.Errorf("wizard: verify: empty response: %w", domain.ErrUnknown)
	}
	out := *res
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.Request = req
	if out.ProcessedAt.IsZero() {
		out.ProcessedAt = c.now().UTC()
	}
	return &out, nil
}

// Describe converts a submission error into the kind, fallback message and
// HTTP status recorded in wizard state.
func Describe(err error) (domain.ErrorKind, string, int) {
	kind := domain.KindOf(err)
	status := 0
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.Status
	}

	var msg string
	switch kind {
	case domain.ErrorKindUnauthorized:
		msg = "Your session has expired. Please sign in again."
	case domain.ErrorKindFieldsMissing:
		msg = "Some required fields are missing or invalid."
	case domain.ErrorKindCryptoUnavailable:
		msg = "Secure hashing is unavailable, so the request cannot be signed."
	case domain.ErrorKindUpstream:
		if apiErr != nil && apiErr.Message != "" {
			msg = apiErr.Message
		} else {
			msg = "The verification service returned an error."
		}
	default:
		msg = "Verification failed. Please try again."
	}
	return kind, msg, status
}
