package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alanyoungcy/liqguard/internal/crypto"
	"github.com/alanyoungcy/liqguard/internal/domain"
)

// Wallet is the wallet provider: it yields the account address and signs
// text with it.
type Wallet interface {
	Connect(ctx context.Context) (string, error)
	SignMessage(ctx context.Context, text string) (string, error)
}

// AuthAPI is the backend's nonce and signature verification pair.
type AuthAPI interface {
	GetNonce(ctx context.Context, address string) (domain.AuthChallenge, error)
	VerifySignature(ctx context.Context, address, signature, nonce string) (domain.AuthGrant, error)
}

// Authenticator signs a wallet in: nonce, personal_sign, verify.
type Authenticator struct {
	session *Session
	wallet  Wallet
	api     AuthAPI
	logger  *slog.Logger

	// Latest challenge handed out, checked locally before the backend sees
	// the signature.
	mu      sync.Mutex
	nonce   string
	message string
}

// NewAuthenticator creates an Authenticator that writes into session. wallet
// may be nil when signatures come from outside (a browser wallet); SignIn
// then fails and callers use Challenge and Complete.
func NewAuthenticator(session *Session, wallet Wallet, api AuthAPI, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		session: session,
		wallet:  wallet,
		api:     api,
		logger:  logger.With(slog.String("component", "authenticator")),
	}
}

// SignIn obtains a new token with the configured wallet. The address always
// comes from the wallet; a session already bound to another account is
// refused rather than signed for.
func (a *Authenticator) SignIn(ctx context.Context) (domain.AuthState, error) {
	if a.wallet == nil {
		return domain.AuthState{}, fmt.Errorf("session: sign in: %w: no wallet configured", domain.ErrUnauthorized)
	}
	address, err := a.wallet.Connect(ctx)
	if err != nil {
		return domain.AuthState{}, fmt.Errorf("session: connect wallet: %w", err)
	}
	if known := a.session.AuthState().Address; known != "" && !strings.EqualFold(known, address) {
		return domain.AuthState{}, fmt.Errorf("session: sign in: %w: wallet %s cannot sign for %s", domain.ErrUnauthorized, address, known)
	}

	challenge, err := a.Challenge(ctx, address)
	if err != nil {
		return domain.AuthState{}, err
	}
	signature, err := a.wallet.SignMessage(ctx, challenge.Message)
	if err != nil {
		return domain.AuthState{}, fmt.Errorf("session: sign message: %w", err)
	}
	return a.Complete(ctx, address, signature, challenge.Nonce)
}

// Challenge records address as the connected account and asks the backend
// for a nonce. The returned Message is the exact text to sign.
func (a *Authenticator) Challenge(ctx context.Context, address string) (domain.AuthChallenge, error) {
	a.session.SetConnectedAddress(address)

	challenge, err := a.api.GetNonce(ctx, address)
	if err != nil {
		return domain.AuthChallenge{}, fmt.Errorf("session: get nonce: %w", err)
	}
	if challenge.Message == "" {
		challenge.Message = SignInMessage(address, challenge.Nonce)
	}
	a.mu.Lock()
	a.nonce, a.message = challenge.Nonce, challenge.Message
	a.mu.Unlock()
	return challenge, nil
}

// Complete exchanges a signed challenge for a token and stores it. When nonce
// belongs to the latest Challenge the signature must recover to address.
func (a *Authenticator) Complete(ctx context.Context, address, signature, nonce string) (domain.AuthState, error) {
	if err := a.checkSignature(address, signature, nonce); err != nil {
		return domain.AuthState{}, err
	}
	if !strings.EqualFold(a.session.AuthState().Address, address) {
		a.session.SetConnectedAddress(address)
	}
	grant, err := a.api.VerifySignature(ctx, address, signature, nonce)
	if err != nil {
		return domain.AuthState{}, fmt.Errorf("session: verify signature: %w", err)
	}
	if grant.Token == "" {
		return domain.AuthState{}, fmt.Errorf("session: verify signature: %w: empty token", domain.ErrUnauthorized)
	}

	expiresAt := grant.ExpiresAt
	if expiresAt == nil {
		expiresAt = TokenExpiry(grant.Token)
	}
	a.session.SetToken(grant.Token, expiresAt)

	attrs := []any{slog.String("address", address)}
	if expiresAt != nil {
		attrs = append(attrs, slog.Time("expires_at", *expiresAt))
	}
	a.logger.Info("wallet signed in", attrs...)
	return a.session.AuthState(), nil
}

func (a *Authenticator) checkSignature(address, signature, nonce string) error {
	a.mu.Lock()
	message := ""
	if nonce != "" && nonce == a.nonce {
		message = a.message
		a.nonce, a.message = "", ""
	}
	a.mu.Unlock()
	if message == "" {
		return nil
	}

	signer, err := crypto.RecoverPersonal(message, signature)
	if err != nil {
		return fmt.Errorf("session: verify signature: %w: %v", domain.ErrUnauthorized, err)
	}
	if !strings.EqualFold(signer.Hex(), address) {
		return fmt.Errorf("session: verify signature: %w: signed by %s, not %s", domain.ErrUnauthorized, signer.Hex(), address)
	}
	return nil
}

// SignInMessage is the text signed when the backend does not supply one.
func SignInMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to liqguard\n\nAddress: %s\nNonce: %s", address, nonce)
}

// TokenExpiry reads the exp claim of a JWT without verifying it. The backend
// verifies tokens; the client only needs to know when to stop using one.
// Non-JWT tokens and tokens without exp yield nil.
func TokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time.UTC()
	return &t
}
