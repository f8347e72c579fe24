package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VerificationRequest is what the wizard sends to the verification endpoint.
// OrderHash and EvidenceDigest are lowercase hex SHA-256 digests.
type VerificationRequest struct {
	Exchange       string          `json:"exchange"`
	Pair           string          `json:"pair"`
	OrderRef       string          `json:"orderRef"`
	Wallet         string          `json:"wallet"`
	SKU            string          `json:"sku"`
	Environment    string          `json:"environment"`
	Principal      decimal.Decimal `json:"principal"`
	Leverage       decimal.Decimal `json:"leverage"`
	OrderHash      string          `json:"orderHash"`
	EvidenceDigest string          `json:"evidenceDigest"`
}

// Quote is the optional premium/payout offer attached to an eligible result.
type Quote struct {
	Premium  decimal.Decimal `json:"premium"`
	Payout   decimal.Decimal `json:"payout"`
	Currency string          `json:"currency"`
}

// VerificationStatusFail is the only upstream status that marks an order as
// ineligible.
const VerificationStatusFail = "fail"

// VerificationResult is a successful round trip through the verification
// endpoint. It is immutable once produced.
type VerificationResult struct {
	ID          string              `json:"id"`
	Request     VerificationRequest `json:"request"`
	Status      string              `json:"status"`
	Eligible    bool                `json:"eligible"`
	Quote       *Quote              `json:"quote,omitempty"`
	PolicyID    string              `json:"policy_id,omitempty"`
	Diagnostics map[string]any      `json:"diagnostics,omitempty"`
	ProcessedAt time.Time           `json:"processed_at"`
}

// AuthState is the wallet session as seen by the wizard. A zero Token means
// the user must sign in again; Address survives token loss.
type AuthState struct {
	Address        string     `json:"address,omitempty"`
	Token          string     `json:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

// TokenValid reports whether a token is present and not expired at now.
func (a AuthState) TokenValid(now time.Time) bool {
	if a.Token == "" {
		return false
	}
	if a.TokenExpiresAt != nil && !now.Before(*a.TokenExpiresAt) {
		return false
	}
	return true
}

// AuthChallenge is the nonce the backend asks the wallet to sign.
type AuthChallenge struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message,omitempty"`
}

// AuthGrant is the session token issued for a verified signature.
type AuthGrant struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
