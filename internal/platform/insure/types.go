package insure

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// APINonce is the response of GET /api/auth/nonce.
type APINonce struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

// APIVerifyAuthRequest is the body of POST /api/auth/verify.
type APIVerifyAuthRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
}

// APIToken is the response of POST /api/auth/verify.
type APIToken struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// APISKU is one catalog entry of GET /api/skus.
type APISKU struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// APIQuote is the optional offer attached to a verification.
type APIQuote struct {
	Premium  decimal.Decimal `json:"premium"`
	Payout   decimal.Decimal `json:"payout"`
	Currency string          `json:"currency"`
}

// APIVerifyResponse is the response of POST /api/verify.
type APIVerifyResponse struct {
	Status      string         `json:"status"`
	Exchange    string         `json:"exchange,omitempty"`
	Pair        string         `json:"pair,omitempty"`
	OrderRef    string         `json:"orderRef,omitempty"`
	Diagnostics map[string]any `json:"diagnostics,omitempty"`
	Quote       *APIQuote      `json:"quote,omitempty"`
	PolicyID    string         `json:"policyId,omitempty"`
	ProcessedAt *time.Time     `json:"processedAt,omitempty"`
}

// ToDomainResult converts the response. Any status other than "fail" is
// eligible.
func (r APIVerifyResponse) ToDomainResult(req domain.VerificationRequest) *domain.VerificationResult {
	res := &domain.VerificationResult{
		Request:     req,
		Status:      r.Status,
		Eligible:    r.Status != domain.VerificationStatusFail,
		PolicyID:    r.PolicyID,
		Diagnostics: r.Diagnostics,
	}
	if r.Quote != nil {
		res.Quote = &domain.Quote{
			Premium:  r.Quote.Premium,
			Payout:   r.Quote.Payout,
			Currency: r.Quote.Currency,
		}
	}
	if r.ProcessedAt != nil {
		res.ProcessedAt = r.ProcessedAt.UTC()
	}
	return res
}

type apiErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
