// Package insure is the REST client for the insurance backend: wallet
// sign-in, the SKU catalog and order verification.
package insure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/liqguard/internal/crypto"
	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/metrics"
)

const maxErrorMessage = 512

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	Partner           *crypto.PartnerAuth
	Logger            *slog.Logger
}

// Client talks to the insurance backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	partner    *crypto.PartnerAuth
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		partner:    opts.Partner,
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "insure_client")),
	}
}

// GetNonce asks the backend for a sign-in challenge for address.
func (c *Client) GetNonce(ctx context.Context, address string) (domain.AuthChallenge, error) {
	params := url.Values{}
	params.Set("address", address)

	body, err := c.do(ctx, "nonce", http.MethodGet, "/api/auth/nonce?"+params.Encode(), "", nil)
	if err != nil {
		return domain.AuthChallenge{}, fmt.Errorf("insure: get nonce: %w", err)
	}
	var out APINonce
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.AuthChallenge{}, fmt.Errorf("insure: decode nonce: %w", err)
	}
	if out.Nonce == "" {
		return domain.AuthChallenge{}, errors.New("insure: decode nonce: empty nonce")
	}
	return domain.AuthChallenge{Nonce: out.Nonce, Message: out.Message}, nil
}

// VerifySignature exchanges a signed nonce for a session token.
func (c *Client) VerifySignature(ctx context.Context, address, signature, nonce string) (domain.AuthGrant, error) {
	body, err := c.do(ctx, "auth_verify", http.MethodPost, "/api/auth/verify", "", APIVerifyAuthRequest{
		Address:   address,
		Signature: signature,
		Nonce:     nonce,
	})
	if err != nil {
		return domain.AuthGrant{}, fmt.Errorf("insure: verify signature: %w", err)
	}
	var out APIToken
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.AuthGrant{}, fmt.Errorf("insure: decode token: %w", err)
	}
	return domain.AuthGrant{Token: out.Token, ExpiresAt: out.ExpiresAt}, nil
}

// ListSKUs returns the product catalog. Both a bare array and an object
// with a "skus" array are accepted.
func (c *Client) ListSKUs(ctx context.Context) ([]domain.SKU, error) {
	body, err := c.do(ctx, "skus", http.MethodGet, "/api/skus", "", nil)
	if err != nil {
		return nil, fmt.Errorf("insure: list skus: %w", err)
	}

	var items []APISKU
	if err := json.Unmarshal(body, &items); err != nil {
		var wrapped struct {
			SKUs []APISKU `json:"skus"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, fmt.Errorf("insure: decode skus: %w", err)
		}
		items = wrapped.SKUs
	}

	skus := make([]domain.SKU, 0, len(items))
	for _, it := range items {
		if it.Code == "" {
			continue
		}
		label := it.Label
		if label == "" {
			label = it.Code
		}
		skus = append(skus, domain.SKU{Code: it.Code, Label: label, Description: it.Description})
	}
	return skus, nil
}

// VerifyOrder submits a verification request with the bearer token.
func (c *Client) VerifyOrder(ctx context.Context, token string, req domain.VerificationRequest) (*domain.VerificationResult, error) {
	body, err := c.do(ctx, "verify", http.MethodPost, "/api/verify", token, req)
	if err != nil {
		return nil, fmt.Errorf("insure: verify order: %w", err)
	}
	var out APIVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("insure: decode verification: %w", err)
	}
	if out.Status == "" {
		return nil, errors.New("insure: decode verification: missing status")
	}
	return out.ToDomainResult(req), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// do throttles, signs, sends and reads one request. endpoint labels metrics.
func (c *Client) do(ctx context.Context, endpoint, method, path, token string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.partner != nil {
		for k, v := range c.partner.Headers(method, path, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	metrics.BackendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("backend request",
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx responses to *domain.APIError, which unwraps
// to the matching domain sentinel.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return &domain.APIError{Status: statusCode, Message: errorMessage(body)}
}

func errorMessage(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage] + "..."
	}
	return msg
}
