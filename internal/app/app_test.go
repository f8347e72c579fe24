package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alanyoungcy/liqguard/internal/app"
	"github.com/alanyoungcy/liqguard/internal/config"
	"github.com/alanyoungcy/liqguard/internal/domain"
)

// Well-known development key; address 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266.
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend serves the insurance API. status is the verification status
// it answers with.
func fakeBackend(t *testing.T, status string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/nonce", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"nonce": "n-42"})
	})
	mux.HandleFunc("POST /api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "session-token"})
	})
	mux.HandleFunc("GET /api/skus", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"code":"LIQ-STANDARD","label":"Standard"}]`)
	})
	mux.HandleFunc("POST /api/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "policyId": "pol-77"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func verifyConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Mode = "verify"
	cfg.API.BaseURL = backendURL
	cfg.API.RequestsPerSecond = 0
	cfg.Wallet.PrivateKey = devKey
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &cfg
}

func evidenceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "order.json")
	body := `{"instId":"BTC-USDT-SWAP","instType":"SWAP","ordId":"12345678"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write evidence: %v", err)
	}
	return path
}

func run(t *testing.T, cfg *config.Config, opts app.VerifyOptions) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts.Out = &out
	a := app.New(cfg, discardLogger(), app.WithVerifyOptions(opts))
	defer a.Close()
	err := a.Run(context.Background())
	return out.String(), err
}

func fullOptions(t *testing.T) app.VerifyOptions {
	return app.VerifyOptions{
		Exchange:     "okx",
		Pair:         "BTC-USDT-SWAP",
		OrderID:      "12345678",
		SKU:          "LIQ-STANDARD",
		Environment:  "mainnet",
		Principal:    "1000",
		Leverage:     "10",
		EvidenceFile: evidenceFile(t),
		Language:     "en",
	}
}

func TestVerifyModeEligible(t *testing.T) {
	backend := fakeBackend(t, "pass")
	out, err := run(t, verifyConfig(t, backend.URL), fullOptions(t))
	if err != nil {
		t.Fatalf("Run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "pol-77") {
		t.Fatalf("report does not mention policy:\n%s", out)
	}
}

func TestVerifyModeIneligibleIsStillAVerdict(t *testing.T) {
	backend := fakeBackend(t, "fail")
	out, err := run(t, verifyConfig(t, backend.URL), fullOptions(t))
	if err != nil {
		t.Fatalf("Run: %v\n%s", err, out)
	}
}

func TestVerifyModeMissingFields(t *testing.T) {
	backend := fakeBackend(t, "pass")
	opts := fullOptions(t)
	opts.Leverage = ""

	out, err := run(t, verifyConfig(t, backend.URL), opts)
	if !errors.Is(err, app.ErrNotVerified) {
		t.Fatalf("err = %v, want ErrNotVerified", err)
	}
	if out == "" {
		t.Fatal("no report printed")
	}
}

func TestVerifyModeRequiresWallet(t *testing.T) {
	backend := fakeBackend(t, "pass")
	cfg := verifyConfig(t, backend.URL)
	cfg.Wallet.PrivateKey = ""

	if _, err := run(t, cfg, fullOptions(t)); err == nil || errors.Is(err, app.ErrNotVerified) {
		t.Fatalf("err = %v, want wallet error", err)
	}
}

func TestServerWalletSignInRequiresOptIn(t *testing.T) {
	ctx := context.Background()
	backend := fakeBackend(t, "pass")
	cfg := verifyConfig(t, backend.URL)
	cfg.Mode = "server"

	deps, cleanup, err := app.Wire(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if w := app.ServerWallet(cfg, deps); w != nil {
		t.Fatal("server wallet exposed without wizard.server_signin")
	}
	svc := app.NewWizardService(cfg, deps, app.ServerWallet(cfg, deps), discardLogger())
	live, err := svc.Create(ctx, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.SignIn(ctx, live.Wizard.ID()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("SignIn err = %v, want ErrUnauthorized", err)
	}

	cfg.Wizard.ServerSignIn = true
	svc = app.NewWizardService(cfg, deps, app.ServerWallet(cfg, deps), discardLogger())
	live, err = svc.Create(ctx, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	st, err := svc.SignIn(ctx, live.Wizard.ID())
	if err != nil {
		t.Fatalf("SignIn with opt-in: %v", err)
	}
	if !strings.EqualFold(st.Address, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266") || st.Token != "session-token" {
		t.Fatalf("state = %+v", st)
	}
}
