package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/liqguard/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(Defaults()) = %v", err)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := writeFile(t, `
mode = "verify"

[api]
base_url = "https://backend.test"
timeout = "5s"

[wizard]
submit_limit = 2
language = "es"
`)
	t.Setenv("LIQGUARD_WIZARD_SUBMIT_LIMIT", "9")
	t.Setenv("LIQGUARD_WIZARD_SERVER_SIGNIN", "true")
	t.Setenv("LIQGUARD_SERVER_CORS_ORIGINS", "https://a.test, https://b.test,")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "verify" || cfg.API.BaseURL != "https://backend.test" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.API.Timeout.Duration != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.API.Timeout.Duration)
	}
	if cfg.Wizard.SubmitLimit != 9 {
		t.Fatalf("submit_limit = %d, want env override 9", cfg.Wizard.SubmitLimit)
	}
	if !cfg.Wizard.ServerSignIn {
		t.Fatal("server_signin env override not applied")
	}
	if cfg.Wizard.Language != "es" || cfg.Wizard.SessionTTL.Duration != 30*time.Minute {
		t.Fatalf("wizard = %+v", cfg.Wizard)
	}
	if got := cfg.Server.CORSOrigins; len(got) != 2 || got[1] != "https://b.test" {
		t.Fatalf("cors = %v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "server" || cfg.Server.Port != 8000 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "trade"
	cfg.API.BaseURL = "not a url"
	cfg.API.PartnerKey = "k"
	cfg.Wallet.SealedKeyPath = "/keys/wallet.json"
	cfg.Notify.Events = []string{"order_filled"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil")
	}
	for _, want := range []string{"mode", "api.base_url", "partner_secret", "key_password", "order_filled"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.API.PartnerSecret = "shh"
	cfg.Server.APIKey = "operator"

	red := config.RedactedConfig(&cfg)
	if red.Wallet.PrivateKey != "***" || red.API.PartnerSecret != "***" || red.Server.APIKey != "***" {
		t.Fatalf("secrets not redacted: %+v", red)
	}
	if red.Redis.Password != "" {
		t.Fatalf("empty secret redacted to %q", red.Redis.Password)
	}
	red.Server.CORSOrigins[0] = "mutated"
	if cfg.Server.CORSOrigins[0] == "mutated" {
		t.Fatal("redacted copy shares CORS slice with original")
	}
	if cfg.Wallet.PrivateKey != "0xdeadbeef" {
		t.Fatal("original mutated")
	}
}
