package catalog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/liqguard/internal/catalog"
	"github.com/alanyoungcy/liqguard/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const marketsYAML = `
exchanges:
  - id: okx
    label: OKX
    pairs:
      - id: BTC-USDT-SWAP
        label: BTC/USDT
        inst_type: swap
  - id: bybit
    label: Bybit
    pairs:
      - id: BTCUSDT
        contract_type: linearperpetual
environments:
  - id: mainnet
    label: Mainnet
  - id: bybit-testnet
    label: Bybit Testnet
    exchanges: [bybit]
`

func TestParseMarketsNormalizes(t *testing.T) {
	m, err := catalog.ParseMarkets([]byte(marketsYAML))
	if err != nil {
		t.Fatalf("ParseMarkets: %v", err)
	}
	pairs := m.PairsFor("okx")
	if len(pairs) != 1 || pairs[0].InstType != "SWAP" || pairs[0].ExchangeID != "okx" {
		t.Fatalf("okx pairs = %+v", pairs)
	}
	bybit := m.PairsFor("bybit")
	if bybit[0].Label != "BTCUSDT" || bybit[0].ContractType != "LINEARPERPETUAL" {
		t.Fatalf("bybit pair = %+v", bybit[0])
	}
	if envs := m.EnvironmentsFor("okx"); len(envs) != 1 || envs[0].ID != "mainnet" {
		t.Fatalf("okx envs = %+v", envs)
	}
	if envs := m.EnvironmentsFor("bybit"); len(envs) != 2 {
		t.Fatalf("bybit envs = %+v", envs)
	}
}

func TestParseMarketsRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":            "exchanges: []\n",
		"duplicate pair":   "exchanges:\n  - id: a\n    pairs:\n      - id: X\n      - id: X\n",
		"unknown exchange": "exchanges:\n  - id: a\nenvironments:\n  - id: e\n    exchanges: [b]\n",
		"bad yaml":         "exchanges: [\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := catalog.ParseMarkets([]byte(in)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDefaultMarketsAreValid(t *testing.T) {
	m := catalog.DefaultMarkets()
	for _, ex := range m.Exchanges {
		if len(ex.Pairs) == 0 {
			t.Fatalf("exchange %s has no pairs", ex.ID)
		}
		for _, p := range ex.Pairs {
			if p.ExchangeID != ex.ID {
				t.Fatalf("pair %s exchange = %q", p.ID, p.ExchangeID)
			}
		}
	}
	if envs := m.EnvironmentsFor(""); len(envs) != 1 || envs[0].ID != "mainnet" {
		t.Fatalf("agnostic envs = %+v", envs)
	}
}

func TestWatcherReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.yaml")
	if err := os.WriteFile(path, []byte(marketsYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	store := catalog.NewStore(catalog.DefaultMarkets())
	reloads := 0
	w := catalog.NewWatcher(path, store, discardLogger(), func() { reloads++ })

	if !w.Reload() {
		t.Fatal("first reload should succeed")
	}
	if _, ok := store.Markets().Exchange("bybit"); !ok {
		t.Fatal("store should contain bybit after reload")
	}

	if err := os.WriteFile(path, []byte("exchanges: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w.Reload() {
		t.Fatal("reload of broken file should fail")
	}
	if _, ok := store.Markets().Exchange("bybit"); !ok {
		t.Fatal("previous snapshot should survive a failed reload")
	}
	if reloads != 1 {
		t.Fatalf("onReload called %d times, want 1", reloads)
	}
}

type fakeSKUs struct {
	skus  []domain.SKU
	err   error
	calls int
}

func (f *fakeSKUs) ListSKUs(context.Context) ([]domain.SKU, error) {
	f.calls++
	return f.skus, f.err
}

func TestSKUCatalogFallback(t *testing.T) {
	src := &fakeSKUs{err: errors.New("boom")}
	c := catalog.NewSKUCatalog(src, time.Minute, discardLogger())

	got := c.List(context.Background())
	if len(got) != 1 || got[0].Code != "LIQ-STANDARD" {
		t.Fatalf("fallback = %+v", got)
	}
	c.List(context.Background())
	if src.calls != 2 {
		t.Fatalf("fallback must not be cached; calls = %d", src.calls)
	}
}

func TestSKUCatalogCaches(t *testing.T) {
	src := &fakeSKUs{skus: []domain.SKU{{Code: "LIQ-PRO", Label: "Pro"}}}
	c := catalog.NewSKUCatalog(src, time.Minute, discardLogger())

	for i := 0; i < 3; i++ {
		if got := c.List(context.Background()); len(got) != 1 || got[0].Code != "LIQ-PRO" {
			t.Fatalf("List = %+v", got)
		}
	}
	if src.calls != 1 {
		t.Fatalf("calls = %d, want 1", src.calls)
	}
	c.Invalidate()
	c.List(context.Background())
	if src.calls != 2 {
		t.Fatalf("calls after invalidate = %d, want 2", src.calls)
	}
}
