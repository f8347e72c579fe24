package crosscheck_test

import (
	"testing"

	"github.com/alanyoungcy/liqguard/internal/crosscheck"
	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/evidence"
)

var (
	btcUSDTSwap = &domain.Pair{ID: "BTC-USDT-SWAP", ExchangeID: "okx", InstType: "SWAP"}
	btcUSDCSwap = &domain.Pair{ID: "BTC-USDC-SWAP", ExchangeID: "okx", InstType: "SWAP"}
	btcUSDTPerp = &domain.Pair{ID: "BTCUSDT", ExchangeID: "binance", ContractType: "PERPETUAL"}
)

func parse(t *testing.T, text string) *domain.Evidence {
	t.Helper()
	ev, err := evidence.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return ev
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		pair     *domain.Pair
		evidence string
		want     domain.Mismatch
	}{
		{"matching okx swap", btcUSDTSwap, `{"instId":"BTC-USDT-SWAP","instType":"SWAP"}`, domain.MismatchNone},
		{"different pair", btcUSDCSwap, `{"instId":"BTC-USDT-SWAP","instType":"SWAP"}`, domain.MismatchPair},
		{"absent contract type", btcUSDTPerp, `{"symbol":"BTCUSDT"}`, domain.MismatchNone},
		{"empty evidence", btcUSDTSwap, `{}`, domain.MismatchParsedPairMissing},
		{"punctuation ignored", btcUSDTPerp, `{"symbol":"btc/usdt"}`, domain.MismatchNone},
		{"inst type differs", btcUSDTSwap, `{"instId":"BTC-USDT-SWAP","instType":"FUTURES"}`, domain.MismatchInstType},
		{"contract type differs", btcUSDTPerp, `{"symbol":"BTCUSDT","contractType":"CURRENT_QUARTER"}`, domain.MismatchContractType},
		{"pair checked before types", btcUSDCSwap, `{"instId":"ETH-USDT-SWAP","instType":"FUTURES"}`, domain.MismatchPair},
		{"punctuation-only pair", btcUSDTSwap, `{"instId":"--"}`, domain.MismatchParsedPairMissing},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := crosscheck.Detect(tc.pair, parse(t, tc.evidence))
			if !ok {
				t.Fatal("verdict should be determinable")
			}
			if got != tc.want {
				t.Fatalf("Detect = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetectNotDeterminable(t *testing.T) {
	ev := parse(t, `{"instId":"BTC-USDT-SWAP"}`)
	if _, ok := crosscheck.Detect(nil, ev); ok {
		t.Fatal("no pair should not be determinable")
	}
	if _, ok := crosscheck.Detect(btcUSDTSwap, nil); ok {
		t.Fatal("no evidence should not be determinable")
	}
}

func TestDetectDeterministic(t *testing.T) {
	ev := parse(t, `{"instId":"BTC-USDT-SWAP","instType":"OPTION"}`)
	first, _ := crosscheck.Detect(btcUSDTSwap, ev)
	for i := 0; i < 50; i++ {
		if got, _ := crosscheck.Detect(btcUSDTSwap, ev); got != first {
			t.Fatalf("iteration %d: %q != %q", i, got, first)
		}
	}
}
