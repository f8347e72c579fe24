// Package crosscheck compares parsed evidence against the selected pair.
package crosscheck

import (
	"strings"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// Detect returns the mismatch between the selected pair and the evidence.
// The second result is false when no verdict can be reached yet because
// either input is missing.
//
// Checks run in order and the first failure wins: missing evidence pair,
// differing pair, then the pair's declared instrument and contract types.
// A declared type is only enforced when the evidence carries that field.
func Detect(pair *domain.Pair, ev *domain.Evidence) (domain.Mismatch, bool) {
	if pair == nil || ev == nil || pair.ID == "" {
		return domain.MismatchNone, false
	}

	evPair := NormalizeSymbol(ev.Pair)
	if evPair == "" {
		return domain.MismatchParsedPairMissing, true
	}
	if evPair != NormalizeSymbol(pair.ID) {
		return domain.MismatchPair, true
	}
	if differs(pair.InstType, ev.InstType) {
		return domain.MismatchInstType, true
	}
	if differs(pair.ContractType, ev.ContractType) {
		return domain.MismatchContractType, true
	}
	return domain.MismatchNone, true
}

// NormalizeSymbol upper-cases s and drops everything but ASCII letters and
// digits, so "btc-usdt_swap" and "BTCUSDTSWAP" compare equal.
func NormalizeSymbol(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func differs(expected, got string) bool {
	expected = strings.ToUpper(strings.TrimSpace(expected))
	got = strings.ToUpper(strings.TrimSpace(got))
	return expected != "" && got != "" && expected != got
}
