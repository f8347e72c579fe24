package wizard_test

import (
	"math/rand"
	"testing"

	"github.com/alanyoungcy/liqguard/internal/catalog"
	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/evidence"
	"github.com/alanyoungcy/liqguard/internal/wizard"
)

var testSKUs = []domain.SKU{catalog.DefaultSKU}

func newState() (domain.Markets, wizard.State) {
	m := catalog.DefaultMarkets()
	return m, wizard.NewState(m, testSKUs)
}

func reduce(m domain.Markets, s wizard.State, actions ...wizard.Action) wizard.State {
	for _, a := range actions {
		s = wizard.Reduce(m, s, a)
	}
	return s
}

func mustEvidence(t *testing.T, text string) *domain.Evidence {
	t.Helper()
	ev, err := evidence.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return ev
}

// withEvidence runs a complete upload cycle through the reducer.
func withEvidence(m domain.Markets, s wizard.State, ev *domain.Evidence) wizard.State {
	gen := s.UploadGen + 1
	return reduce(m, s, wizard.UploadStarted{Gen: gen}, wizard.UploadParsed{Gen: gen, Evidence: ev})
}

func readyState(t *testing.T) (domain.Markets, wizard.State) {
	t.Helper()
	m, s := newState()
	s = reduce(m, s,
		wizard.SetExchange{ID: "okx"},
		wizard.SetPair{ID: "BTC-USDT-SWAP"},
		wizard.SetOrderID{Raw: "order #123456789"},
		wizard.SetSKU{Code: "LIQ-STANDARD"},
		wizard.SetEnvironment{ID: "okx-testnet"},
		wizard.SetPrincipal{Raw: "1000"},
		wizard.SetLeverage{Raw: "20"},
	)
	s = withEvidence(m, s, mustEvidence(t, `{"instId":"BTC-USDT-SWAP","instType":"SWAP"}`))
	if !wizard.SubmitReady(s) {
		t.Fatalf("state should be ready, missing %v", wizard.MissingFields(s))
	}
	return m, s
}

func TestSetOrderIDSanitizes(t *testing.T) {
	m, s := newState()
	s = wizard.Reduce(m, s, wizard.SetOrderID{Raw: "ab12cd34"})
	if s.Selection.OrderID != "1234" {
		t.Fatalf("order id = %q, want 1234", s.Selection.OrderID)
	}
	if s.OrderValid() {
		t.Fatal("4 digits must not be valid")
	}
	s = wizard.Reduce(m, s, wizard.SetOrderID{Raw: "１2-34 56x7"})
	if s.Selection.OrderID != "234567" || !s.OrderValid() {
		t.Fatalf("order id = %q valid=%v", s.Selection.OrderID, s.OrderValid())
	}
}

func TestSetExchangeClearsPairAndFiltersEnvironments(t *testing.T) {
	m, s := newState()
	s = reduce(m, s,
		wizard.SetExchange{ID: "okx"},
		wizard.SetPair{ID: "BTC-USDT-SWAP"},
		wizard.SetEnvironment{ID: "okx-testnet"},
	)
	if s.Selection.PairID != "BTC-USDT-SWAP" || s.Selection.EnvironmentID != "okx-testnet" {
		t.Fatalf("selection = %+v", s.Selection)
	}

	s = wizard.Reduce(m, s, wizard.SetExchange{ID: "binance"})
	if s.Selection.PairID != "" {
		t.Fatalf("pair should be cleared, got %q", s.Selection.PairID)
	}
	if s.Selection.EnvironmentID != "" {
		t.Fatalf("okx-only environment should be cleared, got %q", s.Selection.EnvironmentID)
	}
	for _, env := range s.Environments {
		if !env.SupportsExchange("binance") {
			t.Fatalf("environment %s offered for binance", env.ID)
		}
	}
	if len(s.Pairs) != 2 || s.Pairs[0].ExchangeID != "binance" {
		t.Fatalf("pairs = %+v", s.Pairs)
	}
}

func TestUnknownSelectionsIgnored(t *testing.T) {
	m, s := newState()
	s = wizard.Reduce(m, s, wizard.SetExchange{ID: "okx"})
	before := s

	s = reduce(m, s,
		wizard.SetExchange{ID: "kraken"},
		wizard.SetPair{ID: "BTCUSDT"},
		wizard.SetEnvironment{ID: "binance-testnet"},
		wizard.SetSKU{Code: "LIQ-UNKNOWN"},
	)
	if s.Selection != before.Selection || s.InputRev != before.InputRev {
		t.Fatalf("ignored actions changed state: %+v", s.Selection)
	}
}

func TestPairAlwaysBelongsToExchange(t *testing.T) {
	m, s := newState()
	var ids []string
	for _, ex := range m.Exchanges {
		for _, p := range ex.Pairs {
			ids = append(ids, p.ID)
		}
	}
	exchanges := []string{"okx", "binance", "", "nope"}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 {
			x := exchanges[rng.Intn(len(exchanges))]
			s = wizard.Reduce(m, s, wizard.SetExchange{ID: x})
		} else {
			s = wizard.Reduce(m, s, wizard.SetPair{ID: ids[rng.Intn(len(ids))]})
		}
		if s.Selection.PairID == "" {
			continue
		}
		ex, ok := m.Exchange(s.Selection.ExchangeID)
		if !ok {
			t.Fatalf("step %d: pair %s set without exchange", i, s.Selection.PairID)
		}
		if _, ok := ex.Pair(s.Selection.PairID); !ok {
			t.Fatalf("step %d: pair %s not on %s", i, s.Selection.PairID, ex.ID)
		}
	}
}

func TestNumericFields(t *testing.T) {
	cases := []struct {
		raw  string
		want wizard.NumericStatus
	}{
		{"", wizard.NumericEmpty},
		{"   ", wizard.NumericEmpty},
		{"abc", wizard.NumericInvalid},
		{"0", wizard.NumericInvalid},
		{"-5", wizard.NumericInvalid},
		{"NaN", wizard.NumericInvalid},
		{"Inf", wizard.NumericInvalid},
		{" 12.5 ", wizard.NumericValid},
		{"1e3", wizard.NumericValid},
	}
	for _, tc := range cases {
		if got := wizard.ParseNumeric(tc.raw).Status; got != tc.want {
			t.Errorf("ParseNumeric(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestResultInvalidation(t *testing.T) {
	edits := map[string]func(domain.Markets, wizard.State) wizard.State{
		"pair": func(m domain.Markets, s wizard.State) wizard.State {
			return wizard.Reduce(m, s, wizard.SetPair{ID: "BTC-USDT-SWAP"})
		},
		"order": func(m domain.Markets, s wizard.State) wizard.State {
			return wizard.Reduce(m, s, wizard.SetOrderID{Raw: "9999999"})
		},
		"principal": func(m domain.Markets, s wizard.State) wizard.State {
			return wizard.Reduce(m, s, wizard.SetPrincipal{Raw: "5"})
		},
		"leverage": func(m domain.Markets, s wizard.State) wizard.State {
			return wizard.Reduce(m, s, wizard.SetLeverage{Raw: "3"})
		},
		"reupload": func(m domain.Markets, s wizard.State) wizard.State {
			return wizard.Reduce(m, s, wizard.UploadStarted{Gen: s.UploadGen + 1})
		},
		"clear evidence": func(m domain.Markets, s wizard.State) wizard.State {
			return wizard.Reduce(m, s, wizard.ClearEvidence{})
		},
	}
	for name, edit := range edits {
		t.Run(name, func(t *testing.T) {
			m, s := readyState(t)
			s = reduce(m, s,
				wizard.SubmitStarted{Rev: s.InputRev},
				wizard.SubmitSucceeded{Rev: s.InputRev, Result: &domain.VerificationResult{Status: "pass", Eligible: true}},
			)
			if s.Phase != wizard.PhaseSuccess || s.Result == nil {
				t.Fatalf("expected success, got phase %s", s.Phase)
			}
			s = edit(m, s)
			if s.Result != nil {
				t.Fatal("result must be cleared by an input edit")
			}
			if s.Phase != wizard.PhaseIdle {
				t.Fatalf("phase = %s, want idle", s.Phase)
			}
		})
	}
}

func TestResultDroppedWhenInputsChangeInFlight(t *testing.T) {
	m, s := readyState(t)
	rev := s.InputRev
	s = wizard.Reduce(m, s, wizard.SubmitStarted{Rev: rev})
	s = wizard.Reduce(m, s, wizard.SetLeverage{Raw: "50"})
	if s.Phase != wizard.PhaseSubmitting {
		t.Fatalf("edit must not end the submission, phase = %s", s.Phase)
	}
	s = wizard.Reduce(m, s, wizard.SubmitSucceeded{Rev: rev, Result: &domain.VerificationResult{Eligible: true}})
	if s.Result != nil || s.Phase != wizard.PhaseIdle {
		t.Fatalf("stale result kept: phase=%s result=%v", s.Phase, s.Result)
	}
}

func TestMismatchFollowsPairAndEvidence(t *testing.T) {
	m, s := newState()
	s = reduce(m, s, wizard.SetExchange{ID: "okx"}, wizard.SetPair{ID: "BTC-USDC-SWAP"})
	if s.MismatchKnown {
		t.Fatal("no evidence yet, verdict must be unknown")
	}
	s = withEvidence(m, s, mustEvidence(t, `{"instId":"BTC-USDT-SWAP","instType":"SWAP"}`))
	if !s.MismatchKnown || s.Mismatch != domain.MismatchPair {
		t.Fatalf("mismatch = %q known=%v", s.Mismatch, s.MismatchKnown)
	}
	s = wizard.Reduce(m, s, wizard.SetPair{ID: "BTC-USDT-SWAP"})
	if s.Mismatch != domain.MismatchNone {
		t.Fatalf("mismatch = %q after fixing pair", s.Mismatch)
	}
	s = wizard.Reduce(m, s, wizard.ClearEvidence{})
	if s.MismatchKnown || s.Evidence != nil {
		t.Fatal("clear must drop evidence and verdict")
	}
}

func TestEmptyEvidenceIsParsedPairMissing(t *testing.T) {
	m, s := newState()
	s = reduce(m, s, wizard.SetExchange{ID: "binance"}, wizard.SetPair{ID: "ETHUSDT"})
	s = withEvidence(m, s, mustEvidence(t, `{}`))
	if s.Mismatch != domain.MismatchParsedPairMissing {
		t.Fatalf("mismatch = %q", s.Mismatch)
	}
	if wizard.SubmitReady(s) {
		t.Fatal("mismatched evidence must block submission")
	}
}

func TestStaleUploadDropped(t *testing.T) {
	m, s := newState()
	s = reduce(m, s, wizard.UploadStarted{Gen: 1}, wizard.UploadStarted{Gen: 2})
	first := mustEvidence(t, `{"symbol":"ETHUSDT"}`)
	second := mustEvidence(t, `{"symbol":"BTCUSDT"}`)

	s = wizard.Reduce(m, s, wizard.UploadParsed{Gen: 1, Evidence: first})
	if s.Evidence != nil || !s.Parsing {
		t.Fatal("outcome of superseded upload must be dropped")
	}
	s = wizard.Reduce(m, s, wizard.UploadParsed{Gen: 2, Evidence: second})
	if s.Evidence != second || s.Parsing {
		t.Fatal("latest upload should be recorded")
	}

	s = reduce(m, s, wizard.UploadStarted{Gen: 3}, wizard.ClearEvidence{})
	s = wizard.Reduce(m, s, wizard.UploadParsed{Gen: 3, Evidence: first})
	if s.Evidence != nil {
		t.Fatal("clear must orphan the in-flight parse")
	}
}

func TestMarketsChangedPrunesSelection(t *testing.T) {
	m, s := readyState(t)
	s = reduce(m, s,
		wizard.SubmitStarted{Rev: s.InputRev},
		wizard.SubmitSucceeded{Rev: s.InputRev, Result: &domain.VerificationResult{Eligible: true}},
	)

	next, err := catalog.ParseMarkets([]byte("exchanges:\n  - id: okx\n    pairs:\n      - id: ETH-USDT-SWAP\n"))
	if err != nil {
		t.Fatal(err)
	}
	s = wizard.Reduce(next, s, wizard.MarketsChanged{})
	if s.Selection.PairID != "" || s.Selection.EnvironmentID != "" {
		t.Fatalf("selection not pruned: %+v", s.Selection)
	}
	if s.Result != nil {
		t.Fatal("pruning must invalidate the result")
	}
}

func TestSKUsLoadedClearsMissingSKU(t *testing.T) {
	m, s := newState()
	s = wizard.Reduce(m, s, wizard.SetSKU{Code: "LIQ-STANDARD"})
	s = wizard.Reduce(m, s, wizard.SKUsLoaded{SKUs: []domain.SKU{{Code: "LIQ-PRO"}}})
	if s.Selection.SKUCode != "" {
		t.Fatalf("sku = %q, want cleared", s.Selection.SKUCode)
	}
	s = wizard.Reduce(m, s, wizard.SetSKU{Code: "LIQ-PRO"})
	if s.Selection.SKUCode != "LIQ-PRO" {
		t.Fatalf("sku = %q", s.Selection.SKUCode)
	}
}

func TestStepper(t *testing.T) {
	m, s := newState()
	steps := wizard.Steps(s)
	want := []wizard.StepStatus{wizard.StepActive, wizard.StepPending, wizard.StepPending, wizard.StepPending}
	for i, st := range steps {
		if st.Status != want[i] {
			t.Fatalf("step %s = %s, want %s", st.ID, st.Status, want[i])
		}
	}

	s = reduce(m, s, wizard.SetExchange{ID: "okx"}, wizard.SetOrderID{Raw: "1234567"})
	steps = wizard.Steps(s)
	want = []wizard.StepStatus{wizard.StepComplete, wizard.StepActive, wizard.StepComplete, wizard.StepPending}
	for i, st := range steps {
		if st.Status != want[i] {
			t.Fatalf("step %s = %s, want %s", st.ID, st.Status, want[i])
		}
	}

	_, ready := readyState(t)
	for _, st := range wizard.Steps(ready) {
		if st.Status != wizard.StepComplete {
			t.Fatalf("step %s = %s in ready state", st.ID, st.Status)
		}
	}
}
