package present_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/liqguard/internal/catalog"
	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/evidence"
	"github.com/alanyoungcy/liqguard/internal/present"
	"github.com/alanyoungcy/liqguard/internal/wizard"
)

func state(actions ...wizard.Action) wizard.State {
	m := catalog.DefaultMarkets()
	s := wizard.NewState(m, []domain.SKU{catalog.DefaultSKU})
	for _, a := range actions {
		s = wizard.Reduce(m, s, a)
	}
	return s
}

func TestLanguageSelection(t *testing.T) {
	cases := map[string]string{
		"":                        "en",
		"fr-FR":                   "en",
		"zh-CN":                   "zh-Hans",
		"zh-Hans":                 "zh-Hans",
		"zh-CN,zh;q=0.9,en;q=0.8": "zh-Hans",
		"en-GB,en;q=0.9":          "en",
	}
	for in, want := range cases {
		if got := present.New(in).Language(); got != want {
			t.Errorf("New(%q).Language() = %q, want %q", in, got, want)
		}
	}
}

func TestNumericHintsDistinguishEmptyAndInvalid(t *testing.T) {
	p := present.New("en")
	empty := p.FieldHint(state(), wizard.FieldPrincipal)
	invalid := p.FieldHint(state(wizard.SetPrincipal{Raw: "-3"}), wizard.FieldPrincipal)
	if empty == "" || invalid == "" || empty == invalid {
		t.Fatalf("empty=%q invalid=%q", empty, invalid)
	}
	if p.FieldHint(state(wizard.SetPrincipal{Raw: "3"}), wizard.FieldPrincipal) != "" {
		t.Fatal("valid principal should have no hint")
	}
}

func TestOrderHintCountsDigits(t *testing.T) {
	p := present.New("en")
	got := p.FieldHint(state(wizard.SetOrderID{Raw: "ab12cd34"}), wizard.FieldOrderID)
	if !strings.Contains(got, "6") || !strings.Contains(got, "4") {
		t.Fatalf("hint = %q", got)
	}
}

func TestChineseTexts(t *testing.T) {
	p := present.New("zh-CN")
	if got := p.Error(domain.ErrorKindUnauthorized, 401, ""); got != "登录已过期，请重新登录。" {
		t.Fatalf("unauthorized = %q", got)
	}
	if got := p.StepLabel(wizard.StepEvidence); got != "上传凭证" {
		t.Fatalf("step label = %q", got)
	}
	if got := p.Warning("content was reconstructed from 3 lines"); got != "内容已由 3 行重新拼接" {
		t.Fatalf("warning = %q", got)
	}
}

func TestUnauthorizedSaysSignInAgain(t *testing.T) {
	got := present.New("en").Error(domain.ErrorKindUnauthorized, 401, "jwt expired")
	if !strings.Contains(strings.ToLower(got), "sign in again") {
		t.Fatalf("message = %q", got)
	}
}

func TestUpstreamErrorSanitizesDetail(t *testing.T) {
	got := present.New("en").Error(domain.ErrorKindUpstream, 502, "<script>alert(1)</script>bad gateway")
	if strings.Contains(got, "<script>") || !strings.Contains(got, "502") || !strings.Contains(got, "bad gateway") {
		t.Fatalf("message = %q", got)
	}
}

func TestMismatchTexts(t *testing.T) {
	p := present.New("en")
	pair := &domain.Pair{ID: "BTC-USDT-SWAP", InstType: "SWAP"}
	ev := &domain.Evidence{Pair: "BTC-USDT-SWAP", InstType: "FUTURES"}
	got := p.Mismatch(domain.MismatchInstType, pair, ev)
	if !strings.Contains(got, "FUTURES") || !strings.Contains(got, "SWAP") {
		t.Fatalf("mismatch = %q", got)
	}
	if p.Mismatch(domain.MismatchNone, pair, ev) != "" {
		t.Fatal("no mismatch should render empty")
	}
}

func TestResultLines(t *testing.T) {
	p := present.New("en")
	lines := p.Result(&domain.VerificationResult{
		Status:      "pass",
		Eligible:    true,
		Quote:       &domain.Quote{Premium: decimal.RequireFromString("12.5"), Payout: decimal.NewFromInt(1000), Currency: "USDT"},
		PolicyID:    "pol-7",
		ProcessedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"Eligible", "12.5 USDT", "1000 USDT", "pol-7", "2026-01-02T03:04:05Z"} {
		if !strings.Contains(joined, want) {
			t.Errorf("result %q missing %q", joined, want)
		}
	}
}

func TestTranscriptSanitizedAndTruncated(t *testing.T) {
	p := present.New("en")
	got := p.Transcript(`<img src=x onerror=alert(1)>{"pair":"BTC"}`, 0)
	if strings.Contains(got, "<img") {
		t.Fatalf("transcript not sanitized: %q", got)
	}
	long := strings.Repeat("界", 50)
	got = p.Transcript(long, 10)
	if !strings.HasPrefix(got, strings.Repeat("界", 10)) || !strings.Contains(got, "[truncated]") {
		t.Fatalf("transcript = %q", got)
	}
}

func TestViewAndReport(t *testing.T) {
	ev, err := evidence.ParseFile("order.json", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	s := state(wizard.SetExchange{ID: "okx"}, wizard.SetPair{ID: "BTC-USDT-SWAP"}, wizard.UploadStarted{Gen: 1})
	s = wizard.Reduce(catalog.DefaultMarkets(), s, wizard.UploadParsed{Gen: 1, Evidence: ev})

	v := present.New("en").View("wiz-1", s)
	if v.SubmitReady {
		t.Fatal("view should not be ready")
	}
	if v.Mismatch == "" || v.Hints[wizard.FieldEvidence] != v.Mismatch {
		t.Fatalf("mismatch = %q hint = %q", v.Mismatch, v.Hints[wizard.FieldEvidence])
	}
	if len(v.Steps) != 4 || v.Steps[2].Status != wizard.StepActive {
		t.Fatalf("steps = %+v", v.Steps)
	}

	var buf bytes.Buffer
	if err := present.WriteReport(&buf, v); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "[x] Choose exchange") || !strings.Contains(out, "missing pair field") {
		t.Fatalf("report:\n%s", out)
	}
}
