package wizard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/liqguard/internal/catalog"
	"github.com/alanyoungcy/liqguard/internal/crypto"
	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/wizard"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSession struct {
	mu      sync.Mutex
	state   domain.AuthState
	cleared int
}

func (f *fakeSession) AuthState() domain.AuthState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) ClearAuth() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Token = ""
	f.state.TokenExpiresAt = nil
	f.cleared++
}

type fakeVerifier struct {
	mu     sync.Mutex
	calls  int
	tokens []string
	reqs   []domain.VerificationRequest
	fn     func(ctx context.Context) (*domain.VerificationResult, error)
}

func (f *fakeVerifier) VerifyOrder(ctx context.Context, token string, req domain.VerificationRequest) (*domain.VerificationResult, error) {
	f.mu.Lock()
	f.calls++
	f.tokens = append(f.tokens, token)
	f.reqs = append(f.reqs, req)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAuthenticator struct {
	session *fakeSession
	err     error
	calls   int
}

func (f *fakeAuthenticator) SignIn(context.Context) (domain.AuthState, error) {
	f.calls++
	if f.err != nil {
		return domain.AuthState{}, f.err
	}
	f.session.mu.Lock()
	f.session.state.Token = "fresh-token"
	st := f.session.state
	f.session.mu.Unlock()
	return st, nil
}

const wallet = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func newWizard(t *testing.T, v wizard.Verifier, sess *fakeSession, hasher crypto.Hasher, opts ...wizard.ControllerOption) *wizard.Wizard {
	t.Helper()
	ctrl := wizard.NewController(v, sess, hasher, discardLogger(), opts...)
	store := catalog.NewStore(catalog.DefaultMarkets())
	return wizard.New("wiz-1", store, []domain.SKU{catalog.DefaultSKU}, ctrl, discardLogger())
}

func fillReady(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	for _, a := range []wizard.Action{
		wizard.SetExchange{ID: "okx"},
		wizard.SetPair{ID: "BTC-USDT-SWAP"},
		wizard.SetOrderID{Raw: "12345678"},
		wizard.SetSKU{Code: "LIQ-STANDARD"},
		wizard.SetEnvironment{ID: "mainnet"},
		wizard.SetPrincipal{Raw: "250"},
		wizard.SetLeverage{Raw: "10"},
	} {
		w.Dispatch(a)
	}
	st := w.Upload("okx-order.json", []byte(`{"data":[{"instId":"BTC-USDT-SWAP","instType":"SWAP"}]}`))
	if !wizard.SubmitReady(st) {
		t.Fatalf("wizard not ready: %v", wizard.MissingFields(st))
	}
}

func TestSubmitSuccess(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "tok"}}
	v := &fakeVerifier{fn: func(context.Context) (*domain.VerificationResult, error) {
		return &domain.VerificationResult{
			Status:   "pass",
			Eligible: true,
			Quote:    &domain.Quote{Premium: decimal.NewFromInt(5), Payout: decimal.NewFromInt(250), Currency: "USDT"},
			PolicyID: "pol-1",
		}, nil
	}}
	w := newWizard(t, v, sess, crypto.SHA256{})
	fillReady(t, w)

	st, err := w.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if st.Phase != wizard.PhaseSuccess || st.Result == nil || !st.Result.Eligible {
		t.Fatalf("state = phase %s result %+v", st.Phase, st.Result)
	}
	if st.Result.ID == "" || st.Result.ProcessedAt.IsZero() {
		t.Fatal("result should be stamped with id and time")
	}

	req := v.reqs[0]
	wantHash, _ := crypto.OrderHash(crypto.SHA256{}, "12345678", "BTC-USDT-SWAP")
	if req.OrderHash != wantHash {
		t.Fatalf("order hash = %s, want %s", req.OrderHash, wantHash)
	}
	wantDigest, _ := crypto.EvidenceDigest(crypto.SHA256{}, `{"data":[{"instId":"BTC-USDT-SWAP","instType":"SWAP"}]}`)
	if req.EvidenceDigest != wantDigest {
		t.Fatal("evidence digest should cover the raw text")
	}
	if req.Wallet != wallet || req.OrderRef != "12345678" || !req.Principal.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("request = %+v", req)
	}
	if v.tokens[0] != "tok" {
		t.Fatalf("token = %q", v.tokens[0])
	}
}

func TestSubmitUnauthorizedClearsTokenKeepsAddress(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "expired"}}
	v := &fakeVerifier{fn: func(context.Context) (*domain.VerificationResult, error) {
		return nil, &domain.APIError{Status: 401, Message: "token expired"}
	}}
	w := newWizard(t, v, sess, crypto.SHA256{})
	fillReady(t, w)

	st, err := w.Submit(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if st.Phase != wizard.PhaseError || st.ErrKind != domain.ErrorKindUnauthorized || st.ErrStatus != 401 {
		t.Fatalf("state = phase %s kind %s status %d", st.Phase, st.ErrKind, st.ErrStatus)
	}
	auth := sess.AuthState()
	if auth.Token != "" || auth.Address != wallet {
		t.Fatalf("auth = %+v, want token cleared and address kept", auth)
	}
	if v.callCount() != 1 {
		t.Fatalf("verifier called %d times, must not retry", v.callCount())
	}
	if !wizard.SubmitReady(st) {
		t.Fatal("submit control must be re-enabled after failure")
	}
}

func TestSubmitUpstreamError(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "tok"}}
	v := &fakeVerifier{fn: func(context.Context) (*domain.VerificationResult, error) {
		return nil, &domain.APIError{Status: 502, Message: "gateway down"}
	}}
	w := newWizard(t, v, sess, crypto.SHA256{})
	fillReady(t, w)

	st, _ := w.Submit(context.Background())
	if st.ErrKind != domain.ErrorKindUpstream || st.ErrMessage != "gateway down" || st.ErrStatus != 502 {
		t.Fatalf("state = %s %q %d", st.ErrKind, st.ErrMessage, st.ErrStatus)
	}
	if sess.cleared != 0 {
		t.Fatal("only 401 may touch the session")
	}
}

func TestSubmitUnknownError(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "tok"}}
	v := &fakeVerifier{fn: func(context.Context) (*domain.VerificationResult, error) {
		return nil, errors.New("connection reset")
	}}
	w := newWizard(t, v, sess, crypto.SHA256{})
	fillReady(t, w)

	st, _ := w.Submit(context.Background())
	if st.Phase != wizard.PhaseError || st.ErrKind != domain.ErrorKindUnknown {
		t.Fatalf("state = %s %s", st.Phase, st.ErrKind)
	}
}

func TestSubmitPanicClearsSubmitting(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "tok"}}
	v := &fakeVerifier{fn: func(context.Context) (*domain.VerificationResult, error) {
		panic("boom")
	}}
	w := newWizard(t, v, sess, crypto.SHA256{})
	fillReady(t, w)

	st, err := w.Submit(context.Background())
	if !errors.Is(err, domain.ErrUnknown) {
		t.Fatalf("err = %v", err)
	}
	if st.Phase != wizard.PhaseError || w.State().Phase != wizard.PhaseError {
		t.Fatalf("phase = %s", st.Phase)
	}
}

func TestSubmitMissingFieldsSendsNothing(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "tok"}}
	v := &fakeVerifier{fn: func(context.Context) (*domain.VerificationResult, error) {
		t.Fatal("verifier must not be called")
		return nil, nil
	}}
	w := newWizard(t, v, sess, crypto.SHA256{})
	w.Dispatch(wizard.SetExchange{ID: "okx"})

	st, err := w.Submit(context.Background())
	if !errors.Is(err, domain.ErrFieldsMissing) {
		t.Fatalf("err = %v, want ErrFieldsMissing", err)
	}
	if st.ErrKind != domain.ErrorKindFieldsMissing {
		t.Fatalf("kind = %s", st.ErrKind)
	}
}

func TestSubmitMismatchIsFieldsMissing(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "tok"}}
	v := &fakeVerifier{}
	w := newWizard(t, v, sess, crypto.SHA256{})
	fillReady(t, w)
	w.Dispatch(wizard.SetPair{ID: "ETH-USDT-SWAP"})

	_, err := w.Submit(context.Background())
	if !errors.Is(err, domain.ErrFieldsMissing) || !errors.Is(err, domain.ErrEvidenceMismatch) {
		t.Fatalf("err = %v", err)
	}
	if v.callCount() != 0 {
		t.Fatal("no request may be sent")
	}
}

func TestSubmitWithoutHasher(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "tok"}}
	v := &fakeVerifier{}
	w := newWizard(t, v, sess, nil)
	fillReady(t, w)

	st, err := w.Submit(context.Background())
	if !errors.Is(err, domain.ErrCryptoUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if st.ErrKind != domain.ErrorKindCryptoUnavailable || v.callCount() != 0 {
		t.Fatalf("kind = %s calls = %d", st.ErrKind, v.callCount())
	}
}

func TestSubmitWhileSubmittingIsNoop(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "tok"}}
	release := make(chan struct{})
	v := &fakeVerifier{fn: func(context.Context) (*domain.VerificationResult, error) {
		<-release
		return &domain.VerificationResult{Status: "fail"}, nil
	}}
	w := newWizard(t, v, sess, crypto.SHA256{})
	fillReady(t, w)

	submitting := make(chan struct{})
	var once sync.Once
	unsubscribe := w.Subscribe(func(s wizard.State) {
		if s.Phase == wizard.PhaseSubmitting {
			once.Do(func() { close(submitting) })
		}
	})
	defer unsubscribe()

	done := make(chan wizard.State)
	go func() {
		st, _ := w.Submit(context.Background())
		done <- st
	}()

	select {
	case <-submitting:
	case <-time.After(2 * time.Second):
		t.Fatal("submission never started")
	}

	st, err := w.Submit(context.Background())
	if err != nil || st.Phase != wizard.PhaseSubmitting {
		t.Fatalf("second submit = %s, %v", st.Phase, err)
	}
	if wizard.SubmitReady(st) {
		t.Fatal("submit must be disabled while in flight")
	}

	close(release)
	final := <-done
	if final.Phase != wizard.PhaseSuccess || final.Result.Eligible {
		t.Fatalf("final = %s eligible=%v", final.Phase, final.Result != nil && final.Result.Eligible)
	}
	if v.callCount() != 1 {
		t.Fatalf("verifier called %d times", v.callCount())
	}
}

func TestSubmitSignsInWhenTokenMissing(t *testing.T) {
	sess := &fakeSession{state: domain.AuthState{Address: wallet}}
	auth := &fakeAuthenticator{session: sess}
	v := &fakeVerifier{fn: func(context.Context) (*domain.VerificationResult, error) {
		return &domain.VerificationResult{Status: "pass", Eligible: true}, nil
	}}
	w := newWizard(t, v, sess, crypto.SHA256{}, wizard.WithAuthenticator(auth))
	fillReady(t, w)

	if _, err := w.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if auth.calls != 1 || v.tokens[0] != "fresh-token" {
		t.Fatalf("sign-in calls = %d token = %q", auth.calls, v.tokens[0])
	}
}

func TestSubmitExpiredTokenWithoutAuthenticator(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	sess := &fakeSession{state: domain.AuthState{Address: wallet, Token: "old", TokenExpiresAt: &past}}
	v := &fakeVerifier{}
	w := newWizard(t, v, sess, crypto.SHA256{})
	fillReady(t, w)

	st, err := w.Submit(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) || st.ErrKind != domain.ErrorKindUnauthorized {
		t.Fatalf("err = %v kind = %s", err, st.ErrKind)
	}
	if v.callCount() != 0 {
		t.Fatal("no request without a token")
	}
}

func TestUploadUnreadable(t *testing.T) {
	w := newWizard(t, &fakeVerifier{}, &fakeSession{}, crypto.SHA256{})
	st := w.Upload("blob.bin", []byte{0x00, 0x01, 0xff})
	if st.Evidence != nil || st.EvidenceError == "" || st.Parsing {
		t.Fatalf("state = %+v", st)
	}
}
