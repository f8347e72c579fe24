// Package service hosts wizard sessions for the HTTP API and the CLI and
// attaches the infrastructure around them: auth persistence, rate limiting,
// submit locks, event fan-out, result storage, evidence archiving, audit and
// notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/alanyoungcy/liqguard/internal/crypto"
	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/metrics"
	"github.com/alanyoungcy/liqguard/internal/notify"
	"github.com/alanyoungcy/liqguard/internal/present"
	"github.com/alanyoungcy/liqguard/internal/session"
	"github.com/alanyoungcy/liqguard/internal/wizard"
)

const sideEffectTimeout = 5 * time.Second

// SKULister supplies the SKU catalog.
type SKULister interface {
	List(ctx context.Context) []domain.SKU
}

// AuthBackend is the backend used for wallet sign-in.
type AuthBackend = session.AuthAPI

// WizardConfig tunes the service.
type WizardConfig struct {
	// SessionTTL is how long an untouched wizard stays in the registry.
	SessionTTL time.Duration
	// SubmitLimit submissions per wallet are allowed per SubmitWindow.
	SubmitLimit  int
	SubmitWindow time.Duration
	// SubmitLockTTL bounds how long a submit lock is held if the process
	// dies mid-request.
	SubmitLockTTL time.Duration
	// Language is used for the views published on the signal bus.
	Language string
}

// Live wraps a hosted wizard with its auth session.
type Live struct {
	Wizard  *wizard.Wizard
	Session *session.Session
	Auth    *session.Authenticator

	unsubscribe []func()
}

// WizardService is the registry of live wizards. Idle wizards expire after
// SessionTTL.
type WizardService struct {
	cfg       WizardConfig
	markets   wizard.MarketsSource
	skus      SKULister
	verifier  wizard.Verifier
	authAPI   AuthBackend
	hasher    crypto.Hasher
	presenter *present.Presenter
	base      *slog.Logger
	logger    *slog.Logger
	now       func() time.Time

	wallet   session.Wallet
	sessions domain.SessionStore
	limiter  domain.RateLimiter
	locks    domain.LockManager
	bus      domain.SignalBus
	events   EventLog
	results  domain.VerificationStore
	audit    domain.AuditStore
	archive  domain.EvidenceArchive
	notifier *notify.Notifier

	registry *cache.Cache
}

// Option configures optional infrastructure.
type Option func(*WizardService)

// WithWallet signs wizards in with a server-side wallet when they submit
// without a token.
func WithWallet(w session.Wallet) Option { return func(s *WizardService) { s.wallet = w } }

// WithSessionStore persists auth state across restarts.
func WithSessionStore(st domain.SessionStore) Option {
	return func(s *WizardService) { s.sessions = st }
}

// WithRateLimiter limits submissions per wallet.
func WithRateLimiter(l domain.RateLimiter) Option { return func(s *WizardService) { s.limiter = l } }

// WithLocks guards each wizard+order submission with a distributed lock.
func WithLocks(l domain.LockManager) Option { return func(s *WizardService) { s.locks = l } }

// WithSignalBus publishes wizard events.
func WithSignalBus(b domain.SignalBus) Option { return func(s *WizardService) { s.bus = b } }

// WithEventLog appends completed verifications to an event log.
func WithEventLog(l EventLog) Option { return func(s *WizardService) { s.events = l } }

// WithVerificationStore persists verification results.
func WithVerificationStore(st domain.VerificationStore) Option {
	return func(s *WizardService) { s.results = st }
}

// WithAuditStore records submissions in the audit log.
func WithAuditStore(st domain.AuditStore) Option { return func(s *WizardService) { s.audit = st } }

// WithEvidenceArchive archives evidence of completed verifications.
func WithEvidenceArchive(a domain.EvidenceArchive) Option {
	return func(s *WizardService) { s.archive = a }
}

// WithNotifier announces verification outcomes.
func WithNotifier(n *notify.Notifier) Option { return func(s *WizardService) { s.notifier = n } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *WizardService) { s.now = now } }

// NewWizardService creates the registry.
func NewWizardService(
	cfg WizardConfig,
	markets wizard.MarketsSource,
	skus SKULister,
	verifier wizard.Verifier,
	authAPI AuthBackend,
	hasher crypto.Hasher,
	logger *slog.Logger,
	opts ...Option,
) *WizardService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.SubmitWindow <= 0 {
		cfg.SubmitWindow = time.Minute
	}
	if cfg.SubmitLockTTL <= 0 {
		cfg.SubmitLockTTL = 30 * time.Second
	}

	s := &WizardService{
		cfg:       cfg,
		markets:   markets,
		skus:      skus,
		verifier:  verifier,
		authAPI:   authAPI,
		hasher:    hasher,
		presenter: present.New(cfg.Language),
		base:      logger,
		logger:    logger.With(slog.String("component", "wizard_service")),
		now:       time.Now,
		registry:  cache.New(cfg.SessionTTL, cfg.SessionTTL/2),
	}
	for _, o := range opts {
		o(s)
	}
	s.registry.OnEvicted(func(id string, v any) {
		live := v.(*Live)
		for _, unsub := range live.unsubscribe {
			unsub()
		}
		metrics.ActiveWizards.Dec()
		s.publish(id, EventClosed, nil)
		s.logger.Info("wizard closed", slog.String("wizard_id", id))
	})
	return s
}

// Create starts a new wizard. A non-empty address is recorded as the
// connected wallet.
func (s *WizardService) Create(ctx context.Context, address string) (*Live, error) {
	return s.open(ctx, uuid.NewString(), address)
}

// Resume reopens a wizard under a known ID, restoring persisted auth state.
// It returns the live wizard if it is still registered.
func (s *WizardService) Resume(ctx context.Context, id string) (*Live, error) {
	if live, err := s.Get(id); err == nil {
		return live, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("service: resume %q: %w", id, domain.ErrNotFound)
	}
	return s.open(ctx, id, "")
}

func (s *WizardService) open(ctx context.Context, id, address string) (*Live, error) {
	var sessOpts []session.Option
	if s.sessions != nil {
		sessOpts = append(sessOpts, session.WithStore(s.sessions))
	}
	sess := session.New(id, s.base, sessOpts...)
	if err := sess.Restore(ctx); err != nil {
		s.logger.Warn("restore auth state", slog.String("wizard_id", id), slog.String("error", err.Error()))
	}
	if address = strings.TrimSpace(address); address != "" {
		sess.SetConnectedAddress(address)
	}

	auth := session.NewAuthenticator(sess, s.wallet, s.authAPI, s.base)
	var ctrlOpts []wizard.ControllerOption
	if s.wallet != nil {
		ctrlOpts = append(ctrlOpts, wizard.WithAuthenticator(auth))
	}
	ctrl := wizard.NewController(s.verifier, sess, s.hasher, s.base, ctrlOpts...)
	w := wizard.New(id, s.markets, s.skus.List(ctx), ctrl, s.base)

	live := &Live{Wizard: w, Session: sess, Auth: auth}
	live.unsubscribe = append(live.unsubscribe,
		w.Subscribe(func(st wizard.State) { s.stateEvent(id, s.presenter.View(id, st)) }),
		sess.Subscribe(func(st domain.AuthState) { s.authEvent(id, st) }),
	)

	if err := s.registry.Add(id, live, cache.DefaultExpiration); err != nil {
		for _, unsub := range live.unsubscribe {
			unsub()
		}
		return nil, fmt.Errorf("service: register wizard %s: %w", id, err)
	}
	metrics.ActiveWizards.Inc()
	s.logger.Info("wizard opened", slog.String("wizard_id", id))
	return live, nil
}

// Get returns a live wizard and extends its TTL.
func (s *WizardService) Get(id string) (*Live, error) {
	v, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("service: wizard %s: %w", id, domain.ErrNotFound)
	}
	s.registry.Set(id, v, cache.DefaultExpiration)
	return v.(*Live), nil
}

// View renders a wizard in lang.
func (s *WizardService) View(id, lang string) (present.View, error) {
	live, err := s.Get(id)
	if err != nil {
		return present.View{}, err
	}
	return present.New(lang).View(id, live.Wizard.State()), nil
}

// Dispatch applies a selection edit.
func (s *WizardService) Dispatch(id string, a wizard.Action) (wizard.State, error) {
	live, err := s.Get(id)
	if err != nil {
		return wizard.State{}, err
	}
	return live.Wizard.Dispatch(a), nil
}

// Upload parses an evidence file into the wizard.
func (s *WizardService) Upload(id, fileName string, data []byte) (wizard.State, error) {
	live, err := s.Get(id)
	if err != nil {
		return wizard.State{}, err
	}
	return live.Wizard.Upload(fileName, data), nil
}

// ClearEvidence discards the wizard's evidence.
func (s *WizardService) ClearEvidence(id string) (wizard.State, error) {
	live, err := s.Get(id)
	if err != nil {
		return wizard.State{}, err
	}
	return live.Wizard.ClearEvidence(), nil
}

// Challenge starts a browser-wallet sign-in for address.
func (s *WizardService) Challenge(ctx context.Context, id, address string) (domain.AuthChallenge, error) {
	live, err := s.Get(id)
	if err != nil {
		return domain.AuthChallenge{}, err
	}
	return live.Auth.Challenge(ctx, address)
}

// CompleteSignIn finishes a browser-wallet sign-in.
func (s *WizardService) CompleteSignIn(ctx context.Context, id, address, signature, nonce string) (domain.AuthState, error) {
	live, err := s.Get(id)
	if err != nil {
		return domain.AuthState{}, err
	}
	return live.Auth.Complete(ctx, address, signature, nonce)
}

// WalletChanged applies a wallet provider event. Switching accounts rebinds
// the session to address and drops the token of the previous one; a chain
// switch or an empty address disconnects the wallet entirely.
func (s *WizardService) WalletChanged(id, address string, chainChanged bool) (domain.AuthState, error) {
	live, err := s.Get(id)
	if err != nil {
		return domain.AuthState{}, err
	}
	address = strings.TrimSpace(address)
	if chainChanged || address == "" {
		live.Session.Disconnect()
	} else {
		live.Session.SetConnectedAddress(address)
	}
	return live.Session.AuthState(), nil
}

// SignIn signs the wizard in with the server wallet.
func (s *WizardService) SignIn(ctx context.Context, id string) (domain.AuthState, error) {
	live, err := s.Get(id)
	if err != nil {
		return domain.AuthState{}, err
	}
	return live.Auth.SignIn(ctx)
}

// Submit runs the wizard's submission, guarded by the per-wallet rate limit
// and the wizard+order lock, and records the outcome. A submission that is
// already in flight, here or on another instance, makes this a no-op. Only a
// submission that passes its preconditions uses a rate limit slot; a limited
// one leaves the wizard untouched and returns ErrRateLimited.
func (s *WizardService) Submit(ctx context.Context, id string) (wizard.State, error) {
	live, err := s.Get(id)
	if err != nil {
		return wizard.State{}, err
	}
	w := live.Wizard
	st := w.State()
	if st.Phase == wizard.PhaseSubmitting {
		return st, nil
	}

	wallet := live.Session.AuthState().Address
	if s.limiter != nil && s.cfg.SubmitLimit > 0 && wallet != "" && wizard.SubmitReady(st) {
		allowed, err := s.limiter.Allow(ctx, "submit:"+strings.ToLower(wallet), s.cfg.SubmitLimit, s.cfg.SubmitWindow)
		switch {
		case err != nil:
			s.logger.Warn("submit rate limiter unavailable", slog.String("error", err.Error()))
		case !allowed:
			metrics.SubmissionsTotal.WithLabelValues("rate_limited").Inc()
			s.logger.Info("submit rate limited", slog.String("wizard_id", id), slog.String("wallet", wallet))
			return st, fmt.Errorf("service: submit %s: %w", id, domain.ErrRateLimited)
		}
	}

	if s.locks != nil && st.Selection.OrderID != "" {
		unlock, err := s.locks.Acquire(ctx, "submit:"+id+":"+st.Selection.OrderID, s.cfg.SubmitLockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			return w.State(), nil
		case err != nil:
			s.logger.Warn("submit lock unavailable", slog.String("error", err.Error()))
		default:
			defer unlock()
		}
	}

	st, err = w.Submit(ctx)
	if st.Phase == wizard.PhaseSubmitting {
		return st, err
	}
	s.record(ctx, id, st, err)
	return st, err
}

// record persists, archives, audits and announces a finished submission.
// Failures here are logged and never change the wizard's outcome.
func (s *WizardService) record(ctx context.Context, id string, st wizard.State, submitErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	log := s.logger.With(slog.String("wizard_id", id))

	switch st.Phase {
	case wizard.PhaseSuccess:
		res := st.Result
		if res == nil {
			return
		}
		if s.results != nil {
			if err := s.results.Save(ctx, *res); err != nil {
				log.Error("save verification", slog.String("error", err.Error()))
			}
		}
		if s.archive != nil && st.Evidence != nil {
			path, err := s.archive.Archive(ctx, res.Request.EvidenceDigest, []byte(st.Evidence.RawText))
			if err != nil {
				log.Error("archive evidence", slog.String("error", err.Error()))
			} else {
				log.Debug("evidence archived", slog.String("path", path))
			}
		}
		s.auditLog(ctx, "verification.completed", map[string]any{
			"wizard_id":       id,
			"verification_id": res.ID,
			"wallet":          res.Request.Wallet,
			"exchange":        res.Request.Exchange,
			"pair":            res.Request.Pair,
			"order_hash":      res.Request.OrderHash,
			"eligible":        res.Eligible,
			"status":          res.Status,
		})
		if s.events != nil {
			if err := s.appendEvent(ctx, *res); err != nil {
				log.Warn("append verification event", slog.String("error", err.Error()))
			}
		}
		if err := s.notifier.VerificationResult(ctx, *res); err != nil {
			log.Warn("notify verification", slog.String("error", err.Error()))
		}

	case wizard.PhaseError:
		detail := map[string]any{
			"wizard_id": id,
			"kind":      string(st.ErrKind),
			"status":    st.ErrStatus,
		}
		if submitErr != nil {
			detail["error"] = submitErr.Error()
		}
		s.auditLog(ctx, "verification.failed", detail)
		if err := s.notifier.VerificationFailed(ctx, id, st.ErrKind, st.ErrMessage); err != nil {
			log.Warn("notify failure", slog.String("error", err.Error()))
		}
	}
}

func (s *WizardService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.Error("audit log", slog.String("event", event), slog.String("error", err.Error()))
	}
}

// Close removes a wizard from the registry.
func (s *WizardService) Close(id string) error {
	if _, ok := s.registry.Get(id); !ok {
		return fmt.Errorf("service: close %s: %w", id, domain.ErrNotFound)
	}
	s.registry.Delete(id)
	return nil
}

// MarketsChanged re-derives every live wizard against the current catalog.
func (s *WizardService) MarketsChanged() {
	for _, live := range s.live() {
		live.Wizard.Dispatch(wizard.MarketsChanged{})
	}
}

// RefreshSKUs reloads the SKU catalog into every live wizard.
func (s *WizardService) RefreshSKUs(ctx context.Context) {
	skus := s.skus.List(ctx)
	for _, live := range s.live() {
		live.Wizard.Dispatch(wizard.SKUsLoaded{SKUs: skus})
	}
}

// History lists stored verifications for wallet.
func (s *WizardService) History(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.VerificationResult, error) {
	if s.results == nil {
		return nil, nil
	}
	return s.results.ListByWallet(ctx, wallet, opts)
}

// Count returns the number of live wizards.
func (s *WizardService) Count() int {
	return s.registry.ItemCount()
}

func (s *WizardService) live() []*Live {
	items := s.registry.Items()
	out := make([]*Live, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(*Live))
	}
	return out
}
