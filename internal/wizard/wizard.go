package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/evidence"
	"github.com/alanyoungcy/liqguard/internal/metrics"
)

// MarketsSource supplies the current market catalog snapshot.
type MarketsSource interface {
	Markets() domain.Markets
}

// Wizard is one user's verification session. All state changes go through
// Reduce under a single mutex, one action at a time. Parsing and submission
// run outside the lock and report back by dispatching actions.
type Wizard struct {
	id      string
	markets MarketsSource
	ctrl    *Controller
	logger  *slog.Logger

	mu    sync.Mutex
	state State

	// notifyMu keeps observer calls in the same order as transitions.
	notifyMu  sync.Mutex
	obsMu     sync.Mutex
	observers map[uint64]func(State)
	nextObs   uint64
}

// New creates a wizard over the given catalog.
func New(id string, markets MarketsSource, skus []domain.SKU, ctrl *Controller, logger *slog.Logger) *Wizard {
	return &Wizard{
		id:        id,
		markets:   markets,
		ctrl:      ctrl,
		logger:    logger.With(slog.String("component", "wizard"), slog.String("wizard_id", id)),
		state:     NewState(markets.Markets(), skus),
		observers: make(map[uint64]func(State)),
	}
}

// ID returns the wizard session ID.
func (w *Wizard) ID() string { return w.id }

// State returns the current state snapshot.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Subscribe registers fn to receive every new state. Observers run
// synchronously after each transition and must not call Dispatch, Upload or
// Submit themselves.
func (w *Wizard) Subscribe(fn func(State)) (unsubscribe func()) {
	w.obsMu.Lock()
	id := w.nextObs
	w.nextObs++
	w.observers[id] = fn
	w.obsMu.Unlock()

	return func() {
		w.obsMu.Lock()
		delete(w.observers, id)
		w.obsMu.Unlock()
	}
}

// Dispatch applies a single action.
func (w *Wizard) Dispatch(a Action) State {
	st, _ := w.mutate(func(m domain.Markets, s State) (State, bool) {
		return Reduce(m, s, a), true
	})
	return st
}

// Upload parses an evidence file and records the outcome. A newer upload or
// a ClearEvidence that lands while this one is parsing wins; the outcome of
// this upload is then discarded.
func (w *Wizard) Upload(fileName string, data []byte) State {
	var gen uint64
	w.mutate(func(m domain.Markets, s State) (State, bool) {
		gen = s.UploadGen + 1
		return Reduce(m, s, UploadStarted{Gen: gen}), true
	})

	ev, err := evidence.ParseFile(fileName, data)
	if err != nil {
		metrics.EvidenceParsesTotal.WithLabelValues("unreadable").Inc()
		w.logger.Info("evidence unreadable",
			slog.String("file", fileName),
			slog.Int("bytes", len(data)),
			slog.String("error", err.Error()),
		)
		return w.Dispatch(UploadFailed{Gen: gen, Message: err.Error()})
	}

	st := w.Dispatch(UploadParsed{Gen: gen, Evidence: ev})
	switch {
	case st.UploadGen != gen:
		metrics.EvidenceParsesTotal.WithLabelValues("stale").Inc()
	case evidence.Reconstructed(ev):
		metrics.EvidenceParsesTotal.WithLabelValues("reconstructed").Inc()
	default:
		metrics.EvidenceParsesTotal.WithLabelValues("ok").Inc()
	}
	return st
}

// ClearEvidence discards the evidence record and any parse in flight.
func (w *Wizard) ClearEvidence() State {
	return w.Dispatch(ClearEvidence{})
}

// Submit validates the current state, sends the verification request and
// records the outcome. Calling Submit while a submission is in flight
// returns the current state without doing anything. The returned error is
// informational; the outcome is always reflected in the returned state.
func (w *Wizard) Submit(ctx context.Context) (st State, err error) {
	var (
		req  domain.VerificationRequest
		rev  uint64
		busy bool
	)
	st, _ = w.mutate(func(m domain.Markets, s State) (State, bool) {
		if s.Phase == PhaseSubmitting {
			busy = true
			return s, false
		}
		req, err = w.ctrl.Prepare(s)
		if err != nil {
			kind, msg, status := Describe(err)
			return Reduce(m, s, SubmitFailed{Kind: kind, Message: msg, Status: status}), true
		}
		rev = s.InputRev
		return Reduce(m, s, SubmitStarted{Rev: rev}), true
	})
	if busy {
		return st, nil
	}
	if err != nil {
		w.logger.Info("submission blocked", slog.String("error", err.Error()))
		metrics.SubmissionsTotal.WithLabelValues(string(domain.KindOf(err))).Inc()
		return st, err
	}

	start := time.Now()
	settled := false
	defer func() {
		if settled {
			return
		}
		r := recover()
		err = fmt.Errorf("wizard: submission aborted: %v: %w", r, domain.ErrUnknown)
		w.logger.Error("submission aborted", slog.Any("panic", r))
		st = w.Dispatch(SubmitFailed{Kind: domain.ErrorKindUnknown, Message: "Verification failed. Please try again."})
	}()

	res, err := w.ctrl.Dispatch(ctx, req)
	metrics.SubmissionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		kind, msg, status := Describe(err)
		st = w.Dispatch(SubmitFailed{Kind: kind, Message: msg, Status: status})
		settled = true
		metrics.SubmissionsTotal.WithLabelValues(string(kind)).Inc()
		return st, err
	}

	st = w.Dispatch(SubmitSucceeded{Rev: rev, Result: res})
	settled = true
	outcome := "ineligible"
	if res.Eligible {
		outcome = "eligible"
	}
	metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	w.logger.Info("verification completed",
		slog.String("outcome", outcome),
		slog.String("order_ref", req.OrderRef),
		slog.Duration("duration", time.Since(start)),
	)
	return st, nil
}

// mutate runs fn under the state lock and, when fn reports a change,
// notifies observers in transition order.
func (w *Wizard) mutate(fn func(domain.Markets, State) (State, bool)) (State, bool) {
	w.mu.Lock()
	prev := w.state
	next, changed := fn(w.markets.Markets(), prev)
	w.state = next
	if !changed {
		w.mu.Unlock()
		return next, false
	}
	w.notifyMu.Lock()
	w.mu.Unlock()
	defer w.notifyMu.Unlock()

	if next.MismatchKnown && next.Mismatch != domain.MismatchNone &&
		(!prev.MismatchKnown || prev.Mismatch != next.Mismatch) {
		metrics.MismatchesTotal.WithLabelValues(string(next.Mismatch)).Inc()
	}

	w.obsMu.Lock()
	observers := make([]func(State), 0, len(w.observers))
	for _, obs := range w.observers {
		observers = append(observers, obs)
	}
	w.obsMu.Unlock()
	for _, obs := range observers {
		obs(next)
	}
	return next, true
}
