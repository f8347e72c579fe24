// Package notify announces verification outcomes to operators over Telegram
// and Discord. Operators choose which outcome events they receive.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// Verification outcome events.
const (
	EventEligible   = "verification_eligible"
	EventIneligible = "verification_ineligible"
	EventError      = "verification_error"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	Name() string
}

// Notification is a rendered message.
type Notification struct {
	Event   string
	Title   string
	Message string
}

// Notifier fans notifications out to every sender. Only events in the
// allowed set are forwarded; an empty set allows all.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders that forwards only events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// VerificationResult announces a completed verification.
func (n *Notifier) VerificationResult(ctx context.Context, res domain.VerificationResult) error {
	req := res.Request
	event, title := EventIneligible, "Order not eligible"
	if res.Eligible {
		event, title = EventEligible, "Order eligible"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s order %s\n", req.Exchange, req.Pair, req.OrderRef)
	fmt.Fprintf(&b, "Wallet: %s\n", shortAddress(req.Wallet))
	fmt.Fprintf(&b, "SKU: %s (%s)\n", req.SKU, req.Environment)
	fmt.Fprintf(&b, "Principal: %s  Leverage: %sx\n", req.Principal.String(), req.Leverage.String())
	if res.Quote != nil {
		fmt.Fprintf(&b, "Premium: %s %s  Payout: %s %s\n",
			res.Quote.Premium.String(), res.Quote.Currency, res.Quote.Payout.String(), res.Quote.Currency)
	}
	if res.PolicyID != "" {
		fmt.Fprintf(&b, "Policy: %s\n", res.PolicyID)
	}
	fmt.Fprintf(&b, "Status: %s", res.Status)

	return n.Notify(ctx, Notification{Event: event, Title: title, Message: b.String()})
}

// VerificationFailed announces a submission that ended in an error state.
func (n *Notifier) VerificationFailed(ctx context.Context, wizardID string, kind domain.ErrorKind, message string) error {
	return n.Notify(ctx, Notification{
		Event:   EventError,
		Title:   "Verification failed",
		Message: fmt.Sprintf("Wizard %s: %s\n%s", wizardID, kind, message),
	})
}

// Notify forwards n to every sender if its event is allowed. A failing
// sender does not stop delivery to the others.
func (n *Notifier) Notify(ctx context.Context, note Notification) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[note.Event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", note.Event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, note); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", note.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", note.Event),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// shortAddress renders 0x1234…abcd for long hex addresses.
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
