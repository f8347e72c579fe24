package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/present"
)

// WizardChannelPrefix is the signal bus channel prefix for wizard events:
// every event of wizard X is published on "ch:wizard:X".
const WizardChannelPrefix = "ch:wizard:"

// WizardChannel returns the signal bus channel for wizardID.
func WizardChannel(wizardID string) string {
	return WizardChannelPrefix + wizardID
}

// Event types published on the wizard channel.
const (
	EventState  = "wizard_state"
	EventAuth   = "wizard_auth"
	EventClosed = "wizard_closed"
)

// verificationStream is the Redis stream completed verifications are
// appended to for downstream consumers.
const verificationStream = "verifications"

// Event is the envelope published on the signal bus.
type Event struct {
	Type     string    `json:"type"`
	WizardID string    `json:"wizard_id"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}

// AuthEvent reports sign-in status. The token itself is never published.
type AuthEvent struct {
	Address  string     `json:"address,omitempty"`
	SignedIn bool       `json:"signed_in"`
	Expires  *time.Time `json:"expires_at,omitempty"`
}

// EventLog is an append-only log of verification outcomes.
type EventLog interface {
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

func (s *WizardService) publish(wizardID, typ string, payload any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(Event{Type: typ, WizardID: wizardID, At: s.now().UTC(), Payload: payload})
	if err != nil {
		s.logger.Error("marshal wizard event", slog.String("wizard_id", wizardID), slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := s.bus.Publish(ctx, WizardChannel(wizardID), data); err != nil {
		s.logger.Warn("publish wizard event",
			slog.String("wizard_id", wizardID),
			slog.String("type", typ),
			slog.String("error", err.Error()),
		)
	}
}

func (s *WizardService) stateEvent(wizardID string, view present.View) {
	s.publish(wizardID, EventState, view)
}

func (s *WizardService) authEvent(wizardID string, st domain.AuthState) {
	s.publish(wizardID, EventAuth, AuthEvent{
		Address:  st.Address,
		SignedIn: st.TokenValid(s.now()),
		Expires:  st.TokenExpiresAt,
	})
}

func (s *WizardService) appendEvent(ctx context.Context, res domain.VerificationResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.events.StreamAppend(ctx, verificationStream, data)
}
