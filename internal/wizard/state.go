// Package wizard implements the order-verification wizard: selection state,
// the reducer that owns every transition, the readiness and stepper
// projections, and the submission controller.
package wizard

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// MinOrderIDLength is the shortest order identifier accepted.
const MinOrderIDLength = 6

// Phase is the submission state machine position.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// NumericStatus distinguishes an unset numeric input from a bad one.
type NumericStatus string

const (
	NumericEmpty   NumericStatus = "empty"
	NumericInvalid NumericStatus = "invalid"
	NumericValid   NumericStatus = "valid"
)

// NumericField is a user-entered positive amount. Value is only meaningful
// when Status is NumericValid.
type NumericField struct {
	Raw    string          `json:"raw"`
	Value  decimal.Decimal `json:"value"`
	Status NumericStatus   `json:"status"`
}

// ParseNumeric classifies raw input. Blank input is empty; anything that is
// not a finite number greater than zero is invalid.
func ParseNumeric(raw string) NumericField {
	f := NumericField{Raw: raw, Status: NumericEmpty}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return f
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil || !d.IsPositive() {
		f.Status = NumericInvalid
		return f
	}
	f.Value = d
	f.Status = NumericValid
	return f
}

// Valid reports whether the field holds a usable amount.
func (f NumericField) Valid() bool { return f.Status == NumericValid }

// Selection is what the user has chosen so far.
type Selection struct {
	ExchangeID    string       `json:"exchange_id,omitempty"`
	PairID        string       `json:"pair_id,omitempty"`
	OrderID       string       `json:"order_id,omitempty"`
	SKUCode       string       `json:"sku_code,omitempty"`
	EnvironmentID string       `json:"environment_id,omitempty"`
	Principal     NumericField `json:"principal"`
	Leverage      NumericField `json:"leverage"`
}

// State is the full wizard state. It is a value: the reducer returns a new
// State and never mutates the one it was given. Slices and pointers inside
// are shared between snapshots and must be treated as read-only.
type State struct {
	Selection Selection `json:"selection"`

	// Options derived from the catalog and the current exchange.
	Pairs        []domain.Pair        `json:"pairs"`
	Environments []domain.Environment `json:"environments"`
	SKUs         []domain.SKU         `json:"skus"`

	Evidence      *domain.Evidence `json:"evidence,omitempty"`
	EvidenceError string           `json:"evidence_error,omitempty"`
	Parsing       bool             `json:"parsing"`
	UploadGen     uint64           `json:"upload_gen"`

	// Mismatch is derived from Selection.PairID and Evidence on every
	// transition. MismatchKnown is false while no verdict is possible.
	Mismatch      domain.Mismatch `json:"mismatch"`
	MismatchKnown bool            `json:"mismatch_known"`

	Phase      Phase                      `json:"phase"`
	Result     *domain.VerificationResult `json:"result,omitempty"`
	ErrKind    domain.ErrorKind           `json:"error_kind,omitempty"`
	ErrMessage string                     `json:"error_message,omitempty"`
	ErrStatus  int                        `json:"error_status,omitempty"`
	InputRev   uint64                     `json:"input_rev"`
	SubmitRev  uint64                     `json:"submit_rev"`
}

// NewState returns the initial state for the given catalog.
func NewState(m domain.Markets, skus []domain.SKU) State {
	s := State{Phase: PhaseIdle, SKUs: skus}
	return derive(m, s)
}

// OrderValid reports whether the order identifier is long enough.
func (s State) OrderValid() bool {
	return len(s.Selection.OrderID) >= MinOrderIDLength
}

// SelectedPair returns the selected pair, or nil.
func (s State) SelectedPair() *domain.Pair {
	if s.Selection.PairID == "" {
		return nil
	}
	for i := range s.Pairs {
		if s.Pairs[i].ID == s.Selection.PairID {
			p := s.Pairs[i]
			return &p
		}
	}
	return nil
}

// EvidenceMatches reports whether parsed evidence is present and agrees with
// the selected pair.
func (s State) EvidenceMatches() bool {
	return s.Evidence != nil && s.MismatchKnown && s.Mismatch == domain.MismatchNone
}
