package wizard

import "github.com/alanyoungcy/liqguard/internal/domain"

// Field names a submission precondition.
type Field string

const (
	FieldExchange    Field = "exchange"
	FieldPair        Field = "pair"
	FieldOrderID     Field = "order_id"
	FieldEvidence    Field = "evidence"
	FieldSKU         Field = "sku"
	FieldEnvironment Field = "environment"
	FieldPrincipal   Field = "principal"
	FieldLeverage    Field = "leverage"
)

// MissingFields lists the unmet submission preconditions in form order.
// Evidence counts as missing until it is parsed and matches the pair.
func MissingFields(s State) []Field {
	var missing []Field
	sel := s.Selection
	if sel.ExchangeID == "" {
		missing = append(missing, FieldExchange)
	}
	if sel.PairID == "" {
		missing = append(missing, FieldPair)
	}
	if !s.OrderValid() {
		missing = append(missing, FieldOrderID)
	}
	if !s.EvidenceMatches() {
		missing = append(missing, FieldEvidence)
	}
	if sel.SKUCode == "" {
		missing = append(missing, FieldSKU)
	}
	if sel.EnvironmentID == "" {
		missing = append(missing, FieldEnvironment)
	}
	if !sel.Principal.Valid() {
		missing = append(missing, FieldPrincipal)
	}
	if !sel.Leverage.Valid() {
		missing = append(missing, FieldLeverage)
	}
	return missing
}

// SubmitReady reports whether a submission may start now.
func SubmitReady(s State) bool {
	return s.Phase != PhaseSubmitting && len(MissingFields(s)) == 0
}

// blockingMismatch returns the mismatch that keeps otherwise complete input
// from being submitted, if any.
func blockingMismatch(s State) domain.Mismatch {
	if s.Evidence != nil && s.MismatchKnown {
		return s.Mismatch
	}
	return domain.MismatchNone
}
