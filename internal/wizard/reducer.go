package wizard

import (
	"github.com/alanyoungcy/liqguard/internal/crosscheck"
	"github.com/alanyoungcy/liqguard/internal/domain"
)

// Reduce is the only place wizard state changes. It is pure: given the same
// catalog, state and action it returns the same next state.
//
// Every input edit bumps InputRev and drops the displayed result, so a result
// can never be shown against inputs it was not computed from. Mismatch is
// recomputed from scratch on every call and no action can set it directly.
func Reduce(m domain.Markets, s State, a Action) State {
	switch a := a.(type) {
	case SetExchange:
		if a.ID != "" {
			if _, ok := m.Exchange(a.ID); !ok {
				return s
			}
		}
		s.Selection.ExchangeID = a.ID
		s.Selection.PairID = ""
		s = invalidate(s)

	case SetPair:
		if a.ID != "" && !hasPair(m.PairsFor(s.Selection.ExchangeID), a.ID) {
			return s
		}
		s.Selection.PairID = a.ID
		s = invalidate(s)

	case SetOrderID:
		s.Selection.OrderID = digitsOnly(a.Raw)
		s = invalidate(s)

	case SetSKU:
		if a.Code != "" && !hasSKU(s.SKUs, a.Code) {
			return s
		}
		s.Selection.SKUCode = a.Code
		s = invalidate(s)

	case SetEnvironment:
		if a.ID != "" && !hasEnvironment(m.EnvironmentsFor(s.Selection.ExchangeID), a.ID) {
			return s
		}
		s.Selection.EnvironmentID = a.ID
		s = invalidate(s)

	case SetPrincipal:
		s.Selection.Principal = ParseNumeric(a.Raw)
		s = invalidate(s)

	case SetLeverage:
		s.Selection.Leverage = ParseNumeric(a.Raw)
		s = invalidate(s)

	case UploadStarted:
		if a.Gen <= s.UploadGen {
			return s
		}
		s.UploadGen = a.Gen
		s.Parsing = true
		s.Evidence = nil
		s.EvidenceError = ""
		s = invalidate(s)

	case UploadParsed:
		if a.Gen != s.UploadGen || !s.Parsing {
			return s
		}
		s.Parsing = false
		s.Evidence = a.Evidence
		s = invalidate(s)

	case UploadFailed:
		if a.Gen != s.UploadGen || !s.Parsing {
			return s
		}
		s.Parsing = false
		s.EvidenceError = a.Message
		s = invalidate(s)

	case ClearEvidence:
		// Bumping the generation orphans any parse still in flight.
		s.UploadGen++
		s.Parsing = false
		s.Evidence = nil
		s.EvidenceError = ""
		s = invalidate(s)

	case SubmitStarted:
		if s.Phase == PhaseSubmitting {
			return s
		}
		s.Phase = PhaseSubmitting
		s.SubmitRev = a.Rev
		s.Result = nil
		s = clearError(s)

	case SubmitSucceeded:
		if s.Phase != PhaseSubmitting {
			return s
		}
		if a.Rev != s.InputRev {
			// Inputs were edited while the request was in flight.
			s.Phase = PhaseIdle
			break
		}
		s.Phase = PhaseSuccess
		s.Result = a.Result

	case SubmitFailed:
		s.Phase = PhaseError
		s.Result = nil
		s.ErrKind = a.Kind
		s.ErrMessage = a.Message
		s.ErrStatus = a.Status

	case MarketsChanged:
		before := s.Selection
		s = derive(m, s)
		if selectionChanged(before, s.Selection) {
			s = invalidate(s)
		}
		return s

	case SKUsLoaded:
		s.SKUs = a.SKUs
		if s.Selection.SKUCode != "" && !hasSKU(s.SKUs, s.Selection.SKUCode) {
			s.Selection.SKUCode = ""
			s = invalidate(s)
		}

	default:
		return s
	}
	return derive(m, s)
}

// derive recomputes everything that is a function of the selection: option
// lists, selections that fell out of those lists, and the mismatch verdict.
func derive(m domain.Markets, s State) State {
	if s.Selection.ExchangeID != "" {
		if _, ok := m.Exchange(s.Selection.ExchangeID); !ok {
			s.Selection.ExchangeID = ""
		}
	}
	s.Pairs = m.PairsFor(s.Selection.ExchangeID)
	if s.Selection.PairID != "" && !hasPair(s.Pairs, s.Selection.PairID) {
		s.Selection.PairID = ""
	}
	s.Environments = m.EnvironmentsFor(s.Selection.ExchangeID)
	if s.Selection.EnvironmentID != "" && !hasEnvironment(s.Environments, s.Selection.EnvironmentID) {
		s.Selection.EnvironmentID = ""
	}
	s.Mismatch, s.MismatchKnown = crosscheck.Detect(s.SelectedPair(), s.Evidence)
	return s
}

func invalidate(s State) State {
	s.InputRev++
	s.Result = nil
	if s.Phase != PhaseSubmitting {
		s.Phase = PhaseIdle
		s = clearError(s)
	}
	return s
}

func clearError(s State) State {
	s.ErrKind = domain.ErrorKindNone
	s.ErrMessage = ""
	s.ErrStatus = 0
	return s
}

func selectionChanged(a, b Selection) bool {
	return a.ExchangeID != b.ExchangeID ||
		a.PairID != b.PairID ||
		a.EnvironmentID != b.EnvironmentID ||
		a.SKUCode != b.SKUCode
}

func digitsOnly(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			out = append(out, c)
		}
	}
	return string(out)
}

func hasPair(pairs []domain.Pair, id string) bool {
	for _, p := range pairs {
		if p.ID == id {
			return true
		}
	}
	return false
}

func hasEnvironment(envs []domain.Environment, id string) bool {
	for _, e := range envs {
		if e.ID == id {
			return true
		}
	}
	return false
}

func hasSKU(skus []domain.SKU, code string) bool {
	for _, s := range skus {
		if s.Code == code {
			return true
		}
	}
	return false
}
