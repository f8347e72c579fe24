package wizard

// StepID names one of the four wizard steps.
type StepID string

const (
	StepExchange StepID = "exchange"
	StepPair     StepID = "pair"
	StepOrder    StepID = "order"
	StepEvidence StepID = "evidence"
)

// StepStatus is how a step is displayed.
type StepStatus string

const (
	StepComplete StepStatus = "complete"
	StepActive   StepStatus = "active"
	StepPending  StepStatus = "pending"
)

// Step is one entry of the stepper view.
type Step struct {
	ID       StepID     `json:"id"`
	Complete bool       `json:"complete"`
	Status   StepStatus `json:"status"`
}

// Steps projects s onto the four steps in fixed order. The first incomplete
// step is active and every later incomplete step is pending.
func Steps(s State) []Step {
	steps := []Step{
		{ID: StepExchange, Complete: s.Selection.ExchangeID != ""},
		{ID: StepPair, Complete: s.Selection.PairID != ""},
		{ID: StepOrder, Complete: s.OrderValid()},
		{ID: StepEvidence, Complete: s.EvidenceMatches()},
	}
	activeSeen := false
	for i := range steps {
		switch {
		case steps[i].Complete:
			steps[i].Status = StepComplete
		case !activeSeen:
			steps[i].Status = StepActive
			activeSeen = true
		default:
			steps[i].Status = StepPending
		}
	}
	return steps
}
