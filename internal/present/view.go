package present

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alanyoungcy/liqguard/internal/wizard"
)

// StepView is a stepper entry with its label.
type StepView struct {
	ID     wizard.StepID     `json:"id"`
	Label  string            `json:"label"`
	Status wizard.StepStatus `json:"status"`
}

// View is everything a client needs to render a wizard.
type View struct {
	ID          string                  `json:"id"`
	Language    string                  `json:"language"`
	State       wizard.State            `json:"state"`
	Steps       []StepView              `json:"steps"`
	Hints       map[wizard.Field]string `json:"hints"`
	SubmitReady bool                    `json:"submit_ready"`
	Mismatch    string                  `json:"mismatch,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Result      []string                `json:"result,omitempty"`
	Evidence    []string                `json:"evidence,omitempty"`
	Transcript  string                  `json:"transcript,omitempty"`
}

// View renders s.
func (p *Presenter) View(id string, s wizard.State) View {
	steps := wizard.Steps(s)
	sv := make([]StepView, len(steps))
	for i, st := range steps {
		sv[i] = StepView{ID: st.ID, Label: p.StepLabel(st.ID), Status: st.Status}
	}

	v := View{
		ID:          id,
		Language:    p.Language(),
		State:       s,
		Steps:       sv,
		Hints:       p.Hints(s),
		SubmitReady: wizard.SubmitReady(s),
		Result:      p.Result(s.Result),
		Evidence:    p.Evidence(s.Evidence),
	}
	if s.MismatchKnown {
		v.Mismatch = p.Mismatch(s.Mismatch, s.SelectedPair(), s.Evidence)
	}
	if s.Phase == wizard.PhaseError {
		v.Error = p.Error(s.ErrKind, s.ErrStatus, s.ErrMessage)
	}
	if s.Evidence != nil {
		v.Transcript = p.Transcript(s.Evidence.RawText, DefaultTranscriptLimit)
	}
	return v
}

// WriteReport prints v as plain text for terminals.
func WriteReport(w io.Writer, v View) error {
	var b strings.Builder
	for _, st := range v.Steps {
		mark := " "
		switch st.Status {
		case wizard.StepComplete:
			mark = "x"
		case wizard.StepActive:
			mark = ">"
		}
		fmt.Fprintf(&b, "[%s] %s\n", mark, st.Label)
	}
	if len(v.Evidence) > 0 {
		b.WriteString("\n")
		for _, line := range v.Evidence {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	if len(v.Hints) > 0 {
		fields := make([]string, 0, len(v.Hints))
		for f := range v.Hints {
			fields = append(fields, string(f))
		}
		sort.Strings(fields)
		b.WriteString("\n")
		for _, f := range fields {
			fmt.Fprintf(&b, "  - %s\n", v.Hints[wizard.Field(f)])
		}
	}
	if v.Error != "" {
		fmt.Fprintf(&b, "\n%s\n", v.Error)
	}
	if len(v.Result) > 0 {
		b.WriteString("\n")
		for _, line := range v.Result {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
