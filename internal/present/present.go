// Package present renders wizard state as localized text: field hints,
// stepper labels, mismatch explanations, errors, results and a sanitized
// evidence transcript.
package present

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/evidence"
	"github.com/alanyoungcy/liqguard/internal/wizard"
)

// DefaultTranscriptLimit caps the transcript length in runes.
const DefaultTranscriptLimit = 4000

var (
	messages = newCatalog()
	matcher  = language.NewMatcher(Supported)
	strict   = bluemonday.StrictPolicy()
)

// Presenter renders text in one language.
type Presenter struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Presenter for the best supported match of lang, which may be
// a BCP 47 tag or an Accept-Language header value.
func New(lang string) *Presenter {
	tag := Supported[0]
	if lang != "" {
		if tags, _, err := language.ParseAcceptLanguage(lang); err == nil && len(tags) > 0 {
			_, idx, _ := matcher.Match(tags...)
			tag = Supported[idx]
		}
	}
	return &Presenter{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(catalog.Catalog(messages))),
	}
}

// Language returns the BCP 47 tag in use.
func (p *Presenter) Language() string { return p.tag.String() }

func (p *Presenter) text(key string, args ...any) string {
	return p.printer.Sprintf(key, args...)
}

// Hints returns one hint per unmet field. Satisfied fields are absent.
func (p *Presenter) Hints(s wizard.State) map[wizard.Field]string {
	hints := make(map[wizard.Field]string)
	for _, f := range wizard.MissingFields(s) {
		if h := p.FieldHint(s, f); h != "" {
			hints[f] = h
		}
	}
	return hints
}

// FieldHint explains what field f still needs. Empty and invalid numeric
// input get different hints.
func (p *Presenter) FieldHint(s wizard.State, f wizard.Field) string {
	sel := s.Selection
	switch f {
	case wizard.FieldExchange:
		return p.text(msgHintExchange)
	case wizard.FieldPair:
		if sel.ExchangeID == "" {
			return p.text(msgHintPairNoExchange)
		}
		return p.text(msgHintPair)
	case wizard.FieldOrderID:
		if sel.OrderID == "" {
			return p.text(msgHintOrderEmpty)
		}
		return p.text(msgHintOrderShort, wizard.MinOrderIDLength, len(sel.OrderID))
	case wizard.FieldEvidence:
		switch {
		case s.Parsing:
			return p.text(msgHintEvidenceParsing)
		case s.EvidenceError != "":
			return p.text(msgHintEvidenceBad)
		case s.Evidence == nil:
			return p.text(msgHintEvidence)
		case !s.MismatchKnown:
			return p.text(msgHintEvidencePair)
		default:
			return p.Mismatch(s.Mismatch, s.SelectedPair(), s.Evidence)
		}
	case wizard.FieldSKU:
		return p.text(msgHintSKU)
	case wizard.FieldEnvironment:
		return p.text(msgHintEnvironment)
	case wizard.FieldPrincipal:
		return p.numericHint(sel.Principal, msgHintPrincipalEmpty, msgHintPrincipalBad)
	case wizard.FieldLeverage:
		return p.numericHint(sel.Leverage, msgHintLeverageEmpty, msgHintLeverageBad)
	}
	return ""
}

func (p *Presenter) numericHint(f wizard.NumericField, empty, invalid string) string {
	switch f.Status {
	case wizard.NumericEmpty:
		return p.text(empty)
	case wizard.NumericInvalid:
		return p.text(invalid)
	}
	return ""
}

// StepLabel names a stepper step.
func (p *Presenter) StepLabel(id wizard.StepID) string {
	switch id {
	case wizard.StepExchange:
		return p.text(msgStepExchange)
	case wizard.StepPair:
		return p.text(msgStepPair)
	case wizard.StepOrder:
		return p.text(msgStepOrder)
	case wizard.StepEvidence:
		return p.text(msgStepEvidence)
	}
	return string(id)
}

// Mismatch explains a verdict. pair and ev may be nil, in which case the
// explanation omits the conflicting values.
func (p *Presenter) Mismatch(m domain.Mismatch, pair *domain.Pair, ev *domain.Evidence) string {
	var got, want string
	switch m {
	case domain.MismatchNone:
		return ""
	case domain.MismatchParsedPairMissing:
		return p.text(msgMismatchPairMissing)
	case domain.MismatchPair:
		if ev != nil {
			got = ev.Pair
		}
		return p.text(msgMismatchPair, orDash(got))
	case domain.MismatchInstType:
		if ev != nil {
			got = ev.InstType
		}
		if pair != nil {
			want = pair.InstType
		}
		return p.text(msgMismatchInstType, orDash(got), orDash(want))
	case domain.MismatchContractType:
		if ev != nil {
			got = ev.ContractType
		}
		if pair != nil {
			want = pair.ContractType
		}
		return p.text(msgMismatchContractType, orDash(got), orDash(want))
	}
	return string(m)
}

// Error renders an error kind. status and detail are only used for upstream
// errors.
func (p *Presenter) Error(kind domain.ErrorKind, status int, detail string) string {
	switch kind {
	case domain.ErrorKindNone:
		return ""
	case domain.ErrorKindEvidenceUnreadable:
		return p.text(msgErrEvidenceUnreadable)
	case domain.ErrorKindFieldsMissing:
		return p.text(msgErrFieldsMissing)
	case domain.ErrorKindEvidenceMismatch:
		return p.text(msgErrEvidenceMismatch)
	case domain.ErrorKindCryptoUnavailable:
		return p.text(msgErrCryptoUnavailable)
	case domain.ErrorKindUnauthorized:
		return p.text(msgErrUnauthorized)
	case domain.ErrorKindUpstream:
		return p.text(msgErrUpstream, status, Sanitize(detail))
	default:
		return p.text(msgErrUnknown)
	}
}

// Result renders a verification result as lines of text.
func (p *Presenter) Result(r *domain.VerificationResult) []string {
	if r == nil {
		return nil
	}
	lines := make([]string, 0, 5)
	if r.Eligible {
		lines = append(lines, p.text(msgResultEligible))
	} else {
		lines = append(lines, p.text(msgResultIneligible))
	}
	if r.Status != "" {
		lines = append(lines, p.text(msgResultStatus, r.Status))
	}
	if q := r.Quote; q != nil {
		lines = append(lines, p.text(msgResultQuote,
			q.Premium.String(), q.Currency, q.Payout.String(), q.Currency))
	}
	if r.PolicyID != "" {
		lines = append(lines, p.text(msgResultPolicy, r.PolicyID))
	}
	if !r.ProcessedAt.IsZero() {
		lines = append(lines, p.text(msgResultProcessed, r.ProcessedAt.UTC().Format(time.RFC3339)))
	}
	return lines
}

// Evidence renders the recovered fields followed by the parse warnings.
func (p *Presenter) Evidence(ev *domain.Evidence) []string {
	if ev == nil {
		return nil
	}
	notFound := p.text(msgEvidenceNotFound)
	field := func(v string) string {
		if v == "" {
			return notFound
		}
		return v
	}
	var lines []string
	if ev.FileName != "" {
		lines = append(lines, p.text(msgEvidenceFile, Sanitize(ev.FileName)))
	}
	lines = append(lines,
		p.text(msgEvidenceExchange, field(ev.Exchange)),
		p.text(msgEvidencePair, field(ev.Pair)),
		p.text(msgEvidenceInstType, field(ev.InstType)),
		p.text(msgEvidenceContractType, field(ev.ContractType)),
	)
	for _, w := range ev.Warnings {
		lines = append(lines, "! "+p.Warning(w))
	}
	return lines
}

// Warning translates a parser warning. Unknown warnings pass through.
func (p *Presenter) Warning(w string) string {
	if w == evidence.WarnMissingPair {
		return p.text(msgWarnMissingPair)
	}
	var n int
	if _, err := fmt.Sscanf(w, msgWarnReconstructed, &n); err == nil {
		return p.text(msgWarnReconstructed, n)
	}
	return w
}

// Transcript returns raw evidence text safe for HTML display, truncated to
// limit runes. A limit of zero or less uses DefaultTranscriptLimit.
func (p *Presenter) Transcript(raw string, limit int) string {
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}
	truncated := false
	if utf8.RuneCountInString(raw) > limit {
		raw = string([]rune(raw)[:limit])
		truncated = true
	}
	out := Sanitize(raw)
	if truncated {
		out += "\n" + p.text(msgTruncated)
	}
	return out
}

// Sanitize strips all markup from user-controlled text.
func Sanitize(s string) string {
	return strict.Sanitize(s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
