// Package evidence recovers a structured record from user-supplied evidence
// files. Files come from heterogeneous exchange exports, so field discovery
// is forgiving: any key anywhere in the JSON tree may supply a field.
package evidence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// Warnings the parser may attach to a record.
const (
	WarnMissingPair      = "missing pair field"
	warnReconstructedFmt = "content was reconstructed from %d lines"
)

// Field names a semantic evidence attribute.
type Field string

const (
	FieldExchange     Field = "exchange"
	FieldPair         Field = "pair"
	FieldInstType     Field = "instType"
	FieldContractType Field = "contractType"
)

// Aliases maps each field to the lower-cased keys that may carry it, in
// priority order.
var Aliases = []struct {
	Field Field
	Keys  []string
}{
	{FieldExchange, []string{"exchange", "exchangeid", "platform", "source"}},
	{FieldPair, []string{"instid", "symbol", "pair", "instrumentid", "contract"}},
	{FieldInstType, []string{"insttype", "instrumenttype", "type"}},
	{FieldContractType, []string{"contracttype", "contractmode", "category", "producttype"}},
}

// Decode turns data into text. A UTF-8 or UTF-16 byte order mark selects the
// encoding and is removed; without one the data is read as UTF-8. Invalid
// sequences become U+FFFD. NUL bytes mark the file as binary.
func Decode(data []byte) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return "", fmt.Errorf("evidence: %w: %v", domain.ErrEvidenceUnreadable, err)
	}
	switch {
	case len(decoded) == 0:
		return "", fmt.Errorf("evidence: %w: empty file", domain.ErrEvidenceUnreadable)
	case bytes.IndexByte(decoded, 0) >= 0:
		return "", fmt.Errorf("evidence: %w: binary content", domain.ErrEvidenceUnreadable)
	}
	return strings.ToValidUTF8(string(decoded), "\uFFFD"), nil
}

// ParseFile decodes and parses an uploaded file.
func ParseFile(fileName string, data []byte) (*domain.Evidence, error) {
	text, err := Decode(data)
	if err != nil {
		return nil, err
	}
	ev, err := Parse(text)
	if err != nil {
		return nil, err
	}
	ev.FileName = fileName
	return ev, nil
}

// Parse turns evidence text into a record. The whole text is parsed as JSON
// first; if that fails the non-empty trimmed lines are joined and parsed
// again, which recovers pretty-printed exports that were wrapped or split.
func Parse(text string) (*domain.Evidence, error) {
	ev := &domain.Evidence{
		RawText:  text,
		Warnings: []string{},
		ParsedAt: time.Now().UTC(),
	}

	root, err := unmarshal(text)
	if err != nil {
		joined, n := joinLines(text)
		root, err = unmarshal(joined)
		if err != nil {
			return nil, fmt.Errorf("evidence: %w: %v", domain.ErrEvidenceUnreadable, err)
		}
		ev.Warnings = append(ev.Warnings, fmt.Sprintf(warnReconstructedFmt, n))
	}

	keys := flatten(root)
	fields := make(map[Field]string, len(Aliases))
	for _, a := range Aliases {
		for _, k := range a.Keys {
			if v, ok := keys[k]; ok && v != "" {
				fields[a.Field] = v
				break
			}
		}
	}

	ev.Exchange = fields[FieldExchange]
	ev.Pair = fields[FieldPair]
	ev.InstType = fields[FieldInstType]
	ev.ContractType = fields[FieldContractType]
	if ev.Pair == "" {
		ev.Warnings = append(ev.Warnings, WarnMissingPair)
	}
	return ev, nil
}

// Reconstructed reports whether ev was recovered by joining lines.
func Reconstructed(ev *domain.Evidence) bool {
	for _, w := range ev.Warnings {
		if strings.HasPrefix(w, "content was reconstructed") {
			return true
		}
	}
	return false
}

func unmarshal(text string) (*structpb.Value, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no content")
	}
	// Repeated keys are legal JSON and the last one wins, so the tree is
	// decoded by encoding/json before it is handed to structpb.
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing content after JSON value")
	}
	return structpb.NewValue(raw)
}

func joinLines(text string) (string, int) {
	var b strings.Builder
	n := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString(line)
		n++
	}
	return b.String(), n
}

// flatten walks the tree breadth first and records every scalar leaf under
// its lower-cased key. The shallowest occurrence of a key wins; siblings are
// visited in key order so the result does not depend on map iteration.
func flatten(root *structpb.Value) map[string]string {
	out := make(map[string]string)
	queue := []*structpb.Value{root}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		switch kind := v.GetKind().(type) {
		case *structpb.Value_StructValue:
			fields := kind.StructValue.GetFields()
			names := make([]string, 0, len(fields))
			for name := range fields {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				child := fields[name]
				key := strings.ToLower(strings.TrimSpace(name))
				if s, ok := scalar(child); ok {
					if _, seen := out[key]; !seen {
						out[key] = s
					}
					continue
				}
				queue = append(queue, child)
			}
		case *structpb.Value_ListValue:
			queue = append(queue, kind.ListValue.GetValues()...)
		}
	}
	return out
}

// scalar renders string and number leaves, upper-cased and trimmed. Other
// kinds are not captured.
func scalar(v *structpb.Value) (string, bool) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return strings.ToUpper(strings.TrimSpace(kind.StringValue)), true
	case *structpb.Value_NumberValue:
		return formatNumber(kind.NumberValue), true
	default:
		return "", false
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.ToUpper(strconv.FormatFloat(f, 'f', -1, 64))
}
