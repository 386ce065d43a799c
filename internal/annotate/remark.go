package annotate

import (
	"encoding/json"
	"fmt"
	"math"
)

// RemarkKind says how a rule altered the annotated range. The single-letter
// codes are the relay wire format.
type RemarkKind string

const (
	// RemarkRemoved marks content that was deleted outright.
	RemarkRemoved RemarkKind = "x"
	// RemarkReplaced marks content substituted with a placeholder.
	RemarkReplaced RemarkKind = "s"
	// RemarkPseudonymized marks content swapped for a stable pseudonym.
	RemarkPseudonymized RemarkKind = "p"
	// RemarkMasked marks content overwritten character by character.
	RemarkMasked RemarkKind = "m"
)

// Remark records that a scrub rule altered a value, optionally narrowed to a
// codepoint range [Start, End) of the post-scrub string. A nil Range means
// the remark applies to the whole value.
//
// The wire form is the compact array used by the upstream scrub engine:
// ["rule_id", "kind"] or ["rule_id", "kind", start, end].
type Remark struct {
	RuleID string
	Kind   RemarkKind
	Range  *[2]int
}

// HasRange reports whether the remark is narrowed to a range.
func (r Remark) HasRange() bool { return r.Range != nil }

// MarshalJSON emits the compact array wire form.
func (r Remark) MarshalJSON() ([]byte, error) {
	if r.Range == nil {
		return json.Marshal([2]interface{}{r.RuleID, string(r.Kind)})
	}
	return json.Marshal([4]interface{}{r.RuleID, string(r.Kind), r.Range[0], r.Range[1]})
}

// UnmarshalJSON decodes the compact array wire form. Shape violations are
// fatal: remarks are machine-generated, so anything but a 2- or 4-element
// array of the right types signals an upstream bug. Out-of-bounds or
// inverted offsets are NOT rejected here; chunking clips them later.
func (r *Remark) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: remark must be an array: %v", ErrFormat, err)
	}
	if len(parts) != 2 && len(parts) != 4 {
		return fmt.Errorf("%w: remark must have 2 or 4 elements, got %d", ErrFormat, len(parts))
	}

	var ruleID, kind string
	if err := json.Unmarshal(parts[0], &ruleID); err != nil {
		return fmt.Errorf("%w: remark rule id: %v", ErrFormat, err)
	}
	if err := json.Unmarshal(parts[1], &kind); err != nil {
		return fmt.Errorf("%w: remark kind: %v", ErrFormat, err)
	}

	out := Remark{RuleID: ruleID, Kind: RemarkKind(kind)}
	if len(parts) == 4 {
		var start, end float64
		if err := json.Unmarshal(parts[2], &start); err != nil {
			return fmt.Errorf("%w: remark range start: %v", ErrFormat, err)
		}
		if err := json.Unmarshal(parts[3], &end); err != nil {
			return fmt.Errorf("%w: remark range end: %v", ErrFormat, err)
		}
		out.Range = &[2]int{clampToInt(start), clampToInt(end)}
	}

	*r = out
	return nil
}

// clampToInt converts a JSON number to an int without overflow surprises.
func clampToInt(f float64) int {
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}
