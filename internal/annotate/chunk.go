package annotate

import "sort"

// Chunk is a maximal span of a string value, tagged with whether it survived
// scrubbing untouched and which rules altered it. Concatenating the texts of
// the chunks returned for a string reproduces that string exactly.
type Chunk struct {
	Text     string   `json:"text"`
	RuleIDs  []string `json:"rule_ids,omitempty"`
	Redacted bool     `json:"redacted"`
}

// sameIdentity reports whether two chunks may be coalesced.
func (c Chunk) sameIdentity(other Chunk) bool {
	if c.Redacted != other.Redacted || len(c.RuleIDs) != len(other.RuleIDs) {
		return false
	}
	for i := range c.RuleIDs {
		if c.RuleIDs[i] != other.RuleIDs[i] {
			return false
		}
	}
	return true
}

// clippedRange is a remark range clamped to the bounds of one string.
type clippedRange struct {
	start, end int
	ruleID     string
}

// SplitChunks splits a scrubbed string into an ordered chunk sequence using
// the remarks that annotate it. Offsets are Unicode codepoints, so the split
// operates on a rune-indexed view of the string.
//
// Remarks without a range cover the whole string. Malformed ranges are
// clipped to [0, len] and inverted ranges contribute nothing; the rule
// engine producing remarks may lag behind the payload, so chunking is
// deliberately lenient and never fails.
func SplitChunks(s string, remarks []Remark) []Chunk {
	runes := []rune(s)
	n := len(runes)
	if n == 0 {
		return []Chunk{}
	}

	clipped := make([]clippedRange, 0, len(remarks))
	for _, rem := range remarks {
		start, end := 0, n
		if rem.Range != nil {
			start = clampOffset(rem.Range[0], n)
			end = clampOffset(rem.Range[1], n)
		}
		if start >= end {
			continue
		}
		clipped = append(clipped, clippedRange{start: start, end: end, ruleID: rem.RuleID})
	}

	// Boundary sweep: chunk borders can only occur at range endpoints, so
	// collecting and sorting them avoids pairwise overlap checks.
	boundaries := make([]int, 0, 2*len(clipped)+2)
	boundaries = append(boundaries, 0, n)
	for _, cr := range clipped {
		boundaries = append(boundaries, cr.start, cr.end)
	}
	sort.Ints(boundaries)

	chunks := make([]Chunk, 0, len(boundaries))
	for i := 0; i+1 < len(boundaries); i++ {
		a, b := boundaries[i], boundaries[i+1]
		if a >= b {
			continue
		}

		// Endpoints bound every span, so coverage is all-or-nothing here.
		var ruleIDs []string
		for _, cr := range clipped {
			if cr.start <= a && cr.end >= b && !containsString(ruleIDs, cr.ruleID) {
				ruleIDs = append(ruleIDs, cr.ruleID)
			}
		}

		chunk := Chunk{
			Text:     string(runes[a:b]),
			RuleIDs:  ruleIDs,
			Redacted: len(ruleIDs) > 0,
		}
		if last := len(chunks) - 1; last >= 0 && chunks[last].sameIdentity(chunk) {
			chunks[last].Text += chunk.Text
			continue
		}
		chunks = append(chunks, chunk)
	}

	return chunks
}

// clampOffset clamps a codepoint offset to [0, n].
func clampOffset(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
