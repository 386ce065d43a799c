package annotate

import (
	"strings"
	"testing"
)

func rng(start, end int) *[2]int {
	return &[2]int{start, end}
}

// TestSplitChunks tests the boundary-sweep chunk splitter
func TestSplitChunks(t *testing.T) {
	t.Run("NoRemarks", func(t *testing.T) {
		chunks := SplitChunks("hello", nil)
		if len(chunks) != 1 {
			t.Fatalf("Expected one chunk, got %d", len(chunks))
		}
		if chunks[0].Text != "hello" || chunks[0].Redacted || len(chunks[0].RuleIDs) != 0 {
			t.Errorf("Unexpected chunk: %+v", chunks[0])
		}
	})

	t.Run("EmptyString", func(t *testing.T) {
		chunks := SplitChunks("", []Remark{{RuleID: "r1", Kind: RemarkRemoved}})
		if len(chunks) != 0 {
			t.Errorf("Expected no chunks for empty string, got %d", len(chunks))
		}
	})

	t.Run("OverlapUnion", func(t *testing.T) {
		chunks := SplitChunks("abcdef", []Remark{
			{RuleID: "r1", Kind: RemarkMasked, Range: rng(0, 3)},
			{RuleID: "r2", Kind: RemarkMasked, Range: rng(2, 5)},
		})

		expected := []Chunk{
			{Text: "ab", RuleIDs: []string{"r1"}, Redacted: true},
			{Text: "c", RuleIDs: []string{"r1", "r2"}, Redacted: true},
			{Text: "de", RuleIDs: []string{"r2"}, Redacted: true},
			{Text: "f", Redacted: false},
		}
		assertChunks(t, chunks, expected)
	})

	t.Run("WholeValueRemark", func(t *testing.T) {
		chunks := SplitChunks("secret", []Remark{{RuleID: "strip-all", Kind: RemarkReplaced}})
		expected := []Chunk{{Text: "secret", RuleIDs: []string{"strip-all"}, Redacted: true}}
		assertChunks(t, chunks, expected)
	})

	t.Run("OutOfBoundsClipped", func(t *testing.T) {
		chunks := SplitChunks("abc", []Remark{{RuleID: "r1", Kind: RemarkRemoved, Range: rng(-5, 99)}})
		expected := []Chunk{{Text: "abc", RuleIDs: []string{"r1"}, Redacted: true}}
		assertChunks(t, chunks, expected)
	})

	t.Run("InvertedRangeIgnored", func(t *testing.T) {
		chunks := SplitChunks("abc", []Remark{{RuleID: "r1", Kind: RemarkRemoved, Range: rng(2, 1)}})
		expected := []Chunk{{Text: "abc", Redacted: false}}
		assertChunks(t, chunks, expected)
	})

	t.Run("CodepointOffsets", func(t *testing.T) {
		// Offsets count codepoints, not bytes; each snowman is 3 bytes.
		chunks := SplitChunks("☃☃abc", []Remark{{RuleID: "r1", Kind: RemarkMasked, Range: rng(0, 2)}})
		expected := []Chunk{
			{Text: "☃☃", RuleIDs: []string{"r1"}, Redacted: true},
			{Text: "abc", Redacted: false},
		}
		assertChunks(t, chunks, expected)
	})

	t.Run("AdjacentSameRuleCoalesced", func(t *testing.T) {
		chunks := SplitChunks("abcd", []Remark{
			{RuleID: "r1", Kind: RemarkMasked, Range: rng(0, 2)},
			{RuleID: "r1", Kind: RemarkMasked, Range: rng(2, 4)},
		})
		expected := []Chunk{{Text: "abcd", RuleIDs: []string{"r1"}, Redacted: true}}
		assertChunks(t, chunks, expected)
	})

	t.Run("DuplicateRuleIDNotRepeated", func(t *testing.T) {
		chunks := SplitChunks("abc", []Remark{
			{RuleID: "r1", Kind: RemarkMasked, Range: rng(0, 3)},
			{RuleID: "r1", Kind: RemarkRemoved, Range: rng(0, 3)},
		})
		expected := []Chunk{{Text: "abc", RuleIDs: []string{"r1"}, Redacted: true}}
		assertChunks(t, chunks, expected)
	})
}

// TestSplitChunksProperties tests the documented invariants over a case grid
func TestSplitChunksProperties(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		remarks []Remark
	}{
		{"Plain", "the quick brown fox", nil},
		{"Whole", "the quick brown fox", []Remark{{RuleID: "a", Kind: RemarkRemoved}}},
		{"Overlapping", "abcdefghij", []Remark{
			{RuleID: "a", Kind: RemarkMasked, Range: rng(1, 5)},
			{RuleID: "b", Kind: RemarkMasked, Range: rng(3, 8)},
			{RuleID: "c", Kind: RemarkRemoved, Range: rng(0, 10)},
		}},
		{"Degenerate", "xy", []Remark{
			{RuleID: "a", Kind: RemarkMasked, Range: rng(1, 1)},
			{RuleID: "b", Kind: RemarkMasked, Range: rng(-3, -1)},
			{RuleID: "c", Kind: RemarkMasked, Range: rng(5, 2)},
		}},
		{"Unicode", "héllo wörld ☃", []Remark{
			{RuleID: "a", Kind: RemarkPseudonymized, Range: rng(2, 7)},
			{RuleID: "b", Kind: RemarkMasked, Range: rng(6, 13)},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := SplitChunks(tc.input, tc.remarks)

			// Round-trip: concatenated chunk texts reproduce the input.
			var sb strings.Builder
			for _, c := range chunks {
				sb.WriteString(c.Text)
			}
			if sb.String() != tc.input {
				t.Errorf("Concatenated chunks = %q, want %q", sb.String(), tc.input)
			}

			// Coalescing: no two neighbors share redacted flag and rule set.
			for i := 1; i < len(chunks); i++ {
				if chunks[i-1].sameIdentity(chunks[i]) {
					t.Errorf("Chunks %d and %d share identity: %+v", i-1, i, chunks[i])
				}
			}

			// Redacted flag agrees with rule attribution.
			for i, c := range chunks {
				if c.Redacted != (len(c.RuleIDs) > 0) {
					t.Errorf("Chunk %d redacted flag disagrees with rule ids: %+v", i, c)
				}
				if c.Text == "" {
					t.Errorf("Chunk %d has empty text", i)
				}
			}
		})
	}
}

func assertChunks(t *testing.T, got, want []Chunk) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d chunks, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].Text != want[i].Text || got[i].Redacted != want[i].Redacted {
			t.Errorf("Chunk %d = %+v, want %+v", i, got[i], want[i])
			continue
		}
		if len(got[i].RuleIDs) != len(want[i].RuleIDs) {
			t.Errorf("Chunk %d rule ids = %v, want %v", i, got[i].RuleIDs, want[i].RuleIDs)
			continue
		}
		for j := range want[i].RuleIDs {
			if got[i].RuleIDs[j] != want[i].RuleIDs[j] {
				t.Errorf("Chunk %d rule ids = %v, want %v", i, got[i].RuleIDs, want[i].RuleIDs)
				break
			}
		}
	}
}
