package glob

import (
	"errors"
	"testing"
)

// TestMatch tests the flag-configurable matcher
func TestMatch(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		pattern string
		opts    Options
		want    bool
	}{
		{"Literal", "foo/bar", "foo/bar", Options{}, true},
		{"LiteralMismatch", "foo/bar", "foo/baz", Options{}, false},
		{"Anchored", "foo/bar", "foo", Options{}, false},
		{"AnchoredSuffix", "foo/bar", "bar", Options{}, false},

		{"StarWithinSegment", "foobar", "foo*", Options{}, true},
		{"StarStopsAtSeparator", "foo/bar", "foo/*", Options{}, true},
		{"StarDoesNotCrossSeparator", "foo/bar", "foo*", Options{}, false},
		{"StarDoesNotCrossDeep", "foo/bar/baz", "foo/*", Options{}, false},
		{"StarZeroWidth", "foo", "foo*", Options{}, true},

		{"DoubleStarOffIsTwoStars", "foo/bar", "foo/**", Options{}, true},
		{"DoubleStarOffStaysBounded", "foo/bar/baz", "foo/**", Options{}, false},
		{"DoubleStarOffSameSegment", "foobar", "foo**", Options{}, true},
		{"DoubleStarCrosses", "foo/bar", "foo/**", Options{DoubleStar: true}, true},
		{"DoubleStarCrossesDeep", "foo/bar/baz/qux", "foo/**", Options{DoubleStar: true}, true},
		{"DoubleStarMiddle", "a/b/c/d", "a/**/d", Options{DoubleStar: true}, true},
		{"LoneStarStillBounded", "foo/bar/baz", "foo/*/baz", Options{DoubleStar: true}, true},
		{"LoneStarStillBoundedNeg", "foo/b/ar/baz", "foo/*/baz", Options{DoubleStar: true}, false},

		{"Question", "cat", "c?t", Options{}, true},
		{"QuestionExactlyOne", "ct", "c?t", Options{}, false},
		{"QuestionNotSeparator", "c/t", "c?t", Options{}, false},

		{"Class", "cat", "c[abc]t", Options{}, true},
		{"ClassMiss", "cot", "c[abc]t", Options{}, false},
		{"ClassRange", "c5t", "c[0-9]t", Options{}, true},
		{"ClassNegated", "cot", "c[!abc]t", Options{}, true},
		{"ClassNegatedMiss", "cat", "c[!abc]t", Options{}, false},
		{"ClassCaretNegation", "cot", "c[^abc]t", Options{}, true},
		{"ClassLeadingBracket", "c]t", "c[]]t", Options{}, true},

		{"EscapedStar", "a*b", `a\*b`, Options{}, true},
		{"EscapedStarNotWildcard", "axb", `a\*b`, Options{}, false},
		{"EscapedQuestion", "a?b", `a\?b`, Options{}, true},
		{"EscapedBracket", "a[b", `a\[b`, Options{}, true},

		{"CaseSensitiveDefault", "FOO", "foo", Options{}, false},
		{"CaseInsensitive", "FOO", "foo", Options{CaseInsensitive: true}, true},
		{"CaseInsensitivePattern", "foo", "F?O", Options{CaseInsensitive: true}, true},

		{"NewlineBlocksStar", "a\nb", "a*b", Options{}, false},
		{"NewlineBlocksQuestion", "a\nb", "a?b", Options{}, false},
		{"NewlineBlocksDoubleStar", "a/x\ny/b", "a/**/b", Options{DoubleStar: true}, false},
		{"AllowNewlineStar", "a\nb", "a*b", Options{AllowNewline: true}, true},
		{"AllowNewlineQuestion", "a\nb", "a?b", Options{AllowNewline: true}, true},
		{"NewlineLiteralAlwaysMatches", "a\nb", "a\nb", Options{}, true},

		{"PathNormalizeBackslash", `foo\bar`, "foo/bar", Options{PathNormalize: true}, true},
		{"PathNormalizeDoubleSlash", "foo//bar", "foo/bar", Options{PathNormalize: true}, true},
		{"PathNormalizeDotSegment", "foo/./bar", "foo/bar", Options{PathNormalize: true}, true},
		{"PathNormalizeLeadingDot", "./foo/bar", "foo/bar", Options{PathNormalize: true}, true},
		{"PathNormalizeOffByDefault", "foo//bar", "foo/bar", Options{}, false},

		{"EmptyPatternEmptySubject", "", "", Options{}, true},
		{"StarMatchesEmpty", "", "*", Options{}, true},
		{"EmptyPatternNonEmptySubject", "x", "", Options{}, false},

		{"UnicodeSubject", "grüße", "gr?ße", Options{}, true},
		{"UnicodeClass", "grüße", "gr[ü]ße", Options{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Match(tc.subject, tc.pattern, tc.opts)
			if err != nil {
				t.Fatalf("Match(%q, %q) failed: %v", tc.subject, tc.pattern, err)
			}
			if got != tc.want {
				t.Errorf("Match(%q, %q, %+v) = %v, want %v", tc.subject, tc.pattern, tc.opts, got, tc.want)
			}
		})
	}
}

// TestPatternErrors tests that malformed patterns are errors, not non-matches
func TestPatternErrors(t *testing.T) {
	bad := []string{
		`dangling\`,
		`[unterminated`,
		`[!`,
		`[]`,
		`[z-a]`,
		`[a\`,
	}
	for _, pattern := range bad {
		t.Run(pattern, func(t *testing.T) {
			_, err := Match("anything", pattern, Options{})
			if !errors.Is(err, ErrPattern) {
				t.Errorf("Match with pattern %q = %v, want ErrPattern", pattern, err)
			}
		})
	}
}

// TestCompileReuse tests that a compiled glob is reusable and concurrency-safe
func TestCompileReuse(t *testing.T) {
	g, err := Compile("events/*/payload", Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	subjects := map[string]bool{
		"events/1/payload":   true,
		"events/abc/payload": true,
		"events/a/b/payload": false,
		"events/payload":     false,
	}

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for subject, want := range subjects {
				if got := g.Match(subject); got != want {
					t.Errorf("Match(%q) = %v, want %v", subject, got, want)
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	close(done)
}
