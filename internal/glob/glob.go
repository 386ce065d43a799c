package glob

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPattern indicates a malformed glob pattern, such as an unterminated
// character class or a dangling escape. Callers must not treat a pattern
// error as "no match".
var ErrPattern = errors.New("invalid glob pattern")

// Options selects the matching behavior for one compiled pattern. Flags are
// explicit named booleans; there is no bitmask surface.
type Options struct {
	// CaseInsensitive folds subject and pattern to lower case once, before
	// the character-level algorithm runs.
	CaseInsensitive bool
	// DoubleStar makes a "**" token match across path separators (zero or
	// more whole segments). Without it "**" is just two ordinary stars and
	// stays segment-bounded.
	DoubleStar bool
	// PathNormalize canonicalizes the subject's separators before matching:
	// backslashes become "/", duplicate separators and "./" segments
	// collapse. Parent-directory segments are left alone.
	PathNormalize bool
	// AllowNewline lets the wildcard tokens "*", "?" and "**" match a
	// newline character, which they otherwise never do.
	AllowNewline bool
}

// Separator divides a subject into segments for segment-bounded wildcards.
const Separator = '/'

// Glob is a compiled pattern. It is immutable and safe for concurrent use.
type Glob struct {
	tokens []token
	opts   Options
}

// Compile parses pattern under opts. Malformed patterns fail with ErrPattern.
func Compile(pattern string, opts Options) (*Glob, error) {
	if opts.CaseInsensitive {
		pattern = strings.ToLower(pattern)
	}
	tokens, err := parsePattern(pattern, opts.DoubleStar)
	if err != nil {
		return nil, err
	}
	return &Glob{tokens: tokens, opts: opts}, nil
}

// Match reports whether the whole subject matches the compiled pattern.
// Matching is anchored at both ends; this is not substring search.
func (g *Glob) Match(subject string) bool {
	if g.opts.CaseInsensitive {
		subject = strings.ToLower(subject)
	}
	if g.opts.PathNormalize {
		subject = normalizeSubject(subject)
	}
	return matchTokens(g.tokens, []rune(subject), g.opts.AllowNewline)
}

// Match compiles pattern under opts and tests subject against it.
func Match(subject, pattern string, opts Options) (bool, error) {
	g, err := Compile(pattern, opts)
	if err != nil {
		return false, err
	}
	return g.Match(subject), nil
}

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenAny                // ?
	tokenStar               // * bounded to one segment
	tokenDoubleStar         // ** across segments
	tokenClass              // [...]
)

type token struct {
	kind  tokenKind
	lit   rune
	class *charClass
}

type charClass struct {
	negated bool
	ranges  []charRange
}

type charRange struct {
	lo, hi rune
}

func (c *charClass) matches(r rune) bool {
	in := false
	for _, cr := range c.ranges {
		if r >= cr.lo && r <= cr.hi {
			in = true
			break
		}
	}
	if c.negated {
		return !in
	}
	return in
}

// parsePattern tokenizes a glob pattern. With doubleStar set, a "**" run is
// folded into a single cross-segment token; longer star runs contribute
// additional segment-bounded stars.
func parsePattern(pattern string, doubleStar bool) ([]token, error) {
	runes := []rune(pattern)
	tokens := make([]token, 0, len(runes))

	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("%w: dangling escape at end of %q", ErrPattern, pattern)
			}
			i++
			tokens = append(tokens, token{kind: tokenLiteral, lit: runes[i]})
		case '?':
			tokens = append(tokens, token{kind: tokenAny})
		case '*':
			if doubleStar && i+1 < len(runes) && runes[i+1] == '*' {
				tokens = append(tokens, token{kind: tokenDoubleStar})
				i++
				continue
			}
			tokens = append(tokens, token{kind: tokenStar})
		case '[':
			class, next, err := parseClass(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenClass, class: class})
			i = next
		default:
			tokens = append(tokens, token{kind: tokenLiteral, lit: runes[i]})
		}
	}

	return tokens, nil
}

// parseClass parses a character class starting at the "[" at runes[start]
// and returns the class and the index of the closing bracket. A "]" right
// after the opening (or the negation marker) is a literal member.
func parseClass(runes []rune, start int) (*charClass, int, error) {
	class := &charClass{}
	i := start + 1

	if i < len(runes) && (runes[i] == '!' || runes[i] == '^') {
		class.negated = true
		i++
	}

	first := true
	for i < len(runes) {
		if runes[i] == ']' && !first {
			return class, i, nil
		}
		first = false

		lo := runes[i]
		if lo == '\\' {
			if i+1 >= len(runes) {
				return nil, 0, fmt.Errorf("%w: dangling escape in character class", ErrPattern)
			}
			i++
			lo = runes[i]
		}
		i++

		hi := lo
		if i+1 < len(runes) && runes[i] == '-' && runes[i+1] != ']' {
			i++
			hi = runes[i]
			if hi == '\\' {
				if i+1 >= len(runes) {
					return nil, 0, fmt.Errorf("%w: dangling escape in character class", ErrPattern)
				}
				i++
				hi = runes[i]
			}
			i++
			if hi < lo {
				return nil, 0, fmt.Errorf("%w: inverted range in character class", ErrPattern)
			}
		}

		class.ranges = append(class.ranges, charRange{lo: lo, hi: hi})
	}

	return nil, 0, fmt.Errorf("%w: unterminated character class", ErrPattern)
}

// matchTokens matches the token sequence against the whole subject.
// Variable-width tokens backtrack by recursing at every candidate length.
func matchTokens(tokens []token, subject []rune, allowNewline bool) bool {
	if len(tokens) == 0 {
		return len(subject) == 0
	}

	t := tokens[0]
	switch t.kind {
	case tokenStar, tokenDoubleStar:
		crossSegments := t.kind == tokenDoubleStar
		for i := 0; ; i++ {
			if matchTokens(tokens[1:], subject[i:], allowNewline) {
				return true
			}
			if i >= len(subject) {
				return false
			}
			if subject[i] == Separator && !crossSegments {
				return false
			}
			if subject[i] == '\n' && !allowNewline {
				return false
			}
		}
	case tokenAny:
		if len(subject) == 0 || subject[0] == Separator {
			return false
		}
		if subject[0] == '\n' && !allowNewline {
			return false
		}
		return matchTokens(tokens[1:], subject[1:], allowNewline)
	case tokenClass:
		if len(subject) == 0 || !t.class.matches(subject[0]) {
			return false
		}
		return matchTokens(tokens[1:], subject[1:], allowNewline)
	default:
		if len(subject) == 0 || subject[0] != t.lit {
			return false
		}
		return matchTokens(tokens[1:], subject[1:], allowNewline)
	}
}

// normalizeSubject applies the conservative separator canonicalization the
// PathNormalize flag promises: backslashes to "/", then duplicate
// separators and single-dot segments collapsed.
func normalizeSubject(subject string) string {
	if strings.Contains(subject, `\`) {
		subject = strings.ReplaceAll(subject, `\`, "/")
	}
	for strings.Contains(subject, "//") {
		subject = strings.ReplaceAll(subject, "//", "/")
	}
	for strings.Contains(subject, "/./") {
		subject = strings.ReplaceAll(subject, "/./", "/")
	}
	subject = strings.TrimPrefix(subject, "./")
	return subject
}
