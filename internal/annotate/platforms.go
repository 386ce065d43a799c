package annotate

import "sort"

// knownPlatforms is the fixed set of platform identifiers upstream
// normalizers accept. Initialized once at startup and never mutated;
// readers get copies.
var knownPlatforms = map[string]struct{}{
	"as3":        {},
	"c":          {},
	"cfml":       {},
	"cocoa":      {},
	"csharp":     {},
	"elixir":     {},
	"go":         {},
	"groovy":     {},
	"haskell":    {},
	"java":       {},
	"javascript": {},
	"native":     {},
	"node":       {},
	"objc":       {},
	"other":      {},
	"perl":       {},
	"php":        {},
	"python":     {},
	"ruby":       {},
}

// KnownPlatforms returns the sorted list of recognized platform identifiers.
func KnownPlatforms() []string {
	out := make([]string, 0, len(knownPlatforms))
	for p := range knownPlatforms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsKnownPlatform reports whether p is a recognized platform identifier.
func IsKnownPlatform(p string) bool {
	_, ok := knownPlatforms[p]
	return ok
}
