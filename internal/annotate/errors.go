package annotate

import "errors"

// Sentinel errors for annotation reconciliation.
var (
	// ErrFormat indicates a contract violation between the scrub engine and
	// this service, such as a non-numeric meta key under an array value.
	// It is fatal for the whole merge call; no partial result is returned.
	ErrFormat = errors.New("malformed annotation input")

	// ErrDepthExceeded indicates the meta tree nests deeper than the
	// configured limit. Payload shapes are externally influenced, so the
	// merge refuses to recurse without bound.
	ErrDepthExceeded = errors.New("maximum tree depth exceeded")
)
