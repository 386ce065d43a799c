package annotate

import (
	"errors"
	"fmt"
	"strconv"
)

// DefaultMaxDepth bounds merge recursion when MergeOptions leaves MaxDepth
// unset. Meta trees come from externally influenced payloads, so depth is
// never trusted.
const DefaultMaxDepth = 128

// MergeOptions configures a merge call.
type MergeOptions struct {
	// MaxDepth is the maximum nesting depth walked before the merge fails
	// with ErrDepthExceeded. Zero means DefaultMaxDepth.
	MaxDepth int
}

func (o *MergeOptions) applyDefaults() {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
}

// Merge walks a scrubbed value tree and its meta tree in lockstep and
// returns a copy of the meta tree in which every annotation record that
// targets a string value with remarks gains a chunk sequence.
//
// The output mirrors the meta tree's shape: keys absent from meta never
// appear, and children whose recursive result is empty are omitted. The two
// trees are not assumed to agree; every mismatch has an explicit rule:
//
//   - object value: descend into the named field, or Null if absent
//   - array value: the key must be a decimal index (anything else fails
//     with ErrFormat); out-of-bounds indexes descend into Null
//   - scalar value with deeper meta children: descend into Null, so
//     errors recorded below scalars survive without gaining chunks
//
// Merge is pure. On error the whole call fails with no partial result.
func Merge(value Value, meta *MetaNode, opts MergeOptions) (*MetaNode, error) {
	opts.applyDefaults()
	if meta == nil {
		return &MetaNode{}, nil
	}
	return mergeNode(value, meta, opts.MaxDepth)
}

func mergeNode(value Value, meta *MetaNode, depth int) (*MetaNode, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("%w: meta tree nests too deeply", ErrDepthExceeded)
	}

	out := &MetaNode{}
	if record := meta.Annotation; record != nil {
		merged := record.clone()
		if len(record.Remarks) > 0 && value.Kind() == KindString {
			merged.Chunks = SplitChunks(value.Str(), record.Remarks)
		}
		out.Annotation = merged
	}

	for key, child := range meta.Children {
		childValue, err := valueForKey(value, key)
		if err != nil {
			return nil, err
		}

		mergedChild, err := mergeNode(childValue, child, depth-1)
		if err != nil {
			return nil, err
		}
		if mergedChild.IsEmpty() {
			continue
		}
		out.addChild(key, mergedChild)
	}

	return out, nil
}

// valueForKey resolves the value position a meta child key refers to.
func valueForKey(value Value, key string) (Value, error) {
	switch value.Kind() {
	case KindObject:
		if field, ok := value.Field(key); ok {
			return field, nil
		}
		return Null(), nil
	case KindArray:
		// Meta trees are machine-generated; a non-numeric key under an
		// array is an upstream contract violation, not user input. An
		// index too large for uint64 is still a number, just out of bounds.
		index, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return Null(), nil
			}
			return Null(), fmt.Errorf("%w: array meta key %q is not a valid index", ErrFormat, key)
		}
		if index >= uint64(value.Len()) {
			return Null(), nil
		}
		return value.Index(int(index)), nil
	default:
		// Nothing to descend into; deeper records still get preserved.
		return Null(), nil
	}
}
