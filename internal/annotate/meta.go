package annotate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Annotation is the per-field record the scrub engine attaches to a tree
// position via the reserved empty-string key. Error descriptors are opaque
// upstream artifacts and are carried through untouched. Chunks are only ever
// populated by the merge, for string values with remarks.
type Annotation struct {
	Remarks []Remark          `json:"rem,omitempty"`
	Errors  []json.RawMessage `json:"err,omitempty"`
	Length  *int              `json:"len,omitempty"`
	Chunks  []Chunk           `json:"chunks,omitempty"`
}

// IsEmpty reports whether the record carries nothing.
func (a *Annotation) IsEmpty() bool {
	return a == nil || (len(a.Remarks) == 0 && len(a.Errors) == 0 && a.Length == nil && a.Chunks == nil)
}

// clone copies the record so merge output never aliases merge input.
func (a *Annotation) clone() *Annotation {
	if a == nil {
		return nil
	}
	out := &Annotation{}
	if a.Remarks != nil {
		out.Remarks = append([]Remark(nil), a.Remarks...)
	}
	if a.Errors != nil {
		out.Errors = append([]json.RawMessage(nil), a.Errors...)
	}
	if a.Length != nil {
		l := *a.Length
		out.Length = &l
	}
	return out
}

// MetaNode is one position in the sparse meta tree that parallels a value
// tree. Children are keyed by field name or decimal array index; the
// annotation record, if any, sits at the reserved empty key. A missing node
// means there is nothing to report at or below that path.
type MetaNode struct {
	Annotation *Annotation
	Children   map[string]*MetaNode
}

// IsEmpty reports whether the node carries neither a record nor children.
func (m *MetaNode) IsEmpty() bool {
	return m == nil || (m.Annotation.IsEmpty() && len(m.Children) == 0)
}

// Child returns the child node under key, or nil.
func (m *MetaNode) Child(key string) *MetaNode {
	if m == nil {
		return nil
	}
	return m.Children[key]
}

// addChild attaches a child node, allocating the map lazily.
func (m *MetaNode) addChild(key string, child *MetaNode) {
	if m.Children == nil {
		m.Children = make(map[string]*MetaNode)
	}
	m.Children[key] = child
}

// UnmarshalJSON decodes the nested-object wire form of a meta tree. The
// empty key holds the annotation record, every other key a child node.
func (m *MetaNode) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*m = MetaNode{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: meta node must be an object: %v", ErrFormat, err)
	}

	node := MetaNode{}
	for key, body := range raw {
		if key == "" {
			record := &Annotation{}
			if err := json.Unmarshal(body, record); err != nil {
				return fmt.Errorf("%w: annotation record: %v", ErrFormat, err)
			}
			node.Annotation = record
			continue
		}
		child := &MetaNode{}
		if err := json.Unmarshal(body, child); err != nil {
			return err
		}
		node.addChild(key, child)
	}

	*m = node
	return nil
}

// MarshalJSON emits the nested-object wire form. The record is written
// first and children follow in sorted key order, keeping serialization
// byte-stable for identical trees.
func (m *MetaNode) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	if m.Annotation != nil {
		body, err := json.Marshal(m.Annotation)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`"":`)
		buf.Write(body)
		first = false
	}

	keys := make([]string, 0, len(m.Children))
	for k := range m.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.Children[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
