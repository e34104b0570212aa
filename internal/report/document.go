package report

// If the profiler fails, the build MUST continue.
// If we are unsure, DO LESS.
// Observation only, never control.

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Document is an insertion-ordered string-keyed mapping. Values are plain
// scalars, nested *Document, or slices of either. It marshals to JSON and
// YAML with keys in insertion order.
type Document struct {
	values *orderedmap.OrderedMap[string, interface{}]
}

// NewDocument creates an empty document
func NewDocument() *Document {
	return &Document{values: orderedmap.New[string, interface{}]()}
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position.
func (d *Document) Set(key string, value interface{}) *Document {
	d.values.Set(key, value)
	return d
}

// Get returns the value stored under key
func (d *Document) Get(key string) (interface{}, bool) {
	return d.values.Get(key)
}

// Has reports whether key is present
func (d *Document) Has(key string) bool {
	_, ok := d.values.Get(key)
	return ok
}

// Delete removes key. Returns false if it was absent.
func (d *Document) Delete(key string) bool {
	_, ok := d.values.Delete(key)
	return ok
}

// Keys returns the keys in insertion order
func (d *Document) Keys() []string {
	out := make([]string, 0, d.values.Len())
	for pair := d.values.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Len returns the number of keys
func (d *Document) Len() int {
	return d.values.Len()
}

// Lookup resolves a dotted path such as "build.plugins"
func (d *Document) Lookup(path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	cur := d
	for i, seg := range segments {
		v, ok := cur.Get(seg)
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		next, ok := v.(*Document)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Prune removes the leaf referenced by each dotted path. A path whose
// prefix does not resolve to a nested document is ignored. Pruning is
// idempotent. Callers that need the full document afterwards prune a Clone.
func (d *Document) Prune(paths ...string) *Document {
	for _, path := range paths {
		if path == "" {
			continue
		}
		segments := strings.Split(path, ".")
		cur := d
		for _, seg := range segments[:len(segments)-1] {
			v, _ := cur.Get(seg)
			next, ok := v.(*Document)
			if !ok {
				cur = nil
				break
			}
			cur = next
		}
		if cur != nil {
			cur.Delete(segments[len(segments)-1])
		}
	}
	return d
}

// Clone returns a deep copy. Nested documents and slices are copied; scalar
// values are shared.
func (d *Document) Clone() *Document {
	out := NewDocument()
	for pair := d.values.Oldest(); pair != nil; pair = pair.Next() {
		out.values.Set(pair.Key, cloneValue(pair.Value))
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *Document:
		return val.Clone()
	case []*Document:
		out := make([]*Document, len(val))
		for i, doc := range val {
			out[i] = doc.Clone()
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// MarshalJSON encodes the document as a JSON object in key order
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.values.MarshalJSON()
}

// MarshalYAML encodes the document as a YAML mapping in key order
func (d *Document) MarshalYAML() (interface{}, error) {
	return d.values.MarshalYAML()
}

// Map converts the document into plain nested maps, for consumers that do
// not care about key order.
func (d *Document) Map() map[string]interface{} {
	out := make(map[string]interface{}, d.values.Len())
	for pair := d.values.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = plainValue(pair.Value)
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *Document:
		return val.Map()
	case []*Document:
		out := make([]interface{}, len(val))
		for i, doc := range val {
			out[i] = doc.Map()
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}
