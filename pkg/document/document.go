// Package document implements the ordered JSON-shaped document type shared
// by every navdb component: the collection store, the query matcher, the
// aggregation pipeline, and the journal codec.
package document

import (
	"encoding/json"
	"strings"
)

// Document is an ordered mapping of string keys to JSON values. Order is
// insertion order and is preserved across Clone, Set and JSON round-trips;
// it drives $project's output field order, $sort's key priority, and the
// field order written to disk.
type Document struct {
	fields map[string]interface{}
	order  []string
}

// New returns an empty document.
func New() *Document {
	return &Document{fields: make(map[string]interface{})}
}

// FromMap builds a document from a plain map, ordering fields: "_id" first
// (if present) followed by the remaining keys in the order Go's map
// iteration happens to produce. Callers that need a stable order (e.g. the
// JSON decoder) should use FromJSON instead.
func FromMap(m map[string]interface{}) *Document {
	d := New()
	if id, ok := m["_id"]; ok {
		d.Set("_id", id)
	}
	for k, v := range m {
		if k == "_id" {
			continue
		}
		d.Set(k, v)
	}
	return d
}

// FromJSON decodes a single JSON object into a Document, preserving field
// order — including the order of nested objects, which are themselves
// decoded into *Document — as written in the source text.
func FromJSON(raw []byte) (*Document, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	v, err := decodeFromDecoder(dec)
	if err != nil {
		return nil, err
	}
	d, ok := v.(*Document)
	if !ok {
		return nil, &json.UnmarshalTypeError{Value: "non-object"}
	}
	return d, nil
}

// ParseArray decodes a top-level JSON array of objects, preserving each
// object's field order — used for the aggregation pipeline's stage list.
func ParseArray(raw []byte) ([]*Document, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	v, err := decodeFromDecoder(dec)
	if err != nil {
		return nil, err
	}
	elems, ok := v.([]interface{})
	if !ok {
		return nil, &json.UnmarshalTypeError{Value: "non-array"}
	}
	out := make([]*Document, 0, len(elems))
	for _, e := range elems {
		d, ok := e.(*Document)
		if !ok {
			return nil, &json.UnmarshalTypeError{Value: "non-object array element"}
		}
		out = append(out, d)
	}
	return out, nil
}

// decodeFromDecoder reads one JSON value off dec, preserving object field
// order by building *Document values instead of plain maps.
func decodeFromDecoder(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeTokenValue(dec, tok)
}

func decodeTokenValue(dec *json.Decoder, tok json.Token) (interface{}, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			d := New()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, &json.UnmarshalTypeError{Value: "non-string key"}
				}
				valTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				val, err := decodeTokenValue(dec, valTok)
				if err != nil {
					return nil, err
				}
				d.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return d, nil
		case '[':
			var out []interface{}
			for dec.More() {
				elemTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				val, err := decodeTokenValue(dec, elemTok)
				if err != nil {
					return nil, err
				}
				out = append(out, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			if out == nil {
				out = []interface{}{}
			}
			return out, nil
		default:
			return nil, &json.UnmarshalTypeError{Value: "unexpected delimiter"}
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, _ := t.Float64()
		return f, nil
	default:
		return tok, nil
	}
}

// Set assigns field, appending it to the field order if new.
func (d *Document) Set(field string, value interface{}) {
	if _, exists := d.fields[field]; !exists {
		d.order = append(d.order, field)
	}
	d.fields[field] = value
}

// Get returns the direct (non-dotted) field value.
func (d *Document) Get(field string) (interface{}, bool) {
	v, ok := d.fields[field]
	return v, ok
}

// GetPath resolves a dotted path ("a.b.c") against nested mappings. A
// leading '$' is stripped before traversal (aggregation field references).
// Returns (nil, false) if any segment is missing or traverses a non-mapping.
func (d *Document) GetPath(path string) (interface{}, bool) {
	path = strings.TrimPrefix(path, "$")
	segments := strings.Split(path, ".")
	if len(segments) == 0 {
		return nil, false
	}
	cur, ok := d.Get(segments[0])
	if !ok {
		return nil, false
	}
	for _, seg := range segments[1:] {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetPathValue resolves a dotted path against an arbitrary value, the
// generalization of GetPath used when traversal must start from something
// other than a whole Document (e.g. a raw map pulled out of a field).
func GetPathValue(v interface{}, path string) (interface{}, bool) {
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	return AsMap(v)
}

// AsMap returns v as a plain map if it is either a map[string]interface{}
// or a *Document (converted via ToMap), and false otherwise.
func AsMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case *Document:
		return m.ToMap(), true
	default:
		return nil, false
	}
}

// Has reports whether field is directly present (no dotted traversal).
func (d *Document) Has(field string) bool {
	_, ok := d.fields[field]
	return ok
}

// Delete removes field, a no-op if absent.
func (d *Document) Delete(field string) {
	if _, ok := d.fields[field]; !ok {
		return
	}
	delete(d.fields, field)
	for i, f := range d.order {
		if f == field {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in insertion order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of fields.
func (d *Document) Len() int { return len(d.order) }

// ID returns the document's "_id" field as a string, or "" if absent or
// non-string.
func (d *Document) ID() string {
	v, ok := d.Get("_id")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ToMap returns a plain map view of the document. Nested *Document values
// are themselves converted recursively.
func (d *Document) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(d.fields))
	for k, v := range d.fields {
		out[k] = toPlain(v)
	}
	return out
}

func toPlain(v interface{}) interface{} {
	switch val := v.(type) {
	case *Document:
		return val.ToMap()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = toPlain(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = toPlain(e)
		}
		return out
	default:
		return val
	}
}

// Clone deep-copies the document, including nested maps, slices and
// documents, so mutation of the copy never affects the original.
func (d *Document) Clone() *Document {
	c := New()
	for _, k := range d.order {
		c.Set(k, cloneValue(d.fields[k]))
	}
	return c
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *Document:
		return val.Clone()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return val
	}
}

// MarshalJSON serializes the document preserving field order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf strings.Builder
	buf.WriteByte('{')
	for i, k := range d.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(toPlain(d.fields[k]))
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return []byte(buf.String()), nil
}

// UnmarshalJSON decodes into the document, preserving source field order.
func (d *Document) UnmarshalJSON(data []byte) error {
	decoded, err := FromJSON(data)
	if err != nil {
		return err
	}
	*d = *decoded
	return nil
}

// DeepMerge merges src into dst in place, following $set semantics: for
// each key in src, if both dst and src hold a mapping at that key they are
// merged recursively; otherwise src overwrites dst.
func DeepMerge(dst *Document, src map[string]interface{}) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if existing, ok := dst.Get(k); ok {
				if dstDoc, ok := existing.(*Document); ok {
					mergeIntoDocument(dstDoc, srcMap)
					continue
				}
				if dstMap, ok := existing.(map[string]interface{}); ok {
					merged := deepMergeMap(dstMap, srcMap)
					dst.Set(k, merged)
					continue
				}
			}
			dst.Set(k, cloneValue(srcMap))
			continue
		}
		dst.Set(k, cloneValue(v))
	}
}

func mergeIntoDocument(dst *Document, src map[string]interface{}) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if existing, ok := dst.Get(k); ok {
				if dstDoc, ok := existing.(*Document); ok {
					mergeIntoDocument(dstDoc, srcMap)
					continue
				}
				if dstMap, ok := existing.(map[string]interface{}); ok {
					dst.Set(k, deepMergeMap(dstMap, srcMap))
					continue
				}
			}
			dst.Set(k, cloneValue(srcMap))
			continue
		}
		dst.Set(k, cloneValue(v))
	}
}

func deepMergeMap(dst, src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		out[k] = cloneValue(v)
	}
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := out[k].(map[string]interface{}); ok {
				out[k] = deepMergeMap(dstMap, srcMap)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}
