package aggregation

import (
	"fmt"

	"github.com/navdb/navdb/pkg/document"
)

// groupStage implements $group. The group key ("_id") is one of:
//   - a mapping -> a tuple of dotted-path reads of each of its values
//   - a string starting with '$' -> a dotted-path read
//   - null, or the literal string "$none" -> a single group
//   - anything else -> a literal key
//
// Each non-"_id" field names an accumulator {operator, field} where
// operator is one of $sum/$avg/$min/$max/$count/$first/$last.
type groupStage struct {
	idSpec       interface{}
	accumulators []groupAccumulator
}

type groupAccumulator struct {
	name     string
	operator string
	field    string
}

func newGroupStage(spec interface{}) (*groupStage, error) {
	doc, ok := spec.(*document.Document)
	if !ok {
		return nil, fmt.Errorf("$group requires a group specification")
	}
	idSpec, ok := doc.Get("_id")
	if !ok {
		return nil, fmt.Errorf("$group requires an _id field")
	}

	var accs []groupAccumulator
	for _, name := range doc.Keys() {
		if name == "_id" {
			continue
		}
		v, _ := doc.Get(name)
		accSpec, ok := document.AsMap(v)
		if !ok {
			return nil, fmt.Errorf("$group accumulator %q must be an {operator, field} object", name)
		}
		opVal, _ := accSpec["operator"]
		fieldVal, _ := accSpec["field"]
		op, ok := opVal.(string)
		if !ok {
			return nil, fmt.Errorf("$group accumulator %q missing string operator", name)
		}
		field, _ := fieldVal.(string)
		switch op {
		case "$sum", "$avg", "$min", "$max", "$count", "$first", "$last":
		default:
			return nil, fmt.Errorf("$group accumulator %q has unsupported operator %q", name, op)
		}
		accs = append(accs, groupAccumulator{name: name, operator: op, field: field})
	}

	return &groupStage{idSpec: idSpec, accumulators: accs}, nil
}

func (s *groupStage) Type() string { return "$group" }

// groupKeyTuple is a comparable representation of a group key usable as a
// Go map key: a mapping _id produces a slice of per-component values joined
// into a string tuple (fmt.Sprint-based, adequate for grouping equality).
type groupKeyTuple string

func (s *groupStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	type group struct {
		keyValue interface{}
		docs     []*document.Document
	}

	order := make([]groupKeyTuple, 0)
	groups := make(map[groupKeyTuple]*group)

	for _, d := range docs {
		keyValue, tuple := s.extractKey(d)
		g, ok := groups[tuple]
		if !ok {
			g = &group{keyValue: keyValue}
			groups[tuple] = g
			order = append(order, tuple)
		}
		g.docs = append(g.docs, d)
	}

	out := make([]*document.Document, 0, len(groups))
	for _, tuple := range order {
		g := groups[tuple]
		result := document.New()
		result.Set("_id", g.keyValue)
		for _, acc := range s.accumulators {
			v, err := computeAccumulator(acc, g.docs)
			if err != nil {
				return nil, err
			}
			result.Set(acc.name, v)
		}
		out = append(out, result)
	}
	return out, nil
}

func (s *groupStage) extractKey(d *document.Document) (value interface{}, tuple groupKeyTuple) {
	switch id := s.idSpec.(type) {
	case nil:
		return nil, "$none"
	case string:
		if id == "$none" {
			return nil, "$none"
		}
		if len(id) > 0 && id[0] == '$' {
			v, ok := d.GetPath(id)
			if !ok {
				v = nil
			}
			return v, groupKeyTuple(fmt.Sprint(v))
		}
		return id, groupKeyTuple("lit:" + id)
	default:
		if m, ok := document.AsMap(id); ok {
			doc, isDoc := id.(*document.Document)
			var keys []string
			if isDoc {
				keys = doc.Keys()
			} else {
				for k := range m {
					keys = append(keys, k)
				}
			}
			result := document.New()
			tupleStr := ""
			for _, k := range keys {
				ref, _ := m[k]
				var v interface{}
				if refStr, ok := ref.(string); ok {
					v, _ = d.GetPath(refStr)
				} else {
					v = ref
				}
				result.Set(k, v)
				tupleStr += k + "=" + fmt.Sprint(v) + ";"
			}
			return result, groupKeyTuple(tupleStr)
		}
		return id, groupKeyTuple(fmt.Sprint(id))
	}
}

func computeAccumulator(acc groupAccumulator, docs []*document.Document) (interface{}, error) {
	switch acc.operator {
	case "$count":
		return int64(len(docs)), nil
	case "$sum":
		sum := 0.0
		for _, d := range docs {
			if v, ok := d.GetPath(acc.field); ok {
				if f, ok := toFloat(v); ok {
					sum += f
				}
			}
		}
		return numericResult(sum), nil
	case "$avg":
		if len(docs) == 0 {
			return int64(0), nil
		}
		sum := 0.0
		n := 0
		for _, d := range docs {
			if v, ok := d.GetPath(acc.field); ok {
				if f, ok := toFloat(v); ok {
					sum += f
					n++
				}
			}
		}
		if n == 0 {
			return int64(0), nil
		}
		return sum / float64(n), nil
	case "$min", "$max":
		var best interface{}
		for _, d := range docs {
			v, ok := d.GetPath(acc.field)
			if !ok {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			cmp, ok := document.Comparable(v, best)
			if !ok {
				continue
			}
			if (acc.operator == "$min" && cmp < 0) || (acc.operator == "$max" && cmp > 0) {
				best = v
			}
		}
		return best, nil
	case "$first":
		if len(docs) == 0 {
			return nil, nil
		}
		v, _ := docs[0].GetPath(acc.field)
		return v, nil
	case "$last":
		if len(docs) == 0 {
			return nil, nil
		}
		v, _ := docs[len(docs)-1].GetPath(acc.field)
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported aggregation operator %q", acc.operator)
	}
}

func numericResult(f float64) interface{} {
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
