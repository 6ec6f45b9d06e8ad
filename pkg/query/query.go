package query

import "github.com/navdb/navdb/pkg/document"

// Query wraps a parsed filter mapping so callers (the collection's find
// path, the aggregation pipeline's $match stage) share one Matches
// implementation.
type Query struct {
	filter map[string]interface{}
}

// New wraps a filter mapping. A nil or empty filter matches every document.
func New(filter map[string]interface{}) *Query {
	return &Query{filter: filter}
}

// Matches reports whether doc satisfies the wrapped filter.
func (q *Query) Matches(doc *document.Document) (bool, error) {
	if q == nil || len(q.filter) == 0 {
		return true, nil
	}
	return Match(doc, q.filter)
}

// Filter returns the raw filter mapping.
func (q *Query) Filter() map[string]interface{} { return q.filter }

// TopLevelFields returns the filter's top-level field names, in the
// mapping's iteration order — used by the index planner to walk candidate
// fields in order.
func (q *Query) TopLevelFields() []string {
	fields := make([]string, 0, len(q.filter))
	for f := range q.filter {
		fields = append(fields, f)
	}
	return fields
}

// EqualityOperand reports whether the condition on field is a scalar
// equality, {$eq: v}, or {$in: [...]}, returning the candidate values to
// probe the index with when it is.
func EqualityOperand(condition interface{}) (values []interface{}, isEquality, isIn bool) {
	condMap, ok := condition.(map[string]interface{})
	if !ok {
		return []interface{}{condition}, true, false
	}
	if len(condMap) != 1 {
		return nil, false, false
	}
	for key, operand := range condMap {
		switch Operator(key) {
		case OpEq:
			return []interface{}{operand}, true, false
		case OpIn:
			values, ok := operand.([]interface{})
			if !ok {
				return nil, false, false
			}
			return values, true, true
		}
	}
	return nil, false, false
}
