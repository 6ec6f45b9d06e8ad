package query

import "github.com/navdb/navdb/pkg/document"

// Match evaluates a query against a document, implementing the single
// unified predicate semantics: for every (field, condition) pair in query,
// the field must be present in doc and satisfy condition. A condition that
// is a mapping of operator/value pairs requires every operator to hold
// (logical AND); a condition that is a mapping with no operator keys is a
// nested sub-query matched recursively against a mapping-valued field; any
// other condition is matched by exact equality.
func Match(doc *document.Document, q map[string]interface{}) (bool, error) {
	for field, condition := range q {
		fieldValue, ok := doc.Get(field)
		if !ok {
			return false, nil
		}
		ok, err := matchCondition(fieldValue, condition)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// matchCondition is the generalization of Match used when field already names
// a known in-hand value rather than being read off a *document.Document —
// used for nested sub-query predicates.
func matchCondition(fieldValue, condition interface{}) (bool, error) {
	condMap, ok := condition.(map[string]interface{})
	if !ok {
		return document.Equal(fieldValue, condition), nil
	}

	if !hasOperatorKey(condMap) {
		// Nested predicate: fieldValue must itself be a mapping.
		nested, ok := document.AsMap(fieldValue)
		if !ok {
			return false, nil
		}
		for subField, subCond := range condMap {
			subVal, ok := nested[subField]
			if !ok {
				return false, nil
			}
			ok, err := matchCondition(subVal, subCond)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}

	for key, operand := range condMap {
		if !IsOperator(key) {
			return false, &ParseError{Message: "unknown operator " + key}
		}
		ok, err := evaluateOperator(Operator(key), fieldValue, operand)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func hasOperatorKey(m map[string]interface{}) bool {
	for k := range m {
		if len(k) > 0 && k[0] == '$' {
			return true
		}
	}
	return false
}
