package query

import "github.com/navdb/navdb/pkg/document"

// Operator is one of the closed set of comparison operators a query
// condition mapping may use. Unknown operators are validation errors, not
// silently ignored (see matcher.go).
type Operator string

const (
	OpEq Operator = "$eq"
	OpNe Operator = "$ne"
	OpGt Operator = "$gt"
	OpLt Operator = "$lt"
	OpIn Operator = "$in"
)

// IsOperator reports whether key names one of the closed set of query
// operators.
func IsOperator(key string) bool {
	switch Operator(key) {
	case OpEq, OpNe, OpGt, OpLt, OpIn:
		return true
	default:
		return false
	}
}

// evaluateOperator applies a single operator/value pair against a field
// value. Comparisons against an incomparable type fail rather than abort,
// per the matcher's contract.
func evaluateOperator(op Operator, fieldValue, operand interface{}) (bool, error) {
	switch op {
	case OpEq:
		return document.Equal(fieldValue, operand), nil
	case OpNe:
		return !document.Equal(fieldValue, operand), nil
	case OpGt:
		cmp, ok := document.Comparable(fieldValue, operand)
		return ok && cmp > 0, nil
	case OpLt:
		cmp, ok := document.Comparable(fieldValue, operand)
		return ok && cmp < 0, nil
	case OpIn:
		values, ok := operand.([]interface{})
		if !ok {
			return false, &ParseError{Message: "$in requires an array operand"}
		}
		for _, v := range values {
			if document.Equal(fieldValue, v) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, &ParseError{Message: "unknown operator " + string(op)}
	}
}
