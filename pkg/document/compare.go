package document

import "fmt"

// Comparable reports whether a and b can be ordered, and if so their
// relation: -1 (a<b), 0 (a==b), 1 (a>b). Numbers compare across int64/
// float64 representations; strings compare lexicographically; anything
// else (bools, arrays, mappings, mixed types) is not comparable.
func Comparable(a, b interface{}) (cmp int, ok bool) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	return 0, false
}

// Equal reports deep equality, handling numeric cross-type comparison
// (int64 vs float64) the way a JSON-agnostic matcher should.
func Equal(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	if am, aok := AsMap(a); aok {
		bm, bok := AsMap(b)
		if !bok || len(am) != len(bm) {
			return false
		}
		for k, e := range am {
			if be, ok := bm[k]; !ok || !Equal(e, be) {
				return false
			}
		}
		return true
	}
	switch av := a.(type) {
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
	}
}

func sameKind(a, b interface{}) bool {
	_, aIsNum := asFloat(a)
	_, bIsNum := asFloat(b)
	if aIsNum || bIsNum {
		return aIsNum == bIsNum
	}
	as, aOk := a.(string)
	bs, bOk := b.(string)
	if aOk || bOk {
		return aOk && bOk && as == bs
	}
	ab, aOk := a.(bool)
	bb, bOk := b.(bool)
	if aOk || bOk {
		return aOk && bOk && ab == bb
	}
	return a == nil && b == nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
