package query

import (
	"testing"

	"github.com/navdb/navdb/pkg/document"
)

func doc(fields map[string]interface{}) *document.Document {
	d := document.New()
	for k, v := range fields {
		d.Set(k, v)
	}
	return d
}

func TestMatchScalarEquality(t *testing.T) {
	d := doc(map[string]interface{}{"price": int64(20)})
	ok, err := Match(d, map[string]interface{}{"price": int64(20)})
	if err != nil || !ok {
		t.Fatalf("Match = %v, %v; want true, nil", ok, err)
	}
}

func TestMatchOperatorAnd(t *testing.T) {
	d := doc(map[string]interface{}{"price": int64(20)})
	ok, err := Match(d, map[string]interface{}{"price": map[string]interface{}{"$gt": int64(10), "$lt": int64(30)}})
	if err != nil || !ok {
		t.Fatalf("Match = %v, %v; want true, nil", ok, err)
	}
}

func TestMatchMissingFieldFails(t *testing.T) {
	d := doc(map[string]interface{}{"price": int64(20)})
	ok, err := Match(d, map[string]interface{}{"qty": int64(1)})
	if err != nil || ok {
		t.Fatalf("Match = %v, %v; want false, nil", ok, err)
	}
}

func TestMatchUnknownOperatorErrors(t *testing.T) {
	d := doc(map[string]interface{}{"price": int64(20)})
	_, err := Match(d, map[string]interface{}{"price": map[string]interface{}{"$gte": int64(10)}})
	if err == nil {
		t.Fatalf("expected error for unknown operator")
	}
}

func TestMatchIn(t *testing.T) {
	d := doc(map[string]interface{}{"category": "x"})
	ok, _ := Match(d, map[string]interface{}{"category": map[string]interface{}{"$in": []interface{}{"x", "y"}}})
	if !ok {
		t.Fatalf("expected $in match")
	}
}

func TestMatchIncomparableTypeFails(t *testing.T) {
	d := doc(map[string]interface{}{"tags": []interface{}{"a"}})
	ok, err := Match(d, map[string]interface{}{"tags": map[string]interface{}{"$gt": int64(1)}})
	if err != nil || ok {
		t.Fatalf("Match = %v, %v; want false, nil for incomparable types", ok, err)
	}
}

func TestMatchNestedMapping(t *testing.T) {
	d := doc(map[string]interface{}{"addr": map[string]interface{}{"city": "Patiala"}})
	ok, err := Match(d, map[string]interface{}{"addr": map[string]interface{}{"city": "Patiala"}})
	if err != nil || !ok {
		t.Fatalf("Match = %v, %v; want true, nil", ok, err)
	}
}
