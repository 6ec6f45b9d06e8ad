package aggregation

import (
	"testing"

	"github.com/navdb/navdb/pkg/document"
)

func mkDoc(fields map[string]interface{}) *document.Document {
	d := document.New()
	for _, k := range []string{"_id", "g", "n"} {
		if v, ok := fields[k]; ok {
			d.Set(k, v)
		}
	}
	return d
}

func TestGroupSumThenSort(t *testing.T) {
	docs := []*document.Document{
		mkDoc(map[string]interface{}{"g": "a", "n": int64(1)}),
		mkDoc(map[string]interface{}{"g": "a", "n": int64(3)}),
		mkDoc(map[string]interface{}{"g": "b", "n": int64(2)}),
	}

	raw := `[{"$group":{"_id":"$g","total":{"operator":"$sum","field":"n"}}},{"$sort":{"_id":1}}]`
	stages, err := document.ParseArray([]byte(raw))
	if err != nil {
		t.Fatalf("ParseArray: %v", err)
	}
	p, err := NewPipeline(stages)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	out, err := p.Execute(docs)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(out))
	}
	id0, _ := out[0].Get("_id")
	total0, _ := out[0].Get("total")
	id1, _ := out[1].Get("_id")
	total1, _ := out[1].Get("total")
	if id0 != "a" || total0 != int64(4) || id1 != "b" || total1 != int64(2) {
		t.Fatalf("unexpected groups: %v=%v, %v=%v", id0, total0, id1, total1)
	}
}

func TestSkipThenLimit(t *testing.T) {
	docs := []*document.Document{
		mkDoc(map[string]interface{}{"n": int64(1)}),
		mkDoc(map[string]interface{}{"n": int64(2)}),
		mkDoc(map[string]interface{}{"n": int64(3)}),
	}
	stages, err := document.ParseArray([]byte(`[{"$skip":1},{"$limit":1}]`))
	if err != nil {
		t.Fatalf("ParseArray: %v", err)
	}
	p, err := NewPipeline(stages)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	out, err := p.Execute(docs)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(out))
	}
	n, _ := out[0].Get("n")
	if n != int64(2) {
		t.Fatalf("n = %v, want 2", n)
	}
}

func TestProjectWhitelistOnly(t *testing.T) {
	d := mkDoc(map[string]interface{}{"g": "a", "n": int64(1)})
	stages, err := document.ParseArray([]byte(`[{"$project":{"g":1}}]`))
	if err != nil {
		t.Fatalf("ParseArray: %v", err)
	}
	p, err := NewPipeline(stages)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	out, err := p.Execute([]*document.Document{d})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out[0].Len() != 1 {
		t.Fatalf("expected whitelist-only output with 1 field, got %d", out[0].Len())
	}
	if _, ok := out[0].Get("n"); ok {
		t.Fatalf("field n should have been excluded")
	}
}
