package document

import "testing"

func TestSetGetOrderPreserved(t *testing.T) {
	d := New()
	d.Set("b", 1)
	d.Set("a", 2)
	d.Set("b", 3)

	if got := d.Keys(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("unexpected key order: %v", got)
	}
	v, ok := d.Get("b")
	if !ok || v != 3 {
		t.Fatalf("Get(b) = %v, %v; want 3, true", v, ok)
	}
}

func TestGetPathNested(t *testing.T) {
	d := New()
	d.Set("addr", map[string]interface{}{"city": "Chandigarh"})

	v, ok := d.GetPath("addr.city")
	if !ok || v != "Chandigarh" {
		t.Fatalf("GetPath(addr.city) = %v, %v; want Chandigarh, true", v, ok)
	}
	if _, ok := d.GetPath("addr.zip"); ok {
		t.Fatalf("GetPath(addr.zip) should miss")
	}
	if _, ok := d.GetPath("missing.x"); ok {
		t.Fatalf("GetPath through missing top field should miss")
	}
}

func TestGetPathStripsDollarPrefix(t *testing.T) {
	d := New()
	d.Set("g", "a")

	v, ok := d.GetPath("$g")
	if !ok || v != "a" {
		t.Fatalf("GetPath($g) = %v, %v; want a, true", v, ok)
	}
}

func TestDeleteAndHas(t *testing.T) {
	d := New()
	d.Set("x", 1)
	if !d.Has("x") {
		t.Fatalf("expected Has(x)")
	}
	d.Delete("x")
	if d.Has("x") {
		t.Fatalf("expected field removed")
	}
	if d.Len() != 0 {
		t.Fatalf("expected empty document after delete, got len %d", d.Len())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	d := New()
	d.Set("tags", []interface{}{"a", "b"})

	c := d.Clone()
	tags, _ := c.Get("tags")
	tags.([]interface{})[0] = "z"

	orig, _ := d.Get("tags")
	if orig.([]interface{})[0] == "z" {
		t.Fatalf("Clone shared underlying slice with original")
	}
}

func TestDeepMergeNestedOverwrite(t *testing.T) {
	d := New()
	d.Set("profile", map[string]interface{}{"age": int64(10), "city": "Patiala"})

	DeepMerge(d, map[string]interface{}{
		"profile": map[string]interface{}{"age": int64(11)},
	})

	v, _ := d.GetPath("profile.age")
	if v != int64(11) {
		t.Fatalf("profile.age = %v, want 11", v)
	}
	v, _ = d.GetPath("profile.city")
	if v != "Patiala" {
		t.Fatalf("profile.city = %v, want Patiala (untouched by merge)", v)
	}
}

func TestFromJSONPreservesOrder(t *testing.T) {
	d, err := FromJSON([]byte(`{"_id":"a","b":1,"a":2}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	keys := d.Keys()
	want := []string{"_id", "b", "a"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	d := New()
	d.Set("_id", "x")
	d.Set("n", int64(5))

	raw, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var got Document
	if err := got.UnmarshalJSON(raw); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if got.ID() != "x" {
		t.Fatalf("ID() = %q, want x", got.ID())
	}
	n, _ := got.Get("n")
	if n != int64(5) {
		t.Fatalf("n = %v, want 5", n)
	}
}
