package jsonvalue

import "testing"

func TestParse_PreservesObjectKeyOrder(t *testing.T) {
	v, err := Parse([]byte(`{"z":1,"a":2,"m":3}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	obj, ok := AsObject(v)
	if !ok {
		t.Fatalf("expected object")
	}
	want := []string{"z", "a", "m"}
	got := obj.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
}

func TestParse_RoundTripPreservesOrder(t *testing.T) {
	v, err := Parse([]byte(`{"b":1,"a":2}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"b":1,"a":2}`
	if string(out) != want {
		t.Fatalf("Marshal = %s, want %s", out, want)
	}
}

func TestParse_DuplicateKeyRejected(t *testing.T) {
	_, err := Parse([]byte(`{"a":1,"a":2}`))
	if err == nil {
		t.Fatalf("expected error for duplicate key")
	}
}

func TestEqual(t *testing.T) {
	a, _ := Parse([]byte(`{"x":1,"y":[1,2,"z"]}`))
	b, _ := Parse([]byte(`{"y":[1,2,"z"],"x":1}`))
	if !Equal(a, b) {
		t.Fatalf("expected a and b to be equal regardless of key order")
	}

	c, _ := Parse([]byte(`{"x":1,"y":[1,2,"w"]}`))
	if Equal(a, c) {
		t.Fatalf("expected a and c to differ")
	}
}

func TestGetByPath(t *testing.T) {
	v, _ := Parse([]byte(`{"a":{"b":{"c":42}},"arr":[{"v":1},{"v":2}]}`))

	got, ok := GetByPath(v, "a.b.c")
	if !ok || got != float64(42) {
		t.Fatalf("GetByPath a.b.c = %v, %v", got, ok)
	}

	got, ok = GetByPath(v, "arr.1.v")
	if !ok || got != float64(2) {
		t.Fatalf("GetByPath arr.1.v = %v, %v", got, ok)
	}

	_, ok = GetByPath(v, "a.missing")
	if ok {
		t.Fatalf("expected missing path to resolve false")
	}

	// Empty tokens (leading/trailing/doubled dots) are discarded.
	got, ok = GetByPath(v, "..a.b.c.")
	if !ok || got != float64(42) {
		t.Fatalf("GetByPath with stray dots = %v, %v", got, ok)
	}
}

func TestParseMaybeJSON(t *testing.T) {
	v := ParseMaybeJSON(`  {"ok":true}  `)
	obj, ok := AsObject(v)
	if !ok {
		t.Fatalf("expected object, got %#v", v)
	}
	b, _ := obj.Get("ok")
	if b != true {
		t.Fatalf("expected ok=true, got %v", b)
	}

	v2 := ParseMaybeJSON("  plain text  ")
	if v2 != "plain text" {
		t.Fatalf("expected trimmed plain text, got %v", v2)
	}

	v3 := ParseMaybeJSON("   ")
	if v3 != "" {
		t.Fatalf("expected empty string for blank input, got %v", v3)
	}
}
