package jsonvalue

// Equal reports whether a and b are JSON-normalized equal: structurally
// equal after decoding, independent of object key order. Numbers compare
// as float64; any other numeric Go type (such as json.Number) is unequal
// to everything.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []Value:
		bv, ok := b.([]Value)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.Keys() {
			aval, _ := av.Get(k)
			bval, ok := bv.Get(k)
			if !ok || !Equal(aval, bval) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ParseMaybeJSON parses s as JSON if possible; otherwise returns the
// trimmed string, falling back to "" if trimming yields nothing useful.
// Mirrors the provider adapters' `parseMaybeJson` contract in §4.5: model
// output that happens to be a JSON document is normalized to a Value,
// and free text is preserved as a trimmed string.
func ParseMaybeJSON(s string) Value {
	trimmed := trimSpace(s)
	if trimmed == "" {
		return ""
	}
	if v, err := Parse([]byte(trimmed)); err == nil {
		return v
	}
	return trimmed
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
