package jsonvalue

// ToPlain converts a Value into ordinary Go data (map[string]interface{},
// []interface{}, and scalars), for contexts that don't care about key
// order, such as text/template data or a third-party JSON schema
// validator's expected input shape.
func ToPlain(v Value) interface{} {
	switch t := v.(type) {
	case *Object:
		m := make(map[string]interface{}, t.Len())
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			m[k] = ToPlain(val)
		}
		return m
	case []Value:
		arr := make([]interface{}, len(t))
		for i, e := range t {
			arr[i] = ToPlain(e)
		}
		return arr
	default:
		return t
	}
}

// FromPlain converts ordinary Go data (as produced by encoding/json's
// default map[string]interface{} decoding, or hand-built test fixtures)
// into a Value tree. Object key order for a map[string]interface{} input
// is not recoverable (Go maps have no order), so FromPlain sorts map keys
// alphabetically; callers that need the dataset's original on-disk order
// should go through Parse instead.
func FromPlain(v interface{}) Value {
	switch t := v.(type) {
	case map[string]interface{}:
		obj := NewObject()
		keys := sortedKeys(t)
		for _, k := range keys {
			obj.Set(k, FromPlain(t[k]))
		}
		return obj
	case []interface{}:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = FromPlain(e)
		}
		return arr
	case int:
		return float64(t)
	default:
		return t
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Simple insertion sort: these maps are small (tool args/results), and
	// avoiding a sort.Strings import keeps this file dependency-free.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
