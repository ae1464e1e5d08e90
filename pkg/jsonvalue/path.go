package jsonvalue

import "strings"

// GetByPath resolves a dot-delimited field path against v. Tokens are
// split on '.' and empty tokens (from a leading/trailing/doubled dot) are
// discarded. Traversal through a non-object, non-array value, or a missing
// key/index, yields (nil, false).
func GetByPath(v Value, path string) (Value, bool) {
	tokens := splitPath(path)
	cur := v
	for _, tok := range tokens {
		switch c := cur.(type) {
		case *Object:
			next, ok := c.Get(tok)
			if !ok {
				return nil, false
			}
			cur = next
		case []Value:
			idx, ok := parseIndex(tok)
			if !ok || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func splitPath(path string) []string {
	raw := strings.Split(path, ".")
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func parseIndex(tok string) (int, bool) {
	if tok == "" {
		return 0, false
	}
	n := 0
	for _, r := range tok {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// TopLevelKeys returns the top-level object keys of v, or nil if v is not
// an object.
func TopLevelKeys(v Value) []string {
	o, ok := AsObject(v)
	if !ok {
		return nil
	}
	return o.Keys()
}
