package jsonvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Value is a JSON value: nil, bool, float64, string, []Value, or *Object.
// Numbers decoded from JSON are stored as float64 (matching
// encoding/json's default behavior so equality comparisons behave the way
// callers expect for the `equals`/`oneOf`/`numericRange` assertion
// operators).
type Value = interface{}

// Object is an ordered string-keyed mapping. It preserves the order in
// which keys were first inserted, so that re-marshaling reproduces the
// original key order instead of Go's default alphabetical map sort.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set inserts or updates a key. New keys are appended to the insertion
// order; existing keys keep their original position.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	o.values[key] = v
}

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the object's keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys in the object.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// MarshalJSON writes the object's keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses an object, preserving key order and rejecting
// duplicate keys.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("jsonvalue: expected object, got %v", tok)
	}

	*o = Object{values: make(map[string]Value)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("jsonvalue: expected string key, got %v", keyTok)
		}
		if _, exists := o.values[key]; exists {
			return fmt.Errorf("jsonvalue: duplicate object key %q", key)
		}

		v, err := decodeValue(dec)
		if err != nil {
			return err
		}
		o.keys = append(o.keys, key)
		o.values[key] = v
	}

	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Parse decodes data into a Value, preserving object key order. Anything
// but whitespace after the top-level value is an error.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("jsonvalue: unexpected data after top-level value")
	}
	return v, nil
}

// decodeValue reads one JSON value from dec using streaming tokens so
// that object key order survives.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &Object{values: make(map[string]Value)}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key := keyTok.(string)
				if _, exists := obj.values[key]; exists {
					return nil, fmt.Errorf("jsonvalue: duplicate object key %q", key)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.keys = append(obj.keys, key)
				obj.values[key] = v
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		case '[':
			var arr []Value
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			if arr == nil {
				arr = []Value{}
			}
			return arr, nil
		}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	return tok, nil
}

// Marshal serializes v to JSON, respecting Object's insertion-order
// marshaling.
func Marshal(v Value) ([]byte, error) {
	return json.Marshal(v)
}

// IsNullish reports whether v is Go nil or JSON null.
func IsNullish(v Value) bool {
	return v == nil
}

// AsObject returns v as *Object and true if v is an object, else
// (nil, false).
func AsObject(v Value) (*Object, bool) {
	o, ok := v.(*Object)
	return o, ok
}

// AsArray returns v as []Value and true if v is an array, else (nil, false).
func AsArray(v Value) ([]Value, bool) {
	a, ok := v.([]Value)
	return a, ok
}
