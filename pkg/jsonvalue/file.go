package jsonvalue

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a JSON or YAML document from path and decodes it into an
// order-preserving Value. JSON is decoded by Parse and YAML by
// NodeToValue; both produce the same Value shape, so a schema or manifest
// document parses identically regardless of which format a suite author
// chose.
func LoadFile(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		v, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return v, nil
	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		v, err := NodeToValue(&node)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported file extension %q for %s", filepath.Ext(path), path)
	}
}

// NodeToValue walks a yaml.Node tree into an order-preserving Value,
// exported so every package that needs to decode YAML into a Value
// (pkg/suite's dataset loader, pkg/assertion's matcher values) shares
// this one walk instead of each keeping its own copy.
func NodeToValue(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return NodeToValue(node.Content[0])
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(node.Content); i += 2 {
			val, err := NodeToValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(node.Content[i].Value, val)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := NodeToValue(child)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		var v interface{}
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		switch t := v.(type) {
		case int:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case float64, string, bool, nil:
			return t, nil
		default:
			return fmt.Sprintf("%v", t), nil
		}
	case 0:
		return nil, nil
	case yaml.AliasNode:
		return NodeToValue(node.Alias)
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %v", node.Kind)
	}
}
