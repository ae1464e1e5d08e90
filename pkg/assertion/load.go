package assertion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSpec reads an AssertionSpec from a YAML or JSON file.
func LoadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("reading assertions file %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var spec Spec
	switch ext {
	case ".json", ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return Spec{}, fmt.Errorf("parsing assertions file %s: %w", path, err)
		}
	default:
		return Spec{}, fmt.Errorf("unsupported assertions file extension %q for %s", ext, path)
	}
	return spec, nil
}
