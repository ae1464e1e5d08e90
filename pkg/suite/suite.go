// Package suite loads the declarative bundle a run is driven from: the
// suite manifest (prompt, dataset, schema, assertions, tools module, and
// per-provider model overrides) and the dataset of eval cases it points
// at. Suite/EvalCase loading is an external collaborator to the core per
// spec.md §1, but the core consumes the types this package produces.
package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/promptmgr/evalcore/pkg/provider"
	"gopkg.in/yaml.v3"
)

// Suite is a named bundle of prompt, dataset, schema, assertions, and
// tools-module references, plus the model to use per provider.
type Suite struct {
	ID              string                         `yaml:"id"`
	PromptID        string                         `yaml:"prompt_id"`
	DatasetPath     string                         `yaml:"dataset_path"`
	SchemaPath      string                         `yaml:"schema_path"`
	AssertionsPath  string                         `yaml:"assertions_path"`
	ToolsModulePath string                         `yaml:"tools_module_path"`
	ModelByProvider map[provider.ProviderID]string `yaml:"model_by_provider"`
}

// Load reads a single Suite manifest from a YAML file. Relative resource
// paths (dataset/schema/assertions/tools module) are resolved against the
// manifest's own directory so suites remain relocatable as a unit.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file %s: %w", path, err)
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing suite file %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	s.DatasetPath = resolvePath(dir, s.DatasetPath)
	s.SchemaPath = resolvePath(dir, s.SchemaPath)
	s.AssertionsPath = resolvePath(dir, s.AssertionsPath)
	s.ToolsModulePath = resolvePath(dir, s.ToolsModulePath)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate checks that the Suite has the minimum required fields.
func (s *Suite) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("suite id is required")
	}
	if s.PromptID == "" {
		return fmt.Errorf("suite %q: prompt_id is required", s.ID)
	}
	if s.DatasetPath == "" {
		return fmt.Errorf("suite %q: dataset_path is required", s.ID)
	}
	if s.SchemaPath == "" {
		return fmt.Errorf("suite %q: schema_path is required", s.ID)
	}
	if s.AssertionsPath == "" {
		return fmt.Errorf("suite %q: assertions_path is required", s.ID)
	}
	return nil
}

// ModelFor resolves the model to use for a provider: an explicit override
// (e.g. a --model CLI flag) wins when provided; otherwise it falls back to
// the suite's ModelByProvider entry.
func (s *Suite) ModelFor(p provider.ProviderID, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	m, ok := s.ModelByProvider[p]
	if !ok || m == "" {
		return "", fmt.Errorf("suite %q has no model configured for provider %q", s.ID, p)
	}
	return m, nil
}

// LoadDir loads all .yaml/.yml suite manifests from dir.
func LoadDir(dir string) ([]*Suite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading suite directory %s: %w", dir, err)
	}

	var suites []*Suite
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		s, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}
