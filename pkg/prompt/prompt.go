// Package prompt loads PromptRecord values: the versioned system
// instruction body a suite drives its provider with. Prompt file loading
// is an external collaborator per spec.md §1 (the core consumes an
// already-loaded PromptRecord), but this package provides the loader the
// CLI front end and tests both depend on.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Record is a single versioned prompt body, as consumed by the core.
type Record struct {
	PromptID string `yaml:"prompt_id"`
	Version  string `yaml:"version"`
	Body     string `yaml:"body"`
}

// Load reads a single Record from a YAML file.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file %s: %w", path, err)
	}

	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing prompt file %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadDir loads all .yaml/.yml files from dir as Records.
func LoadDir(dir string) ([]*Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading prompt directory %s: %w", dir, err)
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		r, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// Validate checks the Record has the minimum required fields.
func (r *Record) Validate() error {
	if r.PromptID == "" {
		return fmt.Errorf("prompt_id is required")
	}
	if r.Version == "" {
		return fmt.Errorf("prompt %q: version is required", r.PromptID)
	}
	if r.Body == "" {
		return fmt.Errorf("prompt %q: body must not be empty", r.PromptID)
	}
	return nil
}

// Render applies Go text/template rendering to Body using vars as the
// template data ({{.fieldName}} syntax), returning the rendered system
// instruction string. An undefined template variable is an error rather
// than silently rendering empty, since a case whose input is missing a
// field the prompt references is a case authoring bug.
func (r *Record) Render(vars map[string]interface{}) (string, error) {
	if r.Body == "" {
		return "", nil
	}

	tmpl, err := template.New(r.PromptID).Option("missingkey=error").Parse(r.Body)
	if err != nil {
		return "", fmt.Errorf("parsing prompt %q template: %w", r.PromptID, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("rendering prompt %q: %w", r.PromptID, err)
	}
	return buf.String(), nil
}
