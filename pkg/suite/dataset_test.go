package suite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
)

func writeDatasetFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDataset_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeDatasetFile(t, dir, "dataset.json", `{"cases":[
		{"case_id":"c1","input":{"a":1},"expected":{"b":2},"tags":["x","y"]},
		{"case_id":"c2","input":{"a":2},"expected":{"b":3}}
	]}`)

	cases, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset() error: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("len(cases) = %d, want 2", len(cases))
	}
	if cases[0].CaseID != "c1" {
		t.Errorf("cases[0].CaseID = %q, want %q", cases[0].CaseID, "c1")
	}
	if len(cases[0].Tags) != 2 || cases[0].Tags[0] != "x" {
		t.Errorf("cases[0].Tags = %v, want [x y]", cases[0].Tags)
	}
}

func TestLoadDataset_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeDatasetFile(t, dir, "dataset.yaml", `
cases:
  - case_id: c1
    input:
      a: 1
    expected:
      b: 2
    tags: [x, y]
  - case_id: c2
    input:
      a: 2
    expected:
      b: 3
`)

	cases, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset() error: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("len(cases) = %d, want 2", len(cases))
	}
	if cases[0].CaseID != "c1" {
		t.Errorf("cases[0].CaseID = %q, want %q", cases[0].CaseID, "c1")
	}
	if len(cases[0].Tags) != 2 || cases[0].Tags[0] != "x" {
		t.Errorf("cases[0].Tags = %v, want [x y]", cases[0].Tags)
	}
}

// TestLoadDataset_YAMLJSONParity checks that equivalent YAML and JSON
// datasets decode to the same jsonvalue.Value shape, since both formats
// are supposed to funnel through the same order-preserving representation.
func TestLoadDataset_YAMLJSONParity(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeDatasetFile(t, dir, "dataset.json", `{"cases":[
		{"case_id":"c1","input":{"first":1,"second":"two","third":true},"expected":{"ok":true}}
	]}`)
	yamlPath := writeDatasetFile(t, dir, "dataset.yaml", `
cases:
  - case_id: c1
    input:
      first: 1
      second: "two"
      third: true
    expected:
      ok: true
`)

	jsonCases, err := LoadDataset(jsonPath)
	if err != nil {
		t.Fatalf("LoadDataset(json) error: %v", err)
	}
	yamlCases, err := LoadDataset(yamlPath)
	if err != nil {
		t.Fatalf("LoadDataset(yaml) error: %v", err)
	}

	if !jsonvalue.Equal(jsonCases[0].Input, yamlCases[0].Input) {
		t.Errorf("input mismatch: json=%#v yaml=%#v", jsonCases[0].Input, yamlCases[0].Input)
	}
	if !jsonvalue.Equal(jsonCases[0].Expected, yamlCases[0].Expected) {
		t.Errorf("expected mismatch: json=%#v yaml=%#v", jsonCases[0].Expected, yamlCases[0].Expected)
	}

	obj, ok := jsonvalue.AsObject(yamlCases[0].Input)
	if !ok {
		t.Fatalf("yaml input is not an object: %#v", yamlCases[0].Input)
	}
	if got, _ := obj.Get("first"); got != float64(1) {
		t.Errorf("yaml input.first = %#v (%T), want float64(1)", got, got)
	}
	if got := obj.Keys(); len(got) != 3 || got[0] != "first" || got[1] != "second" || got[2] != "third" {
		t.Errorf("yaml input key order = %v, want [first second third]", got)
	}
}

func TestLoadDataset_DuplicateCaseID(t *testing.T) {
	dir := t.TempDir()
	path := writeDatasetFile(t, dir, "dataset.json", `{"cases":[
		{"case_id":"dup","input":{},"expected":{}},
		{"case_id":"dup","input":{},"expected":{}}
	]}`)

	_, err := LoadDataset(path)
	if err == nil {
		t.Fatal("LoadDataset() expected error for duplicate case_id, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate case_id") {
		t.Errorf("error = %q, want mention of duplicate case_id", err)
	}
}

func TestLoadDataset_EmptyCaseID(t *testing.T) {
	dir := t.TempDir()
	path := writeDatasetFile(t, dir, "dataset.json", `{"cases":[
		{"case_id":"","input":{},"expected":{}}
	]}`)

	_, err := LoadDataset(path)
	if err == nil {
		t.Fatal("LoadDataset() expected error for empty case_id, got nil")
	}
	if !strings.Contains(err.Error(), "empty case_id") {
		t.Errorf("error = %q, want mention of empty case_id", err)
	}
}

func TestLoadDataset_FileNotFound(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("LoadDataset() expected error for missing file, got nil")
	}
}

func TestLoadDataset_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeDatasetFile(t, dir, "dataset.txt", "cases: []")

	_, err := LoadDataset(path)
	if err == nil {
		t.Fatal("LoadDataset() expected error for unsupported extension, got nil")
	}
}
