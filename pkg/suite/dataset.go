package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"gopkg.in/yaml.v3"
)

// EvalCase is a single input/expected pair in a dataset. It is immutable
// after load. Identified externally by CaseID; identified in reports by
// hashid.HashCaseID(CaseID).
type EvalCase struct {
	CaseID   string          `yaml:"case_id" json:"case_id"`
	Input    jsonvalue.Value `yaml:"input" json:"input"`
	Expected jsonvalue.Value `yaml:"expected" json:"expected"`
	Tags     []string        `yaml:"tags" json:"tags"`
}

// datasetFile is the on-disk shape of a dataset: a flat list of cases.
type datasetFile struct {
	Cases []rawCase `yaml:"cases" json:"cases"`
}

// rawCase mirrors EvalCase with yaml.Node fields so YAML unmarshaling
// (which doesn't understand jsonvalue.Object) can populate them; they are
// converted to ordered jsonvalue.Value with jsonvalue.NodeToValue. The
// JSON dataset path uses jsonvalue.Parse instead; both keep key order.
type rawCase struct {
	CaseID   string   `yaml:"case_id" json:"case_id"`
	Input    yaml.Node `yaml:"input"`
	Expected yaml.Node `yaml:"expected"`
	Tags     []string `yaml:"tags" json:"tags"`
}

// LoadDataset reads the dataset at path (.json, .yaml, or .yml) and
// returns its cases. Duplicate case ids are rejected at load time, since
// hashedCaseId collisions make diff indexing non-deterministic ("last
// wins") per spec.md §9.
func LoadDataset(path string) ([]EvalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset file %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var cases []EvalCase
	switch ext {
	case ".json":
		cases, err = parseJSONDataset(data)
	case ".yaml", ".yml":
		cases, err = parseYAMLDataset(data)
	default:
		return nil, fmt.Errorf("unsupported dataset file extension %q for %s", ext, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing dataset file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(cases))
	for _, c := range cases {
		if c.CaseID == "" {
			return nil, fmt.Errorf("dataset %s: case with empty case_id", path)
		}
		if seen[c.CaseID] {
			return nil, fmt.Errorf("dataset %s: duplicate case_id %q", path, c.CaseID)
		}
		seen[c.CaseID] = true
	}

	return cases, nil
}

func parseJSONDataset(data []byte) ([]EvalCase, error) {
	v, err := jsonvalue.Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := jsonvalue.AsObject(v)
	if !ok {
		return nil, fmt.Errorf("dataset root must be a JSON object with a \"cases\" array")
	}
	casesVal, ok := obj.Get("cases")
	if !ok {
		return nil, fmt.Errorf("dataset is missing a \"cases\" array")
	}
	arr, ok := jsonvalue.AsArray(casesVal)
	if !ok {
		return nil, fmt.Errorf("dataset \"cases\" must be an array")
	}

	out := make([]EvalCase, 0, len(arr))
	for i, cv := range arr {
		co, ok := jsonvalue.AsObject(cv)
		if !ok {
			return nil, fmt.Errorf("case %d: expected an object", i)
		}
		ec, err := caseFromObject(co)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
		out = append(out, ec)
	}
	return out, nil
}

func caseFromObject(co *jsonvalue.Object) (EvalCase, error) {
	var ec EvalCase
	if v, ok := co.Get("case_id"); ok {
		s, ok := v.(string)
		if !ok {
			return ec, fmt.Errorf("case_id must be a string")
		}
		ec.CaseID = s
	}
	ec.Input, _ = co.Get("input")
	ec.Expected, _ = co.Get("expected")
	if v, ok := co.Get("tags"); ok {
		arr, ok := jsonvalue.AsArray(v)
		if !ok {
			return ec, fmt.Errorf("tags must be an array")
		}
		for _, t := range arr {
			s, ok := t.(string)
			if !ok {
				return ec, fmt.Errorf("tags must be strings")
			}
			ec.Tags = append(ec.Tags, s)
		}
	}
	return ec, nil
}

func parseYAMLDataset(data []byte) ([]EvalCase, error) {
	var df datasetFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, err
	}

	out := make([]EvalCase, 0, len(df.Cases))
	for i, rc := range df.Cases {
		input, err := jsonvalue.NodeToValue(&rc.Input)
		if err != nil {
			return nil, fmt.Errorf("case %d: input: %w", i, err)
		}
		expected, err := jsonvalue.NodeToValue(&rc.Expected)
		if err != nil {
			return nil, fmt.Errorf("case %d: expected: %w", i, err)
		}
		out = append(out, EvalCase{
			CaseID:   rc.CaseID,
			Input:    input,
			Expected: expected,
			Tags:     rc.Tags,
		})
	}
	return out, nil
}
