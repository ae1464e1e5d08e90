// Package assertion implements the deterministic, side-effect-free
// field-level assertion evaluator of spec.md §4.1: one output checked
// against one expected value and an AssertionSpec, producing a structured
// pass/fail verdict.
package assertion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"gopkg.in/yaml.v3"
)

// Operator is one of the field-matcher comparison operators (Table 4.1).
type Operator string

const (
	Equals         Operator = "equals"
	OneOf          Operator = "oneOf"
	Contains       Operator = "contains"
	Regex          Operator = "regex"
	NumericRangeOp Operator = "numericRange"
	Exists         Operator = "exists"
	Absent         Operator = "absent"
)

// NumericRange bounds a numericRange matcher. Either bound may be nil to
// leave that side unconstrained.
type NumericRange struct {
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Matcher is a single assertion against one field path's resolved value.
type Matcher struct {
	Op           Operator        `yaml:"op" json:"op"`
	Value        jsonvalue.Value `yaml:"-" json:"value,omitempty"`
	NumericRange *NumericRange   `yaml:"numericRange,omitempty" json:"numericRange,omitempty"`
	ExpectedPath string          `yaml:"expectedPath,omitempty" json:"expectedPath,omitempty"`
}

// UnmarshalYAML decodes a Matcher. Value is handled separately from the
// other fields: plain struct-tag decoding into jsonvalue.Value (an
// interface{}-shaped type) would produce bare map[string]interface{}/int
// values rather than this codebase's jsonvalue.Object/float64 convention,
// so Value's subtree is walked with jsonvalue.NodeToValue instead - the
// same walk pkg/jsonvalue.LoadFile and pkg/suite's dataset loader use.
func (m *Matcher) UnmarshalYAML(node *yaml.Node) error {
	type rawMatcher struct {
		Op           Operator      `yaml:"op"`
		Value        yaml.Node     `yaml:"value"`
		NumericRange *NumericRange `yaml:"numericRange,omitempty"`
		ExpectedPath string        `yaml:"expectedPath,omitempty"`
	}
	var raw rawMatcher
	if err := node.Decode(&raw); err != nil {
		return err
	}

	m.Op = raw.Op
	m.NumericRange = raw.NumericRange
	m.ExpectedPath = raw.ExpectedPath
	if raw.Value.Kind != 0 {
		v, err := jsonvalue.NodeToValue(&raw.Value)
		if err != nil {
			return fmt.Errorf("decoding matcher value: %w", err)
		}
		m.Value = v
	}
	return nil
}

// Spec is the field-level assertion configuration for one case (spec.md §3).
type Spec struct {
	RequiredKeys        []string             `yaml:"requiredKeys" json:"requiredKeys"`
	AllowAdditionalKeys bool                 `yaml:"allowAdditionalKeys" json:"allowAdditionalKeys"`
	VariableFields      []string             `yaml:"variableFields" json:"variableFields"`
	FieldMatchers       map[string][]Matcher `yaml:"fieldMatchers" json:"fieldMatchers"`
}

// CheckResult is the outcome of one matcher against one field.
type CheckResult struct {
	Field   string   `json:"field"`
	Op      Operator `json:"op"`
	Passed  bool     `json:"passed"`
	Message string   `json:"message,omitempty"`
}

// Result is the evaluator's verdict for one case.
type Result struct {
	Passed         bool          `json:"passed"`
	Checks         []CheckResult `json:"checks"`
	MissingKeys    []string      `json:"missingKeys,omitempty"`
	UnexpectedKeys []string      `json:"unexpectedKeys,omitempty"`
}

// Evaluate checks output against expected under spec, per spec.md §4.1.
// It is pure: the same (output, expected, spec) always yields the same
// Result.
func Evaluate(output, expected jsonvalue.Value, spec Spec) Result {
	var res Result

	res.MissingKeys = missingKeys(output, spec.RequiredKeys)

	if !spec.AllowAdditionalKeys {
		res.UnexpectedKeys = unexpectedKeys(output, allowedKeys(spec))
	}

	for _, field := range sortedMatcherFields(spec.FieldMatchers) {
		matchers := spec.FieldMatchers[field]
		actual, _ := jsonvalue.GetByPath(output, field)
		for _, m := range matchers {
			expectedValue := resolveExpectedValue(m, field, expected)
			passed, msg := runOperator(m, actual, expectedValue)
			res.Checks = append(res.Checks, CheckResult{
				Field:   field,
				Op:      m.Op,
				Passed:  passed,
				Message: msg,
			})
		}
	}

	allChecksPassed := true
	for _, c := range res.Checks {
		if !c.Passed {
			allChecksPassed = false
			break
		}
	}

	res.Passed = len(res.MissingKeys) == 0 && len(res.UnexpectedKeys) == 0 && allChecksPassed
	return res
}

// missingKeys returns the required keys absent from output's top level.
// A non-object output is treated as empty for key checks.
func missingKeys(output jsonvalue.Value, required []string) []string {
	obj, _ := jsonvalue.AsObject(output)
	var missing []string
	for _, k := range required {
		if obj == nil {
			missing = append(missing, k)
			continue
		}
		if _, ok := obj.Get(k); !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// allowedKeys is the union of requiredKeys, variableFields, and
// fieldMatchers keys.
func allowedKeys(spec Spec) map[string]bool {
	allowed := make(map[string]bool)
	for _, k := range spec.RequiredKeys {
		allowed[k] = true
	}
	for _, k := range spec.VariableFields {
		allowed[k] = true
	}
	for k := range spec.FieldMatchers {
		allowed[k] = true
	}
	return allowed
}

func unexpectedKeys(output jsonvalue.Value, allowed map[string]bool) []string {
	obj, ok := jsonvalue.AsObject(output)
	if !ok {
		return nil
	}
	var unexpected []string
	for _, k := range obj.Keys() {
		if !allowed[k] {
			unexpected = append(unexpected, k)
		}
	}
	return unexpected
}

// resolveExpectedValue implements the matcher's expected-value resolution
// order: an explicit matcher.Value wins; else an expectedPath beginning
// with "$expected." is resolved against the case's expected value; else
// the field path itself mirrors against expected (the default).
func resolveExpectedValue(m Matcher, field string, expected jsonvalue.Value) jsonvalue.Value {
	if m.Value != nil {
		return m.Value
	}
	if strings.HasPrefix(m.ExpectedPath, "$expected.") {
		rest := strings.TrimPrefix(m.ExpectedPath, "$expected.")
		v, _ := jsonvalue.GetByPath(expected, rest)
		return v
	}
	v, _ := jsonvalue.GetByPath(expected, field)
	return v
}

func runOperator(m Matcher, actual, expectedValue jsonvalue.Value) (bool, string) {
	switch m.Op {
	case Equals:
		if jsonvalue.Equal(actual, expectedValue) {
			return true, "equals"
		}
		return false, fmt.Sprintf("expected %v, got %v", expectedValue, actual)

	case OneOf:
		arr, ok := jsonvalue.AsArray(expectedValue)
		if !ok {
			return false, "oneOf: expected value must be an array"
		}
		for _, e := range arr {
			if jsonvalue.Equal(actual, e) {
				return true, "oneOf matched"
			}
		}
		return false, fmt.Sprintf("%v not found in expected set", actual)

	case Contains:
		return runContains(actual, expectedValue)

	case Regex:
		return runRegex(actual, expectedValue)

	case NumericRangeOp:
		return runNumericRange(actual, m.NumericRange, m.Value)

	case Exists:
		if actual != nil {
			return true, "exists"
		}
		return false, "expected field to exist"

	case Absent:
		if actual == nil {
			return true, "absent"
		}
		return false, "expected field to be absent"

	default:
		return false, "unsupported assertion operator"
	}
}

func runContains(actual, expectedValue jsonvalue.Value) (bool, string) {
	actualStr, actualIsStr := actual.(string)
	expectedStr, expectedIsStr := expectedValue.(string)
	if actualIsStr && expectedIsStr {
		if strings.Contains(actualStr, expectedStr) {
			return true, "contains"
		}
		return false, fmt.Sprintf("%q does not contain %q", actualStr, expectedStr)
	}

	if arr, ok := jsonvalue.AsArray(actual); ok {
		for _, e := range arr {
			if jsonvalue.Equal(e, expectedValue) {
				return true, "contains"
			}
		}
		return false, "array does not contain expected element"
	}

	return false, "contains: actual must be a string or array"
}

func runRegex(actual, expectedValue jsonvalue.Value) (bool, string) {
	pattern, ok := expectedValue.(string)
	if !ok {
		return false, "regex: expected value must be a string pattern"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("regex: invalid pattern %q: %v", pattern, err)
	}
	s := stringify(actual)
	if re.MatchString(s) {
		return true, "regex matched"
	}
	return false, fmt.Sprintf("%q does not match pattern %q", s, pattern)
}

func runNumericRange(actual jsonvalue.Value, rng *NumericRange, fallback jsonvalue.Value) (bool, string) {
	n, ok := actual.(float64)
	if !ok {
		return false, "numericRange: actual is not a finite number"
	}

	r := rng
	if r == nil {
		r = numericRangeFromValue(fallback)
	}
	if r == nil {
		return false, "numericRange: no range configured"
	}

	if r.Min != nil && n < *r.Min {
		return false, fmt.Sprintf("%v is below minimum %v", n, *r.Min)
	}
	if r.Max != nil && n > *r.Max {
		return false, fmt.Sprintf("%v is above maximum %v", n, *r.Max)
	}
	return true, "in range"
}

// numericRangeFromValue allows a numericRange matcher's bounds to be
// supplied via `value: {min, max}` instead of the dedicated field, since
// suites are authored as YAML/JSON and either shape is natural there.
func numericRangeFromValue(v jsonvalue.Value) *NumericRange {
	obj, ok := jsonvalue.AsObject(v)
	if !ok {
		return nil
	}
	r := &NumericRange{}
	if minV, ok := obj.Get("min"); ok {
		if f, ok := minV.(float64); ok {
			r.Min = &f
		}
	}
	if maxV, ok := obj.Get("max"); ok {
		if f, ok := maxV.(float64); ok {
			r.Max = &f
		}
	}
	return r
}

func stringify(v jsonvalue.Value) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := jsonvalue.Marshal(v)
		return string(b)
	}
}

// sortedMatcherFields returns fieldMatchers keys in a fixed, deterministic
// order so repeated Evaluate calls against the same spec always produce
// Checks in the same order (Evaluate is pure, but Go map iteration order
// is randomized).
func sortedMatcherFields(m map[string][]Matcher) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
