package evaltest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/promptmgr/evalcore/pkg/score"
)

// AssertOutputContains asserts that the output contains the given substring.
func (tc *TestCase) AssertOutputContains(substr string) {
	tc.t.Helper()
	if !tc.executed {
		tc.t.Error("AssertOutputContains called before Input()")
		return
	}
	if !strings.Contains(tc.output, substr) {
		tc.t.Errorf("output does not contain %q\n  output: %s", substr, truncate(tc.output, 200))
	}
}

// AssertOutputMatches asserts that the output matches the given regex pattern.
func (tc *TestCase) AssertOutputMatches(pattern string) {
	tc.t.Helper()
	if !tc.executed {
		tc.t.Error("AssertOutputMatches called before Input()")
		return
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		tc.t.Errorf("invalid regex pattern %q: %v", pattern, err)
		return
	}
	if !re.MatchString(tc.output) {
		tc.t.Errorf("output does not match pattern %q\n  output: %s", pattern, truncate(tc.output, 200))
	}
}

// AssertToolCalled asserts that the named tool was called at least once.
func (tc *TestCase) AssertToolCalled(toolName string) {
	tc.t.Helper()
	if !tc.executed {
		tc.t.Error("AssertToolCalled called before Input()")
		return
	}
	for _, call := range tc.toolTrace {
		if call.Name == toolName {
			return
		}
	}
	tc.t.Errorf("tool %q was not called", toolName)
}

// AssertToolNotCalled asserts that the named tool was never called.
func (tc *TestCase) AssertToolNotCalled(toolName string) {
	tc.t.Helper()
	if !tc.executed {
		tc.t.Error("AssertToolNotCalled called before Input()")
		return
	}
	for _, call := range tc.toolTrace {
		if call.Name == toolName {
			tc.t.Errorf("tool %q was called but should not have been", toolName)
			return
		}
	}
}

// AssertToolCalledWith asserts the named tool was called with arguments
// that are a superset of the given params (subset match).
func (tc *TestCase) AssertToolCalledWith(toolName string, params map[string]interface{}) {
	tc.t.Helper()
	if !tc.executed {
		tc.t.Error("AssertToolCalledWith called before Input()")
		return
	}
	for _, call := range tc.toolTrace {
		if call.Name == toolName && isSubset(params, call.Args) {
			return
		}
	}
	tc.t.Errorf("tool %q was not called with params %v", toolName, params)
}

// AssertComposite scores the case's output against weighted specs with
// score.NewScorer(threshold) and checks the resulting composite against
// matcher, failing the test with the per-spec breakdown if it doesn't
// satisfy it.
func (tc *TestCase) AssertComposite(expected jsonvalue.Value, specs []score.WeightedSpec, threshold float64, matcher ScoreMatcher) {
	tc.t.Helper()
	if !tc.executed {
		tc.t.Error("AssertComposite called before Input()")
		return
	}

	output := jsonvalue.ParseMaybeJSON(tc.output)
	c := score.NewScorer(threshold).Score(output, expected, specs)
	if !matcher.Match(c.Score) {
		tc.t.Errorf("composite score %.2f does not satisfy %s (%s)", c.Score, matcher, c.Reason)
	}
}

// isSubset checks whether every key/value in subset is present in args
// with an equal value (compared via fmt.Sprintf after flattening to plain
// Go data).
func isSubset(subset map[string]interface{}, args jsonvalue.Value) bool {
	obj, ok := jsonvalue.AsObject(args)
	if !ok {
		return len(subset) == 0
	}
	for k, v := range subset {
		av, ok := obj.Get(k)
		if !ok || fmt.Sprintf("%v", v) != fmt.Sprintf("%v", jsonvalue.ToPlain(av)) {
			return false
		}
	}
	return true
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
