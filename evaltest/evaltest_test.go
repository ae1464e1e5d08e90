package evaltest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/promptmgr/evalcore/pkg/assertion"
	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/promptmgr/evalcore/pkg/provider"
	"github.com/promptmgr/evalcore/pkg/score"
)

func TestHarness_SimpleOutput(t *testing.T) {
	fp := NewMockProvider(MockTurn{
		RawText: "Hello, world!",
		Usage:   provider.Usage{InputTokens: 10, OutputTokens: 5},
	})

	h := New(t, WithProvider(fp), WithSystem("Be helpful."))
	h.Run("greeting", func(tc *TestCase) {
		tc.Input("Say hello")
		tc.AssertOutputContains("Hello")
		tc.AssertOutputMatches(`(?i)hello.*world`)
	})
}

func TestHarness_ToolCallFlow(t *testing.T) {
	fp := NewMockProvider(
		MockTurn{
			ToolCalls: []provider.ToolCall{
				{ID: "tc1", Name: "read_file", Args: jsonvalue.FromPlain(map[string]interface{}{"path": "/tmp/test.go"})},
			},
			Usage: provider.Usage{InputTokens: 20, OutputTokens: 10},
		},
		MockTurn{RawText: "The file contains Go code.", Usage: provider.Usage{InputTokens: 30, OutputTokens: 15}},
	)

	h := New(t, WithProvider(fp), WithSystem("You are a code assistant."))
	h.Run("tool-use", func(tc *TestCase) {
		tc.MockTool("read_file", "package main\n\nfunc main() {}")
		tc.Input("Read the file")
		tc.AssertOutputContains("Go code")
		tc.AssertToolCalled("read_file")
		tc.AssertToolCalledWith("read_file", map[string]interface{}{"path": "/tmp/test.go"})
		tc.AssertToolNotCalled("write_file")
	})
}

func TestHarness_MockToolSequence(t *testing.T) {
	fp := NewMockProvider(
		MockTurn{ToolCalls: []provider.ToolCall{{ID: "tc1", Name: "search"}}},
		MockTurn{ToolCalls: []provider.ToolCall{{ID: "tc2", Name: "search"}}},
		MockTurn{RawText: "Found two results"},
	)

	h := New(t, WithProvider(fp))
	h.Run("sequence", func(tc *TestCase) {
		tc.MockTool("search", "result1", "result2")
		tc.Input("Search twice")
		tc.AssertOutputContains("two results")
	})
}

func TestHarness_MockToolError(t *testing.T) {
	fp := NewMockProvider(
		MockTurn{ToolCalls: []provider.ToolCall{{ID: "tc1", Name: "write_file"}}},
	)

	h := New(t, WithProvider(fp))
	h.Run("error-mock", func(tc *TestCase) {
		tc.MockToolError("write_file", "permission denied")
		tc.Input("Try to write")
		tc.AssertToolCalled("write_file")
	})
}

func TestHarness_ResultFile(t *testing.T) {
	dir := t.TempDir()
	resultPath := filepath.Join(dir, "results.json")

	fp := NewMockProvider(MockTurn{RawText: "done"})

	h := New(t, WithProvider(fp), WithResultFile(resultPath))
	h.Run("result-output", func(tc *TestCase) {
		tc.Input("Do something")
		tc.AssertOutputContains("done")
	})

	h.writeResults()

	data, err := os.ReadFile(resultPath)
	if err != nil {
		t.Fatalf("failed to read result file: %v", err)
	}
	if len(data) == 0 {
		t.Error("result file is empty")
	}
	if !strings.Contains(string(data), "result-output") {
		t.Error("result file does not contain case name")
	}
}

func TestHarness_OutputMethod(t *testing.T) {
	fp := NewMockProvider(MockTurn{RawText: "the answer is 42"})

	h := New(t, WithProvider(fp))
	h.Run("output-access", func(tc *TestCase) {
		tc.Input("What is the answer?")
		out := tc.Output()
		if out != "the answer is 42" {
			t.Errorf("output = %q, want %q", out, "the answer is 42")
		}
	})
}

func TestHarness_InputReturnsOutput(t *testing.T) {
	fp := NewMockProvider(MockTurn{RawText: "returned value"})

	h := New(t, WithProvider(fp))
	h.Run("input-return", func(tc *TestCase) {
		got := tc.Input("test")
		if got != "returned value" {
			t.Errorf("Input() returned %q, want %q", got, "returned value")
		}
	})
}

func TestHarness_MultipleSubtests(t *testing.T) {
	fp := NewMockProvider(
		MockTurn{RawText: "alpha"},
		MockTurn{RawText: "beta"},
	)

	h := New(t, WithProvider(fp))
	h.Run("first", func(tc *TestCase) {
		tc.Input("Give me alpha")
		tc.AssertOutputContains("alpha")
	})
	h.Run("second", func(tc *TestCase) {
		tc.Input("Give me beta")
		tc.AssertOutputContains("beta")
	})
}

func TestEchoProvider(t *testing.T) {
	h := New(t)
	h.Run("echo", func(tc *TestCase) {
		out := tc.Input("echo this back")
		if out != "echo this back" {
			t.Errorf("expected echo, got %q", out)
		}
	})
}

func TestScoreMatchers(t *testing.T) {
	above := ScoreAbove(0.7)
	if !above.Match(0.8) {
		t.Error("ScoreAbove(0.7) should match 0.8")
	}
	if above.Match(0.5) {
		t.Error("ScoreAbove(0.7) should not match 0.5")
	}

	exact := ScoreExact(1.0)
	if !exact.Match(1.0) {
		t.Error("ScoreExact(1.0) should match 1.0")
	}
	if exact.Match(0.9) {
		t.Error("ScoreExact(1.0) should not match 0.9")
	}

	atLeast := ScoreAtLeast(0.5)
	if !atLeast.Match(0.5) {
		t.Error("ScoreAtLeast(0.5) should match 0.5")
	}
	if !atLeast.Match(0.8) {
		t.Error("ScoreAtLeast(0.5) should match 0.8")
	}
	if atLeast.Match(0.3) {
		t.Error("ScoreAtLeast(0.5) should not match 0.3")
	}
}

func TestAssertToolNotCalled_Negative(t *testing.T) {
	fp := NewMockProvider(MockTurn{RawText: "no tools used"})

	h := New(t, WithProvider(fp))
	h.Run("no-tools", func(tc *TestCase) {
		tc.Input("Just respond")
		tc.AssertToolNotCalled("any_tool")
	})
}

func TestAssertComposite(t *testing.T) {
	fp := NewMockProvider(MockTurn{RawText: `{"booking_status":"confirmed"}`})

	h := New(t, WithProvider(fp))
	h.Run("composite", func(tc *TestCase) {
		tc.Input("Book it")
		specs := []score.WeightedSpec{
			{Name: "required", Weight: 1, Spec: assertion.Spec{RequiredKeys: []string{"booking_status"}, AllowAdditionalKeys: true}},
		}
		tc.AssertComposite(nil, specs, 0.5, ScoreAtLeast(1.0))
	})
}
