package humanreport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/promptmgr/evalcore/pkg/diff"
	"github.com/promptmgr/evalcore/pkg/report"
)

func TestPrintSummaryTable(t *testing.T) {
	r := &report.RunReport{
		SuiteID:  "booking",
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5",
		Summary:  report.Summary{Total: 2, Pass: 1, Fail: 1, DurationMs: 1500},
		Cases: []report.CaseResult{
			{HashedCaseID: "abc123", Status: report.Pass, LatencyMs: 500},
			{HashedCaseID: "def456", Status: report.Fail, LatencyMs: 1000, Errors: []string{"field:eq:mismatch"}},
		},
	}

	var buf bytes.Buffer
	PrintSummaryTable(&buf, r, false)
	out := buf.String()

	if !strings.Contains(out, "booking") {
		t.Error("summary table missing suite id")
	}
	if !strings.Contains(out, "abc123") {
		t.Error("summary table missing case id")
	}
	if !strings.Contains(out, "1 passed") || !strings.Contains(out, "1 failed") {
		t.Error("summary table missing pass/fail counts")
	}
}

func TestPrintVerbose(t *testing.T) {
	r := &report.RunReport{
		Cases: []report.CaseResult{
			{HashedCaseID: "abc123", Status: report.Error, Errors: []string{"TOOL_TIMEOUT:deadline exceeded"}},
		},
	}

	var buf bytes.Buffer
	PrintVerbose(&buf, r, false)
	out := buf.String()

	if !strings.Contains(out, "TOOL_TIMEOUT") {
		t.Error("verbose output missing error detail")
	}
}

func TestPrintDiffTable(t *testing.T) {
	baseline := &report.RunReport{SuiteID: "booking-v1", Cases: []report.CaseResult{
		{HashedCaseID: "abc123", Status: report.Fail},
	}}
	candidate := &report.RunReport{SuiteID: "booking-v2", Cases: []report.CaseResult{
		{HashedCaseID: "abc123", Status: report.Pass},
	}}

	d := diff.Compare(baseline, candidate)

	var buf bytes.Buffer
	PrintDiffTable(&buf, d, false)
	out := buf.String()

	if !strings.Contains(out, "IMPROVEMENTS") {
		t.Error("diff table missing improvements section")
	}
	if !strings.Contains(out, "abc123") {
		t.Error("diff table missing case id")
	}
}
