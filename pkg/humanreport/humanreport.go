// Package humanreport formats report.RunReport and diff.Report values for
// terminal display: a summary table of per-case outcomes and a table of
// regressions/improvements between two runs.
package humanreport

import (
	"fmt"
	"io"
	"strings"

	"github.com/promptmgr/evalcore/pkg/diff"
	"github.com/promptmgr/evalcore/pkg/report"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// StatusLabel returns a colored status string for terminal display.
func StatusLabel(status report.Status, color bool) string {
	if !color {
		return strings.ToUpper(string(status))
	}
	switch status {
	case report.Pass:
		return colorGreen + "PASS" + colorReset
	case report.Fail:
		return colorRed + "FAIL" + colorReset
	default:
		return colorYellow + "ERROR" + colorReset
	}
}

// FormatLatency renders a millisecond latency for table display.
func FormatLatency(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// PrintSummaryTable writes a formatted summary table of a run's case
// outcomes.
func PrintSummaryTable(w io.Writer, r *report.RunReport, color bool) {
	sep := strings.Repeat("-", 78)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "suite %s | provider %s | model %s\n", r.SuiteID, r.Provider, r.Model)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %-24s  %-7s  %8s  %8s\n", "CASE", "STATUS", "LATENCY", "TOKENS")
	fmt.Fprintf(w, "%s\n", sep)

	for _, c := range r.Cases {
		tokens := "-"
		if c.Usage != nil {
			tokens = fmt.Sprintf("%d/%d", c.Usage.InputTokens, c.Usage.OutputTokens)
		}
		fmt.Fprintf(w, "  %-24s  %-7s  %8s  %8s\n",
			truncate(c.HashedCaseID, 24), StatusLabel(c.Status, color), FormatLatency(c.LatencyMs), tokens)
	}

	fmt.Fprintf(w, "%s\n", sep)
	s := r.Summary
	if color {
		fmt.Fprintf(w, "  %s%d passed%s  %s%d failed%s  %s%d errored%s  | %d total | %s total\n",
			colorGreen, s.Pass, colorReset,
			colorRed, s.Fail, colorReset,
			colorYellow, s.Error, colorReset,
			s.Total, FormatLatency(s.DurationMs))
	} else {
		fmt.Fprintf(w, "  %d passed  %d failed  %d errored  | %d total | %s total\n",
			s.Pass, s.Fail, s.Error, s.Total, FormatLatency(s.DurationMs))
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	fmt.Fprintf(w, "%s\n", sep)
}

// PrintVerbose writes the summary table followed by per-case detail:
// latency, token usage, and errors. Case output is not printed.
func PrintVerbose(w io.Writer, r *report.RunReport, color bool) {
	PrintSummaryTable(w, r, color)

	fmt.Fprintf(w, "\n--- Detailed Results ---\n\n")
	for _, c := range r.Cases {
		fmt.Fprintf(w, "Case: %s [%s]\n", c.HashedCaseID, StatusLabel(c.Status, color))
		fmt.Fprintf(w, "  Latency:  %s\n", FormatLatency(c.LatencyMs))
		if c.Usage != nil {
			fmt.Fprintf(w, "  Tokens:   %d in / %d out\n", c.Usage.InputTokens, c.Usage.OutputTokens)
		}
		for _, e := range c.Errors {
			fmt.Fprintf(w, "  error:    %s\n", e)
		}
		fmt.Fprintln(w)
	}
}

// PrintDiffTable writes a table of regressions, improvements, and the
// unchanged count between a baseline and candidate run.
func PrintDiffTable(w io.Writer, d *diff.Report, color bool) {
	sep := strings.Repeat("-", 78)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "baseline %s -> candidate %s | compared %s\n", d.BaselineSuiteID, d.CandidateSuiteID, d.ComparedAt)
	fmt.Fprintf(w, "%s\n", sep)

	if len(d.Regressions) > 0 {
		label := "REGRESSIONS"
		if color {
			label = colorRed + label + colorReset
		}
		fmt.Fprintf(w, "%s (%d)\n", label, len(d.Regressions))
		for _, t := range d.Regressions {
			fmt.Fprintf(w, "  %-24s  %s -> %s\n", truncate(t.HashedCaseID, 24), t.BaselineStatus, t.CandidateStatus)
		}
	}
	if len(d.Improvements) > 0 {
		label := "IMPROVEMENTS"
		if color {
			label = colorGreen + label + colorReset
		}
		fmt.Fprintf(w, "%s (%d)\n", label, len(d.Improvements))
		for _, t := range d.Improvements {
			fmt.Fprintf(w, "  %-24s  %s -> %s\n", truncate(t.HashedCaseID, 24), t.BaselineStatus, t.CandidateStatus)
		}
	}

	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %d regressions  %d improvements  %d unchanged  | %d compared\n",
		len(d.Regressions), len(d.Improvements), d.Unchanged, d.TotalCompared)
	fmt.Fprintf(w, "%s\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
