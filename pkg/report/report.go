// Package report defines the RunReport artifact the orchestrator emits for
// one suite execution, plus the redaction pass applied to case output
// before it is persisted.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/promptmgr/evalcore/pkg/provider"
)

// Status is the per-case outcome.
type Status string

const (
	Pass  Status = "pass"
	Fail  Status = "fail"
	Error Status = "error"
)

// Usage mirrors provider.Usage for JSON serialization independent of the
// provider package's internal shape.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// CaseResult is the per-case record in a RunReport.
type CaseResult struct {
	HashedCaseID     string                   `json:"hashedCaseId"`
	RawCaseID        string                   `json:"rawCaseId"`
	Status           Status                   `json:"status"`
	SchemaValid      bool                     `json:"schemaValid"`
	AssertionsPassed bool                     `json:"assertionsPassed"`
	AssertionResult  interface{}              `json:"assertionResult"`
	Errors           []string                 `json:"errors"`
	Output           jsonvalue.Value          `json:"output"`
	RedactedOutput   jsonvalue.Value          `json:"redactedOutput"`
	Expected         jsonvalue.Value          `json:"expected"`
	LatencyMs        int64                    `json:"latencyMs"`
	Provider         provider.ProviderID      `json:"provider"`
	Model            string                   `json:"model"`
	Usage            *Usage                   `json:"usage,omitempty"`
	ToolTrace        []provider.ToolCallTrace `json:"toolTrace"`
	Tags             []string                 `json:"tags"`
}

// Summary aggregates a RunReport's case outcomes.
type Summary struct {
	Total      int   `json:"total"`
	Pass       int   `json:"pass"`
	Fail       int   `json:"fail"`
	Error      int   `json:"error"`
	DurationMs int64 `json:"durationMs"`
}

// PromptInfo identifies the prompt version a run was executed against.
type PromptInfo struct {
	PromptID string `json:"promptId"`
	Version  string `json:"version"`
}

// RunReport is the JSON artifact the orchestrator emits for one suite run.
type RunReport struct {
	Version   string              `json:"version"`
	SuiteID   string              `json:"suiteId"`
	Provider  provider.ProviderID `json:"provider"`
	Model     string              `json:"model"`
	StartedAt time.Time           `json:"startedAt"`
	EndedAt   time.Time           `json:"endedAt"`
	Summary   Summary             `json:"summary"`
	Warnings  []string            `json:"warnings"`
	Prompt    PromptInfo          `json:"prompt"`
	Cases     []CaseResult        `json:"cases"`
}

// RawCaseIDPlaceholder is what CaseResult.RawCaseID is set to in emitted
// reports: reports never leak the raw case identifier.
const RawCaseIDPlaceholder = "[HASHED]"

// Summarize computes the Summary for a completed slice of CaseResults,
// keyed against the run's wall-clock start/end.
func Summarize(cases []CaseResult, startedAt, endedAt time.Time) Summary {
	s := Summary{Total: len(cases), DurationMs: endedAt.Sub(startedAt).Milliseconds()}
	for _, c := range cases {
		switch c.Status {
		case Pass:
			s.Pass++
		case Fail:
			s.Fail++
		case Error:
			s.Error++
		}
	}
	return s
}

// Save writes the report as JSON with 2-space indent and a trailing
// newline, creating parent directories as needed.
func (r *RunReport) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report to %s: %w", path, err)
	}
	return nil
}

// Load reads a RunReport from a JSON file.
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file %s: %w", path, err)
	}

	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report file %s: %w", path, err)
	}
	return &r, nil
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\-. ()]{8,}\d`)
	digitRun     = regexp.MustCompile(`\d{12,19}`)
)

// Redact recursively walks a JsonValue, masking emails, phone-like digit
// sequences, and long digit runs. It is pure and idempotent:
// Redact(Redact(v)) == Redact(v).
func Redact(v jsonvalue.Value) jsonvalue.Value {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return redactString(val)
	case *jsonvalue.Object:
		out := jsonvalue.NewObject()
		for _, k := range val.Keys() {
			child, _ := val.Get(k)
			out.Set(k, Redact(child))
		}
		return out
	case []jsonvalue.Value:
		out := make([]jsonvalue.Value, len(val))
		for i, item := range val {
			out[i] = Redact(item)
		}
		return out
	default:
		return v
	}
}

func redactString(s string) string {
	s = emailPattern.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = digitRun.ReplaceAllString(s, "[REDACTED_NUMBER]")
	s = phonePattern.ReplaceAllString(s, "[REDACTED_PHONE]")
	return s
}
