package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/promptmgr/evalcore/pkg/config"
	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/promptmgr/evalcore/pkg/provider"
	"github.com/promptmgr/evalcore/pkg/report"
	"github.com/promptmgr/evalcore/pkg/suite"
)

const testProviderID provider.ProviderID = "fake-orchestrator-test"

// fakeAdapter returns a fixed JsonValue output without issuing any HTTP
// calls or tool invocations, so orchestrator tests don't depend on the
// network.
type fakeAdapter struct {
	output jsonvalue.Value
}

func (f *fakeAdapter) Name() provider.ProviderID { return testProviderID }

func (f *fakeAdapter) InvokeWithTools(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return &provider.Response{Output: f.output, Usage: provider.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

func writeSuiteFixture(t *testing.T) (dir string, s *suite.Suite) {
	t.Helper()
	dir = t.TempDir()

	mustWrite := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
		return p
	}

	mustWrite("booking.yaml", "prompt_id: booking\nversion: \"1\"\nbody: |\n  Subject: {{.subject}}\n")
	mustWrite("dataset.json", `{"cases":[{"case_id":"case-1","input":{"subject":"Booking"},"expected":{"booking_status":"confirmed"}}]}`)
	mustWrite("schema.json", `{"type":"object","required":["booking_status"],"properties":{"booking_status":{"type":"string"}}}`)
	mustWrite("assertions.json", `{"requiredKeys":["booking_status"],"allowAdditionalKeys":false,"fieldMatchers":{"booking_status":[{"op":"oneOf","value":["confirmed","pending","cancelled"]}]}}`)

	s = &suite.Suite{
		ID:              "booking-suite",
		PromptID:        "booking",
		DatasetPath:     filepath.Join(dir, "dataset.json"),
		SchemaPath:      filepath.Join(dir, "schema.json"),
		AssertionsPath:  filepath.Join(dir, "assertions.json"),
		ToolsModulePath: "",
		ModelByProvider: map[provider.ProviderID]string{testProviderID: "fake-model"},
	}
	return dir, s
}

func TestRunSuite_HappyPath(t *testing.T) {
	dir, s := writeSuiteFixture(t)
	provider.RegisterProvider(testProviderID, &fakeAdapter{output: mustObject(t, `{"booking_status":"confirmed"}`)})

	cfg := config.Default()
	cfg.ToolRunner.Command = "go"

	rc := RunConfig{
		Config:     cfg,
		Suite:      s,
		Provider:   testProviderID,
		WorkerPath: "unused",
		Cwd:        dir,
		PromptsDir: dir,
	}

	rr, err := RunSuite(context.Background(), rc)
	if err != nil {
		t.Fatalf("RunSuite: %v", err)
	}
	if rr.Summary.Total != 1 || rr.Summary.Pass != 1 || rr.Summary.Fail != 0 || rr.Summary.Error != 0 {
		t.Fatalf("summary = %+v, want total=1 pass=1", rr.Summary)
	}
	if len(rr.Cases) != 1 {
		t.Fatalf("cases = %d, want 1", len(rr.Cases))
	}
	c := rr.Cases[0]
	if c.Status != report.Pass {
		t.Errorf("status = %q, want pass (errors=%v)", c.Status, c.Errors)
	}
	if len(c.HashedCaseID) != 16 {
		t.Errorf("hashedCaseId len = %d, want 16", len(c.HashedCaseID))
	}
	if c.RawCaseID != report.RawCaseIDPlaceholder {
		t.Errorf("rawCaseId = %q, want %q", c.RawCaseID, report.RawCaseIDPlaceholder)
	}
}

func TestRunSuite_AssertionFailureProducesFailStatus(t *testing.T) {
	dir, s := writeSuiteFixture(t)
	provider.RegisterProvider(testProviderID, &fakeAdapter{output: mustObject(t, `{"booking_status":"unknown-status"}`)})

	cfg := config.Default()
	cfg.ToolRunner.Command = "go"

	rc := RunConfig{
		Config:     cfg,
		Suite:      s,
		Provider:   testProviderID,
		WorkerPath: "unused",
		Cwd:        dir,
		PromptsDir: dir,
	}

	rr, err := RunSuite(context.Background(), rc)
	if err != nil {
		t.Fatalf("RunSuite: %v", err)
	}
	if rr.Summary.Fail != 1 {
		t.Fatalf("summary = %+v, want fail=1", rr.Summary)
	}
	if rr.Cases[0].Status != report.Fail {
		t.Errorf("status = %q, want fail", rr.Cases[0].Status)
	}
	if len(rr.Cases[0].Errors) == 0 {
		t.Errorf("expected non-empty errors for a failed assertion")
	}
}

func mustObject(t *testing.T, jsonText string) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.Parse([]byte(jsonText))
	if err != nil {
		t.Fatalf("parsing fixture JSON: %v", err)
	}
	return v
}
