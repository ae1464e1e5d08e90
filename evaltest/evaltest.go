package evaltest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/promptmgr/evalcore/pkg/config"
	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/promptmgr/evalcore/pkg/mock"
	"github.com/promptmgr/evalcore/pkg/provider"
)

// maxToolIterations bounds req.MaxToolCalls for every case run through
// this harness, preventing a misbehaving mock from looping forever.
const maxToolIterations = 20

// Option configures a Harness.
type Option func(*Harness)

// WithProvider sets a custom provider on the harness. If not set, a
// default echo provider is used that returns the input back as output.
func WithProvider(p provider.Provider) Option {
	return func(h *Harness) { h.provider = p }
}

// WithConfig sets the eval framework config on the harness.
func WithConfig(c *config.Config) Option {
	return func(h *Harness) { h.config = c }
}

// WithSystem sets the system prompt used for all cases in this harness.
func WithSystem(system string) Option {
	return func(h *Harness) { h.system = system }
}

// WithTools sets the tools available to the agent for all cases.
func WithTools(tools []provider.ToolDefinition) Option {
	return func(h *Harness) { h.tools = tools }
}

// WithTimeout sets the per-case timeout. Defaults to 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) { h.timeout = d }
}

// WithResultFile configures the harness to write test results to a JSON
// file once all cases are complete.
func WithResultFile(path string) Option {
	return func(h *Harness) { h.resultFile = path }
}

// CaseResult captures the outcome of a single eval test case.
type CaseResult struct {
	Name      string                   `json:"name"`
	Output    string                   `json:"output"`
	ToolCalls []provider.ToolCallTrace `json:"tool_calls"`
	Duration  time.Duration            `json:"duration"`
	Error     string                   `json:"error,omitempty"`
}

// Harness provides the scaffolding for running eval cases as standard Go
// tests. It is tied to a *testing.T and manages shared configuration such
// as the LLM provider.
type Harness struct {
	t          *testing.T
	provider   provider.Provider
	config     *config.Config
	system     string
	tools      []provider.ToolDefinition
	timeout    time.Duration
	resultFile string
	results    []CaseResult
}

// New creates a Harness bound to the given *testing.T. Options can be
// used to override the provider, config, and other settings. Sensible
// defaults are applied for anything not configured.
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	h := &Harness{
		t:        t,
		provider: echoProvider{},
		config:   config.Default(),
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.resultFile != "" {
		t.Cleanup(h.writeResults)
	}
	return h
}

// Run executes a named eval case as a subtest. The provided function
// receives a *TestCase with helpers for mocking tools, sending input, and
// making assertions.
func (h *Harness) Run(name string, fn func(tc *TestCase)) {
	h.t.Helper()
	h.t.Run(name, func(t *testing.T) {
		t.Helper()
		tc := &TestCase{
			t:        t,
			harness:  h,
			name:     name,
			registry: mock.NewRegistry(nil),
		}
		fn(tc)
	})
}

func (h *Harness) writeResults() {
	data, err := json.MarshalIndent(h.results, "", "  ")
	if err != nil {
		h.t.Errorf("evaltest: failed to marshal results: %v", err)
		return
	}
	if err := os.WriteFile(h.resultFile, data, 0o644); err != nil {
		h.t.Errorf("evaltest: failed to write results to %s: %v", h.resultFile, err)
	}
}

// TestCase provides methods to configure and assert a single eval case.
type TestCase struct {
	t         *testing.T
	harness   *Harness
	name      string
	registry  *mock.MockRegistry
	output    string
	toolTrace []provider.ToolCallTrace
	duration  time.Duration
	executed  bool
}

// MockTool registers mock responses for a tool. Responses are returned in
// order; the last response is repeated once all sequential responses are
// consumed. Each response is parsed as JSON when possible, so a mock can
// return either free text or a structured tool result.
func (tc *TestCase) MockTool(name string, responses ...string) {
	tc.t.Helper()
	mockResponses := make([]mock.MockResponse, len(responses))
	for i, r := range responses {
		mockResponses[i] = mock.MockResponse{Content: r}
	}
	cfg := mock.MockConfig{ToolName: name, Responses: mockResponses}
	if len(responses) > 0 {
		last := mock.MockResponse{Content: responses[len(responses)-1]}
		cfg.DefaultResponse = &last
	}
	tc.registry.Register(cfg)
}

// MockToolError registers a mock for a tool that always returns an error.
func (tc *TestCase) MockToolError(name string, errMsg string) {
	tc.t.Helper()
	tc.registry.Register(mock.MockConfig{
		ToolName:        name,
		DefaultResponse: &mock.MockResponse{Error: errMsg},
	})
}

// Input sends text to the agent via the configured provider's tool-calling
// loop, resolving tool calls through the registered mocks, and returns the
// final output as a string (JSON-marshaled if the provider returned a
// structured value).
func (tc *TestCase) Input(text string) string {
	tc.t.Helper()

	h := tc.harness
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	start := time.Now()
	req := &provider.Request{
		Prompt:       h.system,
		Input:        text,
		Tools:        h.tools,
		MaxToolCalls: maxToolIterations,
		InvokeTool:   tc.resolveMock,
	}

	resp, err := h.provider.InvokeWithTools(ctx, req)
	tc.duration = time.Since(start)
	if err != nil {
		tc.t.Errorf("provider error: %v", err)
		tc.recordResult(err.Error())
		return ""
	}

	tc.toolTrace = resp.ToolTrace
	tc.output = outputString(resp)
	tc.executed = true
	tc.recordResult("")
	return tc.output
}

// resolveMock adapts the mock registry's (string, error) contract to the
// jsonvalue-based InvokeToolFunc signature: a mock response that parses as
// JSON is returned structured, otherwise as a plain string.
func (tc *TestCase) resolveMock(_ context.Context, call provider.ToolCall) (jsonvalue.Value, error) {
	var params map[string]interface{}
	if obj, ok := jsonvalue.AsObject(call.Args); ok {
		if plain, ok := jsonvalue.ToPlain(obj).(map[string]interface{}); ok {
			params = plain
		}
	}
	content, err := tc.registry.Resolve(call.Name, params)
	if err != nil {
		return nil, err
	}
	return jsonvalue.ParseMaybeJSON(content), nil
}

func outputString(resp *provider.Response) string {
	if resp.RawText != "" {
		return resp.RawText
	}
	if s, ok := resp.Output.(string); ok {
		return s
	}
	data, err := jsonvalue.Marshal(resp.Output)
	if err != nil {
		return fmt.Sprintf("%v", resp.Output)
	}
	return string(data)
}

func (tc *TestCase) recordResult(errMsg string) {
	tc.harness.results = append(tc.harness.results, CaseResult{
		Name:      tc.name,
		Output:    tc.output,
		ToolCalls: tc.toolTrace,
		Duration:  tc.duration,
		Error:     errMsg,
	})
}

// Output returns the agent's final output text.
func (tc *TestCase) Output() string {
	tc.t.Helper()
	if !tc.executed {
		tc.t.Error("Output() called before Input()")
	}
	return tc.output
}

// ToolCallRecords returns all tool calls made by the provider during the
// agent loop, in invocation order.
func (tc *TestCase) ToolCallRecords() []provider.ToolCallTrace {
	return tc.toolTrace
}
