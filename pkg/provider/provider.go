package provider

import (
	"context"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
)

// ProviderID identifies one of the core's three supported backends. This
// is a closed set by design (spec.md Design Notes: "Provider dispatch...
// Implement as a closed tagged union of provider identities"); there is no
// open plugin mechanism for adding a fourth backend to the core.
type ProviderID string

const (
	OpenAI    ProviderID = "openai"
	Anthropic ProviderID = "anthropic"
	Gemini    ProviderID = "gemini"
)

// ToolDefinition describes a tool the model may invoke.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema jsonvalue.Value // a JSON Schema object
	Strict      *bool
}

// ToolCall is a single model-initiated function invocation request.
type ToolCall struct {
	ID   string
	Name string
	Args jsonvalue.Value
}

// ToolCallTrace records one tool invocation's outcome, in the order it was
// executed.
type ToolCallTrace struct {
	ID           string
	Name         string
	Args         jsonvalue.Value
	Result       jsonvalue.Value
	LatencyMs    int64
	Status       string // "ok" | "error"
	ErrorCode    string
	ErrorMessage string
}

// InvokeToolFunc executes one tool call and returns its JSON result. The
// provider loop calls this once per tool invocation the model requests,
// in the order the model returned them.
type InvokeToolFunc func(ctx context.Context, call ToolCall) (jsonvalue.Value, error)

// Usage tracks token consumption for one InvokeWithTools call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Request is a uniform tool-calling request translated onto each
// backend's incompatible wire protocol by its adapter.
type Request struct {
	Model             string
	Prompt            string // system instruction
	Input             jsonvalue.Value
	Tools             []ToolDefinition
	MaxToolCalls      int
	ToolChoice        string
	ParallelToolCalls *bool
	InvokeTool        InvokeToolFunc
}

// Response is a provider adapter's result once its tool-calling loop
// terminates (a turn with zero tool calls).
type Response struct {
	Output    jsonvalue.Value // parseMaybeJson(finalText)
	RawText   string
	Usage     Usage
	ToolTrace []ToolCallTrace
}

// Provider is the single-method tool-calling contract every backend
// adapter implements. The loop itself — issuing requests, detecting tool
// calls, invoking them, and continuing until none remain — lives entirely
// inside InvokeWithTools; callers never see intermediate turns.
type Provider interface {
	InvokeWithTools(ctx context.Context, req *Request) (*Response, error)
	Name() ProviderID
}
