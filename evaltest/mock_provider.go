package evaltest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/promptmgr/evalcore/pkg/provider"
)

// MockTurn scripts one simulated model turn. A turn with a non-empty
// ToolCalls is not terminal: MockProvider invokes req.InvokeTool for each
// call (recording a trace, exactly as a real adapter's tool loop would)
// and advances to the next scripted turn. A turn with no ToolCalls is
// terminal and becomes the call's Response.
type MockTurn struct {
	ToolCalls []provider.ToolCall
	Output    jsonvalue.Value
	RawText   string
	Usage     provider.Usage
}

// MockProvider drives a scripted sequence of MockTurn values through the
// same tool-calling-loop shape a real adapter implements: it calls
// req.InvokeTool for each pending tool call and only returns once a
// terminal turn is reached. It is safe for concurrent use.
type MockProvider struct {
	turns []MockTurn
	mu    sync.Mutex
	idx   int
}

// NewMockProvider creates a MockProvider scripted with the given turns,
// consumed in order across calls to InvokeWithTools.
func NewMockProvider(turns ...MockTurn) *MockProvider {
	return &MockProvider{turns: turns}
}

func (m *MockProvider) InvokeWithTools(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	var trace []provider.ToolCallTrace

	for {
		m.mu.Lock()
		if m.idx >= len(m.turns) {
			m.mu.Unlock()
			return nil, fmt.Errorf("mock provider: no more scripted turns (consumed %d/%d)", m.idx, len(m.turns))
		}
		turn := m.turns[m.idx]
		m.idx++
		m.mu.Unlock()

		if len(turn.ToolCalls) == 0 {
			return &provider.Response{Output: turn.Output, RawText: turn.RawText, Usage: turn.Usage, ToolTrace: trace}, nil
		}

		for _, call := range turn.ToolCalls {
			start := time.Now()
			result, err := req.InvokeTool(ctx, call)
			latency := time.Since(start).Milliseconds()
			if err != nil {
				trace = append(trace, provider.ToolCallTrace{ID: call.ID, Name: call.Name, Args: call.Args, Status: "error", ErrorMessage: err.Error(), LatencyMs: latency})
				return nil, err
			}
			trace = append(trace, provider.ToolCallTrace{ID: call.ID, Name: call.Name, Args: call.Args, Result: result, Status: "ok", LatencyMs: latency})
		}
	}
}

func (m *MockProvider) Name() provider.ProviderID { return "mock" }

// echoProvider is a trivial provider that echoes req.Input back as the
// final output, never calling a tool.
type echoProvider struct{}

func (echoProvider) InvokeWithTools(_ context.Context, req *provider.Request) (*provider.Response, error) {
	text, _ := req.Input.(string)
	return &provider.Response{Output: req.Input, RawText: text}, nil
}

func (echoProvider) Name() provider.ProviderID { return "echo" }
