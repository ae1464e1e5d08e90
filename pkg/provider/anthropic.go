package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 2048
)

// AnthropicOption configures an AnthropicAdapter.
type AnthropicOption func(*AnthropicAdapter)

// WithAnthropicHTTPClient sets a custom HTTP client (useful for testing).
func WithAnthropicHTTPClient(c *http.Client) AnthropicOption {
	return func(a *AnthropicAdapter) { a.client = c }
}

// WithAnthropicBaseURL overrides the API base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(a *AnthropicAdapter) { a.baseURL = url }
}

// AnthropicAdapter implements Provider (Backend A) over the Messages API.
type AnthropicAdapter struct {
	client  *http.Client
	baseURL string
}

// NewAnthropicAdapter creates an adapter reading its API key from
// ANTHROPIC_API_KEY at call time.
func NewAnthropicAdapter(opts ...AnthropicOption) *AnthropicAdapter {
	a := &AnthropicAdapter{
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: defaultAnthropicBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns Anthropic.
func (a *AnthropicAdapter) Name() ProviderID { return Anthropic }

type anthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type anthropicToolDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema interface{} `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicToolDef `json:"tools,omitempty"`
}

type anthropicResponse struct {
	Content []json.RawMessage `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicBlockHeader struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// InvokeWithTools drives Backend A's tool-calling loop until a turn
// contains zero tool_use blocks.
func (a *AnthropicAdapter) InvokeWithTools(ctx context.Context, req *Request) (*Response, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("Missing Anthropic API key in ANTHROPIC_API_KEY")
	}

	messages := []anthropicMessage{{Role: "user", Content: anthropicStringContent(req.Input)}}
	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
	}

	var usage Usage
	var toolTrace []ToolCallTrace
	toolCallsUsed := 0

	for {
		body, err := buildAnthropicRequestBody(req, messages)
		if err != nil {
			return nil, fmt.Errorf("building Anthropic request body: %w", err)
		}

		respBody, err := postJSON(ctx, a.client, a.baseURL+"/messages", headers, body)
		if err != nil {
			return nil, err
		}

		var ar anthropicResponse
		if err := json.Unmarshal(respBody, &ar); err != nil {
			return nil, invalidJSONErr(respBody)
		}
		usage.InputTokens += ar.Usage.InputTokens
		usage.OutputTokens += ar.Usage.OutputTokens

		var calls []ToolCall
		for _, block := range ar.Content {
			var hdr anthropicBlockHeader
			if err := json.Unmarshal(block, &hdr); err != nil || hdr.Type != "tool_use" {
				continue
			}
			var args jsonvalue.Value
			if len(hdr.Input) > 0 {
				args, _ = jsonvalue.Parse(hdr.Input)
			}
			calls = append(calls, ToolCall{ID: hdr.ID, Name: hdr.Name, Args: args})
		}

		if len(calls) == 0 {
			text := extractAnthropicText(ar)
			return &Response{
				Output:    jsonvalue.ParseMaybeJSON(text),
				RawText:   text,
				Usage:     usage,
				ToolTrace: toolTrace,
			}, nil
		}

		assistantContent, err := json.Marshal(ar.Content)
		if err != nil {
			return nil, fmt.Errorf("re-encoding assistant content: %w", err)
		}
		messages = append(messages, anthropicMessage{Role: "assistant", Content: assistantContent})

		traces, err := runToolCalls(ctx, req, calls, toolCallsUsed)
		toolTrace = append(toolTrace, traces...)
		if err != nil {
			return nil, err
		}
		toolCallsUsed += len(calls)

		var resultBlocks []map[string]interface{}
		for _, t := range traces {
			resultBlocks = append(resultBlocks, map[string]interface{}{
				"type":        "tool_result",
				"tool_use_id": t.ID,
				"content":     stringifyToolResult(t.Result),
			})
		}
		resultContent, err := json.Marshal(resultBlocks)
		if err != nil {
			return nil, fmt.Errorf("encoding tool_result content: %w", err)
		}
		messages = append(messages, anthropicMessage{Role: "user", Content: resultContent})
	}
}

func buildAnthropicRequestBody(req *Request, messages []anthropicMessage) ([]byte, error) {
	ar := anthropicRequest{
		Model:     req.Model,
		MaxTokens: anthropicMaxTokens,
		System:    req.Prompt,
		Messages:  messages,
	}

	for _, tool := range req.Tools {
		ar.Tools = append(ar.Tools, anthropicToolDef{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: jsonvalue.ToPlain(tool.InputSchema),
		})
	}

	return json.Marshal(ar)
}

func anthropicStringContent(input jsonvalue.Value) json.RawMessage {
	content, ok := input.(string)
	if !ok {
		b, _ := jsonvalue.Marshal(input)
		content = string(b)
	}
	b, _ := json.Marshal(content)
	return b
}

func extractAnthropicText(ar anthropicResponse) string {
	var sb strings.Builder
	for _, block := range ar.Content {
		var hdr anthropicBlockHeader
		if err := json.Unmarshal(block, &hdr); err != nil || hdr.Type != "text" {
			continue
		}
		sb.WriteString(hdr.Text)
	}
	return sb.String()
}
