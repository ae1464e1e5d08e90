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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIOption configures an OpenAIAdapter.
type OpenAIOption func(*OpenAIAdapter)

// WithOpenAIHTTPClient sets a custom HTTP client (useful for testing).
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(a *OpenAIAdapter) { a.client = c }
}

// WithOpenAIBaseURL overrides the API base URL.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(a *OpenAIAdapter) { a.baseURL = url }
}

// OpenAIAdapter implements Provider (Backend O) over the tool-capable
// `/responses` endpoint, per spec.md §4.5/§4.6.
type OpenAIAdapter struct {
	client  *http.Client
	baseURL string
}

// NewOpenAIAdapter creates an adapter reading its API key from
// OPENAI_API_KEY at call time.
func NewOpenAIAdapter(opts ...OpenAIOption) *OpenAIAdapter {
	a := &OpenAIAdapter{
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: defaultOpenAIBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns OpenAI.
func (a *OpenAIAdapter) Name() ProviderID { return OpenAI }

type openaiToolDef struct {
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Parameters  interface{} `json:"parameters,omitempty"`
	Strict      bool        `json:"strict"`
	Description string      `json:"description,omitempty"`
}

type openaiRequest struct {
	Model             string            `json:"model"`
	Instructions      string            `json:"instructions,omitempty"`
	Input             []json.RawMessage `json:"input"`
	Tools             []openaiToolDef   `json:"tools,omitempty"`
	ToolChoice        *string           `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool             `json:"parallel_tool_calls,omitempty"`
}

type openaiResponse struct {
	Output     []json.RawMessage `json:"output"`
	OutputText string            `json:"output_text"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// openaiItemHeader is a partial decode used to discriminate "input item"
// shapes without interpreting items this adapter doesn't care about
// (reasoning blocks, message items); those pass through opaquely via the
// surrounding json.RawMessage.
type openaiItemHeader struct {
	Type      string `json:"type"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// InvokeWithTools drives Backend O's tool-calling loop until a turn
// contains zero function_call items.
func (a *OpenAIAdapter) InvokeWithTools(ctx context.Context, req *Request) (*Response, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("Missing OpenAI API key in OPENAI_API_KEY")
	}

	conversation := []json.RawMessage{initialOpenAIUserItem(req.Input)}
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	var usage Usage
	var toolTrace []ToolCallTrace
	toolCallsUsed := 0

	for {
		body, err := buildOpenAIRequestBody(req, conversation)
		if err != nil {
			return nil, fmt.Errorf("building OpenAI request body: %w", err)
		}

		respBody, err := postJSON(ctx, a.client, a.baseURL+"/responses", headers, body)
		if err != nil {
			return nil, err
		}

		var or openaiResponse
		if err := json.Unmarshal(respBody, &or); err != nil {
			return nil, invalidJSONErr(respBody)
		}
		usage.InputTokens += or.Usage.InputTokens
		usage.OutputTokens += or.Usage.OutputTokens

		// The entire output item list, including non-functional items
		// such as reasoning blocks, is appended verbatim and in order:
		// some reasoning models require their prior reasoning items to
		// remain in the conversation on the next turn.
		conversation = append(conversation, or.Output...)

		var calls []ToolCall
		for _, item := range or.Output {
			var hdr openaiItemHeader
			if err := json.Unmarshal(item, &hdr); err != nil {
				continue
			}
			if hdr.Type != "function_call" {
				continue
			}
			var args jsonvalue.Value
			if hdr.Arguments != "" {
				args, _ = jsonvalue.Parse([]byte(hdr.Arguments))
			}
			calls = append(calls, ToolCall{ID: hdr.CallID, Name: hdr.Name, Args: args})
		}

		if len(calls) == 0 {
			text := extractOpenAIText(or)
			return &Response{
				Output:    jsonvalue.ParseMaybeJSON(text),
				RawText:   text,
				Usage:     usage,
				ToolTrace: toolTrace,
			}, nil
		}

		traces, err := runToolCalls(ctx, req, calls, toolCallsUsed)
		toolTrace = append(toolTrace, traces...)
		if err != nil {
			return nil, err
		}
		toolCallsUsed += len(calls)

		for _, t := range traces {
			item := map[string]interface{}{
				"type":    "function_call_output",
				"call_id": t.ID,
				"output":  stringifyToolResult(t.Result),
			}
			b, err := json.Marshal(item)
			if err != nil {
				return nil, fmt.Errorf("encoding function_call_output: %w", err)
			}
			conversation = append(conversation, b)
		}
	}
}

func buildOpenAIRequestBody(req *Request, conversation []json.RawMessage) ([]byte, error) {
	or := openaiRequest{
		Model:        req.Model,
		Instructions: req.Prompt,
		Input:        conversation,
	}

	for _, tool := range req.Tools {
		strict := true
		if tool.Strict != nil {
			strict = *tool.Strict
		}
		or.Tools = append(or.Tools, openaiToolDef{
			Type:        "function",
			Name:        tool.Name,
			Parameters:  jsonvalue.ToPlain(tool.InputSchema),
			Strict:      strict,
			Description: tool.Description,
		})
	}

	if req.ToolChoice != "" {
		tc := req.ToolChoice
		or.ToolChoice = &tc
	}
	if req.ParallelToolCalls != nil {
		or.ParallelToolCalls = req.ParallelToolCalls
	}

	return json.Marshal(or)
}

func initialOpenAIUserItem(input jsonvalue.Value) json.RawMessage {
	content, ok := input.(string)
	if !ok {
		b, _ := jsonvalue.Marshal(input)
		content = string(b)
	}
	b, _ := json.Marshal(map[string]interface{}{"role": "user", "content": content})
	return b
}

// extractOpenAIText prefers the top-level output_text convenience field;
// otherwise it concatenates output_text content blocks from message
// items, in order.
func extractOpenAIText(or openaiResponse) string {
	if or.OutputText != "" {
		return or.OutputText
	}

	var sb strings.Builder
	for _, item := range or.Output {
		var msg struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(item, &msg); err != nil || msg.Type != "message" {
			continue
		}
		for _, c := range msg.Content {
			if c.Type == "output_text" {
				sb.WriteString(c.Text)
			}
		}
	}
	return sb.String()
}

func stringifyToolResult(v jsonvalue.Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := jsonvalue.Marshal(v)
	return string(b)
}
