package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/promptmgr/evalcore/pkg/jsonvalue"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiOption configures a GeminiAdapter.
type GeminiOption func(*GeminiAdapter)

// WithGeminiHTTPClient sets a custom HTTP client (useful for testing).
func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(a *GeminiAdapter) { a.client = c }
}

// WithGeminiBaseURL overrides the API base URL.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(a *GeminiAdapter) { a.baseURL = url }
}

// GeminiAdapter implements Provider (Backend G) over the generateContent
// API. Unlike the other two backends, Gemini carries its API key as a
// query parameter rather than a header.
type GeminiAdapter struct {
	client  *http.Client
	baseURL string
}

// NewGeminiAdapter creates an adapter reading its API key from
// GEMINI_API_KEY, falling back to GOOGLE_API_KEY, at call time.
func NewGeminiAdapter(opts ...GeminiOption) *GeminiAdapter {
	a := &GeminiAdapter{
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: defaultGeminiBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns Gemini.
func (a *GeminiAdapter) Name() ProviderID { return Gemini }

type geminiFunctionCall struct {
	ID   string      `json:"id,omitempty"`
	Name string      `json:"name"`
	Args interface{} `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string      `json:"name"`
	Response interface{} `json:"response"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDecl struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

type geminiToolWrapper struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiSystemInstruction `json:"systemInstruction,omitempty"`
	Contents          []geminiContent          `json:"contents"`
	Tools             []geminiToolWrapper      `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// InvokeWithTools drives Backend G's tool-calling loop until a turn
// contains zero functionCall parts.
func (a *GeminiAdapter) InvokeWithTools(ctx context.Context, req *Request) (*Response, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Missing Gemini API key in GEMINI_API_KEY or GOOGLE_API_KEY")
	}

	contents := []geminiContent{{Role: "user", Parts: []geminiPart{{Text: geminiStringContent(req.Input)}}}}

	var usage Usage
	var toolTrace []ToolCallTrace
	toolCallsUsed := 0

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", a.baseURL, geminiModelPath(req.Model), apiKey)

	for {
		body, err := buildGeminiRequestBody(req, contents)
		if err != nil {
			return nil, fmt.Errorf("building Gemini request body: %w", err)
		}

		respBody, err := postJSON(ctx, a.client, url, nil, body)
		if err != nil {
			return nil, err
		}

		var gr geminiResponse
		if err := json.Unmarshal(respBody, &gr); err != nil {
			return nil, invalidJSONErr(respBody)
		}
		usage.InputTokens += gr.UsageMetadata.PromptTokenCount
		usage.OutputTokens += gr.UsageMetadata.CandidatesTokenCount

		if len(gr.Candidates) == 0 {
			return &Response{Output: "", RawText: "", Usage: usage, ToolTrace: toolTrace}, nil
		}
		modelParts := gr.Candidates[0].Content.Parts

		var calls []ToolCall
		for _, part := range modelParts {
			if part.FunctionCall == nil {
				continue
			}
			id := part.FunctionCall.ID
			if id == "" {
				// generateContent does not echo a call id the way the other
				// two backends do; synthesize one so the functionResponse
				// pairing and the emitted ToolCallTrace have a stable handle.
				id = uuid.NewString()
			}
			calls = append(calls, ToolCall{
				ID:   id,
				Name: part.FunctionCall.Name,
				Args: jsonvalue.FromPlain(part.FunctionCall.Args),
			})
		}

		if len(calls) == 0 {
			text := extractGeminiText(modelParts)
			return &Response{
				Output:    jsonvalue.ParseMaybeJSON(text),
				RawText:   text,
				Usage:     usage,
				ToolTrace: toolTrace,
			}, nil
		}

		contents = append(contents, geminiContent{Role: "model", Parts: modelParts})

		traces, err := runToolCalls(ctx, req, calls, toolCallsUsed)
		toolTrace = append(toolTrace, traces...)
		if err != nil {
			return nil, err
		}
		toolCallsUsed += len(calls)

		var responseParts []geminiPart
		for _, t := range traces {
			responseParts = append(responseParts, geminiPart{
				FunctionResponse: &geminiFunctionResponse{
					Name:     t.Name,
					Response: map[string]interface{}{"result": jsonvalue.ToPlain(t.Result)},
				},
			})
		}
		contents = append(contents, geminiContent{Role: "user", Parts: responseParts})
	}
}

func buildGeminiRequestBody(req *Request, contents []geminiContent) ([]byte, error) {
	gr := geminiRequest{Contents: contents}

	if req.Prompt != "" {
		gr.SystemInstruction = &geminiSystemInstruction{Parts: []geminiPart{{Text: req.Prompt}}}
	}

	if len(req.Tools) > 0 {
		wrapper := geminiToolWrapper{}
		for _, tool := range req.Tools {
			wrapper.FunctionDeclarations = append(wrapper.FunctionDeclarations, geminiFunctionDecl{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  jsonvalue.ToPlain(tool.InputSchema),
			})
		}
		gr.Tools = []geminiToolWrapper{wrapper}
	}

	return json.Marshal(gr)
}

// geminiModelPath prepends "models/" to a bare model name, matching the
// generateContent resource path convention.
func geminiModelPath(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func geminiStringContent(input jsonvalue.Value) string {
	if s, ok := input.(string); ok {
		return s
	}
	b, _ := jsonvalue.Marshal(input)
	return string(b)
}

func extractGeminiText(parts []geminiPart) string {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}
