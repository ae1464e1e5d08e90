package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
)

func TestGeminiInvokeWithTools_TextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "models/gemini-1.5-pro:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key query param = %q", got)
		}

		var reqBody geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if reqBody.SystemInstruction == nil || reqBody.SystemInstruction.Parts[0].Text != "You are helpful." {
			t.Errorf("systemInstruction = %+v", reqBody.SystemInstruction)
		}

		resp := geminiResponse{}
		resp.Candidates = []struct {
			Content geminiContent `json:"content"`
		}{{Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: "hello"}}}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	adapter := NewGeminiAdapter(WithGeminiBaseURL(server.URL))

	resp, err := adapter.InvokeWithTools(context.Background(), &Request{
		Model:  "gemini-1.5-pro",
		Prompt: "You are helpful.",
		Input:  "hi",
	})
	if err != nil {
		t.Fatalf("InvokeWithTools: %v", err)
	}
	if resp.RawText != "hello" {
		t.Errorf("RawText = %q", resp.RawText)
	}
}

func TestGeminiInvokeWithTools_ToolCallLoop(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var reqBody geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		resp := geminiResponse{}
		if calls == 1 {
			resp.Candidates = []struct {
				Content geminiContent `json:"content"`
			}{{Content: geminiContent{Role: "model", Parts: []geminiPart{
				{FunctionCall: &geminiFunctionCall{ID: "call_1", Name: "lookup", Args: map[string]interface{}{"q": "x"}}},
			}}}}
			json.NewEncoder(w).Encode(resp)
			return
		}

		if len(reqBody.Contents) != 3 {
			t.Fatalf("expected 3 contents on second turn, got %d", len(reqBody.Contents))
		}
		resp.Candidates = []struct {
			Content geminiContent `json:"content"`
		}{{Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: "done"}}}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	adapter := NewGeminiAdapter(WithGeminiBaseURL(server.URL))

	resp, err := adapter.InvokeWithTools(context.Background(), &Request{
		Model:        "gemini-1.5-pro",
		Input:        "hi",
		MaxToolCalls: 5,
		InvokeTool: func(ctx context.Context, call ToolCall) (jsonvalue.Value, error) {
			return "ok result", nil
		},
	})
	if err != nil {
		t.Fatalf("InvokeWithTools: %v", err)
	}
	if resp.RawText != "done" {
		t.Errorf("RawText = %q", resp.RawText)
	}
	if len(resp.ToolTrace) != 1 {
		t.Errorf("ToolTrace = %+v", resp.ToolTrace)
	}
}

func TestGeminiInvokeWithTools_GoogleAPIKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "fallback-key")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "fallback-key" {
			t.Errorf("key query param = %q, want fallback-key", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(geminiResponse{})
	}))
	defer server.Close()

	adapter := NewGeminiAdapter(WithGeminiBaseURL(server.URL))
	if _, err := adapter.InvokeWithTools(context.Background(), &Request{Model: "gemini-1.5-pro", Input: "hi"}); err != nil {
		t.Fatalf("InvokeWithTools: %v", err)
	}
}
