package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
)

func TestOpenAIInvokeWithTools_TextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer test-key")
		}

		var reqBody openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if reqBody.Model != "gpt-4o" {
			t.Errorf("model = %q, want %q", reqBody.Model, "gpt-4o")
		}
		if reqBody.Instructions != "You are helpful." {
			t.Errorf("instructions = %q", reqBody.Instructions)
		}

		resp := openaiResponse{OutputText: "hello there"}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	adapter := NewOpenAIAdapter(WithOpenAIBaseURL(server.URL))

	resp, err := adapter.InvokeWithTools(context.Background(), &Request{
		Model:        "gpt-4o",
		Prompt:       "You are helpful.",
		Input:        "hi",
		MaxToolCalls: 5,
	})
	if err != nil {
		t.Fatalf("InvokeWithTools: %v", err)
	}
	if resp.RawText != "hello there" {
		t.Errorf("RawText = %q", resp.RawText)
	}
}

func TestOpenAIInvokeWithTools_ToolCallLoop(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var reqBody openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			fc, _ := json.Marshal(map[string]interface{}{
				"type":      "function_call",
				"call_id":   "call_1",
				"name":      "lookup",
				"arguments": `{"q":"x"}`,
			})
			json.NewEncoder(w).Encode(openaiResponse{Output: []json.RawMessage{fc}})
			return
		}

		if len(reqBody.Input) < 3 {
			t.Fatalf("expected function_call_output appended, got %d items", len(reqBody.Input))
		}
		json.NewEncoder(w).Encode(openaiResponse{OutputText: "done"})
	}))
	defer server.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	adapter := NewOpenAIAdapter(WithOpenAIBaseURL(server.URL))

	invoked := false
	resp, err := adapter.InvokeWithTools(context.Background(), &Request{
		Model:        "gpt-4o",
		Input:        "hi",
		MaxToolCalls: 5,
		InvokeTool: func(ctx context.Context, call ToolCall) (jsonvalue.Value, error) {
			invoked = true
			if call.Name != "lookup" {
				t.Errorf("tool name = %q", call.Name)
			}
			return "ok result", nil
		},
	})
	if err != nil {
		t.Fatalf("InvokeWithTools: %v", err)
	}
	if !invoked {
		t.Fatalf("expected InvokeTool to be called")
	}
	if resp.RawText != "done" {
		t.Errorf("RawText = %q", resp.RawText)
	}
	if len(resp.ToolTrace) != 1 || resp.ToolTrace[0].Status != "ok" {
		t.Errorf("ToolTrace = %+v", resp.ToolTrace)
	}
}

func TestOpenAIInvokeWithTools_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	adapter := NewOpenAIAdapter()
	_, err := adapter.InvokeWithTools(context.Background(), &Request{Model: "gpt-4o", Input: "hi"})
	if err == nil {
		t.Fatalf("expected error for missing API key")
	}
}
