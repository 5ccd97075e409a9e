package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dotsetgreg/dotvoice/pkg/config"
)

func TestHTTPProvider_ParsesToolCallsAndUsage(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = fmt.Fprint(w, `{
			"choices": [{
				"message": {
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "get_system_info", "arguments": "{\"category\":\"time\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120}
		}`)
	}))
	defer server.Close()

	p := NewHTTPProvider("sk-test", server.URL, "")
	tools := []ToolDefinition{{Type: "function", Function: ToolFunctionDefinition{Name: "get_system_info"}}}
	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "what time is it"}}, tools, "", map[string]interface{}{"max_tokens": 64})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	if captured["tool_choice"] != "auto" {
		t.Fatalf("expected tool_choice=auto when tools are offered, got %v", captured["tool_choice"])
	}
	if captured["model"] != "gpt-4o" {
		t.Fatalf("expected default model, got %v", captured["model"])
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "get_system_info" || tc.Arguments["category"] != "time" {
		t.Fatalf("unexpected tool call %+v", tc)
	}
	if tc.Function == nil || tc.Function.Arguments != `{"category":"time"}` {
		t.Fatalf("wire form not preserved: %+v", tc.Function)
	}
	if resp.Usage == nil || resp.Usage.PromptTokens != 100 || resp.Usage.CompletionTokens != 20 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestHTTPProvider_NoToolsOmitsToolChoice(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":"It is noon."},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	p := NewHTTPProvider("", server.URL, "")
	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, "custom", nil)
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if _, ok := captured["tools"]; ok {
		t.Fatal("tools must be omitted when none are offered")
	}
	if _, ok := captured["tool_choice"]; ok {
		t.Fatal("tool_choice must be omitted when no tools are offered")
	}
	if captured["model"] != "custom" {
		t.Fatalf("expected explicit model, got %v", captured["model"])
	}
	if resp.Content != "It is noon." {
		t.Fatalf("unexpected content %q", resp.Content)
	}
}

func TestHTTPProvider_ContextOverflowClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"error":{"code":"context_length_exceeded","message":"This model's maximum context length is 128000 tokens."}}`)
	}))
	defer server.Close()

	p := NewHTTPProvider("k", server.URL, "")
	_, err := p.Chat(context.Background(), nil, nil, "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected APIError with status 400, got %v", err)
	}
	if !errors.Is(err, ErrContextOverflow) {
		t.Fatal("expected errors.Is(err, ErrContextOverflow)")
	}
	if !IsContextOverflow(err) {
		t.Fatal("expected IsContextOverflow to be true")
	}
}

func TestIsContextOverflow(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), false},
		{&APIError{Status: 500, Body: "internal"}, false},
		{fmt.Errorf("wrapped: %w", ErrContextOverflow), true},
		{errors.New("Please reduce the length of the messages"), true},
	}
	for _, tc := range cases {
		if got := IsContextOverflow(tc.err); got != tc.want {
			t.Errorf("IsContextOverflow(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestCreateProvider_RequiresAPIKey(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := CreateProvider(cfg); err == nil {
		t.Fatal("expected missing api key error")
	}

	cfg.Provider.APIKey = "sk-x"
	cfg.Assistant.Model = "gpt-4o-mini"
	p, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if p.GetDefaultModel() != "gpt-4o-mini" {
		t.Fatalf("default model = %q", p.GetDefaultModel())
	}
}
