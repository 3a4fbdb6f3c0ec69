package nlp_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dcosta/orderbot/internal/orderbot/nlp"
)

// toolCallResponse renders an OpenAI chat-completions body whose first choice
// carries a single tool call.
func toolCallResponse(name, arguments string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{
						{
							"function": map[string]any{
								"name":      name,
								"arguments": arguments,
							},
						},
					},
				},
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) nlp.Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := nlp.NewOpenAI(nlp.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	return p
}

func TestClassify_CreateOrder(t *testing.T) {
	var gotAuth string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, toolCallResponse("create_order",
			`{"items":[{"id":"2","quantity":2},{"id":"5","quantity":1,"modifications":"ripe"}],"address":"Downtown"}`))
	})

	order, err := p.Classify(context.Background(), "send me 2 apples and a tomato to Downtown", "ID 2: Apple - 6.00")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization header: got %q", gotAuth)
	}

	if len(order.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(order.Items))
	}
	if order.Items[0].CatalogID != "2" || order.Items[0].Quantity != 2 {
		t.Errorf("first item: got %+v", order.Items[0])
	}
	if order.Items[1].Modifications != "ripe" {
		t.Errorf("modifications: got %q", order.Items[1].Modifications)
	}
	if order.Address != "Downtown" {
		t.Errorf("address: got %q", order.Address)
	}
}

func TestClassify_RequestShape(t *testing.T) {
	var captured map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, toolCallResponse("not_an_order", `{"reason":"greeting"}`))
	})

	_, _ = p.Classify(context.Background(), "hello", "ID 1: AL Ain Milk - 6.00")

	if captured["tool_choice"] != "required" {
		t.Errorf("tool_choice: got %v", captured["tool_choice"])
	}
	if captured["model"] != "gpt-4o-mini" {
		t.Errorf("model default: got %v", captured["model"])
	}
	tools, ok := captured["tools"].([]any)
	if !ok || len(tools) != 2 {
		t.Fatalf("tools: got %v", captured["tools"])
	}
	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages: got %v", captured["messages"])
	}
	system := messages[0].(map[string]any)
	if system["role"] != "system" || !strings.Contains(system["content"].(string), "AL Ain Milk") {
		t.Errorf("system message must carry the catalog: %v", system)
	}
}

func TestClassify_NotAnOrder(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, toolCallResponse("not_an_order", `{"reason":"just a greeting"}`))
	})

	_, err := p.Classify(context.Background(), "hello", "")
	if !errors.Is(err, nlp.ErrNotAnOrder) {
		t.Errorf("expected ErrNotAnOrder, got %v", err)
	}
}

func TestClassify_EmptyItemsIsNotAnOrder(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, toolCallResponse("create_order", `{"items":[]}`))
	})

	_, err := p.Classify(context.Background(), "I want nothing", "")
	if !errors.Is(err, nlp.ErrNotAnOrder) {
		t.Errorf("expected ErrNotAnOrder, got %v", err)
	}
}

func TestClassify_SchemaInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{"missing items", `{"address":"Downtown"}`},
		{"item without id", `{"items":[{"quantity":2}]}`},
		{"items not array", `{"items":"apple"}`},
		{"not json", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, toolCallResponse("create_order", tt.args))
			})

			_, err := p.Classify(context.Background(), "order", "")
			if err == nil {
				t.Error("expected error for schema-invalid arguments")
			}
			if errors.Is(err, nlp.ErrNotAnOrder) {
				t.Error("schema failures are classification failures, not polite rejections")
			}
		})
	}
}

func TestClassify_APIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	})

	_, err := p.Classify(context.Background(), "I want milk", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error should carry API message: %v", err)
	}
}

func TestClassify_NoToolCall(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"sure!"}}]}`)
	})

	_, err := p.Classify(context.Background(), "I want milk", "")
	if err == nil {
		t.Fatal("expected error when no tool call is returned")
	}
}
