package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	defaultNLPBase  = "https://api.openai.com/v1"
	defaultNLPModel = "gpt-4o-mini"
	defaultTimeout  = 10 * time.Second
)

// parsedOrderSchema is the JSON Schema for the create_order tool arguments.
// It is advertised to the model as the tool's parameter schema and compiled
// locally so the model's output is validated before it is decoded.
const parsedOrderSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "items": {
      "type": "array",
      "description": "List of items the customer wants to order",
      "items": {
        "type": "object",
        "properties": {
          "id": {
            "type": "string",
            "description": "The catalog item ID"
          },
          "quantity": {
            "type": "integer",
            "description": "How many of this item (default 1)"
          },
          "modifications": {
            "type": "string",
            "description": "Any modifications like 'no mayo', 'extra cheese'"
          }
        },
        "required": ["id"]
      }
    },
    "address": {
      "type": "string",
      "description": "Delivery address if provided by the customer"
    }
  },
  "required": ["items"]
}`

// Config configures the OpenAI-compatible order classifier.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini when empty.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 10 s; a slow classifier
	// must never stall the message loop longer than this.
	Timeout time.Duration
}

// openAIProvider implements Provider using the OpenAI chat completions API
// with forced tool calling, so the model always answers through one of the
// two declared tools.
type openAIProvider struct {
	cfg    Config
	client *http.Client
	schema *jsonschema.Schema
}

// NewOpenAI returns a Provider backed by the OpenAI (or compatible) chat API.
// The returned provider is safe for concurrent use.
func NewOpenAI(cfg Config) (Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNLPBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultNLPModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	schema, err := jsonschema.CompileString("parsed_order.schema.json", parsedOrderSchema)
	if err != nil {
		return nil, fmt.Errorf("nlp: compile order schema: %w", err)
	}

	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		schema: schema,
	}, nil
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	ToolCalls []oaiToolCall `json:"tool_calls,omitempty"`
}

type oaiTool struct {
	Type     string      `json:"type"`
	Function oaiFunction `json:"function"`
}

type oaiFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type oaiToolCall struct {
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Tools       []oaiTool    `json:"tools"`
	ToolChoice  string       `json:"tool_choice"`
	Temperature float64      `json:"temperature"`
}

type oaiResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// notAnOrderSchema is the trivial parameter schema for the rejection tool.
const notAnOrderSchema = `{
  "type": "object",
  "properties": {
    "reason": {
      "type": "string",
      "description": "Why this message is not an order"
    }
  },
  "required": ["reason"]
}`

// systemPromptTmpl is the instruction set sent as the "system" message.
// One printf verb is substituted at call time: the rendered catalog.
const systemPromptTmpl = `You are an intelligent order assistant for a chat delivery bot.

AVAILABLE CATALOG:
%s

YOUR TASK:
1. If the user wants to ORDER items, call create_order and extract:
   - Which items they want (match to catalog IDs using fuzzy matching)
   - Quantities (default to 1 if not specified)
   - Any modifications (no mayo, extra cheese, etc.)
   - Delivery address if mentioned
2. If the message is NOT an order (greetings, questions, complaints, status
   checks, etc.), call not_an_order.

MATCHING RULES:
- Match items flexibly: "milk" matches "AL Ain Milk", "apple" matches "Apple".
- Handle plurals: "apples" = "apple", "tomatoes" = "tomato".
- Handle quantities: "2 apples", "two milks", "a sugar and an onion".
- If an item does not match any catalog item, skip it but still process the others.
- Be generous in matching; partial matches are OK.

EXAMPLES:
- "I want 2 milks and an apple" -> create_order with items
- "Send me tomatoes and onions to Downtown" -> create_order with address
- "Hello" -> not_an_order
- "What's on the menu?" -> not_an_order
- "Where is my order?" -> not_an_order`

// Classify sends the message to the LLM and returns the extracted order.
func (p *openAIProvider) Classify(ctx context.Context, message, catalogDescription string) (*ParsedOrder, error) {
	body := oaiRequest{
		Model: p.cfg.Model,
		Messages: []oaiMessage{
			{Role: "system", Content: fmt.Sprintf(systemPromptTmpl, catalogDescription)},
			{Role: "user", Content: message},
		},
		Tools: []oaiTool{
			{Type: "function", Function: oaiFunction{
				Name:        "create_order",
				Description: "Create an order from the customer request. Use this when the customer wants to order items from the catalog.",
				Parameters:  json.RawMessage(parsedOrderSchema),
			}},
			{Type: "function", Function: oaiFunction{
				Name:        "not_an_order",
				Description: "Use this when the message is NOT an order request (greetings, questions, complaints, etc.)",
				Parameters:  json.RawMessage(notAnOrderSchema),
			}},
		},
		ToolChoice:  "required",
		Temperature: 0.1,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("nlp: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("nlp: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("nlp: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nlp: read response body: %w", err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("nlp: decode API response: %w", err)
	}
	if oaiResp.Error != nil {
		return nil, fmt.Errorf("nlp: API error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("nlp: no choices returned (HTTP %d)", resp.StatusCode)
	}

	calls := oaiResp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return nil, fmt.Errorf("nlp: no tool call returned")
	}
	call := calls[0]

	if call.Function.Name != "create_order" {
		return nil, ErrNotAnOrder
	}

	order, err := p.decodeOrder(call.Function.Arguments)
	if err != nil {
		return nil, err
	}
	if len(order.Items) == 0 {
		return nil, ErrNotAnOrder
	}
	return order, nil
}

// decodeOrder validates the tool-call arguments against the order schema and
// decodes them. Schema-invalid output is an error, never a partial order.
func (p *openAIProvider) decodeOrder(arguments string) (*ParsedOrder, error) {
	var doc any
	if err := json.Unmarshal([]byte(arguments), &doc); err != nil {
		return nil, fmt.Errorf("nlp: decode tool arguments: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("nlp: tool arguments failed schema validation: %w", err)
	}

	var order ParsedOrder
	if err := json.Unmarshal([]byte(arguments), &order); err != nil {
		return nil, fmt.Errorf("nlp: decode order: %w", err)
	}
	return &order, nil
}
