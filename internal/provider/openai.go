package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/logging"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIAdapter speaks the streaming chat-completions wire format shared by
// OpenAI-compatible providers. It is an incremental-delta adapter: tool call
// name and arguments arrive in fragments keyed by positional index.
type openAIAdapter struct {
	cfg    Config
	client *http.Client
	log    *logging.Logger
}

func newOpenAIAdapter(cfg Config, log *logging.Logger) *openAIAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	return &openAIAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Sub("provider." + cfg.Provider),
	}
}

func (a *openAIAdapter) ModelName() string { return a.cfg.Model }
func (a *openAIAdapter) Kind() Kind        { return KindDelta }

// SendTurn starts a streaming completion. Transport failures, including
// non-200 responses, arrive on the returned channel as a ChunkError.
func (a *openAIAdapter) SendTurn(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan Chunk, error) {
	body := a.buildRequestBody(history, tools)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ch := make(chan Chunk)
	go a.streamRequest(ctx, ch, payload)
	return ch, nil
}

// buildRequestBody translates the internal turn log into chat-completions
// messages. The system prompt becomes a synthetic leading message; tool
// results map to the dedicated "tool" role keyed by tool_call_id.
func (a *openAIAdapter) buildRequestBody(history []chat.Turn, tools []chat.ToolSchema) map[string]any {
	messages := make([]map[string]any, 0, len(history)+1)
	if a.cfg.SystemPrompt != "" {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": a.cfg.SystemPrompt,
		})
	}

	for _, turn := range history {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, map[string]any{
				"role":    "user",
				"content": turn.Text(),
			})

		case chat.RoleModel:
			msg := map[string]any{
				"role":    "assistant",
				"content": turn.Text(),
			}
			if calls := turn.ToolCalls(); len(calls) > 0 {
				wire := make([]map[string]any, len(calls))
				for i, c := range calls {
					wire[i] = map[string]any{
						"id":   c.CallID,
						"type": "function",
						"function": map[string]any{
							"name":      c.Name,
							"arguments": c.Arguments,
						},
					}
				}
				msg["tool_calls"] = wire
			}
			messages = append(messages, msg)

		case chat.RoleToolResult:
			if res := turn.ToolResult(); res != nil {
				messages = append(messages, map[string]any{
					"role":         "tool",
					"tool_call_id": res.CallID,
					"content":      res.Content,
				})
			}
		}
	}

	body := map[string]any{
		"model":          a.cfg.Model,
		"messages":       messages,
		"stream":         true,
		"stream_options": map[string]any{"include_usage": true},
	}

	if len(tools) > 0 {
		wire := make([]map[string]any, len(tools))
		for i, t := range tools {
			wire[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  parseJSONSchema(t.ParameterSpec),
				},
			}
		}
		body["tools"] = wire
	}

	return body
}

func (a *openAIAdapter) streamRequest(ctx context.Context, ch chan<- Chunk, payload []byte) {
	defer close(ch)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.BaseURL+"/chat/completions", strings.NewReader(string(payload)))
	if err != nil {
		ch <- Chunk{Type: ChunkError, Err: &chat.TransportError{Provider: a.cfg.Provider, Message: "creating request", Err: err}}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		ch <- Chunk{Type: ChunkError, Err: &chat.TransportError{Provider: a.cfg.Provider, Message: "request failed", Err: err}}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		ch <- Chunk{Type: ChunkError, Err: &chat.TransportError{
			Provider: a.cfg.Provider,
			Code:     resp.StatusCode,
			Message:  strings.TrimSpace(string(body)),
		}}
		return
	}

	scanner := newSSEScanner(resp.Body)
	start := time.Now()

	for {
		data, ok := scanner.Next()
		if !ok {
			break
		}
		if data == "[DONE]" {
			break
		}

		var event openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			a.log.Debug().Str("data", data).Msg("skipping unparseable stream chunk")
			continue
		}

		if event.Usage != nil {
			ch <- Chunk{Type: ChunkUsage, Usage: &Usage{
				InputTokens:  event.Usage.PromptTokens,
				OutputTokens: event.Usage.CompletionTokens,
			}}
		}

		if len(event.Choices) == 0 {
			continue
		}
		delta := event.Choices[0].Delta

		if delta.Content != "" {
			ch <- Chunk{Type: ChunkText, Text: delta.Content}
		}
		for _, tc := range delta.ToolCalls {
			ch <- Chunk{Type: ChunkToolDelta, Delta: &ToolCallDelta{
				Index:     tc.Index,
				CallID:    tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}}
		}
	}

	if err := scanner.Err(); err != nil {
		ch <- Chunk{Type: ChunkError, Err: &chat.TransportError{Provider: a.cfg.Provider, Message: "reading stream", Err: err}}
		return
	}

	a.log.Debug().Dur("duration", time.Since(start)).Msg("stream complete")
}

// Wire structures for the streaming chat-completions response.

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id,omitempty"`
				Function struct {
					Name      string `json:"name,omitempty"`
					Arguments string `json:"arguments,omitempty"`
				} `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// parseJSONSchema converts a JSON Schema string to a generic map for
// embedding in a request body. Malformed schemas become nil and are left
// for the provider to reject.
func parseJSONSchema(schemaStr string) map[string]any {
	if schemaStr == "" {
		return nil
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(schemaStr), &schema); err != nil {
		return nil
	}
	return schema
}
