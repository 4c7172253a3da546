package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/logging"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiAdapter speaks the turn-based generative wire format. It is a
// whole-call adapter: each chunk carries complete text fragments or complete
// functionCall objects, with no partial accumulation, though one chunk may
// hold several calls.
type geminiAdapter struct {
	cfg    Config
	client *http.Client
	log    *logging.Logger
}

func newGeminiAdapter(cfg Config, log *logging.Logger) *geminiAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	return &geminiAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Sub("provider." + cfg.Provider),
	}
}

func (a *geminiAdapter) ModelName() string { return a.cfg.Model }
func (a *geminiAdapter) Kind() Kind        { return KindWhole }

func (a *geminiAdapter) SendTurn(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan Chunk, error) {
	body := a.buildRequestBody(history, tools)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ch := make(chan Chunk)
	go a.streamRequest(ctx, ch, payload)
	return ch, nil
}

// buildRequestBody translates the internal turn log into generative-API
// contents. The system prompt uses the dedicated systemInstruction field;
// tool results map to the distinct "function" role carrying a
// functionResponse part.
func (a *geminiAdapter) buildRequestBody(history []chat.Turn, tools []chat.ToolSchema) map[string]any {
	contents := make([]map[string]any, 0, len(history))

	for _, turn := range history {
		switch turn.Role {
		case chat.RoleUser:
			contents = append(contents, map[string]any{
				"role":  "user",
				"parts": []map[string]any{{"text": turn.Text()}},
			})

		case chat.RoleModel:
			var parts []map[string]any
			if text := turn.Text(); text != "" {
				parts = append(parts, map[string]any{"text": text})
			}
			for _, c := range turn.ToolCalls() {
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{
						"name": c.Name,
						"args": parseJSONSchema(c.Arguments),
					},
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, map[string]any{"role": "model", "parts": parts})

		case chat.RoleToolResult:
			if res := turn.ToolResult(); res != nil {
				contents = append(contents, map[string]any{
					"role": "function",
					"parts": []map[string]any{{
						"functionResponse": map[string]any{
							"name":     res.Name,
							"response": map[string]any{"content": res.Content},
						},
					}},
				})
			}
		}
	}

	body := map[string]any{"contents": contents}

	if a.cfg.SystemPrompt != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": a.cfg.SystemPrompt}},
		}
	}

	if len(tools) > 0 {
		decls := make([]map[string]any, len(tools))
		for i, t := range tools {
			decls[i] = map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  parseJSONSchema(t.ParameterSpec),
			}
		}
		body["tools"] = []map[string]any{{"functionDeclarations": decls}}
	}

	return body
}

func (a *geminiAdapter) streamRequest(ctx context.Context, ch chan<- Chunk, payload []byte) {
	defer close(ch)

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
		a.cfg.BaseURL, a.cfg.Model, url.QueryEscape(a.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		ch <- Chunk{Type: ChunkError, Err: &chat.TransportError{Provider: a.cfg.Provider, Message: "creating request", Err: err}}
		return
	}
	req.Header.Set("Content-Type", "application/json")

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
	var usage *Usage

	for {
		data, ok := scanner.Next()
		if !ok {
			break
		}

		var event geminiStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			a.log.Debug().Str("data", data).Msg("skipping unparseable stream chunk")
			continue
		}

		if event.UsageMetadata.CandidatesTokenCount > 0 || event.UsageMetadata.PromptTokenCount > 0 {
			usage = &Usage{
				InputTokens:  event.UsageMetadata.PromptTokenCount,
				OutputTokens: event.UsageMetadata.CandidatesTokenCount,
			}
		}

		for _, candidate := range event.Candidates {
			var calls []chat.ToolCallRequest
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					ch <- Chunk{Type: ChunkText, Text: part.Text}
				}
				if part.FunctionCall != nil {
					args, _ := json.Marshal(part.FunctionCall.Args)
					// The provider supplies no call id; the coordinator
					// synthesizes one during finalization.
					calls = append(calls, chat.ToolCallRequest{
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					})
				}
			}
			if len(calls) > 0 {
				ch <- Chunk{Type: ChunkToolCalls, Calls: calls}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		ch <- Chunk{Type: ChunkError, Err: &chat.TransportError{Provider: a.cfg.Provider, Message: "reading stream", Err: err}}
		return
	}

	// Cumulative usage is only trustworthy once the stream closes.
	if usage != nil {
		ch <- Chunk{Type: ChunkUsage, Usage: usage}
	}
}

// Wire structures for the streaming generative response.

type geminiStreamEvent struct {
	Candidates []struct {
		Content struct {
			Role  string `json:"role"`
			Parts []struct {
				Text         string `json:"text,omitempty"`
				FunctionCall *struct {
					Name string         `json:"name"`
					Args map[string]any `json:"args"`
				} `json:"functionCall,omitempty"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}
