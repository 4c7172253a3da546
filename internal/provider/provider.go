// Package provider normalizes each model provider's request/response/stream
// shape into one common contract. Adapters are thin, deterministic
// translators: transport failures surface to the caller and are never
// retried here.
package provider

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/logging"
)

// Kind declares the chunk shape an adapter emits.
type Kind string

const (
	// KindDelta adapters stream partial tool calls that must be merged
	// positionally by index (name and arguments arrive in fragments).
	KindDelta Kind = "delta"

	// KindWhole adapters emit complete tool call objects, possibly several
	// within one chunk.
	KindWhole Kind = "whole"
)

// Usage is the provider-reported token consumption for one call.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// ChunkType discriminates normalized stream chunks.
type ChunkType string

const (
	ChunkText      ChunkType = "text"       // incremental assistant text
	ChunkToolDelta ChunkType = "tool_delta" // partial call fragment (delta adapters)
	ChunkToolCalls ChunkType = "tool_calls" // complete calls (whole-call adapters)
	ChunkUsage     ChunkType = "usage"      // final aggregate, when reported
	ChunkError     ChunkType = "error"      // transport failure mid-stream
)

// ToolCallDelta is one partial fragment of an in-progress tool call.
// Fragments sharing an Index belong to the same call; Name and Arguments
// are concatenated in arrival order.
type ToolCallDelta struct {
	Index     int
	CallID    string
	Name      string
	Arguments string
}

// Chunk is one normalized unit from a provider stream.
type Chunk struct {
	Type  ChunkType
	Text  string
	Delta *ToolCallDelta
	Calls []chat.ToolCallRequest
	Usage *Usage
	Err   error
}

// Adapter is the common contract over one provider's wire format. The stream
// returned by SendTurn is finite and non-restartable; the channel closes when
// the provider stream ends. Usage, when the provider reports it, arrives as a
// ChunkUsage before close.
type Adapter interface {
	// SendTurn translates the turn history and tool schemas into the
	// provider's wire format and starts a streaming call.
	SendTurn(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan Chunk, error)

	// ModelName returns the provider model identifier in use.
	ModelName() string

	// Kind reports the adapter's chunk shape.
	Kind() Kind
}

// Config describes one adapter instance.
type Config struct {
	Provider     string        // provider name, for credentials and errors
	Family       string        // "openai-completions" | "google-generative-ai"
	BaseURL      string        // optional override of the provider endpoint
	Model        string        // provider model identifier
	APIKey       string        // configured key; env fallback applied when empty
	EnvVar       string        // environment variable checked when APIKey is empty
	SystemPrompt string        // personality context, attached per provider mechanism
	Timeout      time.Duration // per-call transport timeout
}

const defaultTimeout = 120 * time.Second

// New builds an adapter for the configured API family. Credential resolution
// checks the configured key first, then the environment variable.
func New(cfg Config, log *logging.Logger) (Adapter, error) {
	key, err := resolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	cfg.APIKey = key
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	switch cfg.Family {
	case "openai-completions", "":
		return newOpenAIAdapter(cfg, log), nil
	case "google-generative-ai":
		return newGeminiAdapter(cfg, log), nil
	default:
		return nil, &chat.ConfigurationError{
			Provider: cfg.Provider,
			Message:  fmt.Sprintf("unknown api family %q", cfg.Family),
		}
	}
}

func resolveAPIKey(cfg Config) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.EnvVar != "" {
		if key := os.Getenv(cfg.EnvVar); key != "" {
			return key, nil
		}
	}
	return "", &chat.ConfigurationError{
		Provider: cfg.Provider,
		Message:  fmt.Sprintf("no API key in settings or $%s", cfg.EnvVar),
	}
}
