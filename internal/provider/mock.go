package provider

import (
	"context"

	"github.com/jjadal/steward/internal/chat"
)

// MockAdapter is a test double for Adapter.
type MockAdapter struct {
	Model        string
	AdapterKind  Kind
	SendTurnFunc func(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan Chunk, error)
}

func (m *MockAdapter) ModelName() string { return m.Model }

func (m *MockAdapter) Kind() Kind {
	if m.AdapterKind == "" {
		return KindDelta
	}
	return m.AdapterKind
}

func (m *MockAdapter) SendTurn(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan Chunk, error) {
	if m.SendTurnFunc != nil {
		return m.SendTurnFunc(ctx, history, tools)
	}
	ch := make(chan Chunk, 2)
	ch <- Chunk{Type: ChunkText, Text: "mock response"}
	ch <- Chunk{Type: ChunkUsage, Usage: &Usage{InputTokens: 1, OutputTokens: 2}}
	close(ch)
	return ch, nil
}

// ScriptedChunks returns a SendTurnFunc that replays the given chunks once.
func ScriptedChunks(chunks ...Chunk) func(context.Context, []chat.Turn, []chat.ToolSchema) (<-chan Chunk, error) {
	return func(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan Chunk, error) {
		ch := make(chan Chunk, len(chunks))
		for _, c := range chunks {
			ch <- c
		}
		close(ch)
		return ch, nil
	}
}
