package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjadal/steward/internal/action"
	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/logging"
	"github.com/jjadal/steward/internal/provider"
)

type recordingTracker struct {
	mu      sync.Mutex
	in, out int
	calls   int
}

func (r *recordingTracker) Record(inputTokens, outputTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.in += inputTokens
	r.out += outputTokens
	r.calls++
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventLog) sink(ev Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventLog) byType(t EventType) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// echoTool records its invocations and succeeds.
type echoTool struct {
	mu    sync.Mutex
	calls []string
}

func (e *echoTool) Schema() chat.ToolSchema {
	return chat.ToolSchema{Name: "echo", Description: "echoes input", ParameterSpec: `{"type":"object"}`}
}

func (e *echoTool) Execute(ctx context.Context, params json.RawMessage, ec action.ExecContext) action.Result {
	e.mu.Lock()
	e.calls = append(e.calls, string(params))
	e.mu.Unlock()
	return action.Result{Success: true, Message: "echoed", Data: map[string]any{"params": string(params)}}
}

func newTestRegistry(t *testing.T, tools ...action.Tool) *action.Registry {
	t.Helper()
	reg := action.NewRegistry(logging.Silent())
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	return reg
}

func newConversation() *chat.Conversation {
	conv := chat.NewConversation("test-model", "helper")
	conv.Append(chat.NewUserTurn("hello"))
	return conv
}

func TestRunPlainTextResponse(t *testing.T) {
	adapter := &provider.MockAdapter{
		Model: "test-model",
		SendTurnFunc: provider.ScriptedChunks(
			provider.Chunk{Type: provider.ChunkText, Text: "Hi "},
			provider.Chunk{Type: provider.ChunkText, Text: "there."},
			provider.Chunk{Type: provider.ChunkUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 4}},
		),
	}
	tracker := &recordingTracker{}
	events := &eventLog{}
	coord := NewCoordinator(adapter, newTestRegistry(t), nil, tracker, events.sink, logging.Silent())
	conv := newConversation()

	require.NoError(t, coord.Run(context.Background(), conv))
	assert.Equal(t, StateCompleted, coord.State())

	require.Len(t, conv.Turns, 2)
	assert.Equal(t, chat.RoleModel, conv.Turns[1].Role)
	assert.Equal(t, "Hi there.", conv.Turns[1].Text())
	assert.False(t, conv.Turns[1].Stopped)

	deltas := events.byType(EventDelta)
	require.Len(t, deltas, 2)
	finals := events.byType(EventFinal)
	require.Len(t, finals, 1)
	assert.Equal(t, "Hi there.", finals[0].Text)

	assert.Equal(t, 10, tracker.in)
	assert.Equal(t, 4, tracker.out)
	assert.Equal(t, 1, tracker.calls)
}

func TestRunMergesSplitToolDeltas(t *testing.T) {
	round := 0
	adapter := &provider.MockAdapter{
		Model: "test-model",
		SendTurnFunc: func(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan provider.Chunk, error) {
			round++
			if round == 1 {
				// Name split over three fragments, arguments over four.
				return provider.ScriptedChunks(
					provider.Chunk{Type: provider.ChunkToolDelta, Delta: &provider.ToolCallDelta{Index: 0, CallID: "call_1", Name: "e"}},
					provider.Chunk{Type: provider.ChunkToolDelta, Delta: &provider.ToolCallDelta{Index: 0, Name: "ch"}},
					provider.Chunk{Type: provider.ChunkToolDelta, Delta: &provider.ToolCallDelta{Index: 0, Name: "o"}},
					provider.Chunk{Type: provider.ChunkToolDelta, Delta: &provider.ToolCallDelta{Index: 0, Arguments: `{"te`}},
					provider.Chunk{Type: provider.ChunkToolDelta, Delta: &provider.ToolCallDelta{Index: 0, Arguments: `xt":`}},
					provider.Chunk{Type: provider.ChunkToolDelta, Delta: &provider.ToolCallDelta{Index: 0, Arguments: `"hi"`}},
					provider.Chunk{Type: provider.ChunkToolDelta, Delta: &provider.ToolCallDelta{Index: 0, Arguments: `}`}},
				)(ctx, history, tools)
			}
			return provider.ScriptedChunks(
				provider.Chunk{Type: provider.ChunkText, Text: "done"},
			)(ctx, history, tools)
		},
	}

	tool := &echoTool{}
	events := &eventLog{}
	coord := NewCoordinator(adapter, newTestRegistry(t, tool), nil, nil, events.sink, logging.Silent())
	conv := newConversation()

	require.NoError(t, coord.Run(context.Background(), conv))
	assert.Equal(t, StateCompleted, coord.State())

	// user, model(tool call), tool result, model(final)
	require.Len(t, conv.Turns, 4)

	calls := conv.Turns[1].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "echo", calls[0].Name)
	assert.Equal(t, "call_1", calls[0].CallID)
	assert.JSONEq(t, `{"text":"hi"}`, calls[0].Arguments)

	result := conv.Turns[2].ToolResult()
	require.NotNil(t, result)
	assert.Equal(t, "call_1", result.CallID)
	assert.False(t, result.IsError)

	require.Len(t, tool.calls, 1)
	assert.JSONEq(t, `{"text":"hi"}`, tool.calls[0])

	assert.Len(t, events.byType(EventToolStart), 1)
	assert.Len(t, events.byType(EventToolResult), 1)
}

func TestRunSynthesizesMissingCallIDs(t *testing.T) {
	round := 0
	adapter := &provider.MockAdapter{
		Model:       "test-model",
		AdapterKind: provider.KindWhole,
		SendTurnFunc: func(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan provider.Chunk, error) {
			round++
			if round == 1 {
				return provider.ScriptedChunks(
					provider.Chunk{Type: provider.ChunkToolCalls, Calls: []chat.ToolCallRequest{
						{Name: "echo", Arguments: `{"n":1}`},
						{Name: "echo", Arguments: `{"n":2}`},
					}},
				)(ctx, history, tools)
			}
			return provider.ScriptedChunks(
				provider.Chunk{Type: provider.ChunkText, Text: "ok"},
			)(ctx, history, tools)
		},
	}

	coord := NewCoordinator(adapter, newTestRegistry(t, &echoTool{}), nil, nil, nil, logging.Silent())
	conv := newConversation()

	require.NoError(t, coord.Run(context.Background(), conv))

	calls := conv.Turns[1].ToolCalls()
	require.Len(t, calls, 2)
	assert.NotEmpty(t, calls[0].CallID)
	assert.NotEmpty(t, calls[1].CallID)
	assert.NotEqual(t, calls[0].CallID, calls[1].CallID)

	require.NoError(t, conv.ValidateToolPairing())
}

func TestRunCancellationKeepsPartialText(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	adapter := &provider.MockAdapter{
		Model: "test-model",
		SendTurnFunc: func(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan provider.Chunk, error) {
			ch := make(chan provider.Chunk)
			go func() {
				defer close(ch)
				for _, frag := range []string{"Hello", ", ", "wor", "ld!"} {
					select {
					case ch <- provider.Chunk{Type: provider.ChunkText, Text: frag}:
					case <-ctx.Done():
						return
					}
				}
			}()
			return ch, nil
		},
	}

	events := &eventLog{}
	deltas := 0
	sink := func(ev Event) {
		events.sink(ev)
		if ev.Type == EventDelta {
			// Stop after the third fragment lands.
			if deltas++; deltas == 3 {
				cancel()
			}
		}
	}
	coord := NewCoordinator(adapter, newTestRegistry(t), nil, nil, sink, logging.Silent())
	conv := newConversation()

	require.NoError(t, coord.Run(ctx, conv))
	assert.Equal(t, StateCancelled, coord.State())

	require.Len(t, conv.Turns, 2)
	assert.Equal(t, "Hello, wor", conv.Turns[1].Text())
	assert.True(t, conv.Turns[1].Stopped)

	stopped := events.byType(EventStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, "Hello, wor", stopped[0].Text)
	assert.Empty(t, events.byType(EventFinal))
}

func TestRunCancellationSkipsBufferedChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// The adapter has chunks already buffered when cancellation lands:
	// none of them may be processed.
	adapter := &provider.MockAdapter{
		Model: "test-model",
		SendTurnFunc: func(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan provider.Chunk, error) {
			ch := make(chan provider.Chunk, 2)
			ch <- provider.Chunk{Type: provider.ChunkText, Text: "post-cancel"}
			ch <- provider.Chunk{Type: provider.ChunkToolDelta, Delta: &provider.ToolCallDelta{Index: 0, CallID: "c1", Name: "echo", Arguments: "{}"}}
			close(ch)
			cancel()
			return ch, nil
		},
	}

	tool := &echoTool{}
	events := &eventLog{}
	coord := NewCoordinator(adapter, newTestRegistry(t, tool), nil, nil, events.sink, logging.Silent())
	conv := newConversation()

	require.NoError(t, coord.Run(ctx, conv))
	assert.Equal(t, StateCancelled, coord.State())

	require.Len(t, conv.Turns, 2)
	assert.True(t, conv.Turns[1].Stopped)
	assert.Empty(t, conv.Turns[1].Text())
	assert.Empty(t, events.byType(EventDelta))
	assert.Empty(t, tool.calls, "buffered tool call must never be dispatched after cancellation")
}

func TestRunTransportErrorDiscardsPartialText(t *testing.T) {
	adapter := &provider.MockAdapter{
		Model: "test-model",
		SendTurnFunc: provider.ScriptedChunks(
			provider.Chunk{Type: provider.ChunkText, Text: "partial"},
			provider.Chunk{Type: provider.ChunkError, Err: &chat.TransportError{Provider: "openai", Message: "bad gateway", Code: 502}},
		),
	}

	events := &eventLog{}
	coord := NewCoordinator(adapter, newTestRegistry(t), nil, nil, events.sink, logging.Silent())
	conv := newConversation()

	err := coord.Run(context.Background(), conv)
	require.Error(t, err)
	var terr *chat.TransportError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, StateFailed, coord.State())

	// Failed rounds leave no model turn behind.
	require.Len(t, conv.Turns, 1)
	assert.Len(t, events.byType(EventError), 1)
}

func TestRunBoundsToolLoop(t *testing.T) {
	rounds := 0
	adapter := &provider.MockAdapter{
		Model: "test-model",
		SendTurnFunc: func(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan provider.Chunk, error) {
			rounds++
			return provider.ScriptedChunks(
				provider.Chunk{Type: provider.ChunkToolDelta, Delta: &provider.ToolCallDelta{Index: 0, CallID: "c", Name: "echo", Arguments: "{}"}},
			)(ctx, history, tools)
		},
	}

	coord := NewCoordinator(adapter, newTestRegistry(t, &echoTool{}), nil, nil, nil, logging.Silent())
	conv := newConversation()

	err := coord.Run(context.Background(), conv)
	require.Error(t, err)
	var lerr *chat.ToolLoopExceededError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, StateFailed, coord.State())
	assert.Equal(t, maxToolDepth, rounds)
}

func TestRunUsageFallbackWhenProviderSilent(t *testing.T) {
	adapter := &provider.MockAdapter{
		Model: "test-model",
		SendTurnFunc: provider.ScriptedChunks(
			provider.Chunk{Type: provider.ChunkText, Text: "a reasonably sized response with several words"},
		),
	}
	tracker := &recordingTracker{}
	coord := NewCoordinator(adapter, newTestRegistry(t), nil, tracker, nil, logging.Silent())

	require.NoError(t, coord.Run(context.Background(), newConversation()))
	assert.Equal(t, 1, tracker.calls)
	assert.Greater(t, tracker.in, 0)
	assert.Greater(t, tracker.out, 0)
}

func TestRunAdapterStartFailure(t *testing.T) {
	adapter := &provider.MockAdapter{
		Model: "test-model",
		SendTurnFunc: func(ctx context.Context, history []chat.Turn, tools []chat.ToolSchema) (<-chan provider.Chunk, error) {
			return nil, errors.New("dial failed")
		},
	}
	coord := NewCoordinator(adapter, newTestRegistry(t), nil, nil, nil, logging.Silent())

	err := coord.Run(context.Background(), newConversation())
	require.Error(t, err)
	assert.Equal(t, StateFailed, coord.State())
}
