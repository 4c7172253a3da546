package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jjadal/steward/internal/action"
	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/logging"
	"github.com/jjadal/steward/internal/provider"
	"github.com/jjadal/steward/internal/usage"
)

// maxToolDepth limits how many tool call rounds one user message can trigger.
const maxToolDepth = 5

// UsageTracker records token consumption per completed turn.
type UsageTracker interface {
	Record(inputTokens, outputTokens int)
}

// Coordinator drives one streamed model response: it consumes the adapter's
// chunk stream, accumulates text and tool calls, dispatches tools, and feeds
// follow-up rounds back to the model. A Coordinator handles a single Run;
// create a fresh one per user message.
type Coordinator struct {
	adapter    provider.Adapter
	tools      *action.Registry
	toolFilter []string
	usage      UsageTracker
	sink       EventSink
	log        *logging.Logger

	mu    sync.Mutex
	state State
}

// NewCoordinator creates a coordinator over one adapter. toolFilter limits
// which registered tools are offered to the model; empty means all.
func NewCoordinator(adapter provider.Adapter, tools *action.Registry, toolFilter []string, tracker UsageTracker, sink EventSink, log *logging.Logger) *Coordinator {
	return &Coordinator{
		adapter:    adapter,
		tools:      tools,
		toolFilter: toolFilter,
		usage:      tracker,
		sink:       sink,
		log:        log.Sub("stream"),
		state:      StateIdle,
	}
}

// State reports the coordinator's lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) emit(ev Event) {
	if c.sink != nil {
		c.sink(ev)
	}
}

// roundResult is the accumulated outcome of one streamed model turn.
type roundResult struct {
	text    string
	deltas  map[int]*chat.ToolCallRequest
	whole   []chat.ToolCallRequest
	usage   *provider.Usage
	stopped bool
}

// Run streams model responses for the conversation's current history,
// appending model and tool-result turns as they resolve. It returns after
// the final text turn, after cancellation, or with an error on transport
// failure or an unbounded tool loop.
func (c *Coordinator) Run(ctx context.Context, conv *chat.Conversation) error {
	c.setState(StateStreaming)
	schemas := c.tools.Schemas(c.toolFilter...)
	c.log.Debug().
		Str("chatId", conv.ChatID).
		Str("model", c.adapter.ModelName()).
		Int("tools", len(schemas)).
		Msg("stream starting")

	var inTokens, outTokens int
	usageReported := false
	var allText string

	for depth := 0; ; depth++ {
		round, err := c.streamRound(ctx, conv, schemas)
		if err != nil {
			// Transport failure: the partial text is discarded and no
			// turn is appended for this round.
			c.setState(StateFailed)
			c.emit(Event{Type: EventError, ChatID: conv.ChatID, Err: err})
			return err
		}

		if round.usage != nil {
			usageReported = true
			inTokens += round.usage.InputTokens
			outTokens += round.usage.OutputTokens
		}

		if round.stopped {
			// Keep whatever text arrived, marked stopped. Pending tool
			// calls are never dispatched after cancellation.
			conv.Append(chat.NewModelTurn(round.text, nil, true))
			c.setState(StateCancelled)
			c.emit(Event{Type: EventStopped, ChatID: conv.ChatID, Text: round.text})
			return nil
		}

		calls := finalizeCalls(round)
		conv.Append(chat.NewModelTurn(round.text, calls, false))
		allText += round.text

		if len(calls) == 0 {
			if !usageReported {
				inTokens = historyTokens(conv.History())
				outTokens = usage.CountTokens(allText)
			}
			if c.usage != nil {
				c.usage.Record(inTokens, outTokens)
			}
			c.setState(StateCompleted)
			c.emit(Event{Type: EventFinal, ChatID: conv.ChatID, Text: round.text})
			return nil
		}

		if depth+1 >= maxToolDepth {
			err := &chat.ToolLoopExceededError{Depth: maxToolDepth}
			c.setState(StateFailed)
			c.emit(Event{Type: EventError, ChatID: conv.ChatID, Err: err})
			return err
		}

		c.log.Info().Int("toolCalls", len(calls)).Int("depth", depth+1).Msg("executing tool calls")

		for _, call := range calls {
			c.emit(Event{Type: EventToolStart, ChatID: conv.ChatID, ToolName: call.Name, ToolCallID: call.CallID})
			res := c.tools.Execute(ctx, call.Name, json.RawMessage(call.Arguments), action.ExecContext{ChatID: conv.ChatID})
			c.emit(Event{
				Type:        EventToolResult,
				ChatID:      conv.ChatID,
				ToolName:    call.Name,
				ToolCallID:  call.CallID,
				ToolSuccess: res.Success,
				Text:        res.Message,
			})
			conv.Append(chat.NewToolResultTurn(chat.ToolResultPayload{
				CallID:  call.CallID,
				Name:    call.Name,
				Content: res.JSON(),
				IsError: !res.Success,
			}))
		}
	}
}

// streamRound consumes one adapter stream to completion. A context
// cancellation surfaces as stopped=true with the partial text; a mid-stream
// transport error is returned as err.
func (c *Coordinator) streamRound(ctx context.Context, conv *chat.Conversation, schemas []chat.ToolSchema) (roundResult, error) {
	res := roundResult{deltas: make(map[int]*chat.ToolCallRequest)}

	ch, err := c.adapter.SendTurn(ctx, conv.History(), schemas)
	if err != nil {
		return res, err
	}

	for chunk := range ch {
		// Once cancellation is observed no further chunks are processed,
		// including ones the adapter already buffered. Drain so the
		// producer can close the channel.
		if ctx.Err() != nil {
			go func() {
				for range ch {
				}
			}()
			res.stopped = true
			return res, nil
		}

		switch chunk.Type {
		case provider.ChunkText:
			res.text += chunk.Text
			c.emit(Event{Type: EventDelta, ChatID: conv.ChatID, Text: chunk.Text})

		case provider.ChunkToolDelta:
			d := chunk.Delta
			call, ok := res.deltas[d.Index]
			if !ok {
				call = &chat.ToolCallRequest{}
				res.deltas[d.Index] = call
			}
			if d.CallID != "" {
				call.CallID = d.CallID
			}
			call.Name += d.Name
			call.Arguments += d.Arguments

		case provider.ChunkToolCalls:
			res.whole = append(res.whole, chunk.Calls...)

		case provider.ChunkUsage:
			res.usage = chunk.Usage

		case provider.ChunkError:
			if ctx.Err() != nil {
				res.stopped = true
				return res, nil
			}
			return res, chunk.Err
		}
	}

	if ctx.Err() != nil {
		res.stopped = true
	}
	return res, nil
}

// finalizeCalls assembles the round's tool calls in a stable order,
// dropping nameless fragments and synthesizing ids for providers that do
// not assign them.
func finalizeCalls(round roundResult) []chat.ToolCallRequest {
	var calls []chat.ToolCallRequest

	indexes := make([]int, 0, len(round.deltas))
	for i := range round.deltas {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		call := *round.deltas[i]
		if call.Name == "" {
			continue
		}
		calls = append(calls, call)
	}

	for _, call := range round.whole {
		if call.Name == "" {
			continue
		}
		calls = append(calls, call)
	}

	now := time.Now().UnixMilli()
	for i := range calls {
		if calls[i].CallID == "" {
			calls[i].CallID = fmt.Sprintf("call-%d-%d", now, i)
		}
		if calls[i].Arguments == "" {
			calls[i].Arguments = "{}"
		}
	}
	return calls
}

// historyTokens estimates input token usage from the conversation text when
// the provider does not report usage.
func historyTokens(turns []chat.Turn) int {
	total := 0
	for _, t := range turns {
		total += usage.CountTokens(t.Text())
	}
	return total
}
