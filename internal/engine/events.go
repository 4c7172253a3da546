// Package engine drives streamed model turns: it owns the per-turn stream
// lifecycle, the tool-call follow-up loop, and the chat session surface the
// CLI and gateway talk to.
package engine

// EventType identifies one streaming boundary or progress event.
type EventType string

const (
	// EventDelta carries an incremental text fragment.
	EventDelta EventType = "delta"
	// EventFinal marks a completed model turn; Text holds the full text.
	EventFinal EventType = "final"
	// EventError marks a failed stream; Err holds the failure.
	EventError EventType = "error"
	// EventStopped marks a user-cancelled stream; Text holds the partial text.
	EventStopped EventType = "stopped"
	// EventToolStart reports that a tool invocation is beginning.
	EventToolStart EventType = "tool_start"
	// EventToolResult reports a finished tool invocation.
	EventToolResult EventType = "tool_result"
)

// Event is one streaming event delivered to the session's sink.
type Event struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chatId,omitempty"`
	Text   string    `json:"text,omitempty"`

	// Tool fields, set for tool_start and tool_result.
	ToolName    string `json:"toolName,omitempty"`
	ToolCallID  string `json:"toolCallId,omitempty"`
	ToolSuccess bool   `json:"toolSuccess,omitempty"`

	Err error `json:"-"`
}

// EventSink receives streaming events. Sinks must not block; slow consumers
// should buffer on their side.
type EventSink func(Event)

// State is the lifecycle state of a stream.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)
