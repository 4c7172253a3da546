// Package chat holds the canonical conversation model: role-tagged turns
// made of ordered segments, and the mutable log of the active conversation.
package chat

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Role tags one entry in the conversation log.
type Role string

const (
	RoleUser       Role = "user"
	RoleModel      Role = "model"
	RoleToolResult Role = "tool_result"
)

// SegmentType discriminates the content segments within a turn.
type SegmentType string

const (
	SegmentText       SegmentType = "text"
	SegmentToolCall   SegmentType = "tool_call"
	SegmentToolResult SegmentType = "tool_result"
)

// ToolCallRequest is a model's request to invoke a tool, as finalized after
// stream accumulation. Arguments is a JSON string.
type ToolCallRequest struct {
	CallID    string `json:"callId"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResultPayload is the outcome of one tool call, fed back to the model.
type ToolResultPayload struct {
	CallID  string `json:"callId"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// Segment is one ordered piece of a turn's content.
type Segment struct {
	Type   SegmentType        `json:"type"`
	Text   string             `json:"text,omitempty"`
	Call   *ToolCallRequest   `json:"call,omitempty"`
	Result *ToolResultPayload `json:"result,omitempty"`
}

// Turn is one entry in a conversation. Turns are immutable after append,
// with the single exception of EditUserTurn on the owning Conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Segments  []Segment `json:"segments"`
	Stopped   bool      `json:"stopped,omitempty"` // user cancelled mid-stream; text is partial
	CreatedAt time.Time `json:"createdAt"`
}

// turnSeq disambiguates turn ids created within the same millisecond.
var turnSeq atomic.Int64

// NewTurnID returns an opaque id that sorts roughly by creation time.
func NewTurnID() string {
	return fmt.Sprintf("%d-%04d-%s", time.Now().UnixMilli(), turnSeq.Add(1)%10000, uuid.NewString()[:8])
}

// NewChatID returns a time-derived unique conversation identifier.
func NewChatID() string {
	return fmt.Sprintf("chat-%s-%s", time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

// NewUserTurn creates a user turn with a single text segment.
func NewUserTurn(text string) Turn {
	return Turn{
		ID:        NewTurnID(),
		Role:      RoleUser,
		Segments:  []Segment{{Type: SegmentText, Text: text}},
		CreatedAt: time.Now(),
	}
}

// NewModelTurn creates a model turn from accumulated text and finalized tool
// call requests. The text segment is omitted when empty and calls exist.
func NewModelTurn(text string, calls []ToolCallRequest, stopped bool) Turn {
	var segs []Segment
	if text != "" || len(calls) == 0 {
		segs = append(segs, Segment{Type: SegmentText, Text: text})
	}
	for i := range calls {
		c := calls[i]
		segs = append(segs, Segment{Type: SegmentToolCall, Call: &c})
	}
	return Turn{
		ID:        NewTurnID(),
		Role:      RoleModel,
		Segments:  segs,
		Stopped:   stopped,
		CreatedAt: time.Now(),
	}
}

// NewToolResultTurn creates a tool-result turn answering exactly one call.
func NewToolResultTurn(payload ToolResultPayload) Turn {
	return Turn{
		ID:        NewTurnID(),
		Role:      RoleToolResult,
		Segments:  []Segment{{Type: SegmentToolResult, Result: &payload}},
		CreatedAt: time.Now(),
	}
}

// Text returns the concatenated text segments of the turn.
func (t Turn) Text() string {
	var b strings.Builder
	for _, s := range t.Segments {
		if s.Type == SegmentText {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the tool-call-request segments of the turn, in order.
func (t Turn) ToolCalls() []ToolCallRequest {
	var calls []ToolCallRequest
	for _, s := range t.Segments {
		if s.Type == SegmentToolCall && s.Call != nil {
			calls = append(calls, *s.Call)
		}
	}
	return calls
}

// ToolResult returns the tool-result payload, or nil for non-result turns.
func (t Turn) ToolResult() *ToolResultPayload {
	for _, s := range t.Segments {
		if s.Type == SegmentToolResult && s.Result != nil {
			return s.Result
		}
	}
	return nil
}
