package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Conversation is the ordered turn log for one chat plus its metadata.
// The active conversation is owned exclusively by the session manager;
// while a stream is in flight the coordinator appends turns concurrently
// with Snapshot readers, so the turn log is guarded by its own lock.
type Conversation struct {
	ChatID        string    `json:"chatId"`
	ModelID       string    `json:"modelId"`
	PersonalityID string    `json:"personalityId"`
	Title         string    `json:"title,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Turns         []Turn    `json:"turns"`

	mu sync.RWMutex
}

// NewConversation creates an empty conversation with a fresh time-derived id.
func NewConversation(modelID, personalityID string) *Conversation {
	return &Conversation{
		ChatID:        NewChatID(),
		ModelID:       modelID,
		PersonalityID: personalityID,
		LastUpdated:   time.Now(),
	}
}

// Append adds a turn to the end of the log, assigning an id if absent.
func (c *Conversation) Append(t Turn) {
	if t.ID == "" {
		t.ID = NewTurnID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	c.mu.Lock()
	c.Turns = append(c.Turns, t)
	c.LastUpdated = time.Now()
	c.mu.Unlock()
}

// Snapshot returns a point-in-time copy safe to read while the live
// conversation is still being appended to. Turns are immutable once
// appended, so copying the turn slice is sufficient.
func (c *Conversation) Snapshot() *Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	turns := make([]Turn, len(c.Turns))
	copy(turns, c.Turns)
	return &Conversation{
		ChatID:        c.ChatID,
		ModelID:       c.ModelID,
		PersonalityID: c.PersonalityID,
		Title:         c.Title,
		LastUpdated:   c.LastUpdated,
		Turns:         turns,
	}
}

// History returns a copy of the turn log for building provider requests.
func (c *Conversation) History() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	turns := make([]Turn, len(c.Turns))
	copy(turns, c.Turns)
	return turns
}

// Find returns the turn with the given id and its index.
func (c *Conversation) Find(turnID string) (Turn, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findLocked(turnID)
}

func (c *Conversation) findLocked(turnID string) (Turn, int, error) {
	for i, t := range c.Turns {
		if t.ID == turnID {
			return t, i, nil
		}
	}
	return Turn{}, -1, &NotFoundError{Kind: "turn", ID: turnID}
}

// TruncateAfter removes every turn after the one matching turnID, keeping the
// matched turn itself. Only user turns may act as the truncation boundary:
// cutting at a model or tool-result turn would break the call/result pairing.
func (c *Conversation) TruncateAfter(turnID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, i, err := c.findLocked(turnID)
	if err != nil {
		return err
	}
	if t.Role != RoleUser {
		return &InvalidOperationError{
			Message: fmt.Sprintf("turn %s has role %q; only user turns are editable", turnID, t.Role),
		}
	}
	c.Turns = c.Turns[:i+1]
	c.LastUpdated = time.Now()
	return nil
}

// EditUserTurn replaces the text of a user turn in place and discards every
// turn after it. This is the one exception to turn immutability: resending
// requires the model to regenerate from the edited point, so no speculative
// branch of the old future is kept.
func (c *Conversation) EditUserTurn(turnID, newText string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, i, err := c.findLocked(turnID)
	if err != nil {
		return err
	}
	if t.Role != RoleUser {
		return &InvalidOperationError{
			Message: fmt.Sprintf("turn %s has role %q; only user turns are editable", turnID, t.Role),
		}
	}
	c.Turns[i].Segments = []Segment{{Type: SegmentText, Text: newText}}
	c.Turns = c.Turns[:i+1]
	c.LastUpdated = time.Now()
	return nil
}

// Serialize produces the lossless JSON representation used by storage.
func (c *Conversation) Serialize() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// Deserialize parses a serialized conversation.
func Deserialize(data []byte) (*Conversation, error) {
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing conversation: %w", err)
	}
	return &c, nil
}

// ValidateToolPairing checks the tool call/result invariant: every
// tool-result turn answers exactly one call id emitted by an earlier turn,
// and no call id is answered twice.
func (c *Conversation) ValidateToolPairing() error {
	emitted := make(map[string]bool)
	answered := make(map[string]bool)
	for _, t := range c.Turns {
		for _, call := range t.ToolCalls() {
			emitted[call.CallID] = true
		}
		if t.Role == RoleToolResult {
			res := t.ToolResult()
			if res == nil {
				return &InvalidOperationError{Message: fmt.Sprintf("tool-result turn %s has no result payload", t.ID)}
			}
			if !emitted[res.CallID] {
				return &InvalidOperationError{Message: fmt.Sprintf("tool-result turn %s answers unknown call %s", t.ID, res.CallID)}
			}
			if answered[res.CallID] {
				return &InvalidOperationError{Message: fmt.Sprintf("call %s answered twice", res.CallID)}
			}
			answered[res.CallID] = true
		}
	}
	return nil
}

// DeriveTitle computes a display title from the first user turn.
func (c *Conversation) DeriveTitle() string {
	for _, t := range c.Turns {
		if t.Role == RoleUser {
			text := t.Text()
			// Truncate on rune boundaries; byte slicing would split
			// multi-byte characters.
			if runes := []rune(text); len(runes) > 60 {
				return string(runes[:57]) + "..."
			}
			return text
		}
	}
	return "New chat"
}
