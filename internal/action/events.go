package action

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jjadal/steward/internal/chat"
)

const (
	eventsFile        = "events.json"
	eventsArchiveFile = "events-archive.json"

	// eventRetention is how long an event stays in the active set before it
	// is migrated to the archive on the next write.
	eventRetention = 24 * time.Hour
)

// EventRecord is one calendar-style event note.
type EventRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail,omitempty"`
	ChatID    string    `json:"chat_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventStore persists events, migrating stale ones to an archive file on
// every create.
type EventStore struct {
	fs  *fileStore
	now func() time.Time
}

func NewEventStore(dataDir string) *EventStore {
	return &EventStore{fs: newFileStore(dataDir), now: time.Now}
}

// Create records a new event after sweeping expired ones into the archive.
func (s *EventStore) Create(title, detail, chatID string) (EventRecord, error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()

	active, err := s.sweepLocked()
	if err != nil {
		return EventRecord{}, err
	}

	rec := EventRecord{
		ID:        uuid.NewString(),
		Title:     title,
		Detail:    detail,
		ChatID:    chatID,
		CreatedAt: s.now(),
	}
	active = append(active, rec)
	return rec, writeList(s.fs, eventsFile, active)
}

// Active returns events created within the retention window.
func (s *EventStore) Active() ([]EventRecord, error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()

	var events []EventRecord
	if err := readList(s.fs, eventsFile, &events); err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-eventRetention)
	var active []EventRecord
	for _, e := range events {
		if e.CreatedAt.After(cutoff) {
			active = append(active, e)
		}
	}
	return active, nil
}

// sweepLocked moves events older than the retention window into the archive
// file and returns the remaining active set. Caller holds the lock.
func (s *EventStore) sweepLocked() ([]EventRecord, error) {
	var events []EventRecord
	if err := readList(s.fs, eventsFile, &events); err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-eventRetention)
	var active, expired []EventRecord
	for _, e := range events {
		if e.CreatedAt.After(cutoff) {
			active = append(active, e)
		} else {
			expired = append(expired, e)
		}
	}

	if len(expired) > 0 {
		var archive []EventRecord
		if err := readList(s.fs, eventsArchiveFile, &archive); err != nil {
			return nil, err
		}
		archive = append(archive, expired...)
		if err := writeList(s.fs, eventsArchiveFile, archive); err != nil {
			return nil, err
		}
	}
	return active, nil
}

// EventCreateTool records an event.
type EventCreateTool struct {
	Store *EventStore
}

func (t *EventCreateTool) Schema() chat.ToolSchema {
	return chat.ToolSchema{
		Name:        "event_create",
		Description: "Record an event worth surfacing later, such as something the user mentioned happening today.",
		ParameterSpec: `{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "Short event title"},
				"detail": {"type": "string", "description": "Optional extra detail"}
			},
			"required": ["title"]
		}`,
	}
}

func (t *EventCreateTool) Execute(ctx context.Context, params json.RawMessage, ec ExecContext) Result {
	var in struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return Failure(&chat.ValidationError{Field: "params", Message: err.Error()})
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Failure(&chat.ValidationError{Field: "title", Message: "event title is empty"})
	}

	rec, err := t.Store.Create(title, strings.TrimSpace(in.Detail), ec.ChatID)
	if err != nil {
		return Failure(err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("event %q recorded", rec.Title),
		Data:    map[string]any{"id": rec.ID, "title": rec.Title},
	}
}

// EventCheckTool lists events still inside the retention window.
type EventCheckTool struct {
	Store *EventStore
}

func (t *EventCheckTool) Schema() chat.ToolSchema {
	return chat.ToolSchema{
		Name:        "event_check",
		Description: "List events recorded in the last 24 hours.",
		ParameterSpec: `{
			"type": "object",
			"properties": {}
		}`,
	}
}

func (t *EventCheckTool) Execute(ctx context.Context, params json.RawMessage, ec ExecContext) Result {
	active, err := t.Store.Active()
	if err != nil {
		return Failure(err)
	}

	if len(active) == 0 {
		return Result{Success: true, Message: "no active events", Data: map[string]any{"events": []any{}}}
	}

	items := make([]map[string]any, 0, len(active))
	for _, e := range active {
		items = append(items, map[string]any{
			"id":         e.ID,
			"title":      e.Title,
			"detail":     e.Detail,
			"created_at": e.CreatedAt.Format(time.RFC3339),
		})
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("%d active event(s)", len(active)),
		Data:    map[string]any{"events": items},
	}
}
