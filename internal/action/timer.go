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
	timersFile = "timers.json"

	minTimerSeconds = 1
	maxTimerSeconds = 86_400
)

// TimerRecord is one scheduled countdown timer.
type TimerRecord struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	ChatID    string    `json:"chat_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// TimerStore persists timers to the data directory.
type TimerStore struct {
	fs  *fileStore
	now func() time.Time
}

func NewTimerStore(dataDir string) *TimerStore {
	return &TimerStore{fs: newFileStore(dataDir), now: time.Now}
}

// Start records a new timer of the given duration.
func (s *TimerStore) Start(label string, seconds int, chatID string) (TimerRecord, error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()

	var timers []TimerRecord
	if err := readList(s.fs, timersFile, &timers); err != nil {
		return TimerRecord{}, err
	}

	started := s.now()
	rec := TimerRecord{
		ID:        uuid.NewString(),
		Label:     label,
		ChatID:    chatID,
		StartedAt: started,
		EndsAt:    started.Add(time.Duration(seconds) * time.Second),
	}
	timers = append(timers, rec)
	return rec, writeList(s.fs, timersFile, timers)
}

// List returns all recorded timers.
func (s *TimerStore) List() ([]TimerRecord, error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	var timers []TimerRecord
	err := readList(s.fs, timersFile, &timers)
	return timers, err
}

// TimerStartTool starts a countdown timer.
type TimerStartTool struct {
	Store *TimerStore
}

func (t *TimerStartTool) Schema() chat.ToolSchema {
	return chat.ToolSchema{
		Name:        "timer_start",
		Description: "Start a countdown timer. Duration must be between 1 second and 24 hours.",
		ParameterSpec: `{
			"type": "object",
			"properties": {
				"duration_seconds": {"type": "integer", "description": "Timer length in seconds, 1 to 86400"},
				"label": {"type": "string", "description": "Short label for the timer"}
			},
			"required": ["duration_seconds"]
		}`,
	}
}

func (t *TimerStartTool) Execute(ctx context.Context, params json.RawMessage, ec ExecContext) Result {
	var in struct {
		DurationSeconds int    `json:"duration_seconds"`
		Label           string `json:"label"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return Failure(&chat.ValidationError{Field: "params", Message: err.Error()})
	}

	if in.DurationSeconds < minTimerSeconds || in.DurationSeconds > maxTimerSeconds {
		return Failure(&chat.ValidationError{
			Field:   "duration_seconds",
			Message: fmt.Sprintf("must be between %d and %d, got %d", minTimerSeconds, maxTimerSeconds, in.DurationSeconds),
		})
	}

	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = "timer"
	}

	rec, err := t.Store.Start(label, in.DurationSeconds, ec.ChatID)
	if err != nil {
		return Failure(err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("timer %q set, goes off at %s", rec.Label, rec.EndsAt.Format(time.Kitchen)),
		Data: map[string]any{
			"id":      rec.ID,
			"label":   rec.Label,
			"ends_at": rec.EndsAt.Format(time.RFC3339),
		},
	}
}
