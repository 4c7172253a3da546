package action

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jjadal/steward/internal/chat"
)

const alarmsFile = "alarms.json"

var clockTimeRe = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// AlarmRecord is one scheduled alarm.
type AlarmRecord struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	ChatID    string    `json:"chat_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	RingsAt   time.Time `json:"rings_at"`
}

// AlarmStore persists alarms to the data directory.
type AlarmStore struct {
	fs  *fileStore
	now func() time.Time
}

func NewAlarmStore(dataDir string) *AlarmStore {
	return &AlarmStore{fs: newFileStore(dataDir), now: time.Now}
}

// Create records a new alarm ringing at the given instant.
func (s *AlarmStore) Create(label string, ringsAt time.Time, chatID string) (AlarmRecord, error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()

	var alarms []AlarmRecord
	if err := readList(s.fs, alarmsFile, &alarms); err != nil {
		return AlarmRecord{}, err
	}

	rec := AlarmRecord{
		ID:        uuid.NewString(),
		Label:     label,
		ChatID:    chatID,
		CreatedAt: s.now(),
		RingsAt:   ringsAt,
	}
	alarms = append(alarms, rec)
	return rec, writeList(s.fs, alarmsFile, alarms)
}

// List returns all recorded alarms.
func (s *AlarmStore) List() ([]AlarmRecord, error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	var alarms []AlarmRecord
	err := readList(s.fs, alarmsFile, &alarms)
	return alarms, err
}

// parseAlarmTime accepts either a bare 24h clock time ("07:30", in which case
// the next occurrence of that wall time is chosen) or a full RFC 3339
// timestamp.
func parseAlarmTime(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	if m := clockTimeRe.FindStringSubmatch(raw); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil
	}

	if at, err := time.Parse(time.RFC3339, raw); err == nil {
		return at, nil
	}

	return time.Time{}, &chat.ValidationError{
		Field:   "time",
		Message: fmt.Sprintf("%q is neither HH:MM nor an ISO-8601 timestamp", raw),
	}
}

// AlarmCreateTool schedules an alarm.
type AlarmCreateTool struct {
	Store *AlarmStore
}

func (t *AlarmCreateTool) Schema() chat.ToolSchema {
	return chat.ToolSchema{
		Name:        "alarm_create",
		Description: "Create an alarm at a specific time. Accepts a 24-hour clock time like 07:30 (next occurrence) or a full ISO-8601 timestamp.",
		ParameterSpec: `{
			"type": "object",
			"properties": {
				"time": {"type": "string", "description": "Alarm time: HH:MM or ISO-8601 timestamp"},
				"label": {"type": "string", "description": "Short label for the alarm"}
			},
			"required": ["time"]
		}`,
	}
}

func (t *AlarmCreateTool) Execute(ctx context.Context, params json.RawMessage, ec ExecContext) Result {
	var in struct {
		Time  string `json:"time"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return Failure(&chat.ValidationError{Field: "params", Message: err.Error()})
	}

	now := t.Store.now()
	ringsAt, err := parseAlarmTime(in.Time, now)
	if err != nil {
		return Failure(err)
	}
	if !ringsAt.After(now) {
		return Failure(&chat.ValidationError{Field: "time", Message: "alarm time is in the past"})
	}

	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = "alarm"
	}

	rec, err := t.Store.Create(label, ringsAt, ec.ChatID)
	if err != nil {
		return Failure(err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("alarm %q set for %s", rec.Label, rec.RingsAt.Format("Mon 15:04")),
		Data: map[string]any{
			"id":       rec.ID,
			"label":    rec.Label,
			"rings_at": rec.RingsAt.Format(time.RFC3339),
		},
	}
}
