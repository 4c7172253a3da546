package action

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/usage"
)

const (
	notesFile = "notes.md"

	// noteTokenBudget caps the live note corpus. When exceeded, the entire
	// corpus is archived and the file starts fresh. A destructive rotation
	// rather than incremental trimming; see DESIGN.md before changing.
	noteTokenBudget = 100_000
)

// NotesStore is the file-backed note corpus shared by the note tool and the
// "notes" prompt context pseudo-set.
type NotesStore struct {
	fs *fileStore
}

// NewNotesStore creates a notes store rooted at the data directory.
func NewNotesStore(dataDir string) *NotesStore {
	return &NotesStore{fs: newFileStore(dataDir)}
}

// Corpus returns the current live note corpus.
func (s *NotesStore) Corpus() (string, error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	return s.fs.readText(notesFile)
}

// Append adds one timestamped note line, archiving the whole corpus first if
// it is over budget.
func (s *NotesStore) Append(text, chatID string) (archived bool, err error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()

	corpus, err := s.fs.readText(notesFile)
	if err != nil {
		return false, err
	}

	if usage.CountTokens(corpus) > noteTokenBudget {
		archiveName := fmt.Sprintf("notes-archive-%s.md", time.Now().Format("20060102-150405"))
		if err := s.fs.writeText(archiveName, corpus); err != nil {
			return false, err
		}
		corpus = ""
		archived = true
	}

	line := fmt.Sprintf("- [%s] %s", time.Now().Format("2006-01-02 15:04"), text)
	if chatID != "" {
		line += fmt.Sprintf(" (chat: %s)", chatID)
	}
	if corpus != "" && !strings.HasSuffix(corpus, "\n") {
		corpus += "\n"
	}
	return archived, s.fs.writeText(notesFile, corpus+line+"\n")
}

// NoteAppendTool appends a line to the persistent note corpus.
type NoteAppendTool struct {
	Store *NotesStore
}

func (t *NoteAppendTool) Schema() chat.ToolSchema {
	return chat.ToolSchema{
		Name:        "note_append",
		Description: "Append a note to the user's persistent notes. Use for facts, reminders, and anything worth remembering across conversations.",
		ParameterSpec: `{
			"type": "object",
			"properties": {
				"text": {"type": "string", "description": "The note text to record"}
			},
			"required": ["text"]
		}`,
	}
}

func (t *NoteAppendTool) Execute(ctx context.Context, params json.RawMessage, ec ExecContext) Result {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return Failure(&chat.ValidationError{Field: "params", Message: err.Error()})
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Failure(&chat.ValidationError{Field: "text", Message: "note text is empty"})
	}

	archived, err := t.Store.Append(text, ec.ChatID)
	if err != nil {
		return Failure(err)
	}

	msg := "note recorded"
	if archived {
		msg = "note recorded; previous notes rotated to archive"
	}
	return Result{Success: true, Message: msg, Data: map[string]any{"archived": archived}}
}
