package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jjadal/steward/internal/chat"
)

// ConversationSummary is a list entry for stored conversations.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Conversations persists whole conversations. Turn content is stored as the
// conversation's serialized JSON so the round trip is lossless for every
// field that affects future model calls.
type Conversations struct {
	db *DB
}

// NewConversations creates a conversation store over an opened database.
func NewConversations(db *DB) *Conversations {
	return &Conversations{db: db}
}

// Save upserts a conversation.
func (s *Conversations) Save(c *chat.Conversation) error {
	turns, err := json.Marshal(c.History())
	if err != nil {
		return fmt.Errorf("serializing turns: %w", err)
	}
	_, err = s.db.sql.Exec(
		`INSERT INTO conversations (id, title, model_id, personality_id, turns, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   model_id = excluded.model_id,
		   personality_id = excluded.personality_id,
		   turns = excluded.turns,
		   updated_at = excluded.updated_at`,
		c.ChatID, c.Title, c.ModelID, c.PersonalityID, string(turns),
		c.LastUpdated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving conversation %s: %w", c.ChatID, err)
	}
	return nil
}

// Load returns a stored conversation, or nil if the id is unknown.
func (s *Conversations) Load(chatID string) (*chat.Conversation, error) {
	var c chat.Conversation
	var turns, updatedAt string
	err := s.db.sql.QueryRow(
		`SELECT id, title, model_id, personality_id, turns, updated_at
		 FROM conversations WHERE id = ?`, chatID,
	).Scan(&c.ChatID, &c.Title, &c.ModelID, &c.PersonalityID, &turns, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", chatID, err)
	}

	if err := json.Unmarshal([]byte(turns), &c.Turns); err != nil {
		return nil, fmt.Errorf("parsing turns for %s: %w", chatID, err)
	}
	c.LastUpdated, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &c, nil
}

// Delete removes a stored conversation. Deleting an unknown id is a no-op.
func (s *Conversations) Delete(chatID string) error {
	_, err := s.db.sql.Exec(`DELETE FROM conversations WHERE id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("deleting conversation %s: %w", chatID, err)
	}
	return nil
}

// List returns summaries of all stored conversations, most recent first.
func (s *Conversations) List() ([]ConversationSummary, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, title, updated_at FROM conversations ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var cs ConversationSummary
		var updatedAt string
		if err := rows.Scan(&cs.ID, &cs.Title, &updatedAt); err != nil {
			continue
		}
		cs.LastUpdated, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, cs)
	}
	return out, rows.Err()
}
