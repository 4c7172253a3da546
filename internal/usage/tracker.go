package usage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jjadal/steward/internal/logging"
)

// Tracker accumulates per-day token usage in the steward database.
// One row per calendar day (local time), updated after every completed call.
type Tracker struct {
	db  *sql.DB
	log *logging.Logger
}

// NewTracker creates a usage tracker over an opened database. The
// usage_daily table is created by the store migrations.
func NewTracker(db *sql.DB, log *logging.Logger) *Tracker {
	return &Tracker{db: db, log: log.Sub("usage")}
}

// Record adds a usage delta to today's rollup.
func (t *Tracker) Record(inputTokens, outputTokens int) {
	day := time.Now().Format("2006-01-02")
	_, err := t.db.Exec(
		`INSERT INTO usage_daily (day, input_tokens, output_tokens) VALUES (?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET
		   input_tokens = input_tokens + excluded.input_tokens,
		   output_tokens = output_tokens + excluded.output_tokens`,
		day, inputTokens, outputTokens,
	)
	if err != nil {
		t.log.Error().Err(err).Msg("failed to record usage")
		return
	}
	t.log.Debug().Int("input", inputTokens).Int("output", outputTokens).Msg("usage recorded")
}

// Day returns the rollup for one calendar day ("2006-01-02").
func (t *Tracker) Day(day string) (inputTokens, outputTokens int, err error) {
	row := t.db.QueryRow(`SELECT input_tokens, output_tokens FROM usage_daily WHERE day = ?`, day)
	if err := row.Scan(&inputTokens, &outputTokens); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading usage for %s: %w", day, err)
	}
	return inputTokens, outputTokens, nil
}

// Today returns the current day's rollup.
func (t *Tracker) Today() (inputTokens, outputTokens int, err error) {
	return t.Day(time.Now().Format("2006-01-02"))
}
