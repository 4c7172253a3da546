package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations",
		SQL: `
			CREATE TABLE conversations (
				id             TEXT PRIMARY KEY,
				title          TEXT NOT NULL DEFAULT '',
				model_id       TEXT NOT NULL DEFAULT '',
				personality_id TEXT NOT NULL DEFAULT '',
				turns          TEXT NOT NULL DEFAULT '[]',
				updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_conversations_updated ON conversations (updated_at DESC);
		`,
	},
	{
		Version: 2,
		Name:    "create daily usage rollup",
		SQL: `
			CREATE TABLE usage_daily (
				day           TEXT PRIMARY KEY,
				input_tokens  INTEGER NOT NULL DEFAULT 0,
				output_tokens INTEGER NOT NULL DEFAULT 0
			);
		`,
	},
}
