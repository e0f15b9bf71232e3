package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id     TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	sender         TEXT NOT NULL DEFAULT '',
	subject        TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT 'unclassified',
	topic          TEXT NOT NULL DEFAULT '',
	send_status    TEXT NOT NULL DEFAULT 'not_attempted',
	cleanup_status TEXT NOT NULL DEFAULT 'pending',
	stage          TEXT NOT NULL,
	attempt        INTEGER NOT NULL DEFAULT 1,
	error          TEXT NOT NULL DEFAULT '',
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_message_id ON outcomes(message_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_category ON outcomes(category);
CREATE INDEX IF NOT EXISTS idx_outcomes_finished_at ON outcomes(finished_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_outcomes_run_id ON outcomes(run_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
