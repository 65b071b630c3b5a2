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
		Name:    "create states",
		SQL: `
			CREATE TABLE states (
				bucket      TEXT NOT NULL,
				id          TEXT NOT NULL,
				data        TEXT NOT NULL,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now')),
				PRIMARY KEY (bucket, id)
			);

			CREATE INDEX idx_states_bucket ON states (bucket);
		`,
	},
}
