package docstore

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

CREATE TABLE IF NOT EXISTS documents (
	path        TEXT PRIMARY KEY,
	collection  TEXT NOT NULL,
	id          TEXT NOT NULL,
	data        TEXT NOT NULL DEFAULT '{}',
	create_time INTEGER NOT NULL,
	update_time INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS clock (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	last INTEGER NOT NULL
);

INSERT OR IGNORE INTO clock (id, last)
	SELECT 1, COALESCE(MAX(update_time), 0) FROM documents;

CREATE INDEX IF NOT EXISTS idx_documents_collection_created
	ON documents(collection, create_time);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
