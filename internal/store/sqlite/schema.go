package sqlite

// schemaSQL is the complete schema for a fresh embedded datastore. Facets
// are stored in a side table keyed by (dataset_id, facet_name) rather than
// as per-source-type columns, so new source types never require a schema
// change.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS datasets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source_type TEXT NOT NULL,
	instance_id TEXT NOT NULL,
	version     TEXT NOT NULL,
	active      INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	UNIQUE(source_type, instance_id, version)
);
CREATE INDEX IF NOT EXISTS idx_datasets_active ON datasets (source_type, instance_id, active);

CREATE TABLE IF NOT EXISTS dataset_facets (
	dataset_id  INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	facet_name  TEXT NOT NULL,
	facet_value TEXT NOT NULL,
	PRIMARY KEY (dataset_id, facet_name)
);
CREATE INDEX IF NOT EXISTS idx_dataset_facets_nv ON dataset_facets (facet_name, facet_value);

CREATE TABLE IF NOT EXISTS files (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_id  INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	path        TEXT NOT NULL UNIQUE,
	size        INTEGER NOT NULL DEFAULT 0,
	checksum    TEXT NOT NULL DEFAULT '',
	variable_id TEXT,
	start_time  DATETIME,
	end_time    DATETIME
);
CREATE INDEX IF NOT EXISTS idx_files_dataset ON files (dataset_id);

CREATE TABLE IF NOT EXISTS execution_groups (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	provider_slug    TEXT NOT NULL,
	diagnostic_slug  TEXT NOT NULL,
	group_key        TEXT NOT NULL, -- canonical JSON array of {facet,value}
	dirty            INTEGER NOT NULL DEFAULT 1,
	stale            INTEGER NOT NULL DEFAULT 0,
	latest_exec_id   INTEGER,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	UNIQUE(provider_slug, diagnostic_slug, group_key)
);

CREATE TABLE IF NOT EXISTS executions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id      INTEGER NOT NULL REFERENCES execution_groups(id) ON DELETE CASCADE,
	dataset_hash  TEXT NOT NULL,
	status        TEXT NOT NULL,
	output_dir    TEXT NOT NULL DEFAULT '',
	log_ref       TEXT,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	reason        TEXT,
	started_at    DATETIME,
	finished_at   DATETIME,
	created_at    DATETIME NOT NULL,
	UNIQUE(group_id, dataset_hash)
);
-- At most one running execution per group.
CREATE UNIQUE INDEX IF NOT EXISTS idx_executions_one_running
	ON executions (group_id) WHERE status = 'running';

CREATE TABLE IF NOT EXISTS execution_inputs (
	execution_id INTEGER NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	dataset_id   INTEGER NOT NULL REFERENCES datasets(id),
	version      TEXT NOT NULL,
	PRIMARY KEY (execution_id, dataset_id)
);

CREATE TABLE IF NOT EXISTS execution_outputs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	rel_path     TEXT NOT NULL,
	type         TEXT NOT NULL,
	mime_type    TEXT NOT NULL DEFAULT '',
	description  TEXT,
	UNIQUE(execution_id, rel_path)
);

CREATE TABLE IF NOT EXISTS metric_values (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	facets       TEXT NOT NULL, -- canonical JSON object
	value        REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_values_exec ON metric_values (execution_id);

CREATE TABLE IF NOT EXISTS series_metric_values (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	facets       TEXT NOT NULL,
	idx_values   TEXT NOT NULL, -- JSON array
	values       TEXT NOT NULL  -- JSON array
);
CREATE INDEX IF NOT EXISTS idx_series_metric_values_exec ON series_metric_values (execution_id);

CREATE TABLE IF NOT EXISTS events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	kind          TEXT NOT NULL,
	provider_slug TEXT,
	group_id      INTEGER,
	execution_id  INTEGER,
	message       TEXT,
	details       TEXT, -- JSON
	timestamp     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_group ON events (group_id, timestamp);

CREATE TABLE IF NOT EXISTS worker_leases (
	execution_id INTEGER PRIMARY KEY REFERENCES executions(id) ON DELETE CASCADE,
	worker_id    TEXT NOT NULL,
	variant      TEXT NOT NULL,
	heartbeat_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS locks (
	key        TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at DATETIME NOT NULL
);
`
