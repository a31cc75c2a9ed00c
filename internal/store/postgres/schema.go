// Package postgres implements the execution store on Postgres, for
// multi-host deployments where several orchestrators share one datastore.
package postgres

// schemaDDL mirrors the embedded sqlite schema table-for-table so that
// both backends satisfy the same conformance suite in
// internal/store/storetest.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS datasets (
	id          BIGSERIAL PRIMARY KEY,
	source_type TEXT NOT NULL,
	instance_id TEXT NOT NULL,
	version     TEXT NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL,
	UNIQUE(source_type, instance_id, version)
);
CREATE INDEX IF NOT EXISTS idx_datasets_active ON datasets (source_type, instance_id, active);

CREATE TABLE IF NOT EXISTS dataset_facets (
	dataset_id  BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	facet_name  TEXT NOT NULL,
	facet_value TEXT NOT NULL,
	PRIMARY KEY (dataset_id, facet_name)
);
CREATE INDEX IF NOT EXISTS idx_dataset_facets_nv ON dataset_facets (facet_name, facet_value);

CREATE TABLE IF NOT EXISTS files (
	id          BIGSERIAL PRIMARY KEY,
	dataset_id  BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	path        TEXT NOT NULL UNIQUE,
	size        BIGINT NOT NULL DEFAULT 0,
	checksum    TEXT NOT NULL DEFAULT '',
	variable_id TEXT,
	start_time  TIMESTAMPTZ,
	end_time    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_files_dataset ON files (dataset_id);

CREATE TABLE IF NOT EXISTS execution_groups (
	id               BIGSERIAL PRIMARY KEY,
	provider_slug    TEXT NOT NULL,
	diagnostic_slug  TEXT NOT NULL,
	group_key        TEXT NOT NULL,
	dirty            BOOLEAN NOT NULL DEFAULT TRUE,
	stale            BOOLEAN NOT NULL DEFAULT FALSE,
	latest_exec_id   BIGINT,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	UNIQUE(provider_slug, diagnostic_slug, group_key)
);

CREATE TABLE IF NOT EXISTS executions (
	id            BIGSERIAL PRIMARY KEY,
	group_id      BIGINT NOT NULL REFERENCES execution_groups(id) ON DELETE CASCADE,
	dataset_hash  TEXT NOT NULL,
	status        TEXT NOT NULL,
	output_dir    TEXT NOT NULL DEFAULT '',
	log_ref       TEXT,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	reason        TEXT,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL,
	UNIQUE(group_id, dataset_hash)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_executions_one_running
	ON executions (group_id) WHERE status = 'running';

CREATE TABLE IF NOT EXISTS execution_inputs (
	execution_id BIGINT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	dataset_id   BIGINT NOT NULL REFERENCES datasets(id),
	version      TEXT NOT NULL,
	PRIMARY KEY (execution_id, dataset_id)
);

CREATE TABLE IF NOT EXISTS execution_outputs (
	id           BIGSERIAL PRIMARY KEY,
	execution_id BIGINT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	rel_path     TEXT NOT NULL,
	type         TEXT NOT NULL,
	mime_type    TEXT NOT NULL DEFAULT '',
	description  TEXT,
	UNIQUE(execution_id, rel_path)
);

CREATE TABLE IF NOT EXISTS metric_values (
	id           BIGSERIAL PRIMARY KEY,
	execution_id BIGINT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	facets       JSONB NOT NULL,
	value        DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_values_exec ON metric_values (execution_id);

CREATE TABLE IF NOT EXISTS series_metric_values (
	id           BIGSERIAL PRIMARY KEY,
	execution_id BIGINT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
	facets       JSONB NOT NULL,
	idx_values   JSONB NOT NULL,
	values       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_series_metric_values_exec ON series_metric_values (execution_id);

CREATE TABLE IF NOT EXISTS events (
	id            BIGSERIAL PRIMARY KEY,
	kind          TEXT NOT NULL,
	provider_slug TEXT,
	group_id      BIGINT,
	execution_id  BIGINT,
	message       TEXT,
	details       JSONB,
	timestamp     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_group ON events (group_id, timestamp);

CREATE TABLE IF NOT EXISTS worker_leases (
	execution_id BIGINT PRIMARY KEY REFERENCES executions(id) ON DELETE CASCADE,
	worker_id    TEXT NOT NULL,
	variant      TEXT NOT NULL,
	heartbeat_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS locks (
	key        TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`
