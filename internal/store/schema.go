package store

// schemaVersionV1 is the current schema version.
const schemaVersionV1 = 1

// schemaV1 is the full DDL for a fresh install.
// Process owns nodes, connections, viewers, and candidate processes;
// a candidate process owns its node executions.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS processes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	org_id         INTEGER NOT NULL DEFAULT 0,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'draft',
	version        INTEGER NOT NULL DEFAULT 1,
	settings       TEXT,
	created_by     INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL,
	activated_at   TEXT,
	archived_at    TEXT,
	archive_reason TEXT
);

CREATE TABLE IF NOT EXISTS process_viewers (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	process_id INTEGER NOT NULL REFERENCES processes(id),
	user_id    INTEGER NOT NULL,
	UNIQUE(process_id, user_id)
);

CREATE TABLE IF NOT EXISTS nodes (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	process_id       INTEGER NOT NULL REFERENCES processes(id),
	type             TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	sequence         INTEGER NOT NULL DEFAULT 0,
	required         INTEGER NOT NULL DEFAULT 0,
	config           TEXT,
	added_in_version INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS connections (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	process_id       INTEGER NOT NULL REFERENCES processes(id),
	source_id        INTEGER NOT NULL REFERENCES nodes(id),
	target_id        INTEGER NOT NULL REFERENCES nodes(id),
	kind             TEXT NOT NULL,
	threshold        REAL NOT NULL DEFAULT 0,
	is_default       INTEGER NOT NULL DEFAULT 0,
	label            TEXT NOT NULL DEFAULT '',
	added_in_version INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS candidate_processes (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id    INTEGER NOT NULL,
	process_id      INTEGER NOT NULL REFERENCES processes(id),
	process_version INTEGER NOT NULL,
	recruiter_id    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'not_started',
	current_node_id INTEGER,
	overall_score   REAL,
	final_result    TEXT,
	status_reason   TEXT NOT NULL DEFAULT '',
	assigned_at     TEXT NOT NULL,
	started_at      TEXT,
	completed_at    TEXT,
	failed_at       TEXT,
	withdrawn_at    TEXT
);

CREATE TABLE IF NOT EXISTS node_executions (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_process_id INTEGER NOT NULL REFERENCES candidate_processes(id),
	node_id              INTEGER NOT NULL REFERENCES nodes(id),
	status               TEXT NOT NULL DEFAULT 'pending',
	result               TEXT NOT NULL DEFAULT '',
	score                REAL,
	feedback             TEXT NOT NULL DEFAULT '',
	external_ref         TEXT NOT NULL DEFAULT '',
	execution_data       TEXT NOT NULL DEFAULT '',
	ready_for_review     INTEGER NOT NULL DEFAULT 0,
	started_at           TEXT,
	submitted_at         TEXT,
	completed_at         TEXT
);

-- At most one non-terminal run per (candidate, process) pair. The
-- partial index makes concurrent assigns serialize on the constraint
-- instead of racing to create two live runs.
CREATE UNIQUE INDEX IF NOT EXISTS idx_live_pair
	ON candidate_processes(candidate_id, process_id)
	WHERE status NOT IN ('completed', 'failed', 'withdrawn');

CREATE INDEX IF NOT EXISTS idx_nodes_process ON nodes(process_id);
CREATE INDEX IF NOT EXISTS idx_connections_process ON connections(process_id);
CREATE INDEX IF NOT EXISTS idx_connections_source ON connections(source_id);
CREATE INDEX IF NOT EXISTS idx_cp_process ON candidate_processes(process_id);
CREATE INDEX IF NOT EXISTS idx_cp_recruiter ON candidate_processes(recruiter_id);
CREATE INDEX IF NOT EXISTS idx_exec_run ON node_executions(candidate_process_id);
CREATE INDEX IF NOT EXISTS idx_exec_node ON node_executions(node_id);
`
