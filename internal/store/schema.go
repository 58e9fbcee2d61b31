package store

// schemaDDL is executed against every freshly opened database. CREATE TABLE
// IF NOT EXISTS / CREATE INDEX IF NOT EXISTS make this idempotent so Open
// doubles as a migration runner for the (currently single) schema version.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS watched_paths (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	name             TEXT NOT NULL,
	path             TEXT NOT NULL UNIQUE,
	is_active        INTEGER NOT NULL DEFAULT 1,
	is_protected     INTEGER NOT NULL DEFAULT 0,
	dir_hash         TEXT,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS file_records (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	current_path     TEXT NOT NULL UNIQUE,
	content_hash     TEXT,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_file_records_content_hash ON file_records(content_hash);

CREATE TABLE IF NOT EXISTS file_versions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	file_record_id   INTEGER REFERENCES file_records(id) ON DELETE SET NULL,
	original_path    TEXT NOT NULL,
	storage_path     TEXT NOT NULL,
	version_number   INTEGER NOT NULL,
	file_hash        TEXT NOT NULL,
	file_size_bytes  INTEGER NOT NULL,
	is_chunked       INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(file_record_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_file_versions_record ON file_versions(file_record_id);
CREATE INDEX IF NOT EXISTS idx_file_versions_path ON file_versions(original_path);
CREATE INDEX IF NOT EXISTS idx_file_versions_hash ON file_versions(file_hash);

CREATE TABLE IF NOT EXISTS file_events (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type       TEXT NOT NULL,
	src_path         TEXT NOT NULL,
	dest_path        TEXT,
	is_processed     INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_file_events_created ON file_events(created_at);

CREATE TABLE IF NOT EXISTS backup_tasks (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	src_path         TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	attempts         INTEGER NOT NULL DEFAULT 0,
	last_error       TEXT,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_backup_tasks_status_path ON backup_tasks(status, src_path);

CREATE TABLE IF NOT EXISTS snapshot_jobs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	watched_path_id  INTEGER NOT NULL REFERENCES watched_paths(id) ON DELETE CASCADE,
	storage_subdir   TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'running',
	total_files      INTEGER NOT NULL DEFAULT 0,
	processed_files  INTEGER NOT NULL DEFAULT 0,
	skipped_files    INTEGER NOT NULL DEFAULT 0,
	error_count      INTEGER NOT NULL DEFAULT 0,
	last_error       TEXT,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS activity_logs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	activity_type    TEXT NOT NULL,
	path             TEXT,
	details          TEXT,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_activity_logs_created ON activity_logs(created_at);

CREATE TABLE IF NOT EXISTS settings (
	key              TEXT PRIMARY KEY,
	value            TEXT NOT NULL
);
`
