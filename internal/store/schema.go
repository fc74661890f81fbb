package store

// schema is the DDL applied to a fresh data directory's database on daemon
// startup. It is written in SQLite's dialect (INTEGER PRIMARY KEY
// AUTOINCREMENT) and Open applies it only for the sqlite driver; a MySQL
// backend does not receive this DDL.
const schema = `
CREATE TABLE IF NOT EXISTS pool_state (
	id                         TEXT PRIMARY KEY,
	last_start                 INTEGER NOT NULL DEFAULT 0,
	cleaning_unknown_resources INTEGER
);

CREATE TABLE IF NOT EXISTS resource (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	pool               TEXT NOT NULL,
	name               TEXT NOT NULL,
	state              TEXT NOT NULL,
	data               BLOB,
	check_last_time    INTEGER NOT NULL DEFAULT 0,
	check_failed_count INTEGER NOT NULL DEFAULT 0,
	sandbox            TEXT,
	sandboxed_since    INTEGER,
	releases_counter   INTEGER NOT NULL DEFAULT 0,
	released_at        INTEGER,
	ticket             INTEGER
);

CREATE INDEX IF NOT EXISTS idx_resource_pool_state ON resource(pool, state);

CREATE TABLE IF NOT EXISTS resource_tag (
	resource_id INTEGER NOT NULL,
	tag_name    TEXT NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (resource_id, tag_name)
);

CREATE TABLE IF NOT EXISTS id_within_pool (
	pool_name   TEXT NOT NULL,
	id          INTEGER NOT NULL,
	resource_id INTEGER NOT NULL,
	PRIMARY KEY (pool_name, id)
);

CREATE TABLE IF NOT EXISTS ticket (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	state       TEXT NOT NULL,
	tag_set     TEXT NOT NULL DEFAULT '',
	sandbox     TEXT,
	tid         TEXT,
	resource_id INTEGER
);

CREATE INDEX IF NOT EXISTS idx_ticket_state ON ticket(state);
`
