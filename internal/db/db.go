package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SchemaVersion is stored in the meta table of every store written by this package
const SchemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS components (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS states (
	component_id INTEGER NOT NULL REFERENCES components(id) ON DELETE CASCADE,
	idx          INTEGER NOT NULL,
	name         TEXT NOT NULL,
	PRIMARY KEY (component_id, idx)
);
CREATE TABLE IF NOT EXISTS snodes (
	id             INTEGER PRIMARY KEY,
	head_component INTEGER NOT NULL,
	head_state     INTEGER NOT NULL,
	prob           REAL NOT NULL,
	weight         REAL NOT NULL,
	synthetic      INTEGER NOT NULL DEFAULT 0,
	low_confidence INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (head_component, head_state) REFERENCES states(component_id, idx)
);
CREATE TABLE IF NOT EXISTS snode_tails (
	snode_id  INTEGER NOT NULL REFERENCES snodes(id) ON DELETE CASCADE,
	pos       INTEGER NOT NULL,
	component INTEGER NOT NULL,
	state     INTEGER NOT NULL,
	PRIMARY KEY (snode_id, pos),
	FOREIGN KEY (component, state) REFERENCES states(component_id, idx)
);
CREATE TABLE IF NOT EXISTS snode_sources (
	snode_id INTEGER NOT NULL REFERENCES snodes(id) ON DELETE CASCADE,
	pos      INTEGER NOT NULL,
	source   TEXT NOT NULL,
	weight   REAL NOT NULL,
	prob     REAL NOT NULL,
	PRIMARY KEY (snode_id, pos)
);
CREATE TABLE IF NOT EXISTS patients (
	hash       TEXT PRIMARY KEY,
	genes      TEXT NOT NULL,
	drugs      TEXT NOT NULL,
	properties TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ranges (
	property TEXT PRIMARY KEY,
	min      REAL NOT NULL,
	max      REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS range_bins (
	property TEXT NOT NULL REFERENCES ranges(property) ON DELETE CASCADE,
	idx      INTEGER NOT NULL,
	lo       REAL NOT NULL,
	hi       REAL NOT NULL,
	closed   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (property, idx)
);
CREATE INDEX IF NOT EXISTS idx_snodes_head ON snodes(head_component, head_state);
`

// DB wraps a SQLite database connection
type DB struct {
	conn *sql.DB
	Path string
}

// OpenDB opens a SQLite database with WAL mode and foreign keys enabled
// and creates the hypergraph schema when missing
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{conn: conn, Path: path}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Version returns the stored schema version, or "" for an empty store
func (d *DB) Version() (string, error) {
	var v string
	err := d.conn.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}
