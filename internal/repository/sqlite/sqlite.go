package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		source_image TEXT NOT NULL,
		rendered_image TEXT NOT NULL DEFAULT '',
		detections TEXT NOT NULL DEFAULT '[]',
		is_annotated BOOLEAN NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS labels (
		id TEXT PRIMARY KEY,
		prediction_id TEXT NOT NULL,
		name TEXT NOT NULL,
		percentage REAL NOT NULL DEFAULT 0,
		include BOOLEAN NOT NULL DEFAULT 1,
		color_hex TEXT NOT NULL DEFAULT '#FFFFFF',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (prediction_id, name),
		FOREIGN KEY (prediction_id) REFERENCES predictions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS deleted_labels (
		id TEXT PRIMARY KEY,
		label_id TEXT NOT NULL UNIQUE,
		detections TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (label_id) REFERENCES labels(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_labels_prediction_id ON labels(prediction_id);
	CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// scope binds a repository either to the shared connection or to an open
// transaction. Inside a transaction the store already holds the write lock.
type scope struct {
	db *DB
	tx *sql.Tx
}

func (s scope) q() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db.conn
}

func (s scope) write() func() {
	if s.tx != nil {
		return func() {}
	}
	s.db.Lock()
	return s.db.Unlock
}

func (s scope) read() func() {
	if s.tx != nil {
		return func() {}
	}
	s.db.RLock()
	return s.db.RUnlock
}
