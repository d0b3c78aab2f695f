package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the sqlite connection with its prepared statements.
type DB struct {
	*sql.DB
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DefaultPoolConfig suits a single-node deployment.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxOpenConns: 25, MaxIdleConns: 5, MaxLifetime: 5 * time.Minute}
}

// NewDB opens (creating if needed) affinity.db under dataDir.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Open(filepath.Join(dataDir, "affinity.db"), DefaultPoolConfig())
}

// Open opens the database file at path, migrates it, and prepares statements.
func Open(path string, pool PoolConfig) (*DB, error) {
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", path)

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)

	db := &DB{DB: sqlDB, prepared: make(map[string]*sql.Stmt)}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := db.initPreparedStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized", "path", path, "max_open_conns", pool.MaxOpenConns)
	return db, nil
}

// Timestamps are stored as unix nanoseconds so ordering is numeric.
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS assessments (
			identity TEXT PRIMARY KEY,
			competencies TEXT NOT NULL DEFAULT '{}',
			outcomes TEXT NOT NULL DEFAULT '{}',
			talents TEXT NOT NULL DEFAULT '{}',
			style TEXT NOT NULL DEFAULT '',
			linkedin TEXT NOT NULL DEFAULT '',
			x_handle TEXT NOT NULL DEFAULT '',
			instagram TEXT NOT NULL DEFAULT '',
			website TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS affinity_results (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			counterpart TEXT NOT NULL,
			context TEXT NOT NULL,
			composite REAL NOT NULL,
			heat INTEGER NOT NULL,
			level TEXT NOT NULL,
			band TEXT NOT NULL,
			payload TEXT NOT NULL,
			computed_at INTEGER NOT NULL,
			UNIQUE(subject, counterpart, context)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_identity_created ON messages(identity, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_results_subject ON affinity_results(subject, context)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

const (
	stmtUpsertAssessment = "upsert_assessment"
	stmtGetAssessment    = "get_assessment"
	stmtInsertMessage    = "insert_message"
	stmtRecentMessages   = "recent_messages"
	stmtUpsertResult     = "upsert_result"
	stmtGetResult        = "get_result"
	stmtResultsBySubject = "results_by_subject"
)

func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		stmtUpsertAssessment: `INSERT INTO assessments (
			identity, competencies, outcomes, talents, style, linkedin, x_handle, instagram, website, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			competencies = excluded.competencies,
			outcomes = excluded.outcomes,
			talents = excluded.talents,
			style = excluded.style,
			linkedin = excluded.linkedin,
			x_handle = excluded.x_handle,
			instagram = excluded.instagram,
			website = excluded.website,
			updated_at = excluded.updated_at`,

		stmtGetAssessment: `SELECT identity, competencies, outcomes, talents, style,
			linkedin, x_handle, instagram, website, updated_at
			FROM assessments WHERE identity = ?`,

		stmtInsertMessage: `INSERT INTO messages (id, identity, body, created_at) VALUES (?, ?, ?, ?)`,

		stmtRecentMessages: `SELECT body FROM messages WHERE identity = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?`,

		// Last write wins; there is no version check.
		stmtUpsertResult: `INSERT INTO affinity_results (
			id, subject, counterpart, context, composite, heat, level, band, payload, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject, counterpart, context) DO UPDATE SET
			composite = excluded.composite,
			heat = excluded.heat,
			level = excluded.level,
			band = excluded.band,
			payload = excluded.payload,
			computed_at = excluded.computed_at`,

		stmtGetResult: `SELECT id, subject, counterpart, context, payload, computed_at
			FROM affinity_results WHERE subject = ? AND counterpart = ? AND context = ?`,

		stmtResultsBySubject: `SELECT id, subject, counterpart, context, payload, computed_at
			FROM affinity_results WHERE subject = ? ORDER BY composite DESC LIMIT ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt
	}
	return nil
}

// Stmt returns a prepared statement by name.
func (db *DB) Stmt(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, ok := db.prepared[name]
	if !ok {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

// PoolStats reports connection pool usage for the health endpoint.
func (db *DB) PoolStats() map[string]any {
	stats := db.Stats()
	return map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}
}

// Close releases prepared statements and the connection pool.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)
	return db.DB.Close()
}
