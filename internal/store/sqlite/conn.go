package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database at the given path and enables WAL journal mode.
// busy_timeout lets concurrent writers wait for the lock instead of failing.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// single writer; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_turns (
            id          INTEGER PRIMARY KEY AUTOINCREMENT,
            session_key TEXT NOT NULL,
            human       TEXT NOT NULL,
            assistant   TEXT NOT NULL,
            created_at  INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_session_turns_key ON session_turns(session_key, id);`,
		`CREATE TABLE IF NOT EXISTS knowledge_bases (
            video_id        TEXT PRIMARY KEY,
            title           TEXT NOT NULL,
            collection_name TEXT NOT NULL,
            storage_path    TEXT NOT NULL,
            chunk_count     INTEGER NOT NULL,
            created_at      INTEGER NOT NULL
        );`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}
