package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Han1236/syuka-insight/internal/model"
	"github.com/Han1236/syuka-insight/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_turns (
    id          BIGSERIAL PRIMARY KEY,
    session_key TEXT        NOT NULL,
    human       TEXT        NOT NULL,
    assistant   TEXT        NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_session_turns_key ON session_turns (session_key, id);
CREATE TABLE IF NOT EXISTS knowledge_bases (
    video_id        TEXT PRIMARY KEY,
    title           TEXT        NOT NULL,
    collection_name TEXT        NOT NULL,
    storage_path    TEXT        NOT NULL,
    chunk_count     INTEGER     NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL
);`

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap connects to dsn and creates the tables when missing.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil // No DSN configured, skip bootstrap
	}

	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Sessions() store.Sessions             { return &sessions{db: s.db} }
func (s *pgStore) KnowledgeBases() store.KnowledgeBases { return &registry{db: s.db} }
func (s *pgStore) Close() error                         { return s.db.Close() }

// HealthPing implements health.HealthPinger for Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Sessions ---
type sessions struct{ db *sql.DB }

func (s *sessions) Turns(ctx context.Context, key string) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT human, assistant, created_at FROM session_turns
        WHERE session_key = $1 ORDER BY id`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Turn{}
	for rows.Next() {
		var (
			human, assistant string
			ts               time.Time
		)
		if err := rows.Scan(&human, &assistant, &ts); err != nil {
			return nil, err
		}
		out = append(out, model.Pair(human, assistant, ts.UTC())...)
	}
	return out, rows.Err()
}

// AppendTurn stores the exchange as one row so a pair is never split.
func (s *sessions) AppendTurn(ctx context.Context, key, human, assistant string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO session_turns (session_key, human, assistant)
        VALUES ($1, $2, $3)`, key, human, assistant)
	return err
}

func (s *sessions) Reset(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_turns WHERE session_key = $1`, key)
	return err
}

func (s *sessions) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM session_turns WHERE session_key = $1)`, key).Scan(&ok)
	return ok, err
}

// --- Knowledge-base registry ---
type registry struct{ db *sql.DB }

func (r *registry) Put(ctx context.Context, kb *model.KnowledgeBase) error {
	created := kb.CreationTime
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO knowledge_bases (video_id, title, collection_name, storage_path, chunk_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (video_id) DO NOTHING`,
		kb.VideoID, kb.Title, kb.CollectionName, kb.StoragePath, kb.ChunkCount, created.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrKBExists(kb.VideoID)
	}
	return nil
}

func (r *registry) Get(ctx context.Context, videoID string) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	err := r.db.QueryRowContext(ctx, `
        SELECT video_id, title, collection_name, storage_path, chunk_count, created_at
        FROM knowledge_bases WHERE video_id = $1`, videoID).
		Scan(&kb.VideoID, &kb.Title, &kb.CollectionName, &kb.StoragePath, &kb.ChunkCount, &kb.CreationTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrKBNotFound(videoID)
	}
	if err != nil {
		return nil, err
	}
	kb.CreationTime = kb.CreationTime.UTC()
	return &kb, nil
}

func (r *registry) List(ctx context.Context) ([]*model.KnowledgeBase, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT video_id, title, collection_name, storage_path, chunk_count, created_at
        FROM knowledge_bases ORDER BY created_at, video_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.KnowledgeBase{}
	for rows.Next() {
		var kb model.KnowledgeBase
		if err := rows.Scan(&kb.VideoID, &kb.Title, &kb.CollectionName, &kb.StoragePath, &kb.ChunkCount, &kb.CreationTime); err != nil {
			return nil, err
		}
		kb.CreationTime = kb.CreationTime.UTC()
		out = append(out, &kb)
	}
	return out, rows.Err()
}
