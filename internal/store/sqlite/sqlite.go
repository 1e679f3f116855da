// Package sqlite is the durable single-node Store used by the local build target.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/Han1236/syuka-insight/internal/model"
	"github.com/Han1236/syuka-insight/internal/store"
)

// New opens path, applies the schema and returns the store.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an already prepared database.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Sessions() store.Sessions             { return &sessions{db: s.db} }
func (s *sqliteStore) KnowledgeBases() store.KnowledgeBases { return &registry{db: s.db} }
func (s *sqliteStore) Close() error                         { return s.db.Close() }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- Sessions ---
type sessions struct{ db *sql.DB }

func (s *sessions) Turns(ctx context.Context, key string) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT human, assistant, created_at FROM session_turns
        WHERE session_key = ? ORDER BY id`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Turn{}
	for rows.Next() {
		var (
			human, assistant string
			ts               int64
		)
		if err := rows.Scan(&human, &assistant, &ts); err != nil {
			return nil, err
		}
		out = append(out, model.Pair(human, assistant, time.Unix(0, ts).UTC())...)
	}
	return out, rows.Err()
}

// AppendTurn stores the exchange as one row so a pair is never split.
func (s *sessions) AppendTurn(ctx context.Context, key, human, assistant string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO session_turns (session_key, human, assistant, created_at)
        VALUES (?, ?, ?, ?)`, key, human, assistant, time.Now().UnixNano())
	return err
}

func (s *sessions) Reset(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_turns WHERE session_key = ?`, key)
	return err
}

func (s *sessions) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM session_turns WHERE session_key = ?)`, key).Scan(&ok)
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
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(video_id) DO NOTHING`,
		kb.VideoID, kb.Title, kb.CollectionName, kb.StoragePath, kb.ChunkCount, created.UnixNano())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrKBExists(kb.VideoID)
	}
	return nil
}

func (r *registry) Get(ctx context.Context, videoID string) (*model.KnowledgeBase, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT video_id, title, collection_name, storage_path, chunk_count, created_at
        FROM knowledge_bases WHERE video_id = ?`, videoID)
	kb, err := scanKB(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrKBNotFound(videoID)
	}
	return kb, err
}

func (r *registry) List(ctx context.Context) ([]*model.KnowledgeBase, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT video_id, title, collection_name, storage_path, chunk_count, created_at
        FROM knowledge_bases ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.KnowledgeBase{}
	for rows.Next() {
		kb, err := scanKB(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, kb)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanKB(sc scanner) (*model.KnowledgeBase, error) {
	var (
		kb model.KnowledgeBase
		ts int64
	)
	if err := sc.Scan(&kb.VideoID, &kb.Title, &kb.CollectionName, &kb.StoragePath, &kb.ChunkCount, &ts); err != nil {
		return nil, err
	}
	kb.CreationTime = time.Unix(0, ts).UTC()
	return &kb, nil
}
