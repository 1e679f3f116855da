// Package pgvector stores knowledge-base chunks in Postgres with the
// pgvector extension, one row per chunk.
package pgvector

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Han1236/syuka-insight/internal/vectorindex"
)

const ddl = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS subtitle_chunks (
    collection  TEXT    NOT NULL,
    chunk_index INTEGER NOT NULL,
    chunk_id    TEXT    NOT NULL,
    content     TEXT    NOT NULL,
    embedding   vector  NOT NULL,
    PRIMARY KEY (collection, chunk_index)
);`

// Index implements vectorindex.Index over a pgx pool.
type Index struct {
	pool *pgxpool.Pool
}

var _ vectorindex.Index = (*Index)(nil)

// New connects to dsn and verifies the connection.
func New(ctx context.Context, dsn string) (*Index, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Index{pool: pool}, nil
}

// Bootstrap creates the extension and table when missing.
func (x *Index) Bootstrap(ctx context.Context) error {
	if _, err := x.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgvector bootstrap: %w", err)
	}
	return nil
}

func (x *Index) Close() { x.pool.Close() }

func (x *Index) Exists(ctx context.Context, collection string) (bool, error) {
	var ok bool
	err := x.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subtitle_chunks WHERE collection = $1)`, collection,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return ok, nil
}

// Upsert writes every record in one transaction.
func (x *Index) Upsert(ctx context.Context, collection string, records []vectorindex.Record) error {
	return pgx.BeginFunc(ctx, x.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(
				`INSERT INTO subtitle_chunks (collection, chunk_index, chunk_id, content, embedding)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (collection, chunk_index)
				 DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
				collection, r.Index, vectorindex.ChunkID(collection, r.Index), r.Text, pgvector.NewVector(r.Vector),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		return nil
	})
}

func (x *Index) Query(ctx context.Context, collection string, vector []float32, k int) ([]vectorindex.Hit, error) {
	rows, err := x.pool.Query(ctx,
		`SELECT chunk_id, chunk_index, content, 1 - (embedding <=> $2) AS score
		 FROM subtitle_chunks
		 WHERE collection = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		collection, pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var hits []vectorindex.Hit
	for rows.Next() {
		var (
			h     vectorindex.Hit
			score float64
		)
		if err := rows.Scan(&h.ID, &h.Index, &h.Text, &score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		h.Score = float32(score)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (x *Index) Drop(ctx context.Context, collection string) error {
	_, err := x.pool.Exec(ctx, `DELETE FROM subtitle_chunks WHERE collection = $1`, collection)
	return err
}

func (x *Index) HealthPing(ctx context.Context) error { return x.pool.Ping(ctx) }
