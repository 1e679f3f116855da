// Package chromem stores each collection in its own embedded chromem-go
// database on local disk, one directory per collection.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/Han1236/syuka-insight/internal/vectorindex"
)

var errPrecomputed = errors.New("chromem index expects precomputed embeddings")

// Index is safe for concurrent use.
type Index struct {
	dir string

	mu  sync.Mutex
	dbs map[string]*chromem.DB
}

var _ vectorindex.Index = (*Index)(nil)

// New roots the index at dir, creating it if needed.
func New(dir string) (*Index, error) {
	if dir == "" {
		return nil, fmt.Errorf("chromem: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chromem: create %s: %w", dir, err)
	}
	return &Index{dir: dir, dbs: make(map[string]*chromem.DB)}, nil
}

// Location is the directory holding collection.
func (x *Index) Location(collection string) string {
	return filepath.Join(x.dir, collection)
}

func noEmbed(context.Context, string) ([]float32, error) { return nil, errPrecomputed }

// open returns the database for collection. With create unset a missing
// directory yields (nil, nil).
func (x *Index) open(collection string, create bool) (*chromem.DB, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if db, ok := x.dbs[collection]; ok {
		return db, nil
	}
	path := x.Location(collection)
	if !create {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("chromem: open %s: %w", path, err)
	}
	x.dbs[collection] = db
	return db, nil
}

func (x *Index) Exists(_ context.Context, collection string) (bool, error) {
	db, err := x.open(collection, false)
	if err != nil || db == nil {
		return false, err
	}
	c := db.GetCollection(collection, noEmbed)
	return c != nil && c.Count() > 0, nil
}

func (x *Index) Upsert(ctx context.Context, collection string, records []vectorindex.Record) error {
	db, err := x.open(collection, true)
	if err != nil {
		return err
	}
	c, err := db.GetOrCreateCollection(collection, nil, noEmbed)
	if err != nil {
		return fmt.Errorf("chromem: collection %s: %w", collection, err)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        vectorindex.ChunkID(collection, r.Index),
			Content:   r.Text,
			Embedding: r.Vector,
			Metadata:  map[string]string{"index": strconv.Itoa(r.Index)},
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem: add documents: %w", err)
	}
	return nil
}

func (x *Index) Query(ctx context.Context, collection string, vector []float32, k int) ([]vectorindex.Hit, error) {
	db, err := x.open(collection, false)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil
	}
	c := db.GetCollection(collection, noEmbed)
	if c == nil {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection.
	if n := c.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	res, err := c.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}
	hits := make([]vectorindex.Hit, len(res))
	for i, r := range res {
		idx, _ := strconv.Atoi(r.Metadata["index"])
		hits[i] = vectorindex.Hit{ID: r.ID, Index: idx, Text: r.Content, Score: r.Similarity}
	}
	return hits, nil
}

func (x *Index) Drop(_ context.Context, collection string) error {
	x.mu.Lock()
	db, ok := x.dbs[collection]
	delete(x.dbs, collection)
	x.mu.Unlock()

	if ok {
		if err := db.DeleteCollection(collection); err != nil {
			return fmt.Errorf("chromem: delete %s: %w", collection, err)
		}
	}
	if err := os.RemoveAll(x.Location(collection)); err != nil {
		return fmt.Errorf("chromem: remove %s: %w", collection, err)
	}
	return nil
}

// HealthPing verifies the root directory is still writable.
func (x *Index) HealthPing(context.Context) error {
	f, err := os.CreateTemp(x.dir, ".ping-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
