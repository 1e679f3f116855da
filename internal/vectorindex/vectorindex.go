// Package vectorindex abstracts the nearest-neighbour store behind the
// knowledge bases. Each knowledge base lives in its own named collection.
package vectorindex

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/health"
)

// Record is one chunk to be written: its position, text and vector.
type Record struct {
	Index  int
	Text   string
	Vector []float32
}

// Hit is a query result. Higher Score means closer.
type Hit struct {
	ID    string
	Index int
	Text  string
	Score float32
}

// Index is implemented by every vector backend.
//
// Upsert writes all records of a collection in one call and creates the
// collection if needed. Query returns at most k hits ordered by descending
// score and fewer when the collection is smaller. Drop removes a collection
// and is a no-op when it is absent.
type Index interface {
	Exists(ctx context.Context, collection string) (bool, error)
	Upsert(ctx context.Context, collection string, records []Record) error
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error)
	Drop(ctx context.Context, collection string) error
}

// Locator is implemented by backends that can name where a collection is
// stored, e.g. a directory on disk.
type Locator interface {
	Location(collection string) string
}

// NewHealthChecker wraps idx in a probe. Backends without HealthPing are
// reported healthy when an Exists call succeeds.
func NewHealthChecker(idx Index, log zerolog.Logger, probeTimeout time.Duration) *health.Probe {
	ping := func(ctx context.Context) error {
		if p, ok := idx.(health.HealthPinger); ok {
			return p.HealthPing(ctx)
		}
		_, err := idx.Exists(ctx, "healthcheck")
		return err
	}
	return health.NewProbe("vectorindex", ping, log, probeTimeout)
}
