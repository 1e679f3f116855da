// Package embeddings defines the text embedding capability used to index and
// query subtitle chunks, plus the explicit retry policy around it.
package embeddings

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/health"
)

// Embedder turns text into a dense vector.
//
//	type Embedder interface {
//	    Embed(ctx context.Context, text string) ([]float32, error)
//	}
//
// Providers must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewHealthChecker returns a checker that pings e when it implements
// health.HealthPinger and embeds a short probe text otherwise.
func NewHealthChecker(e Embedder, log zerolog.Logger, probeTimeout time.Duration) *health.Probe {
	ping := func(ctx context.Context) error {
		if p, ok := e.(health.HealthPinger); ok {
			return p.HealthPing(ctx)
		}
		_, err := e.Embed(ctx, "healthcheck")
		return err
	}
	return health.NewProbe("embedder", ping, log, probeTimeout)
}
