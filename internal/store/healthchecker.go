package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/health"
)

// NewStoreHealthChecker monitors the store. It prefers HealthPing and falls
// back to a registry read.
func NewStoreHealthChecker(s Store, log zerolog.Logger, probeTimeout time.Duration) *health.Probe {
	ping := func(ctx context.Context) error {
		if p, ok := s.(health.HealthPinger); ok {
			return p.HealthPing(ctx)
		}
		_, err := s.KnowledgeBases().List(ctx)
		return err
	}
	return health.NewProbe("store", ping, log, probeTimeout)
}
