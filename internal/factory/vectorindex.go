package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/config"
	"github.com/Han1236/syuka-insight/internal/vectorindex"
	"github.com/Han1236/syuka-insight/internal/vectorindex/chromem"
	"github.com/Han1236/syuka-insight/internal/vectorindex/pgvector"
	"github.com/Han1236/syuka-insight/internal/vectorindex/weaviate"
)

// VectorIndex is an index plus the function that releases it.
type VectorIndex struct {
	vectorindex.Index
	Close func()
}

// NewVectorIndex creates the index selected by cfg.VectorStore. Remote
// backends bootstrap their schema asynchronously so startup stays fast.
func NewVectorIndex(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*VectorIndex, error) {
	bootstrap := func(name string, fn func(context.Context) error) {
		go func() {
			bootstrapCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.BootstrapTimeoutSeconds)*time.Second)
			defer cancel()
			if err := fn(bootstrapCtx); err != nil {
				log.Warn().Err(err).Str("vector_store", name).Msg("vector index bootstrap failed")
			} else {
				log.Debug().Str("vector_store", name).Msg("vector index bootstrap completed")
			}
		}()
	}

	switch cfg.VectorStore {
	case "chromem":
		idx, err := chromem.New(cfg.KBDir)
		if err != nil {
			return nil, err
		}
		return &VectorIndex{Index: idx, Close: func() {}}, nil

	case "weaviate":
		if cfg.WeaviateURL == "" {
			return nil, fmt.Errorf("%s_WEAVIATE_URL is required when VECTOR_STORE=weaviate", config.EnvPrefix)
		}
		idx, err := weaviate.New(cfg.WeaviateURL)
		if err != nil {
			return nil, err
		}
		bootstrap("weaviate", idx.Bootstrap)
		return &VectorIndex{Index: idx, Close: func() {}}, nil

	case "pgvector":
		if cfg.PGVectorDSN == "" {
			return nil, fmt.Errorf("%s_PGVECTOR_DSN is required when VECTOR_STORE=pgvector", config.EnvPrefix)
		}
		idx, err := pgvector.New(ctx, cfg.PGVectorDSN)
		if err != nil {
			return nil, err
		}
		bootstrap("pgvector", idx.Bootstrap)
		return &VectorIndex{Index: idx, Close: idx.Close}, nil
	}
	return nil, fmt.Errorf("unknown VECTOR_STORE: %s", cfg.VectorStore)
}
