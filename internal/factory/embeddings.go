package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/config"
	"github.com/Han1236/syuka-insight/internal/embeddings"
	"github.com/Han1236/syuka-insight/internal/embeddings/ollama"
	"github.com/Han1236/syuka-insight/internal/embeddings/openai"
)

// NewEmbedder builds the configured provider behind the bounded-retry
// wrapper and warms it up in the background.
func NewEmbedder(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*embeddings.Bounded, error) {
	var provider embeddings.Embedder
	switch cfg.EmbedProvider {
	case "openai":
		provider = openai.NewProvider(cfg.EmbedBaseURL, cfg.EmbedAPIKey, cfg.EmbedModel)
	case "ollama":
		provider = ollama.NewProvider(cfg.EmbedBaseURL, cfg.EmbedModel)
	default:
		return nil, fmt.Errorf("unknown EMBED_PROVIDER: %s", cfg.EmbedProvider)
	}
	bounded := embeddings.NewBounded(provider, cfg.Timeouts().Embed, cfg.EmbedMaxRetries, log)

	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.BootstrapTimeoutSeconds)*time.Second)
		defer cancel()
		if vec, err := provider.Embed(warmupCtx, "factory-warmup-check"); err != nil || len(vec) == 0 {
			log.Warn().Err(err).Int("vec_len", len(vec)).
				Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup failed")
		} else {
			log.Debug().Str("provider", cfg.EmbedProvider).Int("dims", len(vec)).
				Msg("embedding provider warmup completed")
		}
	}()
	return bounded, nil
}
