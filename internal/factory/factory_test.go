package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Han1236/syuka-insight/internal/config"
)

func TestNewStore_LocalDrivers(t *testing.T) {
	cfg := config.NewForTesting()
	s, err := NewStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfg.StoreDriver = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "nested", "rag.db")
	s, err = NewStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestNewStore_RequiresDSN(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.StoreDriver = "postgres"
	_, err := NewStore(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "POSTGRES_DSN")

	cfg.StoreDriver = "cassandra"
	_, err = NewStore(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewVectorIndex(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.KBDir = t.TempDir()
	idx, err := NewVectorIndex(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	exists, err := idx.Exists(context.Background(), "chroma_db_abc123")
	require.NoError(t, err)
	assert.False(t, exists)
	idx.Close()

	cfg.VectorStore = "pgvector"
	_, err = NewVectorIndex(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "PGVECTOR_DSN")
}

func TestNewGeneratorAndEmbedder(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.BootstrapTimeoutSeconds = 0

	_, err := NewGenerator(cfg)
	require.NoError(t, err)
	cfg.LLMProvider = "bard"
	_, err = NewGenerator(cfg)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // warmup gives up immediately
	_, err = NewEmbedder(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	cfg.EmbedProvider = "word2vec"
	_, err = NewEmbedder(ctx, cfg, zerolog.Nop())
	assert.Error(t, err)
}
