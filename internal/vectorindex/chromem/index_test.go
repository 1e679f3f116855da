package chromem

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Han1236/syuka-insight/internal/vectorindex"
)

func records() []vectorindex.Record {
	return []vectorindex.Record{
		{Index: 0, Text: "금리 인상", Vector: []float32{1, 0, 0}},
		{Index: 1, Text: "환율 하락", Vector: []float32{0, 1, 0}},
		{Index: 2, Text: "주식 시장", Vector: []float32{0, 0, 1}},
	}
}

func TestIndex_Lifecycle(t *testing.T) {
	ctx := context.Background()
	x, err := New(t.TempDir())
	require.NoError(t, err)

	ok, err := x.Exists(ctx, "chroma_db_abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, x.Upsert(ctx, "chroma_db_abc123", records()))
	ok, err = x.Exists(ctx, "chroma_db_abc123")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = os.Stat(x.Location("chroma_db_abc123"))
	require.NoError(t, err)

	hits, err := x.Query(ctx, "chroma_db_abc123", []float32{0.1, 0.9, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "환율 하락", hits[0].Text)
	assert.Equal(t, 1, hits[0].Index)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	require.NoError(t, x.Drop(ctx, "chroma_db_abc123"))
	ok, err = x.Exists(ctx, "chroma_db_abc123")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(x.Location("chroma_db_abc123"))
	assert.True(t, os.IsNotExist(err))
}

func TestIndex_QueryCapsAtCollectionSize(t *testing.T) {
	ctx := context.Background()
	x, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, x.Upsert(ctx, "c", records()))

	hits, err := x.Query(ctx, "c", []float32{1, 1, 1}, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = x.Query(ctx, "missing", []float32{1, 1, 1}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	x, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, x.Upsert(ctx, "c", records()))

	y, err := New(dir)
	require.NoError(t, err)
	ok, err := y.Exists(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, y.HealthPing(ctx))
}

func TestIndex_DropMissingIsNoop(t *testing.T) {
	x, err := New(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, x.Drop(context.Background(), "never"))
}
