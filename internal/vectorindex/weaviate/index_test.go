package weaviate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Han1236/syuka-insight/internal/vectorindex"
)

// mock weaviate server responding with provided body
func newMockServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func newTestIndex(t *testing.T, body string) *Index {
	t.Helper()
	srv := newMockServer(body)
	t.Cleanup(srv.Close)
	x, err := New(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return x
}

func TestQuery_ParsesHits(t *testing.T) {
	x := newTestIndex(t, `{"data":{"Get":{"SubtitleChunk":[
		{"chunkIndex":3,"text":"금리","_additional":{"id":"a","distance":0.1}},
		{"chunkIndex":7,"text":"환율","_additional":{"id":"b","distance":0.4}}
	]}}}`)

	hits, err := x.Query(context.Background(), "chroma_db_abc123", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 3, hits[0].Index)
	assert.Equal(t, "금리", hits[0].Text)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-6)
	assert.Equal(t, "b", hits[1].ID)
}

func TestQuery_NullClassIsEmpty(t *testing.T) {
	x := newTestIndex(t, `{"data":{"Get":{"SubtitleChunk":null}}}`)
	hits, err := x.Query(context.Background(), "c", []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	ok, err := x.Exists(context.Background(), "c")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuery_GraphQLErrors(t *testing.T) {
	x := newTestIndex(t, `{"data":{"Get":{"SubtitleChunk":null}},"errors":[{"message":"no such class"}]}`)
	_, err := x.Query(context.Background(), "c", []float32{1}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such class")
}

func TestUpsert_BatchesWithStableIDs(t *testing.T) {
	var (
		paths []string
		ids   []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		var body struct {
			Objects []struct {
				ID    string `json:"id"`
				Class string `json:"class"`
			} `json:"objects"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, o := range body.Objects {
			assert.Equal(t, ClassName, o.Class)
			ids = append(ids, o.ID)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	x, err := New(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)

	records := make([]vectorindex.Record, batchSize+1)
	for i := range records {
		records[i] = vectorindex.Record{Index: i, Text: "t", Vector: []float32{1}}
	}
	require.NoError(t, x.Upsert(context.Background(), "chroma_db_abc123", records))
	require.NoError(t, x.Upsert(context.Background(), "chroma_db_abc123", records[:1]))

	assert.Equal(t, []string{"POST /v1/batch/objects", "POST /v1/batch/objects", "POST /v1/batch/objects"}, paths)
	require.Len(t, ids, batchSize+2)
	assert.Equal(t, vectorindex.ChunkID("chroma_db_abc123", 0), ids[0])
	// Rewriting chunk 0 reuses its id, so the object is replaced.
	assert.Equal(t, ids[0], ids[len(ids)-1])
}

func TestUpsert_ObjectErrors(t *testing.T) {
	x := newTestIndex(t, `[{"id":"a","result":{"errors":{"error":[{"message":"vector dimension mismatch"}]}}}]`)
	err := x.Upsert(context.Background(), "c", []vectorindex.Record{{Index: 0, Text: "t", Vector: []float32{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector dimension mismatch")
}

// TestIndex_Live runs against a real Weaviate when WEAVIATE_TEST_HOST is set.
func TestIndex_Live(t *testing.T) {
	host := os.Getenv("WEAVIATE_TEST_HOST")
	if host == "" {
		t.Skip("WEAVIATE_TEST_HOST not set")
	}
	ctx := context.Background()
	x, err := New(host)
	require.NoError(t, err)
	require.NoError(t, x.Bootstrap(ctx))

	coll := "chroma_db_livetest"
	_ = x.Drop(ctx, coll)
	t.Cleanup(func() { _ = x.Drop(ctx, coll) })

	require.NoError(t, x.Upsert(ctx, coll, []vectorindex.Record{
		{Index: 0, Text: "a", Vector: []float32{1, 0}},
		{Index: 1, Text: "b", Vector: []float32{0, 1}},
	}))
	ok, err := x.Exists(ctx, coll)
	require.NoError(t, err)
	assert.True(t, ok)

	hits, err := x.Query(ctx, coll, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].Text)
}
