package knowledge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Han1236/syuka-insight/internal/chunker"
	"github.com/Han1236/syuka-insight/internal/model"
	"github.com/Han1236/syuka-insight/internal/store"
	"github.com/Han1236/syuka-insight/internal/store/memory"
	"github.com/Han1236/syuka-insight/internal/vectorindex"
	"github.com/Han1236/syuka-insight/internal/vectorindex/chromem"
)

// keywordEmbedder maps text onto counts of a few topic words.
type keywordEmbedder struct {
	calls atomic.Int32
	fail  func(text string) error
}

var topics = []string{"금리", "환율", "주식"}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.fail != nil {
		if err := e.fail(text); err != nil {
			return nil, err
		}
	}
	v := make([]float32, len(topics)+1)
	for i, w := range topics {
		v[i] = float32(strings.Count(text, w))
	}
	v[len(topics)] = 0.01
	return v, nil
}

// flakyIndex fails upserts while failUpsert is set.
type flakyIndex struct {
	vectorindex.Index
	failUpsert atomic.Bool
	upserts    atomic.Int32
}

func (f *flakyIndex) Upsert(ctx context.Context, c string, r []vectorindex.Record) error {
	f.upserts.Add(1)
	if err := f.Index.Upsert(ctx, c, r); err != nil {
		return err
	}
	if f.failUpsert.Load() {
		return errors.New("disk full")
	}
	return nil
}

type fixture struct {
	kb       *Store
	index    *flakyIndex
	registry store.KnowledgeBases
	embedder *keywordEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	x, err := chromem.New(t.TempDir())
	require.NoError(t, err)
	idx := &flakyIndex{Index: x}
	reg := memory.New().KnowledgeBases()
	emb := &keywordEmbedder{}
	ch, err := chunker.New(chunker.StrategySentence, 40, 0)
	require.NoError(t, err)
	return &fixture{
		kb:       New(idx, reg, emb, ch, Options{TopK: 5, EmbedConcurrency: 2}, zerolog.Nop()),
		index:    idx,
		registry: reg,
		embedder: emb,
	}
}

var chunks = []string{"금리 인상 이야기", "환율 하락 이야기", "주식 시장 이야기", "금리와 환율", "주식 주식 주식", "기타"}

func TestCreate_ThenLoadAndRetrieve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	kb, err := f.kb.Create(ctx, "abc123", "슈카월드", chunks)
	require.NoError(t, err)
	assert.Equal(t, "chroma_db_abc123", kb.CollectionName)
	assert.Equal(t, len(chunks), kb.ChunkCount)
	assert.Contains(t, kb.StoragePath, "chroma_db_abc123")

	got, found, err := f.kb.Load(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "슈카월드", got.Title)

	docs, err := f.kb.Retrieve(ctx, got, "주식", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].Text, "주식")
	assert.Contains(t, docs[1].Text, "주식")
	assert.GreaterOrEqual(t, docs[0].Score, docs[1].Score)

	docs, err = f.kb.Retrieve(ctx, got, "아무거나", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 5, "default k")

	docs, err = f.kb.Retrieve(ctx, got, "아무거나", 50)
	require.NoError(t, err)
	assert.Len(t, docs, len(chunks), "min(n, k)")
}

func TestCreate_TwiceFailsWithAlreadyExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.kb.Create(ctx, "abc123", "t", chunks)
	require.NoError(t, err)
	calls := f.embedder.calls.Load()

	_, err = f.kb.Create(ctx, "abc123", "t", []string{"다른 자막"})
	require.Error(t, err)
	assert.True(t, model.IsAlreadyExistsError(err))
	assert.Contains(t, model.UserMessage(err), "이미 ChromaDB 존재")
	assert.Equal(t, calls, f.embedder.calls.Load(), "no embedding for an existing kb")

	list, err := f.kb.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_ConcurrentSameVideoOneWins(t *testing.T) {
	f := newFixture(t)
	var (
		wg      sync.WaitGroup
		ok, dup atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.kb.Create(context.Background(), "race01", "t", chunks)
			switch {
			case err == nil:
				ok.Add(1)
			case model.IsAlreadyExistsError(err):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 5, dup.Load())
}

// barrierEmbedder holds every call until n calls have arrived, so writers
// in different processes all pass their existence check before any writes.
type barrierEmbedder struct {
	keywordEmbedder
	n       int32
	arrived atomic.Int32
	release chan struct{}
}

func (e *barrierEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.arrived.Add(1) == e.n {
		close(e.release)
	}
	select {
	case <-e.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e.keywordEmbedder.Embed(ctx, text)
}

func TestCreate_ReplicasSharingBackendsKeepWinnersCollection(t *testing.T) {
	x, err := chromem.New(t.TempDir())
	require.NoError(t, err)
	reg := memory.New().KnowledgeBases()
	emb := &barrierEmbedder{n: 2, release: make(chan struct{})}
	ch, err := chunker.New(chunker.StrategySentence, 40, 0)
	require.NoError(t, err)

	// Two stores stand in for two server processes: separate key locks,
	// shared vector index and registry.
	replicas := []*Store{
		New(x, reg, emb, ch, Options{TopK: 5, EmbedConcurrency: 1}, zerolog.Nop()),
		New(x, reg, emb, ch, Options{TopK: 5, EmbedConcurrency: 1}, zerolog.Nop()),
	}
	errs := make([]error, len(replicas))
	var wg sync.WaitGroup
	for i, r := range replicas {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Create(context.Background(), "abc123", "t", []string{"금리 인상 이야기"})
		}()
	}
	wg.Wait()

	var created, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case model.IsAlreadyExistsError(err):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, dup)

	kb, found, err := replicas[0].Load(context.Background(), "abc123")
	require.NoError(t, err)
	require.True(t, found)
	exists, err := x.Exists(context.Background(), kb.CollectionName)
	require.NoError(t, err)
	assert.True(t, exists, "registered knowledge base keeps its vectors")

	docs, err := replicas[1].Retrieve(context.Background(), kb, "금리", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "금리 인상 이야기", docs[0].Text)
}

func TestCreate_EmbedFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.embedder.fail = func(text string) error {
		if strings.Contains(text, "환율") {
			return errors.New("quota exceeded")
		}
		return nil
	}

	_, err := f.kb.Create(context.Background(), "abc123", "t", chunks)
	require.Error(t, err)
	assert.True(t, model.IsCollaboratorError(err))
	assert.EqualValues(t, 0, f.index.upserts.Load())

	_, found, err := f.kb.Load(context.Background(), "abc123")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreate_WriteFailureLeavesNoPartialKB(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index.failUpsert.Store(true)

	_, err := f.kb.Create(ctx, "abc123", "t", chunks)
	require.Error(t, err)

	_, found, err := f.kb.Load(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, found, "failed create must not leave a collection behind")

	f.index.failUpsert.Store(false)
	_, err = f.kb.Create(ctx, "abc123", "t", chunks)
	require.NoError(t, err, "a later create must succeed")
}

func TestLoad_Missing(t *testing.T) {
	f := newFixture(t)
	kb, found, err := f.kb.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, kb)
}

func TestLoad_CollectionWithoutRegistryEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.index.Index.Upsert(ctx, CollectionName("legacy1"), []vectorindex.Record{
		{Index: 0, Text: "금리", Vector: []float32{1, 0, 0, 0.01}},
	}))

	kb, found, err := f.kb.Load(ctx, "legacy1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "chroma_db_legacy1", kb.CollectionName)

	_, err = f.kb.Create(ctx, "legacy1", "t", chunks)
	assert.True(t, model.IsAlreadyExistsError(err))
}

func TestIngest_EmptySubtitle(t *testing.T) {
	f := newFixture(t)
	_, err := f.kb.Ingest(context.Background(), "abc123", "t", "  \n ")
	require.Error(t, err)
	assert.True(t, model.IsEmptyInputError(err))
	assert.EqualValues(t, 0, f.embedder.calls.Load())
}

func TestIngest_ChunksSubtitle(t *testing.T) {
	f := newFixture(t)
	kb, err := f.kb.Ingest(context.Background(), "abc123", "t",
		"금리가 올랐습니다. 환율이 내렸습니다. 주식은 어떨까요? 오늘은 여기까지입니다.")
	require.NoError(t, err)
	assert.Greater(t, kb.ChunkCount, 1)
}

func TestValidateVideoID(t *testing.T) {
	assert.NoError(t, ValidateVideoID("dQw4w9WgXcQ"))
	assert.NoError(t, ValidateVideoID("abc_12-3"))
	assert.True(t, model.IsEmptyInputError(ValidateVideoID("")))
	assert.True(t, model.IsValidationError(ValidateVideoID("../etc")))
	assert.True(t, model.IsValidationError(ValidateVideoID(strings.Repeat("a", 65))))
}

func TestList_CreationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"zzz", "aaa", "mmm"} {
		_, err := f.kb.Create(ctx, id, "title "+id, chunks[:2])
		require.NoError(t, err)
	}
	list, err := f.kb.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"zzz", "aaa", "mmm"}, []string{list[0].VideoID, list[1].VideoID, list[2].VideoID})
}
