// Package knowledge builds and queries per-video knowledge bases: subtitle
// chunks embedded into a vector collection plus a registry record.
package knowledge

import (
	"context"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Han1236/syuka-insight/internal/chunker"
	"github.com/Han1236/syuka-insight/internal/embeddings"
	"github.com/Han1236/syuka-insight/internal/keylock"
	"github.com/Han1236/syuka-insight/internal/metrics"
	"github.com/Han1236/syuka-insight/internal/model"
	"github.com/Han1236/syuka-insight/internal/store"
	"github.com/Han1236/syuka-insight/internal/vectorindex"
)

// CollectionPrefix keeps collection names compatible with existing data.
const CollectionPrefix = "chroma_db_"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// CollectionName derives the vector collection for videoID.
func CollectionName(videoID string) string { return CollectionPrefix + videoID }

// ValidateVideoID rejects ids that cannot name a collection.
func ValidateVideoID(videoID string) error {
	if videoID == "" {
		return model.EmptyInputError{Field: "video_id"}
	}
	if !videoIDPattern.MatchString(videoID) {
		return model.NewValidationError("video_id", "must be 1-64 characters of A-Z a-z 0-9 _ -")
	}
	return nil
}

// Options tunes a Store.
type Options struct {
	TopK             int
	EmbedConcurrency int
	RetrieveTimeout  time.Duration
}

// Store owns knowledge-base creation and retrieval.
type Store struct {
	index    vectorindex.Index
	registry store.KnowledgeBases
	embedder embeddings.Embedder
	chunker  chunker.Chunker
	locks    *keylock.Locker
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
}

// New wires a Store. Zero options fall back to top-k 5, 4 concurrent embeds
// and no extra retrieve deadline.
func New(index vectorindex.Index, registry store.KnowledgeBases, embedder embeddings.Embedder, ch chunker.Chunker, opts Options, log zerolog.Logger) *Store {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 4
	}
	return &Store{
		index:    index,
		registry: registry,
		embedder: embedder,
		chunker:  ch,
		locks:    keylock.New(),
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Ingest chunks a subtitle and creates its knowledge base.
func (s *Store) Ingest(ctx context.Context, videoID, title, subtitle string) (*model.KnowledgeBase, error) {
	if err := ValidateVideoID(videoID); err != nil {
		return nil, err
	}
	chunks, err := s.chunker.Chunk(subtitle)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, videoID, title, chunks)
}

// Create embeds every chunk and then writes them in one upsert. It fails
// with model.AlreadyExistsError when the collection or registry entry is
// present. A failure after the write starts drops the collection again,
// except when the registry reports that another writer won the create.
// Creates for the same video run one at a time within this Store.
func (s *Store) Create(ctx context.Context, videoID, title string, chunks []string) (kb *model.KnowledgeBase, err error) {
	if err := ValidateVideoID(videoID); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, model.EmptyInputError{Field: "chunks"}
	}
	defer func() { metrics.KnowledgeBasesCreated.WithLabelValues(createResult(err)).Inc() }()

	release, err := s.locks.Acquire(ctx, videoID)
	if err != nil {
		return nil, err
	}
	defer release()

	collection := CollectionName(videoID)
	log := s.log.With().Str("video_id", videoID).Str("collection", collection).Logger()

	if _, found, err := s.Load(ctx, videoID); err != nil {
		return nil, err
	} else if found {
		return nil, model.AlreadyExistsError{Resource: "knowledge base", ID: videoID}
	}

	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		log.Error().Err(err).Int("chunks", len(chunks)).Msg("embedding failed; nothing written")
		return nil, err
	}

	records := make([]vectorindex.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorindex.Record{Index: i, Text: c, Vector: vectors[i]}
	}

	start := time.Now()
	err = s.index.Upsert(ctx, collection, records)
	metrics.ObserveCall("vector_upsert", start, err)
	if err != nil {
		s.rollback(ctx, collection, log)
		return nil, model.WrapCall("vector_upsert", err)
	}

	kb = &model.KnowledgeBase{
		VideoID:        videoID,
		Title:          title,
		CollectionName: collection,
		StoragePath:    s.location(collection),
		ChunkCount:     len(chunks),
		CreationTime:   s.now().UTC(),
	}
	if err := s.registry.Put(ctx, kb); err != nil {
		// The registry arbitrates creates across processes. A conflict means
		// another writer registered first and the collection is now theirs.
		if model.IsAlreadyExistsError(err) {
			log.Warn().Msg("knowledge base registered by another writer; keeping its collection")
			return nil, err
		}
		s.rollback(ctx, collection, log)
		return nil, model.WrapCall("kb_register", err)
	}

	log.Info().Int("chunks", len(chunks)).Str("title", title).Msg("knowledge base created")
	return kb, nil
}

func (s *Store) embedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.EmbedConcurrency)
	for i, c := range chunks {
		g.Go(func() error {
			v, err := s.embedder.Embed(gctx, c)
			if err != nil {
				return model.WrapCall("embed", err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// rollback removes a half-written collection. It runs even when ctx is
// already cancelled.
func (s *Store) rollback(ctx context.Context, collection string, log zerolog.Logger) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.index.Drop(dctx, collection); err != nil {
		log.Error().Err(err).Msg("failed to drop partial collection")
		return
	}
	log.Warn().Msg("dropped partial collection")
}

func (s *Store) location(collection string) string {
	if l, ok := s.index.(vectorindex.Locator); ok {
		return l.Location(collection)
	}
	return collection
}

// Load reports whether a knowledge base exists for videoID. Absence is not
// an error. Collections written before the registry existed are found
// through the index and returned with what can be derived.
func (s *Store) Load(ctx context.Context, videoID string) (*model.KnowledgeBase, bool, error) {
	if err := ValidateVideoID(videoID); err != nil {
		return nil, false, err
	}
	kb, err := s.registry.Get(ctx, videoID)
	if err == nil {
		return kb, true, nil
	}
	if !model.IsNotFoundError(err) {
		return nil, false, model.WrapCall("kb_load", err)
	}

	collection := CollectionName(videoID)
	ok, err := s.index.Exists(ctx, collection)
	if err != nil {
		return nil, false, model.WrapCall("kb_load", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &model.KnowledgeBase{
		VideoID:        videoID,
		CollectionName: collection,
		StoragePath:    s.location(collection),
	}, true, nil
}

// Retrieve embeds query and returns up to k chunks ordered by score. k <= 0
// selects the configured default.
func (s *Store) Retrieve(ctx context.Context, kb *model.KnowledgeBase, query string, k int) ([]model.DocumentChunk, error) {
	if k <= 0 {
		k = s.opts.TopK
	}
	if s.opts.RetrieveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RetrieveTimeout)
		defer cancel()
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, model.WrapCall("embed", err)
	}

	start := time.Now()
	hits, err := s.index.Query(ctx, kb.CollectionName, vec, k)
	metrics.ObserveCall("retrieve", start, err)
	if err != nil {
		return nil, model.WrapCall("retrieve", err)
	}

	out := make([]model.DocumentChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.DocumentChunk{ID: h.ID, Index: h.Index, Text: h.Text, Score: h.Score})
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// List returns every registered knowledge base in creation order.
func (s *Store) List(ctx context.Context) ([]*model.KnowledgeBase, error) {
	kbs, err := s.registry.List(ctx)
	if err != nil {
		return nil, model.WrapCall("kb_list", err)
	}
	return kbs, nil
}

func createResult(err error) string {
	switch {
	case err == nil:
		return "created"
	case model.IsAlreadyExistsError(err):
		return "already_exists"
	case model.IsValidationError(err):
		return "invalid"
	default:
		return "failed"
	}
}
