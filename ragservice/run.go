// Package ragservice assembles and runs the RAG HTTP service.
package ragservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/api"
	"github.com/Han1236/syuka-insight/internal/chunker"
	"github.com/Han1236/syuka-insight/internal/config"
	"github.com/Han1236/syuka-insight/internal/core/rag"
	"github.com/Han1236/syuka-insight/internal/embeddings"
	"github.com/Han1236/syuka-insight/internal/factory"
	"github.com/Han1236/syuka-insight/internal/health"
	"github.com/Han1236/syuka-insight/internal/knowledge"
	"github.com/Han1236/syuka-insight/internal/logger"
	"github.com/Han1236/syuka-insight/internal/store"
	"github.com/Han1236/syuka-insight/internal/summarize"
	"github.com/Han1236/syuka-insight/internal/translate"
	"github.com/Han1236/syuka-insight/internal/vectorindex"
)

// Service is the fully wired application.
type Service struct {
	Handler http.Handler
	Health  *health.ServiceHealthChecker

	st       store.Store
	idx      *factory.VectorIndex
	embedder *embeddings.Bounded
	cfg      *config.Config
	log      zerolog.Logger
}

// Run starts the HTTP server and blocks until shutdown or error.
func Run(cfg *config.Config) error {
	log := logger.New("rag-server")
	logger.SetLevel(cfg.LogLevel)

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("store_driver", cfg.StoreDriver).
		Str("vector_store", cfg.VectorStore).
		Int("http_port", cfg.HTTPPort).
		Str("embed_provider", cfg.EmbedProvider).
		Str("llm_provider", cfg.LLMProvider).
		Msg("RAG service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	svc, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc.StartHealthCheckers(ctx)

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svc.Health); err != nil {
		log.Error().Stack().Err(err).Strs("unhealthy", svc.Health.Unhealthy()).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, svc.Handler)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// New constructs every dependency and the router. Health checkers are not
// started; call StartHealthCheckers.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Service, error) {
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}
	idx, err := factory.NewVectorIndex(ctx, cfg, log)
	if err != nil {
		_ = st.Close()
		log.Error().Stack().Err(err).Msg("Vector index unavailable")
		return nil, err
	}
	embedder, err := factory.NewEmbedder(ctx, cfg, log)
	if err != nil {
		_ = st.Close()
		idx.Close()
		return nil, err
	}
	gen, err := factory.NewGenerator(cfg)
	if err != nil {
		_ = st.Close()
		idx.Close()
		return nil, err
	}
	ch, err := chunker.New(cfg.ChunkStrategy, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		_ = st.Close()
		idx.Close()
		return nil, err
	}

	timeouts := cfg.Timeouts()
	kbs := knowledge.New(idx.Index, st.KnowledgeBases(), embedder, ch, knowledge.Options{
		TopK:             cfg.RetrieveTopK,
		EmbedConcurrency: cfg.EmbedConcurrency,
		RetrieveTimeout:  timeouts.Retrieve,
	}, log.With().Str("component", "knowledge").Logger())

	orch := rag.New(kbs, translate.New(gen, timeouts.Translate), gen, st.Sessions(), rag.Options{
		TopK:            cfg.RetrieveTopK,
		KBLanguage:      cfg.KBLanguage,
		AnswerLanguage:  cfg.AnswerLanguage,
		GenerateTimeout: timeouts.Generate,
		LockWait:        timeouts.LockWait,
	}, log.With().Str("component", "rag").Logger())

	summarizer := summarize.New(gen, timeouts.Summarize, log.With().Str("component", "summarize").Logger())

	svc := &Service{st: st, idx: idx, embedder: embedder, cfg: cfg, log: log}
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	svc.Health = health.NewServiceHealthChecker(log,
		store.NewStoreHealthChecker(st, log, probeTimeout),
		vectorindex.NewHealthChecker(idx.Index, log, probeTimeout),
		embeddings.NewHealthChecker(embedder, log, probeTimeout),
	)

	h := api.NewHandler(kbs, orch, summarizer, st.Sessions(), log)
	svc.Handler = api.NewRouter(h, api.NewHealthHandler(svc.Health), log)
	return svc, nil
}

// StartHealthCheckers launches the component probes and the aggregator.
func (s *Service) StartHealthCheckers(ctx context.Context) {
	interval := time.Duration(s.cfg.HealthIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.Health.StartAll(ctx, interval)
}

// Close releases the store and vector index.
func (s *Service) Close() {
	if err := s.st.Close(); err != nil {
		s.log.Warn().Err(err).Msg("store close failed")
	}
	s.idx.Close()
}

// writeTimeout covers the longest streamed turn: lock wait, translation,
// retrieval and generation back to back.
func writeTimeout(cfg *config.Config) time.Duration {
	t := cfg.Timeouts()
	turn := t.LockWait + t.Translate + t.Retrieve + t.Generate
	if t.Summarize > turn {
		turn = t.Summarize
	}
	return turn + 15*time.Second
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns interval*2 seconds with a 60 second floor.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
