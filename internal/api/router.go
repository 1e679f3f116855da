package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/api/recovery"
	"github.com/Han1236/syuka-insight/internal/metrics"
)

// NewRouter registers every route of the service.
func NewRouter(h *Handler, health *HealthHandler, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware(log))
	router.Use(requestLogger(log))

	router.HandleFunc("/api/health", health.CheckHealth).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Knowledge bases
	router.HandleFunc("/create_chromadb", h.CreateKnowledgeBase).Methods("POST")
	router.HandleFunc("/chromadb_videos", h.ListKnowledgeBases).Methods("GET")

	// Question answering
	router.HandleFunc("/chat/stream", h.ChatStream).Methods("POST")
	router.HandleFunc("/chat", h.Chat).Methods("POST")
	router.HandleFunc("/summarize", h.Summarize).Methods("POST")

	// Conversation memory
	router.HandleFunc("/sessions/{video_id}", h.GetSession).Methods("GET")
	router.HandleFunc("/sessions/{video_id}", h.ResetSession).Methods("DELETE")

	return router
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func requestLogger(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			ev := log.Info()
			if r.URL.Path == "/api/health" || r.URL.Path == "/metrics" {
				ev = log.Debug()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int("bytes", sw.bytes).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		})
	}
}
