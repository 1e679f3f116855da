package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/api/respond"
	"github.com/Han1236/syuka-insight/internal/api/validate"
	"github.com/Han1236/syuka-insight/internal/core/rag"
	"github.com/Han1236/syuka-insight/internal/knowledge"
	"github.com/Han1236/syuka-insight/internal/model"
	"github.com/Han1236/syuka-insight/internal/store"
)

// KnowledgeBases creates and lists per-video knowledge bases.
type KnowledgeBases interface {
	Ingest(ctx context.Context, videoID, title, subtitle string) (*model.KnowledgeBase, error)
	List(ctx context.Context) ([]*model.KnowledgeBase, error)
}

// Asker answers questions about a video.
type Asker interface {
	Ask(ctx context.Context, req rag.AskRequest, emit rag.Emit) error
	Answer(ctx context.Context, req rag.AskRequest) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, timeline, subtitle string) (string, error)
}

// Handler is the thin transport layer over the RAG services.
type Handler struct {
	kbs        KnowledgeBases
	asker      Asker
	summarizer Summarizer
	sessions   store.Sessions
	log        zerolog.Logger
}

func NewHandler(kbs KnowledgeBases, asker Asker, summarizer Summarizer, sessions store.Sessions, log zerolog.Logger) *Handler {
	return &Handler{kbs: kbs, asker: asker, summarizer: summarizer, sessions: sessions, log: log}
}

type createRequest struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type createResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateKnowledgeBase handles POST /create_chromadb. Every domain outcome is
// a 200 carrying success and a caller-facing message.
func (h *Handler) CreateKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := validate.DecodeJSON(w, r, &req); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.CreateKnowledgeBase(req.VideoID, req.Title, req.Subtitle); err != nil {
		respond.WriteJSON(w, http.StatusOK, createResponse{Message: model.UserMessage(err)})
		return
	}

	kb, err := h.kbs.Ingest(r.Context(), req.VideoID, req.Title, req.Subtitle)
	if err != nil {
		h.log.Error().Err(err).Str("video_id", req.VideoID).Msg("create knowledge base failed")
		respond.WriteJSON(w, http.StatusOK, createResponse{Message: createFailure(err)})
		return
	}
	respond.WriteJSON(w, http.StatusOK, createResponse{
		Success: true,
		Message: fmt.Sprintf("ChromaDB (%s) 생성 성공!\n(%s)", kb.VideoID, kb.Title),
	})
}

func createFailure(err error) string {
	switch {
	case model.IsAlreadyExistsError(err), model.IsValidationError(err):
		return model.UserMessage(err)
	case model.IsCollaboratorTimeout(err):
		return model.MsgCreateFailedPrefix + ": " + model.MsgUpstreamTimeout
	default:
		return model.MsgCreateFailedPrefix + ": " + model.MsgUpstreamFailed
	}
}

type videoSummary struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
}

// ListKnowledgeBases handles GET /chromadb_videos.
func (h *Handler) ListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	kbs, err := h.kbs.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list knowledge bases failed")
		respond.WriteInternalError(w, model.MsgUpstreamFailed)
		return
	}
	out := make([]videoSummary, 0, len(kbs))
	for _, kb := range kbs {
		out = append(out, videoSummary{VideoID: kb.VideoID, Title: kb.Title})
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

type chatRequest struct {
	Prompt    string `json:"prompt"`
	VideoID   string `json:"video_id"`
	SessionID string `json:"session_id,omitempty"`
}

func (c chatRequest) ask() rag.AskRequest {
	return rag.AskRequest{Query: c.Prompt, VideoID: c.VideoID, SessionID: c.SessionID}
}

func decodeChat(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := validate.DecodeJSON(w, r, &req); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return req, false
	}
	if err := validate.Ask(req.Prompt, req.VideoID, req.SessionID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return req, false
	}
	return req, true
}

// ChatStream handles POST /chat/stream as server-sent events.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChat(w, r)
	if !ok {
		return
	}
	sse := startSSE(w)
	if err := h.asker.Ask(r.Context(), req.ask(), sse.Emit); err != nil {
		h.log.Debug().Err(err).Str("video_id", req.VideoID).Msg("stream ended with error")
	}
}

// Chat handles POST /chat and returns the whole answer at once.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChat(w, r)
	if !ok {
		return
	}
	answer, err := h.asker.Answer(r.Context(), req.ask())
	if err != nil {
		writeTurnError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func writeTurnError(w http.ResponseWriter, err error) {
	msg := model.UserMessage(err)
	switch {
	case model.IsNotFoundError(err):
		respond.WriteNotFound(w, msg)
	case model.IsConcurrencyRaceError(err):
		respond.WriteConflict(w, msg)
	case model.IsValidationError(err):
		respond.WriteBadRequest(w, msg)
	case model.IsCollaboratorTimeout(err):
		respond.WriteGatewayTimeout(w, msg)
	default:
		respond.WriteBadGateway(w, msg)
	}
}

type summarizeRequest struct {
	Timeline string `json:"timeline"`
	Subtitle string `json:"subtitle"`
}

// Summarize handles POST /summarize.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := validate.DecodeJSON(w, r, &req); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.Summarize(req.Timeline, req.Subtitle); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	summary, err := h.summarizer.Summarize(r.Context(), req.Timeline, req.Subtitle)
	if err != nil {
		h.log.Error().Err(err).Msg("summarize failed")
		if model.IsCollaboratorTimeout(err) {
			respond.WriteGatewayTimeout(w, model.MsgUpstreamTimeout)
			return
		}
		respond.WriteBadGateway(w, model.MsgSummarizeFailed)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func sessionKey(r *http.Request) (string, error) {
	videoID := mux.Vars(r)["video_id"]
	if err := knowledge.ValidateVideoID(videoID); err != nil {
		return "", err
	}
	sessionID := r.URL.Query().Get("session_id")
	if err := validate.MaxRunes("session_id", sessionID, 128); err != nil {
		return "", err
	}
	return store.SessionKey(videoID, sessionID), nil
}

// GetSession handles GET /sessions/{video_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	key, err := sessionKey(r)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	turns, err := h.sessions.Turns(r.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Str("session", key).Msg("read session failed")
		respond.WriteInternalError(w, model.MsgUpstreamFailed)
		return
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"session": key, "turns": turns})
}

// ResetSession handles DELETE /sessions/{video_id}.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	key, err := sessionKey(r)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.sessions.Reset(r.Context(), key); err != nil {
		h.log.Error().Err(err).Str("session", key).Msg("reset session failed")
		respond.WriteInternalError(w, model.MsgUpstreamFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
