// Package rag runs question-answering turns against a video's knowledge
// base: load, translate, retrieve, generate and stream, then remember the
// exchange.
package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/keylock"
	"github.com/Han1236/syuka-insight/internal/knowledge"
	"github.com/Han1236/syuka-insight/internal/llm"
	"github.com/Han1236/syuka-insight/internal/metrics"
	"github.com/Han1236/syuka-insight/internal/model"
	"github.com/Han1236/syuka-insight/internal/store"
)

// Knowledge is the knowledge-base side of a turn.
type Knowledge interface {
	Load(ctx context.Context, videoID string) (*model.KnowledgeBase, bool, error)
	Retrieve(ctx context.Context, kb *model.KnowledgeBase, query string, k int) ([]model.DocumentChunk, error)
}

// Translator rewrites the query into the knowledge-base language.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Options tunes an Orchestrator.
type Options struct {
	TopK int
	// KBLanguage is the translation target. Empty disables translation.
	KBLanguage      string
	AnswerLanguage  string
	GenerateTimeout time.Duration
	// LockWait bounds how long a turn waits behind another turn of the
	// same session. Zero waits as long as the request context allows.
	LockWait time.Duration
}

// AskRequest is one user question about a video.
type AskRequest struct {
	Query     string
	VideoID   string
	SessionID string
}

// SessionKey is the conversation key the turn reads and appends to.
func (r AskRequest) SessionKey() string { return store.SessionKey(r.VideoID, r.SessionID) }

// Emit receives increments in order. A non-nil error means the receiver is
// gone and the turn stops.
type Emit func(model.Increment) error

// Orchestrator drives turns. It is safe for concurrent use; turns of the
// same session run one at a time.
type Orchestrator struct {
	kb         Knowledge
	translator Translator
	gen        llm.Generator
	sessions   store.Sessions
	locks      *keylock.Locker
	opts       Options
	log        zerolog.Logger

	onTransition func(turnID string, from, to State)
}

func New(kb Knowledge, translator Translator, gen llm.Generator, sessions store.Sessions, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Orchestrator{
		kb:         kb,
		translator: translator,
		gen:        gen,
		sessions:   sessions,
		locks:      keylock.New(),
		opts:       opts,
		log:        log,
	}
}

// Validate rejects requests that must not start a turn.
func Validate(req AskRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return model.EmptyInputError{Field: "prompt"}
	}
	if err := knowledge.ValidateVideoID(req.VideoID); err != nil {
		return err
	}
	if len(req.SessionID) > 128 {
		return model.NewValidationError("session_id", "must be at most 128 characters")
	}
	return nil
}

// errEmitFailed marks a turn abandoned because its receiver went away.
var errEmitFailed = errors.New("increment receiver failed")

// Ask runs one turn and streams it through emit. Invalid requests return a
// validation error before anything is emitted. Otherwise the turn ends with
// exactly one done increment, preceded by one error increment when it
// failed. A turn whose receiver fails or whose context is cancelled stops
// emitting and is not remembered.
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest, emit Emit) error {
	if err := Validate(req); err != nil {
		metrics.TurnsTotal.WithLabelValues("rejected").Inc()
		return err
	}

	t := &turn{
		id:    uuid.NewString(),
		req:   req,
		key:   req.SessionKey(),
		state: StateIdle,
		start: time.Now(),
		o:     o,
	}
	t.log = o.log.With().
		Str("turn_id", t.id).
		Str("video_id", req.VideoID).
		Str("session", t.key).
		Logger()
	t.emit = func(inc model.Increment) error {
		if err := emit(inc); err != nil {
			return errors.Join(errEmitFailed, err)
		}
		return nil
	}

	err := t.run(ctx)
	t.finish(ctx, err)
	return err
}

// Answer runs a turn and returns the concatenated text.
func (o *Orchestrator) Answer(ctx context.Context, req AskRequest) (string, error) {
	var b strings.Builder
	err := o.Ask(ctx, req, func(inc model.Increment) error {
		if inc.Kind == model.KindText {
			b.WriteString(inc.Payload)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

type turn struct {
	id    string
	req   AskRequest
	key   string
	state State
	start time.Time
	log   zerolog.Logger
	emit  func(model.Increment) error
	o     *Orchestrator
}

func (t *turn) to(next State) {
	if !validTransition(t.state, next) {
		t.log.Error().Str("from", t.state.String()).Str("to", next.String()).Msg("invalid state transition")
		return
	}
	prev := t.state
	t.state = next
	t.log.Debug().Str("state", next.String()).Msg("turn state")
	if t.o.onTransition != nil {
		t.o.onTransition(t.id, prev, next)
	}
}

func (t *turn) run(ctx context.Context) error {
	o := t.o

	lockCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.opts.LockWait > 0 {
		lockCtx, cancel = context.WithTimeout(ctx, o.opts.LockWait)
	}
	release, err := o.locks.Acquire(lockCtx, t.key)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return model.ConcurrencyRaceError{Key: t.key}
	}
	defer release()

	t.to(StateKBLoading)
	kb, found, err := o.kb.Load(ctx, t.req.VideoID)
	if err != nil {
		return err
	}
	if !found {
		return store.ErrKBNotFound(t.req.VideoID)
	}

	t.to(StateTranslating)
	query := t.req.Query
	if o.translator != nil && o.opts.KBLanguage != "" {
		translated, err := o.translator.Translate(ctx, t.req.Query, o.opts.KBLanguage)
		switch {
		case err == nil:
			query = translated
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			t.log.Warn().Err(err).Msg("translation failed, retrieving with the original query")
		}
	}

	t.to(StateRetrieving)
	chunks, err := o.kb.Retrieve(ctx, kb, query, o.opts.TopK)
	if err != nil {
		return err
	}
	history, err := o.sessions.Turns(ctx, t.key)
	if err != nil {
		return model.WrapCall("session_read", err)
	}

	t.to(StateGenerating)
	genReq := buildRequest(o.opts.AnswerLanguage, chunks, history, t.req.Query)
	answer, err := t.stream(ctx, genReq)
	if err != nil {
		return err
	}

	// The exchange is remembered only once the whole answer was delivered.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.sessions.AppendTurn(ctx, t.key, t.req.Query, answer); err != nil {
		return model.WrapCall("session_write", err)
	}
	t.to(StateCompleted)
	return nil
}

func (t *turn) stream(ctx context.Context, req llm.Request) (string, error) {
	genCtx, cancel := ctx, context.CancelFunc(func() {})
	if t.o.opts.GenerateTimeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, t.o.opts.GenerateTimeout)
	}
	defer cancel()

	var (
		answer  strings.Builder
		emitErr error
		first   = true
	)
	start := time.Now()
	err := t.o.gen.Stream(genCtx, req, func(delta string) error {
		if delta == "" {
			return nil
		}
		if first {
			first = false
			t.to(StateStreaming)
			metrics.FirstTokenSeconds.Observe(time.Since(t.start).Seconds())
		}
		answer.WriteString(delta)
		if err := t.emit(model.TextIncrement(delta)); err != nil {
			emitErr = err
			return err
		}
		return nil
	})
	metrics.ObserveCall("generate", start, err)

	switch {
	case emitErr != nil:
		return "", emitErr
	case err != nil && ctx.Err() != nil:
		return "", ctx.Err()
	case err != nil:
		return "", model.GenerationError{Err: model.WrapCall("generate", err)}
	}
	if first {
		// Nothing was generated; the turn still passes through Streaming.
		t.to(StateStreaming)
	}
	return answer.String(), nil
}

// finish emits the terminal increments and records the outcome.
func (t *turn) finish(ctx context.Context, err error) {
	outcome := "completed"
	switch {
	case err == nil:
	case errors.Is(err, errEmitFailed) || ctx.Err() != nil:
		outcome = "cancelled"
	default:
		outcome = "failed"
	}

	if err != nil {
		t.to(StateFailed)
	}
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()

	ev := t.log.Info()
	if outcome == "failed" {
		ev = t.log.Error().Err(err)
	} else if outcome == "cancelled" {
		ev = t.log.Warn().Err(err)
	}
	ev.Str("outcome", outcome).Dur("elapsed", time.Since(t.start)).Msg("turn finished")

	if outcome == "cancelled" {
		return
	}
	if err != nil {
		if t.emit(model.ErrorIncrement(model.UserMessage(err))) != nil {
			return
		}
	}
	_ = t.emit(model.DoneIncrement())
}
