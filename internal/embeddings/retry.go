package embeddings

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/metrics"
	"github.com/Han1236/syuka-insight/internal/model"
)

// Bounded wraps an Embedder with a per-attempt timeout and a capped retry
// that only fires when an attempt hits its own deadline. Any other error is
// returned immediately.
type Bounded struct {
	next       Embedder
	timeout    time.Duration
	maxRetries int
	log        zerolog.Logger

	// newBackOff is replaced in tests.
	newBackOff func() backoff.BackOff
}

// NewBounded wraps next. timeout <= 0 disables the per-attempt deadline.
func NewBounded(next Embedder, timeout time.Duration, maxRetries int, log zerolog.Logger) *Bounded {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Bounded{
		next:       next,
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.Multiplier = 2
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Embed calls the wrapped provider. Deadline failures surface as
// model.CollaboratorTimeoutError, other failures as model.CollaboratorError.
func (b *Bounded) Embed(ctx context.Context, text string) ([]float32, error) {
	bo := b.newBackOff()
	bo.Reset()

	for attempt := 0; ; attempt++ {
		start := time.Now()
		vec, err := b.attempt(ctx, text)
		metrics.ObserveCall("embed", start, err)
		if err == nil {
			return vec, nil
		}
		// Retry only our own deadline; the caller's deadline or cancellation ends it.
		if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil || attempt >= b.maxRetries {
			return nil, model.WrapCall("embed", err)
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, model.WrapCall("embed", err)
		}
		b.log.Warn().Int("attempt", attempt+1).Dur("backoff", wait).Msg("embedding timed out, retrying")
		select {
		case <-ctx.Done():
			return nil, model.WrapCall("embed", ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (b *Bounded) attempt(ctx context.Context, text string) ([]float32, error) {
	if b.timeout <= 0 {
		return b.next.Embed(ctx, text)
	}
	actx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Embed(actx, text)
}

// HealthPing forwards to the wrapped provider when it supports pinging.
func (b *Bounded) HealthPing(ctx context.Context) error {
	if p, ok := b.next.(interface{ HealthPing(context.Context) error }); ok {
		return p.HealthPing(ctx)
	}
	_, err := b.next.Embed(ctx, "healthcheck")
	return err
}
