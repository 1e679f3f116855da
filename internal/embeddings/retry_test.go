package embeddings

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Han1236/syuka-insight/internal/model"
)

type fakeEmbedder struct {
	calls atomic.Int32
	fn    func(ctx context.Context, n int32) ([]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	return f.fn(ctx, f.calls.Add(1))
}

func newTestBounded(next Embedder, timeout time.Duration, retries int) *Bounded {
	b := NewBounded(next, timeout, retries, zerolog.Nop())
	b.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return b
}

func blockUntilDone(ctx context.Context, _ int32) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBounded_RetriesTimeoutOnce(t *testing.T) {
	f := &fakeEmbedder{fn: func(ctx context.Context, n int32) ([]float32, error) {
		if n == 1 {
			return blockUntilDone(ctx, n)
		}
		return []float32{1, 2}, nil
	}}
	vec, err := newTestBounded(f, 20*time.Millisecond, 1).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestBounded_GivesUpAfterCap(t *testing.T) {
	f := &fakeEmbedder{fn: blockUntilDone}
	_, err := newTestBounded(f, 10*time.Millisecond, 1).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, model.IsCollaboratorTimeout(err))
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestBounded_NoRetryOnOtherErrors(t *testing.T) {
	f := &fakeEmbedder{fn: func(context.Context, int32) ([]float32, error) {
		return nil, errors.New("401 unauthorized")
	}}
	_, err := newTestBounded(f, time.Second, 3).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, model.IsCollaboratorError(err))
	assert.False(t, model.IsCollaboratorTimeout(err))
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestBounded_ZeroRetries(t *testing.T) {
	f := &fakeEmbedder{fn: blockUntilDone}
	_, err := newTestBounded(f, 10*time.Millisecond, 0).Embed(context.Background(), "x")
	assert.True(t, model.IsCollaboratorTimeout(err))
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestBounded_CallerCancelStops(t *testing.T) {
	f := &fakeEmbedder{fn: blockUntilDone}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := newTestBounded(f, time.Second, 3).Embed(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestHealthChecker_UsesEmbedFallback(t *testing.T) {
	f := &fakeEmbedder{fn: func(context.Context, int32) ([]float32, error) { return []float32{1}, nil }}
	hc := NewHealthChecker(f, zerolog.Nop(), time.Second)
	hc.Check(context.Background())
	assert.True(t, hc.IsHealthy())
	assert.Equal(t, "embedder", hc.Name())
}
