package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/Han1236/syuka-insight/internal/store"
	"github.com/Han1236/syuka-insight/internal/store/memory"
)

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "abc123", store.SessionKey("abc123", ""))
	assert.Equal(t, "abc123#u1", store.SessionKey("abc123", "u1"))
}

func TestStoreHealthChecker(t *testing.T) {
	hc := store.NewStoreHealthChecker(memory.New(), zerolog.Nop(), time.Second)
	assert.False(t, hc.IsHealthy())
	hc.Check(context.Background())
	assert.True(t, hc.IsHealthy())
	assert.Equal(t, "store", hc.Name())
}
