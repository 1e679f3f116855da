package redis

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Han1236/syuka-insight/internal/store"
	"github.com/Han1236/syuka-insight/internal/store/storetest"
)

// redisAddr returns REDIS_TEST_ADDR, or starts a throwaway container when
// RAG_DOCKER_TESTS=1. Otherwise the test is skipped.
func redisAddr(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv("REDIS_TEST_ADDR"); addr != "" {
		return addr
	}
	if os.Getenv("RAG_DOCKER_TESTS") != "1" {
		t.Skip("REDIS_TEST_ADDR not set and RAG_DOCKER_TESTS!=1; skipping redis store test")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisStore_Compliance(t *testing.T) {
	addr := redisAddr(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		client, err := Open(context.Background(), addr, 0)
		if err != nil {
			t.Fatalf("redis open: %v", err)
		}
		return NewWithClient(client, "ragtest:"+uuid.NewString()[:8]+":")
	})
}
