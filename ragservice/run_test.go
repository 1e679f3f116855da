package ragservice

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Han1236/syuka-insight/internal/config"
)

// fakeOllama serves the embedding, chat and tag endpoints.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"}]}`))
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		vec := []float64{0.1, float64(strings.Count(req.Prompt, "금리")), float64(strings.Count(req.Prompt, "rate"))}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embedding": vec})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		enc := json.NewEncoder(w)
		if !req.Stream {
			_ = enc.Encode(map[string]interface{}{"message": map[string]string{"content": "interest rate"}, "done": true})
			return
		}
		for _, part := range []string{"금리는 ", "올랐습니다."} {
			_ = enc.Encode(map[string]interface{}{"message": map[string]string{"content": part}, "done": false})
		}
		_ = enc.Encode(map[string]interface{}{"message": map[string]string{"content": ""}, "done": true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, ollamaURL string) *config.Config {
	cfg := config.NewForTesting()
	cfg.KBDir = t.TempDir()
	cfg.EmbedBaseURL = ollamaURL
	cfg.LLMBaseURL = ollamaURL
	cfg.ChunkSize = 50
	cfg.ChunkOverlap = 10
	require.NoError(t, cfg.ResolveDefaults())
	return cfg
}

func TestService_EndToEnd(t *testing.T) {
	ollama := fakeOllama(t)
	cfg := testConfig(t, ollama.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer svc.Close()

	svc.StartHealthCheckers(ctx)
	require.NoError(t, waitUntilHealthy(ctx, cfg, svc.Health))

	srv := httptest.NewServer(svc.Handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/create_chromadb", "application/json",
		strings.NewReader(`{"video_id":"rate2025","title":"금리 이야기","subtitle":"오늘은 금리 이야기입니다. 금리가 오르면 대출 이자도 오릅니다. 환율도 같이 봅시다."}`))
	require.NoError(t, err)
	var created struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	_ = resp.Body.Close()
	require.True(t, created.Success, created.Message)

	resp, err = http.Post(srv.URL+"/chat/stream", "application/json",
		strings.NewReader(`{"prompt":"금리는 어떻게 됐어?","video_id":"rate2025"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var frames []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	require.Equal(t, []string{
		`{"kind":"text","payload":"금리는 "}`,
		`{"kind":"text","payload":"올랐습니다."}`,
		"[DONE]",
	}, frames)

	turns, err := svc.st.Sessions().Turns(ctx, "rate2025")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "금리는 올랐습니다.", turns[1].Content)
}

func TestNew_FailsFastOnBadDriver(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.VectorStore = "weaviate"
	cfg.WeaviateURL = ""
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWriteTimeoutCoversTurn(t *testing.T) {
	cfg := config.NewForTesting()
	assert.Equal(t, (5+5+5+10+15)*time.Second, writeTimeout(cfg))
	assert.Equal(t, 60, calculateStartupHealthTimeout(1))
	assert.Equal(t, 200, calculateStartupHealthTimeout(100))
}
