package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Han1236/syuka-insight/client"
)

// ragStub answers the rag-server routes the tools call.
func ragStub(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/chromadb_videos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"video_id":"abc123","title":"금리"}]`)
	})
	mux.HandleFunc("/create_chromadb", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"message":"이미 ChromaDB 존재"}`)
	})
	mux.HandleFunc("/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		var req client.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "text/event-stream")
		if req.VideoID != "abc123" {
			fmt.Fprint(w, "data: {\"kind\":\"error\",\"payload\":\"먼저 ChromaDB를 생성해주세요.\"}\n\n")
		} else {
			fmt.Fprint(w, "data: {\"kind\":\"text\",\"payload\":\"올랐습니다.\"}\n\n")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newMCPClient(t *testing.T) *mcpclient.Client {
	t.Helper()
	sdk, err := client.New(ragStub(t).URL)
	require.NoError(t, err)
	s, err := NewServer("test-mcp-server", "1.0.0", sdk)
	require.NoError(t, err)

	tr := transport.NewInProcessTransport(s)
	require.NoError(t, tr.Start(context.Background()))
	t.Cleanup(func() { _ = tr.Close() })

	c := mcpclient.NewClient(tr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: "2024-11-05",
			ClientInfo:      mcp.Implementation{Name: "test-client", Version: "1.0.0"},
		},
	})
	require.NoError(t, err)
	return c
}

func callTool(t *testing.T, c *mcpclient.Client, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestServer_ListsTools(t *testing.T) {
	c := newMCPClient(t)
	tools, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"list_videos", "create_knowledge_base", "summarize_transcript", "ask_video", "get_history", "reset_history"} {
		assert.True(t, names[want], want)
	}
}

func TestServer_AskVideo(t *testing.T) {
	c := newMCPClient(t)

	text, isErr := callTool(t, c, "ask_video", map[string]any{"video_id": "abc123", "prompt": "금리는?"})
	assert.False(t, isErr)
	assert.Equal(t, "올랐습니다.", text)

	text, isErr = callTool(t, c, "ask_video", map[string]any{"video_id": "zzz", "prompt": "금리는?"})
	assert.True(t, isErr)
	assert.Contains(t, text, "먼저 ChromaDB를 생성해주세요.")

	_, isErr = callTool(t, c, "ask_video", map[string]any{"video_id": "abc123"})
	assert.True(t, isErr)
}

func TestServer_VideoTools(t *testing.T) {
	c := newMCPClient(t)

	text, isErr := callTool(t, c, "list_videos", nil)
	assert.False(t, isErr)
	assert.Contains(t, text, `"abc123"`)

	text, isErr = callTool(t, c, "create_knowledge_base", map[string]any{"video_id": "abc123", "subtitle": "자막"})
	assert.True(t, isErr)
	assert.Equal(t, "이미 ChromaDB 존재", text)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RAG_MCP_TRANSPORT", "carrier-pigeon")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("RAG_MCP_TRANSPORT", "http")
	t.Setenv("RAG_MCP_RAG_SERVER_URL", "http://rag:8000")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://rag:8000", cfg.RAGServerURL)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, useStdio(cfg.Transport))
}
