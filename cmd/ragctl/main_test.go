package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--api", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCreate_FromFile(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"success":true,"message":"ChromaDB (abc123) 생성 성공!\n(금리)"}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "sub.txt")
	require.NoError(t, os.WriteFile(path, []byte("금리가 올랐다."), 0o600))

	out, err := run(t, srv, "", "create", "-v", "abc123", "-t", "금리", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "생성 성공")
	assert.Equal(t, "금리가 올랐다.", got["subtitle"])
}

func TestCreate_DuplicateFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"message":"이미 ChromaDB 존재"}`)
	}))
	defer srv.Close()

	out, err := run(t, srv, "자막", "create", "-v", "abc123", "-f", "-")
	assert.Error(t, err)
	assert.Contains(t, out, "이미 ChromaDB 존재")
}

func TestAsk_Streams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"kind\":\"text\",\"payload\":\"금리는 \"}\n\n")
		fmt.Fprint(w, "data: {\"kind\":\"text\",\"payload\":\"올랐습니다.\"}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	out, err := run(t, srv, "", "ask", "-v", "abc123", "금리는", "어때?")
	require.NoError(t, err)
	assert.Equal(t, "금리는 올랐습니다.\n", out)
}

func TestAsk_RequiresVideo(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := run(t, srv, "", "ask", "q")
	assert.Error(t, err)
}

func TestHealth_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"unhealthy","timestamp":"t","unhealthy":["store"]}`)
	}))
	defer srv.Close()

	out, err := run(t, srv, "", "health")
	assert.Error(t, err)
	assert.Contains(t, out, `"store"`)
}

func TestListAndReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `[{"video_id":"abc123","title":"금리"}]`)
		case http.MethodDelete:
			assert.Equal(t, "s1", r.URL.Query().Get("session_id"))
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	out, err := run(t, srv, "", "list")
	require.NoError(t, err)
	assert.Equal(t, "abc123\t금리\n", out)

	out, err = run(t, srv, "", "reset", "-v", "abc123", "-s", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "session reset")
}
