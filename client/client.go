// Package client is the Go SDK for the rag-server HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultURL is where a locally started rag-server listens.
const DefaultURL = "http://localhost:8000"

type Client struct {
	baseURL string
	http    *http.Client
	rest    *resty.Client
}

// New constructs a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL %q: %w", baseURL, err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.rest = resty.NewWithClient(c.http).
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json")
	return c, nil
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// CreateKnowledgeBase builds the knowledge base of one video. The server
// reports domain failures such as a duplicate in the result rather than as
// an error.
func (c *Client) CreateKnowledgeBase(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := requireField("video_id", req.VideoID); err != nil {
		return nil, err
	}
	var out CreateResult
	if err := c.postJSON(ctx, "/create_chromadb", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListKnowledgeBases returns every video that has a knowledge base.
func (c *Client) ListKnowledgeBases(ctx context.Context) ([]Video, error) {
	resp, err := c.rest.R().SetContext(ctx).Get("/chromadb_videos")
	if err != nil {
		return nil, fmt.Errorf("list knowledge bases: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out []Video
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode videos: %w", err)
	}
	return out, nil
}

// Chat asks a question and waits for the whole answer.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.postJSON(ctx, "/chat", req, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// Summarize asks the server for a bullet summary of one transcript.
func (c *Client) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	if err := requireField("subtitle", req.Subtitle); err != nil {
		return "", err
	}
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.postJSON(ctx, "/summarize", req, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

// History returns the remembered turns of a conversation.
func (c *Client) History(ctx context.Context, videoID, sessionID string) (*Session, error) {
	if err := requireField("video_id", videoID); err != nil {
		return nil, err
	}
	r := c.rest.R().SetContext(ctx).SetPathParam("video_id", videoID)
	if sessionID != "" {
		r.SetQueryParam("session_id", sessionID)
	}
	resp, err := r.Get("/sessions/{video_id}")
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out Session
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &out, nil
}

// ResetHistory forgets a conversation.
func (c *Client) ResetHistory(ctx context.Context, videoID, sessionID string) error {
	if err := requireField("video_id", videoID); err != nil {
		return err
	}
	r := c.rest.R().SetContext(ctx).SetPathParam("video_id", videoID)
	if sessionID != "" {
		r.SetQueryParam("session_id", sessionID)
	}
	resp, err := r.Delete("/sessions/{video_id}")
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return checkStatus(resp)
}

// Health returns the server's aggregated dependency state.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.rest.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out HealthStatus
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func checkStatus(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return newAPIError(resp.StatusCode(), resp.Body())
}
