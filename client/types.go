package client

import (
	"strings"
	"time"
)

// CreateRequest is the body of POST /create_chromadb.
type CreateRequest struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// CreateResult reports whether the knowledge base was created. Message is
// the server's Korean status line either way.
type CreateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Video is one entry of the knowledge-base listing.
type Video struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
}

// ChatRequest asks one question about a video. An empty SessionID uses the
// video's shared conversation.
type ChatRequest struct {
	Prompt    string `json:"prompt"`
	VideoID   string `json:"video_id"`
	SessionID string `json:"session_id,omitempty"`
}

func (r ChatRequest) validate() error {
	if err := requireField("prompt", r.Prompt); err != nil {
		return err
	}
	return requireField("video_id", r.VideoID)
}

type SummarizeRequest struct {
	Timeline string `json:"timeline"`
	Subtitle string `json:"subtitle"`
}

// Turn is one remembered message.
type Turn struct {
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	CreationTime time.Time `json:"creationTime"`
}

// Session is a conversation and its turns, oldest first.
type Session struct {
	Key   string `json:"session"`
	Turns []Turn `json:"turns"`
}

type HealthStatus struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Unhealthy []string `json:"unhealthy,omitempty"`
}

// Healthy reports whether every server dependency is up.
func (h *HealthStatus) Healthy() bool { return h != nil && h.Status == "healthy" }

// Kind tags a streamed increment.
type Kind string

const (
	KindText  Kind = "text"
	KindError Kind = "error"
	KindDone  Kind = "done"
)

// Increment is one piece of a streamed answer.
type Increment struct {
	Kind    Kind   `json:"kind"`
	Payload string `json:"payload"`
}

func requireField(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: name}
	}
	return nil
}
