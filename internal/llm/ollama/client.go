// Package ollama implements llm.Generator with Ollama's /api/chat, which
// streams one JSON object per line until done is set.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/Han1236/syuka-insight/internal/llm"
)

const DefaultURL = "http://localhost:11434"

// Client talks to one local model.
type Client struct {
	client      *resty.Client
	model       string
	temperature float32
}

func New(baseURL, model string, temperature float32) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	return &Client{client: c, model: model, temperature: temperature}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  struct {
		Temperature float32 `json:"temperature"`
	} `json:"options"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func (c *Client) body(req llm.Request, stream bool) *chatRequest {
	b := &chatRequest{Model: c.model, Messages: req.All(), Stream: stream}
	b.Options.Temperature = c.temperature
	return b
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := c.client.R().SetContext(ctx).SetBody(c.body(req, false)).Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode(), resp.String())
	}
	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if cr.Error != "" {
		return "", errors.New(cr.Error)
	}
	return cr.Message.Content, nil
}

func (c *Client) Stream(ctx context.Context, req llm.Request, onDelta func(string) error) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(c.body(req, true)).
		SetDoNotParseResponse(true).
		Post("/api/chat")
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(raw, 4096))
		return fmt.Errorf("ollama status %d: %s", resp.StatusCode(), strings.TrimSpace(string(msg)))
	}

	decoder := json.NewDecoder(raw)
	for {
		var cr chatResponse
		if err := decoder.Decode(&cr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return fmt.Errorf("ollama stream ended before done")
			}
			return fmt.Errorf("decode stream: %w", err)
		}
		if cr.Error != "" {
			return errors.New(cr.Error)
		}
		if cr.Message.Content != "" {
			if err := onDelta(cr.Message.Content); err != nil {
				return err
			}
		}
		if cr.Done {
			return nil
		}
	}
}

// HealthPing checks that the Ollama daemon answers.
func (c *Client) HealthPing(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/api/tags")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("ollama tags status %d", resp.StatusCode())
	}
	return nil
}
