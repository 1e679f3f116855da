// Package openai implements llm.Generator against an OpenAI-compatible
// /chat/completions endpoint, streaming over server-sent events.
package openai

import (
	"bufio"
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

// ErrIncompleteStream is returned when the event stream closes before [DONE].
var ErrIncompleteStream = errors.New("completion stream ended before [DONE]")

// Client talks to one model. Request deadlines come from the caller's context.
type Client struct {
	client      *resty.Client
	model       string
	temperature float32
}

// New creates a Client for baseURL.
func New(baseURL, apiKey, model string, temperature float32) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Client{client: c, model: model, temperature: temperature}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float32       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) body(req llm.Request, stream bool) *chatRequest {
	return &chatRequest{Model: c.model, Messages: req.All(), Temperature: c.temperature, Stream: stream}
}

// Complete returns the whole completion text.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(c.body(req, false)).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("chat status %d: %s", resp.StatusCode(), resp.String())
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty response from LLM")
	}
	return cr.Choices[0].Message.Content, nil
}

// Stream forwards every delta as soon as its event is read.
func (c *Client) Stream(ctx context.Context, req llm.Request, onDelta func(string) error) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(c.body(req, true)).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post("/chat/completions")
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(raw, 4096))
		return fmt.Errorf("chat status %d: %s", resp.StatusCode(), strings.TrimSpace(string(msg)))
	}
	return readEvents(ctx, raw, onDelta)
}

func readEvents(ctx context.Context, r io.Reader, onDelta func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if err := onDelta(ch.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read stream: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrIncompleteStream
}
