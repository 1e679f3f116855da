package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const doneSentinel = "[DONE]"

// Ask streams an answer. onIncrement sees every text and error increment and
// then exactly one done increment; returning an error from it closes the
// stream. Ask returns the concatenated text on a completed turn, and an
// *APIError wrapping the error increment's message when the turn failed.
func (c *Client) Ask(ctx context.Context, req ChatRequest, onIncrement func(Increment) error) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(req).
		SetDoNotParseResponse(true).
		Post("/chat/stream")
	if err != nil {
		return "", fmt.Errorf("POST /chat/stream: %w", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if !resp.IsSuccess() {
		body, _ := io.ReadAll(io.LimitReader(raw, 4096))
		return "", newAPIError(resp.StatusCode(), body)
	}
	return readStream(ctx, raw, onIncrement)
}

func readStream(ctx context.Context, r io.Reader, onIncrement func(Increment) error) (string, error) {
	if onIncrement == nil {
		onIncrement = func(Increment) error { return nil }
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		answer  strings.Builder
		failure string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		inc := Increment{Kind: KindDone}
		if data != doneSentinel {
			if err := json.Unmarshal([]byte(data), &inc); err != nil {
				return "", fmt.Errorf("decode increment: %w", err)
			}
		}
		switch inc.Kind {
		case KindText:
			answer.WriteString(inc.Payload)
		case KindError:
			failure = inc.Payload
		}
		if err := onIncrement(inc); err != nil {
			return "", err
		}
		if inc.Kind == KindDone {
			if failure != "" {
				return "", &APIError{Message: failure}
			}
			return answer.String(), nil
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return "", ErrStreamIncomplete
}
