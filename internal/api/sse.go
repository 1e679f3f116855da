package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Han1236/syuka-insight/internal/model"
)

// doneFrame terminates every stream.
const doneFrame = "data: [DONE]\n\n"

// sseWriter frames increments as server-sent events and flushes each one.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func startSSE(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// Emit writes one increment. Text and error increments are JSON encoded so
// payload newlines cannot break framing; done is the bare sentinel.
func (s *sseWriter) Emit(inc model.Increment) error {
	var frame string
	if inc.Kind == model.KindDone {
		frame = doneFrame
	} else {
		data, err := json.Marshal(inc)
		if err != nil {
			return err
		}
		frame = fmt.Sprintf("data: %s\n\n", data)
	}
	if _, err := fmt.Fprint(s.w, frame); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && err != http.ErrNotSupported {
		return err
	}
	return nil
}
