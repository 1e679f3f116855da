// Package validate checks HTTP request bodies before they reach the
// knowledge, orchestrator or summarizer layers.
package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/Han1236/syuka-insight/internal/core/rag"
	"github.com/Han1236/syuka-insight/internal/knowledge"
	"github.com/Han1236/syuka-insight/internal/model"
)

const (
	MaxBodyBytes   = 8 << 20
	MaxTitleRunes  = 300
	MaxPromptRunes = 4000
	// Subtitles of a two-hour video stay well below this.
	MaxSubtitleRunes = 1 << 20
)

// DecodeJSON reads one JSON object from r into dst, capped at MaxBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return model.EmptyInputError{Field: field}
	}
	return nil
}

func MaxRunes(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return model.NewValidationError(field, fmt.Sprintf("exceeds %d characters", limit))
	}
	return nil
}

// -------- Request specific helpers ----------

func CreateKnowledgeBase(videoID, title, subtitle string) error {
	if err := knowledge.ValidateVideoID(videoID); err != nil {
		return err
	}
	if err := MaxRunes("title", title, MaxTitleRunes); err != nil {
		return err
	}
	if err := NonEmpty("subtitle", subtitle); err != nil {
		return err
	}
	return MaxRunes("subtitle", subtitle, MaxSubtitleRunes)
}

func Ask(prompt, videoID, sessionID string) error {
	if err := rag.Validate(rag.AskRequest{Query: prompt, VideoID: videoID, SessionID: sessionID}); err != nil {
		return err
	}
	return MaxRunes("prompt", prompt, MaxPromptRunes)
}

func Summarize(timeline, subtitle string) error {
	if err := NonEmpty("subtitle", subtitle); err != nil {
		return err
	}
	if err := MaxRunes("subtitle", subtitle, MaxSubtitleRunes); err != nil {
		return err
	}
	return MaxRunes("timeline", timeline, MaxSubtitleRunes)
}
