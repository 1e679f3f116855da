// Package translate rewrites a user query into the language the knowledge
// bases were built in before retrieval.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Han1236/syuka-insight/internal/llm"
	"github.com/Han1236/syuka-insight/internal/metrics"
	"github.com/Han1236/syuka-insight/internal/model"
)

const systemInstruction = "Only translate"

// Translator issues one completion per query. It never retries.
type Translator struct {
	gen     llm.Generator
	timeout time.Duration
}

// New returns a Translator. A zero timeout leaves the caller's deadline as is.
func New(gen llm.Generator, timeout time.Duration) *Translator {
	return &Translator{gen: gen, timeout: timeout}
}

// Translate returns text rendered in target. Every failure, including an
// empty reply, is a model.TranslationError.
func (t *Translator) Translate(ctx context.Context, text, target string) (out string, err error) {
	if strings.TrimSpace(text) == "" {
		return "", model.EmptyInputError{Field: "text"}
	}
	if target == "" {
		target = "English"
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.ObserveCall("translate", start, err) }()

	reply, err := t.gen.Complete(ctx, llm.Request{
		System:   systemInstruction,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt(text, target)}},
	})
	if err != nil {
		return "", model.TranslationError{Err: model.WrapCall("translate", err)}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", model.TranslationError{Err: errors.New("empty translation")}
	}
	return reply, nil
}

func prompt(text, target string) string {
	return fmt.Sprintf("Translate: %s\n\nAnswer: Only translate in %s.", text, target)
}
