// Package chunker splits subtitle text into overlapping segments sized for
// embedding and retrieval. Lengths are measured in runes so Korean text is
// bounded the same way as Latin text.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Han1236/syuka-insight/internal/model"
)

const (
	DefaultMaxLength = 1000
	DefaultOverlap   = 200

	StrategyRecursive = "recursive"
	StrategySentence  = "sentence"
)

// Chunker turns a transcript into ordered chunks.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// New returns a Chunker for strategy. An empty strategy selects recursive.
func New(strategy string, maxLength, overlap int) (Chunker, error) {
	if maxLength <= 0 {
		return nil, model.NewValidationError("max_length", "must be > 0")
	}
	if overlap < 0 || overlap >= maxLength {
		return nil, model.NewValidationError("overlap", fmt.Sprintf("must be in [0, %d)", maxLength))
	}
	switch strategy {
	case "", StrategyRecursive:
		return newRecursive(maxLength, overlap), nil
	case StrategySentence:
		return &sentenceChunker{maxLength: maxLength, overlap: overlap}, nil
	default:
		return nil, model.NewValidationError("strategy", "unknown chunk strategy "+strategy)
	}
}

// Chunk splits text with the default strategy and sizes.
func Chunk(text string) ([]string, error) {
	c, err := New(StrategyRecursive, DefaultMaxLength, DefaultOverlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(text)
}

func checkInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return model.EmptyInputError{Field: "text"}
	}
	return nil
}

// enforceMax drops blank pieces and hard-splits any piece longer than
// maxLength so the bound holds whatever the upstream splitter produced.
func enforceMax(pieces []string, maxLength, overlap int) []string {
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) <= maxLength {
			out = append(out, p)
			continue
		}
		out = append(out, hardSplit(p, maxLength, overlap)...)
	}
	return out
}

// hardSplit cuts s into windows of maxLength runes, each starting overlap
// runes before the previous one ended.
func hardSplit(s string, maxLength, overlap int) []string {
	runes := []rune(s)
	step := maxLength - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + maxLength
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
