package chunker

import (
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// recursiveChunker splits on paragraph, line, word and finally rune
// boundaries, merging neighbours up to maxLength.
type recursiveChunker struct {
	splitter  textsplitter.RecursiveCharacter
	maxLength int
	overlap   int
}

func newRecursive(maxLength, overlap int) *recursiveChunker {
	s := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxLength),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	return &recursiveChunker{splitter: s, maxLength: maxLength, overlap: overlap}
}

func (c *recursiveChunker) Chunk(text string) ([]string, error) {
	if err := checkInput(text); err != nil {
		return nil, err
	}
	pieces, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	return enforceMax(pieces, c.maxLength, c.overlap), nil
}
