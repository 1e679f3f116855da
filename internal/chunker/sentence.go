package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceChunker packs whole sentences up to maxLength and starts each new
// chunk with the trailing sentences of the previous one that fit in overlap.
type sentenceChunker struct {
	maxLength int
	overlap   int
}

func (c *sentenceChunker) Chunk(text string) ([]string, error) {
	if err := checkInput(text); err != nil {
		return nil, err
	}

	// Sentences longer than the bound are pre-split so packing always fits.
	var units []string
	for _, s := range splitSentences(text) {
		if utf8.RuneCountInString(s) > c.maxLength {
			units = append(units, hardSplit(s, c.maxLength, c.overlap)...)
			continue
		}
		units = append(units, s)
	}

	var (
		chunks  []string
		current []string
		size    int
	)
	joinedLen := func(parts []string) int {
		n := 0
		for i, p := range parts {
			if i > 0 {
				n++
			}
			n += utf8.RuneCountInString(p)
		}
		return n
	}
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}
	}

	for _, u := range units {
		ulen := utf8.RuneCountInString(u)
		next := size + ulen
		if len(current) > 0 {
			next++
		}
		if next <= c.maxLength {
			current = append(current, u)
			size = next
			continue
		}

		flush()
		carry := c.tail(current)
		// Drop carried sentences until the new unit fits.
		for len(carry) > 0 && joinedLen(carry)+1+ulen > c.maxLength {
			carry = carry[1:]
		}
		current = append(carry, u)
		size = joinedLen(current)
	}
	flush()
	return chunks, nil
}

// tail returns the longest suffix of parts whose joined length is within overlap.
func (c *sentenceChunker) tail(parts []string) []string {
	if c.overlap == 0 {
		return nil
	}
	n := 0
	i := len(parts)
	for i > 0 {
		l := utf8.RuneCountInString(parts[i-1])
		if i < len(parts) {
			l++
		}
		if n+l > c.overlap {
			break
		}
		n += l
		i--
	}
	out := make([]string, len(parts)-i)
	copy(out, parts[i:])
	return out
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace and at line breaks. Text after the last terminator is kept.
func splitSentences(text string) []string {
	var (
		out []string
		b   strings.Builder
	)
	emit := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			emit()
			continue
		}
		b.WriteRune(r)
		if !isTerminator(r) {
			continue
		}
		// Absorb runs like "?!" or "..." and closing quotes.
		for i+1 < len(runes) && (isTerminator(runes[i+1]) || isCloser(runes[i+1])) {
			i++
			b.WriteRune(runes[i])
		}
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
			emit()
		}
	}
	emit()
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』':
		return true
	}
	return false
}
