// Package chunker splits normalized document text into bounded, overlapping
// passages suitable for embedding and retrieval.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidParams is returned when splitter parameters are inconsistent.
var ErrInvalidParams = errors.New("invalid chunking parameters")

// separators orders the split boundaries from coarse to fine. Legal documents
// lean on paragraph and clause structure, so paragraph breaks are tried before
// sentence ends and commas. The empty string means character-level splitting.
var separators = []string{"\n\n", "\n", ". ", ", ", " ", ""}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Splitter splits text into chunks of at most TargetSize characters, with the
// trailing Overlap characters of each chunk carried into the next.
type Splitter struct {
	targetSize int
	overlap    int
}

// New creates a splitter. Overlap must be smaller than targetSize.
func New(targetSize, overlap int) (*Splitter, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("%w: target size must be positive, got %d", ErrInvalidParams, targetSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidParams, overlap)
	}
	if overlap >= targetSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than target size %d", ErrInvalidParams, overlap, targetSize)
	}
	return &Splitter{targetSize: targetSize, overlap: overlap}, nil
}

// Split normalizes whitespace and splits the text into chunks. Every chunk is
// at most TargetSize characters long, except when even character-level
// splitting cannot shrink an irreducible run. Whitespace-only pieces are
// dropped.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}

	raw := s.splitText(text, 0)
	chunks := make([]string, 0, len(raw))
	for _, c := range raw {
		if strings.TrimSpace(c) != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// splitText splits text using the separator tier at the given index, recursing
// into finer tiers for any piece that still exceeds the target size.
func (s *Splitter) splitText(text string, tier int) []string {
	if len(text) <= s.targetSize {
		return []string{text}
	}

	sep := separators[tier]
	var parts []string
	if sep == "" {
		parts = splitRunes(text)
	} else {
		parts = strings.SplitAfter(text, sep)
	}

	var out []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			out = append(out, s.merge(pending)...)
			pending = nil
		}
	}

	for _, p := range parts {
		if len(p) > s.targetSize && sep != "" {
			// This piece alone exceeds the budget: the current tier
			// cannot shrink it, hand it to the next finer one.
			flush()
			out = append(out, s.splitText(p, tier+1)...)
			continue
		}
		pending = append(pending, p)
	}
	flush()

	return out
}

// merge greedily accumulates parts into windows of at most targetSize
// characters, seeding each new window with the overlap tail of the previous.
func (s *Splitter) merge(parts []string) []string {
	var out []string
	cur := ""
	fresh := true // cur holds only carried overlap, no new material yet

	for _, p := range parts {
		if cur != "" && len(cur)+len(p) > s.targetSize {
			if fresh {
				// The carried tail leaves no room; give the part a
				// clean window instead of overflowing the budget.
				cur = ""
			} else {
				out = append(out, cur)
				cur = s.carry(cur)
				fresh = true
				if len(cur)+len(p) > s.targetSize {
					cur = ""
				}
			}
		}
		cur += p
		fresh = false
	}

	if !fresh && strings.TrimSpace(cur) != "" {
		out = append(out, cur)
	}
	return out
}

// carry returns the overlap tail of a finished window.
func (s *Splitter) carry(window string) string {
	if s.overlap <= 0 {
		return ""
	}
	if len(window) <= s.overlap {
		return window
	}
	tail := window[len(window)-s.overlap:]
	// Never split a UTF-8 sequence at the carry boundary.
	for len(tail) > 0 && !isRuneStart(tail[0]) {
		tail = tail[1:]
	}
	return tail
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func splitRunes(text string) []string {
	parts := make([]string, 0, len(text))
	for _, r := range text {
		parts = append(parts, string(r))
	}
	return parts
}
