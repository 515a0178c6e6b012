// Package chunker splits normalized text into overlapping passages sized
// for the embedding model's input limit.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMaxSize         = 1000
	DefaultOverlapFraction = 0.15

	// minBoundarySearch bounds how far back from the size limit a split
	// boundary is searched before falling back to a hard cut.
	minBoundarySearch = 0.5
)

// Options configures chunking behavior. Sizes are in bytes of UTF-8 text.
type Options struct {
	// MaxSize is the maximum chunk length. No produced chunk exceeds it.
	MaxSize int

	// Overlap is the number of trailing bytes of each chunk repeated at
	// the start of the next one, preserving context across the split.
	Overlap int
}

// DefaultOptions returns the default chunking options.
func DefaultOptions() Options {
	return Options{
		MaxSize: DefaultMaxSize,
		Overlap: int(DefaultMaxSize * DefaultOverlapFraction),
	}
}

// Piece is one chunk of the input with its position in the original text.
type Piece struct {
	Index int
	Text  string
	Start int
	End   int
}

// Split cuts text into ordered overlapping pieces. Empty or all-whitespace
// input yields no pieces; callers must reject that as invalid ingestion
// rather than creating an empty memory.
//
// Split prefers to cut at a sentence end, then at whitespace, and only
// hard-cuts when the size window contains no boundary at all. Adjacent
// pieces share opts.Overlap bytes, except the final piece which may be
// shorter than MaxSize. Concatenating pieces and dropping each piece's
// leading overlap reconstructs the input exactly.
func Split(text string, opts Options) []Piece {
	if opts.MaxSize <= 0 {
		opts = DefaultOptions()
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Overlap >= opts.MaxSize {
		opts.Overlap = opts.MaxSize / 2
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	var pieces []Piece
	start := 0
	for start < len(text) {
		end := start + opts.MaxSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = splitPoint(text, start, end)
		}

		pieces = append(pieces, Piece{
			Index: len(pieces),
			Text:  text[start:end],
			Start: start,
			End:   end,
		})

		if end == len(text) {
			break
		}
		next := end - opts.Overlap
		if next <= start {
			// Overlap would stall progress on a short boundary-adjusted
			// chunk; advance without overlap instead.
			next = end
		}
		start = next
	}

	return pieces
}

// splitPoint finds the best cut position in text[start:limit], searching
// backwards from limit. Sentence ends win over whitespace; a hard cut at
// limit is the last resort.
func splitPoint(text string, start, limit int) int {
	floor := start + int(float64(limit-start)*minBoundarySearch)

	wsCut := -1
	for i := limit; i > floor; i-- {
		b := text[i-1]
		if b >= utf8.RuneSelf {
			continue // only ASCII boundaries; multi-byte runes are never cut points
		}
		r := rune(b)
		if isSentenceEnd(r) && i < len(text) && text[i] < utf8.RuneSelf && unicode.IsSpace(rune(text[i])) {
			return i
		}
		if wsCut < 0 && unicode.IsSpace(r) {
			wsCut = i
		}
	}
	if wsCut > 0 {
		return wsCut
	}
	// Hard cut. Back up to a rune boundary so a multi-byte character is
	// never split across chunks.
	for limit > start && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
