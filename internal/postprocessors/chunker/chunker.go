// Package chunker splits notes into bounded, offset-tracked chunks.
//
// Two strategies implement driven.Chunker: Structure splits at paragraph,
// heading and list boundaries and merges greedily; Hierarchical parses the
// note as markdown, keeps a heading trail per chunk and resolves offsets
// back into the original content.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Strategy names.
const (
	StrategyStructure    = "structure"
	StrategyHierarchical = "hierarchical"
)

type config struct {
	minLength int
	maxLength int
	shortNote int
}

func defaultConfig() config {
	return config{
		minLength: domain.MinChunkLength,
		maxLength: domain.MaxChunkLength,
		shortNote: domain.ShortNoteThreshold,
	}
}

// Option configures a chunking strategy.
type Option func(*config)

// WithMinLength sets the minimum chunk length in characters.
func WithMinLength(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.minLength = n
		}
	}
}

// WithMaxLength sets the maximum chunk length in characters.
func WithMaxLength(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxLength = n
		}
	}
}

// WithShortNoteThreshold sets the length at or below which a note is one chunk.
func WithShortNoteThreshold(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.shortNote = n
		}
	}
}

func newConfig(opts []Option) config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	// Splitting an oversized span must leave two pieces of at least minLength.
	if c.minLength*2 > c.maxLength {
		c.minLength = c.maxLength / 4
	}
	return c
}

// New returns the named strategy.
func New(strategy string, opts ...Option) (driven.Chunker, error) {
	switch strategy {
	case StrategyStructure, "":
		return NewStructure(opts...), nil
	case StrategyHierarchical:
		return NewHierarchical(opts...), nil
	default:
		return nil, fmt.Errorf("%w: chunking strategy %q", domain.ErrUnsupportedType, strategy)
	}
}

// span is a byte range [start, end) of note content.
type span struct {
	start int
	end   int
}

func (s span) text(content string) string {
	return content[s.start:s.end]
}

func (s span) length(content string) int {
	return utf8.RuneCountInString(content[s.start:s.end])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// trimSpan shrinks [start, end) past surrounding whitespace.
func trimSpan(content string, start, end int) (span, bool) {
	seg := content[start:end]
	left := len(seg) - len(strings.TrimLeftFunc(seg, unicode.IsSpace))
	right := len(strings.TrimRightFunc(seg, unicode.IsSpace))
	if right <= left {
		return span{}, false
	}
	return span{start: start + left, end: start + right}, true
}

// advance returns the byte index n runes after from, capped at len(s).
func advance(s string, from, n int) int {
	i := from
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

// retreat returns the byte index n runes before end, floored at 0.
func retreat(s string, end, n int) int {
	i := end
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// lastBreak returns the highest index in [lo, hi] where a whitespace run
// begins, or -1.
func lastBreak(s string, lo, hi int) int {
	if hi >= len(s) {
		hi = len(s) - 1
	}
	if lo < 1 {
		lo = 1
	}
	for i := hi; i >= lo; i-- {
		if isSpaceByte(s[i]) && !isSpaceByte(s[i-1]) {
			return i
		}
	}
	return -1
}

// splitLong cuts a span longer than maxLen into pieces of at most maxLen,
// each at least minLen, preferring whitespace boundaries.
func splitLong(content string, sp span, minLen, maxLen int) []span {
	var out []span
	start, end := sp.start, sp.end
	for runeLen(content[start:end]) > maxLen {
		limit := advance(content, start, maxLen)
		if runeLen(content[limit:end]) < minLen {
			limit = retreat(content, end, minLen)
		}
		floor := advance(content, start, minLen)
		cut := lastBreak(content, floor, limit)
		for cut >= 0 && runeLen(strings.TrimSpace(content[cut:end])) < minLen {
			cut = lastBreak(content, floor, cut-1)
		}
		if cut < 0 {
			cut = limit
		}
		if piece, ok := trimSpan(content, start, cut); ok {
			out = append(out, piece)
		}
		next := cut
		for next < end && isSpaceByte(content[next]) {
			next++
		}
		start = next
	}
	if piece, ok := trimSpan(content, start, end); ok {
		out = append(out, piece)
	}
	return out
}

func withTitle(title, text string) string {
	if title == "" {
		return text
	}
	return title + " " + text
}

func newChunk(note domain.Note, index int, text string, sp span) domain.Chunk {
	return domain.Chunk{
		NoteID:  note.ID,
		Index:   index,
		Text:    text,
		Title:   note.Title,
		Start:   sp.start,
		End:     sp.end,
		Created: note.Created,
		Edited:  note.Edited,
		Tag:     note.Tag,
	}
}

// wholeNote is the single chunk emitted for short notes and on fallback.
func wholeNote(note domain.Note, trail []string) domain.Chunk {
	c := newChunk(note, 0, note.Text(), span{0, len(note.Content)})
	c.HeadingTrail = trail
	return c
}
