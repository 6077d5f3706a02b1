package chunker

import (
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Structure splits note content at blank lines, before markdown headings
// (# to ###) and before list items (- or *), then merges consecutive blocks
// greedily up to the maximum length. Chunk text is always the exact
// content span; chunk 0 additionally carries the note title as a prefix.
type Structure struct {
	cfg config
}

var _ driven.Chunker = (*Structure)(nil)

// NewStructure creates the structure-aware strategy.
func NewStructure(opts ...Option) *Structure {
	return &Structure{cfg: newConfig(opts)}
}

// Name returns the strategy name.
func (s *Structure) Name() string {
	return StrategyStructure
}

// Chunk splits one note.
func (s *Structure) Chunk(note domain.Note) []domain.Chunk {
	full := note.Text()
	if note.ID == "" || full == "" {
		return nil
	}
	if runeLen(full) <= s.cfg.shortNote {
		return []domain.Chunk{wholeNote(note, nil)}
	}

	spans := s.merge(note.Content, splitBlocks(note.Content))
	var bounded []span
	for _, sp := range spans {
		if sp.length(note.Content) > s.cfg.maxLength {
			bounded = append(bounded, splitLong(note.Content, sp, s.cfg.minLength, s.cfg.maxLength)...)
			continue
		}
		bounded = append(bounded, sp)
	}
	if len(bounded) == 0 {
		return []domain.Chunk{wholeNote(note, nil)}
	}

	chunks := make([]domain.Chunk, 0, len(bounded))
	for i, sp := range bounded {
		text := sp.text(note.Content)
		if i == 0 {
			text = withTitle(note.Title, text)
		}
		chunks = append(chunks, newChunk(note, i, text, sp))
	}
	return chunks
}

// merge packs blocks into chunks. A chunk is flushed once adding the next
// block would exceed the maximum, unless it is still under the minimum.
// A final remainder under the minimum joins the previous chunk.
func (s *Structure) merge(content string, blocks []span) []span {
	if len(blocks) == 0 {
		return nil
	}

	var out []span
	cur := blocks[0]
	for _, b := range blocks[1:] {
		combined := span{start: cur.start, end: b.end}
		switch {
		case combined.length(content) <= s.cfg.maxLength:
			cur = combined
		case cur.length(content) >= s.cfg.minLength:
			out = append(out, cur)
			cur = b
		default:
			cur = combined
		}
	}

	if len(out) > 0 && cur.length(content) < s.cfg.minLength {
		out[len(out)-1].end = cur.end
	} else {
		out = append(out, cur)
	}
	return out
}

// splitBlocks returns trimmed block spans. A block ends at a whitespace-only
// line, and a new block starts at any line opening a heading or list item.
func splitBlocks(content string) []span {
	var out []span
	blockStart := -1
	flush := func(end int) {
		if blockStart < 0 {
			return
		}
		if sp, ok := trimSpan(content, blockStart, end); ok {
			out = append(out, sp)
		}
		blockStart = -1
	}

	pos := 0
	for {
		nl := strings.IndexByte(content[pos:], '\n')
		lineEnd := len(content)
		if nl >= 0 {
			lineEnd = pos + nl
		}
		line := content[pos:lineEnd]

		switch {
		case strings.TrimSpace(line) == "":
			flush(pos)
		case opensBlock(line):
			flush(pos)
			blockStart = pos
		case blockStart < 0:
			blockStart = pos
		}

		if nl < 0 {
			break
		}
		pos = lineEnd + 1
	}
	flush(len(content))
	return out
}

// opensBlock reports whether line starts a heading (one to three '#'
// followed by whitespace) or a list item ('-' or '*' followed by whitespace).
func opensBlock(line string) bool {
	if len(line) < 2 {
		return false
	}
	if line[0] == '-' || line[0] == '*' {
		return isSpaceByte(line[1])
	}
	hashes := 0
	for hashes < len(line) && line[hashes] == '#' {
		hashes++
	}
	return hashes >= 1 && hashes <= 3 && hashes < len(line) && isSpaceByte(line[hashes])
}
