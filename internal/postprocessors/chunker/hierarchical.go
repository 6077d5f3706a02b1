package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// prefixProbe is how many characters of a chunk are searched for when
// every precise offset match failed.
const prefixProbe = 50

// Hierarchical parses note content as markdown into headings, paragraphs,
// lists, quotes and code blocks. Each element becomes a chunk carrying the
// trail of headings above it; small neighbours are merged afterwards.
// Element text is normalised (no heading or list markers), so offsets are
// resolved back into the content through a fallback chain.
type Hierarchical struct {
	cfg config
	md  goldmark.Markdown
}

var _ driven.Chunker = (*Hierarchical)(nil)

// NewHierarchical creates the hierarchical strategy.
func NewHierarchical(opts ...Option) *Hierarchical {
	return &Hierarchical{cfg: newConfig(opts), md: goldmark.New()}
}

// Name returns the strategy name.
func (h *Hierarchical) Name() string {
	return StrategyHierarchical
}

// element is one structural unit of a note with its raw content span.
type element struct {
	text  string
	span  span
	trail []string
}

type rawChunk struct {
	text  string
	trail []string
	items []element
	span  span
	exact bool
}

// Chunk splits one note. Parser failures degrade to a single chunk.
func (h *Hierarchical) Chunk(note domain.Note) (chunks []domain.Chunk) {
	full := note.Text()
	if note.ID == "" || full == "" {
		return nil
	}
	if runeLen(full) <= h.cfg.minLength {
		return []domain.Chunk{wholeNote(note, titleTrail(note.Title))}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("hierarchical chunking of note %s failed: %v", note.ID, r)
			chunks = []domain.Chunk{wholeNote(note, titleTrail(note.Title))}
		}
	}()

	elements := h.elements(note)
	if len(elements) == 0 {
		return []domain.Chunk{wholeNote(note, titleTrail(note.Title))}
	}

	var raws []rawChunk
	for _, el := range elements {
		if runeLen(el.text) > h.cfg.maxLength {
			for _, sp := range splitLong(note.Content, el.span, h.cfg.minLength, h.cfg.maxLength) {
				piece := element{text: sp.text(note.Content), span: sp, trail: el.trail}
				raws = append(raws, rawChunk{text: piece.text, trail: el.trail, items: []element{piece}})
			}
			continue
		}
		raws = append(raws, rawChunk{text: el.text, trail: el.trail, items: []element{el}})
	}

	for i := range raws {
		start, end, exact := resolveOffsets(note.Content, raws[i].text, raws[i].items, elements)
		raws[i].span = span{start: start, end: end}
		raws[i].exact = exact
	}

	raws = h.mergeSmall(raws)

	chunks = make([]domain.Chunk, 0, len(raws))
	for i, rc := range raws {
		txt := rc.text
		if i == 0 && note.Title != "" && !strings.HasPrefix(txt, note.Title) {
			txt = withTitle(note.Title, txt)
		}
		c := newChunk(note, i, txt, rc.span)
		c.HeadingTrail = rc.trail
		c.LowConfidenceOffsets = !rc.exact
		chunks = append(chunks, c)
	}
	return chunks
}

// mergeSmall joins a chunk under the minimum with its successor while the
// result stays within the maximum. A small final chunk always joins its
// predecessor, even past the maximum, as in Structure.
func (h *Hierarchical) mergeSmall(raws []rawChunk) []rawChunk {
	if len(raws) <= 1 {
		return raws
	}

	join := func(a, b rawChunk) rawChunk {
		return rawChunk{
			text:  a.text + "\n\n" + b.text,
			trail: a.trail,
			items: append(append([]element{}, a.items...), b.items...),
			span:  span{start: a.span.start, end: max(a.span.end, b.span.end)},
			exact: a.exact && b.exact,
		}
	}

	var merged []rawChunk
	cur := raws[0]
	for _, next := range raws[1:] {
		if runeLen(cur.text) < h.cfg.minLength && runeLen(cur.text)+2+runeLen(next.text) <= h.cfg.maxLength {
			cur = join(cur, next)
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	if n := len(merged); n > 0 && runeLen(cur.text) < h.cfg.minLength {
		merged[n-1] = join(merged[n-1], cur)
	} else {
		merged = append(merged, cur)
	}
	return merged
}

// elements walks the markdown tree of the note content.
func (h *Hierarchical) elements(note domain.Note) []element {
	src := []byte(note.Content)
	doc := h.md.Parser().Parse(text.NewReader(src))

	var (
		out      []element
		headings []string
		levels   []int
	)
	trail := func() []string {
		t := titleTrail(note.Title)
		return append(t, headings...)
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := joinLines(node, src, " ")
			for len(levels) > 0 && levels[len(levels)-1] >= node.Level {
				levels = levels[:len(levels)-1]
				headings = headings[:len(headings)-1]
			}
			levels = append(levels, node.Level)
			headings = append(headings, title)
		case *ast.List:
			var items []string
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if t := joinLines(item, src, " "); t != "" {
					items = append(items, t)
				}
			}
			if sp, ok := nodeSpan(node, note.Content, true); ok && len(items) > 0 {
				out = append(out, element{text: strings.Join(items, "\n"), span: sp, trail: trail()})
			}
		case *ast.ThematicBreak:
		default:
			t := joinLines(node, src, "\n")
			if sp, ok := nodeSpan(node, note.Content, false); ok && t != "" {
				out = append(out, element{text: t, span: sp, trail: trail()})
			}
		}
	}
	return out
}

func titleTrail(title string) []string {
	if title == "" {
		return []string{}
	}
	return []string{title}
}

// segments collects the source lines of n and its block descendants.
func segments(n ast.Node) []text.Segment {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		lines := n.Lines()
		out := make([]text.Segment, 0, lines.Len())
		for i := 0; i < lines.Len(); i++ {
			out = append(out, lines.At(i))
		}
		return out
	}
	var out []text.Segment
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock {
			out = append(out, segments(c)...)
		}
	}
	return out
}

func joinLines(n ast.Node, src []byte, sep string) string {
	segs := segments(n)
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		if line := strings.TrimSpace(string(seg.Value(src))); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, sep)
}

// nodeSpan returns the raw span of n. With fromLineStart the span opens at
// the start of its first line so list markers are included.
func nodeSpan(n ast.Node, content string, fromLineStart bool) (span, bool) {
	segs := segments(n)
	if len(segs) == 0 {
		return span{}, false
	}
	start := segs[0].Start
	if fromLineStart {
		start = strings.LastIndexByte(content[:start], '\n') + 1
	}
	end := segs[len(segs)-1].Stop
	if end > len(content) {
		end = len(content)
	}
	return trimSpan(content, start, end)
}

// resolveOffsets locates chunk text in content. It tries, in order: an
// exact substring match at or after the chunk's first element, the spans of the elements the chunk was built
// from, containment against any element, and the first characters of the
// chunk. When all fail it returns the whole content with exact == false.
func resolveOffsets(content, chunkText string, items, all []element) (start, end int, exact bool) {
	t := strings.TrimSpace(chunkText)
	from := 0
	for i, it := range items {
		if i == 0 || it.span.start < from {
			from = it.span.start
		}
	}
	if t != "" && from <= len(content) {
		if idx := strings.Index(content[from:], t); idx >= 0 {
			return from + idx, from + idx + len(t), true
		}
	}

	if len(items) > 0 {
		start, end = len(content), 0
		for _, it := range items {
			start = min(start, it.span.start)
			end = max(end, it.span.end)
		}
		if start < end {
			return start, end, true
		}
	}

	for _, el := range all {
		if el.text == "" || t == "" {
			continue
		}
		if strings.Contains(t, el.text) || strings.Contains(el.text, t) {
			return el.span.start, el.span.end, true
		}
	}

	if runeLen(t) >= prefixProbe {
		probe := t[:advance(t, 0, prefixProbe)]
		if idx := strings.Index(content, probe); idx >= 0 {
			return idx, min(idx+len(t), len(content)), true
		}
	}

	return 0, len(content), false
}
