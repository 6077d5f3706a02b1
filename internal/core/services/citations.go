package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// snippetLimit bounds citation snippets, in characters.
const snippetLimit = 200

var (
	citationPattern   = regexp.MustCompile(`\[citation:([^\]]+)\]`)
	legacyPattern     = regexp.MustCompile(`\[Note #(\d+)(?:,\s*#(\d+))*\]`)
	legacyNumberRegex = regexp.MustCompile(`#(\d+)`)
)

// ExtractCitations parses [citation:ID] markers and resolves them against
// the context supplied for this turn. Unknown ids are kept with empty note
// fields. When the response has no such marker, [Note #N] markers are
// parsed against items in order instead.
func ExtractCitations(response string, items []domain.GroundedContext) []domain.Citation {
	byID := make(map[string]domain.GroundedContext, len(items))
	for _, it := range items {
		if it.CitationID != "" {
			if _, dup := byID[it.CitationID]; !dup {
				byID[it.CitationID] = it
			}
		}
	}

	citations := []domain.Citation{}
	seen := make(map[string]struct{})
	for _, m := range citationPattern.FindAllStringSubmatch(response, -1) {
		id := strings.TrimSpace(m[1])
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		c := domain.Citation{CitationID: id}
		if it, ok := byID[id]; ok {
			c.NoteID = it.NoteID
			c.NoteTitle = it.NoteTitle
			c.Start = it.Start
			c.End = it.End
			c.Snippet = snippet(it.Text)
		}
		citations = append(citations, c)
	}
	if len(citations) > 0 || len(items) == 0 {
		return citations
	}

	for _, n := range legacyNumbers(response, len(items)) {
		it := items[n-1]
		citations = append(citations, domain.Citation{
			CitationID: it.NoteID,
			NoteID:     it.NoteID,
			NoteTitle:  it.NoteTitle,
		})
	}
	return citations
}

// ExtractNoteCitations parses [Note #N] markers against the numbered notes
// handed to the model.
func ExtractNoteCitations(response string, notes []domain.SearchResult) []domain.Citation {
	citations := []domain.Citation{}
	for _, n := range legacyNumbers(response, len(notes)) {
		note := notes[n-1].Note
		citations = append(citations, domain.Citation{
			CitationID: note.ID,
			NoteID:     note.ID,
			NoteTitle:  note.Title,
		})
	}
	return citations
}

// legacyNumbers returns the distinct 1-based note numbers cited in
// response, in order of appearance. Numbers outside 1..count are dropped.
func legacyNumbers(response string, count int) []int {
	var out []int
	seen := make(map[int]struct{})
	for _, marker := range legacyPattern.FindAllString(response, -1) {
		for _, m := range legacyNumberRegex.FindAllStringSubmatch(marker, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 || n > count {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

func snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetLimit {
		return text
	}
	return string([]rune(text)[:snippetLimit]) + "..."
}
