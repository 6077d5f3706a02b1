package domain

import "strings"

// SourceType identifies the retrieval backend that produced a result.
type SourceType string

// Available source types.
const (
	SourceVector SourceType = "vector"
	SourceGraph  SourceType = "graph"
	SourceTree   SourceType = "tree"
)

// GroundedContext is one retrieved excerpt handed to the model.
// Created fresh per query and never persisted.
type GroundedContext struct {
	// CitationID is unique within one turn's context set.
	CitationID string `json:"citation_id"`

	// NoteID is the originating note.
	NoteID string `json:"note_id"`

	// NoteTitle is the title of the originating note.
	NoteTitle string `json:"note_title"`

	// Text is the excerpt text.
	Text string `json:"text"`

	// Start and End are character offsets into the note content, when
	// known. Chunk offsets are bytes; the router converts them.
	Start *int `json:"start_char_idx"`
	End   *int `json:"end_char_idx"`

	// Score is higher for more relevant results. It is not bounded
	// to [0,1] across backends.
	Score float64 `json:"relevance_score"`

	// Source is the backend the excerpt came from.
	Source SourceType `json:"source_type"`

	// HeadingTrail lists ancestor headings of the excerpt.
	HeadingTrail []string `json:"heading_trail"`
}

// Intent is a coarse classification of a query's retrieval needs.
type Intent string

// Available intents.
const (
	IntentFactual    Intent = "factual"
	IntentRelational Intent = "relational"
	IntentSummary    Intent = "summary"
	IntentMixed      Intent = "mixed"
)

// IsValid returns true if the intent is recognised.
func (i Intent) IsValid() bool {
	switch i {
	case IntentFactual, IntentRelational, IntentSummary, IntentMixed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (i Intent) String() string {
	return string(i)
}

// ParseIntent parses an intent name case-insensitively.
func ParseIntent(s string) (Intent, bool) {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	return i, i.IsValid()
}

// Citation is a citation marker extracted from model output.
// NoteID and NoteTitle are empty when the id was not part of the
// context supplied for the turn.
type Citation struct {
	CitationID string `json:"citation_id"`
	NoteID     string `json:"note_id"`
	NoteTitle  string `json:"note_title"`
	Start      *int   `json:"start_char_idx"`
	End        *int   `json:"end_char_idx"`
	Snippet    string `json:"text_snippet"`
}

// Resolved reports whether the citation matched the supplied context.
func (c Citation) Resolved() bool {
	return c.NoteID != ""
}
