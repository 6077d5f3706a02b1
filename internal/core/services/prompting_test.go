package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/prompts"
)

// stubPrompts implements driven.PromptStore from a map.
type stubPrompts map[string]string

func (s stubPrompts) Load(name string) (string, error) {
	text, ok := s[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}

func (s stubPrompts) Reload() {}

func TestFormatGroundedContext(t *testing.T) {
	items := []domain.GroundedContext{
		{CitationID: "n1_c0", NoteTitle: "Budget", Text: "Rent is 900", Source: domain.SourceVector,
			HeadingTrail: []string{"Budget", "Housing"}},
		{CitationID: "n2", NoteTitle: "Travel", Text: "Japan", Source: domain.SourceGraph},
	}

	got := FormatGroundedContext(items)

	want := "--- Excerpt #1 ---\n" +
		"Citation ID: n1_c0\n" +
		"Source: Budget > Budget > Housing\n" +
		"Type: vector\n" +
		"\nRent is 900\n" +
		"--- End Excerpt #1 ---\n\n" +
		"--- Excerpt #2 ---\n" +
		"Citation ID: n2\n" +
		"Source: Travel\n" +
		"Type: graph\n" +
		"\nJapan\n" +
		"--- End Excerpt #2 ---"
	assert.Equal(t, want, got)
}

func TestFormatNotes(t *testing.T) {
	tagged := note("n1", "Budget", "Rent is 900")
	tagged.Tag = "finance"
	untitled := domain.Note{ID: "n2", Content: "loose thought"}

	got := FormatNotes([]domain.SearchResult{{Note: tagged}, {Note: untitled}})

	want := "--- Note #1 ---\n" +
		"Title: Budget\n" +
		"Created: 2024-01-02 03:04:05 | Last edited: 2024-02-03 04:05:06\n" +
		"Tags: finance\n\n" +
		"Rent is 900\n" +
		"--- End Note #1 ---\n\n" +
		"--- Note #2 ---\n" +
		"Title: Untitled Note\n" +
		"Created: Unknown | Last edited: Unknown\n\n" +
		"loose thought\n" +
		"--- End Note #2 ---"
	assert.Equal(t, want, got)
}

func TestGroundedSystemPrompt(t *testing.T) {
	noContext, _ := prompts.Default(driven.PromptNoContext)
	assert.Equal(t, noContext, groundedSystemPrompt(nil, nil))

	got := groundedSystemPrompt(nil, groundedItems())
	assert.Contains(t, got, "The following 2 excerpts")
	assert.Contains(t, got, "Citation ID: n1_c0")
	assert.NotContains(t, got, "{formatted_context}")
}

func TestLoadPrompt_StoreOverrides(t *testing.T) {
	store := stubPrompts{driven.PromptGroundedSystem: "Context ({context_count}):\n{formatted_context}"}

	got := groundedSystemPrompt(store, groundedItems()[:1])

	assert.Equal(t, "Context (1):\n"+FormatGroundedContext(groundedItems()[:1]), got)
}

func TestLoadPrompt_FallsBackToDefault(t *testing.T) {
	def, _ := prompts.Default(driven.PromptNoNotes)

	assert.Equal(t, def, loadPrompt(stubPrompts{}, driven.PromptNoNotes))
	assert.Equal(t, def, loadPrompt(stubPrompts{driven.PromptNoNotes: ""}, driven.PromptNoNotes))
}

func TestNotesSystemPrompt(t *testing.T) {
	got := notesSystemPrompt(nil, []domain.SearchResult{searchResult("n1", "Budget", "Rent", 1)})

	assert.Contains(t, got, "The following 1 notes")
	assert.Contains(t, got, "--- Note #1 ---")
}
