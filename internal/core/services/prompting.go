package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/prompts"
)

// noteTimeLayout renders note timestamps in prompts.
const noteTimeLayout = "2006-01-02 15:04:05"

// loadPrompt returns the named template from store, falling back to the
// built-in default.
func loadPrompt(store driven.PromptStore, name string) string {
	return prompts.Resolve(store, name)
}

// FormatGroundedContext renders excerpts for the grounded system prompt.
func FormatGroundedContext(items []domain.GroundedContext) string {
	blocks := make([]string, 0, len(items))
	for i, it := range items {
		n := i + 1
		var b strings.Builder
		fmt.Fprintf(&b, "--- Excerpt #%d ---\n", n)
		fmt.Fprintf(&b, "Citation ID: %s\n", it.CitationID)
		b.WriteString("Source: " + it.NoteTitle)
		if len(it.HeadingTrail) > 0 {
			b.WriteString(" > " + strings.Join(it.HeadingTrail, " > "))
		}
		fmt.Fprintf(&b, "\nType: %s\n", it.Source)
		fmt.Fprintf(&b, "\n%s\n", it.Text)
		fmt.Fprintf(&b, "--- End Excerpt #%d ---", n)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// FormatNotes renders numbered notes for the legacy notes prompt.
func FormatNotes(results []domain.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		n := i + 1
		note := r.Note
		title := note.Title
		if title == "" {
			title = "Untitled Note"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "--- Note #%d ---\nTitle: %s\nCreated: %s | Last edited: %s",
			n, title, formatNoteTime(note.Created), formatNoteTime(note.Edited))
		if note.Tag != "" {
			b.WriteString("\nTags: " + note.Tag)
		}
		fmt.Fprintf(&b, "\n\n%s\n--- End Note #%d ---", note.Content, n)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func formatNoteTime(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	return t.Format(noteTimeLayout)
}

// groundedSystemPrompt builds the system prompt for the streaming path.
func groundedSystemPrompt(store driven.PromptStore, items []domain.GroundedContext) string {
	if len(items) == 0 {
		return loadPrompt(store, driven.PromptNoContext)
	}
	return prompts.Render(loadPrompt(store, driven.PromptGroundedSystem), map[string]string{
		"context_count":     strconv.Itoa(len(items)),
		"formatted_context": FormatGroundedContext(items),
	})
}

// notesSystemPrompt builds the system prompt for the legacy path.
func notesSystemPrompt(store driven.PromptStore, notes []domain.SearchResult) string {
	if len(notes) == 0 {
		return loadPrompt(store, driven.PromptNoContext)
	}
	return prompts.Render(loadPrompt(store, driven.PromptNotesChat), map[string]string{
		"note_count":      strconv.Itoa(len(notes)),
		"formatted_notes": FormatNotes(notes),
	})
}
