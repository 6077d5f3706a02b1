package driven

// PromptStore serves prompt templates by name. Callers fall back to the
// built-in template when Load fails or returns "".
type PromptStore interface {
	Load(name string) (string, error)

	// Reload drops cached templates so edits on disk are picked up.
	Reload()
}

// Prompt names. Templates use {name} placeholders.
const (
	// PromptGroundedSystem is the citation-grounded chat system prompt.
	// Placeholders: {context_count}, {formatted_context}.
	PromptGroundedSystem = "grounded_system"

	// PromptNoContext is the system prompt used when retrieval found nothing.
	PromptNoContext = "no_context"

	// PromptConversationSummary summarises older turns.
	// Placeholder: {conversation}.
	PromptConversationSummary = "conversation_summary"

	// PromptNotesChat is the numbered-note chat system prompt used when
	// chunk retrieval is off. Placeholders: {note_count}, {formatted_notes}.
	PromptNotesChat = "notes_chat"

	// PromptNoNotes pairs with PromptNotesChat when no notes matched.
	PromptNoNotes = "no_notes"

	// PromptTreeSummary summarises a cluster of texts into one tree node.
	// Placeholder: {texts}.
	PromptTreeSummary = "tree_summary"

	// PromptRelationExtraction extracts relation triples from a note.
	// Placeholder: {text}.
	PromptRelationExtraction = "relation_extraction"
)
