package domain

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message of a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// ChatRequest is one chat turn.
type ChatRequest struct {
	// Messages is the full history, latest user message last.
	Messages []ChatMessage

	// SessionID links the turn to a stored session. Optional.
	SessionID string

	// TopicHint narrows legacy note retrieval. Optional.
	TopicHint string

	// MaxResults bounds the grounded context. Zero uses the default.
	MaxResults int

	// Intent overrides intent classification. Empty classifies the query.
	Intent Intent

	// PreviousNoteIDs were relevant in the previous turn.
	PreviousNoteIDs []string

	// SkipRetrieval answers without note context.
	SkipRetrieval bool
}

// LastUserMessage returns the content of the latest user message.
func (r ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// ChatSession is a stored conversation.
type ChatSession struct {
	ID       string
	Title    string
	Messages []ChatMessage

	// RelevantNoteIDs are the notes used as context in the latest turn.
	RelevantNoteIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionSummary is the listing form of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StreamEventType discriminates stream events.
type StreamEventType string

// Stream event types. Exactly one terminal event (done or error) ends a stream.
const (
	EventContext StreamEventType = "context"
	EventDelta   StreamEventType = "delta"
	EventDone    StreamEventType = "done"
	EventError   StreamEventType = "error"
)

// NoteSummary is the flat note listing carried on the context event.
type NoteSummary struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// StreamEvent is one event of the chat streaming protocol.
// Only the fields of its Type are serialised.
type StreamEvent struct {
	Type StreamEventType

	// context
	Items      []GroundedContext
	Intent     Intent
	SessionID  string
	TotalNotes int
	Notes      []NoteSummary

	// delta
	Content string

	// done
	Citations    []Citation
	FullResponse string

	// error
	Error string
}

// IsTerminal reports whether the event ends the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// MarshalJSON writes the event in its wire form.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventContext:
		items := e.Items
		if items == nil {
			items = []GroundedContext{}
		}
		notes := e.Notes
		if notes == nil {
			notes = []NoteSummary{}
		}
		return json.Marshal(struct {
			Type       StreamEventType   `json:"type"`
			Items      []GroundedContext `json:"items"`
			Intent     Intent            `json:"intent"`
			SessionID  string            `json:"session_id,omitempty"`
			TotalNotes int               `json:"total_notes"`
			Notes      []NoteSummary     `json:"notes"`
		}{e.Type, items, e.Intent, e.SessionID, e.TotalNotes, notes})
	case EventDelta:
		return json.Marshal(struct {
			Type    StreamEventType `json:"type"`
			Content string          `json:"content"`
		}{e.Type, e.Content})
	case EventDone:
		citations := e.Citations
		if citations == nil {
			citations = []Citation{}
		}
		return json.Marshal(struct {
			Type         StreamEventType `json:"type"`
			Citations    []Citation      `json:"citations"`
			FullResponse string          `json:"full_response"`
		}{e.Type, citations, e.FullResponse})
	default:
		return json.Marshal(struct {
			Type  StreamEventType `json:"type"`
			Error string          `json:"error"`
		}{EventError, e.Error})
	}
}

// ChatResponse is a complete, non-streamed chat answer.
type ChatResponse struct {
	// Answer is the model reply.
	Answer string

	// Citations are extracted from Answer.
	Citations []Citation

	// Notes are the notes supplied as context, in prompt order.
	Notes []SearchResult
}
