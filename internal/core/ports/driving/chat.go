package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// ChatService answers questions about the notes corpus.
type ChatService interface {
	// Stream answers one turn as a protocol event stream: one context event,
	// zero or more delta events, then exactly one done or error event.
	// The channel is closed after the terminal event. Cancelling ctx stops
	// consuming the upstream model.
	Stream(ctx context.Context, req domain.ChatRequest) <-chan domain.StreamEvent

	// Complete answers one turn without streaming, using numbered note context.
	Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// SessionService manages stored conversations.
type SessionService interface {
	// Create starts an empty session.
	Create(ctx context.Context) (*domain.ChatSession, error)

	// Get returns a session.
	Get(ctx context.Context, id string) (*domain.ChatSession, error)

	// List returns sessions, most recently updated first.
	List(ctx context.Context) ([]domain.SessionSummary, error)

	// Rename sets a session title.
	Rename(ctx context.Context, id, title string) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// RecordTurn appends a user message and the assistant reply, and stores
	// the notes used as context.
	RecordTurn(ctx context.Context, id string, user, assistant domain.ChatMessage, noteIDs []string) error
}
