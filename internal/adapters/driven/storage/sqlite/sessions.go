package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// sessionStore implements driven.SessionStore.
type sessionStore struct {
	store *Store
}

var _ driven.SessionStore = (*sessionStore)(nil)

// Save inserts or replaces a session.
func (s *sessionStore) Save(ctx context.Context, session *domain.ChatSession) error {
	messages := session.Messages
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshalling messages: %w", err)
	}
	noteIDs := session.RelevantNoteIDs
	if noteIDs == nil {
		noteIDs = []string{}
	}
	noteIDsJSON, err := json.Marshal(noteIDs)
	if err != nil {
		return fmt.Errorf("marshalling note ids: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, title, messages, relevant_note_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			messages = excluded.messages,
			relevant_note_ids = excluded.relevant_note_ids,
			updated_at = excluded.updated_at
	`, session.ID, session.Title, string(messagesJSON), string(noteIDsJSON),
		session.CreatedAt.UTC(), session.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *sessionStore) Get(ctx context.Context, id string) (*domain.ChatSession, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, title, messages, relevant_note_ids, created_at, updated_at
		FROM chat_sessions WHERE id = ?
	`, id)

	var session domain.ChatSession
	var messagesJSON, noteIDsJSON string
	if err := row.Scan(&session.ID, &session.Title, &messagesJSON, &noteIDsJSON,
		&session.CreatedAt, &session.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("unmarshaling messages: %w", err)
	}
	if err := json.Unmarshal([]byte(noteIDsJSON), &session.RelevantNoteIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling note ids: %w", err)
	}
	return &session, nil
}

// List returns session summaries, most recently updated first.
func (s *sessionStore) List(ctx context.Context) ([]domain.SessionSummary, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, title, json_array_length(messages), created_at, updated_at
		FROM chat_sessions
		ORDER BY updated_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	summaries := []domain.SessionSummary{}
	for rows.Next() {
		var sum domain.SessionSummary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.MessageCount, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return summaries, nil
}

// Delete removes a session.
func (s *sessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM chat_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
