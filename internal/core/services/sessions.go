package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

const (
	// DefaultSessionTitle names sessions until their first question.
	DefaultSessionTitle = "New Chat"

	// autoTitleLength bounds titles derived from the first question.
	autoTitleLength = 80
)

// SessionService manages stored conversations.
type SessionService struct {
	store driven.SessionStore
	now   func() time.Time
}

// NewSessionService creates a session service.
func NewSessionService(store driven.SessionStore) *SessionService {
	return &SessionService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create starts an empty session.
func (s *SessionService) Create(ctx context.Context) (*domain.ChatSession, error) {
	now := s.now()
	session := &domain.ChatSession{
		ID:              uuid.New().String(),
		Title:           DefaultSessionTitle,
		Messages:        []domain.ChatMessage{},
		RelevantNoteIDs: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// Get returns a session.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.ChatSession, error) {
	return s.store.Get(ctx, id)
}

// List returns sessions, most recently updated first.
func (s *SessionService) List(ctx context.Context) ([]domain.SessionSummary, error) {
	return s.store.List(ctx)
}

// Rename sets a session title.
func (s *SessionService) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("session title: %w", domain.ErrInvalidInput)
	}
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	session.Title = title
	session.UpdatedAt = s.now()
	return s.store.Save(ctx, session)
}

// Delete removes a session.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// RecordTurn appends a question and its answer and remembers the notes
// used as context. An untitled session is titled from its first question.
func (s *SessionService) RecordTurn(
	ctx context.Context, id string, user, assistant domain.ChatMessage, noteIDs []string,
) error {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	session.Messages = append(session.Messages, user, assistant)
	session.RelevantNoteIDs = append([]string{}, noteIDs...)
	if session.Title == DefaultSessionTitle {
		session.Title = AutoTitle(session.Messages)
	}
	session.UpdatedAt = s.now()

	if err := s.store.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// AutoTitle derives a title from the first non-empty user message.
func AutoTitle(messages []domain.ChatMessage) string {
	for _, m := range messages {
		text := strings.TrimSpace(m.Content)
		if m.Role != domain.RoleUser || text == "" {
			continue
		}
		if utf8.RuneCountInString(text) > autoTitleLength {
			return string([]rune(text)[:autoTitleLength]) + "..."
		}
		return text
	}
	return DefaultSessionTitle
}
