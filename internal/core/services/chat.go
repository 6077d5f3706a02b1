package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

const (
	// DefaultLLMTimeout bounds one model round-trip.
	DefaultLLMTimeout = 120 * time.Second

	// streamBuffer bounds events queued for a slow consumer.
	streamBuffer = 16
)

// ChatConfig configures the chat service.
type ChatConfig struct {
	// ContextNotes bounds grounded context when a request sets no MaxResults.
	ContextNotes int

	// Timeout bounds each model call.
	Timeout time.Duration
}

// ChatService answers questions about the notes corpus.
type ChatService struct {
	router   driving.RetrievalService
	contexts *ContextManager
	llm      driven.LLMService
	search   driving.SearchService
	sessions driving.SessionService
	prompts  driven.PromptStore
	cfg      ChatConfig
}

// NewChatService creates a chat service.
// The llm and search parameters are optional (can be nil).
func NewChatService(
	router driving.RetrievalService,
	contexts *ContextManager,
	llm driven.LLMService,
	search driving.SearchService,
	cfg ChatConfig,
) *ChatService {
	if cfg.ContextNotes <= 0 {
		cfg.ContextNotes = DefaultContextConfig().ContextNotes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &ChatService{
		router:   router,
		contexts: contexts,
		llm:      llm,
		search:   search,
		cfg:      cfg,
	}
}

// SetSessionService enables recording of completed turns.
func (s *ChatService) SetSessionService(sessions driving.SessionService) {
	s.sessions = sessions
}

// SetPromptStore sets the prompt store for system prompts.
func (s *ChatService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
	if s.contexts != nil {
		s.contexts.SetPromptStore(store)
	}
}

// Stream answers one turn as an event stream. The channel carries one
// context event, then deltas, then exactly one done or error event, and
// is closed afterwards.
func (s *ChatService) Stream(ctx context.Context, req domain.ChatRequest) <-chan domain.StreamEvent {
	out := make(chan domain.StreamEvent, streamBuffer)
	go s.stream(ctx, req, out)
	return out
}

func (s *ChatService) stream(ctx context.Context, req domain.ChatRequest, out chan<- domain.StreamEvent) {
	defer close(out)

	emit := func(ev domain.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		logger.Warn("Chat stream failed: %v", err)
		ev := domain.StreamEvent{Type: domain.EventError, Error: err.Error()}
		select {
		case out <- ev:
		case <-ctx.Done():
			select {
			case out <- ev:
			default:
			}
		}
	}

	logger.Section("Chat Turn")
	intent, items, err := s.ground(ctx, req)
	if err != nil {
		fail(fmt.Errorf("retrieve context: %w", err))
		return
	}

	if !emit(s.contextEvent(req, intent, items)) {
		fail(ctx.Err())
		return
	}
	if s.llm == nil {
		fail(domain.ErrLLMUnavailable)
		return
	}

	prepared := s.prepare(ctx, req.Messages, groundedSystemPrompt(s.prompts, items))

	llmCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var full strings.Builder
	err = s.llm.ChatStream(llmCtx, prepared, driven.ChatOptions{}, func(delta string) error {
		if delta == "" {
			return nil
		}
		full.WriteString(delta)
		if !emit(domain.StreamEvent{Type: domain.EventDelta, Content: delta}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		fail(fmt.Errorf("llm stream: %w", err))
		return
	}

	answer := full.String()
	citations := ExtractCitations(answer, items)
	logger.Debug("Extracted %d citations", len(citations))
	s.record(ctx, req, answer, groundedNoteIDs(items))

	emit(domain.StreamEvent{Type: domain.EventDone, Citations: citations, FullResponse: answer})
}

// ground retrieves context for the latest user message, or the topic hint
// when there is none.
func (s *ChatService) ground(
	ctx context.Context, req domain.ChatRequest,
) (domain.Intent, []domain.GroundedContext, error) {
	query := req.LastUserMessage()
	if query == "" {
		query = req.TopicHint
	}
	if req.SkipRetrieval || query == "" || s.router == nil {
		return domain.IntentFactual, nil, nil
	}

	k := req.MaxResults
	if k <= 0 {
		k = s.cfg.ContextNotes
	}
	return s.router.Route(ctx, query, req.Intent, k)
}

func (s *ChatService) contextEvent(
	req domain.ChatRequest, intent domain.Intent, items []domain.GroundedContext,
) domain.StreamEvent {
	notes := make([]domain.NoteSummary, len(items))
	for i, it := range items {
		notes[i] = domain.NoteSummary{ID: it.NoteID, Title: it.NoteTitle, Content: it.Text, Score: it.Score}
	}
	total := 0
	if s.search != nil {
		total = s.search.TotalNotes()
	}
	return domain.StreamEvent{
		Type:       domain.EventContext,
		Items:      items,
		Intent:     intent,
		SessionID:  req.SessionID,
		TotalNotes: total,
		Notes:      notes,
	}
}

// prepare puts the system prompt first, followed by the windowed history.
// Caller supplied system messages are dropped; a conversation summary
// produced by the window is kept.
func (s *ChatService) prepare(ctx context.Context, messages []domain.ChatMessage, system string) []domain.ChatMessage {
	var windowed []domain.ChatMessage
	if s.contexts != nil {
		windowed = s.contexts.Window(ctx, messages)
	} else {
		for _, m := range messages {
			if m.Role != domain.RoleSystem {
				windowed = append(windowed, m)
			}
		}
	}

	prepared := make([]domain.ChatMessage, 0, len(windowed)+1)
	prepared = append(prepared, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	return append(prepared, windowed...)
}

// Complete answers one turn without streaming, using numbered notes.
func (s *ChatService) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	logger.Section("Chat Completion")

	notes := []domain.SearchResult{}
	system := loadPrompt(s.prompts, driven.PromptNoNotes)
	if !req.SkipRetrieval {
		var err error
		notes, err = s.contexts.Context(ctx, req.Messages, req.TopicHint, req.PreviousNoteIDs)
		if err != nil {
			return nil, fmt.Errorf("note context: %w", err)
		}
		system = notesSystemPrompt(s.prompts, notes)
	}
	logger.Debug("Context notes: %d", len(notes))

	prepared := s.prepare(ctx, req.Messages, system)

	llmCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	answer, err := s.llm.Chat(llmCtx, prepared, driven.ChatOptions{})
	if err != nil {
		return nil, fmt.Errorf("llm chat: %w", err)
	}

	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.Note.ID
	}
	s.record(ctx, req, answer, ids)

	return &domain.ChatResponse{
		Answer:    answer,
		Citations: ExtractNoteCitations(answer, notes),
		Notes:     notes,
	}, nil
}

// record stores the turn in its session. Failures are logged only.
func (s *ChatService) record(ctx context.Context, req domain.ChatRequest, answer string, noteIDs []string) {
	if s.sessions == nil || req.SessionID == "" {
		return
	}
	question := req.LastUserMessage()
	if question == "" {
		return
	}
	err := s.sessions.RecordTurn(ctx, req.SessionID,
		domain.ChatMessage{Role: domain.RoleUser, Content: question},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: answer},
		noteIDs)
	if err != nil {
		logger.Warn("Failed to record turn in session %s: %v", req.SessionID, err)
	}
}

// groundedNoteIDs returns the distinct note ids of items, in order.
func groundedNoteIDs(items []domain.GroundedContext) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.NoteID == "" {
			continue
		}
		if _, dup := seen[it.NoteID]; dup {
			continue
		}
		seen[it.NoteID] = struct{}{}
		ids = append(ids, it.NoteID)
	}
	return ids
}
