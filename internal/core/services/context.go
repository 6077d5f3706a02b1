package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/prompts"
)

// Merge weights of the conversation-aware note context. Each secondary
// signal has one weight for notes already present and one for new notes.
const (
	primaryWeight = 1.0

	historyWeightSeen = 0.3
	historyWeightNew  = 0.5
	topicWeightSeen   = 0.4
	topicWeightNew    = 0.6
	chunkWeightSeen   = 0.5
	chunkWeightNew    = 0.8

	// continuityBoost multiplies the score of notes used in the previous turn.
	continuityBoost = 1.15

	// primaryOverfetch widens primary and chunk searches beyond the context size.
	primaryOverfetch = 5

	// secondaryResults bounds history and topic searches.
	secondaryResults = 5

	// historyTurns is how many recent user messages form the history query.
	historyTurns = 3

	// windowSlack lets a conversation grow this far past MaxRecentMessages
	// before it is summarised.
	windowSlack = 2

	summaryMaxTokens = 300
	summarizerRole   = "You are a concise summarizer."
	summaryPrefix    = "Summary of earlier conversation:\n"
)

// ContextConfig bounds conversation context.
type ContextConfig struct {
	// ContextNotes is the size of the merged note list.
	ContextNotes int

	// MaxRecentMessages survive summarisation verbatim.
	MaxRecentMessages int

	// SummarizationThreshold is the non-system message count above which
	// older messages are summarised. Zero uses MaxRecentMessages+2.
	SummarizationThreshold int
}

// DefaultContextConfig returns the conversation defaults.
func DefaultContextConfig() ContextConfig {
	c := domain.DefaultAppSettings().Chat
	return ContextConfig{
		ContextNotes:           c.ContextNotes,
		MaxRecentMessages:      c.MaxRecentMessages,
		SummarizationThreshold: c.SummarizationThreshold,
	}
}

// ContextManager builds the note context of a conversation and keeps the
// message window bounded.
type ContextManager struct {
	search  driving.SearchService
	chunks  driving.ChunkSearchService
	llm     driven.LLMService
	prompts driven.PromptStore
	cfg     ContextConfig
}

// NewContextManager creates a context manager.
// The chunks and llm parameters are optional (can be nil).
func NewContextManager(
	search driving.SearchService, chunks driving.ChunkSearchService, llm driven.LLMService, cfg ContextConfig,
) *ContextManager {
	def := DefaultContextConfig()
	if cfg.ContextNotes <= 0 {
		cfg.ContextNotes = def.ContextNotes
	}
	if cfg.MaxRecentMessages <= 0 {
		cfg.MaxRecentMessages = def.MaxRecentMessages
	}
	if cfg.SummarizationThreshold <= 0 {
		cfg.SummarizationThreshold = cfg.MaxRecentMessages + windowSlack
	}
	return &ContextManager{search: search, chunks: chunks, llm: llm, cfg: cfg}
}

// SetPromptStore sets the prompt store for the summary prompt.
func (m *ContextManager) SetPromptStore(store driven.PromptStore) {
	m.prompts = store
}

// merged is a note with its accumulated score.
type merged struct {
	result domain.SearchResult
	score  float64
	order  int
}

// Context returns the re-ranked notes for the conversation. previous holds
// the note ids used as context in the previous turn.
func (m *ContextManager) Context(
	ctx context.Context, messages []domain.ChatMessage, topic string, previous []string,
) ([]domain.SearchResult, error) {
	latest := domain.ChatRequest{Messages: messages}.LastUserMessage()
	if latest == "" && topic == "" {
		return []domain.SearchResult{}, nil
	}

	pool := make(map[string]*merged)
	add := func(results []domain.SearchResult, seenWeight, newWeight float64) {
		for _, r := range results {
			if e, ok := pool[r.Note.ID]; ok {
				e.score += r.Score * seenWeight
				continue
			}
			pool[r.Note.ID] = &merged{result: r, score: r.Score * newWeight, order: len(pool)}
		}
	}

	if latest != "" {
		primary, err := m.search.Search(ctx, latest, m.cfg.ContextNotes+primaryOverfetch)
		if err != nil {
			return nil, err
		}
		add(primary, primaryWeight, primaryWeight)
	}

	if users := userMessages(messages); len(users) > 1 {
		recent := users[max(0, len(users)-historyTurns):]
		history, err := m.search.Search(ctx, strings.Join(recent, " "), secondaryResults)
		if err != nil {
			return nil, err
		}
		add(history, historyWeightSeen, historyWeightNew)
	}

	if topic != "" {
		byTopic, err := m.search.Search(ctx, topic, secondaryResults)
		if err != nil {
			return nil, err
		}
		add(byTopic, topicWeightSeen, topicWeightNew)
	}

	if m.chunks != nil && latest != "" {
		byChunk, err := m.chunks.Search(ctx, latest, m.cfg.ContextNotes+primaryOverfetch)
		if err != nil {
			logger.Warn("Chunk context search failed: %v", err)
		} else {
			add(byChunk, chunkWeightSeen, chunkWeightNew)
		}
	}

	for _, id := range previous {
		if e, ok := pool[id]; ok {
			e.score *= continuityBoost
		}
	}

	ranked := make([]*merged, 0, len(pool))
	for _, e := range pool {
		ranked = append(ranked, e)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})
	if len(ranked) > m.cfg.ContextNotes {
		ranked = ranked[:m.cfg.ContextNotes]
	}

	out := make([]domain.SearchResult, len(ranked))
	for i, e := range ranked {
		out[i] = e.result
		out[i].Score = e.score
	}
	return out, nil
}

func userMessages(messages []domain.ChatMessage) []string {
	var out []string
	for _, msg := range messages {
		if msg.Role == domain.RoleUser {
			out = append(out, msg.Content)
		}
	}
	return out
}

// Window drops system messages and, once the conversation exceeds the
// summarisation threshold, replaces all but the most recent messages with
// one summary message. If summarisation fails only the recent messages
// are kept.
func (m *ContextManager) Window(ctx context.Context, messages []domain.ChatMessage) []domain.ChatMessage {
	convo := make([]domain.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role != domain.RoleSystem {
			convo = append(convo, msg)
		}
	}
	if len(convo) <= m.cfg.SummarizationThreshold {
		return convo
	}

	cut := max(0, len(convo)-m.cfg.MaxRecentMessages)
	older, recent := convo[:cut], convo[cut:]
	logger.Debug("Summarising %d older messages", len(older))

	summary, err := m.summarize(ctx, older)
	if err != nil {
		logger.Warn("Conversation summary failed, dropping older messages: %v", err)
		return recent
	}

	out := make([]domain.ChatMessage, 0, len(recent)+1)
	out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: summaryPrefix + summary})
	return append(out, recent...)
}

func (m *ContextManager) summarize(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if m.llm == nil {
		return "", domain.ErrLLMUnavailable
	}

	lines := make([]string, len(messages))
	for i, msg := range messages {
		lines[i] = titleRole(msg.Role) + ": " + msg.Content
	}
	prompt := prompts.Render(loadPrompt(m.prompts, driven.PromptConversationSummary), map[string]string{
		"conversation": strings.Join(lines, "\n"),
	})

	summary, err := m.llm.Chat(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: summarizerRole},
		{Role: domain.RoleUser, Content: prompt},
	}, driven.ChatOptions{MaxTokens: summaryMaxTokens})
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}

func titleRole(role string) string {
	if role == "" {
		return "User"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
