package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func user(content string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleUser, Content: content}
}

func assistant(content string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleAssistant, Content: content}
}

func TestNewContextManager_Defaults(t *testing.T) {
	m := NewContextManager(&mockSearch{}, nil, nil, ContextConfig{MaxRecentMessages: 4})

	assert.Equal(t, 15, m.cfg.ContextNotes)
	assert.Equal(t, 4, m.cfg.MaxRecentMessages)
	assert.Equal(t, 6, m.cfg.SummarizationThreshold)
}

func TestContextManager_Context_Merges(t *testing.T) {
	search := &mockSearch{results: map[string][]domain.SearchResult{
		"rent": {
			searchResult("n1", "Budget", "", 0.8),
			searchResult("n2", "Lease", "", 0.4),
		},
		"trip plans rent": {
			searchResult("n2", "Lease", "", 0.5),
			searchResult("n3", "Travel", "", 0.5),
		},
		"money": {searchResult("n3", "Travel", "", 0.2)},
	}}
	m := NewContextManager(search, nil, nil, DefaultContextConfig())
	messages := []domain.ChatMessage{user("trip plans"), assistant("ok"), user("rent")}

	results, err := m.Context(context.Background(), messages, "money", []string{"n2"})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "n1", results[0].Note.ID)
	assert.InDelta(t, 0.8, results[0].Score, 1e-9)
	assert.Equal(t, "n2", results[1].Note.ID)
	assert.InDelta(t, (0.4+0.5*0.3)*1.15, results[1].Score, 1e-9)
	assert.Equal(t, "n3", results[2].Note.ID)
	assert.InDelta(t, 0.5*0.5+0.2*0.4, results[2].Score, 1e-9)
	assert.Equal(t, []string{"rent", "trip plans rent", "money"}, search.queries)
}

func TestContextManager_Context_ChunkSignal(t *testing.T) {
	search := &mockSearch{results: map[string][]domain.SearchResult{
		"rent": {searchResult("n1", "Budget", "", 0.5)},
	}}
	chunks := &mockSearch{results: map[string][]domain.SearchResult{
		"rent": {
			searchResult("n1", "Budget", "", 0.5),
			searchResult("n4", "Lease", "", 1.0),
		},
	}}
	m := NewContextManager(search, chunks, nil, DefaultContextConfig())

	results, err := m.Context(context.Background(), []domain.ChatMessage{user("rent")}, "", nil)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "n4", results[0].Note.ID)
	assert.InDelta(t, 0.8, results[0].Score, 1e-9)
	assert.InDelta(t, 0.5+0.5*0.5, results[1].Score, 1e-9)
}

func TestContextManager_Context_ChunkFailureIgnored(t *testing.T) {
	search := &mockSearch{results: map[string][]domain.SearchResult{
		"rent": {searchResult("n1", "Budget", "", 0.5)},
	}}
	m := NewContextManager(search, &mockSearch{err: assert.AnError}, nil, DefaultContextConfig())

	results, err := m.Context(context.Background(), []domain.ChatMessage{user("rent")}, "", nil)

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestContextManager_Context_Truncates(t *testing.T) {
	var hits []domain.SearchResult
	for _, id := range []string{"a", "b", "c", "d"} {
		hits = append(hits, searchResult(id, "", "", 0.5))
	}
	search := &mockSearch{results: map[string][]domain.SearchResult{"q": hits}}
	m := NewContextManager(search, nil, nil, ContextConfig{ContextNotes: 2})

	results, err := m.Context(context.Background(), []domain.ChatMessage{user("q")}, "", nil)

	require.NoError(t, err)
	require.Len(t, results, 2)
	// Ties keep retrieval order
	assert.Equal(t, "a", results[0].Note.ID)
	assert.Equal(t, "b", results[1].Note.ID)
}

func TestContextManager_Context_Empty(t *testing.T) {
	search := &mockSearch{}
	m := NewContextManager(search, nil, nil, DefaultContextConfig())

	results, err := m.Context(context.Background(), nil, "", nil)

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, search.queries)
}

func TestContextManager_Context_SearchError(t *testing.T) {
	m := NewContextManager(&mockSearch{err: assert.AnError}, nil, nil, DefaultContextConfig())

	_, err := m.Context(context.Background(), []domain.ChatMessage{user("q")}, "", nil)

	assert.ErrorIs(t, err, assert.AnError)
}

func longConversation() []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "caller system"},
		user("u1"), assistant("a1"),
		user("u2"), assistant("a2"),
	}
}

func TestContextManager_Window_UnderThreshold(t *testing.T) {
	llm := &mockLLM{reply: "summary"}
	m := NewContextManager(&mockSearch{}, nil, llm, ContextConfig{MaxRecentMessages: 2, SummarizationThreshold: 4})

	window := m.Window(context.Background(), longConversation())

	assert.Equal(t, longConversation()[1:], window)
	assert.Empty(t, llm.calls)
}

func TestContextManager_Window_Summarises(t *testing.T) {
	llm := &mockLLM{reply: "  they discussed u1  "}
	m := NewContextManager(&mockSearch{}, nil, llm, ContextConfig{MaxRecentMessages: 2, SummarizationThreshold: 3})

	window := m.Window(context.Background(), longConversation())

	require.Len(t, window, 3)
	assert.Equal(t, domain.RoleSystem, window[0].Role)
	assert.Equal(t, "Summary of earlier conversation:\nthey discussed u1", window[0].Content)
	assert.Equal(t, []domain.ChatMessage{user("u2"), assistant("a2")}, window[1:])

	call := llm.lastCall()
	require.Len(t, call, 2)
	assert.Equal(t, domain.RoleSystem, call[0].Role)
	assert.Contains(t, call[1].Content, "User: u1\nAssistant: a1")
	assert.NotContains(t, call[1].Content, "u2")
	assert.Equal(t, 300, llm.opts[0].MaxTokens)
}

func TestContextManager_Window_SummaryFailure(t *testing.T) {
	tests := []struct {
		name string
		llm  *mockLLM
	}{
		{"llm error", &mockLLM{chatErr: assert.AnError}},
		{"empty summary", &mockLLM{reply: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewContextManager(&mockSearch{}, nil, tt.llm,
				ContextConfig{MaxRecentMessages: 2, SummarizationThreshold: 3})

			window := m.Window(context.Background(), longConversation())

			assert.Equal(t, []domain.ChatMessage{user("u2"), assistant("a2")}, window)
		})
	}
}

func TestContextManager_Window_NoLLM(t *testing.T) {
	m := NewContextManager(&mockSearch{}, nil, nil, ContextConfig{MaxRecentMessages: 2, SummarizationThreshold: 3})

	window := m.Window(context.Background(), longConversation())

	assert.Len(t, window, 2)
}
