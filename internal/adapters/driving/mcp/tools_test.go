package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.SearchResult{
				{
					Note: domain.Note{
						ID:      "budget.json",
						Title:   "Budget",
						Content: "Rent is 900.",
						URI:     "/notes/budget.json",
						Tag:     "finance",
					},
					Score:         0.81,
					SemanticScore: 0.9,
					KeywordScore:  0.6,
				},
			},
		}

		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "rent", Limit: 5})

		require.NoError(t, err)
		assert.Equal(t, 5, mockSearch.lastLimit)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		r := output.Results[0]
		assert.Equal(t, "budget.json", r.NoteID)
		assert.Equal(t, "Budget", r.Title)
		assert.Equal(t, "/notes/budget.json", r.URI)
		assert.Equal(t, "finance", r.Tag)
		assert.Equal(t, 0.81, r.Score)
		assert.Equal(t, "Rent is 900.", r.Content)
	})

	t.Run("default limit is 10", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.NoError(t, err)
		assert.Equal(t, 10, mockSearch.lastLimit)
		assert.Equal(t, 0, output.Count)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{err: errors.New("search failed")}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleSearchChunks(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the matched chunk as content", func(t *testing.T) {
		chunks := &mockSearchService{
			results: []domain.SearchResult{{
				Note: domain.Note{ID: "trip.md", Title: "Trip", Content: "whole note"},
				MatchedChunk: &domain.ChunkMatch{
					Chunk: domain.Chunk{NoteID: "trip.md", Text: "Book flights", HeadingTrail: []string{"Trip", "Plan"}},
					Score: 0.7,
				},
				Score: 0.7,
			}},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, ChunkSearch: chunks})
		require.NoError(t, err)

		_, output, err := server.handleSearchChunks(ctx, nil, SearchInput{Query: "flights"})

		require.NoError(t, err)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "Book flights", output.Results[0].Content)
		assert.Equal(t, []string{"Trip", "Plan"}, output.Results[0].HeadingTrail)
	})

	t.Run("unavailable without chunk search", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, _, err = server.handleSearchChunks(ctx, nil, SearchInput{Query: "x"})

		assert.ErrorIs(t, err, ErrToolUnavailable)
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()
	items := []domain.GroundedContext{{CitationID: "budget.json", NoteID: "budget.json", NoteTitle: "Budget", Text: "Rent is 900."}}
	citations := []domain.Citation{{CitationID: "budget.json", NoteID: "budget.json", NoteTitle: "Budget"}}

	t.Run("collects answer and citations", func(t *testing.T) {
		chat := &mockChatService{events: []domain.StreamEvent{
			{Type: domain.EventContext, Intent: domain.IntentFactual, Items: items},
			{Type: domain.EventDelta, Content: "Rent is 900 "},
			{Type: domain.EventDelta, Content: "[budget.json]."},
			{Type: domain.EventDone, FullResponse: "Rent is 900 [budget.json].", Citations: citations},
		}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Chat: chat})
		require.NoError(t, err)

		_, out, err := server.handleAsk(ctx, nil, AskInput{Question: "What is my rent?", Intent: "Factual", Limit: 3})

		require.NoError(t, err)
		assert.Equal(t, "Rent is 900 [budget.json].", out.Answer)
		assert.Equal(t, domain.IntentFactual, out.Intent)
		assert.Equal(t, citations, out.Citations)
		assert.Equal(t, items, out.Context)
		assert.Equal(t, "What is my rent?", chat.lastReq.LastUserMessage())
		assert.Equal(t, domain.IntentFactual, chat.lastReq.Intent)
		assert.Equal(t, 3, chat.lastReq.MaxResults)
	})

	t.Run("error event fails the call", func(t *testing.T) {
		chat := &mockChatService{events: []domain.StreamEvent{
			{Type: domain.EventContext},
			{Type: domain.EventError, Error: "llm unavailable"},
		}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Chat: chat})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "q"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm unavailable")
	})

	t.Run("rejects unknown intent", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Chat: &mockChatService{}})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "q", Intent: "poetic"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleClusters(t *testing.T) {
	clusters := &mockClusterService{clusters: []domain.Cluster{{
		ID:       2,
		Keywords: []string{"rent", "budget"},
		Notes:    []domain.Note{{ID: "a", Title: "Budget"}, {ID: "b", Title: "Lease"}},
		Size:     2,
	}}}
	server, err := NewServer(&Ports{Search: &mockSearchService{}, Clusters: clusters})
	require.NoError(t, err)

	_, out, err := server.handleClusters(context.Background(), nil, ClustersInput{K: 4})

	require.NoError(t, err)
	assert.Equal(t, 4, clusters.lastK)
	require.Len(t, out.Clusters, 1)
	assert.Equal(t, ClusterOutput{
		ID:       2,
		Keywords: []string{"rent", "budget"},
		Size:     2,
		NoteIDs:  []string{"a", "b"},
		Titles:   []string{"Budget", "Lease"},
	}, out.Clusters[0])
}
