package mcp

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService
// and driving.ChunkSearchService.
type mockSearchService struct {
	results   []domain.SearchResult
	err       error
	lastLimit int
}

func (m *mockSearchService) Search(_ context.Context, _ string, maxResults int) ([]domain.SearchResult, error) {
	m.lastLimit = maxResults
	return m.results, m.err
}

func (m *mockSearchService) SearchByImage(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	return m.results, m.err
}

func (m *mockSearchService) TotalNotes() int {
	return len(m.results)
}

// mockClusterService is a mock implementation of driving.ClusterService.
type mockClusterService struct {
	clusters []domain.Cluster
	err      error
	lastK    int
}

func (m *mockClusterService) Clusters(_ context.Context, k int) ([]domain.Cluster, error) {
	m.lastK = k
	return m.clusters, m.err
}

// mockChatService replays a fixed event sequence.
type mockChatService struct {
	events  []domain.StreamEvent
	lastReq domain.ChatRequest
}

func (m *mockChatService) Stream(_ context.Context, req domain.ChatRequest) <-chan domain.StreamEvent {
	m.lastReq = req
	out := make(chan domain.StreamEvent, len(m.events))
	for _, ev := range m.events {
		out <- ev
	}
	close(out)
	return out
}

func (m *mockChatService) Complete(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
	return nil, domain.ErrLLMUnavailable
}

// mockNoteService is a mock implementation of driving.NoteService.
// Notes tagged with an excluded tag are hidden from Notes.
type mockNoteService struct {
	notes    []domain.Note
	tags     []domain.TagCount
	excluded []string
}

func (m *mockNoteService) Notes() []domain.Note {
	hidden := make(map[string]bool, len(m.excluded))
	for _, t := range m.excluded {
		hidden[t] = true
	}
	var out []domain.Note
	for _, n := range m.notes {
		if !hidden[n.Tag] {
			out = append(out, n)
		}
	}
	return out
}

func (m *mockNoteService) Get(id string) (domain.Note, error) {
	for _, n := range m.notes {
		if n.ID == id {
			return n, nil
		}
	}
	return domain.Note{}, fmt.Errorf("note %q: %w", id, domain.ErrNotFound)
}

func (m *mockNoteService) TagNotes(_ context.Context, _ []string, _ string) error {
	return nil
}

func (m *mockNoteService) RemoveTag(_ context.Context, _ string) error {
	return nil
}

func (m *mockNoteService) RemoveTagFromAll(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (m *mockNoteService) Tags() []domain.TagCount {
	return m.tags
}

func (m *mockNoteService) ExcludedTags() []string {
	return m.excluded
}

func (m *mockNoteService) SetExcludedTags(_ context.Context, _ []string) error {
	return nil
}
