package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// mockIndexService implements driving.IndexService for testing.
type mockIndexService struct {
	builds    int
	lastForce bool
	err       error

	// onBuild is called with the build count after each build.
	onBuild func(n int)
}

func (m *mockIndexService) Build(_ context.Context, force bool) (*driving.IndexReport, error) {
	m.builds++
	m.lastForce = force
	if m.onBuild != nil {
		m.onBuild(m.builds)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &driving.IndexReport{
		Notes:            3,
		Chunks:           7,
		NotesFromCache:   true,
		Relations:        true,
		ChunkingStrategy: string(domain.ChunkingStructure),
	}, nil
}

// mockSearchService implements driving.SearchService and
// driving.ChunkSearchService for testing.
type mockSearchService struct {
	results   []domain.SearchResult
	lastQuery string
	lastLimit int
}

func (m *mockSearchService) Search(_ context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastLimit = maxResults
	return m.results, nil
}

func (m *mockSearchService) SearchByImage(_ context.Context, path string, maxResults int) ([]domain.SearchResult, error) {
	m.lastQuery = path
	m.lastLimit = maxResults
	return m.results, nil
}

func (m *mockSearchService) TotalNotes() int {
	return len(m.results)
}

// mockSearchServiceError always fails.
type mockSearchServiceError struct{}

func (m *mockSearchServiceError) Search(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	return nil, errors.New("index unavailable")
}

func (m *mockSearchServiceError) SearchByImage(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	return nil, errors.New("index unavailable")
}

func (m *mockSearchServiceError) TotalNotes() int {
	return 0
}

// mockClusterService implements driving.ClusterService for testing.
type mockClusterService struct {
	clusters []domain.Cluster
	lastK    int
}

func (m *mockClusterService) Clusters(_ context.Context, k int) ([]domain.Cluster, error) {
	m.lastK = k
	return m.clusters, nil
}

// mockChatService replays a fixed event sequence for every turn.
type mockChatService struct {
	events    []domain.StreamEvent
	response  *domain.ChatResponse
	requests  []domain.ChatRequest
	streamCtx context.Context
}

func (m *mockChatService) Stream(ctx context.Context, req domain.ChatRequest) <-chan domain.StreamEvent {
	m.requests = append(m.requests, req)
	m.streamCtx = ctx
	out := make(chan domain.StreamEvent, len(m.events))
	for _, ev := range m.events {
		out <- ev
	}
	close(out)
	return out
}

func (m *mockChatService) Complete(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.requests = append(m.requests, req)
	if m.response == nil {
		return nil, domain.ErrLLMUnavailable
	}
	return m.response, nil
}

// mockSessionService keeps sessions in memory.
type mockSessionService struct {
	sessions map[string]*domain.ChatSession
	nextID   int
}

func newMockSessionService() *mockSessionService {
	return &mockSessionService{sessions: make(map[string]*domain.ChatSession)}
}

func (m *mockSessionService) Create(_ context.Context) (*domain.ChatSession, error) {
	m.nextID++
	s := &domain.ChatSession{ID: fmt.Sprintf("session-%d", m.nextID), Title: "New Chat"}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockSessionService) Get(_ context.Context, id string) (*domain.ChatSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *mockSessionService) List(_ context.Context) ([]domain.SessionSummary, error) {
	out := make([]domain.SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, domain.SessionSummary{
			ID:           s.ID,
			Title:        s.Title,
			MessageCount: len(s.Messages),
			UpdatedAt:    time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		})
	}
	return out, nil
}

func (m *mockSessionService) Rename(ctx context.Context, id, title string) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Title = title
	return nil
}

func (m *mockSessionService) Delete(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionService) RecordTurn(ctx context.Context, id string, user, assistant domain.ChatMessage, noteIDs []string) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Messages = append(s.Messages, user, assistant)
	s.RelevantNoteIDs = noteIDs
	return nil
}

// mockNoteService implements driving.NoteService over a fixed slice.
type mockNoteService struct {
	notes    []domain.Note
	excluded []string
	tagged   map[string]string
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
	return domain.Note{}, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
}

func (m *mockNoteService) TagNotes(_ context.Context, ids []string, tag string) error {
	if m.tagged == nil {
		m.tagged = make(map[string]string)
	}
	for _, id := range ids {
		m.tagged[id] = tag
	}
	return nil
}

func (m *mockNoteService) RemoveTag(_ context.Context, id string) error {
	delete(m.tagged, id)
	return nil
}

func (m *mockNoteService) RemoveTagFromAll(_ context.Context, tag string) (int, error) {
	n := 0
	for _, note := range m.notes {
		if note.Tag == tag {
			n++
		}
	}
	return n, nil
}

func (m *mockNoteService) Tags() []domain.TagCount {
	counts := make(map[string]int)
	var order []string
	for _, n := range m.notes {
		if n.Tag == "" {
			continue
		}
		if counts[n.Tag] == 0 {
			order = append(order, n.Tag)
		}
		counts[n.Tag]++
	}
	out := make([]domain.TagCount, len(order))
	for i, t := range order {
		out[i] = domain.TagCount{Tag: t, Count: counts[t]}
	}
	return out
}

func (m *mockNoteService) ExcludedTags() []string {
	return m.excluded
}

func (m *mockNoteService) SetExcludedTags(_ context.Context, tags []string) error {
	m.excluded = tags
	return nil
}

func testNotes() []domain.Note {
	return []domain.Note{
		{
			ID:      "budget.json",
			Title:   "Budget",
			Content: "Rent is 900 a month.",
			Tag:     "finance",
			Source:  "keep",
			Labels:  []string{"money"},
			Created: time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		},
		{ID: "trip.md", Title: "Trip", Content: "Book flights to Osaka.", Source: "markdown"},
		{ID: "diary.json", Title: "Diary", Content: "Private thoughts.", Tag: "private", Source: "keep"},
	}
}

// setupTestServices installs mocks for every service and returns a
// cleanup that restores the previous services and flag values.
func setupTestServices() func() {
	old := Services{
		Index:       indexService,
		Search:      searchService,
		ChunkSearch: chunkSearchService,
		Clusters:    clusterService,
		Retrieval:   retrievalService,
		Chat:        chatService,
		Sessions:    sessionService,
		Notes:       noteService,
		Settings:    settingsService,
		Watcher:     noteWatcher,
	}

	results := []domain.SearchResult{{
		Note:          testNotes()[0],
		Score:         0.82,
		SemanticScore: 0.9,
		KeywordScore:  0.5,
	}}
	SetServices(Services{
		Index:       &mockIndexService{},
		Search:      &mockSearchService{results: results},
		ChunkSearch: &mockSearchService{results: results},
		Clusters:    &mockClusterService{},
		Chat:        &mockChatService{},
		Sessions:    newMockSessionService(),
		Notes:       &mockNoteService{notes: testNotes(), excluded: []string{"private"}},
	})

	return func() {
		SetServices(old)
		resetFlags()
	}
}

// resetFlags restores command flag variables to their defaults.
func resetFlags() {
	searchLimit, searchJSON, searchChunks = 10, false, false
	chatSession, chatNew, chatJSON, chatIntent, chatLimit, askComplete = "", false, false, "", 0, false
	clustersK, clustersPerList, clustersJSON = 0, 5, false
	notesTag, notesLimit = "", 0
	indexForce, indexWatch = false, false
	versionVerbose = false
}
