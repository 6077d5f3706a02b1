package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService with bag-of-words
// vectors over a fixed vocabulary, one dimension per word.
type mockEmbedder struct {
	mu       sync.Mutex
	vocab    []string
	dims     int
	batches  int
	embedded int
	err      error
}

func newMockEmbedder(vocab ...string) *mockEmbedder {
	return &mockEmbedder{vocab: vocab}
}

func (m *mockEmbedder) vector(text string) []float32 {
	text = strings.ToLower(text)
	vec := make([]float32, len(m.vocab))
	for i, w := range m.vocab {
		vec[i] = float32(strings.Count(text, w))
	}
	return vec
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.batches++
	m.embedded += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return len(m.vocab)
}

func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockImageEmbedder implements driven.ImageEmbedder from fixed vectors.
type mockImageEmbedder struct {
	text    map[string][]float32
	images  map[string][]float32
	textErr error
}

func (m *mockImageEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if m.textErr != nil {
		return nil, m.textErr
	}
	if v, ok := m.text[text]; ok {
		return v, nil
	}
	return []float32{0, 0}, nil
}

func (m *mockImageEmbedder) EmbedImage(_ context.Context, path string) ([]float32, error) {
	v, ok := m.images[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *mockImageEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockImageEmbedder) Close() error                 { return nil }

// mockLLM implements driven.LLMService.
type mockLLM struct {
	mu        sync.Mutex
	reply     string
	deltas    []string
	chatErr   error
	streamErr error
	calls     [][]domain.ChatMessage
	opts      []driven.ChatOptions
}

func (m *mockLLM) record(messages []domain.ChatMessage, opts driven.ChatOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]domain.ChatMessage{}, messages...))
	m.opts = append(m.opts, opts)
}

func (m *mockLLM) lastCall() []domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockLLM) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	return m.reply, m.chatErr
}

func (m *mockLLM) Chat(_ context.Context, messages []domain.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.record(messages, opts)
	if m.chatErr != nil {
		return "", m.chatErr
	}
	return m.reply, nil
}

func (m *mockLLM) ChatStream(
	ctx context.Context, messages []domain.ChatMessage, opts driven.ChatOptions, onDelta func(string) error,
) error {
	m.record(messages, opts)
	for _, d := range m.deltas {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return m.streamErr
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockSource implements driven.NoteSource.
type mockSource struct {
	notes []domain.Note
	err   error
	loads int
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Load(_ context.Context) ([]domain.Note, error) {
	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	return m.notes, nil
}

// mockVectorStore implements driven.VectorStore.
type mockVectorStore struct {
	ready     bool
	noteHits  []driven.NoteHit
	chunkHits []driven.ChunkHit
	searchErr error

	replacedNotes  int
	replacedChunks int
}

func (m *mockVectorStore) IsReady() bool { return m.ready }

func (m *mockVectorStore) SearchNotes(_ context.Context, _ string, k int) ([]driven.NoteHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.noteHits[:min(k, len(m.noteHits))], nil
}

func (m *mockVectorStore) SearchChunks(_ context.Context, _ string, k int) ([]driven.ChunkHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.chunkHits[:min(k, len(m.chunkHits))], nil
}

func (m *mockVectorStore) Replace(
	_ context.Context, notes []domain.Note, _ [][]float32, chunks []domain.Chunk, _ [][]float32,
) error {
	m.replacedNotes = len(notes)
	m.replacedChunks = len(chunks)
	m.ready = len(notes) > 0
	return nil
}

func (m *mockVectorStore) Close() error { return nil }

// mockGraph implements driven.GraphIndex.
type mockGraph struct {
	ready    bool
	hits     []driven.RelationHit
	queryErr error
	loadable bool
	builds   int
}

func (m *mockGraph) IsReady() bool { return m.ready }

func (m *mockGraph) QueryRelations(_ context.Context, _ string, k int) ([]driven.RelationHit, error) {
	if !m.ready {
		return nil, domain.ErrBackendNotReady
	}
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.hits[:min(k, len(m.hits))], nil
}

func (m *mockGraph) Build(_ context.Context, _ []domain.Note) error {
	m.builds++
	m.ready = true
	return nil
}

func (m *mockGraph) Load(_ context.Context) (bool, error) {
	if m.loadable {
		m.ready = true
	}
	return m.loadable, nil
}

// mockTree implements driven.TreeIndex.
type mockTree struct {
	ready    bool
	hits     []driven.SummaryHit
	queryErr error
	builds   int
}

func (m *mockTree) IsReady() bool { return m.ready }

func (m *mockTree) QuerySummaries(_ context.Context, _ string, k int) ([]driven.SummaryHit, error) {
	if !m.ready {
		return nil, domain.ErrBackendNotReady
	}
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.hits[:min(k, len(m.hits))], nil
}

func (m *mockTree) Build(_ context.Context, _ []domain.Chunk, _ [][]float32) error {
	m.builds++
	m.ready = true
	return nil
}

func (m *mockTree) Load(_ context.Context) (bool, error) { return false, nil }

// mockSearch implements driving.SearchService and driving.ChunkSearchService
// with canned results per query.
type mockSearch struct {
	results map[string][]domain.SearchResult
	err     error
	queries []string
}

func (m *mockSearch) Search(_ context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	r := m.results[query]
	return r[:min(maxResults, len(r))], nil
}

func (m *mockSearch) SearchByImage(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	return nil, domain.ErrImageSearchUnavailable
}

func (m *mockSearch) TotalNotes() int { return 42 }

// mockRouter implements driving.RetrievalService.
type mockRouter struct {
	items []domain.GroundedContext
	err   error
	query string
	k     int
}

func (m *mockRouter) Route(
	_ context.Context, query string, intent domain.Intent, k int,
) (domain.Intent, []domain.GroundedContext, error) {
	m.query, m.k = query, k
	if m.err != nil {
		return "", nil, m.err
	}
	if intent == "" {
		intent = ClassifyIntent(query)
	}
	return intent, m.items, nil
}

// --- Fixtures ---

// testIndex returns an embedding index without rate limiting.
func testIndex(embedder driven.EmbeddingService, cache driven.EmbeddingCache) *EmbeddingIndex {
	return NewEmbeddingIndex(embedder, cache, WithRateLimit(rate.Inf, 1))
}

// newTestNotes returns a note service holding notes.
func newTestNotes(notes ...domain.Note) *NoteService {
	s := NewNoteService(&mockSource{notes: notes}, memory.NewTagStore())
	s.SetNotes(notes)
	return s
}

func note(id, title, content string) domain.Note {
	return domain.Note{
		ID:      id,
		Title:   title,
		Content: content,
		Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Edited:  time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func intPtr(i int) *int { return &i }

// drain collects every event of a stream.
func drain(ch <-chan domain.StreamEvent) []domain.StreamEvent {
	var events []domain.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}
