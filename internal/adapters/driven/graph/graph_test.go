package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// scriptedLLM answers Generate with the reply keyed by a substring of the prompt.
type scriptedLLM struct {
	replies map[string]string
	calls   int
}

func (m *scriptedLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.calls++
	for key, reply := range m.replies {
		if strings.Contains(prompt, key) {
			return reply, nil
		}
	}
	return "", errors.New("model overloaded")
}

func (m *scriptedLLM) Chat(context.Context, []domain.ChatMessage, driven.ChatOptions) (string, error) {
	return "", nil
}

func (m *scriptedLLM) ChatStream(context.Context, []domain.ChatMessage, driven.ChatOptions, func(string) error) error {
	return nil
}

func (m *scriptedLLM) ModelName() string            { return "scripted" }
func (m *scriptedLLM) Ping(_ context.Context) error { return nil }
func (m *scriptedLLM) Close() error                 { return nil }

// wordEmbedder maps text onto one axis per vocabulary word.
type wordEmbedder struct {
	vocab []string
}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, len(e.vocab))
	lower := strings.ToLower(text)
	for i, w := range e.vocab {
		if strings.Contains(lower, w) {
			v[i] = 1
		}
	}
	return v, nil
}

func (e *wordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (e *wordEmbedder) Dimensions() int              { return len(e.vocab) }
func (e *wordEmbedder) ModelName() string            { return "words" }
func (e *wordEmbedder) Ping(_ context.Context) error { return nil }
func (e *wordEmbedder) Close() error                 { return nil }

func testNotes() []domain.Note {
	return []domain.Note{
		{ID: "n1", Title: "Team", Content: "Alice manages the Atlas project."},
		{ID: "n2", Title: "Atlas", Content: "Atlas ships in March."},
		{ID: "n3", Title: "Empty", Content: "   "},
		{ID: "n4", Title: "Broken", Content: "unparseable"},
	}
}

func testLLM() *scriptedLLM {
	return &scriptedLLM{replies: map[string]string{
		"Alice manages": "Alice | manages | Atlas project\n- Alice | works on | Atlas",
		"Atlas ships":   "1. Atlas | ships in | March\nnot a triple",
	}}
}

func TestIndex_NotReadyBeforeBuild(t *testing.T) {
	x := NewIndex(Config{})

	assert.False(t, x.IsReady())
	hits, err := x.QueryRelations(context.Background(), "alice", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Build_RequiresLLM(t *testing.T) {
	err := NewIndex(Config{}).Build(context.Background(), testNotes())

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestIndex_Build(t *testing.T) {
	store := memory.NewGraphStore()
	llm := testLLM()
	x := NewIndex(Config{
		LLM:      llm,
		Embedder: &wordEmbedder{vocab: []string{"alice", "atlas", "march"}},
		Store:    store,
	})

	require.NoError(t, x.Build(context.Background(), testNotes()))

	assert.True(t, x.IsReady())
	assert.Equal(t, 3, llm.calls, "empty notes are not sent")

	stored, err := store.Relations(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "Alice manages Atlas project", stored[0].Text())
	assert.Equal(t, "n1", stored[0].NoteID)
	assert.Equal(t, "Team", stored[0].NoteTitle)
	assert.NotEmpty(t, stored[0].ID)
	assert.Len(t, stored[0].Embedding, 3)
	assert.Equal(t, "n2", stored[2].NoteID)
}

func TestIndex_QueryRelations(t *testing.T) {
	x := NewIndex(Config{
		LLM:      testLLM(),
		Embedder: &wordEmbedder{vocab: []string{"alice", "atlas", "march"}},
	})
	require.NoError(t, x.Build(context.Background(), testNotes()))

	hits, err := x.QueryRelations(context.Background(), "when in march", 2)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Atlas ships in March", hits[0].Text)
	assert.Equal(t, "n2", hits[0].NoteID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestIndex_QueryRelations_OneHop(t *testing.T) {
	x := NewIndex(Config{
		LLM:      testLLM(),
		Embedder: &wordEmbedder{vocab: []string{"march", "alice"}},
	})
	require.NoError(t, x.Build(context.Background(), testNotes()))

	hits, err := x.QueryRelations(context.Background(), "march", 3)

	require.NoError(t, err)
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	assert.Equal(t, "Atlas ships in March", texts[0])
	assert.Contains(t, texts, "Alice works on Atlas", "shares the Atlas entity")
}

func TestIndex_QueryRelations_WithoutEmbedder(t *testing.T) {
	x := NewIndex(Config{LLM: testLLM()})
	require.NoError(t, x.Build(context.Background(), testNotes()))

	hits, err := x.QueryRelations(context.Background(), "what does alice do?", 5)

	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, DefaultScore, hits[0].Score)
	assert.Equal(t, "n1", hits[0].NoteID)
}

func TestIndex_Load(t *testing.T) {
	store := memory.NewGraphStore()
	require.NoError(t, store.ReplaceRelations(context.Background(), []domain.Relation{
		{ID: "r1", Subject: "Bob", Predicate: "owns", Object: "a boat", NoteID: "n9"},
	}))
	x := NewIndex(Config{Store: store})

	ok, err := x.Load(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, x.IsReady())
}

func TestIndex_Load_Empty(t *testing.T) {
	ok, err := NewIndex(Config{Store: memory.NewGraphStore()}).Load(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseTriples(t *testing.T) {
	got := ParseTriples(`Here are the triples:
Alice | manages | Atlas
- "Bob" | likes | 'tea'
2) Carol | leads | Design
missing | parts
a |  | b
x | y | z | w`)

	assert.Equal(t, [][3]string{
		{"Alice", "manages", "Atlas"},
		{"Bob", "likes", "tea"},
		{"Carol", "leads", "Design"},
	}, got)
}
