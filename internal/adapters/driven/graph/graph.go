// Package graph provides a relation graph retrieval backend. Relations are
// extracted from notes by an LLM as subject | predicate | object triples,
// embedded, and queried by cosine similarity with one-hop expansion over
// shared entities.
package graph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/kmeans"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/prompts"
)

// Ensure Index implements the interface.
var _ driven.GraphIndex = (*Index)(nil)

// Defaults.
const (
	// DefaultScore is assigned to relations that cannot be scored.
	DefaultScore = 0.5

	// DefaultMaxTriples bounds the relations kept per note.
	DefaultMaxTriples = 10

	// DefaultMaxNoteChars bounds the note text sent for extraction.
	DefaultMaxNoteChars = 6000

	// neighbourDiscount scales the score of relations reached by one hop.
	neighbourDiscount = 0.8
)

// listMarker matches a leading bullet or list number.
var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)

// Config holds configuration for the graph index.
type Config struct {
	LLM      driven.LLMService
	Embedder driven.EmbeddingService
	Store    driven.GraphStore
	Prompts  driven.PromptStore

	// MaxTriples bounds the relations kept per note (default: 10).
	MaxTriples int

	// MaxNoteChars bounds the note text sent for extraction (default: 6000).
	MaxNoteChars int
}

// Index holds the relation graph in memory.
type Index struct {
	llm          driven.LLMService
	embedder     driven.EmbeddingService
	store        driven.GraphStore
	prompts      driven.PromptStore
	maxTriples   int
	maxNoteChars int

	mu        sync.RWMutex
	relations []domain.Relation
	entities  map[string][]int
}

// NewIndex creates an empty graph index. It is never ready until Build or
// Load succeeds.
func NewIndex(cfg Config) *Index {
	if cfg.MaxTriples <= 0 {
		cfg.MaxTriples = DefaultMaxTriples
	}
	if cfg.MaxNoteChars <= 0 {
		cfg.MaxNoteChars = DefaultMaxNoteChars
	}
	return &Index{
		llm:          cfg.LLM,
		embedder:     cfg.Embedder,
		store:        cfg.Store,
		prompts:      cfg.Prompts,
		maxTriples:   cfg.MaxTriples,
		maxNoteChars: cfg.MaxNoteChars,
	}
}

// IsReady reports whether relations are loaded.
func (x *Index) IsReady() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.relations) > 0
}

// Build extracts relations from every note, embeds them, and persists the
// result. A note whose extraction fails is logged and skipped.
func (x *Index) Build(ctx context.Context, notes []domain.Note) error {
	if x.llm == nil {
		return fmt.Errorf("build graph: %w", domain.ErrLLMUnavailable)
	}

	logger.Section("Graph build")
	template := prompts.Resolve(x.prompts, driven.PromptRelationExtraction)

	var relations []domain.Relation
	for i, n := range notes {
		logger.Progress("extract relations", i+1, len(notes))
		text := strings.TrimSpace(n.Text())
		if text == "" {
			continue
		}
		if len(text) > x.maxNoteChars {
			text = text[:x.maxNoteChars]
		}

		reply, err := x.llm.Generate(ctx, prompts.Render(template, map[string]string{"text": text}),
			driven.GenerateOptions{Temperature: 0})
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("build graph: %w", ctx.Err())
			}
			logger.Warn("Relation extraction failed for note %s: %v", n.ID, err)
			continue
		}

		triples := ParseTriples(reply)
		if len(triples) > x.maxTriples {
			triples = triples[:x.maxTriples]
		}
		for _, t := range triples {
			relations = append(relations, domain.Relation{
				ID:        uuid.New().String(),
				Subject:   t[0],
				Predicate: t[1],
				Object:    t[2],
				NoteID:    n.ID,
				NoteTitle: n.Title,
			})
		}
	}

	if err := x.embed(ctx, relations); err != nil {
		logger.Warn("Relation embedding failed, graph will use entity matching only: %v", err)
	}

	if x.store != nil {
		if err := x.store.ReplaceRelations(ctx, relations); err != nil {
			return fmt.Errorf("persist relations: %w", err)
		}
	}
	x.set(relations)

	logger.Info("Graph built: %d relations from %d notes", len(relations), len(notes))
	return nil
}

func (x *Index) embed(ctx context.Context, relations []domain.Relation) error {
	if x.embedder == nil || len(relations) == 0 {
		return nil
	}
	texts := make([]string, len(relations))
	for i, r := range relations {
		texts[i] = r.Text()
	}
	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(relations) {
		return fmt.Errorf("got %d vectors for %d relations", len(vectors), len(relations))
	}
	for i := range relations {
		relations[i].Embedding = vectors[i]
	}
	return nil
}

// Load restores relations from the store.
func (x *Index) Load(ctx context.Context) (bool, error) {
	if x.store == nil {
		return false, nil
	}
	relations, err := x.store.Relations(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load relations: %w", err)
	}
	if len(relations) == 0 {
		return false, nil
	}
	x.set(relations)
	logger.Debug("Graph loaded: %d relations", len(relations))
	return true, nil
}

func (x *Index) set(relations []domain.Relation) {
	entities := make(map[string][]int)
	for i, r := range relations {
		for _, e := range []string{entityKey(r.Subject), entityKey(r.Object)} {
			if e != "" {
				entities[e] = append(entities[e], i)
			}
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.relations = relations
	x.entities = entities
}

// QueryRelations returns up to k relations relevant to query. Direct matches
// are scored by cosine similarity against the query embedding; relations
// sharing an entity with a direct match follow at a discounted score.
// Without an embedder every relation mentioning a query term scores
// DefaultScore.
func (x *Index) QueryRelations(ctx context.Context, query string, k int) ([]driven.RelationHit, error) {
	if k <= 0 || !x.IsReady() {
		return nil, nil
	}

	var queryVec []float32
	if x.embedder != nil {
		vec, err := x.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		queryVec = vec
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	scores := make(map[int]float64, len(x.relations))
	terms := queryTerms(query)
	for i, r := range x.relations {
		switch {
		case queryVec != nil && len(r.Embedding) > 0:
			scores[i] = kmeans.Cosine(queryVec, r.Embedding)
		case mentions(r, terms):
			scores[i] = DefaultScore
		}
	}

	seeds := topIndexes(scores, k)
	for _, i := range seeds {
		r := x.relations[i]
		for _, e := range []string{entityKey(r.Subject), entityKey(r.Object)} {
			for _, j := range x.entities[e] {
				hop := scores[i] * neighbourDiscount
				if hop > scores[j] {
					scores[j] = hop
				}
			}
		}
	}

	ranked := topIndexes(scores, k)
	hits := make([]driven.RelationHit, 0, len(ranked))
	for _, i := range ranked {
		r := x.relations[i]
		hits = append(hits, driven.RelationHit{
			NoteID:    r.NoteID,
			NoteTitle: r.NoteTitle,
			Text:      r.Text(),
			Score:     scores[i],
		})
	}
	return hits, nil
}

// topIndexes returns up to k keys with positive scores, best first.
// Ties keep relation order.
func topIndexes(scores map[int]float64, k int) []int {
	keys := make([]int, 0, len(scores))
	for i, s := range scores {
		if s > 0 {
			keys = append(keys, i)
		}
	}
	sort.Slice(keys, func(a, b int) bool {
		if scores[keys[a]] != scores[keys[b]] {
			return scores[keys[a]] > scores[keys[b]]
		}
		return keys[a] < keys[b]
	})
	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}

// ParseTriples reads "subject | predicate | object" lines. Lines without
// exactly three non-empty parts are ignored, as are bullets and numbering.
func ParseTriples(text string) [][3]string {
	var triples [][3]string
	for _, line := range strings.Split(text, "\n") {
		line = listMarker.ReplaceAllString(strings.TrimSpace(line), "")
		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			continue
		}
		var t [3]string
		ok := true
		for i, p := range parts {
			t[i] = strings.Trim(strings.TrimSpace(p), `"'`)
			if t[i] == "" {
				ok = false
			}
		}
		if ok {
			triples = append(triples, t)
		}
	}
	return triples
}

func entityKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func queryTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

func mentions(r domain.Relation, terms []string) bool {
	text := strings.ToLower(r.Text())
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
