package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/kmeans"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// Scoring weights.
const (
	semanticWeight = 0.7
	keywordWeight  = 0.3

	// minKeywordLength is the shortest query token counted as a keyword hit.
	minKeywordLength = 3

	// clipQueryLimit bounds text queries sent to the image embedder.
	clipQueryLimit = 75

	// notesCacheKey is the embedding cache key of the note index.
	notesCacheKey = "notes"
)

// ScorerConfig holds the hybrid scorer thresholds.
type ScorerConfig struct {
	// MaxResults is used when a search passes maxResults <= 0.
	MaxResults int

	// SemanticThreshold is the semantic score a note must exceed on its own.
	SemanticThreshold float64

	// ImageThreshold is the image score a note must exceed on its own.
	ImageThreshold float64

	// ImageWeight blends the image score into the combined score.
	ImageWeight float64
}

// DefaultScorerConfig returns the scorer defaults.
func DefaultScorerConfig() ScorerConfig {
	r := domain.DefaultAppSettings().Retrieval
	return ScorerConfig{
		MaxResults:        r.MaxResults,
		SemanticThreshold: r.SearchThreshold,
		ImageThreshold:    r.ImageThreshold,
		ImageWeight:       r.ImageWeight,
	}
}

// SearchService ranks notes by semantic, keyword and image signals.
// The index is rebuilt wholesale by Index and read-only between builds.
type SearchService struct {
	notes  noteView
	index  *EmbeddingIndex
	images driven.ImageEmbedder
	cfg    ScorerConfig

	mu           sync.RWMutex
	entries      []domain.Note
	vectors      [][]float32
	imageVectors map[string][]float32
	imageNotes   map[string][]int
}

// NewSearchService creates a search service.
// The images parameter is optional (can be nil).
func NewSearchService(
	notes noteView, index *EmbeddingIndex, images driven.ImageEmbedder, cfg ScorerConfig,
) *SearchService {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultScorerConfig().MaxResults
	}
	return &SearchService{
		notes:  notes,
		index:  index,
		images: images,
		cfg:    cfg,
	}
}

// Index rebuilds the note index and reports whether embeddings came from
// the cache. Notes with no text are skipped. Without an embedder the index
// holds notes only and search is keyword based.
func (s *SearchService) Index(ctx context.Context, notes []domain.Note, force bool) (bool, error) {
	logger.Section("Note Index")

	entries := make([]domain.Note, 0, len(notes))
	texts := make([]string, 0, len(notes))
	for _, n := range notes {
		if text := n.Text(); text != "" {
			entries = append(entries, n)
			texts = append(texts, text)
		}
	}

	var vectors [][]float32
	fromCache := false
	set, cached, err := s.index.LoadOrCompute(ctx, notesCacheKey, texts, force)
	switch {
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		logger.Warn("Embeddings unavailable, note search is keyword only")
	case err != nil:
		return false, fmt.Errorf("note embeddings: %w", err)
	default:
		vectors = set.Vectors
		fromCache = cached
	}

	s.mu.Lock()
	s.entries = entries
	s.vectors = vectors
	s.imageVectors = nil
	s.imageNotes = buildImageNotes(entries)
	s.mu.Unlock()

	logger.Info("Indexed %d notes", len(entries))
	return fromCache, nil
}

// IndexImages embeds every image attached to indexed notes. Images that
// fail to embed are skipped. Returns the number of embedded images.
func (s *SearchService) IndexImages(ctx context.Context) (int, error) {
	if s.images == nil {
		return 0, domain.ErrImageSearchUnavailable
	}

	s.mu.RLock()
	paths := make([]string, 0, len(s.imageNotes))
	for path := range s.imageNotes {
		paths = append(paths, path)
	}
	s.mu.RUnlock()
	sort.Strings(paths)

	vectors := make(map[string][]float32, len(paths))
	for i, path := range paths {
		vec, err := s.images.EmbedImage(ctx, path)
		if err != nil {
			logger.Warn("Skipping image %s: %v", path, err)
			continue
		}
		vectors[path] = vec
		logger.Progress("images", i+1, len(paths))
	}

	s.mu.Lock()
	s.imageVectors = vectors
	s.mu.Unlock()

	logger.Info("Indexed %d of %d images", len(vectors), len(paths))
	return len(vectors), nil
}

func buildImageNotes(entries []domain.Note) map[string][]int {
	m := make(map[string][]int)
	for i, n := range entries {
		for _, img := range n.Images {
			if img.Path == "" || !strings.HasPrefix(img.MIMEType, "image/") {
				continue
			}
			m[img.Path] = append(m[img.Path], i)
		}
	}
	return m
}

// TotalNotes returns the number of indexed notes.
func (s *SearchService) TotalNotes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns the indexed notes and their index-aligned vectors.
// Vectors is nil when embeddings are unavailable.
func (s *SearchService) Snapshot() ([]domain.Note, [][]float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries, s.vectors
}

// imageMatch is the best image of one note.
type imageMatch struct {
	score float64
	path  string
}

// Search performs hybrid search across visible indexed notes.
func (s *SearchService) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}
	if maxResults <= 0 {
		maxResults = s.cfg.MaxResults
	}

	s.mu.RLock()
	entries, vectors := s.entries, s.vectors
	s.mu.RUnlock()

	semantic, err := s.semanticScores(ctx, query, vectors, len(entries))
	if err != nil {
		logger.Warn("Semantic scoring failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	imageScores := s.imageScores(ctx, query)
	keywords := strings.Fields(strings.ToLower(query))

	results := make([]domain.SearchResult, 0, len(entries))
	for i, note := range entries {
		if !s.notes.Visible(note.ID) {
			continue
		}

		r := domain.SearchResult{
			SemanticScore: semantic[i],
			KeywordScore:  keywordScore(keywords, note),
		}
		text := semanticWeight*r.SemanticScore + keywordWeight*r.KeywordScore
		r.Score = text
		if m, ok := imageScores[i]; ok {
			r.ImageScore = m.score
			r.HasMatchingImages = true
			r.MatchedImage = m.path
			r.Score = (1-s.cfg.ImageWeight)*text + s.cfg.ImageWeight*m.score
		}

		if !s.included(r) {
			continue
		}
		r.Note = s.current(note)
		results = append(results, r)
	}

	sortResults(results)
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	logger.Info("Final results: %d", len(results))
	return results, nil
}

// included reports whether at least one signal cleared its own bar.
func (s *SearchService) included(r domain.SearchResult) bool {
	return r.SemanticScore > s.cfg.SemanticThreshold ||
		r.KeywordScore > 0 ||
		r.ImageScore > s.cfg.ImageThreshold
}

func (s *SearchService) semanticScores(
	ctx context.Context, query string, vectors [][]float32, n int,
) ([]float64, error) {
	scores := make([]float64, n)
	if len(vectors) != n || n == 0 {
		return scores, nil
	}
	qvec, err := s.index.EncodeQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	for i, v := range vectors {
		scores[i] = kmeans.Cosine(qvec, v)
	}
	return scores, nil
}

// imageScores maps entry index to its best image above the threshold.
// Image failures degrade to text-only scoring.
func (s *SearchService) imageScores(ctx context.Context, query string) map[int]imageMatch {
	s.mu.RLock()
	vectors, imageNotes := s.imageVectors, s.imageNotes
	s.mu.RUnlock()
	if s.images == nil || len(vectors) == 0 {
		return nil
	}

	qvec, err := s.images.EmbedText(ctx, truncateRunes(query, clipQueryLimit))
	if err != nil {
		logger.Warn("Image query embedding failed: %v", err)
		return nil
	}
	return s.matchImages(qvec, vectors, imageNotes)
}

func (s *SearchService) matchImages(
	qvec []float32, vectors map[string][]float32, imageNotes map[string][]int,
) map[int]imageMatch {
	best := make(map[int]imageMatch)
	for path, vec := range vectors {
		score := kmeans.Cosine(qvec, vec)
		if score <= s.cfg.ImageThreshold {
			continue
		}
		for _, idx := range imageNotes[path] {
			if cur, ok := best[idx]; !ok || score > cur.score || (score == cur.score && path < cur.path) {
				best[idx] = imageMatch{score: score, path: path}
			}
		}
	}
	return best
}

// SearchByImage ranks visible notes by how closely their images match the
// image at path.
func (s *SearchService) SearchByImage(ctx context.Context, path string, maxResults int) ([]domain.SearchResult, error) {
	logger.Section("Image Search")

	s.mu.RLock()
	entries, vectors, imageNotes := s.entries, s.imageVectors, s.imageNotes
	s.mu.RUnlock()
	if s.images == nil || len(vectors) == 0 {
		return nil, domain.ErrImageSearchUnavailable
	}
	if maxResults <= 0 {
		maxResults = s.cfg.MaxResults
	}

	qvec, err := s.images.EmbedImage(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("embed query image: %w", err)
	}

	results := make([]domain.SearchResult, 0)
	for idx, m := range s.matchImages(qvec, vectors, imageNotes) {
		note := entries[idx]
		if !s.notes.Visible(note.ID) {
			continue
		}
		results = append(results, domain.SearchResult{
			Note:              s.current(note),
			Score:             m.score,
			ImageScore:        m.score,
			HasMatchingImages: true,
			MatchedImage:      m.path,
		})
	}

	sortResults(results)
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	logger.Info("Image matches: %d", len(results))
	return results, nil
}

// current returns the live, tag-annotated copy of an indexed note.
func (s *SearchService) current(n domain.Note) domain.Note {
	if live, err := s.notes.Get(n.ID); err == nil {
		return live
	}
	return n
}

// keywordScore is the fraction of query tokens found in the note text.
// Only tokens of at least three characters can match.
func keywordScore(tokens []string, note domain.Note) float64 {
	if len(tokens) == 0 {
		return 0
	}
	text := strings.ToLower(note.Title + " " + note.Content)
	hits := 0
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) >= minKeywordLength && strings.Contains(text, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// sortResults orders by score descending, then note id for stability.
func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Note.ID < results[j].Note.ID
	})
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
