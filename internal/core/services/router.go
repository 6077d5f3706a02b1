package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure Router implements the interface.
var _ driving.RetrievalService = (*Router)(nil)

const (
	// DefaultRouteResults is used when Route is called with maxResults <= 0.
	DefaultRouteResults = 10

	// minMixedPerSource is the smallest per-backend budget for mixed queries.
	minMixedPerSource = 3

	// unscoredRelation is the score given to graph rows without one.
	unscoredRelation = 0.5

	// summaryCitationPrefix marks citation ids of tree summary nodes.
	summaryCitationPrefix = "tree_"
)

// Keyword heuristics for intent classification. Phrases match as substrings
// of the lowercased query.
var (
	summaryKeywords = []string{
		"summarize", "summary", "overview", "recap", "outline",
		"highlights", "main points", "key takeaways", "tldr", "gist",
		"what are the main", "give me an overview", "big picture",
	}
	relationalKeywords = []string{
		"relationship", "connection", "related", "linked", "between",
		"how does", "compare", "contrast", "interact", "depend",
		"who is", "who was", "what connects",
	}
)

// ClassifyIntent picks SUMMARY or RELATIONAL when that keyword set has
// strictly more hits, and FACTUAL otherwise.
func ClassifyIntent(query string) domain.Intent {
	lower := strings.ToLower(query)
	summary := countHits(lower, summaryKeywords)
	relational := countHits(lower, relationalKeywords)

	switch {
	case summary > relational && summary > 0:
		return domain.IntentSummary
	case relational > summary && relational > 0:
		return domain.IntentRelational
	default:
		return domain.IntentFactual
	}
}

func countHits(s string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			n++
		}
	}
	return n
}

// RouterBackends are the retrieval engines available to the router.
// Every field is optional.
type RouterBackends struct {
	// Vector is the vector store queried for chunks first.
	Vector driven.VectorBackend

	// Chunks is the in-process chunk search used when Vector is not ready.
	Chunks driving.ChunkSearchService

	// Search is the hybrid note search used as the last vector-path tier.
	Search driving.SearchService

	// Graph answers relational queries.
	Graph driven.GraphBackend

	// Tree answers summary queries.
	Tree driven.TreeBackend

	// Notes resolves titles for rows that carry only note ids and hides
	// notes with an excluded tag. When nil every note is visible.
	Notes noteView
}

// Router dispatches queries to retrieval backends by intent and
// normalises every result into domain.GroundedContext.
type Router struct {
	b RouterBackends
}

// NewRouter creates a router.
func NewRouter(backends RouterBackends) *Router {
	return &Router{b: backends}
}

// Route retrieves grounded context for query. An empty intent is classified.
func (r *Router) Route(
	ctx context.Context, query string, intent domain.Intent, maxResults int,
) (domain.Intent, []domain.GroundedContext, error) {
	if intent == "" {
		intent = ClassifyIntent(query)
	}
	if !intent.IsValid() {
		return "", nil, fmt.Errorf("intent %q: %w", intent, domain.ErrInvalidInput)
	}
	if maxResults <= 0 {
		maxResults = DefaultRouteResults
	}
	logger.Debug("Routing %q as %s (max %d)", query, intent, maxResults)

	var (
		items []domain.GroundedContext
		err   error
	)
	switch {
	case intent == domain.IntentRelational && ready(r.b.Graph):
		items, err = r.relational(ctx, query, maxResults)
	case intent == domain.IntentSummary && ready(r.b.Tree):
		items, err = r.summary(ctx, query, maxResults)
	case intent == domain.IntentMixed:
		items, err = r.mixed(ctx, query, maxResults)
	default:
		items, err = r.vector(ctx, query, maxResults)
	}
	if err != nil {
		return intent, nil, err
	}
	r.charOffsets(items)
	logger.Info("Retrieved %d grounded items (%s)", len(items), intent)
	return intent, items, nil
}

// ready reports whether an optional backend can be queried.
func ready(b interface{ IsReady() bool }) bool {
	if b == nil {
		return false
	}
	return b.IsReady()
}

// vector queries the vector store, then chunk search, then hybrid note
// search. A tier that fails or finds nothing falls through to the next.
func (r *Router) vector(ctx context.Context, query string, k int) ([]domain.GroundedContext, error) {
	var lastErr error

	if ready(r.b.Vector) {
		hits, err := r.b.Vector.SearchChunks(ctx, query, k)
		if items := r.visible(fromChunkHits(hits)); err == nil && len(items) > 0 {
			return truncate(dedupe(items), k), nil
		}
		if err == nil {
			var notes []driven.NoteHit
			notes, err = r.b.Vector.SearchNotes(ctx, query, k)
			if items := r.visible(fromNoteHits(notes)); err == nil && len(items) > 0 {
				return truncate(dedupe(items), k), nil
			}
		}
		if err != nil {
			logger.Warn("Vector store query failed: %v", err)
			lastErr = err
		}
	}

	if r.b.Chunks != nil {
		results, err := r.b.Chunks.Search(ctx, query, k)
		if items := r.visible(fromSearchResults(results)); err == nil && len(items) > 0 {
			return truncate(dedupe(items), k), nil
		}
		if err != nil {
			logger.Warn("Chunk search failed: %v", err)
			lastErr = err
		}
	}

	if r.b.Search != nil {
		results, err := r.b.Search.Search(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("note search: %w", err)
		}
		return truncate(dedupe(r.visible(fromSearchResults(results))), k), nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("vector retrieval: %w", lastErr)
	}
	return []domain.GroundedContext{}, nil
}

// relational queries the graph and tops up from the vector path with
// notes not already present. Every visible graph row is kept.
func (r *Router) relational(ctx context.Context, query string, k int) ([]domain.GroundedContext, error) {
	hits, err := r.b.Graph.QueryRelations(ctx, query, k)
	if err != nil {
		logger.Warn("Graph query failed, using vector retrieval: %v", err)
		return r.vector(ctx, query, k)
	}
	items := r.visible(fromRelationHits(hits))
	if len(items) >= k {
		return items[:k], nil
	}

	extra, err := r.vector(ctx, query, k-len(items))
	if err != nil {
		logger.Warn("Vector supplement failed: %v", err)
		return items, nil
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it.NoteID] = struct{}{}
	}
	for _, it := range extra {
		if _, dup := seen[it.NoteID]; dup {
			continue
		}
		seen[it.NoteID] = struct{}{}
		items = append(items, it)
	}
	return truncate(items, k), nil
}

// summary queries the tree and tops up from the vector path with
// citations not already present. Every visible tree row is kept.
func (r *Router) summary(ctx context.Context, query string, k int) ([]domain.GroundedContext, error) {
	hits, err := r.b.Tree.QuerySummaries(ctx, query, k)
	if err != nil {
		logger.Warn("Tree query failed, using vector retrieval: %v", err)
		return r.vector(ctx, query, k)
	}
	items := r.fromSummaryHits(hits)
	if len(items) >= k {
		return items[:k], nil
	}

	extra, err := r.vector(ctx, query, k-len(items))
	if err != nil {
		logger.Warn("Vector supplement failed: %v", err)
		return items, nil
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it.CitationID] = struct{}{}
	}
	for _, it := range extra {
		if _, dup := seen[it.CitationID]; dup {
			continue
		}
		seen[it.CitationID] = struct{}{}
		items = append(items, it)
	}
	return truncate(items, k), nil
}

// mixed queries every ready backend with an even budget.
func (r *Router) mixed(ctx context.Context, query string, k int) ([]domain.GroundedContext, error) {
	per := max(minMixedPerSource, k/3)

	all, err := r.vector(ctx, query, per)
	if err != nil {
		return nil, err
	}
	if ready(r.b.Graph) {
		hits, err := r.b.Graph.QueryRelations(ctx, query, per)
		if err != nil {
			logger.Warn("Graph query failed: %v", err)
		} else {
			all = append(all, r.visible(fromRelationHits(hits))...)
		}
	}
	if ready(r.b.Tree) {
		hits, err := r.b.Tree.QuerySummaries(ctx, query, per)
		if err != nil {
			logger.Warn("Tree query failed: %v", err)
		} else {
			all = append(all, r.fromSummaryHits(hits)...)
		}
	}

	items := dedupe(all)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	return truncate(items, k), nil
}

// dedupe keeps the first item of each citation id.
func dedupe(items []domain.GroundedContext) []domain.GroundedContext {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.GroundedContext, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.CitationID]; dup {
			continue
		}
		seen[it.CitationID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// visible drops items whose note is hidden by an excluded tag.
func (r *Router) visible(items []domain.GroundedContext) []domain.GroundedContext {
	if r.b.Notes == nil {
		return items
	}
	out := items[:0]
	for _, it := range items {
		if r.b.Notes.Visible(it.NoteID) {
			out = append(out, it)
		}
	}
	return out
}

func truncate(items []domain.GroundedContext, k int) []domain.GroundedContext {
	if len(items) > k {
		return items[:k]
	}
	return items
}

// Conversions from backend rows. Each backend shape has one function.

func fromChunkHits(hits []driven.ChunkHit) []domain.GroundedContext {
	out := make([]domain.GroundedContext, 0, len(hits))
	for _, h := range hits {
		idx, start, end := h.ChunkIndex, h.Start, h.End
		out = append(out, domain.GroundedContext{
			CitationID:   domain.CitationID(h.NoteID, &idx),
			NoteID:       h.NoteID,
			NoteTitle:    h.NoteTitle,
			Text:         h.Text,
			Start:        &start,
			End:          &end,
			Score:        h.Similarity,
			Source:       domain.SourceVector,
			HeadingTrail: trail(h.HeadingTrail),
		})
	}
	return out
}

func fromNoteHits(hits []driven.NoteHit) []domain.GroundedContext {
	out := make([]domain.GroundedContext, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.GroundedContext{
			CitationID:   h.NoteID,
			NoteID:       h.NoteID,
			NoteTitle:    h.NoteTitle,
			Text:         h.Text,
			Score:        h.Similarity,
			Source:       domain.SourceVector,
			HeadingTrail: []string{},
		})
	}
	return out
}

func fromSearchResults(results []domain.SearchResult) []domain.GroundedContext {
	out := make([]domain.GroundedContext, 0, len(results))
	for _, r := range results {
		item := domain.GroundedContext{
			CitationID:   r.Note.ID,
			NoteID:       r.Note.ID,
			NoteTitle:    r.Note.Title,
			Text:         r.Note.Content,
			Score:        r.Score,
			Source:       domain.SourceVector,
			HeadingTrail: []string{},
		}
		if m := r.MatchedChunk; m != nil {
			idx, start, end := m.Chunk.Index, m.Chunk.Start, m.Chunk.End
			item.CitationID = domain.CitationID(r.Note.ID, &idx)
			item.Text = m.Chunk.Text
			item.Start = &start
			item.End = &end
			item.HeadingTrail = trail(m.Chunk.HeadingTrail)
		}
		out = append(out, item)
	}
	return out
}

// fromRelationHits cites the first relation of a note by the note id and
// later ones as noteID_rN, so every relation keeps its own citation.
func fromRelationHits(hits []driven.RelationHit) []domain.GroundedContext {
	out := make([]domain.GroundedContext, 0, len(hits))
	perNote := make(map[string]int, len(hits))
	for _, h := range hits {
		score := h.Score
		if score == 0 {
			score = unscoredRelation
		}
		id := h.NoteID
		if n := perNote[h.NoteID]; n > 0 {
			id = h.NoteID + "_r" + strconv.Itoa(n)
		}
		perNote[h.NoteID]++
		out = append(out, domain.GroundedContext{
			CitationID:   id,
			NoteID:       h.NoteID,
			NoteTitle:    h.NoteTitle,
			Text:         h.Text,
			Score:        score,
			Source:       domain.SourceGraph,
			HeadingTrail: []string{},
		})
	}
	return out
}

// fromSummaryHits attributes each tree node to its first visible
// originating note. Leaf rows are cited like chunks. Summary rows are
// cited by node id since several summaries can share a first note.
// Rows with no visible note are dropped.
func (r *Router) fromSummaryHits(hits []driven.SummaryHit) []domain.GroundedContext {
	out := make([]domain.GroundedContext, 0, len(hits))
	for _, h := range hits {
		noteIDs := r.visibleIDs(h.NoteIDs)
		if len(noteIDs) == 0 {
			continue
		}
		noteID := noteIDs[0]
		citationID := domain.CitationID(noteID, h.ChunkIndex)
		if h.ChunkIndex == nil && h.NodeID != "" {
			citationID = summaryCitationPrefix + h.NodeID
		}
		out = append(out, domain.GroundedContext{
			CitationID:   citationID,
			NoteID:       noteID,
			NoteTitle:    r.title(noteID),
			Text:         h.Text,
			Score:        h.Score,
			Source:       domain.SourceTree,
			HeadingTrail: []string{},
		})
	}
	return out
}

// charOffsets rewrites chunk byte offsets as character offsets into the
// note content. Items whose note cannot be resolved keep byte offsets.
func (r *Router) charOffsets(items []domain.GroundedContext) {
	if r.b.Notes == nil {
		return
	}
	for i := range items {
		it := &items[i]
		if it.Start == nil || it.End == nil {
			continue
		}
		n, err := r.b.Notes.Get(it.NoteID)
		if err != nil {
			continue
		}
		start, end := *it.Start, *it.End
		if start < 0 || start > end || end > len(n.Content) {
			continue
		}
		start = utf8.RuneCountInString(n.Content[:start])
		end = start + utf8.RuneCountInString(n.Content[*it.Start:end])
		it.Start, it.End = &start, &end
	}
}

func (r *Router) visibleIDs(ids []string) []string {
	if r.b.Notes == nil {
		return ids
	}
	var out []string
	for _, id := range ids {
		if r.b.Notes.Visible(id) {
			out = append(out, id)
		}
	}
	return out
}

func (r *Router) title(noteID string) string {
	if r.b.Notes == nil || noteID == "" {
		return ""
	}
	n, err := r.b.Notes.Get(noteID)
	if err != nil {
		return ""
	}
	return n.Title
}

func trail(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
