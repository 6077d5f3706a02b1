// Package raptor builds and queries a hierarchical summary tree over chunks.
//
// Leaves are chunks. Each higher level clusters the level below with
// k-means, summarises every cluster with the LLM, and embeds the summary.
// Queries score every node of every level against the query embedding.
package raptor

import (
	"context"
	"errors"
	"fmt"
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

// Ensure Tree implements the interface.
var _ driven.TreeIndex = (*Tree)(nil)

// Tree construction constants.
const (
	// MaxLevels is the number of summary levels above the leaves.
	MaxLevels = 3

	// TargetClusterSize is the intended number of nodes per cluster.
	TargetClusterSize = 7

	// MaxSummaryInput bounds the joined cluster text sent to the LLM, in characters.
	MaxSummaryInput = 4000

	// FallbackSummaryLength is the prefix kept when summarisation fails.
	FallbackSummaryLength = 500

	// SummaryMaxTokens bounds each summary.
	SummaryMaxTokens = 400

	clusterSeparator = "\n\n---\n\n"
)

// Config holds configuration for the tree.
type Config struct {
	LLM      driven.LLMService
	Embedder driven.EmbeddingService
	Store    driven.TreeStore
	Prompts  driven.PromptStore
}

// Tree is a RAPTOR summary tree held in memory as a flat node map.
type Tree struct {
	llm      driven.LLMService
	embedder driven.EmbeddingService
	store    driven.TreeStore
	prompts  driven.PromptStore

	mu    sync.RWMutex
	nodes map[string]domain.TreeNode
}

// NewTree creates an empty tree. It is never ready until Build or Load succeeds.
func NewTree(cfg Config) *Tree {
	return &Tree{
		llm:      cfg.LLM,
		embedder: cfg.Embedder,
		store:    cfg.Store,
		prompts:  cfg.Prompts,
	}
}

// IsReady reports whether the tree holds nodes.
func (t *Tree) IsReady() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes) > 0
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Build constructs the tree from index-aligned chunks and vectors, then
// persists it. Chunks without text or without a vector are skipped. A
// cluster whose summary fails falls back to a prefix of its joined text.
func (t *Tree) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", domain.ErrInvalidInput, len(chunks), len(vectors))
	}
	if t.embedder == nil {
		return fmt.Errorf("build tree: %w", domain.ErrEmbeddingUnavailable)
	}
	if t.llm == nil {
		return fmt.Errorf("build tree: %w", domain.ErrLLMUnavailable)
	}

	logger.Section("Summary tree build")
	nodes := make(map[string]domain.TreeNode)

	var current []domain.TreeNode
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" || len(vectors[i]) == 0 {
			continue
		}
		index := c.Index
		leaf := domain.TreeNode{
			ID:         uuid.New().String(),
			Text:       c.Text,
			Embedding:  vectors[i],
			Level:      0,
			Children:   []string{},
			NoteIDs:    []string{c.NoteID},
			ChunkIndex: &index,
		}
		nodes[leaf.ID] = leaf
		current = append(current, leaf)
	}
	if len(current) == 0 {
		logger.Info("No chunks to summarise")
		return nil
	}
	logger.Info("Level 0: %d leaf nodes", len(current))

	template := prompts.Resolve(t.prompts, driven.PromptTreeSummary)
	for level := 1; level <= MaxLevels; level++ {
		if len(current) <= 1 {
			logger.Debug("Stopping at level %d with %d nodes", level, len(current))
			break
		}

		next, err := t.buildLevel(ctx, template, current, level)
		if err != nil {
			return err
		}
		for _, n := range next {
			nodes[n.ID] = n
		}
		logger.Info("Level %d: %d summary nodes", level, len(next))
		current = next
	}

	if t.store != nil {
		if err := t.store.Save(ctx, nodes); err != nil {
			return fmt.Errorf("persist tree: %w", err)
		}
	}

	t.mu.Lock()
	t.nodes = nodes
	t.mu.Unlock()

	logger.Info("Tree built: %d nodes", len(nodes))
	return nil
}

// buildLevel clusters nodes and returns one summary node per cluster.
func (t *Tree) buildLevel(
	ctx context.Context,
	template string,
	nodes []domain.TreeNode,
	level int,
) ([]domain.TreeNode, error) {
	k := ClusterCount(len(nodes))

	points := make([][]float32, len(nodes))
	for i, n := range nodes {
		points[i] = n.Embedding
	}
	fit, err := kmeans.Fit(kmeans.FromFloat32(points), k, kmeans.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("cluster level %d: %w", level, err)
	}

	members := make([][]domain.TreeNode, k)
	for i, label := range fit.Labels {
		members[label] = append(members[label], nodes[i])
	}

	var (
		parents   []domain.TreeNode
		summaries []string
	)
	stage := fmt.Sprintf("summarise level %d", level)
	for c, group := range members {
		logger.Progress(stage, c+1, k)
		if len(group) == 0 {
			continue
		}

		texts := make([]string, len(group))
		children := make([]string, len(group))
		var noteIDs []string
		for i, n := range group {
			texts[i] = n.Text
			children[i] = n.ID
			noteIDs = append(noteIDs, n.NoteIDs...)
		}
		joined := strings.Join(texts, clusterSeparator)

		summary, err := t.summarise(ctx, template, joined)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("summarise level %d: %w", level, ctx.Err())
			}
			logger.Warn("Summary failed for level %d cluster %d: %v", level, c, err)
			summary = prefix(joined, FallbackSummaryLength)
		}

		summaries = append(summaries, summary)
		parents = append(parents, domain.TreeNode{
			ID:       uuid.New().String(),
			Text:     summary,
			Level:    level,
			Children: children,
			NoteIDs:  unique(noteIDs),
		})
	}

	vectors, err := t.embedder.EmbedBatch(ctx, summaries)
	if err != nil {
		return nil, fmt.Errorf("embed level %d summaries: %w", level, err)
	}
	if len(vectors) != len(parents) {
		return nil, fmt.Errorf("embed level %d summaries: got %d vectors for %d summaries",
			level, len(vectors), len(parents))
	}
	for i := range parents {
		parents[i].Embedding = vectors[i]
	}
	return parents, nil
}

func (t *Tree) summarise(ctx context.Context, template, joined string) (string, error) {
	prompt := prompts.Render(template, map[string]string{"texts": prefix(joined, MaxSummaryInput)})
	reply, err := t.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: SummaryMaxTokens})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("empty summary")
	}
	return reply, nil
}

// ClusterCount returns the cluster count for n nodes: n / TargetClusterSize,
// or n / 2 when that would leave one node per cluster, and at least one.
func ClusterCount(n int) int {
	k := max(1, n/TargetClusterSize)
	if k >= n {
		k = max(1, n/2)
	}
	return k
}

// Load restores the tree from the store.
func (t *Tree) Load(ctx context.Context) (bool, error) {
	if t.store == nil {
		return false, nil
	}
	nodes, err := t.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load tree: %w", err)
	}
	if len(nodes) == 0 {
		return false, nil
	}

	t.mu.Lock()
	t.nodes = nodes
	t.mu.Unlock()

	logger.Debug("Tree loaded: %d nodes", len(nodes))
	return true, nil
}

// QuerySummaries returns the k nodes of any level most similar to query.
func (t *Tree) QuerySummaries(ctx context.Context, query string, k int) ([]driven.SummaryHit, error) {
	if k <= 0 || !t.IsReady() {
		return nil, nil
	}
	if t.embedder == nil {
		return nil, fmt.Errorf("query tree: %w", domain.ErrEmbeddingUnavailable)
	}
	queryVec, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	type scored struct {
		node  domain.TreeNode
		score float64
	}
	ranked := make([]scored, 0, len(t.nodes))
	for _, n := range t.nodes {
		ranked = append(ranked, scored{node: n, score: kmeans.Cosine(queryVec, n.Embedding)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].node.ID < ranked[j].node.ID
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	hits := make([]driven.SummaryHit, len(ranked))
	for i, r := range ranked {
		hits[i] = driven.SummaryHit{
			NodeID:     r.node.ID,
			Text:       r.node.Text,
			Score:      r.score,
			Level:      r.node.Level,
			NoteIDs:    r.node.NoteIDs,
			ChunkIndex: r.node.ChunkIndex,
		}
	}
	return hits, nil
}

// prefix returns at most n runes of s.
func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// unique returns ids without duplicates, sorted.
func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
