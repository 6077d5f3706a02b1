package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/kmeans"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure ClusterService implements the interface.
var _ driving.ClusterService = (*ClusterService)(nil)

const (
	// clusterCapRatio caps k relative to the note count.
	clusterCapRatio = 0.75

	// minClusterCap is the smallest cap applied to k.
	minClusterCap = 2

	clusterKeywords = 5

	// bigramBoost multiplies the count of bigrams seen at least twice.
	bigramBoost = 1.5
)

var (
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	wordPattern = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)
)

// noteSnapshot supplies the indexed notes and vectors to cluster.
type noteSnapshot interface {
	Snapshot() ([]domain.Note, [][]float32)
}

// ClusterService groups indexed notes with k-means over their embeddings.
type ClusterService struct {
	source     noteSnapshot
	notes      noteView
	defaultK   int
	kmeansOpts kmeans.Options
}

// NewClusterService creates a cluster service over the note index.
func NewClusterService(source noteSnapshot, notes noteView, defaultK int) *ClusterService {
	if defaultK <= 0 {
		defaultK = domain.DefaultAppSettings().Retrieval.DefaultClusters
	}
	return &ClusterService{
		source:     source,
		notes:      notes,
		defaultK:   defaultK,
		kmeansOpts: kmeans.DefaultOptions(),
	}
}

// Clusters groups visible notes into at most k clusters, largest first.
// k <= 0 uses the configured default.
func (s *ClusterService) Clusters(_ context.Context, k int) ([]domain.Cluster, error) {
	logger.Section("Clustering")

	all, allVectors := s.source.Snapshot()
	if allVectors == nil {
		return nil, fmt.Errorf("clusters: %w", domain.ErrEmbeddingUnavailable)
	}

	var notes []domain.Note
	var vectors [][]float32
	for i, n := range all {
		if s.notes.Visible(n.ID) {
			live, err := s.notes.Get(n.ID)
			if err != nil {
				live = n
			}
			notes = append(notes, live)
			vectors = append(vectors, allVectors[i])
		}
	}
	if len(notes) == 0 {
		return []domain.Cluster{}, nil
	}

	if k <= 0 {
		k = s.defaultK
	}
	k = min(k, clusterCap(len(notes)))
	logger.Debug("Clustering %d notes into %d clusters", len(notes), k)

	points := kmeans.FromFloat32(vectors)
	res, err := kmeans.Fit(points, k, s.kmeansOpts)
	if err != nil {
		return nil, fmt.Errorf("clusters: %w", err)
	}

	type member struct {
		note domain.Note
		dist float64
	}
	members := make([][]member, len(res.Centroids))
	for i, label := range res.Labels {
		members[label] = append(members[label], member{
			note: notes[i],
			dist: kmeans.Distance(points[i], res.Centroids[label]),
		})
	}

	clusters := make([]domain.Cluster, 0, len(members))
	for id, ms := range members {
		if len(ms) == 0 {
			continue
		}
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].dist < ms[j].dist })
		cn := make([]domain.Note, len(ms))
		for i, m := range ms {
			cn[i] = m.note
		}
		clusters = append(clusters, domain.Cluster{
			ID:       id,
			Keywords: ExtractKeywords(cn, clusterKeywords),
			Notes:    cn,
			Size:     len(cn),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Size > clusters[j].Size })
	logger.Info("Built %d clusters", len(clusters))
	return clusters, nil
}

// clusterCap is 75% of n, but at least two.
func clusterCap(n int) int {
	return max(minClusterCap, int(float64(n)*clusterCapRatio))
}

// ExtractKeywords derives up to n labels from the text of notes. Repeated
// bigrams are boosted, and a candidate sharing a word with an already
// chosen label is skipped.
func ExtractKeywords(notes []domain.Note, n int) []string {
	var sb strings.Builder
	for _, note := range notes {
		sb.WriteString(note.Title)
		sb.WriteByte(' ')
		sb.WriteString(note.Content)
		sb.WriteByte(' ')
	}
	text := urlPattern.ReplaceAllString(sb.String(), " ")
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]float64)
	for _, w := range words {
		if !isStopword(w) {
			counts[w]++
		}
	}

	bigrams := make(map[string]int)
	for i := 0; i+1 < len(words); i++ {
		if !isStopword(words[i]) && !isStopword(words[i+1]) {
			bigrams[words[i]+" "+words[i+1]]++
		}
	}
	for bg, c := range bigrams {
		if c >= 2 {
			counts[bg] = float64(c) * bigramBoost
		}
	}

	candidates := make([]string, 0, len(counts))
	for w := range counts {
		candidates = append(candidates, w)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})

	keywords := make([]string, 0, n)
	seen := make(map[string]struct{})
	for _, c := range candidates {
		parts := strings.Fields(c)
		overlap := false
		for _, p := range parts {
			if _, ok := seen[p]; ok {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}
		keywords = append(keywords, c)
		for _, p := range parts {
			seen[p] = struct{}{}
		}
		if len(keywords) >= n {
			break
		}
	}
	return keywords
}
