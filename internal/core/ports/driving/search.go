package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// SearchService provides hybrid note search to external actors.
type SearchService interface {
	// Search ranks notes by semantic, keyword and image signals.
	// maxResults <= 0 uses the configured default.
	Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error)

	// SearchByImage ranks notes by similarity of their images to the image at path.
	SearchByImage(ctx context.Context, path string, maxResults int) ([]domain.SearchResult, error)

	// TotalNotes returns the number of indexed notes.
	TotalNotes() int
}

// ChunkSearchService provides chunk-level search.
type ChunkSearchService interface {
	// Search returns notes ranked by their best matching chunk.
	Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error)
}

// ClusterService groups notes for exploratory browsing.
type ClusterService interface {
	// Clusters groups visible notes into at most k clusters, largest first.
	Clusters(ctx context.Context, k int) ([]domain.Cluster, error)
}

// RetrievalService routes queries across retrieval backends.
type RetrievalService interface {
	// Route retrieves grounded context for query. An empty intent is classified.
	Route(ctx context.Context, query string, intent domain.Intent, maxResults int) (domain.Intent, []domain.GroundedContext, error)
}
