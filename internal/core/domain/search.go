package domain

// SearchResult is one ranked note from the hybrid scorer.
type SearchResult struct {
	// Note is the matched note.
	Note Note

	// Score is the combined score used for ranking.
	Score float64

	// SemanticScore is the cosine similarity against the note embedding.
	SemanticScore float64

	// KeywordScore is the fraction of query tokens found in the note.
	KeywordScore float64

	// ImageScore is the best image similarity above the image threshold.
	ImageScore float64

	// HasMatchingImages is set when an attached image cleared the threshold
	// in this search.
	HasMatchingImages bool

	// MatchedImage is the path of the best matching image.
	MatchedImage string

	// MatchedChunk is the best chunk for chunk-level searches.
	MatchedChunk *ChunkMatch
}

// ChunkMatch is a chunk with its similarity to a query.
type ChunkMatch struct {
	Chunk Chunk
	Score float64
}

// Cluster is a group of notes with derived keyword labels.
type Cluster struct {
	// ID is the k-means cluster number.
	ID int

	// Keywords label the cluster.
	Keywords []string

	// Notes are ordered closest-to-centroid first.
	Notes []Note

	// Size is len(Notes).
	Size int
}
