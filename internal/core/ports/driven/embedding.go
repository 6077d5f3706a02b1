package driven

import "context"

// EmbeddingService turns note chunks and queries into dense vectors.
// When nil, the hybrid scorer runs on keyword scores alone.
//
// The vectors are cached in the embedding set keyed by content hash, so the
// model and its dimensions must stay stable between runs. Providers are
// ollama, openai and gemini.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector size, or 0 when unknown until first use.
	// A cached set with a different size is rebuilt.
	Dimensions() int

	ModelName() string

	// Ping makes one cheap request. Used at startup and by settings validation.
	Ping(ctx context.Context) error

	Close() error
}
