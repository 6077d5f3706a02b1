package driven

import "context"

// ImageEmbedder embeds text and images into one shared CLIP-style space.
// This is an optional service - when nil, image scoring and image search are disabled.
type ImageEmbedder interface {
	// EmbedText embeds a short text query into the image space.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedImage embeds the image file at path.
	EmbedImage(ctx context.Context, path string) ([]float32, error)

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
