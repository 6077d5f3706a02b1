package driven

import "github.com/custodia-labs/recall/internal/core/domain"

// AIConfigValidator checks provider settings by reaching the provider.
// Settings that are not configured validate as nil.
type AIConfigValidator interface {
	ValidateEmbedding(settings *domain.EmbeddingSettings) error
	ValidateLLM(settings *domain.LLMSettings) error
}
