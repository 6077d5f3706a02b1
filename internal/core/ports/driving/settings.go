package driving

import "github.com/custodia-labs/recall/internal/core/domain"

// SettingsService reads and writes ~/.recall/config.toml for the settings
// command. Setters persist immediately.
type SettingsService interface {
	// Get merges stored values over GetDefaults.
	Get() (*domain.AppSettings, error)
	Save(settings *domain.AppSettings) error
	GetDefaults() domain.AppSettings

	// SetNoteSource selects keep, markdown or notion. path is the export
	// or notes directory and is ignored for notion.
	SetNoteSource(source domain.NoteSourceType, path string) error
	SetChunkingStrategy(strategy domain.ChunkingStrategy) error

	// SetEmbeddingProvider and SetLLMProvider fill in the provider's default
	// model when model is "". Hosted providers require apiKey.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// ValidateEmbeddingConfig and ValidateLLMConfig ping the stored
	// provider. Unconfigured providers validate as nil.
	ValidateEmbeddingConfig() error
	ValidateLLMConfig() error
}
