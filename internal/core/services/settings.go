package services

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyNotesSource      = "notes.source"
	keyNotesPath        = "notes.path"
	keyNotionToken      = "notes.notion_token"
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyImageEnabled     = "image.enabled"
	keyImageBaseURL     = "image.base_url"
	keyMaxResults       = "retrieval.max_results"
	keySearchThreshold  = "retrieval.search_threshold"
	keyImageThreshold   = "retrieval.image_threshold"
	keyImageWeight      = "retrieval.image_weight"
	keyDefaultClusters  = "retrieval.default_clusters"
	keyChunking         = "retrieval.chunking_strategy"
	keyEnableGraph      = "retrieval.enable_graph"
	keyEnableTree       = "retrieval.enable_tree"
	keyContextNotes     = "chat.context_notes"
	keyMaxRecent        = "chat.max_recent_messages"
	keySummaryThreshold = "chat.summarization_threshold"
)

// defaultOllamaURL is used when a local provider has no base URL yet.
const defaultOllamaURL = "http://localhost:11434"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Notes: domain.NotesSettings{
			Source:      s.getNoteSource(defaults.Notes.Source),
			Path:        s.configStore.GetString(keyNotesPath),
			NotionToken: s.configStore.GetString(keyNotionToken),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Image: domain.ImageSettings{
			Enabled: s.getBool(keyImageEnabled, defaults.Image.Enabled),
			BaseURL: s.getString(keyImageBaseURL, defaults.Image.BaseURL),
		},
		Retrieval: domain.RetrievalSettings{
			MaxResults:       s.getInt(keyMaxResults, defaults.Retrieval.MaxResults),
			SearchThreshold:  s.getFloat(keySearchThreshold, defaults.Retrieval.SearchThreshold),
			ImageThreshold:   s.getFloat(keyImageThreshold, defaults.Retrieval.ImageThreshold),
			ImageWeight:      s.getFloat(keyImageWeight, defaults.Retrieval.ImageWeight),
			DefaultClusters:  s.getInt(keyDefaultClusters, defaults.Retrieval.DefaultClusters),
			ChunkingStrategy: s.getChunkingStrategy(defaults.Retrieval.ChunkingStrategy),
			EnableGraph:      s.getBool(keyEnableGraph, defaults.Retrieval.EnableGraph),
			EnableTree:       s.getBool(keyEnableTree, defaults.Retrieval.EnableTree),
		},
		Chat: domain.ChatSettings{
			ContextNotes:           s.getInt(keyContextNotes, defaults.Chat.ContextNotes),
			MaxRecentMessages:      s.getInt(keyMaxRecent, defaults.Chat.MaxRecentMessages),
			SummarizationThreshold: s.getInt(keySummaryThreshold, defaults.Chat.SummarizationThreshold),
		},
	}

	return settings, nil
}

// setting is one key written by Save.
type setting struct {
	key   string
	label string
	value any

	// secret values are only written when non-empty.
	secret bool
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	entries := []setting{
		{key: keyNotesSource, label: "notes source", value: settings.Notes.Source.String()},
		{key: keyNotesPath, label: "notes path", value: settings.Notes.Path},
		{key: keyNotionToken, label: "notion token", value: settings.Notes.NotionToken, secret: true},

		{key: keyEmbedProvider, label: "embedding provider", value: settings.Embedding.Provider.String()},
		{key: keyEmbedModel, label: "embedding model", value: settings.Embedding.Model},
		{key: keyEmbedBaseURL, label: "embedding base_url", value: settings.Embedding.BaseURL},
		{key: keyEmbedAPIKey, label: "embedding api_key", value: settings.Embedding.APIKey, secret: true},

		{key: keyLLMProvider, label: "llm provider", value: settings.LLM.Provider.String()},
		{key: keyLLMModel, label: "llm model", value: settings.LLM.Model},
		{key: keyLLMBaseURL, label: "llm base_url", value: settings.LLM.BaseURL},
		{key: keyLLMAPIKey, label: "llm api_key", value: settings.LLM.APIKey, secret: true},

		{key: keyImageEnabled, label: "image enabled", value: settings.Image.Enabled},
		{key: keyImageBaseURL, label: "image base_url", value: settings.Image.BaseURL},

		{key: keyMaxResults, label: "max results", value: settings.Retrieval.MaxResults},
		{key: keySearchThreshold, label: "search threshold", value: settings.Retrieval.SearchThreshold},
		{key: keyImageThreshold, label: "image threshold", value: settings.Retrieval.ImageThreshold},
		{key: keyImageWeight, label: "image weight", value: settings.Retrieval.ImageWeight},
		{key: keyDefaultClusters, label: "default clusters", value: settings.Retrieval.DefaultClusters},
		{key: keyChunking, label: "chunking strategy", value: settings.Retrieval.ChunkingStrategy.String()},
		{key: keyEnableGraph, label: "enable graph", value: settings.Retrieval.EnableGraph},
		{key: keyEnableTree, label: "enable tree", value: settings.Retrieval.EnableTree},

		{key: keyContextNotes, label: "context notes", value: settings.Chat.ContextNotes},
		{key: keyMaxRecent, label: "max recent messages", value: settings.Chat.MaxRecentMessages},
		{key: keySummaryThreshold, label: "summarization threshold", value: settings.Chat.SummarizationThreshold},
	}

	for _, e := range entries {
		if e.secret && e.value == "" {
			continue
		}
		if err := s.configStore.Set(e.key, e.value); err != nil {
			return fmt.Errorf("save %s: %w", e.label, err)
		}
	}

	return nil
}

// SetNoteSource configures where notes are loaded from. For Notion the
// path argument carries the integration token.
func (s *SettingsService) SetNoteSource(source domain.NoteSourceType, path string) error {
	if !source.IsValid() {
		return fmt.Errorf("invalid note source %q: %w", source, domain.ErrUnsupportedType)
	}
	if path == "" {
		return fmt.Errorf("note source %s needs a path or token: %w", source, domain.ErrInvalidInput)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Notes.Source = source
	if source == domain.NoteSourceNotion {
		settings.Notes.NotionToken = path
	} else {
		settings.Notes.Path = path
	}

	return s.Save(settings)
}

// SetChunkingStrategy selects the chunker.
func (s *SettingsService) SetChunkingStrategy(strategy domain.ChunkingStrategy) error {
	if !strategy.IsValid() {
		return fmt.Errorf("invalid chunking strategy %q: %w", strategy, domain.ErrUnsupportedType)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Retrieval.ChunkingStrategy = strategy
	return s.Save(settings)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate provider supports embeddings
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getFloat keeps an explicit zero; only a missing key falls back.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getNoteSource(defaultVal domain.NoteSourceType) domain.NoteSourceType {
	source := domain.NoteSourceType(s.configStore.GetString(keyNotesSource))
	if !source.IsValid() {
		return defaultVal
	}
	return source
}

func (s *SettingsService) getChunkingStrategy(defaultVal domain.ChunkingStrategy) domain.ChunkingStrategy {
	strategy := domain.ChunkingStrategy(s.configStore.GetString(keyChunking))
	if !strategy.IsValid() {
		return defaultVal
	}
	return strategy
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
