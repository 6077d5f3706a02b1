package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestNewSettingsService(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	require.NotNil(t, settings)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Notes.Source, settings.Notes.Source)
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.LLM.Provider, settings.LLM.Provider)
	assert.Equal(t, defaults.Retrieval, settings.Retrieval)
	assert.Equal(t, defaults.Chat, settings.Chat)
	assert.Equal(t, defaults.Image.BaseURL, settings.Image.BaseURL)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("notes.source", "markdown")
	_ = store.Set("notes.path", "/home/me/notes")
	_ = store.Set("embedding.provider", "openai")
	_ = store.Set("embedding.model", "text-embedding-3-large")
	_ = store.Set("retrieval.max_results", 7)
	_ = store.Set("retrieval.search_threshold", 0.25)
	_ = store.Set("retrieval.chunking_strategy", "hierarchical")
	_ = store.Set("retrieval.enable_graph", true)
	_ = store.Set("chat.max_recent_messages", 4)

	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.NoteSourceMarkdown, settings.Notes.Source)
	assert.Equal(t, "/home/me/notes", settings.Notes.Path)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
	assert.Equal(t, 7, settings.Retrieval.MaxResults)
	assert.InDelta(t, 0.25, settings.Retrieval.SearchThreshold, 1e-9)
	assert.Equal(t, domain.ChunkingHierarchical, settings.Retrieval.ChunkingStrategy)
	assert.True(t, settings.Retrieval.EnableGraph)
	assert.False(t, settings.Retrieval.EnableTree)
	assert.Equal(t, 4, settings.Chat.MaxRecentMessages)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("notes.source", "evernote")
	_ = store.Set("embedding.provider", "invalid_provider")
	_ = store.Set("retrieval.chunking_strategy", "sentences")

	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Notes.Source, settings.Notes.Source)
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Retrieval.ChunkingStrategy, settings.Retrieval.ChunkingStrategy)
}

func TestSettingsService_Get_ExplicitZeroThresholdKept(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("retrieval.image_weight", 0.0)
	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Zero(t, settings.Retrieval.ImageWeight)
}

func TestSettingsService_Save_RoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	settings := domain.DefaultAppSettings()
	settings.Notes = domain.NotesSettings{Source: domain.NoteSourceKeep, Path: "/takeout/Keep"}
	settings.Embedding = domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		Model:    "nomic-embed-text",
		BaseURL:  "http://localhost:11434",
	}
	settings.LLM = domain.LLMSettings{
		Provider: domain.AIProviderAnthropic,
		Model:    "claude-3-5-sonnet-latest",
		APIKey:   "sk-ant-test",
	}
	settings.Image.Enabled = true
	settings.Retrieval.ImageWeight = 0.5
	settings.Retrieval.EnableTree = true

	require.NoError(t, service.Save(&settings))

	retrieved, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, *retrieved)
}

func TestSettingsService_Save_EmptySecretsNotWritten(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	settings := domain.DefaultAppSettings()
	require.NoError(t, service.Save(&settings))

	_, exists := store.Get("embedding.api_key")
	assert.False(t, exists)
	_, exists = store.Get("llm.api_key")
	assert.False(t, exists)
	_, exists = store.Get("notes.notion_token")
	assert.False(t, exists)
}

// Mock config store that fails on Set
type failingConfigStore struct {
	*memory.ConfigStore
	failOn string
}

func (f *failingConfigStore) Set(key string, value any) error {
	if f.failOn == "" || key == f.failOn {
		return assert.AnError
	}
	return f.ConfigStore.Set(key, value)
}

func TestSettingsService_Save_Errors(t *testing.T) {
	tests := []struct {
		key   string
		label string
	}{
		{"notes.source", "notes source"},
		{"embedding.provider", "embedding provider"},
		{"embedding.api_key", "embedding api_key"},
		{"llm.model", "llm model"},
		{"image.enabled", "image enabled"},
		{"retrieval.search_threshold", "search threshold"},
		{"retrieval.chunking_strategy", "chunking strategy"},
		{"chat.summarization_threshold", "summarization threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			store := &failingConfigStore{ConfigStore: memory.NewConfigStore(), failOn: tt.key}
			service := NewSettingsService(store, nil)

			settings := domain.DefaultAppSettings()
			settings.Embedding.APIKey = "sk-test"

			err := service.Save(&settings)
			require.Error(t, err)
			assert.ErrorIs(t, err, assert.AnError)
			assert.Contains(t, err.Error(), tt.label)
		})
	}
}

func TestSettingsService_SetNoteSource(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NoError(t, service.SetNoteSource(domain.NoteSourceMarkdown, "/notes"))

	settings, _ := service.Get()
	assert.Equal(t, domain.NoteSourceMarkdown, settings.Notes.Source)
	assert.Equal(t, "/notes", settings.Notes.Path)
	assert.True(t, settings.Notes.IsConfigured())
}

func TestSettingsService_SetNoteSource_NotionStoresToken(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)
	_ = store.Set("notes.path", "/old")

	require.NoError(t, service.SetNoteSource(domain.NoteSourceNotion, "secret_abc"))

	settings, _ := service.Get()
	assert.Equal(t, domain.NoteSourceNotion, settings.Notes.Source)
	assert.Equal(t, "secret_abc", settings.Notes.NotionToken)
	assert.Equal(t, "/old", settings.Notes.Path)
}

func TestSettingsService_SetNoteSource_Invalid(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	err := service.SetNoteSource(domain.NoteSourceType("evernote"), "/notes")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	err = service.SetNoteSource(domain.NoteSourceKeep, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_SetChunkingStrategy(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NoError(t, service.SetChunkingStrategy(domain.ChunkingHierarchical))

	settings, _ := service.Get()
	assert.Equal(t, domain.ChunkingHierarchical, settings.Retrieval.ChunkingStrategy)

	err := service.SetChunkingStrategy(domain.ChunkingStrategy("sentences"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestSettingsService_SetEmbeddingProvider_Ollama(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	err := service.SetEmbeddingProvider(domain.AIProviderOllama, "nomic-embed-text", "")

	require.NoError(t, err)

	settings, _ := service.Get()
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
	assert.Empty(t, settings.Embedding.APIKey)
}

func TestSettingsService_SetEmbeddingProvider_Gemini(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	err := service.SetEmbeddingProvider(domain.AIProviderGemini, "", "AIza-test")

	require.NoError(t, err)

	settings, _ := service.Get()
	assert.Equal(t, domain.AIProviderGemini, settings.Embedding.Provider)
	assert.Equal(t, domain.DefaultEmbeddingModels()[domain.AIProviderGemini], settings.Embedding.Model)
	assert.Equal(t, "AIza-test", settings.Embedding.APIKey)
	assert.Empty(t, settings.Embedding.BaseURL)
}

func TestSettingsService_SetEmbeddingProvider_RequiresAPIKey(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	err := service.SetEmbeddingProvider(domain.AIProviderOpenAI, "text-embedding-3-small", "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

func TestSettingsService_SetEmbeddingProvider_InvalidProvider(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	err := service.SetEmbeddingProvider(domain.AIProvider("invalid"), "", "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid embedding provider")
}

func TestSettingsService_SetEmbeddingProvider_AnthropicNotSupported(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	// Anthropic doesn't support embeddings
	err := service.SetEmbeddingProvider(domain.AIProviderAnthropic, "", "sk-ant-test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does not support embeddings")
}

func TestSettingsService_SetEmbeddingProvider_PreservesExistingBaseURL(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	_ = store.Set("embedding.base_url", "http://custom:8080")

	err := service.SetEmbeddingProvider(domain.AIProviderOllama, "nomic-embed-text", "")
	require.NoError(t, err)

	settings, _ := service.Get()
	assert.Equal(t, "http://custom:8080", settings.Embedding.BaseURL)
}

func TestSettingsService_SetLLMProvider_Anthropic(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	err := service.SetLLMProvider(domain.AIProviderAnthropic, "", "sk-ant-test")

	require.NoError(t, err)

	settings, _ := service.Get()
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], settings.LLM.Model)
	assert.Equal(t, "sk-ant-test", settings.LLM.APIKey)
}

func TestSettingsService_SetLLMProvider_CloudClearsBaseURL(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NoError(t, service.SetLLMProvider(domain.AIProviderOllama, "llama3.2", ""))
	settings, _ := service.Get()
	assert.Equal(t, "http://localhost:11434", settings.LLM.BaseURL)

	require.NoError(t, service.SetLLMProvider(domain.AIProviderOpenAI, "gpt-4o", "sk-test"))
	settings, _ = service.Get()
	assert.Equal(t, domain.AIProviderOpenAI, settings.LLM.Provider)
	assert.Empty(t, settings.LLM.BaseURL)
}

func TestSettingsService_SetLLMProvider_RequiresAPIKey(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	err := service.SetLLMProvider(domain.AIProviderGemini, "", "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

func TestSettingsService_SetLLMProvider_Invalid(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	err := service.SetLLMProvider(domain.AIProvider("invalid"), "", "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid LLM provider")
}

func TestSettingsService_GetDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}

// Mock AIConfigValidator for testing
type mockAIConfigValidator struct {
	embedErr error
	llmErr   error
}

func (m *mockAIConfigValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error {
	return m.embedErr
}

func (m *mockAIConfigValidator) ValidateLLM(_ *domain.LLMSettings) error {
	return m.llmErr
}

func TestSettingsService_ValidateEmbeddingConfig(t *testing.T) {
	store := memory.NewConfigStore()

	assert.NoError(t, NewSettingsService(store, nil).ValidateEmbeddingConfig())
	assert.NoError(t, NewSettingsService(store, &mockAIConfigValidator{}).ValidateEmbeddingConfig())
	assert.ErrorIs(t,
		NewSettingsService(store, &mockAIConfigValidator{embedErr: assert.AnError}).ValidateEmbeddingConfig(),
		assert.AnError)
}

func TestSettingsService_ValidateLLMConfig(t *testing.T) {
	store := memory.NewConfigStore()

	assert.NoError(t, NewSettingsService(store, nil).ValidateLLMConfig())
	assert.NoError(t, NewSettingsService(store, &mockAIConfigValidator{}).ValidateLLMConfig())
	assert.ErrorIs(t,
		NewSettingsService(store, &mockAIConfigValidator{llmErr: assert.AnError}).ValidateLLMConfig(),
		assert.AnError)
}
