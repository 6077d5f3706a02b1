package domain

const unknownDescription = "Unknown"

// ChunkingStrategy selects how notes are split into chunks.
type ChunkingStrategy string

// Available chunking strategies.
const (
	// ChunkingStructure splits at paragraphs, headings and list items.
	ChunkingStructure ChunkingStrategy = "structure"

	// ChunkingHierarchical parses notes into a heading tree first.
	ChunkingHierarchical ChunkingStrategy = "hierarchical"
)

// IsValid returns true if the strategy is recognised.
func (s ChunkingStrategy) IsValid() bool {
	switch s {
	case ChunkingStructure, ChunkingHierarchical:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s ChunkingStrategy) String() string {
	return string(s)
}

// Description returns a human-readable description of the strategy.
func (s ChunkingStrategy) Description() string {
	switch s {
	case ChunkingStructure:
		return "Structure (paragraphs, headings, list items)"
	case ChunkingHierarchical:
		return "Hierarchical (heading tree with section trails)"
	default:
		return unknownDescription
	}
}

// NoteSourceType identifies where notes are loaded from.
type NoteSourceType string

// Available note sources.
const (
	NoteSourceKeep     NoteSourceType = "keep"
	NoteSourceMarkdown NoteSourceType = "markdown"
	NoteSourceNotion   NoteSourceType = "notion"
)

// IsValid returns true if the note source is recognised.
func (t NoteSourceType) IsValid() bool {
	switch t {
	case NoteSourceKeep, NoteSourceMarkdown, NoteSourceNotion:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t NoteSourceType) String() string {
	return string(t)
}

// Description returns a human-readable description of the source.
func (t NoteSourceType) Description() string {
	switch t {
	case NoteSourceKeep:
		return "Google Keep (Takeout export)"
	case NoteSourceMarkdown:
		return "Markdown folder"
	case NoteSourceNotion:
		return "Notion workspace"
	default:
		return unknownDescription
	}
}

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// NotesSettings holds note source configuration.
type NotesSettings struct {
	// Source selects the connector.
	Source NoteSourceType

	// Path is the export or notes directory (keep, markdown).
	Path string

	// NotionToken is the integration token (notion).
	NotionToken string
}

// IsConfigured returns true if the note source is set up.
func (n NotesSettings) IsConfigured() bool {
	switch n.Source {
	case NoteSourceKeep, NoteSourceMarkdown:
		return n.Path != ""
	case NoteSourceNotion:
		return n.NotionToken != ""
	default:
		return false
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI and Gemini).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI, Anthropic and Gemini).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ImageSettings holds image embedding configuration.
type ImageSettings struct {
	// Enabled turns on image indexing and image search.
	Enabled bool

	// BaseURL is the CLIP embedding server endpoint.
	BaseURL string
}

// RetrievalSettings holds scoring and routing configuration.
type RetrievalSettings struct {
	// MaxResults bounds search and router results.
	MaxResults int

	// SearchThreshold is the semantic score a note must exceed on its own.
	SearchThreshold float64

	// ImageThreshold is the image score a note must exceed on its own.
	ImageThreshold float64

	// ImageWeight blends the image score into the combined score.
	ImageWeight float64

	// DefaultClusters is the cluster count used when none is requested.
	DefaultClusters int

	// ChunkingStrategy selects the chunker.
	ChunkingStrategy ChunkingStrategy

	// EnableGraph builds the relation graph backend during indexing.
	EnableGraph bool

	// EnableTree builds the summary tree backend during indexing.
	EnableTree bool
}

// ChatSettings holds conversation configuration.
type ChatSettings struct {
	// ContextNotes bounds the merged legacy note context.
	ContextNotes int

	// MaxRecentMessages is how many messages survive summarisation.
	MaxRecentMessages int

	// SummarizationThreshold is the non-system message count above which
	// older messages are summarised.
	SummarizationThreshold int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Notes     NotesSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Image     ImageSettings
	Retrieval RetrievalSettings
	Chat      ChatSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI features (Embedding, LLM) are left unconfigured by default.
// Users must explicitly configure them via settings wizard.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Notes:     NotesSettings{Source: NoteSourceKeep},
		Embedding: EmbeddingSettings{},
		LLM:       LLMSettings{},
		Image:     ImageSettings{BaseURL: "http://localhost:51000"},
		Retrieval: RetrievalSettings{
			MaxResults:       20,
			SearchThreshold:  0.0,
			ImageThreshold:   0.2,
			ImageWeight:      0.3,
			DefaultClusters:  8,
			ChunkingStrategy: ChunkingStructure,
		},
		Chat: ChatSettings{
			ContextNotes:           15,
			MaxRecentMessages:      6,
			SummarizationThreshold: 8,
		},
	}
}

// AllChunkingStrategies returns all available chunking strategies.
func AllChunkingStrategies() []ChunkingStrategy {
	return []ChunkingStrategy{ChunkingStructure, ChunkingHierarchical}
}

// AllNoteSources returns all available note sources.
func AllNoteSources() []NoteSourceType {
	return []NoteSourceType{NoteSourceKeep, NoteSourceMarkdown, NoteSourceNotion}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-1.5-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}
