package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// mockSettingsService records settings changes in memory.
type mockSettingsService struct {
	settings   domain.AppSettings
	source     domain.NoteSourceType
	sourceArg  string
	chunking   domain.ChunkingStrategy
	embedding  domain.AIProvider
	embedModel string
	saved      bool
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	m.saved = true
	return nil
}

func (m *mockSettingsService) SetNoteSource(source domain.NoteSourceType, path string) error {
	m.source = source
	m.sourceArg = path
	return nil
}

func (m *mockSettingsService) SetChunkingStrategy(strategy domain.ChunkingStrategy) error {
	if !strategy.IsValid() {
		return domain.ErrInvalidInput
	}
	m.chunking = strategy
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, _ string) error {
	m.embedding = provider
	m.embedModel = model
	return nil
}

func (m *mockSettingsService) SetLLMProvider(_ domain.AIProvider, _, _ string) error {
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return nil
}

func (m *mockSettingsService) ValidateLLMConfig() error {
	return nil
}

func setupSettingsTest() (*mockSettingsService, func()) {
	old := settingsService
	svc := newMockSettingsService()
	settingsService = svc
	return svc, func() {
		settingsService = old
		rootCmd.SetIn(nil)
	}
}

func TestSettingsShowCmd(t *testing.T) {
	_, cleanup := setupSettingsTest()
	defer cleanup()

	out, err := runRoot(t, "settings", "show")

	require.NoError(t, err)
	for _, section := range []string{"[Notes]", "[Embedding]", "[LLM]", "[Images]", "[Retrieval]", "[Chat]"} {
		assert.Contains(t, out, section)
	}
	assert.Contains(t, out, "Max results: 20")
	assert.Contains(t, out, "Default clusters: 8")
}

func TestSettingsSourceCmd_WithPath(t *testing.T) {
	svc, cleanup := setupSettingsTest()
	defer cleanup()

	out, err := runRoot(t, "settings", "source", "Markdown", "/home/me/notes")

	require.NoError(t, err)
	assert.Contains(t, out, "Note source set to:")
	assert.Equal(t, domain.NoteSourceMarkdown, svc.source)
	assert.Equal(t, "/home/me/notes", svc.sourceArg)
}

func TestSettingsSourceCmd_NotionPromptsForToken(t *testing.T) {
	svc, cleanup := setupSettingsTest()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("secret_abc123\n"))

	out, err := runRoot(t, "settings", "source", "notion")

	require.NoError(t, err)
	assert.Contains(t, out, "Enter Notion integration token:")
	assert.Equal(t, domain.NoteSourceNotion, svc.source)
	assert.Equal(t, "secret_abc123", svc.sourceArg)
}

func TestSettingsSourceCmd_Unknown(t *testing.T) {
	_, cleanup := setupSettingsTest()
	defer cleanup()

	_, err := runRoot(t, "settings", "source", "evernote", "x")

	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestSettingsChunkingCmd(t *testing.T) {
	svc, cleanup := setupSettingsTest()
	defer cleanup()

	out, err := runRoot(t, "settings", "chunking", "hierarchical")

	require.NoError(t, err)
	assert.Equal(t, domain.ChunkingHierarchical, svc.chunking)
	assert.Contains(t, out, "recall index")
}

func TestSettingsFeaturesCmd(t *testing.T) {
	svc, cleanup := setupSettingsTest()
	defer cleanup()

	out, err := runRoot(t, "settings", "features", "--graph", "--images", "--clip-url", "http://clip:51000")

	require.NoError(t, err)
	assert.True(t, svc.saved)
	assert.True(t, svc.settings.Retrieval.EnableGraph)
	assert.False(t, svc.settings.Retrieval.EnableTree)
	assert.True(t, svc.settings.Image.Enabled)
	assert.Equal(t, "http://clip:51000", svc.settings.Image.BaseURL)
	assert.Contains(t, out, "Relation graph: yes")
}

func TestSettingsCmd_ServiceNotConfigured(t *testing.T) {
	old := settingsService
	settingsService = nil
	defer func() { settingsService = old }()

	_, err := runRoot(t, "settings", "show")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings service not configured")
}

func TestConfirm(t *testing.T) {
	assert.True(t, confirm("", true))
	assert.False(t, confirm("", false))
	assert.True(t, confirm("YES", false))
	assert.False(t, confirm("n", true))
	assert.True(t, confirm("maybe", true))
}

func TestMaskOrUnset(t *testing.T) {
	assert.Equal(t, "(not set)", maskOrUnset(""))
	assert.Equal(t, "sk-1...cdef", maskOrUnset("sk-1234567890abcdef"))
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}
