package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	old := version
	SetVersion(v)
	t.Cleanup(func() { version = old })
}

func TestVersionCmd(t *testing.T) {
	withVersion(t, "1.4.0")
	t.Cleanup(resetFlags)

	out, err := runRoot(t, "version")

	require.NoError(t, err)
	assert.Equal(t, "recall version 1.4.0\n", out)
}

func TestVersionCmd_Verbose(t *testing.T) {
	withVersion(t, "dev")
	svc, cleanup := setupSettingsTest()
	defer cleanup()
	t.Cleanup(resetFlags)
	svc.settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"}
	svc.settings.LLM = domain.LLMSettings{}

	out, err := runRoot(t, "version", "--verbose")

	require.NoError(t, err)
	assert.Contains(t, out, "recall version dev\n")
	assert.Contains(t, out, "go: "+runtime.Version())
	assert.Contains(t, out, "embedding: ollama/nomic-embed-text\n")
	assert.Contains(t, out, "llm: none\n")
}

func TestJoinModel(t *testing.T) {
	assert.Equal(t, "openai/gpt-4o", joinModel("openai", "gpt-4o"))
	assert.Equal(t, "openai", joinModel("openai", ""))
	assert.Equal(t, "", joinModel("", "gpt-4o"))
}
