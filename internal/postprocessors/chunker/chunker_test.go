package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("structure", func(t *testing.T) {
		c, err := New(StrategyStructure)
		require.NoError(t, err)
		assert.Equal(t, "structure", c.Name())
	})

	t.Run("empty name defaults to structure", func(t *testing.T) {
		c, err := New("")
		require.NoError(t, err)
		assert.Equal(t, StrategyStructure, c.Name())
	})

	t.Run("hierarchical", func(t *testing.T) {
		c, err := New(StrategyHierarchical)
		require.NoError(t, err)
		assert.Equal(t, "hierarchical", c.Name())
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := New("semantic")
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})
}

func TestOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := newConfig(nil)
		assert.Equal(t, domain.MinChunkLength, c.minLength)
		assert.Equal(t, domain.MaxChunkLength, c.maxLength)
		assert.Equal(t, domain.ShortNoteThreshold, c.shortNote)
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		c := newConfig([]Option{WithMinLength(0), WithMaxLength(-5), WithShortNoteThreshold(-1)})
		assert.Equal(t, defaultConfig(), c)
	})

	t.Run("minimum reduced when it cannot fit twice", func(t *testing.T) {
		c := newConfig([]Option{WithMinLength(80), WithMaxLength(100)})
		assert.Equal(t, 25, c.minLength)
	})
}

func TestSplitLong(t *testing.T) {
	content := strings.TrimSpace(strings.Repeat("lorem ipsum ", 40))
	pieces := splitLong(content, span{0, len(content)}, 20, 100)

	require.Greater(t, len(pieces), 1)
	for i, p := range pieces {
		n := p.length(content)
		assert.LessOrEqual(t, n, 100, "piece %d", i)
		assert.GreaterOrEqual(t, n, 20, "piece %d", i)
		assert.Equal(t, strings.TrimSpace(p.text(content)), p.text(content))
		if i > 0 {
			assert.Greater(t, p.start, pieces[i-1].end)
		}
	}
	assert.Equal(t, len(content), pieces[len(pieces)-1].end)
}

func TestSplitLong_NoWhitespace(t *testing.T) {
	content := strings.Repeat("x", 250)
	pieces := splitLong(content, span{0, len(content)}, 20, 100)

	total := 0
	for _, p := range pieces {
		assert.LessOrEqual(t, p.length(content), 100)
		assert.GreaterOrEqual(t, p.length(content), 20)
		total += p.length(content)
	}
	assert.Equal(t, 250, total)
}

func TestSplitLong_MultibyteBoundaries(t *testing.T) {
	content := strings.Repeat("é", 300)
	for _, p := range splitLong(content, span{0, len(content)}, 20, 100) {
		assert.True(t, strings.HasPrefix(p.text(content), "é"))
		assert.LessOrEqual(t, p.length(content), 100)
	}
}

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}
