package clip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *Embedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewEmbedder(Config{BaseURL: server.URL + "/"})
}

func TestEmbedder_EmbedText(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/post", r.URL.Path)
		var req postRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Data, 1) {
			assert.Equal(t, "sunny beach", req.Data[0].Text)
		}
		fmt.Fprint(w, `{"data":[{"embedding":[3,4]}]}`)
	})

	vec, err := e.EmbedText(context.Background(), "sunny beach")

	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, vec, 1e-6)
}

func TestEmbedder_EmbedImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beach.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o600))

	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		var req postRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Data, 1) {
			assert.True(t, strings.HasPrefix(req.Data[0].URI, "data:image/png;base64,"))
		}
		fmt.Fprint(w, `{"data":[{"embedding":[0,2]}]}`)
	})

	vec, err := e.EmbedImage(context.Background(), path)

	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 1}, vec, 1e-6)
}

func TestEmbedder_EmbedImage_Rejects(t *testing.T) {
	e := NewEmbedder(Config{})

	_, err := e.EmbedImage(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))
	_, err = e.EmbedImage(context.Background(), path)
	assert.Error(t, err)
}

func TestEmbedder_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		e := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := e.EmbedText(context.Background(), "x")
		assert.Error(t, err)
	})

	t.Run("failed status header", func(t *testing.T) {
		e := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"data":[],"header":{"status":{"code":"ERROR","description":"boom"}}}`)
		})
		_, err := e.EmbedText(context.Background(), "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("empty data", func(t *testing.T) {
		e := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"data":[]}`)
		})
		_, err := e.EmbedText(context.Background(), "x")
		assert.Error(t, err)
	})
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, normalise([]float64{0, 0}))
	assert.InDeltaSlice(t, []float32{1, 0}, normalise([]float64{5, 0}), 1e-6)
}

func TestEmbedder_Ping(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dry_run", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, e.Ping(context.Background()))
	assert.NoError(t, e.Close())
}
