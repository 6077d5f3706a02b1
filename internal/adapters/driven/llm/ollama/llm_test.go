package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewLLMService(LLMConfig{BaseURL: server.URL, Model: "llama-test"})
}

func stream(svc *LLMService) ([]string, error) {
	var deltas []string
	err := svc.ChatStream(context.Background(),
		[]domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
		driven.ChatOptions{},
		func(d string) error {
			deltas = append(deltas, d)
			return nil
		})
	return deltas, err
}

func TestNewLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{})

	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultBaseURL, svc.baseURL)
}

func TestLLMService_Generate(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-test", req.Model)
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 300, req.Options.NumPredict)

		fmt.Fprint(w, `{"response":"a summary","done":true}`)
	})

	out, err := svc.Generate(context.Background(), "summarise", driven.GenerateOptions{MaxTokens: 300})

	require.NoError(t, err)
	assert.Equal(t, "a summary", out)
}

func TestLLMService_Chat(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Nil(t, req.Options)

		fmt.Fprint(w, `{"message":{"role":"assistant","content":"hello"},"done":true}`)
	})

	out, err := svc.Chat(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}}, driven.ChatOptions{})

	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestLLMService_Chat_Status(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model not found"}`)
	})

	_, err := svc.Chat(context.Background(), nil, driven.ChatOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestLLMService_ChatStream(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		fmt.Fprintln(w, `{"message":{"content":"The "},"done":false}`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"message":{"content":"answer"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	})

	deltas, err := stream(svc)

	require.NoError(t, err)
	assert.Equal(t, []string{"The ", "answer"}, deltas)
}

func TestLLMService_ChatStream_Truncated(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"The "},"done":false}`)
	})

	deltas, err := stream(svc)

	assert.ErrorIs(t, err, domain.ErrStreamTruncated)
	assert.Equal(t, []string{"The "}, deltas)
}

func TestLLMService_ChatStream_ErrorLine(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"error":"out of memory"}`)
	})

	_, err := stream(svc)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestLLMService_ChatStream_BadJSON(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `not json`)
	})

	_, err := stream(svc)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStreamTruncated)
}

func TestLLMService_Ping(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"models":[]}`)
	})

	assert.NoError(t, svc.Ping(context.Background()))
}

func TestLLMService_Ping_Unreachable(t *testing.T) {
	svc := NewLLMService(LLMConfig{BaseURL: "http://127.0.0.1:1"})

	assert.Error(t, svc.Ping(context.Background()))
}
