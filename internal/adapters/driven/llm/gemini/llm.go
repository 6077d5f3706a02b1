// Package gemini provides an LLM service adapter using the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultModel is the generation model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

// Config holds configuration for the Gemini LLM service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the generation model (default: gemini-1.5-flash).
	Model string

	// Endpoint overrides the API endpoint. Optional.
	Endpoint string
}

// LLMService provides LLM operations using Gemini.
type LLMService struct {
	client *genai.Client
	model  string
}

// NewLLMService creates a new Gemini LLM service.
func NewLLMService(ctx context.Context, cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &LLMService{client: client, model: cfg.Model}, nil
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	model := s.generativeModel(nil, driven.ChatOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature})
	model.StopSequences = opts.StopWords

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return responseText(resp), nil
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []domain.ChatMessage, opts driven.ChatOptions) (string, error) {
	session, last, err := s.startChat(messages, opts)
	if err != nil {
		return "", err
	}

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return responseText(resp), nil
}

// ChatStream conducts a multi-turn conversation through the streaming
// iterator. The stream is complete only when a candidate reported a
// finish reason before the iterator was exhausted.
func (s *LLMService) ChatStream(
	ctx context.Context,
	messages []domain.ChatMessage,
	opts driven.ChatOptions,
	onDelta func(string) error,
) error {
	session, last, err := s.startChat(messages, opts)
	if err != nil {
		return err
	}

	iter := session.SendMessageStream(ctx, genai.Text(last))
	finished := false
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream: %w", err)
		}

		if text := responseText(resp); text != "" {
			if err := onDelta(text); err != nil {
				return err
			}
		}
		for _, cand := range resp.Candidates {
			if cand.FinishReason != genai.FinishReasonUnspecified {
				finished = true
			}
		}
	}

	if !finished {
		return domain.ErrStreamTruncated
	}
	return nil
}

// startChat splits messages into system instruction, history and the
// final user turn.
func (s *LLMService) startChat(
	messages []domain.ChatMessage,
	opts driven.ChatOptions,
) (*genai.ChatSession, string, error) {
	system, history, last := splitMessages(messages)
	if last == "" {
		return nil, "", fmt.Errorf("gemini: %w: no user message", domain.ErrInvalidInput)
	}

	session := s.generativeModel(system, opts).StartChat()
	session.History = history
	return session, last, nil
}

// generativeModel returns a fresh model handle so that concurrent calls
// never share a system instruction.
func (s *LLMService) generativeModel(system []string, opts driven.ChatOptions) *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.model)
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))},
		}
	}
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		model.SetTemperature(float32(opts.Temperature))
	}
	return model
}

// splitMessages maps roles onto Gemini's user/model pair. The last
// non-system message becomes the turn to send.
func splitMessages(messages []domain.ChatMessage) (system []string, history []*genai.Content, last string) {
	var turns []domain.ChatMessage
	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	if len(turns) == 0 {
		return system, nil, ""
	}

	for _, msg := range turns[:len(turns)-1] {
		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return system, history, turns[len(turns)-1].Content
}

// responseText concatenates the text parts of every candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the API key by reading the first listed model.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.client.ListModels(ctx).Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return s.client.Close()
}
