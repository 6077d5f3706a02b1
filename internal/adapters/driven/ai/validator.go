package ai

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings before `recall settings` saves
// them, by building the service and pinging it once.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator returns a validator using the startup ping timeout.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{timeout: pingTimeout}
}

// ValidateEmbedding returns nil when embeddings are not configured.
func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return err
	}
	return v.reach(svc)
}

// ValidateLLM returns nil when no chat model is configured.
func (v *ConfigValidator) ValidateLLM(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateLLMService(settings)
	if err != nil || svc == nil {
		return err
	}
	return v.reach(svc)
}

type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

func (v *ConfigValidator) reach(svc pinger) error {
	defer svc.Close()
	return pingWithin(v.timeout, svc.Ping)
}
