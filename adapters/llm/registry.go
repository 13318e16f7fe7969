package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain/entities"
	"github.com/voxloop/voxloop/domain/repositories"
)

// Registry dispatches generation to the backend that serves the requested
// model ID. It implements LanguageModel itself, so the orchestrator never
// knows there is more than one vendor behind it.
type Registry struct {
	backends map[string]repositories.LanguageModel
	fallback repositories.LanguageModel
	logger   *zap.Logger
}

// NewRegistry creates a registry with the given fallback backend. The
// fallback serves any model ID no registered backend claims.
func NewRegistry(fallback repositories.LanguageModel, logger *zap.Logger) *Registry {
	return &Registry{
		backends: make(map[string]repositories.LanguageModel),
		fallback: fallback,
		logger:   logger,
	}
}

// Register routes model IDs beginning with prefix to the given backend.
func (r *Registry) Register(prefix string, backend repositories.LanguageModel) {
	r.backends[strings.ToLower(prefix)] = backend
}

// StreamGenerate implements repositories.LanguageModel
func (r *Registry) StreamGenerate(ctx context.Context, messages []entities.ChatMessage, model string, maxTokens int, onChunk repositories.ChunkFunc) (string, error) {
	backend := r.resolve(model)
	if backend == nil {
		return "", fmt.Errorf("no backend available for model %s", model)
	}
	return backend.StreamGenerate(ctx, messages, model, maxTokens, onChunk)
}

func (r *Registry) resolve(model string) repositories.LanguageModel {
	lower := strings.ToLower(model)
	for prefix, backend := range r.backends {
		if strings.HasPrefix(lower, prefix) {
			return backend
		}
	}
	if r.fallback == nil {
		r.logger.Warn("no backend registered for model", zap.String("model", model))
	}
	return r.fallback
}
