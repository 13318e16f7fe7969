package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain/entities"
	"github.com/voxloop/voxloop/domain/repositories"
)

// MockLLM streams a canned reply word by word. It stands in for a real
// backend when no API keys are configured, keeping the streaming path honest.
type MockLLM struct {
	logger *zap.Logger
}

// NewMockLLM creates a new mock language model
func NewMockLLM(logger *zap.Logger) repositories.LanguageModel {
	return &MockLLM{logger: logger}
}

// StreamGenerate implements repositories.LanguageModel
func (m *MockLLM) StreamGenerate(ctx context.Context, messages []entities.ChatMessage, model string, maxTokens int, onChunk repositories.ChunkFunc) (string, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	m.logger.Info("Generating mock reply",
		zap.String("model", model),
		zap.Int("historyLength", len(messages)))

	reply := "You said: " + last + ". This is a mock reply, configure an API key for real answers."
	var full strings.Builder
	for _, word := range strings.SplitAfter(reply, " ") {
		select {
		case <-ctx.Done():
			return full.String(), ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
		onChunk(word)
		full.WriteString(word)
	}
	return full.String(), nil
}
