package repositories

import (
	"context"

	"github.com/voxloop/voxloop/domain/entities"
)

// ChunkFunc receives one streamed generation chunk. Chunks arrive in order.
type ChunkFunc func(chunk string)

// LanguageModel abstracts a chat completion backend
type LanguageModel interface {
	// StreamGenerate produces a reply for the given context window, invoking
	// onChunk for every streamed fragment, and returns the full text.
	StreamGenerate(ctx context.Context, messages []entities.ChatMessage, model string, maxTokens int, onChunk ChunkFunc) (string, error)
}
