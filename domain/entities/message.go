package entities

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the author of a message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message represents one turn's content in the conversation log.
// Content is mutable while Streaming is true and immutable afterwards.
type Message struct {
	ID         string      `json:"id"`
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	Model      string      `json:"model,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	AudioRef   string      `json:"audio_ref,omitempty"`
	Streaming  bool        `json:"streaming"`
	DurationMs int64       `json:"duration_ms,omitempty"`
}

// NewUserMessage creates a finalized user message.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      MessageRoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates an empty assistant message in streaming state.
// Content is filled incrementally by the orchestrator as generation chunks arrive.
func NewAssistantMessage(model string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      MessageRoleAssistant,
		Model:     model,
		CreatedAt: time.Now(),
		Streaming: true,
	}
}
