package entities

import (
	"errors"
	"sync"
	"time"
)

// DefaultHistoryWindow is the number of prior messages sent as model context.
const DefaultHistoryWindow = 6

var ErrMessageFinalized = errors.New("message is no longer streaming")

// ChatMessage is a role/content pair in the shape the language model ports expect.
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Conversation is the ordered, append-only message log for one session.
// Messages are never deleted; a streaming assistant message is the only
// mutable entry and becomes immutable once FinishStreaming is called.
type Conversation struct {
	mu       sync.RWMutex
	messages []*Message
}

// NewConversation creates an empty conversation log.
func NewConversation() *Conversation {
	return &Conversation{
		messages: make([]*Message, 0),
	}
}

// Append adds a message to the end of the log and returns it.
func (c *Conversation) Append(msg *Message) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return msg
}

// AppendChunk appends a generation chunk to the streaming message with the
// given ID. Chunks are applied strictly in arrival order.
func (c *Conversation) AppendChunk(messageID string, chunk string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := c.findLocked(messageID)
	if msg == nil {
		return errors.New("message not found")
	}
	if !msg.Streaming {
		return ErrMessageFinalized
	}
	msg.Content += chunk
	return nil
}

// SetContent replaces the content of a streaming message. Used when a failed
// generation is substituted with the fixed apology text.
func (c *Conversation) SetContent(messageID string, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := c.findLocked(messageID)
	if msg == nil {
		return errors.New("message not found")
	}
	if !msg.Streaming {
		return ErrMessageFinalized
	}
	msg.Content = content
	return nil
}

// FinishStreaming marks the message immutable and records its duration.
func (c *Conversation) FinishStreaming(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg := c.findLocked(messageID); msg != nil && msg.Streaming {
		msg.Streaming = false
		msg.DurationMs = time.Since(msg.CreatedAt).Milliseconds()
	}
}

// AttachAudio records the synthesized audio reference on a message.
func (c *Conversation) AttachAudio(messageID string, audioRef string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg := c.findLocked(messageID); msg != nil {
		msg.AudioRef = audioRef
	}
}

// Messages returns a snapshot copy of the log in order.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

// Len returns the number of messages in the log.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// HistoryWindow returns the last n finalized messages as role/content pairs,
// rebuilt fresh on every call. Streaming messages are excluded so a partially
// generated reply never leaks into model context.
func (c *Conversation) HistoryWindow(n int) []ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	window := make([]ChatMessage, 0, n)
	for i := len(c.messages) - 1; i >= 0 && len(window) < n; i-- {
		msg := c.messages[i]
		if msg.Streaming {
			continue
		}
		window = append(window, ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	// Reverse into chronological order.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window
}

func (c *Conversation) findLocked(messageID string) *Message {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == messageID {
			return c.messages[i]
		}
	}
	return nil
}
