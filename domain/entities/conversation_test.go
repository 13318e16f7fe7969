package entities

import (
	"testing"
)

func TestConversationAppend(t *testing.T) {
	conv := NewConversation()

	user := conv.Append(NewUserMessage("hello there"))
	if conv.Len() != 1 {
		t.Errorf("Expected 1 message, got %d", conv.Len())
	}
	if user.Role != MessageRoleUser {
		t.Errorf("Expected user role, got %s", user.Role)
	}
	if user.ID == "" {
		t.Error("Expected message ID to be set")
	}

	assistant := conv.Append(NewAssistantMessage("gpt-4o-mini"))
	if conv.Len() != 2 {
		t.Errorf("Expected 2 messages, got %d", conv.Len())
	}
	if !assistant.Streaming {
		t.Error("Expected new assistant message to be streaming")
	}
	if assistant.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %s", assistant.Model)
	}
}

func TestConversationAppendChunk(t *testing.T) {
	conv := NewConversation()
	msg := conv.Append(NewAssistantMessage("gpt-4o"))

	chunks := []string{"Hello", ", ", "world", "!"}
	for _, chunk := range chunks {
		if err := conv.AppendChunk(msg.ID, chunk); err != nil {
			t.Fatalf("AppendChunk() error = %v", err)
		}
	}

	got := conv.Messages()[0].Content
	if got != "Hello, world!" {
		t.Errorf("Expected chunks appended in order, got %q", got)
	}
}

func TestConversationFinishStreamingMakesImmutable(t *testing.T) {
	conv := NewConversation()
	msg := conv.Append(NewAssistantMessage("gpt-4o"))

	if err := conv.AppendChunk(msg.ID, "done"); err != nil {
		t.Fatalf("AppendChunk() error = %v", err)
	}
	conv.FinishStreaming(msg.ID)

	if conv.Messages()[0].Streaming {
		t.Error("Expected message to be finalized")
	}

	if err := conv.AppendChunk(msg.ID, "more"); err != ErrMessageFinalized {
		t.Errorf("Expected ErrMessageFinalized, got %v", err)
	}
	if got := conv.Messages()[0].Content; got != "done" {
		t.Errorf("Expected content unchanged after finalize, got %q", got)
	}
}

func TestConversationSetContent(t *testing.T) {
	conv := NewConversation()
	msg := conv.Append(NewAssistantMessage("gpt-4o"))

	if err := conv.AppendChunk(msg.ID, "partial resp"); err != nil {
		t.Fatalf("AppendChunk() error = %v", err)
	}
	if err := conv.SetContent(msg.ID, "replacement"); err != nil {
		t.Fatalf("SetContent() error = %v", err)
	}
	if got := conv.Messages()[0].Content; got != "replacement" {
		t.Errorf("Expected replaced content, got %q", got)
	}
}

func TestConversationHistoryWindow(t *testing.T) {
	conv := NewConversation()

	for i := 0; i < 5; i++ {
		conv.Append(NewUserMessage("question"))
		reply := conv.Append(NewAssistantMessage("gpt-4o-mini"))
		conv.AppendChunk(reply.ID, "answer")
		conv.FinishStreaming(reply.ID)
	}

	window := conv.HistoryWindow(DefaultHistoryWindow)
	if len(window) != DefaultHistoryWindow {
		t.Fatalf("Expected window of %d, got %d", DefaultHistoryWindow, len(window))
	}

	// Chronological order: oldest first, newest last.
	if window[len(window)-1].Role != MessageRoleAssistant {
		t.Errorf("Expected last window entry to be assistant, got %s", window[len(window)-1].Role)
	}
	if window[0].Role != MessageRoleUser {
		t.Errorf("Expected first window entry to be user, got %s", window[0].Role)
	}
}

func TestConversationHistoryWindowExcludesStreaming(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserMessage("question"))
	streaming := conv.Append(NewAssistantMessage("gpt-4o"))
	conv.AppendChunk(streaming.ID, "partial")

	window := conv.HistoryWindow(DefaultHistoryWindow)
	if len(window) != 1 {
		t.Fatalf("Expected streaming message excluded, got %d entries", len(window))
	}
	if window[0].Content != "question" {
		t.Errorf("Expected only the user message, got %q", window[0].Content)
	}
}
