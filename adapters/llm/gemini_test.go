package llm

import (
	"testing"

	"google.golang.org/genai"

	"github.com/voxloop/voxloop/domain/entities"
)

func TestToGeminiContents(t *testing.T) {
	messages := []entities.ChatMessage{
		{Role: entities.MessageRoleUser, Content: "hello"},
		{Role: entities.MessageRoleAssistant, Content: "hi there"},
		{Role: entities.MessageRoleUser, Content: "how are you?"},
	}

	contents := toGeminiContents(messages)
	if len(contents) != len(messages) {
		t.Fatalf("Expected %d contents, got %d", len(messages), len(contents))
	}

	wantRoles := []genai.Role{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, content := range contents {
		if content.Role != string(wantRoles[i]) {
			t.Errorf("contents[%d].Role = %q, want %q", i, content.Role, wantRoles[i])
		}
		if len(content.Parts) != 1 || content.Parts[0].Text != messages[i].Content {
			t.Errorf("contents[%d] text = %v, want %q", i, content.Parts, messages[i].Content)
		}
	}
}

func TestToGeminiContents_Empty(t *testing.T) {
	if contents := toGeminiContents(nil); len(contents) != 0 {
		t.Errorf("Expected no contents for empty history, got %d", len(contents))
	}
}
