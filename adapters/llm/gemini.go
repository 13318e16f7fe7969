package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/voxloop/voxloop/domain/entities"
	"github.com/voxloop/voxloop/domain/repositories"
)

// GeminiLLM implements LanguageModel using Google's Gemini API.
type GeminiLLM struct {
	client *genai.Client
	logger *zap.Logger
}

var _ repositories.LanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, apiKey string, logger *zap.Logger) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiLLM{client: client, logger: logger}, nil
}

// StreamGenerate produces a reply for the given history, invoking onChunk for
// each text fragment as it arrives. The full reply is returned on success; on
// error the chunks already delivered stand.
func (g *GeminiLLM) StreamGenerate(ctx context.Context, messages []entities.ChatMessage, model string, maxTokens int, onChunk repositories.ChunkFunc) (string, error) {
	contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}

	var full strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return full.String(), fmt.Errorf("gemini stream failed: %w", err)
		}
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text == "" {
					continue
				}
				onChunk(part.Text)
				full.WriteString(part.Text)
			}
		}
	}

	g.logger.Debug("gemini generation complete",
		zap.String("model", model),
		zap.Int("replyLength", full.Len()))
	return full.String(), nil
}

// toGeminiContents maps conversation history into Gemini roles. Assistant
// turns become model turns; everything else is treated as user input.
func toGeminiContents(messages []entities.ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		var role genai.Role = genai.RoleUser
		if msg.Role == entities.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}
