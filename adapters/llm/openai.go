package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain/entities"
	"github.com/voxloop/voxloop/domain/repositories"
)

// OpenAILLM implements LanguageModel using the OpenAI chat completion API.
type OpenAILLM struct {
	client *openai.Client
	logger *zap.Logger
}

var _ repositories.LanguageModel = (*OpenAILLM)(nil)

// NewOpenAILLM creates a new OpenAI LLM instance
func NewOpenAILLM(apiKey string, logger *zap.Logger) (*OpenAILLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return &OpenAILLM{
		client: openai.NewClient(apiKey),
		logger: logger,
	}, nil
}

// StreamGenerate produces a reply for the given history, invoking onChunk per
// delta as the completion streams in.
func (o *OpenAILLM) StreamGenerate(ctx context.Context, messages []entities.ChatMessage, model string, maxTokens int, onChunk repositories.ChunkFunc) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	request := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  toOpenAIMessages(messages),
		Stream:    true,
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return "", fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("completion stream failed: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		onChunk(delta)
		full.WriteString(delta)
	}

	o.logger.Debug("openai generation complete",
		zap.String("model", model),
		zap.Int("replyLength", full.Len()))
	return full.String(), nil
}

func toOpenAIMessages(messages []entities.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == entities.MessageRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return out
}
