package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain/repositories"
)

// MockSpeechToText stands in for the real service when no Google Cloud
// credentials are configured. Transcripts scale with clip size so the rest of
// the pipeline exercises realistically.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{logger: logger}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	switch {
	case len(audioData) > 100000:
		return "Can you explain how this works and give me an example?", nil
	case len(audioData) > 30000:
		return "Tell me a short story about the ocean.", nil
	case len(audioData) > 5000:
		return "Hello, can you hear me?", nil
	default:
		return "Hi", nil
	}
}
