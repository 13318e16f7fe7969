package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain/repositories"
)

// MockTextToSpeech produces silent PCM chunks sized to the reply text. It
// keeps the playback path exercised when no Eleven Labs key is configured.
type MockTextToSpeech struct {
	logger *zap.Logger
}

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) repositories.TextToSpeech {
	return &MockTextToSpeech{logger: logger}
}

// Synthesize implements repositories.TextToSpeech
func (m *MockTextToSpeech) Synthesize(ctx context.Context, text string, voice string) (*repositories.SynthesizedAudio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	m.logger.Info("Synthesizing mock audio",
		zap.Int("textLength", len(text)),
		zap.String("voice", voice))

	// Roughly 60ms of silence per word, chunked like the real adapter.
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	total := words * 2880 // 60ms at 24kHz, 16-bit mono

	chunks := make(chan []byte, 10)
	go func() {
		defer close(chunks)
		for sent := 0; sent < total; sent += 1024 {
			size := total - sent
			if size > 1024 {
				size = 1024
			}
			select {
			case chunks <- make([]byte, size):
			case <-ctx.Done():
				return
			}
		}
	}()

	return &repositories.SynthesizedAudio{
		Ref:    uuid.NewString(),
		Chunks: chunks,
	}, nil
}
