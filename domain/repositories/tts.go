package repositories

import "context"

// SynthesizedAudio is the result of one speech synthesis request: a stable
// reference the message log can carry plus the audio bytes streamed in chunks.
type SynthesizedAudio struct {
	Ref    string
	Chunks <-chan []byte
}

// TextToSpeech abstracts speech synthesis services
type TextToSpeech interface {
	// Synthesize converts text to speech using the given voice. The chunk
	// channel is closed once the full audio has been delivered.
	Synthesize(ctx context.Context, text string, voice string) (*SynthesizedAudio, error)
}
