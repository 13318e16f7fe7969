package repositories

import "context"

// AudioSink is the playback transport: it carries synthesized reply audio to
// the client and reports when the client has finished playing it.
type AudioSink interface {
	// BeginSpeaking announces a reply and streams its audio chunks to the
	// client. It returns once all chunks have been handed to the transport.
	BeginSpeaking(ctx context.Context, audio *SynthesizedAudio) error
	// EndSpeaking tells the client playback is over (or cancelled).
	EndSpeaking(ctx context.Context, audioRef string) error
}
