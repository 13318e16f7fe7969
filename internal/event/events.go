// Package event defines the typed events the voice pipeline components emit
// onto the single channel the orchestrator consumes.
package event

import "time"

// Event is implemented by every pipeline event.
type Event interface {
	isEvent()
}

// SpeechStarted fires on the debounced Idle→Speaking edge of the detector.
type SpeechStarted struct {
	At     time.Time
	Energy float64
}

// SpeechEnded fires on the debounced Speaking→Idle edge of the detector.
type SpeechEnded struct {
	At time.Time
}

// ClipReady carries a finalized recording ready for transcription.
type ClipReady struct {
	Clip     []byte
	Duration time.Duration
}

// ClipDiscarded reports a finalized recording below the minimum clip size.
// The turn is abandoned without transcription.
type ClipDiscarded struct {
	Size int
}

// PlaybackEnded reports that reply audio finished playing, errored, or was
// stopped.
type PlaybackEnded struct {
	AudioRef string
	Err      error
}

func (SpeechStarted) isEvent() {}
func (SpeechEnded) isEvent() {}
func (ClipReady) isEvent() {}
func (ClipDiscarded) isEvent() {}
func (PlaybackEnded) isEvent() {}
