package vad

import "time"

// Config holds the detector's tuning parameters. The defaults are product
// tuning, not correctness requirements, so every value is configurable.
type Config struct {
	// SpeechThreshold is the band energy above which a tick counts as speech,
	// on the analyser's 0–255 scale.
	SpeechThreshold float64
	// StartDebounce is how long energy must stay above threshold before
	// SpeechStarted fires. Suppresses transient noise.
	StartDebounce time.Duration
	// EndDebounce is how long silence must persist before SpeechEnded fires.
	// Tolerates pauses mid-sentence.
	EndDebounce time.Duration
	// MinTurnDuration is the minimum speaking time before SpeechEnded is
	// honored. Prevents processing clicks and coughs.
	MinTurnDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		SpeechThreshold: 15,
		StartDebounce:   200 * time.Millisecond,
		EndDebounce:     1200 * time.Millisecond,
		MinTurnDuration: 600 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SpeechThreshold == 0 {
		c.SpeechThreshold = d.SpeechThreshold
	}
	if c.StartDebounce == 0 {
		c.StartDebounce = d.StartDebounce
	}
	if c.EndDebounce == 0 {
		c.EndDebounce = d.EndDebounce
	}
	if c.MinTurnDuration == 0 {
		c.MinTurnDuration = d.MinTurnDuration
	}
	return c
}
