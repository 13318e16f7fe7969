// Package vad implements an energy-threshold voice activity detector with
// debounced edges. It classifies a continuous sequence of band energy samples
// into speaking/silence and emits SpeechStarted/SpeechEnded events.
package vad

import (
	"time"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/internal/event"
)

// Detector is the per-session VAD state machine:
//
//	Idle → (energy above threshold sustained StartDebounce) → Speaking
//	Speaking → (silence sustained EndDebounce AND elapsed ≥ MinTurnDuration) → Idle
//
// Tick must be called once per analysis tick for the life of the listening
// session, whether or not a recording is in progress, so interruption
// variants can observe speech during playback. The detector re-arms
// automatically after each Speaking→Idle edge.
type Detector struct {
	config Config
	logger *zap.Logger

	speaking     bool
	aboveSince   time.Time
	silentSince  time.Time
	speechSince  time.Time
	abovePending bool
	belowPending bool
}

// NewDetector creates a detector. Zero config fields take defaults.
func NewDetector(config Config, logger *zap.Logger) *Detector {
	return &Detector{
		config: config.withDefaults(),
		logger: logger,
	}
}

// Speaking reports whether the detector currently classifies the stream as
// speech.
func (d *Detector) Speaking() bool {
	return d.speaking
}

// Tick feeds one energy sample and returns a debounced edge event, or nil
// when no edge fires this tick.
func (d *Detector) Tick(energy float64, now time.Time) event.Event {
	if d.speaking {
		return d.tickSpeaking(energy, now)
	}
	return d.tickIdle(energy, now)
}

func (d *Detector) tickIdle(energy float64, now time.Time) event.Event {
	if energy <= d.config.SpeechThreshold {
		d.abovePending = false
		return nil
	}
	if !d.abovePending {
		d.abovePending = true
		d.aboveSince = now
		return nil
	}
	if now.Sub(d.aboveSince) < d.config.StartDebounce {
		return nil
	}

	d.speaking = true
	d.speechSince = d.aboveSince
	d.abovePending = false
	d.belowPending = false
	d.logger.Debug("speech started",
		zap.Float64("energy", energy),
		zap.Time("since", d.aboveSince))
	return event.SpeechStarted{At: now, Energy: energy}
}

func (d *Detector) tickSpeaking(energy float64, now time.Time) event.Event {
	if energy > d.config.SpeechThreshold {
		d.belowPending = false
		return nil
	}
	if !d.belowPending {
		d.belowPending = true
		d.silentSince = now
		return nil
	}
	if now.Sub(d.silentSince) < d.config.EndDebounce {
		return nil
	}
	// Too short a turn is held open until MinTurnDuration has elapsed.
	if now.Sub(d.speechSince) < d.config.MinTurnDuration {
		return nil
	}

	d.speaking = false
	d.belowPending = false
	d.logger.Debug("speech ended",
		zap.Duration("turn", now.Sub(d.speechSince)))
	return event.SpeechEnded{At: now}
}

// Reset returns the detector to Idle without emitting an edge.
func (d *Detector) Reset() {
	d.speaking = false
	d.abovePending = false
	d.belowPending = false
}
