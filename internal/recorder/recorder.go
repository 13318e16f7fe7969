// Package recorder owns one bounded recording session at a time: frames are
// buffered in arrival order between Start and Stop, then finalized into a
// single clip and handed to the orchestrator as a ClipReady event.
package recorder

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/internal/event"
)

// Config holds the recorder's bounds.
type Config struct {
	// MaxDuration is the hard ceiling after which any recording auto-stops,
	// regardless of VAD state.
	MaxDuration time.Duration
	// MinClipBytes is the size below which a finalized clip is treated as
	// noise and discarded without transcription.
	MinClipBytes int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxDuration:  15 * time.Second,
		MinClipBytes: 500,
	}
}

// Recorder buffers audio frames for the turn in progress. All methods are
// safe for concurrent use; the single-recording invariant is enforced by a
// synchronous active check at the top of Start.
type Recorder struct {
	config Config
	logger *zap.Logger
	events chan<- event.Event

	mu        sync.Mutex
	active    bool
	buffer    []byte
	startedAt time.Time
	ceiling   *time.Timer
}

// NewRecorder creates a recorder emitting ClipReady/ClipDiscarded onto events.
func NewRecorder(config Config, events chan<- event.Event, logger *zap.Logger) *Recorder {
	d := DefaultConfig()
	if config.MaxDuration == 0 {
		config.MaxDuration = d.MaxDuration
	}
	if config.MinClipBytes == 0 {
		config.MinClipBytes = d.MinClipBytes
	}
	return &Recorder{
		config: config,
		logger: logger,
		events: events,
	}
}

// Active reports whether a recording session is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start begins buffering frames. It is a no-op while a recording is already
// active, preserving the single-recording invariant.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return
	}
	r.active = true
	r.buffer = r.buffer[:0]
	r.startedAt = time.Now()
	// The ceiling timer funnels into the same stop path as a VAD-triggered
	// stop, so worst-case latency and memory stay bounded.
	r.ceiling = time.AfterFunc(r.config.MaxDuration, func() {
		r.logger.Warn("recording hit hard ceiling",
			zap.Duration("max_duration", r.config.MaxDuration))
		r.Stop()
	})
	r.logger.Debug("recording started")
}

// Append buffers one frame in arrival order. Frames arriving while inactive
// are dropped.
func (r *Recorder) Append(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.buffer = append(r.buffer, frame...)
}

// Stop finalizes the buffer into one clip and emits it. Stopping twice is
// idempotent: the second call sees the recorder inactive and does nothing.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	if r.ceiling != nil {
		r.ceiling.Stop()
		r.ceiling = nil
	}
	clip := make([]byte, len(r.buffer))
	copy(clip, r.buffer)
	r.buffer = r.buffer[:0]
	duration := time.Since(r.startedAt)
	r.mu.Unlock()

	if len(clip) < r.config.MinClipBytes {
		r.logger.Debug("clip below minimum size, discarding",
			zap.Int("size", len(clip)),
			zap.Int("min_bytes", r.config.MinClipBytes))
		r.events <- event.ClipDiscarded{Size: len(clip)}
		return
	}

	r.logger.Debug("clip finalized",
		zap.Int("size", len(clip)),
		zap.Duration("duration", duration))
	r.events <- event.ClipReady{Clip: clip, Duration: duration}
}
