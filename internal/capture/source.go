// Package capture owns the live audio stream for one session. The transport
// pushes raw PCM frames in; the VAD analyser and the turn recorder consume
// them read-only. Acquisition and release are explicit so hardware-facing
// resources are never ambient state.
package capture

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrReleased = errors.New("capture source released")

// Frame is one raw audio frame with its arrival time. Arrival order is the
// only ordering guarantee.
type Frame struct {
	Data []byte
	At   time.Time
}

// Source is the single owner of a session's frame stream.
type Source struct {
	logger *zap.Logger

	mu       sync.Mutex
	frames   chan Frame
	released bool
	dropped  int
}

// Acquire opens a frame stream with the given buffer depth.
func Acquire(buffer int, logger *zap.Logger) *Source {
	if buffer <= 0 {
		buffer = 64
	}
	return &Source{
		logger: logger,
		frames: make(chan Frame, buffer),
	}
}

// Push appends one frame to the stream. Frames are dropped, not reordered,
// when the consumer falls behind.
func (s *Source) Push(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}

	frame := Frame{Data: data, At: time.Now()}
	select {
	case s.frames <- frame:
	default:
		s.dropped++
		if s.dropped%100 == 1 {
			s.logger.Warn("capture consumer behind, dropping frames",
				zap.Int("dropped", s.dropped))
		}
	}
	return nil
}

// Frames returns the read side of the stream. The channel closes on Release.
func (s *Source) Frames() <-chan Frame {
	return s.frames
}

// Release tears the stream down. Idempotent; Push fails afterwards.
func (s *Source) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	close(s.frames)
	s.logger.Debug("capture source released", zap.Int("dropped", s.dropped))
}
