// Package playback plays synthesized reply audio through an AudioSink,
// guaranteeing at most one active playback and a completion signal that
// always resolves.
package playback

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain/repositories"
)

// DefaultCompletionTimeout bounds how long a playback waits for the client's
// ended acknowledgement before resolving anyway. Callers never hang.
const DefaultCompletionTimeout = 2 * time.Minute

// Player streams synthesized audio to the sink and resolves a done channel
// on completion, error, or manual stop.
type Player struct {
	sink              repositories.AudioSink
	logger            *zap.Logger
	completionTimeout time.Duration

	mu     sync.Mutex
	active *session
}

type session struct {
	ref   string
	done  chan error
	timer *time.Timer
	once  sync.Once
}

// NewPlayer creates a player. A zero timeout selects DefaultCompletionTimeout.
func NewPlayer(sink repositories.AudioSink, completionTimeout time.Duration, logger *zap.Logger) *Player {
	if completionTimeout == 0 {
		completionTimeout = DefaultCompletionTimeout
	}
	return &Player{
		sink:              sink,
		logger:            logger,
		completionTimeout: completionTimeout,
	}
}

// Playing reports whether a playback is active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// Play starts playing the audio, first stopping and discarding any prior
// playback. The returned channel receives exactly one value: nil on
// completion (client ack or timeout) or the streaming error.
func (p *Player) Play(ctx context.Context, audio *repositories.SynthesizedAudio) <-chan error {
	p.mu.Lock()
	if prior := p.active; prior != nil {
		p.mu.Unlock()
		p.finish(prior, nil)
		p.mu.Lock()
	}

	s := &session{
		ref:  audio.Ref,
		done: make(chan error, 1),
	}
	// The ack timer covers the whole playback, so the done channel resolves
	// even when the client never acknowledges.
	s.timer = time.AfterFunc(p.completionTimeout, func() {
		p.logger.Warn("playback ack timed out, resolving",
			zap.String("audio_ref", audio.Ref))
		p.finish(s, nil)
	})
	p.active = s
	p.mu.Unlock()

	go func() {
		if err := p.sink.BeginSpeaking(ctx, audio); err != nil {
			p.logger.Error("playback streaming failed",
				zap.String("audio_ref", audio.Ref),
				zap.Error(err))
			p.finish(s, err)
		}
	}()

	return s.done
}

// NotifyEnded resolves the active playback when the client reports the given
// audio reference finished playing.
func (p *Player) NotifyEnded(audioRef string) {
	p.mu.Lock()
	s := p.active
	p.mu.Unlock()
	if s == nil || s.ref != audioRef {
		return
	}
	p.finish(s, nil)
}

// Stop cancels the active playback immediately. No-op when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	s := p.active
	p.mu.Unlock()
	if s == nil {
		return
	}
	p.finish(s, nil)
}

func (p *Player) finish(s *session, err error) {
	s.once.Do(func() {
		if s.timer != nil {
			s.timer.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if endErr := p.sink.EndSpeaking(ctx, s.ref); endErr != nil {
			p.logger.Warn("failed to signal speaking end",
				zap.String("audio_ref", s.ref),
				zap.Error(endErr))
		}

		p.mu.Lock()
		if p.active == s {
			p.active = nil
		}
		p.mu.Unlock()

		s.done <- err
	})
}
