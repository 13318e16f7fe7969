package vad

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/voxloop/voxloop/internal/event"
)

const tick = 16 * time.Millisecond

// feed advances the detector by n ticks of constant energy, collecting edges.
func feed(d *Detector, energy float64, n int, now time.Time) ([]event.Event, time.Time) {
	var edges []event.Event
	for i := 0; i < n; i++ {
		now = now.Add(tick)
		if e := d.Tick(energy, now); e != nil {
			edges = append(edges, e)
		}
	}
	return edges, now
}

func TestDetectorStartDebounce(t *testing.T) {
	d := NewDetector(DefaultConfig(), zaptest.NewLogger(t))
	now := time.Unix(0, 0)

	// 5 ticks (~80ms) above threshold then silence: too short to start.
	edges, now := feed(d, 50, 5, now)
	if len(edges) != 0 {
		t.Fatalf("Expected no edges during debounce, got %v", edges)
	}
	edges, now = feed(d, 0, 10, now)
	if len(edges) != 0 {
		t.Fatalf("Expected transient blip suppressed, got %v", edges)
	}

	// Sustained 250ms above threshold fires exactly one SpeechStarted.
	edges, _ = feed(d, 50, 16, now)
	if len(edges) != 1 {
		t.Fatalf("Expected exactly one edge, got %d", len(edges))
	}
	if _, ok := edges[0].(event.SpeechStarted); !ok {
		t.Errorf("Expected SpeechStarted, got %T", edges[0])
	}
	if !d.Speaking() {
		t.Error("Expected detector to report speaking")
	}
}

func TestDetectorNoDuplicateStarts(t *testing.T) {
	d := NewDetector(DefaultConfig(), zaptest.NewLogger(t))
	now := time.Unix(0, 0)

	// A long stretch of speech with brief dips must produce a single start.
	edges, now := feed(d, 40, 60, now)
	more, now := feed(d, 5, 10, now) // 160ms dip, under end debounce
	edges = append(edges, more...)
	more, _ = feed(d, 40, 60, now)
	edges = append(edges, more...)

	starts := 0
	for _, e := range edges {
		if _, ok := e.(event.SpeechStarted); ok {
			starts++
		}
	}
	if starts != 1 {
		t.Errorf("Expected exactly one SpeechStarted, got %d", starts)
	}
}

func TestDetectorEndDebounce(t *testing.T) {
	d := NewDetector(DefaultConfig(), zaptest.NewLogger(t))
	now := time.Unix(0, 0)

	_, now = feed(d, 40, 50, now)   // 800ms of speech
	edges, _ := feed(d, 0, 80, now) // 1280ms of silence

	if len(edges) != 1 {
		t.Fatalf("Expected exactly one edge, got %d", len(edges))
	}
	if _, ok := edges[0].(event.SpeechEnded); !ok {
		t.Errorf("Expected SpeechEnded, got %T", edges[0])
	}
	if d.Speaking() {
		t.Error("Expected detector back to idle")
	}
}

func TestDetectorMinTurnDurationSuppressesEnd(t *testing.T) {
	// Short end debounce so the minimum turn duration is the binding limit.
	cfg := Config{
		SpeechThreshold: 15,
		StartDebounce:   200 * time.Millisecond,
		EndDebounce:     100 * time.Millisecond,
		MinTurnDuration: 600 * time.Millisecond,
	}
	d := NewDetector(cfg, zaptest.NewLogger(t))
	now := time.Unix(0, 0)

	_, now = feed(d, 40, 16, now) // ~250ms: speech starts
	if !d.Speaking() {
		t.Fatal("Expected speaking after start debounce")
	}

	// 150ms of silence passes the end debounce but not the minimum turn.
	edges, now := feed(d, 0, 10, now)
	for _, e := range edges {
		if _, ok := e.(event.SpeechEnded); ok {
			t.Fatal("SpeechEnded fired before minimum turn duration")
		}
	}
	if !d.Speaking() {
		t.Fatal("Expected turn held open until minimum duration")
	}

	// Once the minimum turn has elapsed, continued silence ends the turn.
	edges, _ = feed(d, 0, 30, now)
	ended := false
	for _, e := range edges {
		if _, ok := e.(event.SpeechEnded); ok {
			ended = true
		}
	}
	if !ended {
		t.Error("Expected SpeechEnded once minimum turn elapsed")
	}
}

func TestDetectorReArmsAfterTurn(t *testing.T) {
	d := NewDetector(DefaultConfig(), zaptest.NewLogger(t))
	now := time.Unix(0, 0)

	_, now = feed(d, 40, 50, now)
	_, now = feed(d, 0, 80, now)

	// Second utterance starts a fresh turn without any reset call.
	edges, _ := feed(d, 40, 16, now)
	if len(edges) != 1 {
		t.Fatalf("Expected one edge on second utterance, got %d", len(edges))
	}
	if _, ok := edges[0].(event.SpeechStarted); !ok {
		t.Errorf("Expected SpeechStarted, got %T", edges[0])
	}
}

func TestDetectorReset(t *testing.T) {
	d := NewDetector(DefaultConfig(), zaptest.NewLogger(t))
	now := time.Unix(0, 0)

	_, _ = feed(d, 40, 50, now)
	if !d.Speaking() {
		t.Fatal("Expected speaking")
	}
	d.Reset()
	if d.Speaking() {
		t.Error("Expected idle after reset")
	}
}
