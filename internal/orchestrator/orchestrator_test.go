package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/voxloop/voxloop/domain/entities"
	"github.com/voxloop/voxloop/domain/repositories"
	"github.com/voxloop/voxloop/internal/capture"
	"github.com/voxloop/voxloop/internal/event"
	"github.com/voxloop/voxloop/internal/recorder"
	"github.com/voxloop/voxloop/internal/router"
)

type mockSTT struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (m *mockSTT) TranscribeAudio(_ context.Context, _ []byte, _ repositories.AudioConfig) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.text, m.err
}

func (m *mockSTT) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockLLM struct {
	mu        sync.Mutex
	chunks    []string
	err       error
	delay     time.Duration
	lastModel string
	histories [][]entities.ChatMessage
}

func (m *mockLLM) StreamGenerate(_ context.Context, messages []entities.ChatMessage, model string, _ int, onChunk repositories.ChunkFunc) (string, error) {
	m.mu.Lock()
	m.lastModel = model
	m.histories = append(m.histories, append([]entities.ChatMessage(nil), messages...))
	chunks, err, delay := m.chunks, m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	var full strings.Builder
	for _, c := range chunks {
		onChunk(c)
		full.WriteString(c)
	}
	return full.String(), nil
}

func (m *mockLLM) lastHistory() []entities.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.histories) == 0 {
		return nil
	}
	return m.histories[len(m.histories)-1]
}

type mockTTS struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (m *mockTTS) Synthesize(_ context.Context, text string, _ string) (*repositories.SynthesizedAudio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.texts = append(m.texts, text)
	chunks := make(chan []byte)
	close(chunks)
	return &repositories.SynthesizedAudio{Ref: "audio-ref", Chunks: chunks}, nil
}

func (m *mockTTS) synthesized() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

type mockSink struct{}

func (mockSink) BeginSpeaking(_ context.Context, audio *repositories.SynthesizedAudio) error {
	if audio.Chunks != nil {
		for range audio.Chunks {
		}
	}
	return nil
}

func (mockSink) EndSpeaking(context.Context, string) error { return nil }

type recordingPresenter struct {
	mu        sync.Mutex
	completes []int
}

func (p *recordingPresenter) MessagesUpdated([]entities.Message) {}
func (p *recordingPresenter) StateChanged(entities.VoiceState)   {}
func (p *recordingPresenter) ConversationComplete(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completes = append(p.completes, count)
}

func (p *recordingPresenter) completed() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.completes...)
}

type fixture struct {
	orch      *Orchestrator
	stt       *mockSTT
	llm       *mockLLM
	tts       *mockTTS
	presenter *recordingPresenter
	cancel    context.CancelFunc
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()
	f := &fixture{
		stt:       &mockSTT{text: "hello there"},
		llm:       &mockLLM{chunks: []string{"Hi", " there", "!"}},
		tts:       &mockTTS{},
		presenter: &recordingPresenter{},
	}
	f.orch = New(config, f.stt, f.llm, f.tts, mockSink{}, f.presenter, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.orch.Run(ctx)
	t.Cleanup(cancel)
	return f
}

func (f *fixture) enableMode(t *testing.T) *capture.Source {
	t.Helper()
	src := capture.Acquire(8, zaptest.NewLogger(t))
	f.orch.EnableConversationMode(src)
	t.Cleanup(src.Release)
	return src
}

// beginRecording drives the machine into Recording through the event loop.
func (f *fixture) beginRecording(t *testing.T) {
	t.Helper()
	f.enableMode(t)
	f.orch.events <- event.SpeechStarted{At: time.Now()}
	waitFor(t, "recording", func() bool { return f.orch.Snapshot().Recording })
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func (f *fixture) waitIdleWithTurns(t *testing.T, turns int) {
	t.Helper()
	waitFor(t, "turn completion", func() bool {
		return f.orch.TurnCount() == turns && !f.orch.Snapshot().Processing && !f.orch.Snapshot().Playing
	})
}

func TestSubmitTextFullPipeline(t *testing.T) {
	f := newFixture(t, Config{})

	if err := f.orch.SubmitText(context.Background(), "hello there"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}

	// The turn stays open until the client acks playback.
	waitFor(t, "playback to begin", func() bool { return f.orch.Snapshot().Playing })
	f.orch.NotifyPlaybackEnded("audio-ref")
	f.waitIdleWithTurns(t, 1)

	msgs := f.orch.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected user+assistant messages, got %d", len(msgs))
	}
	if msgs[0].Role != entities.MessageRoleUser || msgs[0].Content != "hello there" {
		t.Errorf("Unexpected user message %+v", msgs[0])
	}
	if msgs[1].Content != "Hi there!" {
		t.Errorf("Expected streamed chunks joined in order, got %q", msgs[1].Content)
	}
	if msgs[1].Streaming {
		t.Error("Expected assistant message finalized")
	}
	if msgs[1].Model != router.ModelDefault {
		t.Errorf("Expected default fast model, got %s", msgs[1].Model)
	}
	if msgs[1].AudioRef != "audio-ref" {
		t.Errorf("Expected audio reference attached, got %q", msgs[1].AudioRef)
	}
	if got := f.presenter.completed(); len(got) != 1 || got[0] != 1 {
		t.Errorf("Expected one conversation-complete signal, got %v", got)
	}
}

// The model context is the last N messages from before the current turn plus
// the utterance itself; the in-flight user append must not eat into N.
func TestHistoryWindowExcludesCurrentUtterance(t *testing.T) {
	f := newFixture(t, Config{HistoryWindow: 4})

	for i, text := range []string{"turn one", "turn two", "turn three"} {
		if err := f.orch.SubmitText(context.Background(), text); err != nil {
			t.Fatalf("SubmitText(%q) error = %v", text, err)
		}
		waitFor(t, "playback", func() bool { return f.orch.Snapshot().Playing })
		f.orch.NotifyPlaybackEnded("audio-ref")
		f.waitIdleWithTurns(t, i+1)
	}

	history := f.llm.lastHistory()
	want := []entities.ChatMessage{
		{Role: entities.MessageRoleUser, Content: "turn one"},
		{Role: entities.MessageRoleAssistant, Content: "Hi there!"},
		{Role: entities.MessageRoleUser, Content: "turn two"},
		{Role: entities.MessageRoleAssistant, Content: "Hi there!"},
		{Role: entities.MessageRoleUser, Content: "turn three"},
	}
	if len(history) != len(want) {
		t.Fatalf("Expected 4 prior messages plus the current turn, got %d", len(history))
	}
	for i := range want {
		if history[i] != want[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, history[i], want[i])
		}
	}
}

func TestSubmitTextRejectedWhileTurnInFlight(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.delay = 200 * time.Millisecond

	if err := f.orch.SubmitText(context.Background(), "first"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	waitFor(t, "processing", func() bool { return f.orch.Snapshot().Processing })

	logLen := len(f.orch.Messages())
	if err := f.orch.SubmitText(context.Background(), "second"); err != ErrTurnInFlight {
		t.Errorf("Expected ErrTurnInFlight, got %v", err)
	}
	if len(f.orch.Messages()) != logLen {
		t.Error("Rejected submission must not change the log")
	}

	waitFor(t, "playback", func() bool { return f.orch.Snapshot().Playing })
	f.orch.NotifyPlaybackEnded("audio-ref")
	f.waitIdleWithTurns(t, 1)
}

func TestSubmitTextRejectedAtConversationLimit(t *testing.T) {
	f := newFixture(t, Config{MaxConversations: 1})

	if err := f.orch.SubmitText(context.Background(), "only turn"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	waitFor(t, "playback", func() bool { return f.orch.Snapshot().Playing })
	f.orch.NotifyPlaybackEnded("audio-ref")
	f.waitIdleWithTurns(t, 1)

	if err := f.orch.SubmitText(context.Background(), "one more"); err != ErrLimitReached {
		t.Errorf("Expected ErrLimitReached, got %v", err)
	}
	if !f.orch.Snapshot().LimitReached {
		t.Error("Expected limit-reached flag in snapshot")
	}
}

func TestEmptyTranscriptAbortsTurnWithoutCounting(t *testing.T) {
	f := newFixture(t, Config{})
	f.stt.text = ""

	f.beginRecording(t)
	f.orch.events <- event.ClipReady{Clip: make([]byte, 2048)}

	waitFor(t, "fallback message", func() bool { return len(f.orch.Messages()) == 1 })

	msgs := f.orch.Messages()
	if msgs[0].Role != entities.MessageRoleAssistant || msgs[0].Content != didNotHearText {
		t.Errorf("Expected didn't-hear fallback, got %+v", msgs[0])
	}
	if f.orch.TurnCount() != 0 {
		t.Errorf("Expected count unchanged, got %d", f.orch.TurnCount())
	}
	if !f.orch.Snapshot().ShowTextFallback {
		t.Error("Expected text fallback enabled")
	}
	if got := f.presenter.completed(); len(got) != 0 {
		t.Errorf("Expected no conversation-complete signal, got %v", got)
	}
}

func TestTranscriptionErrorShowsFallbackMessage(t *testing.T) {
	f := newFixture(t, Config{})
	f.stt.err = errors.New("service unavailable")

	f.beginRecording(t)
	f.orch.events <- event.ClipReady{Clip: make([]byte, 2048)}

	waitFor(t, "fallback message", func() bool { return len(f.orch.Messages()) == 1 })
	if got := f.orch.Messages()[0].Content; got != transcriptionFailedText {
		t.Errorf("Expected transcription fallback, got %q", got)
	}
	if f.orch.TurnCount() != 0 {
		t.Errorf("Expected count unchanged, got %d", f.orch.TurnCount())
	}
	waitFor(t, "idle", func() bool { s := f.orch.Snapshot(); return !s.Processing && !s.Recording })
}

func TestGenerationErrorSubstitutesApologyAndStillSpeaks(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.err = errors.New("model overloaded")

	if err := f.orch.SubmitText(context.Background(), "hello"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	waitFor(t, "playback", func() bool { return f.orch.Snapshot().Playing })
	f.orch.NotifyPlaybackEnded("audio-ref")
	f.waitIdleWithTurns(t, 1)

	msgs := f.orch.Messages()
	if msgs[1].Content != apologyText {
		t.Errorf("Expected apology content, got %q", msgs[1].Content)
	}
	if got := f.tts.synthesized(); len(got) != 1 || got[0] != apologyText {
		t.Errorf("Expected synthesis attempted for the apology, got %v", got)
	}
}

func TestSynthesisFailureSwallowedTurnStillCompletes(t *testing.T) {
	f := newFixture(t, Config{})
	f.tts.err = errors.New("voice service down")

	if err := f.orch.SubmitText(context.Background(), "hello"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	f.waitIdleWithTurns(t, 1)

	msgs := f.orch.Messages()
	if msgs[1].Content != "Hi there!" {
		t.Errorf("Expected text reply kept, got %q", msgs[1].Content)
	}
	if msgs[1].AudioRef != "" {
		t.Errorf("Expected no audio reference, got %q", msgs[1].AudioRef)
	}
}

func TestSmallClipNeverReachesTranscription(t *testing.T) {
	f := newFixture(t, Config{Recorder: recorder.Config{MinClipBytes: 500, MaxDuration: time.Minute}})

	f.beginRecording(t)
	f.orch.recorder.Append(make([]byte, 32))
	f.orch.events <- event.SpeechEnded{At: time.Now()}

	waitFor(t, "idle", func() bool {
		s := f.orch.Snapshot()
		return !s.Recording && !s.Processing
	})
	if f.stt.callCount() != 0 {
		t.Errorf("Expected transcription never called, got %d calls", f.stt.callCount())
	}
	if len(f.orch.Messages()) != 0 {
		t.Error("Expected no messages from a discarded clip")
	}
}

func TestSpeechIgnoredWithoutConversationMode(t *testing.T) {
	f := newFixture(t, Config{})

	f.orch.events <- event.SpeechStarted{At: time.Now()}
	time.Sleep(50 * time.Millisecond)

	if f.orch.Snapshot().Recording {
		t.Error("Expected speech ignored while conversation mode is off")
	}
}

func TestDisableConversationModeStopsPlayback(t *testing.T) {
	f := newFixture(t, Config{})
	f.enableMode(t)

	if err := f.orch.SubmitText(context.Background(), "hello"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	waitFor(t, "playback", func() bool { return f.orch.Snapshot().Playing })

	f.orch.DisableConversationMode()
	waitFor(t, "playback stopped", func() bool { return !f.orch.Snapshot().Playing })
	if f.orch.Snapshot().ConversationMode {
		t.Error("Expected conversation mode off")
	}
}

func TestModelOverrideWinsOverRouting(t *testing.T) {
	f := newFixture(t, Config{})
	f.orch.SetModelOverride("gpt-4o")

	if err := f.orch.SubmitText(context.Background(), "write me a poem"); err != nil {
		t.Fatalf("SubmitText() error = %v", err)
	}
	waitFor(t, "playback", func() bool { return f.orch.Snapshot().Playing })
	f.orch.NotifyPlaybackEnded("audio-ref")
	f.waitIdleWithTurns(t, 1)

	if f.orch.Messages()[1].Model != "gpt-4o" {
		t.Errorf("Expected override model on the reply, got %s", f.orch.Messages()[1].Model)
	}
}
