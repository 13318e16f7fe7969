// Package orchestrator sequences one conversational turn at a time:
// capture → VAD → record → transcribe → route → generate (streamed) →
// synthesize → play. It owns the VoiceState and the message log; every
// external failure is converted into a state transition plus a message, so
// the machine always returns to Idle.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain/entities"
	"github.com/voxloop/voxloop/domain/repositories"
	"github.com/voxloop/voxloop/internal/audio"
	"github.com/voxloop/voxloop/internal/capture"
	"github.com/voxloop/voxloop/internal/event"
	"github.com/voxloop/voxloop/internal/playback"
	"github.com/voxloop/voxloop/internal/recorder"
	"github.com/voxloop/voxloop/internal/router"
	"github.com/voxloop/voxloop/internal/vad"
)

// Entry points reject work instead of queueing it; retry is user-initiated.
var (
	ErrTurnInFlight = errors.New("a conversation turn is already in flight")
	ErrLimitReached = errors.New("conversation limit reached")
	ErrEmptyText    = errors.New("text is empty")
)

// Fixed user-visible strings. Failure always takes the form of an
// assistant-authored message, never a silent freeze.
const (
	apologyText             = "I'm sorry, I had trouble answering that. Could you say it again?"
	transcriptionFailedText = "Sorry, I couldn't process your audio. You can type your message instead."
	didNotHearText          = "I didn't hear you clearly. Please try again, or type your message."
)

// Config tunes the orchestrator. All timing constants are product tuning and
// stay configurable.
type Config struct {
	VAD      vad.Config
	Recorder recorder.Config

	// Language is the transcription language hint.
	Language string
	// Voice is the synthesis voice ID.
	Voice string
	// SampleRate/Encoding describe the inbound PCM stream.
	SampleRate int
	Encoding   string
	// MaxTokens caps streamed generation.
	MaxTokens int
	// HistoryWindow is how many prior messages go to the model as context.
	HistoryWindow int
	// MaxConversations refuses new turns once the running count reaches it.
	// Zero means unlimited.
	MaxConversations int
	// MinTranscriptChars is the shortest transcript worth answering.
	MinTranscriptChars int
	// AllowInterruptions lets user speech during playback cut the reply
	// short and start a new turn.
	AllowInterruptions bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		VAD:                vad.DefaultConfig(),
		Recorder:           recorder.DefaultConfig(),
		Language:           "en-US",
		SampleRate:         16000,
		Encoding:           "LINEAR16",
		MaxTokens:          1024,
		HistoryWindow:      entities.DefaultHistoryWindow,
		MinTranscriptChars: 2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Encoding == "" {
		c.Encoding = d.Encoding
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = d.HistoryWindow
	}
	if c.MinTranscriptChars == 0 {
		c.MinTranscriptChars = d.MinTranscriptChars
	}
	return c
}

// Orchestrator is the per-session conversation state machine.
type Orchestrator struct {
	config    Config
	logger    *zap.Logger
	stt       repositories.SpeechToText
	llm       repositories.LanguageModel
	tts       repositories.TextToSpeech
	player    *playback.Player
	presenter Presenter

	conversation *entities.Conversation
	analyser     *audio.Analyser
	detector     *vad.Detector
	recorder     *recorder.Recorder
	events       chan event.Event

	mu               sync.Mutex
	state            State
	conversationMode bool
	listening        bool
	textFallback     bool
	turnCount        int
	modelOverride    string
	lastEnergy       float64
}

// New creates an orchestrator for one session.
func New(
	config Config,
	stt repositories.SpeechToText,
	llm repositories.LanguageModel,
	tts repositories.TextToSpeech,
	sink repositories.AudioSink,
	presenter Presenter,
	logger *zap.Logger,
) *Orchestrator {
	config = config.withDefaults()
	events := make(chan event.Event, 64)
	return &Orchestrator{
		config:        config,
		logger:        logger,
		stt:           stt,
		llm:           llm,
		tts:           tts,
		player:        playback.NewPlayer(sink, 0, logger),
		presenter:     presenter,
		conversation:  entities.NewConversation(),
		analyser:      audio.NewAnalyser(0),
		detector:      vad.NewDetector(config.VAD, logger),
		recorder:      recorder.NewRecorder(config.Recorder, events, logger),
		events:        events,
		modelOverride: router.AutoModel,
	}
}

// Run consumes pipeline events until the context is cancelled. It is the
// single writer of the machine state.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.player.Stop()
			return
		case e := <-o.events:
			o.handleEvent(ctx, e)
		}
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, e event.Event) {
	switch ev := e.(type) {
	case event.SpeechStarted:
		o.handleSpeechStarted(ev)
	case event.SpeechEnded:
		o.handleSpeechEnded()
	case event.ClipReady:
		o.handleClipReady(ctx, ev)
	case event.ClipDiscarded:
		o.handleClipDiscarded(ev)
	case event.PlaybackEnded:
		o.handlePlaybackEnded(ev)
	}
}

// EnableConversationMode turns continuous listening on and consumes the
// capture source until it is released.
func (o *Orchestrator) EnableConversationMode(source *capture.Source) {
	o.mu.Lock()
	if o.conversationMode {
		o.mu.Unlock()
		return
	}
	o.conversationMode = true
	o.listening = true
	o.detector.Reset()
	o.mu.Unlock()

	o.logger.Info("conversation mode enabled")
	go o.listenLoop(source)
	o.pushState()
}

// DisableConversationMode turns continuous listening off, stopping any
// active playback and recording. The session's messages remain.
func (o *Orchestrator) DisableConversationMode() {
	o.mu.Lock()
	if !o.conversationMode {
		o.mu.Unlock()
		return
	}
	o.conversationMode = false
	o.listening = false
	o.mu.Unlock()

	o.logger.Info("conversation mode disabled")
	o.player.Stop()
	o.recorder.Stop()
	o.pushState()
}

// listenLoop is the analysis tick driver: one energy sample and one detector
// tick per captured frame. The VAD and the recorder are both read-only
// consumers of the same frames.
func (o *Orchestrator) listenLoop(source *capture.Source) {
	for frame := range source.Frames() {
		samples := audio.DecodePCM16(frame.Data)
		energy := o.analyser.BandEnergy(samples)

		o.mu.Lock()
		o.lastEnergy = energy
		o.mu.Unlock()

		if edge := o.detector.Tick(energy, frame.At); edge != nil {
			o.events <- edge
		}
		if o.recorder.Active() {
			o.recorder.Append(frame.Data)
		}
	}

	o.mu.Lock()
	o.listening = false
	o.mu.Unlock()
	o.logger.Debug("capture stream closed, listening stopped")
	o.pushState()
}

func (o *Orchestrator) handleSpeechStarted(ev event.SpeechStarted) {
	o.mu.Lock()
	if !o.conversationMode {
		o.mu.Unlock()
		return
	}
	if o.limitReachedLocked() {
		o.mu.Unlock()
		o.logger.Info("speech ignored, conversation limit reached")
		o.pushState()
		return
	}

	switch o.state {
	case StateIdle:
		o.setStateLocked(StateRecording)
		o.mu.Unlock()
		o.recorder.Start()
		o.logger.Info("turn recording started", zap.Float64("energy", ev.Energy))
		o.pushState()

	case StatePlaying:
		if !o.config.AllowInterruptions {
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()
		o.logger.Info("reply interrupted by user speech")
		o.player.Stop()
		o.finishTurn()
		o.mu.Lock()
		o.setStateLocked(StateRecording)
		o.mu.Unlock()
		o.recorder.Start()
		o.pushState()

	default:
		// A turn is in flight; defensively ignore.
		o.mu.Unlock()
	}
}

func (o *Orchestrator) handleSpeechEnded() {
	o.mu.Lock()
	recording := o.state == StateRecording
	o.mu.Unlock()
	if recording {
		o.recorder.Stop()
	}
}

func (o *Orchestrator) handleClipReady(ctx context.Context, ev event.ClipReady) {
	o.mu.Lock()
	if o.state != StateRecording {
		o.mu.Unlock()
		return
	}
	if !o.conversationMode {
		// Mode was toggled off mid-recording; drop the clip.
		o.setStateLocked(StateIdle)
		o.mu.Unlock()
		o.pushState()
		return
	}
	o.setStateLocked(StateTranscribing)
	o.mu.Unlock()
	o.pushState()

	go o.runVoiceTurn(ctx, ev.Clip)
}

func (o *Orchestrator) handleClipDiscarded(ev event.ClipDiscarded) {
	o.mu.Lock()
	if o.state != StateRecording {
		o.mu.Unlock()
		return
	}
	o.setStateLocked(StateIdle)
	o.mu.Unlock()
	o.logger.Debug("clip discarded as noise", zap.Int("size", ev.Size))
	o.pushState()
}

func (o *Orchestrator) handlePlaybackEnded(ev event.PlaybackEnded) {
	o.mu.Lock()
	if o.state != StatePlaying {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	if ev.Err != nil {
		o.logger.Warn("playback ended with error", zap.Error(ev.Err))
	}
	o.finishTurn()
}

// SubmitText injects a user turn directly, bypassing audio. It is subject to
// the same single-turn-in-flight invariant as the voice path.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrTurnInFlight
	}
	if o.limitReachedLocked() {
		o.mu.Unlock()
		return ErrLimitReached
	}
	o.setStateLocked(StateGenerating)
	o.mu.Unlock()
	o.pushState()

	go o.runGeneration(ctx, text)
	return nil
}

// SetModelOverride sets the user-chosen model; router.AutoModel restores
// automatic selection.
func (o *Orchestrator) SetModelOverride(model string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if model == "" {
		model = router.AutoModel
	}
	o.modelOverride = model
}

// NotifyPlaybackEnded is the client's acknowledgement that reply audio
// finished playing.
func (o *Orchestrator) NotifyPlaybackEnded(audioRef string) {
	o.player.NotifyEnded(audioRef)
}

// Messages returns a snapshot of the ordered message log.
func (o *Orchestrator) Messages() []entities.Message {
	return o.conversation.Messages()
}

// Snapshot returns the current VoiceState.
func (o *Orchestrator) Snapshot() entities.VoiceState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return entities.VoiceState{
		Recording:        o.state == StateRecording,
		Processing:       o.state.processing(),
		Playing:          o.state == StatePlaying,
		Listening:        o.listening,
		ConversationMode: o.conversationMode,
		Energy:           o.lastEnergy,
		ShowTextFallback: o.textFallback,
		LimitReached:     o.limitReachedLocked(),
	}
}

// TurnCount returns the number of completed conversation turns.
func (o *Orchestrator) TurnCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turnCount
}

func (o *Orchestrator) setStateLocked(next State) {
	if o.state == next {
		return
	}
	o.logger.Debug("state transition",
		zap.String("from", o.state.String()),
		zap.String("to", next.String()))
	o.state = next
}

func (o *Orchestrator) limitReachedLocked() bool {
	return o.config.MaxConversations > 0 && o.turnCount >= o.config.MaxConversations
}

func (o *Orchestrator) pushState() {
	o.presenter.StateChanged(o.Snapshot())
}

func (o *Orchestrator) pushMessages() {
	o.presenter.MessagesUpdated(o.conversation.Messages())
}

// abortTurn exits a failed turn back to Idle with an assistant-authored
// suggestion and the manual text path enabled. No counters advance.
func (o *Orchestrator) abortTurn(text string) {
	msg := entities.NewAssistantMessage("")
	msg.Streaming = false
	msg.Content = text
	o.conversation.Append(msg)

	o.mu.Lock()
	o.textFallback = true
	o.setStateLocked(StateIdle)
	o.mu.Unlock()

	o.pushMessages()
	o.pushState()
}

// finishTurn closes a completed turn: the count advances once and the
// conversation-complete signal fires.
func (o *Orchestrator) finishTurn() {
	o.mu.Lock()
	o.setStateLocked(StateIdle)
	o.turnCount++
	count := o.turnCount
	o.mu.Unlock()

	o.logger.Info("conversation turn complete", zap.Int("count", count))
	o.presenter.ConversationComplete(count)
	o.pushState()
}

const (
	transcribeTimeout = 30 * time.Second
	generateTimeout   = 90 * time.Second
	synthesizeTimeout = 60 * time.Second
)
