package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain/entities"
	"github.com/voxloop/voxloop/domain/repositories"
	"github.com/voxloop/voxloop/internal/event"
	"github.com/voxloop/voxloop/internal/router"
)

// runVoiceTurn carries a finalized clip through transcription and, when the
// transcript is worth answering, into the shared generation pipeline.
func (o *Orchestrator) runVoiceTurn(ctx context.Context, clip []byte) {
	tctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	transcript, err := o.stt.TranscribeAudio(tctx, clip, repositories.AudioConfig{
		SampleRate: o.config.SampleRate,
		Encoding:   o.config.Encoding,
		Language:   o.config.Language,
	})
	if err != nil {
		o.logger.Error("transcription failed", zap.Error(err))
		o.abortTurn(transcriptionFailedText)
		return
	}

	transcript = strings.TrimSpace(transcript)
	if len([]rune(transcript)) < o.config.MinTranscriptChars {
		o.logger.Info("transcript too short, aborting turn",
			zap.String("transcript", transcript))
		o.abortTurn(didNotHearText)
		return
	}

	o.logger.Info("transcription completed", zap.String("transcript", transcript))
	o.runGeneration(ctx, transcript)
}

// runGeneration is the shared back half of a turn: append the user message,
// route a model, stream the reply, synthesize it, and play it back. Both the
// voice path and the manual text path end up here.
func (o *Orchestrator) runGeneration(ctx context.Context, text string) {
	// Window the prior context before the current utterance lands in the log,
	// so the model sees the last N earlier messages plus the new user turn.
	history := o.conversation.HistoryWindow(o.config.HistoryWindow)
	history = append(history, entities.ChatMessage{Role: entities.MessageRoleUser, Content: text})

	o.conversation.Append(entities.NewUserMessage(text))
	o.pushMessages()

	o.mu.Lock()
	override := o.modelOverride
	o.setStateLocked(StateGenerating)
	o.mu.Unlock()
	o.pushState()

	model := router.SelectModel(text, override)
	assistant := o.conversation.Append(entities.NewAssistantMessage(model))
	o.pushMessages()

	gctx, cancel := context.WithTimeout(ctx, generateTimeout)
	reply, err := o.llm.StreamGenerate(gctx, history, model, o.config.MaxTokens, func(chunk string) {
		if appendErr := o.conversation.AppendChunk(assistant.ID, chunk); appendErr != nil {
			o.logger.Warn("dropping late generation chunk", zap.Error(appendErr))
			return
		}
		o.pushMessages()
	})
	cancel()
	if err != nil {
		// Always close the loop with some spoken reply: the partial response
		// is replaced with the fixed apology and the pipeline continues.
		o.logger.Error("generation failed, substituting apology",
			zap.String("model", model),
			zap.Error(err))
		if setErr := o.conversation.SetContent(assistant.ID, apologyText); setErr != nil {
			o.logger.Warn("could not substitute apology", zap.Error(setErr))
		}
		reply = apologyText
	}

	o.conversation.FinishStreaming(assistant.ID)
	o.pushMessages()
	o.speakReply(ctx, assistant.ID, reply)
}

// speakReply synthesizes the reply text and plays it back. Synthesis
// failures are swallowed: the text stays visible, no audio plays, and the
// machine still returns to Idle.
func (o *Orchestrator) speakReply(ctx context.Context, messageID string, text string) {
	o.mu.Lock()
	o.setStateLocked(StateSynthesizing)
	o.mu.Unlock()
	o.pushState()

	sctx, cancel := context.WithTimeout(ctx, synthesizeTimeout)
	audio, err := o.tts.Synthesize(sctx, text, o.config.Voice)
	cancel()
	if err != nil {
		o.logger.Warn("speech synthesis failed, reply stays text-only",
			zap.Error(err))
		o.finishTurn()
		return
	}

	o.conversation.AttachAudio(messageID, audio.Ref)
	o.pushMessages()

	o.mu.Lock()
	o.setStateLocked(StatePlaying)
	o.mu.Unlock()
	o.pushState()

	done := o.player.Play(ctx, audio)
	playErr := <-done
	o.events <- event.PlaybackEnded{AudioRef: audio.Ref, Err: playErr}
}
