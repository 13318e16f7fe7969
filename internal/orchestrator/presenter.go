package orchestrator

import "github.com/voxloop/voxloop/domain/entities"

// Presenter is the UI surface the orchestrator calls into. Implementations
// render the ordered message log and the voice state; they never call back
// into the orchestrator synchronously.
type Presenter interface {
	// MessagesUpdated delivers a fresh snapshot of the ordered message log.
	// Called after every append and after every streamed chunk.
	MessagesUpdated(messages []entities.Message)
	// StateChanged delivers a VoiceState snapshot after every transition.
	StateChanged(state entities.VoiceState)
	// ConversationComplete fires once per finished turn with the running
	// conversation count.
	ConversationComplete(count int)
}

// NopPresenter discards all updates. Useful for headless wiring and tests.
type NopPresenter struct{}

func (NopPresenter) MessagesUpdated([]entities.Message) {}
func (NopPresenter) StateChanged(entities.VoiceState) {}
func (NopPresenter) ConversationComplete(int) {}
