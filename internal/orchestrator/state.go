package orchestrator

// State is the explicit conversational machine state. It replaces the
// ambiguous combinations of recording/processing/playing booleans: exactly
// one state holds at a time, and only the orchestrator transitions it.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
	StateGenerating
	StateSynthesizing
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateGenerating:
		return "generating"
	case StateSynthesizing:
		return "synthesizing"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// processing reports whether the state is one of the pipeline stages between
// recording and playback.
func (s State) processing() bool {
	return s == StateTranscribing || s == StateGenerating || s == StateSynthesizing
}
