package entities

// VoiceState is the session-scoped snapshot of the conversational machine
// exposed to the presentation layer. Recording and Processing/Playing are
// mutually exclusive in time; Listening persists across turns while
// ConversationMode is on.
type VoiceState struct {
	Recording        bool    `json:"recording"`
	Processing       bool    `json:"processing"`
	Playing          bool    `json:"playing"`
	Listening        bool    `json:"listening"`
	ConversationMode bool    `json:"conversation_mode"`
	Energy           float64 `json:"energy"`
	ShowTextFallback bool    `json:"show_text_fallback"`
	LimitReached     bool    `json:"limit_reached"`
}
