package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxloop/voxloop/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client → server message types. Binary frames carry raw PCM and have no
// JSON envelope.
const (
	MessageTypeConversationStart MessageType = "conversation_start"
	MessageTypeConversationStop  MessageType = "conversation_stop"
	MessageTypeTextSubmit        MessageType = "text_submit"
	MessageTypeModelSelect       MessageType = "model_select"
	MessageTypePlaybackEnded     MessageType = "playback_ended"
	MessageTypePing              MessageType = "ping"
)

// Server → client message types. Reply audio itself goes out as binary
// frames between speaking_start and speaking_end.
const (
	MessageTypeVoiceState           MessageType = "voice_state"
	MessageTypeMessages             MessageType = "messages"
	MessageTypeSpeakingStart        MessageType = "speaking_start"
	MessageTypeSpeakingEnd          MessageType = "speaking_end"
	MessageTypeConversationComplete MessageType = "conversation_complete"
	MessageTypePong                 MessageType = "pong"
	MessageTypeError                MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// ConversationStartMessage opens continuous listening for the session.
type ConversationStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate,omitempty"`
	Language   string `json:"language,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
}

// TextSubmitMessage injects a typed user turn.
type TextSubmitMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ModelSelectMessage pins the reply model, or "auto" for routing.
type ModelSelectMessage struct {
	BaseMessage
	Model string `json:"model"`
}

// PlaybackEndedMessage acknowledges that reply audio finished playing
// client-side.
type PlaybackEndedMessage struct {
	BaseMessage
	AudioRef string `json:"audio_ref"`
}

// VoiceStateMessage pushes the session's voice pipeline state.
type VoiceStateMessage struct {
	BaseMessage
	State entities.VoiceState `json:"state"`
}

// MessagesMessage pushes the full ordered message log.
type MessagesMessage struct {
	BaseMessage
	Messages []entities.Message `json:"messages"`
}

// SpeakingStartMessage announces that binary audio frames follow.
type SpeakingStartMessage struct {
	BaseMessage
	AudioRef string `json:"audio_ref"`
}

// SpeakingEndMessage closes a binary audio stream.
type SpeakingEndMessage struct {
	BaseMessage
	AudioRef string `json:"audio_ref"`
}

// ConversationCompleteMessage reports the running completed-turn count.
type ConversationCompleteMessage struct {
	BaseMessage
	Count int `json:"count"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// MessageValidator provides validation for inbound WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an inbound control message.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeConversationStart:
		var msg ConversationStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid conversation_start message: %w", err)
		}
		if err := v.validateConversationStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeConversationStop:
		return &base, nil

	case MessageTypeTextSubmit:
		var msg TextSubmitMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid text_submit message: %w", err)
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypeModelSelect:
		var msg ModelSelectMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid model_select message: %w", err)
		}
		if msg.Model == "" {
			return nil, fmt.Errorf("model is required")
		}
		return &msg, nil

	case MessageTypePlaybackEnded:
		var msg PlaybackEndedMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid playback_ended message: %w", err)
		}
		if msg.AudioRef == "" {
			return nil, fmt.Errorf("audio_ref is required")
		}
		return &msg, nil

	case MessageTypePing:
		return &base, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateConversationStart(msg *ConversationStartMessage) error {
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	if msg.Encoding != "" {
		validEncodings := map[string]bool{
			"LINEAR16": true, "MULAW": true, "OGG_OPUS": true, "WEBM_OPUS": true,
		}
		if !validEncodings[msg.Encoding] {
			return fmt.Errorf("encoding must be one of: LINEAR16, MULAW, OGG_OPUS, WEBM_OPUS")
		}
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}
