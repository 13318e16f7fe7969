// Package config loads server configuration from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/voxloop/voxloop/internal/orchestrator"
	"github.com/voxloop/voxloop/internal/recorder"
	"github.com/voxloop/voxloop/internal/vad"
)

// Config is the full server configuration.
type Config struct {
	Port        string
	JWTSecret   string
	TokenTTL    time.Duration
	IdleTimeout time.Duration

	// Voice pipeline tuning.
	SpeechThreshold float64
	StartDebounce   time.Duration
	EndDebounce     time.Duration
	MinTurnDuration time.Duration
	MaxRecording    time.Duration
	MinClipBytes    int

	// Turn settings.
	Language           string
	Voice              string
	SampleRate         int
	Encoding           string
	MaxTokens          int
	HistoryWindow      int
	MaxConversations   int
	MinTranscriptChars int
	AllowInterruptions bool

	// Backend credentials. Empty keys select the mock adapters.
	OpenAIAPIKey string
	GeminiAPIKey string
	GoogleSTT    bool
}

// Load reads configuration from the environment. A .env file is honored when
// present; real environment variables win.
func Load() Config {
	godotenv.Load()

	return Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    getEnvDuration("TOKEN_TTL", 24*time.Hour),
		IdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		SpeechThreshold: getEnvFloat("VAD_SPEECH_THRESHOLD", 0),
		StartDebounce:   getEnvDuration("VAD_START_DEBOUNCE", 0),
		EndDebounce:     getEnvDuration("VAD_END_DEBOUNCE", 0),
		MinTurnDuration: getEnvDuration("VAD_MIN_TURN_DURATION", 0),
		MaxRecording:    getEnvDuration("RECORD_MAX_DURATION", 0),
		MinClipBytes:    getEnvInt("RECORD_MIN_CLIP_BYTES", 0),

		Language:           getEnv("LANGUAGE", "en-US"),
		Voice:              os.Getenv("VOICE_ID"),
		SampleRate:         getEnvInt("SAMPLE_RATE", 16000),
		Encoding:           getEnv("AUDIO_ENCODING", "LINEAR16"),
		MaxTokens:          getEnvInt("MAX_TOKENS", 1024),
		HistoryWindow:      getEnvInt("HISTORY_WINDOW", 0),
		MaxConversations:   getEnvInt("MAX_CONVERSATIONS", 0),
		MinTranscriptChars: getEnvInt("MIN_TRANSCRIPT_CHARS", 0),
		AllowInterruptions: getEnvBool("ALLOW_INTERRUPTIONS", false),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GoogleSTT:    os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "",
	}
}

// Orchestrator maps the loaded settings onto an orchestrator configuration.
// Zero values fall through to the orchestrator's own defaults.
func (c Config) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		VAD: vad.Config{
			SpeechThreshold: c.SpeechThreshold,
			StartDebounce:   c.StartDebounce,
			EndDebounce:     c.EndDebounce,
			MinTurnDuration: c.MinTurnDuration,
		},
		Recorder: recorder.Config{
			MaxDuration:  c.MaxRecording,
			MinClipBytes: c.MinClipBytes,
		},
		Language:           c.Language,
		Voice:              c.Voice,
		SampleRate:         c.SampleRate,
		Encoding:           c.Encoding,
		MaxTokens:          c.MaxTokens,
		HistoryWindow:      c.HistoryWindow,
		MaxConversations:   c.MaxConversations,
		MinTranscriptChars: c.MinTranscriptChars,
		AllowInterruptions: c.AllowInterruptions,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
