package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/voxloop/voxloop/adapters/llm"
	"github.com/voxloop/voxloop/adapters/stt"
	"github.com/voxloop/voxloop/adapters/tts"
	"github.com/voxloop/voxloop/domain/repositories"
	"github.com/voxloop/voxloop/internal/api"
	"github.com/voxloop/voxloop/internal/auth"
	"github.com/voxloop/voxloop/internal/config"
	"github.com/voxloop/voxloop/internal/websocket"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("JWT_SECRET must be set", zap.Error(err))
	}

	ctx := context.Background()
	speechToText := buildSpeechToText(ctx, cfg, logger)
	languageModel := buildLanguageModel(ctx, cfg, logger)
	textToSpeech := buildTextToSpeech(cfg, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	hub := websocket.NewHub(speechToText, languageModel, textToSpeech, cfg.Orchestrator(), logger)
	go hub.Run()

	cleanup := websocket.NewSessionCleanupService(hub, cfg.IdleTimeout, logger)
	cleanup.Start()
	defer cleanup.Stop()

	api.InitRoutes(e, hub, signer, cfg.TokenTTL, logger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildSpeechToText selects the Google adapter when cloud credentials are
// present, the mock otherwise.
func buildSpeechToText(ctx context.Context, cfg config.Config, logger *zap.Logger) repositories.SpeechToText {
	if cfg.GoogleSTT {
		client, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err == nil {
			logger.Info("Using Google Cloud Speech-to-Text")
			return client
		}
		logger.Warn("Falling back to mock speech-to-text", zap.Error(err))
	}
	return stt.NewMockSpeechToText(logger)
}

// buildLanguageModel wires every backend an API key exists for into the
// model registry. With no keys at all the mock serves everything.
func buildLanguageModel(ctx context.Context, cfg config.Config, logger *zap.Logger) repositories.LanguageModel {
	var fallback repositories.LanguageModel
	if cfg.OpenAIAPIKey != "" {
		openaiLLM, err := llm.NewOpenAILLM(cfg.OpenAIAPIKey, logger)
		if err == nil {
			logger.Info("OpenAI backend enabled")
			fallback = openaiLLM
		} else {
			logger.Warn("OpenAI backend unavailable", zap.Error(err))
		}
	}
	if fallback == nil {
		logger.Info("Using mock language model")
		fallback = llm.NewMockLLM(logger)
	}

	registry := llm.NewRegistry(fallback, logger)
	if cfg.GeminiAPIKey != "" {
		geminiLLM, err := llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, logger)
		if err == nil {
			logger.Info("Gemini backend enabled")
			registry.Register("gemini", geminiLLM)
		} else {
			logger.Warn("Gemini backend unavailable", zap.Error(err))
		}
	}
	return registry
}

func buildTextToSpeech(cfg config.Config, logger *zap.Logger) repositories.TextToSpeech {
	elevenConfig := tts.NewElevenLabsConfigFromEnv()
	if elevenConfig.APIKey != "" {
		client, err := tts.NewElevenLabsTTS(elevenConfig, logger)
		if err == nil {
			logger.Info("Using Eleven Labs text-to-speech")
			return client
		}
		logger.Warn("Falling back to mock text-to-speech", zap.Error(err))
	}
	return tts.NewMockTextToSpeech(logger)
}
