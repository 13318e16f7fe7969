package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voxloop/voxloop/internal/auth"
	"github.com/voxloop/voxloop/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, signer *auth.Signer, tokenTTL time.Duration, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: "voxloop-server",
			Clients: hub.ClientCount(),
		})
	})

	v1 := e.Group("/api/v1")

	// Session issue: the browser trades nothing for a short-lived token it
	// presents on the websocket handshake.
	v1.POST("/session", func(c echo.Context) error {
		return createSession(c, signer, tokenTTL, logger)
	})

	// WebSocket endpoint with token validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, signer, logger)
	})
}

func createSession(c echo.Context, signer *auth.Signer, tokenTTL time.Duration, logger *zap.Logger) error {
	sessionID := uuid.NewString()

	token, err := signer.GenerateSessionToken(sessionID)
	if err != nil {
		logger.Error("Failed to generate session token",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	logger.Info("Session issued", zap.String("session_id", sessionID))

	return c.JSON(http.StatusOK, SessionResponse{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: time.Now().Add(tokenTTL),
	})
}

// websocketWithAuth handles WebSocket connections with token authentication.
// Browsers cannot set headers on websocket dials, so the token also rides in
// a query parameter.
func websocketWithAuth(hub *websocket.Hub, c echo.Context, signer *auth.Signer, logger *zap.Logger) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "Session token is required",
		})
	}

	claims, err := signer.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired session token",
		})
	}

	if claims.SessionID == "" {
		logger.Error("WebSocket connection rejected: missing session ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Session ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("session_id", claims.SessionID))

	return websocket.HandleWebSocket(hub, c, claims.SessionID, logger)
}
