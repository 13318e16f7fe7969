package websocket

import (
	"time"

	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long a client may stay silent before its
// connection is reclaimed.
const DefaultIdleTimeout = 30 * time.Minute

// SessionCleanupService disconnects clients that have gone idle. Browser
// tabs left open hold a capture stream and an orchestrator each; reclaiming
// them bounds the server's per-connection state.
type SessionCleanupService struct {
	hub         *Hub
	idleTimeout time.Duration
	logger      *zap.Logger
	stopChan    chan struct{}
}

// NewSessionCleanupService creates a new session cleanup service
func NewSessionCleanupService(hub *Hub, idleTimeout time.Duration, logger *zap.Logger) *SessionCleanupService {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &SessionCleanupService{
		hub:         hub,
		idleTimeout: idleTimeout,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started",
		zap.Duration("idleTimeout", s.idleTimeout))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	s.logger.Info("Session cleanup service stopped")
}

func (s *SessionCleanupService) cleanupLoop() {
	ticker := time.NewTicker(s.idleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup closes the connections of clients idle past the timeout. The
// read pump notices the closed connection and tears the session down.
func (s *SessionCleanupService) runCleanup() {
	cutoff := time.Now().Add(-s.idleTimeout)

	s.hub.mu.RLock()
	var idle []*Client
	for _, client := range s.hub.clients {
		if client.idleSince().Before(cutoff) {
			idle = append(idle, client)
		}
	}
	s.hub.mu.RUnlock()

	for _, client := range idle {
		s.logger.Info("Disconnecting idle client",
			zap.String("sessionID", client.sessionID))
		client.conn.Close()
	}

	if len(idle) > 0 {
		s.logger.Info("Session cleanup completed", zap.Int("reclaimed", len(idle)))
	}
}
