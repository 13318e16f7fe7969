package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain/entities"
	"github.com/voxloop/voxloop/domain/repositories"
	"github.com/voxloop/voxloop/internal/capture"
	"github.com/voxloop/voxloop/internal/orchestrator"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect cross-origin during development.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients. Each client gets its own
// orchestrator; the hub only shares the backing services.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	stt        repositories.SpeechToText
	llm        repositories.LanguageModel
	tts        repositories.TextToSpeech
	orchConfig orchestrator.Config

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	stt repositories.SpeechToText,
	llm repositories.LanguageModel,
	tts repositories.TextToSpeech,
	orchConfig orchestrator.Config,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stt:        stt,
		llm:        llm,
		tts:        tts,
		orchConfig: orchConfig,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.sessionID)
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client owns one browser session: the websocket connection, the capture
// stream, and the session's orchestrator. It is both the orchestrator's
// presenter (state and messages out) and its audio sink (reply audio out).
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound messages. Never closed: orchestrator
	// goroutines may outlive the read pump, so shutdown is signalled through
	// done instead.
	send chan WriteData

	// Closed once on teardown. Senders select on it so a disconnect during an
	// in-flight turn drops the output instead of panicking.
	done     chan struct{}
	doneOnce sync.Once

	sessionID string
	logger    *zap.Logger
	validator *MessageValidator

	orch   *orchestrator.Orchestrator
	cancel context.CancelFunc

	mutex      sync.Mutex
	source     *capture.Source
	lastActive time.Time
}

var (
	_ orchestrator.Presenter = (*Client)(nil)
	_ repositories.AudioSink = (*Client)(nil)
)

// HandleWebSocket upgrades the connection for a pre-authenticated session
// and starts the client's pumps and orchestrator.
func HandleWebSocket(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan WriteData, 256),
		done:       make(chan struct{}),
		sessionID:  sessionID,
		logger:     logger.With(zap.String("sessionID", sessionID)),
		validator:  NewMessageValidator(),
		lastActive: time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	client.cancel = cancel
	client.orch = orchestrator.New(hub.orchConfig, hub.stt, hub.llm, hub.tts, client, client, client.logger)
	go client.orch.Run(ctx)

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	// Initial state so the client renders before any interaction.
	client.StateChanged(client.orch.Snapshot())

	return nil
}

// readPump pumps messages from the websocket connection into the session.
func (c *Client) readPump() {
	defer func() {
		c.teardown()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		c.touch()

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps outbound messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one validated control message.
func (c *Client) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected invalid message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *ConversationStartMessage:
		c.handleConversationStart(msg)
	case *TextSubmitMessage:
		c.handleTextSubmit(msg)
	case *ModelSelectMessage:
		c.orch.SetModelOverride(msg.Model)
	case *PlaybackEndedMessage:
		c.orch.NotifyPlaybackEnded(msg.AudioRef)
	case *BaseMessage:
		switch msg.Type {
		case MessageTypeConversationStop:
			c.handleConversationStop()
		case MessageTypePing:
			c.sendJSON(CreatePongMessage(""))
		}
	}
}

// processAudioFrame feeds one captured PCM frame into the session's stream.
func (c *Client) processAudioFrame(data []byte) {
	c.mutex.Lock()
	source := c.source
	c.mutex.Unlock()

	if source == nil {
		c.logger.Debug("Dropping audio frame, conversation mode is off",
			zap.Int("size", len(data)))
		return
	}
	if err := source.Push(data); err != nil {
		c.logger.Warn("Failed to push audio frame", zap.Error(err))
	}
}

func (c *Client) handleConversationStart(msg *ConversationStartMessage) {
	c.mutex.Lock()
	if c.source != nil {
		c.mutex.Unlock()
		return
	}
	source := capture.Acquire(0, c.logger)
	c.source = source
	c.mutex.Unlock()

	c.logger.Info("Conversation mode starting",
		zap.Int("sampleRate", msg.SampleRate),
		zap.String("language", msg.Language))
	c.orch.EnableConversationMode(source)
}

func (c *Client) handleConversationStop() {
	c.orch.DisableConversationMode()

	c.mutex.Lock()
	source := c.source
	c.source = nil
	c.mutex.Unlock()
	if source != nil {
		source.Release()
	}
}

func (c *Client) handleTextSubmit(msg *TextSubmitMessage) {
	err := c.orch.SubmitText(context.Background(), msg.Text)
	switch {
	case errors.Is(err, orchestrator.ErrTurnInFlight):
		c.sendJSON(CreateErrorMessage("turn_in_flight", "a reply is already in progress"))
	case errors.Is(err, orchestrator.ErrLimitReached):
		c.sendJSON(CreateErrorMessage("limit_reached", "conversation limit reached"))
	case err != nil:
		c.sendJSON(CreateErrorMessage("submit_failed", err.Error()))
	}
}

// teardown releases the session's resources on disconnect.
func (c *Client) teardown() {
	c.doneOnce.Do(func() { close(c.done) })
	c.orch.DisableConversationMode()
	c.cancel()

	c.mutex.Lock()
	source := c.source
	c.source = nil
	c.mutex.Unlock()
	if source != nil {
		source.Release()
	}
}

func (c *Client) touch() {
	c.mutex.Lock()
	c.lastActive = time.Now()
	c.mutex.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lastActive
}

// MessagesUpdated implements orchestrator.Presenter
func (c *Client) MessagesUpdated(messages []entities.Message) {
	c.sendJSON(&MessagesMessage{
		BaseMessage: BaseMessage{Type: MessageTypeMessages},
		Messages:    messages,
	})
}

// StateChanged implements orchestrator.Presenter
func (c *Client) StateChanged(state entities.VoiceState) {
	c.sendJSON(&VoiceStateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeVoiceState},
		State:       state,
	})
}

// ConversationComplete implements orchestrator.Presenter
func (c *Client) ConversationComplete(count int) {
	c.sendJSON(&ConversationCompleteMessage{
		BaseMessage: BaseMessage{Type: MessageTypeConversationComplete},
		Count:       count,
	})
}

// BeginSpeaking implements repositories.AudioSink: announce the stream,
// relay every synthesized chunk as a binary frame, then close the stream
// with speaking_end. The client plays the audio and reports back with
// playback_ended.
func (c *Client) BeginSpeaking(ctx context.Context, audio *repositories.SynthesizedAudio) error {
	c.sendJSON(&SpeakingStartMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSpeakingStart},
		AudioRef:    audio.Ref,
	})

	for chunk := range audio.Chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errors.New("client disconnected")
		case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: chunk}:
		}
	}

	c.sendJSON(&SpeakingEndMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSpeakingEnd},
		AudioRef:    audio.Ref,
	})
	return nil
}

// EndSpeaking implements repositories.AudioSink. The authoritative signal
// for the client is the voice_state push that follows; playback that was cut
// short shows up there as playing=false.
func (c *Client) EndSpeaking(ctx context.Context, audioRef string) error {
	c.logger.Debug("Playback resolved", zap.String("audioRef", audioRef))
	return nil
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Outbound buffer full, dropping message")
	}
}
