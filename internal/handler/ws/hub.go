package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"talkbridge-backend/internal/broadcast"
	"talkbridge-backend/internal/domain"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/pkg/constants"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
)

// Relayer forwards WebRTC negotiation packets received as signal frames
type Relayer interface {
	Relay(ctx context.Context, user domain.AuthenticatedUser, packet *domain.SignalPacket) error
}

// PresenceTracker records live gateway connections
type PresenceTracker interface {
	Connect(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, userID uuid.UUID) error
	Disconnect(ctx context.Context, userID uuid.UUID) error
}

// HubConfig tunes the gateway
type HubConfig struct {
	MaxConnections  int
	FramesPerSecond int
	FrameBurst      int
}

// Hub routes broadcast bus frames to the WebSocket connections subscribed to their topic
type Hub struct {
	relayer  Relayer
	presence PresenceTracker
	upgrader websocket.Upgrader

	frameRate  rate.Limit
	frameBurst int

	// Concurrency limit on open connections
	maxConnections int
	semaphore      chan struct{}

	mu     sync.RWMutex
	topics map[broadcast.Topic]map[*Client]struct{}
}

// NewHub creates a new gateway hub
func NewHub(relayer Relayer, presence PresenceTracker, origins middleware.OriginAllowList, cfg HubConfig) *Hub {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 10000
	}
	if cfg.FramesPerSecond <= 0 {
		cfg.FramesPerSecond = 50
	}
	if cfg.FrameBurst <= 0 {
		cfg.FrameBurst = cfg.FramesPerSecond * 2
	}

	return &Hub{
		relayer:  relayer,
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return origins.Allowed(r.Header.Get("Origin"))
			},
		},
		frameRate:      rate.Limit(cfg.FramesPerSecond),
		frameBurst:     cfg.FrameBurst,
		maxConnections: cfg.MaxConnections,
		semaphore:      make(chan struct{}, cfg.MaxConnections),
		topics:         make(map[broadcast.Topic]map[*Client]struct{}),
	}
}

// Dispatch delivers one bus frame to every local subscriber of topic.
// It is the broadcast.DispatchFunc of the gateway process.
func (h *Hub) Dispatch(topic broadcast.Topic, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.topics[topic.Key()] {
		client.deliver(frame)
	}
}

// ServeWS upgrades an authenticated request to a gateway connection
// GET /v1/ws
func (h *Hub) ServeWS(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("WebSocket upgrade failed",
			zap.String("user_id", user.UserID.String()),
			zap.Error(err))
		return
	}

	client := newClient(h, conn, user)
	h.connected(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) connected(c *Client) {
	metrics.WebSocketConnections.Inc()
	h.updatePresence(c, "connect", h.presence.Connect)
	logger.Debug("Gateway connection opened", zap.String("user_id", c.user.UserID.String()))
}

// disconnected drops every subscription of c and releases its connection slot
func (h *Hub) disconnected(c *Client) {
	h.mu.Lock()
	for topic := range c.topics {
		h.removeLocked(c, topic)
	}
	h.mu.Unlock()

	<-h.semaphore
	metrics.WebSocketConnections.Dec()
	h.updatePresence(c, "disconnect", h.presence.Disconnect)
	logger.Debug("Gateway connection closed", zap.String("user_id", c.user.UserID.String()))
}

func (h *Hub) updatePresence(c *Client, action string, fn func(context.Context, uuid.UUID) error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShortTimeout)
	defer cancel()

	if err := fn(ctx, c.user.UserID); err != nil {
		logger.Warn("Failed to update presence",
			zap.String("action", action),
			zap.String("user_id", c.user.UserID.String()),
			zap.Error(err))
	}
}

// subscribe adds topic to c. The caller has checked authorization.
func (h *Hub) subscribe(c *Client, topic broadcast.Topic) error {
	key := topic.Key()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := c.topics[key]; ok {
		return nil
	}
	if len(c.topics) >= constants.MaxSubscriptionsPerConnection {
		return errTooManySubscriptions
	}

	c.topics[key] = struct{}{}
	clients := h.topics[key]
	if clients == nil {
		clients = make(map[*Client]struct{})
		h.topics[key] = clients
	}
	clients[c] = struct{}{}
	return nil
}

func (h *Hub) unsubscribe(c *Client, topic broadcast.Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, topic.Key())
}

func (h *Hub) removeLocked(c *Client, key broadcast.Topic) {
	delete(c.topics, key)
	if clients, ok := h.topics[key]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.topics, key)
		}
	}
}

// subscribers returns how many local connections follow topic
func (h *Hub) subscribers(topic broadcast.Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic.Key()])
}
