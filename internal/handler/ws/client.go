package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"talkbridge-backend/internal/broadcast"
	"talkbridge-backend/internal/domain"
	"talkbridge-backend/pkg/constants"
	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
)

// Client frame actions
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionSignal      = "signal"
)

var errTooManySubscriptions = errors.New("too many subscriptions")

// ClientFrame is a frame sent by the browser
type ClientFrame struct {
	Action  string          `json:"action"`
	Topic   broadcast.Topic `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorFrame is sent back when a client frame cannot be served
type ErrorFrame struct {
	Error string          `json:"error"`
	Topic broadcast.Topic `json:"topic,omitempty"`
}

// Client is one gateway WebSocket connection
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	user    domain.AuthenticatedUser
	send    chan []byte
	limiter *rate.Limiter

	// topics is guarded by hub.mu
	topics map[broadcast.Topic]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, user domain.AuthenticatedUser) *Client {
	return &Client{
		hub:     h,
		conn:    conn,
		user:    user,
		send:    make(chan []byte, constants.WebSocketSendBuffer),
		limiter: rate.NewLimiter(h.frameRate, h.frameBurst),
		topics:  make(map[broadcast.Topic]struct{}),
		done:    make(chan struct{}),
	}
}

// deliver queues frame without blocking. A client that cannot keep up is disconnected.
func (c *Client) deliver(frame []byte) {
	select {
	case c.send <- frame:
		metrics.WebSocketFramesTotal.WithLabelValues("out", "dispatch").Inc()
	default:
		metrics.WebSocketDroppedTotal.Inc()
		logger.Warn("Closing slow gateway client", zap.String("user_id", c.user.UserID.String()))
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) replyError(topic broadcast.Topic, message string) {
	frame, err := json.Marshal(ErrorFrame{Error: message, Topic: topic})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// handleFrame serves one client frame
func (c *Client) handleFrame(ctx context.Context, raw []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.replyError("", "Invalid frame")
		return
	}
	metrics.WebSocketFramesTotal.WithLabelValues("in", frame.Action).Inc()

	if !c.limiter.Allow() {
		c.replyError(frame.Topic, "Rate limit exceeded")
		return
	}

	switch frame.Action {
	case ActionSubscribe:
		if err := frame.Topic.Validate(); err != nil {
			c.replyError(frame.Topic, "Invalid topic")
			return
		}
		if !broadcast.CanSubscribe(frame.Topic, c.user) {
			c.replyError(frame.Topic, "Not allowed to subscribe to this topic")
			return
		}
		if err := c.hub.subscribe(c, frame.Topic); err != nil {
			c.replyError(frame.Topic, "Subscription limit reached")
		}

	case ActionUnsubscribe:
		c.hub.unsubscribe(c, frame.Topic)

	case ActionSignal:
		var packet domain.SignalPacket
		if err := json.Unmarshal(frame.Payload, &packet); err != nil {
			c.replyError("", "Invalid signal packet")
			return
		}
		if err := c.hub.relayer.Relay(ctx, c.user, &packet); err != nil {
			c.replyError("", apperrors.GetAppError(err).Message)
		}

	default:
		c.replyError(frame.Topic, "Unknown action")
	}
}

// readPump reads frames until the connection fails
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.hub.disconnected(c)
	}()

	c.conn.SetReadLimit(constants.WebSocketMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
		c.hub.updatePresence(c, "refresh", c.hub.presence.Refresh)
		return nil
	})

	ctx := logger.WithUserID(context.Background(), c.user.UserID.String())
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("user_id", c.user.UserID.String()),
					zap.Error(err))
			}
			return
		}
		c.handleFrame(ctx, message)
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
