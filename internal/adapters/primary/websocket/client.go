package websocket

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"golang.org/x/time/rate"
)

// Client message types.
const (
	MessageAuthenticate      = "authenticate"
	MessageSubscribeTicket   = "subscribe:ticket"
	MessageUnsubscribeTicket = "unsubscribe:ticket"
	MessagePing              = "ping"
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id         string
	remoteAddr string

	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of encoded outbound events.
	send chan []byte

	// closeOnce ensures the send channel is only closed once
	closeOnce sync.Once

	// Guarded by hub.mu.
	rooms         map[string]struct{}
	authenticated bool
	identity      domain.Identity

	subscriptions ports.SubscriptionService
	limiter       *rate.Limiter
	opts          Options
	logger        *slog.Logger
}

func newClient(
	id string,
	hub *Hub,
	conn *websocket.Conn,
	subscriptions ports.SubscriptionService,
	opts Options,
	remoteAddr string,
	logger *slog.Logger,
) *Client {
	var limiter *rate.Limiter
	if opts.MessageRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MessageRPS), opts.MessageBurst)
	}

	return &Client{
		id:            id,
		remoteAddr:    remoteAddr,
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, opts.SendBufferSize),
		rooms:         make(map[string]struct{}),
		subscriptions: subscriptions,
		limiter:       limiter,
		opts:          opts,
		logger:        logger,
	}
}

// ID returns the connection ID.
func (c *Client) ID() string {
	return c.id
}

// enqueue performs a non-blocking send. It reports false when the queue is
// full. Callers hold at least the hub's read lock.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once. Callers hold the hub's
// write lock.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.OnDisconnect(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Warn("client message rate exceeded, dropping message")
			continue
		}

		c.handleIncomingMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// handleIncomingMessage processes messages received from the client
func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case MessageAuthenticate:
		c.handleAuthenticate(msg.Payload)

	case MessageSubscribeTicket:
		c.handleSubscription(msg.Payload, c.subscriptions.SubscribeTicket)

	case MessageUnsubscribeTicket:
		c.handleSubscription(msg.Payload, c.subscriptions.UnsubscribeTicket)

	case MessagePing:
		c.hub.SendDirect(c.id, domain.EventPong, nil)

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

func (c *Client) handleAuthenticate(payload json.RawMessage) {
	var identity domain.Identity
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &identity); err != nil {
			c.logger.Warn("failed to unmarshal authenticate payload", "error", err)
			identity = domain.Identity{}
		}
	}

	// Rejections are answered with auth_error by the hub.
	_, _ = c.hub.Authenticate(c.id, identity)
}

func (c *Client) handleSubscription(payload json.RawMessage, apply func(connectionID, ticketID string) error) {
	ticketID, err := parseTicketID(payload)
	if err != nil {
		c.logger.Warn("invalid ticket ID in subscription request", "error", err)
		return
	}

	if err := apply(c.id, ticketID); err != nil {
		c.logger.Warn("subscription request rejected", "ticket_id", ticketID, "error", err)
	}
}

// parseTicketID accepts a JSON string, a JSON number, or an object of the
// form {"ticketId": <string|number>}.
func parseTicketID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", apperrors.ErrTicketIDRequired
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil

	case '{':
		var obj struct {
			TicketID json.RawMessage `json:"ticketId"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		inner := bytes.TrimSpace(obj.TicketID)
		if len(inner) == 0 || inner[0] == '{' {
			return "", apperrors.ErrInvalidSubscribeValue
		}
		return parseTicketID(inner)

	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", apperrors.ErrInvalidSubscribeValue
		}
		return n.String(), nil
	}
}
