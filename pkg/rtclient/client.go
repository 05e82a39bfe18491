// Package rtclient is a Go client for the service desk realtime socket.
//
// A client dials the socket, authenticates with an identity, subscribes to
// ticket rooms and receives events on a channel:
//
//	c, err := rtclient.Dial(ctx, rtclient.Config{URL: "wss://desk/api/v1/ws"})
//	if err != nil { ... }
//	defer c.Close()
//	rooms, err := c.Authenticate(ctx, rtclient.Identity{UserID: "u1", Role: "TECHNICIAN"})
//	_ = c.SubscribeTicket(ctx, "T1")
//	for ev := range c.Events() { ... }
package rtclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Message types understood by the server.
const (
	TypeAuthenticate      = "authenticate"
	TypeSubscribeTicket   = "subscribe:ticket"
	TypeUnsubscribeTicket = "unsubscribe:ticket"
	TypePing              = "ping"
)

// Reply types addressed to this connection only.
const (
	TypeAuthenticated = "authenticated"
	TypeAuthError     = "auth_error"
	TypePong          = "pong"
)

var (
	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("rtclient: connection closed")
)

// AuthError is returned by Authenticate when the server rejects the
// handshake.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "rtclient: authentication rejected: " + e.Message
}

// Identity is presented during the handshake.
type Identity struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	BranchID string `json:"branchId,omitempty"`
}

// Event is one message received from the server. Room is empty for direct
// replies such as pong.
type Event struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Config controls dialing and I/O.
type Config struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	EventBuffer      int   // capacity of the Events channel
	ReadLimit        int64 // max bytes of a single incoming message
}

// DefaultConfig returns sensible defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		EventBuffer:      64,
		ReadLimit:        1 << 20,
	}
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client is a single realtime connection. Its methods are safe for
// concurrent use.
type Client struct {
	cfg  Config
	conn *websocket.Conn

	events      chan Event
	authReplies chan Event

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	readErr error
}

// Dial connects to the socket at cfg.URL and starts reading events.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rtclient: empty URL")
	}
	defaults := DefaultConfig(cfg.URL)
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaults.EventBuffer
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaults.ReadLimit
	}

	dialCtx := ctx
	if cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, cfg.URL, &websocket.DialOptions{HTTPHeader: cfg.Header})
	if err != nil {
		return nil, fmt.Errorf("rtclient: dial %s: %w", cfg.URL, err)
	}
	conn.SetReadLimit(cfg.ReadLimit)

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:         cfg,
		conn:        conn,
		events:      make(chan Event, cfg.EventBuffer),
		authReplies: make(chan Event, 1),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go c.readLoop(runCtx)
	return c, nil
}

// Events returns the channel of room events and pongs. It is closed when
// the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the read loop has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended. It is nil while the connection is
// open and after a normal Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Authenticate performs the handshake and returns the identity rooms the
// server joined. A rejection is returned as *AuthError.
func (c *Client) Authenticate(ctx context.Context, identity Identity) ([]string, error) {
	if err := c.write(ctx, outbound{Type: TypeAuthenticate, Payload: identity}); err != nil {
		return nil, err
	}

	select {
	case reply := <-c.authReplies:
		if reply.Type == TypeAuthError {
			var body struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(reply.Payload, &body)
			return nil, &AuthError{Message: body.Message}
		}

		var body struct {
			UserID string   `json:"userId"`
			Rooms  []string `json:"rooms"`
		}
		if err := json.Unmarshal(reply.Payload, &body); err != nil {
			return nil, fmt.Errorf("rtclient: decode authenticated reply: %w", err)
		}
		return body.Rooms, nil

	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubscribeTicket joins the room of ticketID. The server does not
// acknowledge subscriptions.
func (c *Client) SubscribeTicket(ctx context.Context, ticketID string) error {
	return c.write(ctx, outbound{Type: TypeSubscribeTicket, Payload: ticketID})
}

// UnsubscribeTicket leaves the room of ticketID.
func (c *Client) UnsubscribeTicket(ctx context.Context, ticketID string) error {
	return c.write(ctx, outbound{Type: TypeUnsubscribeTicket, Payload: ticketID})
}

// Ping asks the server for a pong event.
func (c *Client) Ping(ctx context.Context) error {
	return c.write(ctx, outbound{Type: TypePing})
}

// Close closes the connection and waits for the read loop to stop.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close(websocket.StatusNormalClosure, "client close")
		c.cancel()
		<-c.done
	})
	return err
}

func (c *Client) write(ctx context.Context, msg outbound) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	if c.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()
	}
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return fmt.Errorf("rtclient: write %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	for {
		var ev Event
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			if !isExpectedDisconnect(ctx, err) {
				c.mu.Lock()
				c.readErr = err
				c.mu.Unlock()
			}
			return
		}

		switch ev.Type {
		case TypeAuthenticated, TypeAuthError:
			select {
			case c.authReplies <- ev:
			default:
				// Nobody is waiting on an unsolicited reply.
			}
			continue
		}

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
