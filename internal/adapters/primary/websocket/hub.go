package websocket

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// Hub is the connection registry. It tracks live clients and the rooms
// they belong to, and fans published events out to room members.
//
// Membership changes take the write lock. Publishing takes the read lock
// and never blocks on a client: each member's send queue is filled with a
// non-blocking send, and members whose queue is full are dropped once the
// publish has finished.
type Hub struct {
	mu sync.RWMutex

	// Registered clients by connection ID.
	clients map[string]*Client

	// Room name -> members by connection ID.
	rooms map[string]map[string]*Client

	resolver ports.RoomResolver
	logger   *slog.Logger
}

var (
	_ ports.RoomBroadcaster = (*Hub)(nil)
	_ ports.RoomMembership  = (*Hub)(nil)
)

// NewHub creates a new Hub
func NewHub(resolver ports.RoomResolver, logger *slog.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		resolver: resolver,
		logger:   logger.With("component", "websocket_hub"),
	}
}

// OnConnect registers a client in the unauthenticated state and returns its
// connection ID. The client starts in no rooms.
func (h *Hub) OnConnect(c *Client) string {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected",
		"connection_id", c.id,
		"remote_addr", c.remoteAddr,
		"total_clients", total,
	)
	return c.id
}

// OnDisconnect removes the client and all of its room memberships, then
// closes its send queue. Unknown IDs are ignored.
func (h *Hub) OnDisconnect(connectionID string) {
	h.mu.Lock()
	c, ok := h.clients[connectionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, connectionID)
	for room := range c.rooms {
		h.removeMemberLocked(room, connectionID)
	}
	c.rooms = nil
	c.closeSend()
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client disconnected",
		"connection_id", connectionID,
		"user_id", c.identity.UserID,
		"total_clients", total,
	)
}

// Join adds the connection to room. Unknown connections are ignored.
func (h *Hub) Join(connectionID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(connectionID, room)
}

// Leave removes the connection from room. Unknown connections are ignored.
func (h *Hub) Leave(connectionID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connectionID]
	if !ok {
		return
	}
	delete(c.rooms, room)
	h.removeMemberLocked(room, connectionID)
}

func (h *Hub) joinLocked(connectionID, room string) {
	c, ok := h.clients[connectionID]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[connectionID] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) removeMemberLocked(room, connectionID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Authenticate runs the identity handshake for a connection. On success the
// connection joins its identity rooms and receives an authenticated reply;
// otherwise it receives auth_error and its rooms are unchanged. A connection
// authenticates at most once.
func (h *Hub) Authenticate(connectionID string, identity domain.Identity) ([]string, error) {
	h.mu.Lock()
	c, ok := h.clients[connectionID]
	if !ok {
		h.mu.Unlock()
		return nil, apperrors.ErrConnectionNotFound
	}

	if c.authenticated {
		h.mu.Unlock()
		h.replyAuthError(c, apperrors.ErrAlreadyAuthenticated)
		return nil, apperrors.ErrAlreadyAuthenticated
	}

	rooms, err := h.resolver.ResolveRooms(identity)
	if err != nil {
		h.mu.Unlock()
		h.replyAuthError(c, err)
		return nil, err
	}

	for _, room := range rooms {
		h.joinLocked(connectionID, room)
	}
	c.authenticated = true
	c.identity = identity
	h.mu.Unlock()

	h.logger.Info("client authenticated",
		"connection_id", connectionID,
		"user_id", identity.UserID,
		"role", identity.Role,
		"rooms", rooms,
	)

	h.SendDirect(connectionID, domain.EventAuthenticated, domain.AuthenticatedReply{
		UserID: identity.UserID,
		Rooms:  rooms,
	})
	return rooms, nil
}

func (h *Hub) replyAuthError(c *Client, err error) {
	h.logger.Warn("authentication rejected",
		"connection_id", c.id,
		"error", err,
	)
	h.SendDirect(c.id, domain.EventAuthError, domain.AuthErrorReply{Message: err.Error()})
}

// SendDirect delivers an event to a single connection, outside any room.
func (h *Hub) SendDirect(connectionID string, eventName domain.EventType, payload any) {
	msg, err := encodeEvent(domain.Event{Type: eventName, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode event", "event", eventName, "error", err)
		return
	}

	h.mu.RLock()
	c, ok := h.clients[connectionID]
	delivered := ok && c.enqueue(msg)
	h.mu.RUnlock()

	if ok && !delivered {
		h.dropSlowConsumers([]string{connectionID})
	}
}

// Publish delivers an event to every member of room. A room without
// members is a no-op.
func (h *Hub) Publish(room string, eventName domain.EventType, payload any) {
	h.mu.RLock()
	members := h.rooms[room]
	if len(members) == 0 {
		h.mu.RUnlock()
		return
	}

	msg, err := encodeEvent(domain.Event{Type: eventName, Room: room, Payload: payload})
	if err != nil {
		h.mu.RUnlock()
		h.logger.Error("failed to encode event", "event", eventName, "room", room, "error", err)
		return
	}

	var slow []string
	for id, c := range members {
		if !c.enqueue(msg) {
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	h.dropSlowConsumers(slow)
}

// PublishToMany publishes once per room. A connection in several of the
// rooms receives one delivery per room.
func (h *Hub) PublishToMany(rooms []string, eventName domain.EventType, payload any) {
	for _, room := range rooms {
		h.Publish(room, eventName, payload)
	}
}

func (h *Hub) dropSlowConsumers(ids []string) {
	for _, id := range ids {
		h.logger.Warn("send queue full, dropping slow client", "connection_id", id)
		h.OnDisconnect(id)
	}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomsInfo returns a snapshot of room name -> sorted connection IDs.
func (h *Hub) RoomsInfo() map[string][]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	info := make(map[string][]string, len(h.rooms))
	for room, members := range h.rooms {
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		info[room] = ids
	}
	return info
}

// RoomsOf returns the sorted rooms a connection belongs to.
func (h *Hub) RoomsOf(connectionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connectionID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.OnDisconnect(id)
	}
	h.logger.Info("hub shut down", "disconnected", len(ids))
}

func encodeEvent(event domain.Event) ([]byte, error) {
	return json.Marshal(event)
}
