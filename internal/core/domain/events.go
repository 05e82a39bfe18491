package domain

import (
	"encoding/json"
	"time"
)

// EventType defines the type of real-time event.
type EventType string

// Ticket lifecycle events pushed to clients.
const (
	EventTicketCreated       EventType = "ticket:created"
	EventTicketUpdated       EventType = "ticket:updated"
	EventTicketAssigned      EventType = "ticket:assigned"
	EventTicketCommented     EventType = "ticket:commented"
	EventTicketStatusChanged EventType = "ticket:status_changed"
	EventTicketsBatchUpdated EventType = "tickets:batch_updated"
)

// Handshake and keep-alive replies addressed to a single connection.
const (
	EventAuthenticated EventType = "authenticated"
	EventAuthError     EventType = "auth_error"
	EventPong          EventType = "pong"
)

// Event is the envelope sent over the WebSocket. Room names the room the
// delivery came through and is empty for direct replies.
type Event struct {
	Type    EventType `json:"type"`
	Room    string    `json:"room,omitempty"`
	Payload any       `json:"payload"`
}

// Changes maps a ticket field name to its new value.
type Changes map[string]any

// TicketCreated is the payload of ticket:created.
type TicketCreated struct {
	ID           string    `json:"id"`
	TicketNumber string    `json:"ticketNumber"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	CreatedBy    string    `json:"createdBy"`
	BranchID     string    `json:"branchId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// TicketUpdated is the payload of ticket:updated.
type TicketUpdated struct {
	ID        string    `json:"id"`
	Changes   Changes   `json:"changes"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketAssigned is the payload of ticket:assigned.
type TicketAssigned struct {
	TicketID     string    `json:"ticketId"`
	AssignedToID string    `json:"assignedToId"`
	AssignedBy   string    `json:"assignedBy"`
	Timestamp    time.Time `json:"timestamp"`
}

// TicketCommented is the payload of ticket:commented. Comment is opaque
// and forwarded unchanged.
type TicketCommented struct {
	TicketID  string          `json:"ticketId"`
	Comment   json.RawMessage `json:"comment"`
	Timestamp time.Time       `json:"timestamp"`
}

// TicketStatusChanged is the payload of ticket:status_changed.
type TicketStatusChanged struct {
	TicketID  string    `json:"ticketId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	ChangedBy string    `json:"changedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketsBatchUpdated is the payload of tickets:batch_updated. TicketIDs
// keeps the caller's order, duplicates included.
type TicketsBatchUpdated struct {
	TicketIDs []string  `json:"ticketIds"`
	Changes   Changes   `json:"changes"`
	UpdatedBy string    `json:"updatedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthenticatedReply acknowledges a successful handshake.
type AuthenticatedReply struct {
	UserID string   `json:"userId"`
	Rooms  []string `json:"rooms"`
}

// AuthErrorReply rejects a handshake.
type AuthErrorReply struct {
	Message string `json:"message"`
}
