package ports

import (
	"encoding/json"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
)

// RoomBroadcaster is the port the emitter publishes through. The WebSocket
// hub implements it.
type RoomBroadcaster interface {
	// Publish delivers payload under eventName to every member of room.
	// A room without members is a silent no-op.
	Publish(room string, eventName domain.EventType, payload any)

	// PublishToMany publishes once per room. Members of several listed
	// rooms receive one delivery per matching room.
	PublishToMany(rooms []string, eventName domain.EventType, payload any)
}

// RegistryLocator reports the broadcaster once the socket server has been
// initialized. ok is false before that.
type RegistryLocator interface {
	Locate() (broadcaster RoomBroadcaster, ok bool)
}

// RoomMembership is the subset of the registry that subscriptions need.
type RoomMembership interface {
	Join(connectionID, room string)
	Leave(connectionID, room string)
}

// RoomResolver derives identity rooms at handshake time.
type RoomResolver interface {
	ResolveRooms(identity domain.Identity) ([]string, error)
}

// CreateTicketEventParams is the input of EmitTicketCreated.
type CreateTicketEventParams struct {
	ID           string
	TicketNumber string
	Title        string
	Status       string
	Priority     string
	CreatedBy    string
	BranchID     string
}

// EventEmitter is the entry point collaborators call after committing a
// ticket mutation. Methods never fail and never block on network I/O.
type EventEmitter interface {
	EmitTicketCreated(ticket CreateTicketEventParams)
	EmitTicketUpdated(ticketID string, changes domain.Changes, updatedBy string)
	EmitTicketAssigned(ticketID, assignedToID, assignedBy string)
	EmitTicketCommented(ticketID string, comment json.RawMessage)
	EmitTicketStatusChanged(ticketID, oldStatus, newStatus, changedBy string)
	EmitBatchTicketUpdate(ticketIDs []string, changes domain.Changes, updatedBy string)
	BroadcastToRooms(rooms []string, event domain.EventType, data any)
}

// SubscriptionService manages per-ticket rooms for a live connection.
type SubscriptionService interface {
	SubscribeTicket(connectionID, ticketID string) error
	UnsubscribeTicket(connectionID, ticketID string) error
}
