package events

import (
	"encoding/json"

	"github.com/lorrc/service-desk-realtime/internal/adapters/primary/validation"
	"github.com/lorrc/service-desk-realtime/internal/core/domain"
)

const maxIDLength = 128

// TicketCreatedRequest is the body of a ticket:created signal.
type TicketCreatedRequest struct {
	ID           string `json:"id"`
	TicketNumber string `json:"ticketNumber"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	CreatedBy    string `json:"createdBy"`
	BranchID     string `json:"branchId"`
}

func (r *TicketCreatedRequest) Validate(v *validation.Validator) {
	v.Required("id", r.ID).MaxLength("id", r.ID, maxIDLength).
		Required("ticketNumber", r.TicketNumber).
		Required("title", r.Title).
		Required("status", r.Status).
		Required("priority", r.Priority).
		Required("createdBy", r.CreatedBy)
}

// TicketUpdatedRequest is the body of a ticket:updated signal.
type TicketUpdatedRequest struct {
	ID        string         `json:"id"`
	Changes   domain.Changes `json:"changes"`
	UpdatedBy string         `json:"updatedBy"`
}

func (r *TicketUpdatedRequest) Validate(v *validation.Validator) {
	v.Required("id", r.ID).MaxLength("id", r.ID, maxIDLength)
}

// TicketAssignedRequest is the body of a ticket:assigned signal.
type TicketAssignedRequest struct {
	TicketID     string `json:"ticketId"`
	AssignedToID string `json:"assignedToId"`
	AssignedBy   string `json:"assignedBy"`
}

func (r *TicketAssignedRequest) Validate(v *validation.Validator) {
	v.Required("ticketId", r.TicketID).MaxLength("ticketId", r.TicketID, maxIDLength).
		Required("assignedToId", r.AssignedToID).
		Required("assignedBy", r.AssignedBy)
}

// TicketCommentedRequest is the body of a ticket:commented signal. Comment
// is forwarded as-is.
type TicketCommentedRequest struct {
	TicketID string          `json:"ticketId"`
	Comment  json.RawMessage `json:"comment"`
}

func (r *TicketCommentedRequest) Validate(v *validation.Validator) {
	v.Required("ticketId", r.TicketID).MaxLength("ticketId", r.TicketID, maxIDLength).
		Custom("comment", len(r.Comment) > 0 && string(r.Comment) != "null", "This field is required")
}

// TicketStatusChangedRequest is the body of a ticket:status_changed signal.
type TicketStatusChangedRequest struct {
	TicketID  string `json:"ticketId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
	ChangedBy string `json:"changedBy"`
}

func (r *TicketStatusChangedRequest) Validate(v *validation.Validator) {
	v.Required("ticketId", r.TicketID).MaxLength("ticketId", r.TicketID, maxIDLength).
		Required("oldStatus", r.OldStatus).
		Required("newStatus", r.NewStatus).
		Required("changedBy", r.ChangedBy)
}

// TicketsBatchUpdatedRequest is the body of a tickets:batch_updated signal.
type TicketsBatchUpdatedRequest struct {
	TicketIDs []string       `json:"ticketIds"`
	Changes   domain.Changes `json:"changes"`
	UpdatedBy string         `json:"updatedBy"`
}

func (r *TicketsBatchUpdatedRequest) Validate(v *validation.Validator) {
	v.RequiredEach("ticketIds", r.TicketIDs).
		Required("updatedBy", r.UpdatedBy)
}

// BroadcastRequest publishes arbitrary data to a set of rooms.
type BroadcastRequest struct {
	Rooms []string        `json:"rooms"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (r *BroadcastRequest) Validate(v *validation.Validator) {
	v.RequiredEach("rooms", r.Rooms).
		Required("event", r.Event).
		MaxLength("event", r.Event, 100)
}
