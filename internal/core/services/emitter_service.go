package services

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// EmitterService turns committed ticket mutations into room broadcasts.
// Every method is fire-and-forget: when the socket server is not running
// the event is dropped with a warning and the caller carries on.
type EmitterService struct {
	locator ports.RegistryLocator
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.EventEmitter = (*EmitterService)(nil)

// EmitterOption configures an EmitterService.
type EmitterOption func(*EmitterService)

// WithClock overrides the clock used to stamp event timestamps.
func WithClock(now func() time.Time) EmitterOption {
	return func(s *EmitterService) {
		s.now = now
	}
}

// NewEmitterService creates a new emitter bound to the registry locator.
func NewEmitterService(locator ports.RegistryLocator, logger *slog.Logger, opts ...EmitterOption) *EmitterService {
	s := &EmitterService{
		locator: locator,
		logger:  logger.With("component", "event_emitter"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EmitTicketCreated notifies technicians, the ticket's branch and its creator.
func (s *EmitterService) EmitTicketCreated(ticket ports.CreateTicketEventParams) {
	broadcaster, ok := s.registry(domain.EventTicketCreated)
	if !ok {
		return
	}

	payload := domain.TicketCreated{
		ID:           ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Title:        ticket.Title,
		Status:       ticket.Status,
		Priority:     ticket.Priority,
		CreatedBy:    ticket.CreatedBy,
		BranchID:     ticket.BranchID,
		Timestamp:    s.timestamp(),
	}

	rooms := []string{domain.TechniciansRoom}
	if ticket.BranchID != "" {
		rooms = append(rooms, domain.BranchRoom(ticket.BranchID))
	}
	rooms = append(rooms, domain.UserRoom(ticket.CreatedBy))

	broadcaster.PublishToMany(rooms, domain.EventTicketCreated, payload)
}

// EmitTicketUpdated notifies the ticket's subscribers, and technicians too
// when the status or the assignee changed.
func (s *EmitterService) EmitTicketUpdated(ticketID string, changes domain.Changes, updatedBy string) {
	broadcaster, ok := s.registry(domain.EventTicketUpdated)
	if !ok {
		return
	}

	payload := domain.TicketUpdated{
		ID:        ticketID,
		Changes:   cloneChanges(changes),
		UpdatedBy: updatedBy,
		Timestamp: s.timestamp(),
	}

	broadcaster.Publish(domain.TicketRoom(ticketID), domain.EventTicketUpdated, payload)

	if changesAffectQueue(changes) {
		broadcaster.Publish(domain.TechniciansRoom, domain.EventTicketUpdated, payload)
	}
}

// EmitTicketAssigned notifies the new assignee, the ticket's subscribers and technicians.
func (s *EmitterService) EmitTicketAssigned(ticketID, assignedToID, assignedBy string) {
	broadcaster, ok := s.registry(domain.EventTicketAssigned)
	if !ok {
		return
	}

	payload := domain.TicketAssigned{
		TicketID:     ticketID,
		AssignedToID: assignedToID,
		AssignedBy:   assignedBy,
		Timestamp:    s.timestamp(),
	}

	broadcaster.PublishToMany([]string{
		domain.UserRoom(assignedToID),
		domain.TicketRoom(ticketID),
		domain.TechniciansRoom,
	}, domain.EventTicketAssigned, payload)
}

// EmitTicketCommented notifies the ticket's subscribers only. The comment
// body is forwarded as-is.
func (s *EmitterService) EmitTicketCommented(ticketID string, comment json.RawMessage) {
	broadcaster, ok := s.registry(domain.EventTicketCommented)
	if !ok {
		return
	}

	payload := domain.TicketCommented{
		TicketID:  ticketID,
		Comment:   json.RawMessage(bytes.Clone(comment)),
		Timestamp: s.timestamp(),
	}

	broadcaster.Publish(domain.TicketRoom(ticketID), domain.EventTicketCommented, payload)
}

// EmitTicketStatusChanged notifies the ticket's subscribers and technicians.
func (s *EmitterService) EmitTicketStatusChanged(ticketID, oldStatus, newStatus, changedBy string) {
	broadcaster, ok := s.registry(domain.EventTicketStatusChanged)
	if !ok {
		return
	}

	payload := domain.TicketStatusChanged{
		TicketID:  ticketID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ChangedBy: changedBy,
		Timestamp: s.timestamp(),
	}

	broadcaster.PublishToMany([]string{
		domain.TicketRoom(ticketID),
		domain.TechniciansRoom,
	}, domain.EventTicketStatusChanged, payload)
}

// EmitBatchTicketUpdate sends the whole batch to technicians once, then a
// ticket:updated to each ticket room in ticketIDs order. Duplicate ids are
// published once per occurrence.
func (s *EmitterService) EmitBatchTicketUpdate(ticketIDs []string, changes domain.Changes, updatedBy string) {
	broadcaster, ok := s.registry(domain.EventTicketsBatchUpdated)
	if !ok {
		return
	}

	ts := s.timestamp()
	changes = cloneChanges(changes)
	ids := slices.Clone(ticketIDs)
	if ids == nil {
		ids = []string{}
	}

	broadcaster.Publish(domain.TechniciansRoom, domain.EventTicketsBatchUpdated, domain.TicketsBatchUpdated{
		TicketIDs: ids,
		Changes:   changes,
		UpdatedBy: updatedBy,
		Timestamp: ts,
	})

	for _, id := range ids {
		broadcaster.Publish(domain.TicketRoom(id), domain.EventTicketUpdated, domain.TicketUpdated{
			ID:        id,
			Changes:   changes,
			UpdatedBy: updatedBy,
			Timestamp: ts,
		})
	}
}

// BroadcastToRooms publishes an arbitrary event to each listed room. data
// is sent unchanged.
func (s *EmitterService) BroadcastToRooms(rooms []string, event domain.EventType, data any) {
	broadcaster, ok := s.registry(event)
	if !ok {
		return
	}
	broadcaster.PublishToMany(rooms, event, data)
}

func (s *EmitterService) registry(event domain.EventType) (ports.RoomBroadcaster, bool) {
	broadcaster, ok := s.locator.Locate()
	if !ok {
		s.logger.Warn("socket server not initialized, dropping event",
			"event_type", event,
		)
		return nil, false
	}
	return broadcaster, true
}

func (s *EmitterService) timestamp() time.Time {
	return s.now().UTC()
}

// changesAffectQueue reports whether an update moves the ticket in the
// technicians' work queue.
func changesAffectQueue(changes domain.Changes) bool {
	if _, ok := changes["status"]; ok {
		return true
	}
	_, ok := changes["assignedToId"]
	return ok
}

func cloneChanges(changes domain.Changes) domain.Changes {
	if changes == nil {
		return domain.Changes{}
	}
	return maps.Clone(changes)
}
