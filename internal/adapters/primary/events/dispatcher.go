package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lorrc/service-desk-realtime/internal/adapters/primary/validation"
	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// KindBroadcast is the generic room broadcast signal.
const KindBroadcast = "broadcast"

// Dispatcher turns "an event happened" signals from collaborators into
// Emitter API calls. Signals arrive as a kind plus a JSON body, either over
// HTTP or via Postgres NOTIFY.
type Dispatcher struct {
	emitter  ports.EventEmitter
	logger   *slog.Logger
	handlers map[string]func(data []byte) error
}

// NewDispatcher creates a dispatcher bound to emitter.
func NewDispatcher(emitter ports.EventEmitter, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		emitter: emitter,
		logger:  logger.With("component", "event_dispatcher"),
	}

	d.handlers = map[string]func([]byte) error{
		string(domain.EventTicketCreated):       d.ticketCreated,
		string(domain.EventTicketUpdated):       d.ticketUpdated,
		string(domain.EventTicketAssigned):      d.ticketAssigned,
		string(domain.EventTicketCommented):     d.ticketCommented,
		string(domain.EventTicketStatusChanged): d.ticketStatusChanged,
		string(domain.EventTicketsBatchUpdated): d.ticketsBatchUpdated,
		KindBroadcast:                           d.broadcast,
	}
	return d
}

// kindAliases maps URL-friendly kinds to event names.
var kindAliases = map[string]string{
	"ticket-created":        string(domain.EventTicketCreated),
	"ticket-updated":        string(domain.EventTicketUpdated),
	"ticket-assigned":       string(domain.EventTicketAssigned),
	"ticket-commented":      string(domain.EventTicketCommented),
	"ticket-status-changed": string(domain.EventTicketStatusChanged),
	"tickets-batch-updated": string(domain.EventTicketsBatchUpdated),
}

// NormalizeKind resolves a URL alias to its event name.
func NormalizeKind(kind string) string {
	if canonical, ok := kindAliases[kind]; ok {
		return canonical
	}
	return kind
}

// Kinds lists the accepted kinds in canonical form.
func (d *Dispatcher) Kinds() []string {
	kinds := make([]string, 0, len(d.handlers))
	for kind := range d.handlers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Dispatch decodes data for kind and forwards it to the emitter. Unknown
// kinds return ErrUnknownEventKind; bad bodies return a bad request or
// validation error. Emission itself never fails.
func (d *Dispatcher) Dispatch(kind string, data []byte) error {
	handler, ok := d.handlers[NormalizeKind(kind)]
	if !ok {
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownEventKind, kind)
	}

	if err := handler(data); err != nil {
		return err
	}

	d.logger.Debug("event dispatched", "kind", NormalizeKind(kind))
	return nil
}

// Envelope is the NOTIFY payload shape: {"kind": "...", "data": {...}}.
type Envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// DispatchEnvelope decodes an Envelope and dispatches it.
func (d *Dispatcher) DispatchEnvelope(payload []byte) error {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return apperrors.NewBadRequestError(fmt.Errorf("%w: %v", apperrors.ErrInvalidEventPayload, err), "Invalid event envelope")
	}
	if env.Kind == "" {
		return apperrors.NewBadRequestError(apperrors.ErrInvalidEventPayload, "Event kind is required")
	}
	return d.Dispatch(env.Kind, bytes.TrimSpace(env.Data))
}

func (d *Dispatcher) ticketCreated(data []byte) error {
	req, err := validation.Decode[TicketCreatedRequest](data)
	if err != nil {
		return err
	}
	d.emitter.EmitTicketCreated(ports.CreateTicketEventParams{
		ID:           req.ID,
		TicketNumber: req.TicketNumber,
		Title:        req.Title,
		Status:       req.Status,
		Priority:     req.Priority,
		CreatedBy:    req.CreatedBy,
		BranchID:     req.BranchID,
	})
	return nil
}

func (d *Dispatcher) ticketUpdated(data []byte) error {
	req, err := validation.Decode[TicketUpdatedRequest](data)
	if err != nil {
		return err
	}
	d.emitter.EmitTicketUpdated(req.ID, req.Changes, req.UpdatedBy)
	return nil
}

func (d *Dispatcher) ticketAssigned(data []byte) error {
	req, err := validation.Decode[TicketAssignedRequest](data)
	if err != nil {
		return err
	}
	d.emitter.EmitTicketAssigned(req.TicketID, req.AssignedToID, req.AssignedBy)
	return nil
}

func (d *Dispatcher) ticketCommented(data []byte) error {
	req, err := validation.Decode[TicketCommentedRequest](data)
	if err != nil {
		return err
	}
	d.emitter.EmitTicketCommented(req.TicketID, req.Comment)
	return nil
}

func (d *Dispatcher) ticketStatusChanged(data []byte) error {
	req, err := validation.Decode[TicketStatusChangedRequest](data)
	if err != nil {
		return err
	}
	d.emitter.EmitTicketStatusChanged(req.TicketID, req.OldStatus, req.NewStatus, req.ChangedBy)
	return nil
}

func (d *Dispatcher) ticketsBatchUpdated(data []byte) error {
	req, err := validation.Decode[TicketsBatchUpdatedRequest](data)
	if err != nil {
		return err
	}
	d.emitter.EmitBatchTicketUpdate(req.TicketIDs, req.Changes, req.UpdatedBy)
	return nil
}

func (d *Dispatcher) broadcast(data []byte) error {
	req, err := validation.Decode[BroadcastRequest](data)
	if err != nil {
		return err
	}
	d.emitter.BroadcastToRooms(req.Rooms, domain.EventType(req.Event), req.Data)
	return nil
}
