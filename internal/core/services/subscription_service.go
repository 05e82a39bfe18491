package services

import (
	"log/slog"
	"strings"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// SubscriptionService lets a connection follow a ticket's room regardless
// of its identity. Access control is enforced by the REST layer that hands
// out ticket ids, not here.
type SubscriptionService struct {
	membership ports.RoomMembership
	logger     *slog.Logger
}

var _ ports.SubscriptionService = (*SubscriptionService)(nil)

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(membership ports.RoomMembership, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		membership: membership,
		logger:     logger.With("component", "subscriptions"),
	}
}

// SubscribeTicket joins the connection to ticket:<ticketID>.
func (s *SubscriptionService) SubscribeTicket(connectionID, ticketID string) error {
	if strings.TrimSpace(ticketID) == "" {
		return apperrors.ErrTicketIDRequired
	}

	s.membership.Join(connectionID, domain.TicketRoom(ticketID))

	s.logger.Debug("client subscribed to ticket",
		"connection_id", connectionID,
		"ticket_id", ticketID,
	)
	return nil
}

// UnsubscribeTicket removes the connection from ticket:<ticketID>.
func (s *SubscriptionService) UnsubscribeTicket(connectionID, ticketID string) error {
	if strings.TrimSpace(ticketID) == "" {
		return apperrors.ErrTicketIDRequired
	}

	s.membership.Leave(connectionID, domain.TicketRoom(ticketID))

	s.logger.Debug("client unsubscribed from ticket",
		"connection_id", connectionID,
		"ticket_id", ticketID,
	)
	return nil
}
