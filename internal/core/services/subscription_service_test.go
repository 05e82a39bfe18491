package services_test

import (
	"io"
	"log/slog"
	"testing"

	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/mocks"
	"github.com/lorrc/service-desk-realtime/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("subscribe joins ticket room", func(t *testing.T) {
		membership := mocks.NewMockRoomMembership()
		svc := services.NewSubscriptionService(membership, logger)

		membership.On("Join", "conn-1", "ticket:T1").Once()

		require.NoError(t, svc.SubscribeTicket("conn-1", "T1"))
		membership.AssertExpectations(t)
	})

	t.Run("unsubscribe leaves ticket room", func(t *testing.T) {
		membership := mocks.NewMockRoomMembership()
		svc := services.NewSubscriptionService(membership, logger)

		membership.On("Leave", "conn-1", "ticket:T1").Once()

		require.NoError(t, svc.UnsubscribeTicket("conn-1", "T1"))
		membership.AssertExpectations(t)
	})

	t.Run("empty ticket id is rejected", func(t *testing.T) {
		membership := mocks.NewMockRoomMembership()
		svc := services.NewSubscriptionService(membership, logger)

		assert.ErrorIs(t, svc.SubscribeTicket("conn-1", ""), apperrors.ErrTicketIDRequired)
		assert.ErrorIs(t, svc.UnsubscribeTicket("conn-1", " "), apperrors.ErrTicketIDRequired)
		membership.AssertNotCalled(t, "Join")
		membership.AssertNotCalled(t, "Leave")
	})
}
