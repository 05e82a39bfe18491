package mocks

import (
	"encoding/json"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockRoomBroadcaster is a mock implementation of ports.RoomBroadcaster
type MockRoomBroadcaster struct {
	mock.Mock
}

func NewMockRoomBroadcaster() *MockRoomBroadcaster {
	return &MockRoomBroadcaster{}
}

func (m *MockRoomBroadcaster) Publish(room string, eventName domain.EventType, payload any) {
	m.Called(room, eventName, payload)
}

func (m *MockRoomBroadcaster) PublishToMany(rooms []string, eventName domain.EventType, payload any) {
	m.Called(rooms, eventName, payload)
}

// MockRegistryLocator is a mock implementation of ports.RegistryLocator
type MockRegistryLocator struct {
	mock.Mock
}

func NewMockRegistryLocator() *MockRegistryLocator {
	return &MockRegistryLocator{}
}

func (m *MockRegistryLocator) Locate() (ports.RoomBroadcaster, bool) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(ports.RoomBroadcaster), args.Bool(1)
}

// MockRoomMembership is a mock implementation of ports.RoomMembership
type MockRoomMembership struct {
	mock.Mock
}

func NewMockRoomMembership() *MockRoomMembership {
	return &MockRoomMembership{}
}

func (m *MockRoomMembership) Join(connectionID, room string) {
	m.Called(connectionID, room)
}

func (m *MockRoomMembership) Leave(connectionID, room string) {
	m.Called(connectionID, room)
}

// MockEventEmitter is a mock implementation of ports.EventEmitter
type MockEventEmitter struct {
	mock.Mock
}

func NewMockEventEmitter() *MockEventEmitter {
	return &MockEventEmitter{}
}

func (m *MockEventEmitter) EmitTicketCreated(ticket ports.CreateTicketEventParams) {
	m.Called(ticket)
}

func (m *MockEventEmitter) EmitTicketUpdated(ticketID string, changes domain.Changes, updatedBy string) {
	m.Called(ticketID, changes, updatedBy)
}

func (m *MockEventEmitter) EmitTicketAssigned(ticketID, assignedToID, assignedBy string) {
	m.Called(ticketID, assignedToID, assignedBy)
}

func (m *MockEventEmitter) EmitTicketCommented(ticketID string, comment json.RawMessage) {
	m.Called(ticketID, comment)
}

func (m *MockEventEmitter) EmitTicketStatusChanged(ticketID, oldStatus, newStatus, changedBy string) {
	m.Called(ticketID, oldStatus, newStatus, changedBy)
}

func (m *MockEventEmitter) EmitBatchTicketUpdate(ticketIDs []string, changes domain.Changes, updatedBy string) {
	m.Called(ticketIDs, changes, updatedBy)
}

func (m *MockEventEmitter) BroadcastToRooms(rooms []string, event domain.EventType, data any) {
	m.Called(rooms, event, data)
}
