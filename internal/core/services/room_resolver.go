package services

import (
	"strings"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// RoomResolver derives the identity rooms a connection joins at handshake.
type RoomResolver struct{}

var _ ports.RoomResolver = (*RoomResolver)(nil)

// NewRoomResolver creates a new room resolver.
func NewRoomResolver() *RoomResolver {
	return &RoomResolver{}
}

// ResolveRooms returns the user room, then the role, branch and
// technicians rooms where they apply. An identity without a user ID is
// rejected and yields no rooms.
func (r *RoomResolver) ResolveRooms(identity domain.Identity) ([]string, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return nil, apperrors.ErrUserIDRequired
	}

	rooms := make([]string, 0, 4)
	rooms = append(rooms, domain.UserRoom(identity.UserID))

	if identity.Role != "" {
		rooms = append(rooms, domain.RoleRoom(identity.Role))
	}

	if identity.BranchID != "" {
		rooms = append(rooms, domain.BranchRoom(identity.BranchID))
	}

	if domain.IsPrivilegedRole(identity.Role) {
		rooms = append(rooms, domain.TechniciansRoom)
	}

	return rooms, nil
}
