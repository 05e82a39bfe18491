package domain

// Role names as issued by the service desk's authentication layer.
const (
	RoleUser            = "USER"
	RoleTechnician      = "TECHNICIAN"
	RoleManager         = "MANAGER"
	RoleAdmin           = "ADMIN"
	RoleSuperAdmin      = "SUPER_ADMIN"
	RoleSecurityAnalyst = "SECURITY_ANALYST"
)

// TechniciansRoom is joined by every connection holding a privileged role.
const TechniciansRoom = "technicians"

// Room name prefixes.
const (
	userRoomPrefix   = "user:"
	roleRoomPrefix   = "role:"
	branchRoomPrefix = "branch:"
	ticketRoomPrefix = "ticket:"
)

// privilegedRoles are the roles that see every ticket event through the
// technicians room.
var privilegedRoles = map[string]struct{}{
	RoleTechnician:      {},
	RoleAdmin:           {},
	RoleSuperAdmin:      {},
	RoleSecurityAnalyst: {},
}

// IsPrivilegedRole reports whether role joins the technicians room.
func IsPrivilegedRole(role string) bool {
	_, ok := privilegedRoles[role]
	return ok
}

// UserRoom returns the room every connection of userID joins.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// RoleRoom returns the room shared by all connections with the given role.
func RoleRoom(role string) string {
	return roleRoomPrefix + role
}

// BranchRoom returns the room shared by all connections of a branch.
func BranchRoom(branchID string) string {
	return branchRoomPrefix + branchID
}

// TicketRoom returns the per-ticket room joined through explicit subscription.
func TicketRoom(ticketID string) string {
	return ticketRoomPrefix + ticketID
}

// Identity is what a connection presents during the handshake. It is used
// only to derive room membership and is not retained afterwards.
type Identity struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	BranchID string `json:"branchId,omitempty"`
}
