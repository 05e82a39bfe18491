package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RealtimeStats exposes registry introspection.
type RealtimeStats interface {
	SocketStatus
	RoomsInfo() map[string][]string
}

// RealtimeHandler serves diagnostics about live connections.
type RealtimeHandler struct {
	stats RealtimeStats
}

func NewRealtimeHandler(stats RealtimeStats) *RealtimeHandler {
	return &RealtimeHandler{stats: stats}
}

// StatsResponse summarizes the registry.
type StatsResponse struct {
	Initialized      bool `json:"initialized"`
	ConnectedClients int  `json:"connectedClients"`
	Rooms            int  `json:"rooms"`
}

// RoomsResponse maps room names to member connection IDs.
type RoomsResponse struct {
	Rooms map[string][]string `json:"rooms"`
}

func (h *RealtimeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.HandleStats)
	r.Get("/rooms", h.HandleRooms)
}

func (h *RealtimeHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, StatsResponse{
		Initialized:      h.stats.Initialized(),
		ConnectedClients: h.stats.ConnectedClientsCount(),
		Rooms:            len(h.stats.RoomsInfo()),
	})
}

func (h *RealtimeHandler) HandleRooms(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, RoomsResponse{Rooms: h.stats.RoomsInfo()})
}
