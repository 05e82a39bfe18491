package websocket

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/core/services"
)

// Transport is the HTTP surface the socket server mounts on. chi.Router
// and http.ServeMux both satisfy it.
type Transport interface {
	Handle(pattern string, handler http.Handler)
}

// Gateway owns the process-wide socket server. Until InitializeSocketServer
// runs, Registry returns nil and Locate reports false, so emitters can skip
// delivery instead of failing.
type Gateway struct {
	opts     Options
	resolver ports.RoomResolver
	base     *slog.Logger
	logger   *slog.Logger

	initMu sync.Mutex
	hub    atomic.Pointer[Hub]
}

var _ ports.RegistryLocator = (*Gateway)(nil)

// NewGateway creates a gateway that has not started its socket server.
func NewGateway(opts Options, resolver ports.RoomResolver, logger *slog.Logger) *Gateway {
	return &Gateway{
		opts:     opts,
		resolver: resolver,
		base:     logger,
		logger:   logger.With("component", "socket_gateway"),
	}
}

// InitializeSocketServer creates the hub and mounts the upgrade handler on
// transport. It runs once; later calls return the existing hub together
// with ErrSocketAlreadyStarted.
func (g *Gateway) InitializeSocketServer(transport Transport) (*Hub, error) {
	g.initMu.Lock()
	defer g.initMu.Unlock()

	if hub := g.hub.Load(); hub != nil {
		g.logger.Warn("socket server already initialized")
		return hub, apperrors.ErrSocketAlreadyStarted
	}

	hub := NewHub(g.resolver, g.base)
	subscriptions := services.NewSubscriptionService(hub, g.base)
	transport.Handle(g.opts.Path, NewHandler(hub, subscriptions, g.opts, g.base))

	g.hub.Store(hub)
	g.logger.Info("socket server initialized", "path", g.opts.Path)
	return hub, nil
}

// Registry returns the hub, or nil before initialization.
func (g *Gateway) Registry() *Hub {
	return g.hub.Load()
}

// Locate implements ports.RegistryLocator.
func (g *Gateway) Locate() (ports.RoomBroadcaster, bool) {
	hub := g.hub.Load()
	if hub == nil {
		return nil, false
	}
	return hub, true
}

// Initialized reports whether the socket server is running.
func (g *Gateway) Initialized() bool {
	return g.hub.Load() != nil
}

// ConnectedClientsCount returns the number of live connections, or 0
// before initialization.
func (g *Gateway) ConnectedClientsCount() int {
	hub := g.hub.Load()
	if hub == nil {
		return 0
	}
	return hub.ClientCount()
}

// RoomsInfo returns room name -> sorted connection IDs. It is empty before
// initialization.
func (g *Gateway) RoomsInfo() map[string][]string {
	hub := g.hub.Load()
	if hub == nil {
		return map[string][]string{}
	}
	return hub.RoomsInfo()
}

// Shutdown disconnects every client if the server was started.
func (g *Gateway) Shutdown() {
	if hub := g.hub.Load(); hub != nil {
		hub.Shutdown()
	}
}
