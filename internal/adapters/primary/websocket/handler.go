package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

// Handler upgrades HTTP requests to WebSocket connections and registers
// them with the hub. Identity is presented later with an authenticate
// message.
type Handler struct {
	hub           *Hub
	subscriptions ports.SubscriptionService
	opts          Options
	upgrader      websocket.Upgrader
	logger        *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, subscriptions ports.SubscriptionService, opts Options, logger *slog.Logger) *Handler {
	h := &Handler{
		hub:           hub,
		subscriptions: subscriptions,
		opts:          opts,
		logger:        logger.With("component", "websocket_handler"),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     h.makeOriginChecker(),
	}

	return h
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *Handler) makeOriginChecker() func(r *http.Request) bool {
	allowedOrigins := h.opts.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if h.opts.AllowAllOrigins {
			if origin != "" {
				h.logger.Debug("allowing websocket connection in development mode",
					"origin", origin,
					"remote_addr", r.RemoteAddr,
				)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		if originAllowed(parsedOrigin.Host, allowedOrigins) {
			return true
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// originAllowed matches host against exact entries and "*.example.com"
// wildcard entries.
func originAllowed(host string, allowedOrigins []string) bool {
	for _, allowed := range allowedOrigins {
		if strings.HasPrefix(allowed, "*.") {
			suffix := allowed[1:]
			if strings.HasSuffix(host, suffix) || host == allowed[2:] {
				return true
			}
		} else if host == allowed {
			return true
		}
	}
	return false
}

// ServeHTTP handles WebSocket connection requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		return
	}

	id := uuid.NewString()
	logger := logging.LoggerFromContext(logging.WithConnectionID(r.Context(), id), h.logger)

	client := newClient(id, h.hub, conn, h.subscriptions, h.opts, r.RemoteAddr, logger)
	h.hub.OnConnect(client)

	go client.writePump()
	go client.readPump()
}
