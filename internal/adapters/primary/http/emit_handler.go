package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/service-desk-realtime/internal/adapters/primary/validation"
)

// EventDispatcher forwards a collaborator signal to the Emitter API.
type EventDispatcher interface {
	Dispatch(kind string, data []byte) error
	Kinds() []string
}

// EmitHandler lets out-of-process collaborators trigger real-time events.
type EmitHandler struct {
	dispatcher   EventDispatcher
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewEmitHandler creates a new emit handler
func NewEmitHandler(dispatcher EventDispatcher, errorHandler *ErrorHandler, logger *slog.Logger) *EmitHandler {
	return &EmitHandler{
		dispatcher:   dispatcher,
		errorHandler: errorHandler,
		logger:       logger.With("component", "emit_handler"),
	}
}

// RegisterRoutes registers the emit routes
func (h *EmitHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListKinds)
	r.Post("/{kind}", h.HandleEmit)
}

// HandleEmit accepts an event signal. Delivery is best-effort, so the
// response is 202 whether or not anyone receives it.
func (h *EmitHandler) HandleEmit(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	body, err := validation.ReadBody(w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	if HandleError(w, r, h.dispatcher.Dispatch(kind, body), h.errorHandler) {
		return
	}

	h.logger.Debug("event accepted",
		"request_id", GetRequestID(r.Context()),
		"kind", kind,
	)
	WriteAccepted(w, "event accepted")
}

// HandleListKinds lists the accepted event kinds
func (h *EmitHandler) HandleListKinds(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.dispatcher.Kinds())
}
