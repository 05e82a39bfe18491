package websocket

import (
	"time"

	"github.com/lorrc/service-desk-realtime/internal/config"
)

// Options tunes the socket server.
type Options struct {
	Path            string
	AllowedOrigins  []string
	AllowAllOrigins bool // development only
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	MaxMessageSize  int64
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MessageRPS      float64
	MessageBurst    int
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Path:            "/api/v1/ws",
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		MaxMessageSize:  4096,
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MessageRPS:      20,
		MessageBurst:    40,
	}
}

// OptionsFromConfig maps application configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	ws := cfg.WebSocket
	return Options{
		Path:            ws.Path,
		AllowedOrigins:  ws.AllowedOrigins,
		AllowAllOrigins: cfg.IsDevelopment(),
		ReadBufferSize:  ws.ReadBufferSize,
		WriteBufferSize: ws.WriteBufferSize,
		SendBufferSize:  ws.SendBufferSize,
		MaxMessageSize:  ws.MaxMessageSize,
		PingInterval:    ws.PingInterval,
		PongWait:        ws.PongWait,
		WriteWait:       ws.WriteWait,
		MessageRPS:      ws.MessageRPS,
		MessageBurst:    ws.MessageBurst,
	}
}
