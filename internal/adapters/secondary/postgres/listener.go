package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
	unlistenTimeout   = 2 * time.Second
)

// EnvelopeSink receives raw notification payloads of the form
// {"kind": ..., "data": ...}.
type EnvelopeSink interface {
	DispatchEnvelope(payload []byte) error
}

// Listener forwards PostgreSQL notifications on a single channel to an
// EnvelopeSink. Collaborators call realtime_notify inside their own
// transaction, so an event only reaches sockets once its mutation commits.
type Listener struct {
	pool    *pgxpool.Pool
	channel string
	sink    EnvelopeSink
	logger  *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	ready     chan struct{}
	readyOnce sync.Once
}

// NewListener creates a listener for channel.
func NewListener(pool *pgxpool.Pool, channel string, sink EnvelopeSink, logger *slog.Logger) *Listener {
	return &Listener{
		pool:       pool,
		channel:    channel,
		sink:       sink,
		logger:     logger.With("component", "notify_listener", "channel", channel),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
		ready:      make(chan struct{}),
	}
}

// Ready is closed after the first successful LISTEN.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// Run listens until ctx is cancelled, reconnecting with capped exponential
// backoff when the connection drops. It returns nil on cancellation.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.minBackoff

	for {
		listening, err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info("notification listener stopped")
			return nil
		}
		if listening {
			backoff = l.minBackoff
		}

		l.logger.Warn("notification listener disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

// listen holds one dedicated connection for the lifetime of a LISTEN
// session. listening reports whether the LISTEN command succeeded.
func (l *Listener) listen(ctx context.Context) (listening bool, err error) {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire connection: %w", err)
	}
	// The connection leaves the pool so no other caller inherits the LISTEN.
	conn := pooled.Hijack()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), unlistenTimeout)
		defer cancel()
		if !conn.IsClosed() {
			if _, err := conn.Exec(closeCtx, "UNLISTEN *"); err != nil {
				l.logger.Debug("unlisten failed", "error", err)
			}
		}
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return false, fmt.Errorf("failed to listen on channel: %w", err)
	}
	l.logger.Info("listening for notifications")
	l.readyOnce.Do(func() { close(l.ready) })

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, fmt.Errorf("failed waiting for notification: %w", err)
		}

		if err := l.sink.DispatchEnvelope([]byte(notification.Payload)); err != nil {
			l.logger.Warn("discarding notification",
				"error", err,
				"pid", notification.PID,
				"bytes", len(notification.Payload),
			)
		}
	}
}
