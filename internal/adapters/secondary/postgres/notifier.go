package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type txContextKey struct{}

// ContextWithTx returns a new context carrying tx.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves a transaction from the context.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// Notifier publishes realtime events through realtime_notify. Inside
// WithTransaction the notification is queued by PostgreSQL and only
// delivered when the transaction commits.
type Notifier struct {
	pool    *pgxpool.Pool
	channel string
}

// NewNotifier creates a notifier for channel.
func NewNotifier(pool *pgxpool.Pool, channel string) *Notifier {
	return &Notifier{pool: pool, channel: channel}
}

// Notify sends kind and data on the notifier's channel, using the
// transaction stored in ctx when there is one.
func (n *Notifier) Notify(ctx context.Context, kind string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	var db DBTX = n.pool
	if tx, ok := TxFromContext(ctx); ok {
		db = tx
	}

	if _, err := db.Exec(ctx, "SELECT realtime_notify($1, $2::jsonb, $3)", kind, string(raw), n.channel); err != nil {
		return fmt.Errorf("failed to notify %s: %w", kind, err)
	}
	return nil
}

// WithTransaction runs fn inside a transaction whose context carries the
// transaction, so Notify calls made by fn are delivered on commit only.
func (n *Notifier) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := n.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ContextWithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx failed: %v, rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
