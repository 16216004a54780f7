package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/three-sisters-oyster/api/internal/database"
)

const (
	defaultInterval  = 10 * time.Second
	defaultBatchSize = 20
	maxAttempts      = 8
	baseRetryDelay   = time.Minute
	maxRetryDelay    = time.Hour
	sendTimeout      = 30 * time.Second
)

// Sender delivers one kind of notification task.
type Sender interface {
	Kind() string
	Send(ctx context.Context, payload []byte) error
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OutboxStore defines the outbox methods the dispatcher needs.
// Satisfied by *database.Queries.
type OutboxStore interface {
	ListDueNotifications(ctx context.Context, limit int32) ([]database.Notification, error)
	MarkNotificationSent(ctx context.Context, id uuid.UUID) error
	RescheduleNotification(ctx context.Context, arg database.RescheduleNotificationParams) error
	MarkNotificationDead(ctx context.Context, arg database.MarkNotificationDeadParams) error
}

// NewOutboxStore creates an OutboxStore from a DBTX (pool or tx).
type NewOutboxStore func(db database.DBTX) OutboxStore

// Dispatcher drains the notifications outbox in the background. Tasks are
// claimed with row locks so several instances can run concurrently; a task
// that keeps failing is retried with exponential backoff and parked as dead
// after maxAttempts. Delivery is at-least-once: a crash between send and
// commit redelivers on the next pass.
type Dispatcher struct {
	pool     TxBeginner
	newStore NewOutboxStore
	senders  map[string]Sender
	interval time.Duration
}

func NewDispatcher(pool TxBeginner, newStore NewOutboxStore, senders ...Sender) *Dispatcher {
	byKind := make(map[string]Sender, len(senders))
	for _, s := range senders {
		byKind[s.Kind()] = s
	}
	return &Dispatcher{
		pool:     pool,
		newStore: newStore,
		senders:  byKind,
		interval: defaultInterval,
	}
}

// Run processes the outbox until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				log.Printf("ERROR: notification dispatch pass: %v", err)
			}
		}
	}
}

// RunOnce claims and processes one batch of due tasks. Returns the number
// of tasks handled.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := d.newStore(tx)

	due, err := store.ListDueNotifications(ctx, defaultBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due notifications: %w", err)
	}

	for _, n := range due {
		d.deliver(ctx, store, n)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(due), nil
}

// deliver attempts one task and records the outcome. Delivery failures are
// a best-effort side channel: they are logged and rescheduled, never
// propagated.
func (d *Dispatcher) deliver(ctx context.Context, store OutboxStore, n database.Notification) {
	sender, ok := d.senders[n.Kind]
	if !ok {
		log.Printf("ERROR: no sender for notification kind %q, parking %s", n.Kind, n.ID)
		if err := store.MarkNotificationDead(ctx, database.MarkNotificationDeadParams{
			ID:        n.ID,
			LastError: "no sender configured",
		}); err != nil {
			log.Printf("ERROR: mark notification dead: %v", err)
		}
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	sendErr := sender.Send(sendCtx, n.Payload)
	cancel()

	if sendErr == nil {
		if err := store.MarkNotificationSent(ctx, n.ID); err != nil {
			log.Printf("ERROR: mark notification sent: %v", err)
		}
		return
	}

	log.Printf("ERROR: deliver %s notification %s (attempt %d): %v", n.Kind, n.ID, n.Attempts+1, sendErr)

	if n.Attempts+1 >= maxAttempts {
		if err := store.MarkNotificationDead(ctx, database.MarkNotificationDeadParams{
			ID:        n.ID,
			LastError: sendErr.Error(),
		}); err != nil {
			log.Printf("ERROR: mark notification dead: %v", err)
		}
		return
	}

	if err := store.RescheduleNotification(ctx, database.RescheduleNotificationParams{
		ID:            n.ID,
		NextAttemptAt: time.Now().Add(retryDelay(n.Attempts)),
		LastError:     sendErr.Error(),
	}); err != nil {
		log.Printf("ERROR: reschedule notification: %v", err)
	}
}

// retryDelay doubles per attempt: 1m, 2m, 4m, ... capped at an hour.
func retryDelay(attempts int32) time.Duration {
	delay := baseRetryDelay
	for i := int32(0); i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
