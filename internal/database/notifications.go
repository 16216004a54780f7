package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const notificationColumns = `id, kind, order_id, payload, status, attempts, next_attempt_at, last_error, created_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.Kind,
		&n.OrderID,
		&n.Payload,
		&n.Status,
		&n.Attempts,
		&n.NextAttemptAt,
		&n.LastError,
		&n.CreatedAt,
	)
	return n, err
}

type EnqueueNotificationParams struct {
	Kind    string
	OrderID uuid.UUID
	Payload []byte
}

func (q *Queries) EnqueueNotification(ctx context.Context, arg EnqueueNotificationParams) (Notification, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO notifications (kind, order_id, payload, status, next_attempt_at)
		VALUES ($1, $2, $3, 'pending', now())
		RETURNING `+notificationColumns,
		arg.Kind, arg.OrderID, arg.Payload,
	)
	return scanNotification(row)
}

// ListDueNotifications claims a batch of deliverable tasks. SKIP LOCKED
// lets multiple dispatcher instances drain the outbox without stepping
// on each other; call inside a transaction.
func (q *Queries) ListDueNotifications(ctx context.Context, limit int32) ([]Notification, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = 'pending' AND next_attempt_at <= now()
		ORDER BY next_attempt_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (q *Queries) MarkNotificationSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE notifications SET status = 'sent', last_error = NULL WHERE id = $1`,
		id,
	)
	return err
}

type RescheduleNotificationParams struct {
	ID            uuid.UUID
	NextAttemptAt time.Time
	LastError     string
}

func (q *Queries) RescheduleNotification(ctx context.Context, arg RescheduleNotificationParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE notifications
		SET attempts = attempts + 1, next_attempt_at = $2, last_error = $3
		WHERE id = $1`,
		arg.ID, arg.NextAttemptAt, arg.LastError,
	)
	return err
}

type MarkNotificationDeadParams struct {
	ID        uuid.UUID
	LastError string
}

func (q *Queries) MarkNotificationDead(ctx context.Context, arg MarkNotificationDeadParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE notifications
		SET status = 'dead', attempts = attempts + 1, last_error = $2
		WHERE id = $1`,
		arg.ID, arg.LastError,
	)
	return err
}
