package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("outbox: event not found")
	ErrNotParked = errors.New("outbox: event not parked")
)

// leaseDuration bounds how long a leased event stays invisible to other
// dispatcher instances. A worker that dies mid-batch loses its lease and
// the events resurface, so delivery stays at-least-once.
const leaseDuration = 5 * time.Minute

// Repository owns outbox rows. Leasing runs in its own transaction; the
// per-event updates after delivery each run as single statements so a
// half-delivered batch never holds locks across network I/O.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, event_id, event_name, target, payload, status, retry_count, next_attempt_at, last_error, created_at, sent_at`

// LeaseBatch selects up to batchSize due pending events, pushes their
// next_attempt_at forward as an in-flight lease, and commits before any
// delivery is attempted. Skip-locked selection lets several dispatchers
// run side by side without doubling up on a batch.
func (r *Repository) LeaseBatch(ctx context.Context, batchSize int) ([]Event, error) {
	if batchSize <= 0 {
		batchSize = 20
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("outbox: begin lease tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const selectQuery = `
		SELECT ` + eventColumns + `
		FROM outbox_events
		WHERE status = 'pending' AND next_attempt_at <= now()
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, selectQuery, batchSize)
	if err != nil {
		return nil, fmt.Errorf("outbox: select batch: %w", err)
	}

	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}

	const leaseQuery = `
		UPDATE outbox_events
		SET next_attempt_at = now() + make_interval(secs => $2)
		WHERE id = ANY($1)
	`

	if _, err := tx.Exec(ctx, leaseQuery, ids, leaseDuration.Seconds()); err != nil {
		return nil, fmt.Errorf("outbox: lease batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("outbox: commit lease: %w", err)
	}
	return events, nil
}

// MarkSent finalizes a delivered event.
func (r *Repository) MarkSent(ctx context.Context, id int64) error {
	const query = `
		UPDATE outbox_events
		SET status = 'sent', sent_at = now(), last_error = NULL
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("outbox: mark sent: %w", err)
	}
	return nil
}

// ScheduleRetry records a failed attempt and when to try again. The status
// guard keeps a racing duplicate delivery from resurrecting a sent event.
func (r *Repository) ScheduleRetry(ctx context.Context, id int64, retryCount int, nextAttempt time.Time, lastError string) error {
	const query = `
		UPDATE outbox_events
		SET retry_count = $2, next_attempt_at = $3, last_error = $4
		WHERE id = $1 AND status <> 'sent'
	`
	if _, err := r.pool.Exec(ctx, query, id, retryCount, nextAttempt, truncateError(lastError)); err != nil {
		return fmt.Errorf("outbox: schedule retry: %w", err)
	}
	return nil
}

// Park moves an event to failed. Parked events are invisible to the
// dispatch loop until an operator requeues them.
func (r *Repository) Park(ctx context.Context, id int64, retryCount int, lastError string) error {
	const query = `
		UPDATE outbox_events
		SET status = 'failed', retry_count = $2, last_error = $3
		WHERE id = $1 AND status <> 'sent'
	`
	if _, err := r.pool.Exec(ctx, query, id, retryCount, truncateError(lastError)); err != nil {
		return fmt.Errorf("outbox: park event: %w", err)
	}
	return nil
}

// RequeueTx re-arms a parked event inside the caller's transaction. Zero
// rows means the event exists but is not parked, or does not exist at all.
func (r *Repository) RequeueTx(ctx context.Context, tx pgx.Tx, id int64, nextAttempt time.Time) (Event, error) {
	const query = `
		UPDATE outbox_events
		SET status = 'pending', retry_count = 0, next_attempt_at = $2, last_error = NULL
		WHERE id = $1 AND status = 'failed'
		RETURNING ` + eventColumns + `
	`

	event, err := scanEvent(tx.QueryRow(ctx, query, id, nextAttempt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.getByIDTx(ctx, tx, id); getErr != nil {
				return Event{}, getErr
			}
			return Event{}, ErrNotParked
		}
		return Event{}, fmt.Errorf("outbox: requeue event: %w", err)
	}
	return event, nil
}

// GetByID fetches one event.
func (r *Repository) GetByID(ctx context.Context, id int64) (Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM outbox_events WHERE id = $1`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("outbox: get event: %w", err)
	}
	return event, nil
}

func (r *Repository) getByIDTx(ctx context.Context, tx pgx.Tx, id int64) (Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM outbox_events WHERE id = $1`

	event, err := scanEvent(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("outbox: get event: %w", err)
	}
	return event, nil
}

// ListByStatus returns the newest events in a given status for the admin view.
func (r *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	const query = `
		SELECT ` + eventColumns + `
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: list by status: %w", err)
	}
	return collectEvents(rows)
}

// CountByStatus reports how many events sit in each status.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	const query = `SELECT status, COUNT(*) FROM outbox_events GROUP BY status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("outbox: count by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("outbox: scan count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate counts: %w", err)
	}
	return counts, nil
}

// DeleteSentBefore prunes delivered events older than the cutoff.
func (r *Repository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM outbox_events WHERE status = 'sent' AND sent_at < $1`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("outbox: delete sent: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("outbox: scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		event     Event
		lastError sql.NullString
		sentAt    sql.NullTime
	)
	err := row.Scan(
		&event.ID,
		&event.EventID,
		&event.EventName,
		&event.Target,
		&event.Payload,
		&event.Status,
		&event.RetryCount,
		&event.NextAttemptAt,
		&lastError,
		&event.CreatedAt,
		&sentAt,
	)
	if err != nil {
		return Event{}, err
	}
	if lastError.Valid {
		event.LastError = &lastError.String
	}
	if sentAt.Valid {
		event.SentAt = &sentAt.Time
	}
	return event, nil
}

// truncateError keeps captured response bodies to a sane column size.
func truncateError(msg string) string {
	const maxLen = 2000
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
