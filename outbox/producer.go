package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Producer enqueues events inside the transaction that performs the state
// change they announce. An event only becomes visible to the dispatcher
// once that transaction commits.
type Producer struct {
	idGenerator func() string
	now         func() time.Time
}

func NewProducer() *Producer {
	return &Producer{
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (p *Producer) WithIDGenerator(gen func() string) *Producer {
	p.idGenerator = gen
	return p
}

func (p *Producer) WithClock(now func() time.Time) *Producer {
	p.now = now
	return p
}

// Enqueue wraps data in the versioned envelope and inserts it as a pending
// event, immediately eligible for delivery after commit.
func (p *Producer) Enqueue(ctx context.Context, tx pgx.Tx, eventName, target string, data EventData) (Event, error) {
	if eventName == "" {
		return Event{}, fmt.Errorf("outbox: missing event name")
	}
	if data.TenantID == "" {
		return Event{}, fmt.Errorf("outbox: missing tenant id in event data")
	}
	if target == "" {
		target = "standalone"
	}

	envelope := Envelope{
		Event:      eventName,
		Version:    EnvelopeVersion,
		ID:         p.idGenerator(),
		OccurredAt: p.now().UTC(),
		Producer:   ProducerName,
		Data:       data,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return Event{}, fmt.Errorf("outbox: marshal envelope: %w", err)
	}

	const query = `
		INSERT INTO outbox_events (event_id, event_name, target, payload)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, event_id, event_name, target, payload, status, retry_count, next_attempt_at, last_error, created_at, sent_at
	`

	event, err := scanEvent(tx.QueryRow(ctx, query, envelope.ID, eventName, target, body))
	if err != nil {
		return Event{}, fmt.Errorf("outbox: insert event: %w", err)
	}
	return event, nil
}
