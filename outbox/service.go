package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"siteflow/audit"
	"siteflow/db"
)

// requeueBaseDelay is jittered ±10% so a bulk requeue does not stampede
// the target the moment it recovers.
const requeueBaseDelay = 60 * time.Second

// AuditWriter records operator actions inside the requeue transaction.
type AuditWriter interface {
	Append(ctx context.Context, tx pgx.Tx, entry audit.Entry) error
}

// AdminService backs the operator surface: inspecting the outbox and
// re-arming parked events.
type AdminService struct {
	pool   db.TxBeginner
	repo   *Repository
	audit  AuditWriter
	now    func() time.Time
	jitter func(time.Duration) time.Duration
}

func NewAdminService(pool db.TxBeginner, repo *Repository, auditWriter AuditWriter) *AdminService {
	return &AdminService{
		pool:  pool,
		repo:  repo,
		audit: auditWriter,
		now:   time.Now,
		jitter: func(base time.Duration) time.Duration {
			spread := 0.1 * float64(base)
			return base + time.Duration((rand.Float64()*2-1)*spread)
		},
	}
}

func (s *AdminService) WithClock(now func() time.Time) *AdminService {
	s.now = now
	return s
}

func (s *AdminService) WithJitter(jitter func(time.Duration) time.Duration) *AdminService {
	s.jitter = jitter
	return s
}

// ListEvents returns the newest events in one status.
func (s *AdminService) ListEvents(ctx context.Context, status string, limit int) ([]Event, error) {
	switch status {
	case StatusPending, StatusSent, StatusFailed:
	default:
		return nil, fmt.Errorf("outbox: unknown status %q", status)
	}
	return s.repo.ListByStatus(ctx, status, limit)
}

// GetEvent returns one event by its row id.
func (s *AdminService) GetEvent(ctx context.Context, id int64) (Event, error) {
	return s.repo.GetByID(ctx, id)
}

// Counts reports backlog sizes by status.
func (s *AdminService) Counts(ctx context.Context) (map[string]int64, error) {
	return s.repo.CountByStatus(ctx)
}

// Requeue re-arms a parked event: status back to pending, retry count
// cleared, next attempt jittered around one minute out. The operator
// action itself is audited in the same transaction.
func (s *AdminService) Requeue(ctx context.Context, id int64) (Event, error) {
	nextAttempt := s.now().Add(s.jitter(requeueBaseDelay))

	var requeued Event
	err := db.RunInTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		before, err := s.repo.getByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}

		event, err := s.repo.RequeueTx(ctx, tx, id, nextAttempt)
		if err != nil {
			return err
		}

		tenantID := tenantFromPayload(event.Payload)
		if tenantID == "" {
			return fmt.Errorf("outbox: event %d carries no tenant id", id)
		}
		if err := db.SetTenant(ctx, tx, tenantID); err != nil {
			return err
		}

		payload := map[string]any{
			"event_id":        event.EventID,
			"event_name":      event.EventName,
			"prior_retries":   before.RetryCount,
			"next_attempt_at": nextAttempt.UTC().Format(time.RFC3339),
		}
		if before.LastError != nil {
			payload["prior_error"] = *before.LastError
		}

		if s.audit != nil {
			entry := audit.Entry{
				TenantID:    tenantID,
				ActorRole:   audit.RoleOperator,
				Action:      audit.ActionOutboxRequeue,
				TargetTable: "outbox_events",
				TargetID:    strconv.FormatInt(event.ID, 10),
				Payload:     payload,
			}
			if err := s.audit.Append(ctx, tx, entry); err != nil {
				return fmt.Errorf("outbox: audit requeue: %w", err)
			}
		}

		requeued = event
		return nil
	})
	if err != nil {
		return Event{}, err
	}
	return requeued, nil
}

// tenantFromPayload digs data.tenant_id out of a stored envelope.
func tenantFromPayload(payload []byte) string {
	var envelope struct {
		Data struct {
			TenantID string `json:"tenant_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.Data.TenantID
}
