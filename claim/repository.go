package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Internal race markers. The service turns these into taxonomy errors
// after the discriminating re-read.
var (
	errSlotNotAvailable = errors.New("claim: slot not available")
	errRequestIDTaken   = errors.New("claim: request id taken")
)

// Store is the data access the engine needs. Every method takes the
// caller's transaction and an explicit tenant id; queries carry the tenant
// predicate on top of the row policies.
type Store interface {
	GetClaimByRequestID(ctx context.Context, tx pgx.Tx, tenantID, requestID string) (Claim, error)
	GetSlot(ctx context.Context, tx pgx.Tx, tenantID, slotID string) (Slot, error)
	GetSlotWithClaim(ctx context.Context, tx pgx.Tx, tenantID, slotID string) (Slot, *Claim, error)
	ClaimSlot(ctx context.Context, tx pgx.Tx, tenantID, slotID, companyID string, userID *string) (Slot, error)
	InsertClaim(ctx context.Context, tx pgx.Tx, c Claim) (Claim, error)
	CancelSlot(ctx context.Context, tx pgx.Tx, tenantID, slotID, reason string) (Slot, error)
	Alternatives(ctx context.Context, tx pgx.Tx, tenantID string, origin Slot, days int) ([]Alternative, error)
	GetDWProjectID(ctx context.Context, tx pgx.Tx, tenantID, jobPostID string) (*string, error)
	GetTenantMode(ctx context.Context, tx pgx.Tx, tenantID string) (string, error)
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const slotColumns = `id, tenant_id, job_post_id, work_date, slot_no, status, claimed_by_company, claimed_by_user, claimed_at, cancelled_at, cancel_reason, created_at`

// GetClaimByRequestID is the idempotency probe.
func (r *Repository) GetClaimByRequestID(ctx context.Context, tx pgx.Tx, tenantID, requestID string) (Claim, error) {
	const query = `
		SELECT id, tenant_id, slot_id, company_id, user_id, request_id, claimed_at
		FROM claims
		WHERE request_id = $1 AND tenant_id = $2
	`

	c, err := scanClaim(tx.QueryRow(ctx, query, requestID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrNotFound
		}
		return Claim{}, fmt.Errorf("claim: query by request id: %w", err)
	}
	return c, nil
}

func (r *Repository) GetSlot(ctx context.Context, tx pgx.Tx, tenantID, slotID string) (Slot, error) {
	const query = `
		SELECT ` + slotColumns + `
		FROM job_slots
		WHERE id = $1 AND tenant_id = $2
	`

	slot, err := scanSlot(tx.QueryRow(ctx, query, slotID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Slot{}, ErrNotFound
		}
		return Slot{}, fmt.Errorf("claim: query slot: %w", err)
	}
	return slot, nil
}

// GetSlotWithClaim reads a slot and its claim row, if any.
func (r *Repository) GetSlotWithClaim(ctx context.Context, tx pgx.Tx, tenantID, slotID string) (Slot, *Claim, error) {
	const query = `
		SELECT s.id, s.tenant_id, s.job_post_id, s.work_date, s.slot_no, s.status,
		       s.claimed_by_company, s.claimed_by_user, s.claimed_at, s.cancelled_at, s.cancel_reason, s.created_at,
		       c.id, c.company_id, c.user_id, c.request_id, c.claimed_at
		FROM job_slots s
		LEFT JOIN claims c ON c.slot_id = s.id
		WHERE s.id = $1 AND s.tenant_id = $2
	`

	var (
		slot           Slot
		claimID        sql.NullString
		claimCompany   sql.NullString
		claimUser      sql.NullString
		claimRequestID sql.NullString
		claimedAt      sql.NullTime
	)
	err := tx.QueryRow(ctx, query, slotID, tenantID).Scan(
		&slot.ID,
		&slot.TenantID,
		&slot.JobPostID,
		&slot.WorkDate,
		&slot.SlotNo,
		&slot.Status,
		&slot.ClaimedByCompany,
		&slot.ClaimedByUser,
		&slot.ClaimedAt,
		&slot.CancelledAt,
		&slot.CancelReason,
		&slot.CreatedAt,
		&claimID,
		&claimCompany,
		&claimUser,
		&claimRequestID,
		&claimedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Slot{}, nil, ErrNotFound
		}
		return Slot{}, nil, fmt.Errorf("claim: query slot with claim: %w", err)
	}

	if !claimID.Valid {
		return slot, nil, nil
	}
	c := &Claim{
		ID:        claimID.String,
		TenantID:  slot.TenantID,
		SlotID:    slot.ID,
		CompanyID: claimCompany.String,
		RequestID: claimRequestID.String,
		ClaimedAt: claimedAt.Time,
	}
	if claimUser.Valid {
		c.UserID = &claimUser.String
	}
	return slot, c, nil
}

// ClaimSlot is the FCFS compare-and-set. The storage engine serializes
// concurrent updates on the row, so at most one caller observes
// status = 'available'. Zero rows means somebody else got there first, or
// the slot does not exist for this tenant.
func (r *Repository) ClaimSlot(ctx context.Context, tx pgx.Tx, tenantID, slotID, companyID string, userID *string) (Slot, error) {
	const query = `
		UPDATE job_slots
		SET status = 'claimed',
		    claimed_by_company = $3,
		    claimed_by_user = $4,
		    claimed_at = get_tx_timestamp()
		WHERE id = $1 AND tenant_id = $2 AND status = 'available'
		RETURNING ` + slotColumns + `
	`

	slot, err := scanSlot(tx.QueryRow(ctx, query, slotID, tenantID, companyID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Slot{}, errSlotNotAvailable
		}
		return Slot{}, fmt.Errorf("claim: conditional claim update: %w", err)
	}
	return slot, nil
}

// InsertClaim records the won race. Unique violations are classified by
// constraint: a request_id collision means a concurrent sibling carried the
// same idempotency key, a slot_id collision means the slot already has a
// claim despite the CAS.
func (r *Repository) InsertClaim(ctx context.Context, tx pgx.Tx, c Claim) (Claim, error) {
	const query = `
		INSERT INTO claims (id, tenant_id, slot_id, company_id, user_id, request_id, claimed_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, get_tx_timestamp())
		RETURNING id, tenant_id, slot_id, company_id, user_id, request_id, claimed_at
	`

	created, err := scanClaim(tx.QueryRow(ctx, query, c.ID, c.TenantID, c.SlotID, c.CompanyID, c.UserID, c.RequestID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "claims_request_id_key":
				return Claim{}, errRequestIDTaken
			case "claims_slot_id_key":
				return Claim{}, ErrAlreadyClaimed
			}
		}
		return Claim{}, fmt.Errorf("claim: insert claim: %w", err)
	}
	return created, nil
}

// CancelSlot is the conditional claimed→cancelled transition. Zero rows
// means a racing cancel won between the classify read and this update.
func (r *Repository) CancelSlot(ctx context.Context, tx pgx.Tx, tenantID, slotID, reason string) (Slot, error) {
	const query = `
		UPDATE job_slots
		SET status = 'cancelled',
		    cancelled_at = get_tx_timestamp(),
		    cancel_reason = $3
		WHERE id = $1 AND tenant_id = $2 AND status = 'claimed'
		RETURNING ` + slotColumns + `
	`

	slot, err := scanSlot(tx.QueryRow(ctx, query, slotID, tenantID, reason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Slot{}, ErrCancelFailed
		}
		return Slot{}, fmt.Errorf("claim: conditional cancel update: %w", err)
	}
	return slot, nil
}

// Alternatives finds up to three available slots in the origin's project
// and trade within ±days of its work date, nearest dates first.
func (r *Repository) Alternatives(ctx context.Context, tx pgx.Tx, tenantID string, origin Slot, days int) ([]Alternative, error) {
	const query = `
		SELECT s.id, s.work_date, jp.id, jp.title, jp.trade
		FROM job_slots s
		JOIN job_posts jp ON jp.id = s.job_post_id
		JOIN job_posts origin_post ON origin_post.id = $2
		WHERE jp.project_id = origin_post.project_id
		  AND jp.trade = origin_post.trade
		  AND s.tenant_id = $1
		  AND s.status = 'available'
		  AND s.id <> $3
		  AND s.work_date BETWEEN $4 AND $5
		ORDER BY s.work_date ASC, s.created_at DESC
		LIMIT 3
	`

	minDate := origin.WorkDate.AddDate(0, 0, -days)
	maxDate := origin.WorkDate.AddDate(0, 0, days)

	rows, err := tx.Query(ctx, query, tenantID, origin.JobPostID, origin.ID, minDate, maxDate)
	if err != nil {
		return nil, fmt.Errorf("claim: query alternatives: %w", err)
	}
	defer rows.Close()

	alternatives := []Alternative{}
	for rows.Next() {
		var alt Alternative
		if err := rows.Scan(&alt.SlotID, &alt.WorkDate, &alt.JobPost.ID, &alt.JobPost.Title, &alt.JobPost.Trade); err != nil {
			return nil, fmt.Errorf("claim: scan alternative: %w", err)
		}
		alternatives = append(alternatives, alt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: iterate alternatives: %w", err)
	}

	return alternatives, nil
}

// GetDWProjectID fetches the external project reference for event payloads.
func (r *Repository) GetDWProjectID(ctx context.Context, tx pgx.Tx, tenantID, jobPostID string) (*string, error) {
	const query = `
		SELECT p.dw_project_id
		FROM job_posts jp
		JOIN projects p ON p.id = jp.project_id
		WHERE jp.id = $1 AND jp.tenant_id = $2
	`

	var dwProjectID *string
	if err := tx.QueryRow(ctx, query, jobPostID, tenantID).Scan(&dwProjectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("claim: query dw project id: %w", err)
	}
	return dwProjectID, nil
}

// GetTenantMode reads the tenant's integration mode; it decides the
// delivery target recorded on outbox events.
func (r *Repository) GetTenantMode(ctx context.Context, tx pgx.Tx, tenantID string) (string, error) {
	const query = `SELECT integration_mode FROM tenants WHERE id = $1`

	var mode string
	if err := tx.QueryRow(ctx, query, tenantID).Scan(&mode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("claim: query tenant mode: %w", err)
	}
	return mode, nil
}

func scanSlot(row pgx.Row) (Slot, error) {
	var slot Slot
	return slot, row.Scan(
		&slot.ID,
		&slot.TenantID,
		&slot.JobPostID,
		&slot.WorkDate,
		&slot.SlotNo,
		&slot.Status,
		&slot.ClaimedByCompany,
		&slot.ClaimedByUser,
		&slot.ClaimedAt,
		&slot.CancelledAt,
		&slot.CancelReason,
		&slot.CreatedAt,
	)
}

func scanClaim(row pgx.Row) (Claim, error) {
	var c Claim
	return c, row.Scan(
		&c.ID,
		&c.TenantID,
		&c.SlotID,
		&c.CompanyID,
		&c.UserID,
		&c.RequestID,
		&c.ClaimedAt,
	)
}
