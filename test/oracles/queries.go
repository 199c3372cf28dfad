// Package oracles holds the invariant queries the stress test replays while
// the actors run. Any returned row is a violation.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"siteflow/db"
)

type Oracle struct {
	Name string
	SQL  string
}

// TenantScoped oracles run once per tenant inside a transaction that
// carries app.tenant_id; the row policies scope every table they touch to
// that tenant.
func TenantScoped() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_claim_per_claimed_slot",
			SQL: `SELECT s.id FROM job_slots s
                  LEFT JOIN claims c ON c.slot_id = s.id
                  WHERE s.status = 'claimed'
                  GROUP BY s.id HAVING COUNT(c.id) <> 1`,
		},
		{
			Name: "O2_available_slot_with_claim",
			SQL: `SELECT s.id FROM job_slots s
                  JOIN claims c ON c.slot_id = s.id
                  WHERE s.status = 'available'`,
		},
		{
			Name: "O3_cancelled_slot_lost_history",
			SQL: `SELECT s.id FROM job_slots s
                  WHERE s.status = 'cancelled'
                    AND NOT EXISTS (SELECT 1 FROM claims c WHERE c.slot_id = s.id)`,
		},
		{
			Name: "O4_claim_stamp_mismatch",
			SQL: `SELECT c.id FROM claims c
                  JOIN job_slots s ON s.id = c.slot_id
                  WHERE s.status = 'claimed' AND s.claimed_at IS DISTINCT FROM c.claimed_at`,
		},
		{
			Name: "O5_duplicate_request_id",
			SQL: `SELECT request_id FROM claims
                  GROUP BY request_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_foreign_rows_visible",
			SQL: `SELECT id::text FROM claims
                  WHERE tenant_id <> NULLIF(current_setting('app.tenant_id', true), '')::uuid
                  UNION ALL
                  SELECT id::text FROM job_slots
                  WHERE tenant_id <> NULLIF(current_setting('app.tenant_id', true), '')::uuid`,
		},
		{
			Name: "O7_claim_without_confirmed_event",
			SQL: `SELECT c.id FROM claims c
                  WHERE NOT EXISTS (
                      SELECT 1 FROM outbox_events e
                      WHERE e.event_name = 'claim.confirmed'
                        AND e.payload->'data'->'claim'->>'claim_id' = c.id::text)`,
		},
		{
			Name: "O8_cancel_without_cancelled_event",
			SQL: `SELECT s.id FROM job_slots s
                  WHERE s.status = 'cancelled'
                    AND NOT EXISTS (
                        SELECT 1 FROM outbox_events e
                        WHERE e.event_name = 'claim.cancelled'
                          AND e.payload->'data'->'slot'->>'slot_id' = s.id::text)`,
		},
		{
			Name: "O9_claim_without_audit",
			SQL: `SELECT c.id FROM claims c
                  WHERE NOT EXISTS (
                      SELECT 1 FROM audit_logs a
                      WHERE a.action = 'claim' AND a.target_id = c.slot_id::text)`,
		},
		{
			Name: "O10_cancelled_slot_shape",
			SQL: `SELECT id FROM job_slots
                  WHERE status = 'cancelled' AND (cancelled_at IS NULL OR cancel_reason IS NULL)`,
		},
	}
}

// System oracles see only tables without row policies and run directly on
// the pool.
func System() []Oracle {
	return []Oracle{
		{
			Name: "S1_sent_event_shape",
			SQL:  `SELECT id FROM outbox_events WHERE status = 'sent' AND sent_at IS NULL`,
		},
		{
			Name: "S2_parked_event_shape",
			SQL:  `SELECT id FROM outbox_events WHERE status = 'failed' AND last_error IS NULL`,
		},
		{
			Name: "S3_event_without_tenant",
			SQL:  `SELECT id FROM outbox_events WHERE payload->'data'->>'tenant_id' IS NULL`,
		},
	}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Run executes every oracle and returns the first failure as (name, sample
// row), or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool, tenantIDs []string) (string, string, error) {
	for _, o := range System() {
		row, ok, err := firstRow(ctx, pool, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if ok {
			return o.Name, row, nil
		}
	}

	for _, tenantID := range tenantIDs {
		for _, o := range TenantScoped() {
			var row string
			var ok bool
			err := db.RunInTenantTx(ctx, pool, tenantID, func(ctx context.Context, tx pgx.Tx) error {
				var err error
				row, ok, err = firstRow(ctx, tx, o.SQL)
				return err
			})
			if err != nil {
				return o.Name, "", fmt.Errorf("oracle %s (tenant %s): %w", o.Name, tenantID, err)
			}
			if ok {
				return o.Name, fmt.Sprintf("tenant %s: %s", tenantID, row), nil
			}
		}
	}
	return "", "", nil
}

func firstRow(ctx context.Context, q querier, sql string) (string, bool, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return "", false, rows.Err()
	}
	vals, err := rows.Values()
	if err != nil {
		return "", true, err
	}
	return fmt.Sprintf("%v", vals), true, nil
}
