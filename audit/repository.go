package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Repository provides read access to audit entries for the admin surface.
// Reads run inside a tenant transaction so the row policies apply.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// ListByTenant returns the newest entries for a tenant, capped at limit.
func (r *Repository) ListByTenant(ctx context.Context, tx pgx.Tx, tenantID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	const query = `
		SELECT id, tenant_id, actor_user_id, actor_role, action, target_table, target_id, payload, created_at
		FROM audit_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := tx.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list by tenant: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}

	return entries, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		entry     Entry
		actorUser sql.NullString
		actorRole sql.NullString
		targetID  sql.NullString
		payload   []byte
	)
	err := row.Scan(
		&entry.ID,
		&entry.TenantID,
		&actorUser,
		&actorRole,
		&entry.Action,
		&entry.TargetTable,
		&targetID,
		&payload,
		&entry.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: scan entry: %w", err)
	}

	if actorUser.Valid {
		entry.ActorUserID = &actorUser.String
	}
	entry.ActorRole = actorRole.String
	entry.TargetID = targetID.String

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &entry.Payload); err != nil {
			return Entry{}, fmt.Errorf("audit: unmarshal payload: %w", err)
		}
	}

	return entry, nil
}
