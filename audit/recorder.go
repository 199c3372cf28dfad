package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Recorder appends audit rows inside the caller's transaction. If the
// surrounding transaction rolls back, the entry vanishes with it.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Append inserts one audit row. TenantID, Action, and TargetTable are required.
func (r *Recorder) Append(ctx context.Context, tx pgx.Tx, entry Entry) error {
	if entry.TenantID == "" {
		return fmt.Errorf("audit: missing tenant id")
	}
	if entry.Action == "" || entry.TargetTable == "" {
		return fmt.Errorf("audit: missing action or target table")
	}

	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}

	var actorUser any
	if entry.ActorUserID != nil && *entry.ActorUserID != "" {
		actorUser = *entry.ActorUserID
	}
	var actorRole any
	if entry.ActorRole != "" {
		actorRole = entry.ActorRole
	}
	var targetID any
	if entry.TargetID != "" {
		targetID = entry.TargetID
	}

	const query = `
		INSERT INTO audit_logs (tenant_id, actor_user_id, actor_role, action, target_table, target_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	`

	if _, err := tx.Exec(ctx, query, entry.TenantID, actorUser, actorRole, entry.Action, entry.TargetTable, targetID, body); err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}
