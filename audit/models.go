package audit

import "time"

// Actor roles recorded against entries.
const (
	RoleUser     = "user"
	RoleSystem   = "system"
	RoleOperator = "operator"
)

// Action names shared across the engine.
const (
	ActionClaim          = "claim"
	ActionCancel         = "cancel"
	ActionProjectCreate  = "project_create"
	ActionJobPostCreate  = "job_post_create"
	ActionJobPostPublish = "job_post_publish"
	ActionOutboxRequeue  = "outbox_requeue"
)

// Entry is one immutable audit row. Rows only ever come into existence
// inside the transaction that performed the change they describe.
type Entry struct {
	ID          int64
	TenantID    string
	ActorUserID *string
	ActorRole   string
	Action      string
	TargetTable string
	TargetID    string
	Payload     map[string]any
	CreatedAt   time.Time
}
