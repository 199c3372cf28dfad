package outbox

import "time"

// Event statuses. Pending events await delivery, sent events are done,
// failed events are parked until an operator requeues them.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Event names emitted by the claim engine.
const (
	EventClaimConfirmed = "claim.confirmed"
	EventClaimCancelled = "claim.cancelled"
)

// ProducerName identifies this system in every envelope.
const ProducerName = "fcfs-booking"

// EnvelopeVersion is bumped only on breaking payload changes.
const EnvelopeVersion = "1.0"

// Event is one row of the transactional outbox.
type Event struct {
	ID            int64
	EventID       string
	EventName     string
	Target        string
	Payload       []byte
	Status        string
	RetryCount    int
	NextAttemptAt time.Time
	LastError     *string
	CreatedAt     time.Time
	SentAt        *time.Time
}

// Envelope is the wire shape delivered to integration targets.
type Envelope struct {
	Event      string    `json:"event"`
	Version    string    `json:"version"`
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Producer   string    `json:"producer"`
	Data       EventData `json:"data"`
}

// EventData carries the booking facts. Cancel is present only on
// claim.cancelled events.
type EventData struct {
	DWProjectID *string    `json:"dw_project_id"`
	JobPost     JobPostRef `json:"job_post"`
	Slot        SlotRef    `json:"slot"`
	Claim       ClaimRef   `json:"claim"`
	Cancel      *CancelRef `json:"cancel,omitempty"`
	TenantID    string     `json:"tenant_id"`
}

type JobPostRef struct {
	ID       string `json:"id"`
	WorkDate string `json:"work_date"`
}

type SlotRef struct {
	SlotID string `json:"slot_id"`
	Status string `json:"status"`
}

type ClaimRef struct {
	ClaimID   string    `json:"claim_id"`
	CompanyID string    `json:"company_id"`
	UserID    *string   `json:"user_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

type CancelRef struct {
	CancelReason string    `json:"cancel_reason"`
	CancelledAt  time.Time `json:"cancelled_at"`
}
