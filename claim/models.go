package claim

import "time"

// Slot statuses. The only transitions are available→claimed (the FCFS
// race), claimed→cancelled, and claimed→completed.
const (
	SlotAvailable = "available"
	SlotClaimed   = "claimed"
	SlotCancelled = "cancelled"
	SlotCompleted = "completed"
)

// Accepted cancel reasons.
var cancelReasons = map[string]bool{
	"no_show":        true,
	"weather":        true,
	"client_change":  true,
	"material_delay": true,
	"other":          true,
}

// Slot is one dated work unit inside a job post.
type Slot struct {
	ID               string
	TenantID         string
	JobPostID        string
	WorkDate         time.Time
	SlotNo           int
	Status           string
	ClaimedByCompany *string
	ClaimedByUser    *string
	ClaimedAt        *time.Time
	CancelledAt      *time.Time
	CancelReason     *string
	CreatedAt        time.Time
}

// Claim is the durable record of a won slot. Rows are immutable; a
// cancelled slot keeps its claim for history.
type Claim struct {
	ID        string
	TenantID  string
	SlotID    string
	CompanyID string
	UserID    *string
	RequestID string
	ClaimedAt time.Time
}

// Alternative is one nearby available slot offered to a losing caller.
type Alternative struct {
	SlotID   string
	WorkDate time.Time
	JobPost  AlternativeJobPost
}

type AlternativeJobPost struct {
	ID    string
	Title string
	Trade string
}
