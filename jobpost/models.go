package jobpost

import "time"

// Project groups job posts under one construction site.
type Project struct {
	ID          string
	TenantID    string
	Name        string
	Address     string
	StartsOn    *time.Time
	EndsOn      *time.Time
	DWProjectID *string
	CreatedAt   time.Time
}

// JobPost is a dated work order for one trade. Publishing it creates
// SlotsPerDay claimable slots for each work date in the window.
type JobPost struct {
	ID            string
	TenantID      string
	ProjectID     string
	Trade         string
	Title         string
	WorkDateStart time.Time
	WorkDateEnd   time.Time
	SlotsPerDay   int
	PricePerSlot  *int64
	Published     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Filters narrows job post listings.
type Filters struct {
	ProjectID     string
	Trade         string
	PublishedOnly bool
	Page          int
	PageSize      int
}
