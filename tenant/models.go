package tenant

import "time"

// Integration modes decide where confirmed bookings are delivered.
const (
	ModeStandalone = "standalone"
	ModeDandori    = "dandori"
)

// Tenant is one onboarded construction company using the platform.
type Tenant struct {
	ID              string
	Name            string
	IntegrationMode string
	Active          bool
	CreatedAt       time.Time
}
