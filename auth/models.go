package auth

type Role string

const (
	RoleCompany     Role = "company"
	RoleTenantAdmin Role = "tenant_admin"
	RoleOperator    Role = "operator"
)

// Identity is the decoded bearer credential. TenantID is always present;
// UserID may be empty for machine callers.
type Identity struct {
	TenantID string
	UserID   string
	Role     Role
}
