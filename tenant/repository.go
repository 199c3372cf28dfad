package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested tenant does not exist.
var ErrNotFound = errors.New("tenant: not found")

// Repository provides access to the tenant registry. The tenants table is
// system-owned and carries no row policy: lookups here happen before any
// tenant context is established.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a tenant by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Tenant, error) {
	const query = `
		SELECT id, name, integration_mode, active, created_at
		FROM tenants
		WHERE id = $1
	`

	var t Tenant
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.IntegrationMode,
		&t.Active,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("tenant: query by id: %w", err)
	}

	return t, nil
}

// List fetches up to limit tenants ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]Tenant, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, name, integration_mode, active, created_at
		FROM tenants
		ORDER BY name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("tenant: list: %w", err)
	}
	defer rows.Close()

	tenants := make([]Tenant, 0, limit)
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.IntegrationMode, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("tenant: scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant: iterate tenants: %w", err)
	}

	return tenants, nil
}

// Create registers a new tenant. Used by onboarding tooling and test seeds.
func (r *Repository) Create(ctx context.Context, t Tenant) (Tenant, error) {
	mode := t.IntegrationMode
	if mode == "" {
		mode = ModeStandalone
	}
	if mode != ModeStandalone && mode != ModeDandori {
		return Tenant{}, fmt.Errorf("tenant: invalid integration mode %q", mode)
	}

	const query = `
		INSERT INTO tenants (id, name, integration_mode, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, integration_mode, active, created_at
	`

	var created Tenant
	err := r.pool.QueryRow(ctx, query, t.ID, t.Name, mode, t.Active).Scan(
		&created.ID,
		&created.Name,
		&created.IntegrationMode,
		&created.Active,
		&created.CreatedAt,
	)
	if err != nil {
		return Tenant{}, fmt.Errorf("tenant: insert: %w", err)
	}

	return created, nil
}
