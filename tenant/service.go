package tenant

import (
	"context"
	"errors"
	"fmt"
)

// ErrInactive signals a tenant that exists but is switched off.
var ErrInactive = errors.New("tenant: inactive")

// RegistryReader abstracts repository operations for the service.
type RegistryReader interface {
	GetByID(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context, limit int) ([]Tenant, error)
}

// Service exposes business-level tenant operations.
type Service struct {
	repo RegistryReader
}

// NewService builds a Service using the provided repository.
func NewService(repo RegistryReader) *Service {
	return &Service{repo: repo}
}

// GetByID returns the tenant for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit tenants.
func (s *Service) List(ctx context.Context, limit int) ([]Tenant, error) {
	return s.repo.List(ctx, limit)
}

// RequireActive loads a tenant and rejects it unless it is active.
// The request boundary calls this before establishing tenant context.
func (s *Service) RequireActive(ctx context.Context, id string) (Tenant, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	if !t.Active {
		return Tenant{}, fmt.Errorf("%w: %s", ErrInactive, id)
	}
	return t, nil
}
