package tenant

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRegistry struct {
	tenants map[string]Tenant
}

func (f *fakeRegistry) GetByID(ctx context.Context, id string) (Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRegistry) List(ctx context.Context, limit int) ([]Tenant, error) {
	out := make([]Tenant, 0, len(f.tenants))
	for _, t := range f.tenants {
		out = append(out, t)
	}
	return out, nil
}

func TestRequireActive(t *testing.T) {
	repo := &fakeRegistry{tenants: map[string]Tenant{
		"550e8400-e29b-41d4-a716-446655440001": {
			ID:              "550e8400-e29b-41d4-a716-446655440001",
			Name:            "Acme Construction",
			IntegrationMode: ModeStandalone,
			Active:          true,
			CreatedAt:       time.Now().UTC(),
		},
		"550e8400-e29b-41d4-a716-446655440999": {
			ID:              "550e8400-e29b-41d4-a716-446655440999",
			Name:            "Dormant Builders",
			IntegrationMode: ModeDandori,
			Active:          false,
			CreatedAt:       time.Now().UTC(),
		},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	got, err := svc.RequireActive(ctx, "550e8400-e29b-41d4-a716-446655440001")
	if err != nil {
		t.Fatalf("RequireActive(active): %v", err)
	}
	if got.IntegrationMode != ModeStandalone {
		t.Errorf("integration mode = %q, want %q", got.IntegrationMode, ModeStandalone)
	}

	if _, err := svc.RequireActive(ctx, "550e8400-e29b-41d4-a716-446655440999"); !errors.Is(err, ErrInactive) {
		t.Errorf("RequireActive(inactive) = %v, want ErrInactive", err)
	}

	if _, err := svc.RequireActive(ctx, "550e8400-e29b-41d4-a716-446655440404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RequireActive(missing) = %v, want ErrNotFound", err)
	}
}
