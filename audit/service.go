package audit

import (
	"context"

	"github.com/jackc/pgx/v5"

	"siteflow/db"
)

// Service wraps the repository in tenant transactions for the admin surface.
type Service struct {
	pool db.TxBeginner
	repo *Repository
}

func NewService(pool db.TxBeginner, repo *Repository) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{pool: pool, repo: repo}
}

// List returns the newest entries for one tenant.
func (s *Service) List(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	var entries []Entry
	err := db.RunInTenantTx(ctx, s.pool, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		entries, err = s.repo.ListByTenant(ctx, tx, tenantID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
