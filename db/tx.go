package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SetTenant tags the active transaction with the caller's tenant identity.
// Row policies compare app.tenant_id against each row's tenant_id, so every
// tenant-scoped statement must run after this call inside the same
// transaction. The third set_config argument scopes the setting to the
// transaction; it does not survive the commit or rollback.
func SetTenant(ctx context.Context, tx pgx.Tx, tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("db: empty tenant id")
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID); err != nil {
		return fmt.Errorf("db: set tenant context: %w", err)
	}
	return nil
}

// RunInTx executes fn inside a transaction, committing on nil error and
// rolling back otherwise. The rollback also runs when fn panics.
func RunInTx(ctx context.Context, pool TxBeginner, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit tx: %w", err)
	}
	return nil
}

// RunInTenantTx is RunInTx with the tenant identity applied before fn runs.
func RunInTenantTx(ctx context.Context, pool TxBeginner, tenantID string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return RunInTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := SetTenant(ctx, tx, tenantID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}
