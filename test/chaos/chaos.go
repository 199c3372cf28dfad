// Package chaos injects failures while the stress actors run.
package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	killInterval = 2 * time.Second
	killOneIn    = 5
)

// KillRandomBackend rolls the dice every killInterval and, one time in
// killOneIn, terminates a database backend serving the current database,
// forcing the pool to re-establish connections mid-run. Actors treat the
// resulting 57P01 errors as transient.
func KillRandomBackend(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) {
	ticker := time.NewTicker(killInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.Intn(killOneIn) != 0 {
				continue
			}
			_, _ = pool.Exec(ctx, `
				SELECT pg_terminate_backend(pid)
				FROM pg_stat_activity
				WHERE datname = current_database() AND pid <> pg_backend_pid()
				ORDER BY random()
				LIMIT 1
			`)
		}
	}
}
