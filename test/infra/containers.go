// Package infra provisions the throwaway databases the stress harness runs
// against: a Docker container when available, a local PostgreSQL otherwise.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "postgres:16"

// PGContainer wraps the container handle. The zero value stands in when an
// external database is reused, so Terminate is always safe to call.
type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres launches a disposable Postgres container and returns its DSN.
// The wait strategy needs the ready line twice: the image restarts the server
// once while initializing.
func StartPostgres(ctx context.Context) (*PGContainer, string, error) {
	pgC, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase("siteflow_test"),
		postgres.WithUsername("siteflow"),
		postgres.WithPassword("siteflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("run %s: %w", postgresImage, err)
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", fmt.Errorf("container dsn: %w", err)
	}
	return &PGContainer{C: pgC}, dsn, nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}
