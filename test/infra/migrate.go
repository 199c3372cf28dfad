package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"siteflow/db"
)

// Prepare connects to the DSN, applies the embedded migrations, and returns a
// ready pool. With isolate set, every object of this run lands in a private
// schema: the pool's connections are born with search_path pointing at it, so
// the migrations, goose's version table, and all queries stay inside. The
// returned teardown drops the schema, letting repeated runs share one
// long-lived database.
func Prepare(ctx context.Context, dsn string, isolate bool) (*pgxpool.Pool, func(context.Context) error, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse dsn: %w", err)
	}

	teardown := func(context.Context) error { return nil }
	schema := ""
	if isolate {
		schema = fmt.Sprintf("siteflow_run_%d", time.Now().UnixNano())
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
		teardown = dropSchema(dsn, schema)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open pool: %w", err)
	}
	if schema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA "+pgx.Identifier{schema}.Sanitize()); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("create run schema: %w", err)
		}
	}

	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pool, teardown, nil
}

// dropSchema dials a fresh connection because the pool is normally closed by
// the time teardown runs.
func dropSchema(dsn, schema string) func(context.Context) error {
	return func(ctx context.Context) error {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect for teardown: %w", err)
		}
		defer conn.Close(ctx)

		if _, err := conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE"); err != nil {
			return fmt.Errorf("drop schema %s: %w", schema, err)
		}
		return nil
	}
}
