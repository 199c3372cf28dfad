package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"siteflow/audit"
	"siteflow/claim"
	"siteflow/db"
	"siteflow/jobpost"
	"siteflow/outbox"
	"siteflow/test/actors"
	"siteflow/test/chaos"
	"siteflow/test/infra"
	"siteflow/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent claimers per tenant")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed for the fixture layout")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

const signingSecret = "stress-signing-secret"

func TestClaimEngineConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	rng := rand.New(rand.NewSource(seed))

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres(ctx)
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.Prepare(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("prepare database: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	// Two tenants battling over separate inventories, one per integration
	// mode. The seed varies how many dates each tenant gets.
	tenantA := mustSeedTenant(t, ctx, pool, rng, "Alpha Construction", "standalone")
	tenantB := mustSeedTenant(t, ctx, pool, rng, "Beta Builders", "dandori")
	tenants := []string{tenantA.tenantID, tenantB.tenantID}

	// Webhook sink: verifies every delivery signature and injects failures so
	// the retry schedule and the requeue path see real traffic.
	var badSignatures, deliveries atomic.Int64
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		ts, err := strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)
		if err != nil || !outbox.Verify(signingSecret, ts, body, r.Header.Get("X-Signature"), time.Now()) {
			badSignatures.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch n := deliveries.Add(1); {
		case n%23 == 0:
			http.Error(w, "synthetic rejection", http.StatusBadRequest)
		case n%5 == 0:
			http.Error(w, "synthetic outage", http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer sink.Close()

	recorder := audit.NewRecorder()
	claimSvc := claim.NewService(pool, claim.NewRepository(), outbox.NewProducer(), recorder)
	postSvc := jobpost.NewService(pool, jobpost.NewRepository(), recorder)
	outboxRepo := outbox.NewRepository(pool)
	adminSvc := outbox.NewAdminService(pool, outboxRepo, recorder)

	// Short retry schedule so events cycle through pending, failed, and
	// requeued states within the run.
	dispatcher := outbox.NewDispatcher(outboxRepo, outbox.Config{
		TargetURL:     sink.URL,
		SigningSecret: signingSecret,
		BatchSize:     10,
		PollInterval:  200 * time.Millisecond,
		MaxRetries:    2,
		RetrySchedule: []time.Duration{500 * time.Millisecond, time.Second},
		HTTPTimeout:   2 * time.Second,
	}, nil)

	g, gctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})
	dispatcherCtx, stopDispatcher := context.WithCancel(gctx)
	defer stopDispatcher()

	g.Go(func() error {
		if err := dispatcher.Run(dispatcherCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error {
			return actors.Claimer(gctx, claimSvc, tenantA.tenantID, tenantA.slotIDs, tenantA.companies, stop)
		})
		g.Go(func() error {
			return actors.Claimer(gctx, claimSvc, tenantB.tenantID, tenantB.slotIDs, tenantB.companies, stop)
		})
	}
	g.Go(func() error { return actors.Canceller(gctx, claimSvc, tenantA.tenantID, tenantA.slotIDs, stop) })
	g.Go(func() error { return actors.Canceller(gctx, claimSvc, tenantB.tenantID, tenantB.slotIDs, stop) })
	g.Go(func() error {
		return actors.Publisher(gctx, postSvc, tenantA.tenantID, tenantA.projectID, tenantA.adminID, stop)
	})
	g.Go(func() error {
		return actors.Publisher(gctx, postSvc, tenantB.tenantID, tenantB.projectID, tenantB.adminID, stop)
	})
	g.Go(func() error {
		return actors.CrossTenantProber(gctx, claimSvc, tenantB.tenantID, tenantA.slotIDs, tenantB.companies[0], stop)
	})
	g.Go(func() error {
		return actors.CrossTenantProber(gctx, claimSvc, tenantA.tenantID, tenantB.slotIDs, tenantA.companies[0], stop)
	})
	g.Go(func() error { return actors.Requeuer(gctx, adminSvc, stop) })
	go chaos.KillRandomBackend(gctx, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-gctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(gctx, pool, tenants)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpState(t, gctx, pool, tenants)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	stopDispatcher()
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v (seed=%d)", err, seed)
		}
	}

	// One settling pass with everything stopped.
	if name, row, err := oracles.Run(ctx, pool, tenants); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("final oracle error: %v", err)
		}
	} else if name != "" {
		dumpState(t, ctx, pool, tenants)
		t.Fatalf("Oracle %s failed after shutdown. First row: %s (seed=%d)", name, row, seed)
	}

	if n := badSignatures.Load(); n > 0 {
		t.Fatalf("webhook sink rejected %d signatures", n)
	}
	t.Logf("run complete: %d webhook deliveries, %d claims (tenant A), %d claims (tenant B), seed=%d",
		deliveries.Load(), countClaims(t, ctx, pool, tenantA.tenantID), countClaims(t, ctx, pool, tenantB.tenantID), seed)
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type stressTenant struct {
	tenantID  string
	projectID string
	postID    string
	adminID   string
	slotIDs   []string
	companies []string
}

// mustSeedTenant creates one tenant with a published post and two slots per
// work date. Row policies gate every insert, so the whole seed runs inside
// one tenant transaction.
func mustSeedTenant(t *testing.T, ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand, name, mode string) stressTenant {
	t.Helper()

	st := stressTenant{
		tenantID:  uuid.NewString(),
		projectID: uuid.NewString(),
		postID:    uuid.NewString(),
		adminID:   uuid.NewString(),
	}
	for i := 0; i < 4; i++ {
		st.companies = append(st.companies, uuid.NewString())
	}

	days := 3 + rng.Intn(3)
	start := time.Now().AddDate(0, 0, 1)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	var dwProjectID *string
	if mode == "dandori" {
		ref := fmt.Sprintf("DW-%04d", rng.Intn(10000))
		dwProjectID = &ref
	}

	err := db.RunInTenantTx(ctx, pool, st.tenantID, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO tenants (id, name, integration_mode) VALUES ($1, $2, $3)`,
			st.tenantID, name, mode); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO projects (id, tenant_id, name, dw_project_id) VALUES ($1, $2, $3, $4)`,
			st.projectID, st.tenantID, name+" site", dwProjectID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO job_posts (id, tenant_id, project_id, trade, title, work_date_start, work_date_end, slots_per_day, published)
			VALUES ($1, $2, $3, 'interior', 'Interior finishing', $4, $5, 2, true)
		`, st.postID, st.tenantID, st.projectID, start, start.AddDate(0, 0, days-1)); err != nil {
			return err
		}
		for day := 0; day < days; day++ {
			for slotNo := 1; slotNo <= 2; slotNo++ {
				id := uuid.NewString()
				if _, err := tx.Exec(ctx, `
					INSERT INTO job_slots (id, tenant_id, job_post_id, work_date, slot_no)
					VALUES ($1, $2, $3, $4, $5)
				`, id, st.tenantID, st.postID, start.AddDate(0, 0, day), slotNo); err != nil {
					return err
				}
				st.slotIDs = append(st.slotIDs, id)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed tenant %s: %v", name, err)
	}
	return st
}

func countClaims(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tenantID string) int {
	t.Helper()
	var n int
	err := db.RunInTenantTx(ctx, pool, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM claims`).Scan(&n)
	})
	if err != nil {
		t.Logf("count claims for %s: %v", tenantID, err)
	}
	return n
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func dumpState(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tenantIDs []string) {
	t.Helper()

	dumpRows(t, ctx, pool, "outbox_events",
		`SELECT id, event_name, status, retry_count, next_attempt_at, last_error FROM outbox_events ORDER BY id DESC LIMIT 50`)

	for _, tenantID := range tenantIDs {
		err := db.RunInTenantTx(ctx, pool, tenantID, func(ctx context.Context, tx pgx.Tx) error {
			dumpRows(t, ctx, tx, fmt.Sprintf("job_slots[%s]", tenantID),
				`SELECT id, status, work_date, claimed_at, cancel_reason FROM job_slots ORDER BY created_at DESC LIMIT 50`)
			dumpRows(t, ctx, tx, fmt.Sprintf("claims[%s]", tenantID),
				`SELECT id, slot_id, company_id, request_id, claimed_at FROM claims ORDER BY claimed_at DESC LIMIT 50`)
			dumpRows(t, ctx, tx, fmt.Sprintf("audit_logs[%s]", tenantID),
				`SELECT id, action, target_id, created_at FROM audit_logs ORDER BY id DESC LIMIT 50`)
			return nil
		})
		if err != nil {
			t.Logf("dump tenant %s: %v", tenantID, err)
		}
	}
}

func dumpRows(t *testing.T, ctx context.Context, q querier, name, sql string) {
	t.Helper()

	rows, err := q.Query(ctx, sql)
	if err != nil {
		t.Logf("dump %s error: %v", name, err)
		return
	}
	defer rows.Close()

	cols := rows.FieldDescriptions()
	t.Logf("-- %s --", name)
	for rows.Next() {
		vals, _ := rows.Values()
		buf := make([]any, 0, len(vals))
		for i := range vals {
			buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
		}
		t.Logf("%s", buf)
	}
}
