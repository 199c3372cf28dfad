// Command dispatcher drains the transactional outbox. It polls for due
// events, delivers them to the configured webhook target over signed HTTP,
// and applies the retry schedule. A single instance is enough; running more
// is safe because batches are leased with SKIP LOCKED.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"siteflow/config"
	"siteflow/db"
	"siteflow/outbox"
)

const backlogSampleInterval = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("dispatcher: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	repo := outbox.NewRepository(pool)
	dispatcher := outbox.NewDispatcher(repo, outbox.Config{
		TargetURL:     cfg.OutboxTargetURL,
		SigningSecret: cfg.OutboxSigningSecret,
		BatchSize:     cfg.OutboxBatchSize,
		PollInterval:  cfg.OutboxPollInterval,
		MaxRetries:    cfg.OutboxMaxRetries,
		HTTPTimeout:   cfg.OutboxHTTPTimeout,
	}, logger)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@daily", func() {
		pruneSent(context.Background(), repo, cfg.OutboxRetentionDays, logger)
	}); err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler.Start()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(ctx)
	})

	g.Go(func() error {
		sampleBacklog(ctx, repo, logger)
		return nil
	})

	g.Go(func() error {
		logger.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		<-scheduler.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("dispatcher stopped")
	return nil
}

// sampleBacklog refreshes the per-status backlog gauges until ctx ends.
func sampleBacklog(ctx context.Context, repo *outbox.Repository, logger *zap.Logger) {
	ticker := time.NewTicker(backlogSampleInterval)
	defer ticker.Stop()

	for {
		counts, err := repo.CountByStatus(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("count outbox backlog", zap.Error(err))
		} else {
			outbox.ObserveBacklog(counts)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pruneSent deletes delivered events older than the retention window.
// Pending and failed events are never pruned.
func pruneSent(ctx context.Context, repo *outbox.Repository, retentionDays int, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		logger.Error("prune sent outbox events", zap.Error(err))
		return
	}
	logger.Info("pruned sent outbox events",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}
