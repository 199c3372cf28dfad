package outbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DefaultRetrySchedule spaces redeliveries out to roughly a quarter day.
var DefaultRetrySchedule = []time.Duration{
	60 * time.Second,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	6 * time.Hour,
}

// Config tunes one dispatcher instance.
type Config struct {
	TargetURL     string
	SigningSecret string
	BatchSize     int
	PollInterval  time.Duration
	MaxRetries    int
	RetrySchedule []time.Duration
	HTTPTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 5
	}
	if len(c.RetrySchedule) == 0 {
		c.RetrySchedule = DefaultRetrySchedule
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	return c
}

// EventStore is the slice of Repository the dispatcher needs.
type EventStore interface {
	LeaseBatch(ctx context.Context, batchSize int) ([]Event, error)
	MarkSent(ctx context.Context, id int64) error
	ScheduleRetry(ctx context.Context, id int64, retryCount int, nextAttempt time.Time, lastError string) error
	Park(ctx context.Context, id int64, retryCount int, lastError string) error
}

// Dispatcher drains the outbox: lease a batch, deliver each event over
// signed HTTP, and record the outcome row by row. Delivery happens outside
// any database transaction.
type Dispatcher struct {
	store  EventStore
	cfg    Config
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewDispatcher(store EventStore, cfg Config, logger *zap.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:  store,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger,
		now:    time.Now,
	}
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Run loops until the context is cancelled. An empty batch sleeps one poll
// interval; a non-empty batch loops immediately to drain the backlog.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("outbox dispatcher started",
		zap.String("target_url", d.cfg.TargetURL),
		zap.Int("batch_size", d.cfg.BatchSize),
		zap.Duration("poll_interval", d.cfg.PollInterval),
		zap.Int("max_retries", d.cfg.MaxRetries),
	)

	for {
		processed, err := d.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("outbox dispatcher stopped")
				return ctx.Err()
			}
			d.logger.Error("outbox batch failed", zap.Error(err))
		}

		if processed > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return ctx.Err()
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// RunOnce leases and works through a single batch, returning how many
// events it processed.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	events, err := d.leaseWithRetry(ctx)
	if err != nil {
		return 0, err
	}

	for _, event := range events {
		d.dispatchOne(ctx, event)
	}
	return len(events), nil
}

// leaseWithRetry shields the loop from transient database hiccups.
func (d *Dispatcher) leaseWithRetry(ctx context.Context) ([]Event, error) {
	var events []Event
	operation := func() error {
		var err error
		events, err = d.store.LeaseBatch(ctx, d.cfg.BatchSize)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("outbox: lease batch: %w", err)
	}
	return events, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, event Event) {
	start := d.now()
	result := d.deliver(ctx, event)
	deliveryDuration.Observe(time.Since(start).Seconds())

	switch {
	case result.ok:
		if err := d.store.MarkSent(ctx, event.ID); err != nil {
			d.logger.Error("mark sent failed", zap.Int64("event", event.ID), zap.Error(err))
			return
		}
		deliveriesTotal.WithLabelValues("sent").Inc()
		d.logger.Info("event delivered",
			zap.Int64("event", event.ID),
			zap.String("event_id", event.EventID),
			zap.String("event_name", event.EventName),
			zap.Int("attempt", event.RetryCount+1),
		)

	case result.retryable:
		retryCount := event.RetryCount + 1
		if retryCount > d.cfg.MaxRetries {
			d.park(ctx, event, retryCount, result.detail)
			return
		}
		nextAttempt := d.now().Add(d.retryDelay(retryCount))
		if err := d.store.ScheduleRetry(ctx, event.ID, retryCount, nextAttempt, result.detail); err != nil {
			d.logger.Error("schedule retry failed", zap.Int64("event", event.ID), zap.Error(err))
			return
		}
		deliveriesTotal.WithLabelValues("retried").Inc()
		d.logger.Warn("delivery failed, retry scheduled",
			zap.Int64("event", event.ID),
			zap.String("event_id", event.EventID),
			zap.Int("retry_count", retryCount),
			zap.Time("next_attempt_at", nextAttempt),
			zap.String("detail", result.detail),
		)

	default:
		d.park(ctx, event, event.RetryCount+1, result.detail)
	}
}

func (d *Dispatcher) park(ctx context.Context, event Event, retryCount int, detail string) {
	if err := d.store.Park(ctx, event.ID, retryCount, detail); err != nil {
		d.logger.Error("park failed", zap.Int64("event", event.ID), zap.Error(err))
		return
	}
	deliveriesTotal.WithLabelValues("parked").Inc()
	d.logger.Error("event parked",
		zap.Int64("event", event.ID),
		zap.String("event_id", event.EventID),
		zap.String("event_name", event.EventName),
		zap.Int("retry_count", retryCount),
		zap.String("detail", detail),
	)
}

// retryDelay maps the Nth failed delivery to its wait. The schedule's last
// entry repeats once retries outrun it.
func (d *Dispatcher) retryDelay(retryCount int) time.Duration {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(d.cfg.RetrySchedule) {
		idx = len(d.cfg.RetrySchedule) - 1
	}
	return d.cfg.RetrySchedule[idx]
}

type deliveryResult struct {
	ok        bool
	retryable bool
	detail    string
}

// deliver POSTs the stored payload to the target with signed headers.
// 2xx settles the event. 4xx other than 408/429 is the receiver telling us
// the payload itself is bad, so retrying cannot help. Everything else,
// including transport errors and timeouts, is retryable.
func (d *Dispatcher) deliver(ctx context.Context, event Event) deliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.TargetURL, bytes.NewReader(event.Payload))
	if err != nil {
		return deliveryResult{retryable: true, detail: fmt.Sprintf("build request: %v", err)}
	}

	timestamp := d.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", event.EventID)
	req.Header.Set("X-Event-Name", event.EventName)
	req.Header.Set("X-Timestamp", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-Signature", Sign(d.cfg.SigningSecret, timestamp, event.Payload))

	resp, err := d.client.Do(req)
	if err != nil {
		return deliveryResult{retryable: true, detail: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return deliveryResult{ok: true}
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return deliveryResult{retryable: true, detail: fmt.Sprintf("status %d: %s", resp.StatusCode, body)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return deliveryResult{retryable: false, detail: fmt.Sprintf("status %d: %s", resp.StatusCode, body)}
	default:
		return deliveryResult{retryable: true, detail: fmt.Sprintf("status %d: %s", resp.StatusCode, body)}
	}
}
