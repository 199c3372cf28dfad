// Package actors holds the concurrent workloads the stress test throws at
// the claim engine. Each actor loops until stop closes, tolerating the
// outcomes that are legal under contention and failing on everything else.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"siteflow/claim"
	"siteflow/jobpost"
	"siteflow/outbox"
)

var cancelReasons = []string{"no_show", "weather", "client_change", "material_delay", "other"}

// transient reports whether err looks like collateral damage from the chaos
// actor rather than an engine bug. 57P01 is "terminating connection due to
// administrator command"; the string checks cover the pool noticing a dead
// connection after the fact.
func transient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "57P01", "40001", "40P01", "08006":
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "conn closed") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "unexpected EOF")
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

// Claimer fires claims at random slots under one tenant. Roughly a fifth of
// the calls reuse an already-won request id to hammer the idempotent replay
// path, and every tenth loop it pulls the alternatives view to discover
// slots the publisher created mid-run.
func Claimer(ctx context.Context, svc *claim.Service, tenantID string, slotIDs, companyIDs []string, stop <-chan struct{}) error {
	known := append([]string(nil), slotIDs...)
	won := make([]string, 0, 32)

	for !stopped(ctx, stop) {
		if rand.Intn(10) == 0 {
			origin := slotIDs[rand.Intn(len(slotIDs))]
			alts, err := svc.Alternatives(ctx, claim.AlternativesParams{TenantID: tenantID, SlotID: origin, Days: 30})
			switch {
			case err == nil:
				for _, alt := range alts {
					if len(known) < 256 {
						known = append(known, alt.SlotID)
					}
				}
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			case transient(err):
			default:
				return fmt.Errorf("claimer alternatives: %w", err)
			}
		}

		requestID := fmt.Sprintf("req-%d", rand.Int63())
		if len(won) > 0 && rand.Intn(5) == 0 {
			requestID = won[rand.Intn(len(won))]
		}

		_, err := svc.Claim(ctx, claim.ClaimParams{
			TenantID:  tenantID,
			SlotID:    known[rand.Intn(len(known))],
			CompanyID: companyIDs[rand.Intn(len(companyIDs))],
			RequestID: requestID,
		})
		switch {
		case err == nil:
			if len(won) < cap(won) {
				won = append(won, requestID)
			}
		case errors.Is(err, claim.ErrAlreadyClaimed):
			// lost the race, expected under contention
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case transient(err):
		default:
			return fmt.Errorf("claimer: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
	return nil
}

// Canceller walks the seeded slots and cancels whichever happen to be
// claimed at the moment, with a random valid reason.
func Canceller(ctx context.Context, svc *claim.Service, tenantID string, slotIDs []string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		_, err := svc.Cancel(ctx, claim.CancelParams{
			TenantID: tenantID,
			SlotID:   slotIDs[rand.Intn(len(slotIDs))],
			Reason:   cancelReasons[rand.Intn(len(cancelReasons))],
		})
		switch {
		case err == nil:
		case errors.Is(err, claim.ErrSlotNotClaimed),
			errors.Is(err, claim.ErrAlreadyCancelled),
			errors.Is(err, claim.ErrAlreadyCompleted),
			errors.Is(err, claim.ErrCancelFailed):
			// slot was not in a cancellable state, expected
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case transient(err):
		default:
			return fmt.Errorf("canceller: %w", err)
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
	return nil
}

// Publisher keeps fresh inventory flowing: every few hundred milliseconds it
// creates a short published post under the seeded project, dated within the
// window the claimers scan through alternatives.
func Publisher(ctx context.Context, svc *jobpost.Service, tenantID, projectID, adminUserID string, stop <-chan struct{}) error {
	actor := jobpost.Actor{UserID: adminUserID, Role: "tenant_admin"}

	for i := 0; !stopped(ctx, stop); i++ {
		start := midnight(time.Now().AddDate(0, 0, 1+rand.Intn(20)))
		end := start.AddDate(0, 0, rand.Intn(2))

		post, err := svc.CreateJobPost(ctx, jobpost.CreateJobPostParams{
			TenantID:      tenantID,
			ProjectID:     projectID,
			Trade:         "interior",
			Title:         fmt.Sprintf("Follow-up work %d", i),
			WorkDateStart: start,
			WorkDateEnd:   end,
			SlotsPerDay:   1 + rand.Intn(2),
			Actor:         actor,
		})
		switch {
		case err == nil:
			if _, err := svc.Publish(ctx, jobpost.PublishParams{TenantID: tenantID, PostID: post.ID, Actor: actor}); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				if !transient(err) {
					return fmt.Errorf("publisher publish: %w", err)
				}
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case transient(err):
		default:
			return fmt.Errorf("publisher create: %w", err)
		}
		time.Sleep(time.Duration(300+rand.Intn(300)) * time.Millisecond)
	}
	return nil
}

// CrossTenantProber claims and reads slots that belong to another tenant.
// Anything but a not-found answer is an isolation failure and ends the run.
func CrossTenantProber(ctx context.Context, svc *claim.Service, tenantID string, foreignSlotIDs []string, companyID string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		target := foreignSlotIDs[rand.Intn(len(foreignSlotIDs))]

		_, err := svc.Claim(ctx, claim.ClaimParams{
			TenantID:  tenantID,
			SlotID:    target,
			CompanyID: companyID,
			RequestID: fmt.Sprintf("probe-%d", rand.Int63()),
		})
		switch {
		case err == nil:
			return fmt.Errorf("cross-tenant claim of slot %s succeeded", target)
		case errors.Is(err, claim.ErrNotFound):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case transient(err):
		default:
			return fmt.Errorf("cross-tenant probe: %w", err)
		}

		_, err = svc.Alternatives(ctx, claim.AlternativesParams{TenantID: tenantID, SlotID: target})
		switch {
		case err == nil:
			return fmt.Errorf("cross-tenant alternatives for slot %s succeeded", target)
		case errors.Is(err, claim.ErrNotFound):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case transient(err):
		default:
			return fmt.Errorf("cross-tenant alternatives probe: %w", err)
		}
		time.Sleep(time.Duration(50+rand.Intn(50)) * time.Millisecond)
	}
	return nil
}

// Requeuer plays operator: it scans for parked events and re-arms them.
// Losing a requeue race to a sibling is fine.
func Requeuer(ctx context.Context, admin *outbox.AdminService, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		events, err := admin.ListEvents(ctx, outbox.StatusFailed, 5)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case transient(err):
			events = nil
		default:
			return fmt.Errorf("requeuer list: %w", err)
		}

		for _, ev := range events {
			if _, err := admin.Requeue(ctx, ev.ID); err != nil {
				if errors.Is(err, outbox.ErrNotParked) || errors.Is(err, outbox.ErrNotFound) || transient(err) {
					continue
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return fmt.Errorf("requeue event %d: %w", ev.ID, err)
			}
		}
		time.Sleep(time.Duration(400+rand.Intn(200)) * time.Millisecond)
	}
	return nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
