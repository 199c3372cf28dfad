package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"siteflow/audit"
	"siteflow/db"
	"siteflow/outbox"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OutboxProducer enqueues events in the claim transaction.
type OutboxProducer interface {
	Enqueue(ctx context.Context, tx pgx.Tx, eventName, target string, data outbox.EventData) (outbox.Event, error)
}

// AuditWriter records state changes in the claim transaction.
type AuditWriter interface {
	Append(ctx context.Context, tx pgx.Tx, entry audit.Entry) error
}

// Service is the FCFS engine. All coordination is delegated to the storage
// layer: no in-process locks, just conditional updates inside short-lived
// transactions.
type Service struct {
	pool        TxBeginner
	repo        Store
	producer    OutboxProducer
	audit       AuditWriter
	idGenerator func() string
}

func NewService(pool TxBeginner, repo Store, producer OutboxProducer, auditWriter AuditWriter) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{
		pool:        pool,
		repo:        repo,
		producer:    producer,
		audit:       auditWriter,
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

type ClaimParams struct {
	TenantID  string
	SlotID    string
	CompanyID string
	UserID    *string
	RequestID string
	ActorRole string
}

type ClaimResult struct {
	Slot     Slot
	Claim    Claim
	Replayed bool
}

// Claim runs the FCFS procedure: idempotency probe, conditional update,
// claim insert, outbox enqueue, audit, commit. Under N concurrent calls on
// one available slot exactly one caller wins; a replayed request id
// returns the stored result without writing anything.
func (s *Service) Claim(ctx context.Context, params ClaimParams) (ClaimResult, error) {
	if err := validateClaimParams(&params); err != nil {
		return ClaimResult{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := db.SetTenant(ctx, tx, params.TenantID); err != nil {
		return ClaimResult{}, err
	}

	existing, err := s.repo.GetClaimByRequestID(ctx, tx, params.TenantID, params.RequestID)
	if err == nil {
		return s.replayView(ctx, tx, params.TenantID, existing)
	}
	if !errors.Is(err, ErrNotFound) {
		return ClaimResult{}, err
	}

	slot, err := s.repo.ClaimSlot(ctx, tx, params.TenantID, params.SlotID, params.CompanyID, params.UserID)
	if err != nil {
		if errors.Is(err, errSlotNotAvailable) {
			return s.classifyClaimMiss(ctx, tx, params)
		}
		return ClaimResult{}, err
	}

	created, err := s.repo.InsertClaim(ctx, tx, Claim{
		ID:        s.idGenerator(),
		TenantID:  params.TenantID,
		SlotID:    slot.ID,
		CompanyID: params.CompanyID,
		UserID:    params.UserID,
		RequestID: params.RequestID,
	})
	if err != nil {
		if errors.Is(err, errRequestIDTaken) {
			// A concurrent sibling carrying the same request id inserted
			// first. The failed insert aborted this transaction, so the
			// sibling's committed result is read back on a fresh one.
			tx.Rollback(ctx)
			return s.replayFresh(ctx, params.TenantID, params.RequestID)
		}
		return ClaimResult{}, err
	}

	if err := s.enqueueConfirmed(ctx, tx, slot, created); err != nil {
		return ClaimResult{}, err
	}

	if err := s.appendAudit(ctx, tx, params.TenantID, params.UserID, params.ActorRole, audit.ActionClaim, slot.ID, map[string]any{
		"previous_status": SlotAvailable,
		"new_status":      SlotClaimed,
		"company_id":      params.CompanyID,
		"request_id":      params.RequestID,
	}); err != nil {
		return ClaimResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ClaimResult{}, fmt.Errorf("claim: commit tx: %w", err)
	}

	return ClaimResult{Slot: slot, Claim: created}, nil
}

// classifyClaimMiss discriminates a zero-row conditional update. The same
// request id may have crossed mid-flight, so its stored result takes
// precedence; otherwise a missing slot is NOT_FOUND and anything else
// means somebody holds it.
func (s *Service) classifyClaimMiss(ctx context.Context, tx pgx.Tx, params ClaimParams) (ClaimResult, error) {
	existing, err := s.repo.GetClaimByRequestID(ctx, tx, params.TenantID, params.RequestID)
	if err == nil {
		return s.replayView(ctx, tx, params.TenantID, existing)
	}
	if !errors.Is(err, ErrNotFound) {
		return ClaimResult{}, err
	}

	if _, err := s.repo.GetSlot(ctx, tx, params.TenantID, params.SlotID); err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{}, ErrAlreadyClaimed
}

func (s *Service) replayView(ctx context.Context, tx pgx.Tx, tenantID string, existing Claim) (ClaimResult, error) {
	slot, err := s.repo.GetSlot(ctx, tx, tenantID, existing.SlotID)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim: read replayed slot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ClaimResult{}, fmt.Errorf("claim: commit tx: %w", err)
	}
	return ClaimResult{Slot: slot, Claim: existing, Replayed: true}, nil
}

func (s *Service) replayFresh(ctx context.Context, tenantID, requestID string) (ClaimResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim: begin replay tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := db.SetTenant(ctx, tx, tenantID); err != nil {
		return ClaimResult{}, err
	}

	existing, err := s.repo.GetClaimByRequestID(ctx, tx, tenantID, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The sibling rolled back after winning the insert race; the
			// slot still went to somebody.
			return ClaimResult{}, ErrAlreadyClaimed
		}
		return ClaimResult{}, err
	}
	return s.replayView(ctx, tx, tenantID, existing)
}

type CancelParams struct {
	TenantID  string
	SlotID    string
	Reason    string
	UserID    *string
	ActorRole string
}

type CancelResult struct {
	Slot Slot
}

// Cancel moves a claimed slot to cancelled. The claim row is retained for
// history and the slot is not re-opened.
func (s *Service) Cancel(ctx context.Context, params CancelParams) (CancelResult, error) {
	if params.TenantID == "" {
		return CancelResult{}, fmt.Errorf("%w: missing tenant", ErrValidation)
	}
	if err := validateUUID("slotId", params.SlotID); err != nil {
		return CancelResult{}, err
	}
	if !cancelReasons[params.Reason] {
		return CancelResult{}, fmt.Errorf("%w: unknown cancel reason %q", ErrValidation, params.Reason)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CancelResult{}, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := db.SetTenant(ctx, tx, params.TenantID); err != nil {
		return CancelResult{}, err
	}

	slot, existingClaim, err := s.repo.GetSlotWithClaim(ctx, tx, params.TenantID, params.SlotID)
	if err != nil {
		return CancelResult{}, err
	}

	switch slot.Status {
	case SlotAvailable:
		return CancelResult{}, ErrSlotNotClaimed
	case SlotCancelled:
		return CancelResult{}, ErrAlreadyCancelled
	case SlotCompleted:
		return CancelResult{}, ErrAlreadyCompleted
	}
	if existingClaim == nil {
		return CancelResult{}, fmt.Errorf("claim: claimed slot %s has no claim row", slot.ID)
	}

	updated, err := s.repo.CancelSlot(ctx, tx, params.TenantID, params.SlotID, params.Reason)
	if err != nil {
		return CancelResult{}, err
	}

	if err := s.enqueueCancelled(ctx, tx, updated, *existingClaim); err != nil {
		return CancelResult{}, err
	}

	if err := s.appendAudit(ctx, tx, params.TenantID, params.UserID, params.ActorRole, audit.ActionCancel, updated.ID, map[string]any{
		"previous_status": SlotClaimed,
		"new_status":      SlotCancelled,
		"cancel_reason":   params.Reason,
	}); err != nil {
		return CancelResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CancelResult{}, fmt.Errorf("claim: commit tx: %w", err)
	}

	return CancelResult{Slot: updated}, nil
}

type AlternativesParams struct {
	TenantID string
	SlotID   string
	Days     int
}

// Alternatives returns up to three nearby available slots sharing the
// origin's project and trade. Days defaults to 3 and is capped at 30.
func (s *Service) Alternatives(ctx context.Context, params AlternativesParams) ([]Alternative, error) {
	if params.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant", ErrValidation)
	}
	if err := validateUUID("slotId", params.SlotID); err != nil {
		return nil, err
	}
	days := params.Days
	if days == 0 {
		days = 3
	}
	if days < 1 || days > 30 {
		return nil, fmt.Errorf("%w: days must be between 1 and 30", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := db.SetTenant(ctx, tx, params.TenantID); err != nil {
		return nil, err
	}

	origin, err := s.repo.GetSlot(ctx, tx, params.TenantID, params.SlotID)
	if err != nil {
		return nil, err
	}

	alternatives, err := s.repo.Alternatives(ctx, tx, params.TenantID, origin, days)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("claim: commit tx: %w", err)
	}
	return alternatives, nil
}

func (s *Service) enqueueConfirmed(ctx context.Context, tx pgx.Tx, slot Slot, c Claim) error {
	if s.producer == nil {
		return nil
	}
	data, err := s.eventData(ctx, tx, slot, c)
	if err != nil {
		return err
	}
	data.Slot.Status = SlotClaimed

	mode, err := s.repo.GetTenantMode(ctx, tx, c.TenantID)
	if err != nil {
		return fmt.Errorf("claim: resolve tenant mode: %w", err)
	}
	if _, err := s.producer.Enqueue(ctx, tx, outbox.EventClaimConfirmed, mode, data); err != nil {
		return fmt.Errorf("claim: enqueue confirmed event: %w", err)
	}
	return nil
}

func (s *Service) enqueueCancelled(ctx context.Context, tx pgx.Tx, slot Slot, c Claim) error {
	if s.producer == nil {
		return nil
	}
	data, err := s.eventData(ctx, tx, slot, c)
	if err != nil {
		return err
	}
	data.Slot.Status = SlotCancelled
	cancel := &outbox.CancelRef{}
	if slot.CancelReason != nil {
		cancel.CancelReason = *slot.CancelReason
	}
	if slot.CancelledAt != nil {
		cancel.CancelledAt = slot.CancelledAt.UTC()
	}
	data.Cancel = cancel

	mode, err := s.repo.GetTenantMode(ctx, tx, c.TenantID)
	if err != nil {
		return fmt.Errorf("claim: resolve tenant mode: %w", err)
	}
	if _, err := s.producer.Enqueue(ctx, tx, outbox.EventClaimCancelled, mode, data); err != nil {
		return fmt.Errorf("claim: enqueue cancelled event: %w", err)
	}
	return nil
}

func (s *Service) eventData(ctx context.Context, tx pgx.Tx, slot Slot, c Claim) (outbox.EventData, error) {
	dwProjectID, err := s.repo.GetDWProjectID(ctx, tx, c.TenantID, slot.JobPostID)
	if err != nil {
		return outbox.EventData{}, fmt.Errorf("claim: resolve dw project: %w", err)
	}
	return outbox.EventData{
		DWProjectID: dwProjectID,
		JobPost: outbox.JobPostRef{
			ID:       slot.JobPostID,
			WorkDate: slot.WorkDate.Format("2006-01-02"),
		},
		Slot: outbox.SlotRef{SlotID: slot.ID},
		Claim: outbox.ClaimRef{
			ClaimID:   c.ID,
			CompanyID: c.CompanyID,
			UserID:    c.UserID,
			ClaimedAt: c.ClaimedAt.UTC(),
		},
		TenantID: c.TenantID,
	}, nil
}

func (s *Service) appendAudit(ctx context.Context, tx pgx.Tx, tenantID string, userID *string, role, action, slotID string, payload map[string]any) error {
	if s.audit == nil {
		return nil
	}
	if role == "" {
		role = audit.RoleUser
	}
	entry := audit.Entry{
		TenantID:    tenantID,
		ActorUserID: userID,
		ActorRole:   role,
		Action:      action,
		TargetTable: "job_slots",
		TargetID:    slotID,
		Payload:     payload,
	}
	if err := s.audit.Append(ctx, tx, entry); err != nil {
		return fmt.Errorf("claim: append audit: %w", err)
	}
	return nil
}

func validateClaimParams(params *ClaimParams) error {
	if params.TenantID == "" {
		return fmt.Errorf("%w: missing tenant", ErrValidation)
	}
	if err := validateUUID("slotId", params.SlotID); err != nil {
		return err
	}
	if err := validateUUID("companyId", params.CompanyID); err != nil {
		return err
	}
	if strings.TrimSpace(params.RequestID) == "" {
		return fmt.Errorf("%w: requestId required", ErrValidation)
	}
	if len(params.RequestID) > 200 {
		return fmt.Errorf("%w: requestId too long", ErrValidation)
	}
	if params.UserID != nil {
		if *params.UserID == "" {
			params.UserID = nil
		} else if err := validateUUID("userId", *params.UserID); err != nil {
			return err
		}
	}
	return nil
}

func validateUUID(field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%w: %s must be a UUID", ErrValidation, field)
	}
	return nil
}
