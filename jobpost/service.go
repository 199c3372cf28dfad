package jobpost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"siteflow/audit"
	"siteflow/db"
)

// Publishing windows are bounded so one post cannot fan out into an
// unbounded number of slot rows.
const (
	maxWindowDays  = 90
	maxSlotsPerDay = 50
)

// AuditWriter records state changes inside the same transaction.
type AuditWriter interface {
	Append(ctx context.Context, tx pgx.Tx, entry audit.Entry) error
}

type Service struct {
	pool        db.TxBeginner
	repo        Repository
	audit       AuditWriter
	idGenerator func() string
}

func NewService(pool db.TxBeginner, repo Repository, auditWriter AuditWriter) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{
		pool:        pool,
		repo:        repo,
		audit:       auditWriter,
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

type Actor struct {
	UserID string
	Role   string
}

type CreateProjectParams struct {
	TenantID    string
	Name        string
	Address     string
	StartsOn    *time.Time
	EndsOn      *time.Time
	DWProjectID *string
	Actor       Actor
}

func (s *Service) CreateProject(ctx context.Context, params CreateProjectParams) (Project, error) {
	if params.TenantID == "" {
		return Project{}, fmt.Errorf("%w: missing tenant id", ErrInvalid)
	}
	if strings.TrimSpace(params.Name) == "" {
		return Project{}, fmt.Errorf("%w: project name required", ErrInvalid)
	}
	if params.StartsOn != nil && params.EndsOn != nil && params.EndsOn.Before(*params.StartsOn) {
		return Project{}, fmt.Errorf("%w: project ends before it starts", ErrInvalid)
	}

	var created Project
	err := db.RunInTenantTx(ctx, s.pool, params.TenantID, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		created, err = s.repo.CreateProject(ctx, tx, Project{
			ID:          s.idGenerator(),
			TenantID:    params.TenantID,
			Name:        strings.TrimSpace(params.Name),
			Address:     params.Address,
			StartsOn:    params.StartsOn,
			EndsOn:      params.EndsOn,
			DWProjectID: params.DWProjectID,
		})
		if err != nil {
			return fmt.Errorf("jobpost: create project: %w", err)
		}

		return s.appendAudit(ctx, tx, params.TenantID, params.Actor, audit.ActionProjectCreate, "projects", created.ID, map[string]any{
			"name": created.Name,
		})
	})
	if err != nil {
		return Project{}, err
	}
	return created, nil
}

type CreateJobPostParams struct {
	TenantID      string
	ProjectID     string
	Trade         string
	Title         string
	WorkDateStart time.Time
	WorkDateEnd   time.Time
	SlotsPerDay   int
	PricePerSlot  *int64
	Actor         Actor
}

func (s *Service) CreateJobPost(ctx context.Context, params CreateJobPostParams) (JobPost, error) {
	if params.TenantID == "" {
		return JobPost{}, fmt.Errorf("%w: missing tenant id", ErrInvalid)
	}
	if params.ProjectID == "" {
		return JobPost{}, fmt.Errorf("%w: missing project id", ErrInvalid)
	}
	if strings.TrimSpace(params.Trade) == "" {
		return JobPost{}, fmt.Errorf("%w: trade required", ErrInvalid)
	}
	if strings.TrimSpace(params.Title) == "" {
		return JobPost{}, fmt.Errorf("%w: title required", ErrInvalid)
	}
	if err := validateWindow(params.WorkDateStart, params.WorkDateEnd); err != nil {
		return JobPost{}, err
	}
	slotsPerDay := params.SlotsPerDay
	if slotsPerDay == 0 {
		slotsPerDay = 1
	}
	if slotsPerDay < 1 || slotsPerDay > maxSlotsPerDay {
		return JobPost{}, fmt.Errorf("%w: slots per day must be between 1 and %d", ErrInvalid, maxSlotsPerDay)
	}
	if params.PricePerSlot != nil && *params.PricePerSlot < 0 {
		return JobPost{}, fmt.Errorf("%w: negative price per slot", ErrInvalid)
	}

	var created JobPost
	err := db.RunInTenantTx(ctx, s.pool, params.TenantID, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := s.repo.GetProject(ctx, tx, params.ProjectID); err != nil {
			return err
		}

		var err error
		created, err = s.repo.CreateJobPost(ctx, tx, JobPost{
			ID:            s.idGenerator(),
			TenantID:      params.TenantID,
			ProjectID:     params.ProjectID,
			Trade:         strings.TrimSpace(params.Trade),
			Title:         strings.TrimSpace(params.Title),
			WorkDateStart: params.WorkDateStart,
			WorkDateEnd:   params.WorkDateEnd,
			SlotsPerDay:   slotsPerDay,
			PricePerSlot:  params.PricePerSlot,
		})
		if err != nil {
			return fmt.Errorf("jobpost: create job post: %w", err)
		}

		return s.appendAudit(ctx, tx, params.TenantID, params.Actor, audit.ActionJobPostCreate, "job_posts", created.ID, map[string]any{
			"trade": created.Trade,
			"title": created.Title,
		})
	})
	if err != nil {
		return JobPost{}, err
	}
	return created, nil
}

type PublishParams struct {
	TenantID string
	PostID   string
	Actor    Actor
}

type PublishResult struct {
	Post         JobPost
	SlotsCreated int
}

// Publish locks the post, creates its slots for every work date in the
// window, and marks the post published. Publishing an already published
// post is a no-op.
func (s *Service) Publish(ctx context.Context, params PublishParams) (PublishResult, error) {
	if params.TenantID == "" {
		return PublishResult{}, fmt.Errorf("%w: missing tenant id", ErrInvalid)
	}
	if params.PostID == "" {
		return PublishResult{}, fmt.Errorf("%w: missing post id", ErrInvalid)
	}

	var result PublishResult
	err := db.RunInTenantTx(ctx, s.pool, params.TenantID, func(ctx context.Context, tx pgx.Tx) error {
		post, err := s.repo.GetJobPostForUpdate(ctx, tx, params.PostID)
		if err != nil {
			return err
		}
		if post.Published {
			result = PublishResult{Post: post, SlotsCreated: 0}
			return nil
		}

		dates := workDates(post.WorkDateStart, post.WorkDateEnd)
		count, err := s.repo.InsertSlots(ctx, tx, post, dates)
		if err != nil {
			return err
		}

		published, err := s.repo.MarkPublished(ctx, tx, post.ID)
		if err != nil {
			return err
		}

		result = PublishResult{Post: published, SlotsCreated: count}
		return s.appendAudit(ctx, tx, params.TenantID, params.Actor, audit.ActionJobPostPublish, "job_posts", post.ID, map[string]any{
			"slot_count":      count,
			"work_date_start": post.WorkDateStart.Format("2006-01-02"),
			"work_date_end":   post.WorkDateEnd.Format("2006-01-02"),
		})
	})
	if err != nil {
		return PublishResult{}, err
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, tenantID, postID string) (JobPost, error) {
	var post JobPost
	err := db.RunInTenantTx(ctx, s.pool, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		post, err = s.repo.GetJobPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return JobPost{}, err
	}
	return post, nil
}

type ListResult struct {
	Items []JobPost
	Total int
}

func (s *Service) List(ctx context.Context, tenantID string, filters Filters) (ListResult, error) {
	var result ListResult
	err := db.RunInTenantTx(ctx, s.pool, tenantID, func(ctx context.Context, tx pgx.Tx) error {
		items, total, err := s.repo.List(ctx, tx, tenantID, filters)
		if err != nil {
			return err
		}
		result = ListResult{Items: items, Total: total}
		return nil
	})
	if err != nil {
		return ListResult{}, err
	}
	return result, nil
}

func (s *Service) appendAudit(ctx context.Context, tx pgx.Tx, tenantID string, actor Actor, action, targetTable, targetID string, payload map[string]any) error {
	if s.audit == nil {
		return nil
	}
	entry := audit.Entry{
		TenantID:    tenantID,
		ActorRole:   actor.Role,
		Action:      action,
		TargetTable: targetTable,
		TargetID:    targetID,
		Payload:     payload,
	}
	if actor.UserID != "" {
		entry.ActorUserID = &actor.UserID
	}
	if entry.ActorRole == "" {
		entry.ActorRole = audit.RoleUser
	}
	if err := s.audit.Append(ctx, tx, entry); err != nil {
		return fmt.Errorf("jobpost: append audit: %w", err)
	}
	return nil
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: work date window required", ErrInvalid)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: work date window ends before it starts", ErrInvalid)
	}
	if len(workDates(start, end)) > maxWindowDays {
		return fmt.Errorf("%w: work date window longer than %d days", ErrInvalid, maxWindowDays)
	}
	return nil
}

func workDates(start, end time.Time) []time.Time {
	start = truncateToDate(start)
	end = truncateToDate(end)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
