package jobpost

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

var (
	ErrInvalid         = errors.New("jobpost: invalid input")
	ErrNotFound        = errors.New("jobpost: not found")
	ErrProjectNotFound = errors.New("jobpost: project not found")
)

type Repository interface {
	CreateProject(ctx context.Context, tx pgx.Tx, p Project) (Project, error)
	GetProject(ctx context.Context, tx pgx.Tx, id string) (Project, error)
	CreateJobPost(ctx context.Context, tx pgx.Tx, post JobPost) (JobPost, error)
	GetJobPost(ctx context.Context, tx pgx.Tx, id string) (JobPost, error)
	GetJobPostForUpdate(ctx context.Context, tx pgx.Tx, id string) (JobPost, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id string) (JobPost, error)
	InsertSlots(ctx context.Context, tx pgx.Tx, post JobPost, dates []time.Time) (int, error)
	List(ctx context.Context, tx pgx.Tx, tenantID string, filters Filters) ([]JobPost, int, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

func (r *PGRepository) CreateProject(ctx context.Context, tx pgx.Tx, p Project) (Project, error) {
	const query = `
		INSERT INTO projects (id, tenant_id, name, address, starts_on, ends_on, dw_project_id)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		RETURNING id, tenant_id, name, address, starts_on, ends_on, dw_project_id, created_at
	`

	row := tx.QueryRow(ctx, query,
		p.ID,
		p.TenantID,
		p.Name,
		nullableString(p.Address),
		p.StartsOn,
		p.EndsOn,
		p.DWProjectID,
	)
	return scanProject(row)
}

func (r *PGRepository) GetProject(ctx context.Context, tx pgx.Tx, id string) (Project, error) {
	const query = `
		SELECT id, tenant_id, name, address, starts_on, ends_on, dw_project_id, created_at
		FROM projects
		WHERE id = $1
	`

	p, err := scanProject(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		return Project{}, fmt.Errorf("jobpost: get project: %w", err)
	}
	return p, nil
}

func (r *PGRepository) CreateJobPost(ctx context.Context, tx pgx.Tx, post JobPost) (JobPost, error) {
	const query = `
		INSERT INTO job_posts (id, tenant_id, project_id, trade, title, work_date_start, work_date_end, slots_per_day, price_per_slot)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, tenant_id, project_id, trade, title, work_date_start, work_date_end, slots_per_day, price_per_slot, published, created_at, updated_at
	`

	row := tx.QueryRow(ctx, query,
		post.ID,
		post.TenantID,
		post.ProjectID,
		post.Trade,
		post.Title,
		post.WorkDateStart,
		post.WorkDateEnd,
		post.SlotsPerDay,
		post.PricePerSlot,
	)
	return scanJobPost(row)
}

func (r *PGRepository) GetJobPost(ctx context.Context, tx pgx.Tx, id string) (JobPost, error) {
	const query = `
		SELECT id, tenant_id, project_id, trade, title, work_date_start, work_date_end, slots_per_day, price_per_slot, published, created_at, updated_at
		FROM job_posts
		WHERE id = $1
	`

	post, err := scanJobPost(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JobPost{}, ErrNotFound
		}
		return JobPost{}, fmt.Errorf("jobpost: get job post: %w", err)
	}
	return post, nil
}

func (r *PGRepository) GetJobPostForUpdate(ctx context.Context, tx pgx.Tx, id string) (JobPost, error) {
	const query = `
		SELECT id, tenant_id, project_id, trade, title, work_date_start, work_date_end, slots_per_day, price_per_slot, published, created_at, updated_at
		FROM job_posts
		WHERE id = $1
		FOR UPDATE
	`

	post, err := scanJobPost(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JobPost{}, ErrNotFound
		}
		return JobPost{}, fmt.Errorf("jobpost: get for update: %w", err)
	}
	return post, nil
}

func (r *PGRepository) MarkPublished(ctx context.Context, tx pgx.Tx, id string) (JobPost, error) {
	const query = `
		UPDATE job_posts
		SET published = true,
		    updated_at = get_tx_timestamp()
		WHERE id = $1
		RETURNING id, tenant_id, project_id, trade, title, work_date_start, work_date_end, slots_per_day, price_per_slot, published, created_at, updated_at
	`

	post, err := scanJobPost(tx.QueryRow(ctx, query, id))
	if err != nil {
		return JobPost{}, fmt.Errorf("jobpost: mark published: %w", err)
	}
	return post, nil
}

// InsertSlots creates SlotsPerDay available slots per work date, numbered
// from 1.
func (r *PGRepository) InsertSlots(ctx context.Context, tx pgx.Tx, post JobPost, dates []time.Time) (int, error) {
	const query = `
		INSERT INTO job_slots (tenant_id, job_post_id, work_date, slot_no, status)
		VALUES ($1, $2, $3, $4, 'available')
	`

	perDay := post.SlotsPerDay
	if perDay < 1 {
		perDay = 1
	}

	inserted := 0
	for _, date := range dates {
		for slotNo := 1; slotNo <= perDay; slotNo++ {
			if _, err := tx.Exec(ctx, query, post.TenantID, post.ID, date, slotNo); err != nil {
				return inserted, fmt.Errorf("jobpost: insert slot %d for %s: %w", slotNo, date.Format("2006-01-02"), err)
			}
			inserted++
		}
	}
	return inserted, nil
}

func (r *PGRepository) List(ctx context.Context, tx pgx.Tx, tenantID string, filters Filters) ([]JobPost, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	base := `SELECT id, tenant_id, project_id, trade, title, work_date_start, work_date_end, slots_per_day, price_per_slot, published, created_at, updated_at
	         FROM job_posts`
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}

	if filters.ProjectID != "" {
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)+1))
		args = append(args, filters.ProjectID)
	}
	if filters.Trade != "" {
		where = append(where, fmt.Sprintf("trade = $%d", len(args)+1))
		args = append(args, filters.Trade)
	}
	if filters.PublishedOnly {
		where = append(where, "published = true")
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	limit := filters.PageSize
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`%s%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, limit, offset)
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("jobpost: query list: %w", err)
	}
	defer rows.Close()

	list := []JobPost{}
	for rows.Next() {
		post, err := scanJobPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("jobpost: scan list row: %w", err)
		}
		list = append(list, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("jobpost: iterate list: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM job_posts%s", whereClause)
	var total int
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("jobpost: count list: %w", err)
	}

	return list, total, nil
}

func scanProject(row pgx.Row) (Project, error) {
	var (
		p       Project
		address sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.Name,
		&address,
		&p.StartsOn,
		&p.EndsOn,
		&p.DWProjectID,
		&p.CreatedAt,
	)
	if err != nil {
		return Project{}, err
	}
	p.Address = address.String
	return p, nil
}

func scanJobPost(row pgx.Row) (JobPost, error) {
	var post JobPost
	return post, row.Scan(
		&post.ID,
		&post.TenantID,
		&post.ProjectID,
		&post.Trade,
		&post.Title,
		&post.WorkDateStart,
		&post.WorkDateEnd,
		&post.SlotsPerDay,
		&post.PricePerSlot,
		&post.Published,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
