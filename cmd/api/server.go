package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"siteflow/audit"
	"siteflow/auth"
	"siteflow/claim"
	"siteflow/jobpost"
	"siteflow/outbox"
	"siteflow/tenant"
)

type claimEngine interface {
	Claim(ctx context.Context, params claim.ClaimParams) (claim.ClaimResult, error)
	Cancel(ctx context.Context, params claim.CancelParams) (claim.CancelResult, error)
	Alternatives(ctx context.Context, params claim.AlternativesParams) ([]claim.Alternative, error)
}

type jobPostService interface {
	CreateProject(ctx context.Context, params jobpost.CreateProjectParams) (jobpost.Project, error)
	CreateJobPost(ctx context.Context, params jobpost.CreateJobPostParams) (jobpost.JobPost, error)
	Publish(ctx context.Context, params jobpost.PublishParams) (jobpost.PublishResult, error)
	Get(ctx context.Context, tenantID, postID string) (jobpost.JobPost, error)
	List(ctx context.Context, tenantID string, filters jobpost.Filters) (jobpost.ListResult, error)
}

type outboxAdmin interface {
	ListEvents(ctx context.Context, status string, limit int) ([]outbox.Event, error)
	GetEvent(ctx context.Context, id int64) (outbox.Event, error)
	Counts(ctx context.Context) (map[string]int64, error)
	Requeue(ctx context.Context, id int64) (outbox.Event, error)
}

type auditViewer interface {
	List(ctx context.Context, tenantID string, limit int) ([]audit.Entry, error)
}

type tokenVerifier interface {
	VerifyToken(token string) (auth.Identity, error)
}

type tenantRegistry interface {
	RequireActive(ctx context.Context, id string) (tenant.Tenant, error)
}

type operatorGuard interface {
	Verify(key string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP surface to the domain services.
type Server struct {
	claims   claimEngine
	posts    jobPostService
	outbox   outboxAdmin
	auditLog auditViewer
	auth     tokenVerifier
	tenants  tenantRegistry
	operator operatorGuard
	db       pinger
	logger   *zap.Logger
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.logger != nil {
		r.Use(requestLogger(s.logger))
	}

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/claims", s.handleClaim)
		r.Post("/cancel-claim", s.handleCancelClaim)
		r.Get("/alternatives", s.handleAlternatives)

		r.Post("/projects", s.handleCreateProject)
		r.Post("/job-posts", s.handleCreateJobPost)
		r.Get("/job-posts", s.handleListJobPosts)
		r.Get("/job-posts/{postID}", s.handleGetJobPost)
		r.Post("/job-posts/{postID}/publish", s.handlePublishJobPost)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireOperator)

		r.Get("/admin/outbox", s.handleAdminOutbox)
		r.Get("/admin/outbox/{id}", s.handleAdminOutboxEvent)
		r.Post("/admin/outbox/{id}/requeue", s.handleAdminRequeue)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/admin/audit", s.handleAdminAudit)
		})
	})

	return r
}

type claimBody struct {
	SlotID    string `json:"slotId"`
	CompanyID string `json:"companyId"`
	RequestID string `json:"requestId"`
}

type slotResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	WorkDate string `json:"work_date"`
}

type claimDetailResponse struct {
	ID        string  `json:"id"`
	CompanyID string  `json:"company_id"`
	UserID    *string `json:"user_id"`
	ClaimedAt string  `json:"claimed_at"`
}

type claimResponse struct {
	Slot  slotResponse        `json:"slot"`
	Claim claimDetailResponse `json:"claim"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	var body claimBody
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "malformed request body")
		return
	}

	params := claim.ClaimParams{
		TenantID:  id.TenantID,
		SlotID:    body.SlotID,
		CompanyID: body.CompanyID,
		RequestID: body.RequestID,
		ActorRole: string(id.Role),
	}
	if id.UserID != "" {
		params.UserID = &id.UserID
	}

	result, err := s.claims.Claim(r.Context(), params)
	if err != nil {
		s.respondClaimError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, claimResponse{
		Slot: slotResponse{
			ID:       result.Slot.ID,
			Status:   result.Slot.Status,
			WorkDate: result.Slot.WorkDate.Format("2006-01-02"),
		},
		Claim: claimDetailResponse{
			ID:        result.Claim.ID,
			CompanyID: result.Claim.CompanyID,
			UserID:    result.Claim.UserID,
			ClaimedAt: result.Claim.ClaimedAt.UTC().Format(time.RFC3339),
		},
	})
}

type cancelBody struct {
	SlotID string `json:"slotId"`
	Reason string `json:"reason"`
}

type cancelledSlotResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CanceledAt   string `json:"canceled_at"`
	CancelReason string `json:"cancel_reason"`
}

type cancelResponse struct {
	Slot cancelledSlotResponse `json:"slot"`
}

func (s *Server) handleCancelClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	var body cancelBody
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "malformed request body")
		return
	}

	params := claim.CancelParams{
		TenantID:  id.TenantID,
		SlotID:    body.SlotID,
		Reason:    body.Reason,
		ActorRole: string(id.Role),
	}
	if id.UserID != "" {
		params.UserID = &id.UserID
	}

	result, err := s.claims.Cancel(r.Context(), params)
	if err != nil {
		s.respondClaimError(w, err)
		return
	}

	resp := cancelResponse{Slot: cancelledSlotResponse{
		ID:     result.Slot.ID,
		Status: result.Slot.Status,
	}}
	if result.Slot.CancelledAt != nil {
		resp.Slot.CanceledAt = result.Slot.CancelledAt.UTC().Format(time.RFC3339)
	}
	if result.Slot.CancelReason != nil {
		resp.Slot.CancelReason = *result.Slot.CancelReason
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type alternativeResponse struct {
	SlotID   string                  `json:"slot_id"`
	WorkDate string                  `json:"work_date"`
	JobPost  alternativePostResponse `json:"job_post"`
}

type alternativePostResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Trade string `json:"trade"`
}

type alternativesResponse struct {
	Alternatives []alternativeResponse `json:"alternatives"`
}

func (s *Server) handleAlternatives(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "days must be an integer")
			return
		}
		days = parsed
	}

	alternatives, err := s.claims.Alternatives(r.Context(), claim.AlternativesParams{
		TenantID: id.TenantID,
		SlotID:   r.URL.Query().Get("slotId"),
		Days:     days,
	})
	if err != nil {
		s.respondClaimError(w, err)
		return
	}

	resp := alternativesResponse{Alternatives: make([]alternativeResponse, 0, len(alternatives))}
	for _, alt := range alternatives {
		resp.Alternatives = append(resp.Alternatives, alternativeResponse{
			SlotID:   alt.SlotID,
			WorkDate: alt.WorkDate.Format("2006-01-02"),
			JobPost: alternativePostResponse{
				ID:    alt.JobPost.ID,
				Title: alt.JobPost.Title,
				Trade: alt.JobPost.Trade,
			},
		})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type projectBody struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	StartsOn    string  `json:"startsOn"`
	EndsOn      string  `json:"endsOn"`
	DWProjectID *string `json:"dwProjectId"`
}

type projectResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	StartsOn    *string `json:"starts_on"`
	EndsOn      *string `json:"ends_on"`
	DWProjectID *string `json:"dw_project_id"`
	CreatedAt   string  `json:"created_at"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}
	if !s.requireRole(w, id, auth.RoleTenantAdmin) {
		return
	}

	var body projectBody
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "malformed request body")
		return
	}

	params := jobpost.CreateProjectParams{
		TenantID:    id.TenantID,
		Name:        body.Name,
		Address:     body.Address,
		DWProjectID: body.DWProjectID,
		Actor:       jobpost.Actor{UserID: id.UserID, Role: string(id.Role)},
	}
	var err error
	if params.StartsOn, err = parseOptionalDate(body.StartsOn); err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "startsOn must be YYYY-MM-DD")
		return
	}
	if params.EndsOn, err = parseOptionalDate(body.EndsOn); err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "endsOn must be YYYY-MM-DD")
		return
	}

	project, err := s.posts.CreateProject(r.Context(), params)
	if err != nil {
		s.respondJobPostError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, projectResponseFrom(project))
}

type jobPostBody struct {
	ProjectID     string `json:"projectId"`
	Trade         string `json:"trade"`
	Title         string `json:"title"`
	WorkDateStart string `json:"workDateStart"`
	WorkDateEnd   string `json:"workDateEnd"`
	SlotsPerDay   int    `json:"slotsPerDay"`
	PricePerSlot  *int64 `json:"pricePerSlot"`
}

type jobPostResponse struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Trade         string `json:"trade"`
	Title         string `json:"title"`
	WorkDateStart string `json:"work_date_start"`
	WorkDateEnd   string `json:"work_date_end"`
	SlotsPerDay   int    `json:"slots_per_day"`
	PricePerSlot  *int64 `json:"price_per_slot"`
	Published     bool   `json:"published"`
	CreatedAt     string `json:"created_at"`
}

func (s *Server) handleCreateJobPost(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}
	if !s.requireRole(w, id, auth.RoleTenantAdmin) {
		return
	}

	var body jobPostBody
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "malformed request body")
		return
	}

	start, err := time.Parse("2006-01-02", body.WorkDateStart)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "workDateStart must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", body.WorkDateEnd)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "workDateEnd must be YYYY-MM-DD")
		return
	}

	post, err := s.posts.CreateJobPost(r.Context(), jobpost.CreateJobPostParams{
		TenantID:      id.TenantID,
		ProjectID:     body.ProjectID,
		Trade:         body.Trade,
		Title:         body.Title,
		WorkDateStart: start,
		WorkDateEnd:   end,
		SlotsPerDay:   body.SlotsPerDay,
		PricePerSlot:  body.PricePerSlot,
		Actor:         jobpost.Actor{UserID: id.UserID, Role: string(id.Role)},
	})
	if err != nil {
		s.respondJobPostError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, jobPostResponseFrom(post))
}

type publishResponse struct {
	Post         jobPostResponse `json:"post"`
	SlotsCreated int             `json:"slots_created"`
}

func (s *Server) handlePublishJobPost(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}
	if !s.requireRole(w, id, auth.RoleTenantAdmin) {
		return
	}

	result, err := s.posts.Publish(r.Context(), jobpost.PublishParams{
		TenantID: id.TenantID,
		PostID:   chi.URLParam(r, "postID"),
		Actor:    jobpost.Actor{UserID: id.UserID, Role: string(id.Role)},
	})
	if err != nil {
		s.respondJobPostError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, publishResponse{
		Post:         jobPostResponseFrom(result.Post),
		SlotsCreated: result.SlotsCreated,
	})
}

func (s *Server) handleGetJobPost(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	post, err := s.posts.Get(r.Context(), id.TenantID, chi.URLParam(r, "postID"))
	if err != nil {
		s.respondJobPostError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, jobPostResponseFrom(post))
}

func (s *Server) handleListJobPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	q := r.URL.Query()
	filters := jobpost.Filters{
		ProjectID:     q.Get("projectId"),
		Trade:         q.Get("trade"),
		PublishedOnly: q.Get("published") == "true",
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("pageSize"))

	result, err := s.posts.List(r.Context(), id.TenantID, filters)
	if err != nil {
		s.respondJobPostError(w, err)
		return
	}

	items := make([]jobPostResponse, 0, len(result.Items))
	for _, post := range result.Items {
		items = append(items, jobPostResponseFrom(post))
	}
	s.respondJSON(w, http.StatusOK, struct {
		Items []jobPostResponse `json:"items"`
		Total int               `json:"total"`
	}{Items: items, Total: result.Total})
}

type outboxEventResponse struct {
	ID            int64   `json:"id"`
	EventID       string  `json:"event_id"`
	EventName     string  `json:"event_name"`
	Target        string  `json:"target"`
	Status        string  `json:"status"`
	RetryCount    int     `json:"retry_count"`
	NextAttemptAt string  `json:"next_attempt_at"`
	LastError     *string `json:"last_error"`
	CreatedAt     string  `json:"created_at"`
	SentAt        *string `json:"sent_at"`
}

func (s *Server) handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = outbox.StatusFailed
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := s.outbox.ListEvents(r.Context(), status, limit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, err.Error())
		return
	}
	counts, err := s.outbox.Counts(r.Context())
	if err != nil {
		s.respondInternal(w, err)
		return
	}

	items := make([]outboxEventResponse, 0, len(events))
	for _, ev := range events {
		items = append(items, outboxEventResponseFrom(ev))
	}
	s.respondJSON(w, http.StatusOK, struct {
		Counts map[string]int64      `json:"counts"`
		Items  []outboxEventResponse `json:"items"`
	}{Counts: counts, Items: items})
}

func (s *Server) handleAdminOutboxEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "event id must be an integer")
		return
	}

	event, err := s.outbox.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, outbox.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, claim.CodeNotFound, "event not found")
			return
		}
		s.respondInternal(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, outboxEventResponseFrom(event))
}

func (s *Server) handleAdminRequeue(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, "event id must be an integer")
		return
	}

	event, err := s.outbox.Requeue(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, outbox.ErrNotFound):
			s.respondError(w, http.StatusNotFound, claim.CodeNotFound, "event not found")
		case errors.Is(err, outbox.ErrNotParked):
			s.respondError(w, http.StatusConflict, "NOT_PARKED", "only failed events can be requeued")
		default:
			s.respondInternal(w, err)
		}
		return
	}
	s.respondJSON(w, http.StatusOK, outboxEventResponseFrom(event))
}

type auditEntryResponse struct {
	ID          int64          `json:"id"`
	TenantID    string         `json:"tenant_id"`
	ActorUserID *string        `json:"actor_user_id"`
	ActorRole   string         `json:"actor_role"`
	Action      string         `json:"action"`
	TargetTable string         `json:"target_table"`
	TargetID    string         `json:"target_id"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   string         `json:"created_at"`
}

func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.auditLog.List(r.Context(), id.TenantID, limit)
	if err != nil {
		s.respondInternal(w, err)
		return
	}

	items := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, auditEntryResponse{
			ID:          entry.ID,
			TenantID:    entry.TenantID,
			ActorUserID: entry.ActorUserID,
			ActorRole:   entry.ActorRole,
			Action:      entry.Action,
			TargetTable: entry.TargetTable,
			TargetID:    entry.TargetID,
			Payload:     entry.Payload,
			CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.respondJSON(w, http.StatusOK, struct {
		Items []auditEntryResponse `json:"items"`
	}{Items: items})
}

func projectResponseFrom(p jobpost.Project) projectResponse {
	resp := projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Address:     p.Address,
		DWProjectID: p.DWProjectID,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.StartsOn != nil {
		v := p.StartsOn.Format("2006-01-02")
		resp.StartsOn = &v
	}
	if p.EndsOn != nil {
		v := p.EndsOn.Format("2006-01-02")
		resp.EndsOn = &v
	}
	return resp
}

func jobPostResponseFrom(post jobpost.JobPost) jobPostResponse {
	return jobPostResponse{
		ID:            post.ID,
		ProjectID:     post.ProjectID,
		Trade:         post.Trade,
		Title:         post.Title,
		WorkDateStart: post.WorkDateStart.Format("2006-01-02"),
		WorkDateEnd:   post.WorkDateEnd.Format("2006-01-02"),
		SlotsPerDay:   post.SlotsPerDay,
		PricePerSlot:  post.PricePerSlot,
		Published:     post.Published,
		CreatedAt:     post.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func outboxEventResponseFrom(ev outbox.Event) outboxEventResponse {
	resp := outboxEventResponse{
		ID:            ev.ID,
		EventID:       ev.EventID,
		EventName:     ev.EventName,
		Target:        ev.Target,
		Status:        ev.Status,
		RetryCount:    ev.RetryCount,
		NextAttemptAt: ev.NextAttemptAt.UTC().Format(time.RFC3339),
		LastError:     ev.LastError,
		CreatedAt:     ev.CreatedAt.UTC().Format(time.RFC3339),
	}
	if ev.SentAt != nil {
		v := ev.SentAt.UTC().Format(time.RFC3339)
		resp.SentAt = &v
	}
	return resp
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) requireRole(w http.ResponseWriter, id auth.Identity, roles ...auth.Role) bool {
	for _, role := range roles {
		if id.Role == role {
			return true
		}
	}
	s.respondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
	return false
}

func statusForClaimCode(code string) int {
	switch code {
	case claim.CodeValidation:
		return http.StatusBadRequest
	case claim.CodeNotFound:
		return http.StatusNotFound
	case claim.CodeAlreadyClaimed, claim.CodeSlotNotClaimed, claim.CodeAlreadyCancelled,
		claim.CodeAlreadyCompleted, claim.CodeCancelFailed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondClaimError(w http.ResponseWriter, err error) {
	code := claim.CodeOf(err)
	if code == claim.CodeInternal {
		s.respondInternal(w, err)
		return
	}
	s.respondError(w, statusForClaimCode(code), code, err.Error())
}

func (s *Server) respondJobPostError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobpost.ErrInvalid):
		s.respondError(w, http.StatusBadRequest, claim.CodeValidation, err.Error())
	case errors.Is(err, jobpost.ErrNotFound), errors.Is(err, jobpost.ErrProjectNotFound):
		s.respondError(w, http.StatusNotFound, claim.CodeNotFound, err.Error())
	default:
		s.respondInternal(w, err)
	}
}

func (s *Server) respondInternal(w http.ResponseWriter, err error) {
	if s.logger != nil {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, http.StatusInternalServerError, claim.CodeInternal, "internal error")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{Code: code, Message: message})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && s.logger != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}
