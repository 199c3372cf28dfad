package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"siteflow/audit"
	"siteflow/auth"
	"siteflow/claim"
	"siteflow/jobpost"
	"siteflow/outbox"
	"siteflow/tenant"
)

const (
	testTenant  = "550e8400-e29b-41d4-a716-446655440001"
	testUser    = "550e8400-e29b-41d4-a716-446655440311"
	testSlot    = "550e8400-e29b-41d4-a716-446655440211"
	testCompany = "550e8400-e29b-41d4-a716-446655440302"
	testAdminKey = "op-key-123"
)

var testAuth = auth.NewService("test-secret")

func bearerToken(t *testing.T, role auth.Role) string {
	t.Helper()
	token, err := testAuth.IssueToken(auth.Identity{TenantID: testTenant, UserID: testUser, Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func newTestServer(claims claimEngine) *Server {
	return &Server{
		claims:   claims,
		auth:     testAuth,
		tenants:  &stubTenants{},
		operator: &stubOperator{key: testAdminKey},
		db:       &stubPinger{},
	}
}

func doRequest(server *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleClaim_Success(t *testing.T) {
	claimedAt := time.Date(2024, time.November, 5, 9, 0, 0, 0, time.UTC)
	userID := testUser
	engine := &stubClaimEngine{
		claimResult: claim.ClaimResult{
			Slot: claim.Slot{
				ID:       testSlot,
				Status:   claim.SlotClaimed,
				WorkDate: time.Date(2024, time.November, 5, 0, 0, 0, 0, time.UTC),
			},
			Claim: claim.Claim{
				ID:        "550e8400-e29b-41d4-a716-446655440501",
				CompanyID: testCompany,
				UserID:    &userID,
				ClaimedAt: claimedAt,
			},
		},
	}
	server := newTestServer(engine)

	body := strings.NewReader(fmt.Sprintf(`{"slotId":%q,"companyId":%q,"requestId":"r-1"}`, testSlot, testCompany))
	req := httptest.NewRequest(http.MethodPost, "/claims", body)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleCompany))

	rec := doRequest(server, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp claimResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Slot.ID != testSlot || resp.Slot.Status != claim.SlotClaimed {
		t.Fatalf("unexpected slot payload: %+v", resp.Slot)
	}
	if resp.Slot.WorkDate != "2024-11-05" {
		t.Errorf("work_date = %q, want 2024-11-05", resp.Slot.WorkDate)
	}
	if resp.Claim.CompanyID != testCompany {
		t.Errorf("company_id = %q, want %q", resp.Claim.CompanyID, testCompany)
	}
	if resp.Claim.ClaimedAt != "2024-11-05T09:00:00Z" {
		t.Errorf("claimed_at = %q, want 2024-11-05T09:00:00Z", resp.Claim.ClaimedAt)
	}

	if engine.claimParams.TenantID != testTenant {
		t.Errorf("tenant from token = %q, want %q", engine.claimParams.TenantID, testTenant)
	}
	if engine.claimParams.UserID == nil || *engine.claimParams.UserID != testUser {
		t.Errorf("user from token = %v, want %q", engine.claimParams.UserID, testUser)
	}
	if engine.claimParams.RequestID != "r-1" {
		t.Errorf("request id = %q, want r-1", engine.claimParams.RequestID)
	}
}

func TestHandleClaim_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("%w: slotId must be a UUID", claim.ErrValidation), http.StatusBadRequest, claim.CodeValidation},
		{"not found", claim.ErrNotFound, http.StatusNotFound, claim.CodeNotFound},
		{"already claimed", claim.ErrAlreadyClaimed, http.StatusConflict, claim.CodeAlreadyClaimed},
		{"internal", errors.New("boom"), http.StatusInternalServerError, claim.CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(&stubClaimEngine{claimErr: tc.err})

			body := strings.NewReader(fmt.Sprintf(`{"slotId":%q,"companyId":%q,"requestId":"r-1"}`, testSlot, testCompany))
			req := httptest.NewRequest(http.MethodPost, "/claims", body)
			req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleCompany))

			rec := doRequest(server, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Code != tc.code {
				t.Errorf("code = %q, want %q", resp.Code, tc.code)
			}
			if tc.code == claim.CodeInternal && strings.Contains(resp.Message, "boom") {
				t.Error("internal error details must not leak to callers")
			}
		})
	}
}

func TestHandleClaim_RejectsUnknownFields(t *testing.T) {
	server := newTestServer(&stubClaimEngine{})

	body := strings.NewReader(`{"slotId":"x","companyId":"y","requestId":"r","bogus":true}`)
	req := httptest.NewRequest(http.MethodPost, "/claims", body)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleCompany))

	if rec := doRequest(server, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleClaim_MissingToken(t *testing.T) {
	server := newTestServer(&stubClaimEngine{})

	req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader(`{}`))

	if rec := doRequest(server, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleClaim_GarbageToken(t *testing.T) {
	server := newTestServer(&stubClaimEngine{})

	req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	if rec := doRequest(server, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleClaim_InactiveTenant(t *testing.T) {
	server := newTestServer(&stubClaimEngine{})
	server.tenants = &stubTenants{err: tenant.ErrInactive}

	req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleCompany))

	if rec := doRequest(server, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleCancelClaim_Success(t *testing.T) {
	cancelledAt := time.Date(2024, time.November, 6, 10, 0, 0, 0, time.UTC)
	reason := "weather"
	engine := &stubClaimEngine{
		cancelResult: claim.CancelResult{Slot: claim.Slot{
			ID:           testSlot,
			Status:       claim.SlotCancelled,
			CancelledAt:  &cancelledAt,
			CancelReason: &reason,
		}},
	}
	server := newTestServer(engine)

	body := strings.NewReader(fmt.Sprintf(`{"slotId":%q,"reason":"weather"}`, testSlot))
	req := httptest.NewRequest(http.MethodPost, "/cancel-claim", body)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleCompany))

	rec := doRequest(server, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	slot := payload["slot"]
	if slot["status"] != claim.SlotCancelled {
		t.Errorf("status = %v, want cancelled", slot["status"])
	}
	if slot["canceled_at"] != "2024-11-06T10:00:00Z" {
		t.Errorf("canceled_at = %v, want 2024-11-06T10:00:00Z", slot["canceled_at"])
	}
	if slot["cancel_reason"] != "weather" {
		t.Errorf("cancel_reason = %v, want weather", slot["cancel_reason"])
	}
}

func TestHandleCancelClaim_Conflicts(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{claim.ErrSlotNotClaimed, claim.CodeSlotNotClaimed},
		{claim.ErrAlreadyCancelled, claim.CodeAlreadyCancelled},
		{claim.ErrAlreadyCompleted, claim.CodeAlreadyCompleted},
		{claim.ErrCancelFailed, claim.CodeCancelFailed},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			server := newTestServer(&stubClaimEngine{cancelErr: tc.err})

			body := strings.NewReader(fmt.Sprintf(`{"slotId":%q,"reason":"weather"}`, testSlot))
			req := httptest.NewRequest(http.MethodPost, "/cancel-claim", body)
			req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleCompany))

			rec := doRequest(server, req)

			if rec.Code != http.StatusConflict {
				t.Fatalf("expected 409, got %d", rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Code != tc.code {
				t.Errorf("code = %q, want %q", resp.Code, tc.code)
			}
		})
	}
}

func TestHandleAlternatives_Success(t *testing.T) {
	engine := &stubClaimEngine{
		alternatives: []claim.Alternative{
			{
				SlotID:   "550e8400-e29b-41d4-a716-446655440212",
				WorkDate: time.Date(2024, time.November, 6, 0, 0, 0, 0, time.UTC),
				JobPost: claim.AlternativeJobPost{
					ID:    "550e8400-e29b-41d4-a716-446655440201",
					Title: "Interior finishing",
					Trade: "interior",
				},
			},
		},
	}
	server := newTestServer(engine)

	req := httptest.NewRequest(http.MethodGet, "/alternatives?slotId="+testSlot+"&days=5", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleCompany))

	rec := doRequest(server, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp alternativesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Alternatives) != 1 {
		t.Fatalf("alternatives = %d, want 1", len(resp.Alternatives))
	}
	alt := resp.Alternatives[0]
	if alt.WorkDate != "2024-11-06" || alt.JobPost.Trade != "interior" {
		t.Fatalf("unexpected alternative payload: %+v", alt)
	}

	if engine.altParams.Days != 5 {
		t.Errorf("days = %d, want 5", engine.altParams.Days)
	}
	if engine.altParams.SlotID != testSlot {
		t.Errorf("slotId = %q, want %q", engine.altParams.SlotID, testSlot)
	}
}

func TestHandleAlternatives_BadDays(t *testing.T) {
	server := newTestServer(&stubClaimEngine{})

	req := httptest.NewRequest(http.MethodGet, "/alternatives?slotId="+testSlot+"&days=soon", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleCompany))

	if rec := doRequest(server, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	server := newTestServer(&stubClaimEngine{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	if rec := doRequest(server, req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	server.db = &stubPinger{err: errors.New("connection refused")}
	if rec := doRequest(server, req); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleCreateProject_ForbidCompanyRole(t *testing.T) {
	server := newTestServer(&stubClaimEngine{})

	body := strings.NewReader(`{"name":"Riverside Tower"}`)
	req := httptest.NewRequest(http.MethodPost, "/projects", body)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleCompany))

	if rec := doRequest(server, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleCreateJobPost_Success(t *testing.T) {
	posts := &stubPosts{
		post: jobpost.JobPost{
			ID:            "550e8400-e29b-41d4-a716-446655440201",
			ProjectID:     "550e8400-e29b-41d4-a716-446655440101",
			Trade:         "interior",
			Title:         "Interior finishing",
			WorkDateStart: time.Date(2024, time.November, 5, 0, 0, 0, 0, time.UTC),
			WorkDateEnd:   time.Date(2024, time.November, 7, 0, 0, 0, 0, time.UTC),
			SlotsPerDay:   2,
		},
	}
	server := newTestServer(&stubClaimEngine{})
	server.posts = posts

	body := strings.NewReader(`{"projectId":"550e8400-e29b-41d4-a716-446655440101","trade":"interior","title":"Interior finishing","workDateStart":"2024-11-05","workDateEnd":"2024-11-07","slotsPerDay":2}`)
	req := httptest.NewRequest(http.MethodPost, "/job-posts", body)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleTenantAdmin))

	rec := doRequest(server, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if posts.lastCreate.TenantID != testTenant {
		t.Errorf("tenant = %q, want %q", posts.lastCreate.TenantID, testTenant)
	}
	if !posts.lastCreate.WorkDateStart.Equal(time.Date(2024, time.November, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected work date start %s", posts.lastCreate.WorkDateStart)
	}
	if posts.lastCreate.SlotsPerDay != 2 {
		t.Errorf("slots per day = %d, want 2", posts.lastCreate.SlotsPerDay)
	}

	var resp jobPostResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.WorkDateStart != "2024-11-05" || resp.WorkDateEnd != "2024-11-07" {
		t.Fatalf("unexpected window: %+v", resp)
	}
	if resp.SlotsPerDay != 2 {
		t.Errorf("response slots per day = %d, want 2", resp.SlotsPerDay)
	}
}

func TestHandleAdminRequeue(t *testing.T) {
	admin := &stubOutboxAdmin{
		event: outbox.Event{ID: 7, EventID: "ev-7", EventName: outbox.EventClaimConfirmed, Status: outbox.StatusPending},
	}
	server := newTestServer(&stubClaimEngine{})
	server.outbox = admin

	req := httptest.NewRequest(http.MethodPost, "/admin/outbox/7/requeue", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)

	rec := doRequest(server, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if admin.requeued != 7 {
		t.Errorf("requeued id = %d, want 7", admin.requeued)
	}

	var resp outboxEventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != outbox.StatusPending {
		t.Errorf("status = %q, want pending", resp.Status)
	}
}

func TestHandleAdminRequeue_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", outbox.ErrNotFound, http.StatusNotFound},
		{"not parked", outbox.ErrNotParked, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(&stubClaimEngine{})
			server.outbox = &stubOutboxAdmin{requeueErr: tc.err}

			req := httptest.NewRequest(http.MethodPost, "/admin/outbox/7/requeue", nil)
			req.Header.Set("X-Admin-Key", testAdminKey)

			if rec := doRequest(server, req); rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestHandleAdminRequeue_RejectsBadKey(t *testing.T) {
	server := newTestServer(&stubClaimEngine{})
	server.outbox = &stubOutboxAdmin{}

	req := httptest.NewRequest(http.MethodPost, "/admin/outbox/7/requeue", nil)
	req.Header.Set("X-Admin-Key", "wrong")

	if rec := doRequest(server, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleAdminOutbox_List(t *testing.T) {
	admin := &stubOutboxAdmin{
		events: []outbox.Event{
			{ID: 1, EventID: "ev-1", EventName: outbox.EventClaimConfirmed, Status: outbox.StatusFailed, RetryCount: 6},
		},
		counts: map[string]int64{"pending": 3, "failed": 1},
	}
	server := newTestServer(&stubClaimEngine{})
	server.outbox = admin

	req := httptest.NewRequest(http.MethodGet, "/admin/outbox", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)

	rec := doRequest(server, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if admin.listedStatus != outbox.StatusFailed {
		t.Errorf("default status = %q, want failed", admin.listedStatus)
	}

	var payload struct {
		Counts map[string]int64      `json:"counts"`
		Items  []outboxEventResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Counts["pending"] != 3 || len(payload.Items) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleAdminAudit(t *testing.T) {
	viewer := &stubAuditViewer{
		entries: []audit.Entry{{
			ID:          1,
			TenantID:    testTenant,
			ActorRole:   audit.RoleUser,
			Action:      audit.ActionClaim,
			TargetTable: "job_slots",
			TargetID:    testSlot,
			CreatedAt:   time.Date(2024, time.November, 5, 9, 0, 0, 0, time.UTC),
		}},
	}
	server := newTestServer(&stubClaimEngine{})
	server.auditLog = viewer

	req := httptest.NewRequest(http.MethodGet, "/admin/audit", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, auth.RoleOperator))

	rec := doRequest(server, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if viewer.listedTenant != testTenant {
		t.Errorf("tenant = %q, want %q", viewer.listedTenant, testTenant)
	}

	var payload struct {
		Items []auditEntryResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Action != audit.ActionClaim {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleAdminAudit_RequiresBearer(t *testing.T) {
	server := newTestServer(&stubClaimEngine{})
	server.auditLog = &stubAuditViewer{}

	req := httptest.NewRequest(http.MethodGet, "/admin/audit", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)

	if rec := doRequest(server, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

type stubClaimEngine struct {
	claimResult  claim.ClaimResult
	claimErr     error
	cancelResult claim.CancelResult
	cancelErr    error
	alternatives []claim.Alternative
	altErr       error

	claimParams  claim.ClaimParams
	cancelParams claim.CancelParams
	altParams    claim.AlternativesParams
}

func (s *stubClaimEngine) Claim(_ context.Context, params claim.ClaimParams) (claim.ClaimResult, error) {
	s.claimParams = params
	return s.claimResult, s.claimErr
}

func (s *stubClaimEngine) Cancel(_ context.Context, params claim.CancelParams) (claim.CancelResult, error) {
	s.cancelParams = params
	return s.cancelResult, s.cancelErr
}

func (s *stubClaimEngine) Alternatives(_ context.Context, params claim.AlternativesParams) ([]claim.Alternative, error) {
	s.altParams = params
	return s.alternatives, s.altErr
}

type stubPosts struct {
	project jobpost.Project
	post    jobpost.JobPost
	publish jobpost.PublishResult
	err     error

	lastCreate jobpost.CreateJobPostParams
}

func (s *stubPosts) CreateProject(_ context.Context, _ jobpost.CreateProjectParams) (jobpost.Project, error) {
	return s.project, s.err
}

func (s *stubPosts) CreateJobPost(_ context.Context, params jobpost.CreateJobPostParams) (jobpost.JobPost, error) {
	s.lastCreate = params
	return s.post, s.err
}

func (s *stubPosts) Publish(_ context.Context, _ jobpost.PublishParams) (jobpost.PublishResult, error) {
	return s.publish, s.err
}

func (s *stubPosts) Get(_ context.Context, _, _ string) (jobpost.JobPost, error) {
	return s.post, s.err
}

func (s *stubPosts) List(_ context.Context, _ string, _ jobpost.Filters) (jobpost.ListResult, error) {
	if s.err != nil {
		return jobpost.ListResult{}, s.err
	}
	return jobpost.ListResult{Items: []jobpost.JobPost{s.post}, Total: 1}, nil
}

type stubOutboxAdmin struct {
	events     []outbox.Event
	event      outbox.Event
	counts     map[string]int64
	requeueErr error

	listedStatus string
	requeued     int64
}

func (s *stubOutboxAdmin) ListEvents(_ context.Context, status string, _ int) ([]outbox.Event, error) {
	s.listedStatus = status
	return s.events, nil
}

func (s *stubOutboxAdmin) GetEvent(_ context.Context, _ int64) (outbox.Event, error) {
	return s.event, nil
}

func (s *stubOutboxAdmin) Counts(_ context.Context) (map[string]int64, error) {
	if s.counts == nil {
		return map[string]int64{}, nil
	}
	return s.counts, nil
}

func (s *stubOutboxAdmin) Requeue(_ context.Context, id int64) (outbox.Event, error) {
	if s.requeueErr != nil {
		return outbox.Event{}, s.requeueErr
	}
	s.requeued = id
	return s.event, nil
}

type stubAuditViewer struct {
	entries []audit.Entry

	listedTenant string
}

func (s *stubAuditViewer) List(_ context.Context, tenantID string, _ int) ([]audit.Entry, error) {
	s.listedTenant = tenantID
	return s.entries, nil
}

type stubTenants struct {
	err error
}

func (s *stubTenants) RequireActive(_ context.Context, id string) (tenant.Tenant, error) {
	if s.err != nil {
		return tenant.Tenant{}, s.err
	}
	return tenant.Tenant{ID: id, Active: true, IntegrationMode: tenant.ModeStandalone}, nil
}

type stubOperator struct {
	key string
}

func (s *stubOperator) Verify(key string) error {
	if key == "" || key != s.key {
		return auth.ErrOperatorKeyMismatch
	}
	return nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error {
	return s.err
}
