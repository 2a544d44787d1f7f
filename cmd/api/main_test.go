package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estateflow/access"
	"estateflow/agency"
	"estateflow/auth"
	"estateflow/contact"
	"estateflow/lead"
	"estateflow/notification"
	"estateflow/property"
)

func withActor(r *http.Request, actor auth.Actor) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKeyActor, actor))
}

func testAdmin() auth.Actor {
	agencyID := "agency-1"
	return auth.Actor{ID: "admin-1", Role: auth.RoleAgencyAdmin, AgencyID: &agencyID, Active: true}
}

func testCustomer() auth.Actor {
	return auth.Actor{ID: "customer-1", Role: auth.RoleCustomer, Active: true}
}

func newAgencyService(repo *stubAgencyRepo) *agency.Service {
	return agency.NewService(repo, access.NewEvaluator(access.DefaultPolicy(), nil))
}

type stubAgencyRepo struct {
	profile  agency.Profile
	profiles []agency.Profile
	err      error
}

func (s *stubAgencyRepo) GetByID(_ context.Context, _ string) (agency.Profile, error) {
	return s.profile, s.err
}

func (s *stubAgencyRepo) List(_ context.Context, limit int) ([]agency.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit <= 0 || limit > len(s.profiles) {
		limit = len(s.profiles)
	}
	out := make([]agency.Profile, limit)
	copy(out, s.profiles[:limit])
	return out, nil
}

func (s *stubAgencyRepo) AgentBelongs(_ context.Context, _, _ string) (bool, error) {
	return false, s.err
}

type stubPropertyService struct {
	prop  property.Property
	props []property.Property
	note  property.Note
	err   error
}

func (s *stubPropertyService) Create(_ context.Context, _ auth.Actor, _ property.CreateParams) (property.Property, error) {
	return s.prop, s.err
}

func (s *stubPropertyService) Transition(_ context.Context, _ auth.Actor, _ string, _ property.Status, _ *string) (property.Property, error) {
	return s.prop, s.err
}

func (s *stubPropertyService) UpdateContent(_ context.Context, _ auth.Actor, _ string, _ property.ContentUpdate) (property.Property, error) {
	return s.prop, s.err
}

func (s *stubPropertyService) AppendNote(_ context.Context, _ auth.Actor, _, _ string) (property.Note, error) {
	return s.note, s.err
}

func (s *stubPropertyService) ListNotes(_ context.Context, _ auth.Actor, _ string) ([]property.Note, error) {
	return nil, s.err
}

func (s *stubPropertyService) Get(_ context.Context, _ auth.Actor, _ string) (property.Property, error) {
	return s.prop, s.err
}

func (s *stubPropertyService) List(_ context.Context, _ auth.Actor, _ property.Filters) ([]property.Property, int, error) {
	return s.props, len(s.props), s.err
}

type stubLeadService struct {
	lead  lead.Lead
	leads []lead.Lead
	err   error
}

func (s *stubLeadService) Create(_ context.Context, _ auth.Actor, _ lead.CreateParams) (lead.Lead, error) {
	return s.lead, s.err
}

func (s *stubLeadService) Approve(_ context.Context, _ auth.Actor, _ string) (lead.Lead, error) {
	return s.lead, s.err
}

func (s *stubLeadService) Reassign(_ context.Context, _ auth.Actor, _, _ string) (lead.Lead, error) {
	return s.lead, s.err
}

func (s *stubLeadService) UpdateStatus(_ context.Context, _ auth.Actor, _ string, _ lead.Status) (lead.Lead, error) {
	return s.lead, s.err
}

func (s *stubLeadService) AppendNote(_ context.Context, _ auth.Actor, _, _ string) (lead.Note, error) {
	return lead.Note{}, s.err
}

func (s *stubLeadService) AppendCommunication(_ context.Context, _ auth.Actor, _ string, _ lead.Channel, _ string) (lead.Communication, error) {
	return lead.Communication{}, s.err
}

func (s *stubLeadService) AppendTask(_ context.Context, _ auth.Actor, _ string, _ lead.TaskParams) (lead.Task, error) {
	return lead.Task{}, s.err
}

func (s *stubLeadService) Get(_ context.Context, _ auth.Actor, _ string) (lead.Lead, error) {
	return s.lead, s.err
}

func (s *stubLeadService) List(_ context.Context, _ auth.Actor, _ lead.Filters) ([]lead.Lead, int, error) {
	return s.leads, len(s.leads), s.err
}

func (s *stubLeadService) ListNotes(_ context.Context, _ auth.Actor, _ string) ([]lead.Note, error) {
	return nil, s.err
}

func (s *stubLeadService) ListCommunications(_ context.Context, _ auth.Actor, _ string) ([]lead.Communication, error) {
	return nil, s.err
}

func (s *stubLeadService) ListTasks(_ context.Context, _ auth.Actor, _ string) ([]lead.Task, error) {
	return nil, s.err
}

type stubFeedService struct {
	notifications []notification.Notification
	unread        int
	err           error
}

func (s *stubFeedService) List(_ context.Context, _ string, _ int) ([]notification.Notification, error) {
	return s.notifications, s.err
}

func (s *stubFeedService) UnreadCount(_ context.Context, _ string) (int, error) {
	return s.unread, s.err
}

func (s *stubFeedService) MarkRead(_ context.Context, _, _ string) error { return s.err }

func (s *stubFeedService) MarkAllRead(_ context.Context, _ string) error { return s.err }

func (s *stubFeedService) Delete(_ context.Context, _, _ string) error { return s.err }

type stubGrantService struct {
	err error
}

func (s *stubGrantService) Grant(_ context.Context, _ auth.Actor, _ access.Grant) error {
	return s.err
}

func (s *stubGrantService) Revoke(_ context.Context, _ auth.Actor, _ access.Scope, _ string, _ access.Module, _ access.Action) error {
	return s.err
}

type stubContactService struct {
	msg  contact.Message
	msgs []contact.Message
	err  error
}

func (s *stubContactService) Create(_ context.Context, _ contact.CreateParams) (contact.Message, error) {
	return s.msg, s.err
}

func (s *stubContactService) List(_ context.Context, _ auth.Actor, _ contact.Status, _ int) ([]contact.Message, error) {
	return s.msgs, s.err
}

func (s *stubContactService) UpdateStatus(_ context.Context, _ auth.Actor, _ string, _ contact.Status) (contact.Message, error) {
	return s.msg, s.err
}

func TestHandleAgencyDetail_Success(t *testing.T) {
	now := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	server := &Server{
		agencyService: newAgencyService(&stubAgencyRepo{
			profile: agency.Profile{
				ID:        "agency-1",
				Name:      "Skyline Realty",
				LicenseNo: "LIC-0042",
				Verified:  true,
				CreatedAt: now,
			},
		}),
	}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/agencies/agency-1", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleAgencyDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp agencyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "agency-1" || resp.Name != "Skyline Realty" || !resp.Verified {
		t.Fatalf("unexpected response payload: %+v", resp)
	}
	if resp.CreatedAt != now.Format(time.RFC3339) {
		t.Fatalf("expected createdAt %s, got %s", now.Format(time.RFC3339), resp.CreatedAt)
	}
}

func TestHandleAgencyDetail_NotFound(t *testing.T) {
	server := &Server{
		agencyService: newAgencyService(&stubAgencyRepo{err: agency.ErrNotFound}),
	}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/agencies/agency-1", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleAgencyDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleAgencyDetail_InvalidPath(t *testing.T) {
	server := &Server{agencyService: newAgencyService(&stubAgencyRepo{})}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/agencies/", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleAgencyDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleAgencyDetail_WrongMethod(t *testing.T) {
	server := &Server{agencyService: newAgencyService(&stubAgencyRepo{})}

	req := withActor(httptest.NewRequest(http.MethodPost, "/api/agencies/agency-1", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleAgencyDetail(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleAgencyDetail_UnexpectedError(t *testing.T) {
	server := &Server{
		agencyService: newAgencyService(&stubAgencyRepo{err: errors.New("agency: query by id: boom")}),
	}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/agencies/agency-1", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleAgencyDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for leaf error, got %d", rec.Code)
	}
}

func TestHandleAgencies_ForbiddenForCustomer(t *testing.T) {
	server := &Server{
		agencyService: newAgencyService(&stubAgencyRepo{
			profiles: []agency.Profile{{ID: "agency-1"}, {ID: "agency-2"}},
		}),
	}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/agencies", nil), testCustomer())
	rec := httptest.NewRecorder()

	server.handleAgencies(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleAgencyDetail_ForbiddenAcrossAgencies(t *testing.T) {
	server := &Server{
		agencyService: newAgencyService(&stubAgencyRepo{
			profile: agency.Profile{ID: "agency-2"},
		}),
	}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/agencies/agency-2", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleAgencyDetail(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandlePropertyTransition_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid transition", &property.InvalidTransitionError{From: property.StatusActive, Requested: property.StatusPending}, http.StatusUnprocessableEntity},
		{"concurrent modification", property.ErrConcurrentModification, http.StatusConflict},
		{"unauthorized", access.ErrUnauthorized, http.StatusForbidden},
		{"not found", property.ErrNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := &Server{propertyService: &stubPropertyService{err: tc.err}}

			body := strings.NewReader(`{"status":"active"}`)
			req := withActor(httptest.NewRequest(http.MethodPatch, "/api/properties/p1/status", body), testAdmin())
			rec := httptest.NewRecorder()

			server.handlePropertyDetail(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandleProperties_List(t *testing.T) {
	server := &Server{
		propertyService: &stubPropertyService{
			props: []property.Property{
				{ID: "p1", AgencyID: "a1", Status: property.StatusActive, Title: "Riverside flat"},
			},
		},
	}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/properties?status=active", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleProperties(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload listPayload[propertyResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Total != 1 || payload.Items[0].ID != "p1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleLeadApprove_MissingAssignee(t *testing.T) {
	server := &Server{leadService: &stubLeadService{err: lead.ErrMissingAssignee}}

	req := withActor(httptest.NewRequest(http.MethodPost, "/api/leads/l1/approve", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleLeadDetail(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleLeadReassign_CrossAgency(t *testing.T) {
	server := &Server{leadService: &stubLeadService{err: lead.ErrCrossAgency}}

	body := strings.NewReader(`{"assignee_id":"agent-9"}`)
	req := withActor(httptest.NewRequest(http.MethodPatch, "/api/leads/l1/assignee", body), testAdmin())
	rec := httptest.NewRecorder()

	server.handleLeadDetail(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestHandleLeadApprove_Success(t *testing.T) {
	assignee := "agent-1"
	server := &Server{
		leadService: &stubLeadService{
			lead: lead.Lead{ID: "l1", AgencyID: "a1", AssigneeID: &assignee, Status: lead.StatusNew, Approved: true},
		},
	}

	req := withActor(httptest.NewRequest(http.MethodPost, "/api/leads/l1/approve", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleLeadDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp leadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Approved || resp.ID != "l1" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleNotifications_ReadAll(t *testing.T) {
	server := &Server{feedService: &stubFeedService{}}

	req := withActor(httptest.NewRequest(http.MethodPost, "/api/notifications/read_all", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleNotificationDetail(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestHandleNotifications_UnreadCount(t *testing.T) {
	server := &Server{feedService: &stubFeedService{unread: 3}}

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/notifications/unread_count", nil), testAdmin())
	rec := httptest.NewRecorder()

	server.handleNotificationDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["unread"] != 3 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleGrants_ForbiddenForNonSuperAdmin(t *testing.T) {
	server := &Server{grantService: &stubGrantService{err: access.ErrUnauthorized}}

	body := strings.NewReader(`{"scope":"agency","scopeId":"a1","module":"cms","action":"edit","allowed":true}`)
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/permissions/grants", body), testAdmin())
	rec := httptest.NewRecorder()

	server.handleGrants(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleContactForm_Success(t *testing.T) {
	server := &Server{
		contactService: &stubContactService{
			msg: contact.Message{ID: "m1", Name: "Dana", Email: "dana@example.com", Status: contact.StatusNew},
		},
	}

	body := strings.NewReader(`{"name":"Dana","email":"dana@example.com","body":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/contact", body)
	rec := httptest.NewRecorder()

	server.handleContactForm(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestHandleContactMessageDetail_BadStatus(t *testing.T) {
	server := &Server{contactService: &stubContactService{err: contact.ErrBadStatus}}

	body := strings.NewReader(`{"status":"read"}`)
	req := withActor(httptest.NewRequest(http.MethodPatch, "/api/contact_messages/m1", body), testAdmin())
	rec := httptest.NewRecorder()

	server.handleContactMessageDetail(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestRequireActor_MissingToken(t *testing.T) {
	server := &Server{}
	handler := server.requireActor(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
