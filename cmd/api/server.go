package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"estateflow/access"
	"estateflow/agency"
	"estateflow/auth"
	"estateflow/contact"
	"estateflow/lead"
	"estateflow/notification"
	"estateflow/obs"
	"estateflow/property"
)

type ctxKey int

const ctxKeyActor ctxKey = iota

type authAPI interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Actor, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, auth.Role, error)
	GetByID(ctx context.Context, actorID string) (*auth.Actor, error)
}

type propertyAPI interface {
	Create(ctx context.Context, actor auth.Actor, params property.CreateParams) (property.Property, error)
	Transition(ctx context.Context, actor auth.Actor, id string, to property.Status, reason *string) (property.Property, error)
	UpdateContent(ctx context.Context, actor auth.Actor, id string, upd property.ContentUpdate) (property.Property, error)
	AppendNote(ctx context.Context, actor auth.Actor, id, body string) (property.Note, error)
	ListNotes(ctx context.Context, actor auth.Actor, id string) ([]property.Note, error)
	Get(ctx context.Context, actor auth.Actor, id string) (property.Property, error)
	List(ctx context.Context, actor auth.Actor, filters property.Filters) ([]property.Property, int, error)
}

type leadAPI interface {
	Create(ctx context.Context, actor auth.Actor, params lead.CreateParams) (lead.Lead, error)
	Approve(ctx context.Context, actor auth.Actor, id string) (lead.Lead, error)
	Reassign(ctx context.Context, actor auth.Actor, id, assigneeID string) (lead.Lead, error)
	UpdateStatus(ctx context.Context, actor auth.Actor, id string, to lead.Status) (lead.Lead, error)
	AppendNote(ctx context.Context, actor auth.Actor, id, body string) (lead.Note, error)
	AppendCommunication(ctx context.Context, actor auth.Actor, id string, channel lead.Channel, summary string) (lead.Communication, error)
	AppendTask(ctx context.Context, actor auth.Actor, id string, params lead.TaskParams) (lead.Task, error)
	Get(ctx context.Context, actor auth.Actor, id string) (lead.Lead, error)
	List(ctx context.Context, actor auth.Actor, filters lead.Filters) ([]lead.Lead, int, error)
	ListNotes(ctx context.Context, actor auth.Actor, id string) ([]lead.Note, error)
	ListCommunications(ctx context.Context, actor auth.Actor, id string) ([]lead.Communication, error)
	ListTasks(ctx context.Context, actor auth.Actor, id string) ([]lead.Task, error)
}

type feedAPI interface {
	List(ctx context.Context, actorID string, limit int) ([]notification.Notification, error)
	UnreadCount(ctx context.Context, actorID string) (int, error)
	MarkRead(ctx context.Context, actorID, id string) error
	MarkAllRead(ctx context.Context, actorID string) error
	Delete(ctx context.Context, actorID, id string) error
}

type grantAPI interface {
	Grant(ctx context.Context, actor auth.Actor, g access.Grant) error
	Revoke(ctx context.Context, actor auth.Actor, scope access.Scope, scopeID string, module access.Module, action access.Action) error
}

type contactAPI interface {
	Create(ctx context.Context, params contact.CreateParams) (contact.Message, error)
	List(ctx context.Context, actor auth.Actor, status contact.Status, limit int) ([]contact.Message, error)
	UpdateStatus(ctx context.Context, actor auth.Actor, id string, to contact.Status) (contact.Message, error)
}

type agencyAPI interface {
	GetByID(ctx context.Context, actor auth.Actor, id string) (agency.Profile, error)
	List(ctx context.Context, actor auth.Actor, limit int) ([]agency.Profile, error)
}

// Server holds the service dependencies behind the HTTP surface. Handlers
// decode, delegate, and map errors; all policy lives in the services.
type Server struct {
	authService     authAPI
	propertyService propertyAPI
	leadService     leadAPI
	feedService     feedAPI
	grantService    grantAPI
	contactService  contactAPI
	agencyService   agencyAPI
	stream          *notification.Stream
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", obs.Handler())

	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/contact", s.handleContactForm)

	mux.HandleFunc("/api/agencies", s.requireActor(s.handleAgencies))
	mux.HandleFunc("/api/agencies/", s.requireActor(s.handleAgencyDetail))
	mux.HandleFunc("/api/properties", s.requireActor(s.handleProperties))
	mux.HandleFunc("/api/properties/", s.requireActor(s.handlePropertyDetail))
	mux.HandleFunc("/api/leads", s.requireActor(s.handleLeads))
	mux.HandleFunc("/api/leads/", s.requireActor(s.handleLeadDetail))
	mux.HandleFunc("/api/notifications", s.requireActor(s.handleNotifications))
	mux.HandleFunc("/api/notifications/", s.requireActor(s.handleNotificationDetail))
	mux.HandleFunc("/api/permissions/grants", s.requireActor(s.handleGrants))
	mux.HandleFunc("/api/contact_messages", s.requireActor(s.handleContactMessages))
	mux.HandleFunc("/api/contact_messages/", s.requireActor(s.handleContactMessageDetail))

	return mux
}

// requireActor resolves the bearer token to a live actor and stashes it in
// the request context.
func (s *Server) requireActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		actorID, _, err := s.authService.VerifyToken(token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		actor, err := s.authService.GetByID(r.Context(), actorID)
		if err != nil || !actor.Active {
			writeJSONError(w, http.StatusUnauthorized, "unknown or inactive actor")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyActor, *actor)
		next(w, r.WithContext(ctx))
	}
}

func actorFrom(r *http.Request) (auth.Actor, bool) {
	actor, ok := r.Context().Value(ctxKeyActor).(auth.Actor)
	return actor, ok
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor, err := s.authService.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActorResponse(*actor))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		Actor: toActorResponse(result.Actor),
	})
}

func (s *Server) handleContactForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req contactCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := s.contactService.Create(r.Context(), contact.CreateParams{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContactResponse(msg))
}

func (s *Server) handleAgencies(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	profiles, err := s.agencyService.List(r.Context(), actor, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]agencyResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, toAgencyResponse(p))
	}
	writeJSON(w, http.StatusOK, listPayload[agencyResponse]{Items: items, Total: len(items)})
}

func (s *Server) handleAgencyDetail(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/agencies/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusBadRequest, "invalid agency path")
		return
	}

	profile, err := s.agencyService.GetByID(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgencyResponse(profile))
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		pageSize, _ := strconv.Atoi(q.Get("page_size"))
		filters := property.Filters{
			Status:   property.Status(q.Get("status")),
			AgencyID: q.Get("agency_id"),
			AgentID:  q.Get("agent_id"),
			Page:     page,
			PageSize: pageSize,
		}
		props, total, err := s.propertyService.List(r.Context(), actor, filters)
		if err != nil {
			writeError(w, err)
			return
		}
		items := make([]propertyResponse, 0, len(props))
		for _, p := range props {
			items = append(items, toPropertyResponse(p))
		}
		writeJSON(w, http.StatusOK, listPayload[propertyResponse]{Items: items, Total: total})

	case http.MethodPost:
		var req propertyCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := s.propertyService.Create(r.Context(), actor, property.CreateParams{
			AgencyID:    req.AgencyID,
			AgentID:     req.AgentID,
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			Location:    req.Location,
			Bedrooms:    req.Bedrooms,
			Bathrooms:   req.Bathrooms,
			AreaSqFt:    req.AreaSqFt,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPropertyResponse(created))

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePropertyDetail(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/properties/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid property path")
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		p, err := s.propertyService.Get(r.Context(), actor, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPropertyResponse(p))

	case len(parts) == 1 && r.Method == http.MethodPatch:
		var req propertyUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		p, err := s.propertyService.UpdateContent(r.Context(), actor, id, property.ContentUpdate{
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			Location:    req.Location,
			Bedrooms:    req.Bedrooms,
			Bathrooms:   req.Bathrooms,
			AreaSqFt:    req.AreaSqFt,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPropertyResponse(p))

	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch:
		var req struct {
			Status string  `json:"status"`
			Reason *string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		p, err := s.propertyService.Transition(r.Context(), actor, id, property.Status(req.Status), req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPropertyResponse(p))

	case len(parts) == 2 && parts[1] == "notes" && r.Method == http.MethodGet:
		notes, err := s.propertyService.ListNotes(r.Context(), actor, id)
		if err != nil {
			writeError(w, err)
			return
		}
		items := make([]propertyNoteResponse, 0, len(notes))
		for _, n := range notes {
			items = append(items, toPropertyNoteResponse(n))
		}
		writeJSON(w, http.StatusOK, listPayload[propertyNoteResponse]{Items: items, Total: len(items)})

	case len(parts) == 2 && parts[1] == "notes" && r.Method == http.MethodPost:
		var req struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		note, err := s.propertyService.AppendNote(r.Context(), actor, id, req.Body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPropertyNoteResponse(note))

	default:
		writeJSONError(w, http.StatusNotFound, "unknown property route")
	}
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		pageSize, _ := strconv.Atoi(q.Get("page_size"))
		filters := lead.Filters{
			Status:     lead.Status(q.Get("status")),
			AgencyID:   q.Get("agency_id"),
			AssigneeID: q.Get("assignee_id"),
			Page:       page,
			PageSize:   pageSize,
		}
		if v := q.Get("approved"); v != "" {
			approved := v == "true"
			filters.Approved = &approved
		}
		leads, total, err := s.leadService.List(r.Context(), actor, filters)
		if err != nil {
			writeError(w, err)
			return
		}
		items := make([]leadResponse, 0, len(leads))
		for _, l := range leads {
			items = append(items, toLeadResponse(l))
		}
		writeJSON(w, http.StatusOK, listPayload[leadResponse]{Items: items, Total: total})

	case http.MethodPost:
		var req leadCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := s.leadService.Create(r.Context(), actor, lead.CreateParams{
			AgencyID:      req.AgencyID,
			PropertyID:    req.PropertyID,
			AssigneeID:    req.AssigneeID,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			CustomerPhone: req.CustomerPhone,
			Priority:      lead.Priority(req.Priority),
			Source:        lead.Source(req.Source),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLeadResponse(created))

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleLeadDetail(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/leads/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid lead path")
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		l, err := s.leadService.Get(r.Context(), actor, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeadResponse(l))

	case len(parts) == 2 && parts[1] == "approve" && r.Method == http.MethodPost:
		l, err := s.leadService.Approve(r.Context(), actor, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeadResponse(l))

	case len(parts) == 2 && parts[1] == "assignee" && r.Method == http.MethodPatch:
		var req struct {
			AssigneeID string `json:"assignee_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		l, err := s.leadService.Reassign(r.Context(), actor, id, req.AssigneeID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeadResponse(l))

	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch:
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		l, err := s.leadService.UpdateStatus(r.Context(), actor, id, lead.Status(req.Status))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeadResponse(l))

	case len(parts) == 2 && parts[1] == "notes":
		s.handleLeadNotes(w, r, actor, id)

	case len(parts) == 2 && parts[1] == "communications":
		s.handleLeadCommunications(w, r, actor, id)

	case len(parts) == 2 && parts[1] == "tasks":
		s.handleLeadTasks(w, r, actor, id)

	default:
		writeJSONError(w, http.StatusNotFound, "unknown lead route")
	}
}

func (s *Server) handleLeadNotes(w http.ResponseWriter, r *http.Request, actor auth.Actor, id string) {
	switch r.Method {
	case http.MethodGet:
		notes, err := s.leadService.ListNotes(r.Context(), actor, id)
		if err != nil {
			writeError(w, err)
			return
		}
		items := make([]leadNoteResponse, 0, len(notes))
		for _, n := range notes {
			items = append(items, toLeadNoteResponse(n))
		}
		writeJSON(w, http.StatusOK, listPayload[leadNoteResponse]{Items: items, Total: len(items)})

	case http.MethodPost:
		var req struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		note, err := s.leadService.AppendNote(r.Context(), actor, id, req.Body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLeadNoteResponse(note))

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleLeadCommunications(w http.ResponseWriter, r *http.Request, actor auth.Actor, id string) {
	switch r.Method {
	case http.MethodGet:
		comms, err := s.leadService.ListCommunications(r.Context(), actor, id)
		if err != nil {
			writeError(w, err)
			return
		}
		items := make([]leadCommResponse, 0, len(comms))
		for _, c := range comms {
			items = append(items, toLeadCommResponse(c))
		}
		writeJSON(w, http.StatusOK, listPayload[leadCommResponse]{Items: items, Total: len(items)})

	case http.MethodPost:
		var req struct {
			Channel string `json:"channel"`
			Summary string `json:"summary"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		comm, err := s.leadService.AppendCommunication(r.Context(), actor, id, lead.Channel(req.Channel), req.Summary)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLeadCommResponse(comm))

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleLeadTasks(w http.ResponseWriter, r *http.Request, actor auth.Actor, id string) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := s.leadService.ListTasks(r.Context(), actor, id)
		if err != nil {
			writeError(w, err)
			return
		}
		items := make([]leadTaskResponse, 0, len(tasks))
		for _, t := range tasks {
			items = append(items, toLeadTaskResponse(t))
		}
		writeJSON(w, http.StatusOK, listPayload[leadTaskResponse]{Items: items, Total: len(items)})

	case http.MethodPost:
		var req struct {
			AssigneeID *string   `json:"assignee_id"`
			Kind       string    `json:"kind"`
			Title      string    `json:"title"`
			DueAt      time.Time `json:"due_at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		task, err := s.leadService.AppendTask(r.Context(), actor, id, lead.TaskParams{
			AssigneeID: req.AssigneeID,
			Kind:       lead.TaskKind(req.Kind),
			Title:      req.Title,
			DueAt:      req.DueAt,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLeadTaskResponse(task))

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ns, err := s.feedService.List(r.Context(), actor.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		items = append(items, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, listPayload[notificationResponse]{Items: items, Total: len(items)})
}

func (s *Server) handleNotificationDetail(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "unread_count" && r.Method == http.MethodGet:
		count, err := s.feedService.UnreadCount(r.Context(), actor.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread": count})

	case rest == "read_all" && r.Method == http.MethodPost:
		if err := s.feedService.MarkAllRead(r.Context(), actor.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case rest == "stream" && r.Method == http.MethodGet:
		s.streamNotifications(w, r, actor)

	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPatch:
		if err := s.feedService.MarkRead(r.Context(), actor.ID, parts[0]); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodDelete:
		if err := s.feedService.Delete(r.Context(), actor.ID, parts[0]); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSONError(w, http.StatusNotFound, "unknown notification route")
	}
}

// streamNotifications delivers live pushes as server-sent events. Missed
// events are not replayed here; clients reconcile with the feed endpoints.
func (s *Server) streamNotifications(w http.ResponseWriter, r *http.Request, actor auth.Actor) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.stream.Subscribe(r.Context(), actor.ID)
	for n := range ch {
		payload, err := json.Marshal(toNotificationResponse(n))
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

func (s *Server) handleGrants(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch r.Method {
	case http.MethodPost:
		err := s.grantService.Grant(r.Context(), actor, access.Grant{
			Scope:   access.Scope(req.Scope),
			ScopeID: req.ScopeID,
			Module:  access.Module(req.Module),
			Action:  access.Action(req.Action),
			Allowed: req.Allowed,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		err := s.grantService.Revoke(r.Context(), actor,
			access.Scope(req.Scope), req.ScopeID, access.Module(req.Module), access.Action(req.Action))
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleContactMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := s.contactService.List(r.Context(), actor, contact.Status(r.URL.Query().Get("status")), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]contactResponse, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, toContactResponse(m))
	}
	writeJSON(w, http.StatusOK, listPayload[contactResponse]{Items: items, Total: len(items)})
}

func (s *Server) handleContactMessageDetail(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "no actor")
		return
	}
	if r.Method != http.MethodPatch {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/contact_messages/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusBadRequest, "invalid contact message path")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := s.contactService.UpdateStatus(r.Context(), actor, id, contact.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(msg))
}
