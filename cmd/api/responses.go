package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"estateflow/access"
	"estateflow/agency"
	"estateflow/auth"
	"estateflow/contact"
	"estateflow/lead"
	"estateflow/notification"
	"estateflow/property"
)

type listPayload[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type actorResponse struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	FullName string  `json:"fullName"`
	Role     string  `json:"role"`
	AgencyID *string `json:"agencyId,omitempty"`
	Active   bool    `json:"active"`
}

func toActorResponse(a auth.Actor) actorResponse {
	return actorResponse{
		ID:       a.ID,
		Email:    a.Email,
		FullName: a.FullName,
		Role:     string(a.Role),
		AgencyID: a.AgencyID,
		Active:   a.Active,
	}
}

type loginResponse struct {
	Token string        `json:"token"`
	Actor actorResponse `json:"actor"`
}

type agencyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	LicenseNo string `json:"licenseNo"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"createdAt"`
}

func toAgencyResponse(p agency.Profile) agencyResponse {
	return agencyResponse{
		ID:        p.ID,
		Name:      p.Name,
		LicenseNo: p.LicenseNo,
		Verified:  p.Verified,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

type propertyCreateRequest struct {
	AgencyID    string  `json:"agencyId"`
	AgentID     *string `json:"agentId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       int64   `json:"price"`
	Location    string  `json:"location"`
	Bedrooms    int     `json:"bedrooms"`
	Bathrooms   int     `json:"bathrooms"`
	AreaSqFt    float64 `json:"areaSqFt"`
}

type propertyUpdateRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *int64   `json:"price"`
	Location    *string  `json:"location"`
	Bedrooms    *int     `json:"bedrooms"`
	Bathrooms   *int     `json:"bathrooms"`
	AreaSqFt    *float64 `json:"areaSqFt"`
}

type propertyResponse struct {
	ID              string  `json:"id"`
	AgencyID        string  `json:"agencyId"`
	AgentID         *string `json:"agentId,omitempty"`
	Status          string  `json:"status"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Price           int64   `json:"price"`
	Location        string  `json:"location"`
	Bedrooms        int     `json:"bedrooms"`
	Bathrooms       int     `json:"bathrooms"`
	AreaSqFt        float64 `json:"areaSqFt"`
	RejectionReason string  `json:"rejectionReason,omitempty"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

func toPropertyResponse(p property.Property) propertyResponse {
	return propertyResponse{
		ID:              p.ID,
		AgencyID:        p.AgencyID,
		AgentID:         p.AgentID,
		Status:          string(p.Status),
		Title:           p.Title,
		Description:     p.Description,
		Price:           p.Price,
		Location:        p.Location,
		Bedrooms:        p.Bedrooms,
		Bathrooms:       p.Bathrooms,
		AreaSqFt:        p.AreaSqFt,
		RejectionReason: p.RejectionReason,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
}

type propertyNoteResponse struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

func toPropertyNoteResponse(n property.Note) propertyNoteResponse {
	return propertyNoteResponse{
		ID:        n.ID,
		AuthorID:  n.AuthorID,
		Body:      n.Body,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

type leadCreateRequest struct {
	AgencyID      string  `json:"agencyId"`
	PropertyID    *string `json:"propertyId"`
	AssigneeID    *string `json:"assigneeId"`
	CustomerName  string  `json:"customerName"`
	CustomerEmail string  `json:"customerEmail"`
	CustomerPhone string  `json:"customerPhone"`
	Priority      string  `json:"priority"`
	Source        string  `json:"source"`
}

type leadResponse struct {
	ID            string  `json:"id"`
	AgencyID      string  `json:"agencyId"`
	PropertyID    *string `json:"propertyId,omitempty"`
	AssigneeID    *string `json:"assigneeId,omitempty"`
	CustomerName  string  `json:"customerName"`
	CustomerEmail string  `json:"customerEmail"`
	CustomerPhone string  `json:"customerPhone"`
	Status        string  `json:"status"`
	Priority      string  `json:"priority"`
	Source        string  `json:"source"`
	Approved      bool    `json:"approved"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

func toLeadResponse(l lead.Lead) leadResponse {
	return leadResponse{
		ID:            l.ID,
		AgencyID:      l.AgencyID,
		PropertyID:    l.PropertyID,
		AssigneeID:    l.AssigneeID,
		CustomerName:  l.CustomerName,
		CustomerEmail: l.CustomerEmail,
		CustomerPhone: l.CustomerPhone,
		Status:        string(l.Status),
		Priority:      string(l.Priority),
		Source:        string(l.Source),
		Approved:      l.Approved,
		CreatedAt:     l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     l.UpdatedAt.Format(time.RFC3339),
	}
}

type leadNoteResponse struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

func toLeadNoteResponse(n lead.Note) leadNoteResponse {
	return leadNoteResponse{
		ID:        n.ID,
		AuthorID:  n.AuthorID,
		Body:      n.Body,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

type leadCommResponse struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Channel   string `json:"channel"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"createdAt"`
}

func toLeadCommResponse(c lead.Communication) leadCommResponse {
	return leadCommResponse{
		ID:        c.ID,
		AuthorID:  c.AuthorID,
		Channel:   string(c.Channel),
		Summary:   c.Summary,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

type leadTaskResponse struct {
	ID         string  `json:"id"`
	AssigneeID *string `json:"assigneeId,omitempty"`
	Kind       string  `json:"kind"`
	Title      string  `json:"title"`
	DueAt      string  `json:"dueAt"`
	Done       bool    `json:"done"`
	CreatedAt  string  `json:"createdAt"`
}

func toLeadTaskResponse(t lead.Task) leadTaskResponse {
	return leadTaskResponse{
		ID:         t.ID,
		AssigneeID: t.AssigneeID,
		Kind:       string(t.Kind),
		Title:      t.Title,
		DueAt:      t.DueAt.Format(time.RFC3339),
		Done:       t.Done,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
	}
}

type notificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

func toNotificationResponse(n notification.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

type grantRequest struct {
	Scope   string `json:"scope"`
	ScopeID string `json:"scopeId"`
	Module  string `json:"module"`
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
}

type contactCreateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type contactResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

func toContactResponse(m contact.Message) contactResponse {
	return contactResponse{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Body:      m.Body,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps domain errors to HTTP statuses. Validation errors across
// the services are leaf errors, infrastructure failures always wrap a
// cause, so an unrecognized leaf maps to 400 and a wrapped error to 500.
func writeError(w http.ResponseWriter, err error) {
	var invalidTransition *property.InvalidTransitionError

	switch {
	case errors.Is(err, access.ErrUnauthorized):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInactive):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, property.ErrNotFound),
		errors.Is(err, lead.ErrNotFound),
		errors.Is(err, notification.ErrNotFound),
		errors.Is(err, contact.ErrNotFound),
		errors.Is(err, agency.ErrNotFound),
		errors.Is(err, auth.ErrActorNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, property.ErrConcurrentModification),
		errors.Is(err, lead.ErrConcurrentModification),
		errors.Is(err, auth.ErrDuplicateEmail):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalidTransition),
		errors.Is(err, lead.ErrMissingAssignee),
		errors.Is(err, lead.ErrCrossAgency),
		errors.Is(err, contact.ErrBadStatus):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Unwrap(err) == nil:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
