package property

import (
	"time"

	"estateflow/auth"
)

// Status represents the listing lifecycle.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusSold     Status = "sold"
	StatusRented   Status = "rented"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusPending, StatusActive, StatusInactive, StatusSold, StatusRented:
		return true
	}
	return false
}

// Property is the domain representation of a listing. The agency owns the
// listing; the agent reference is weak and survives agent removal as NULL.
type Property struct {
	ID              string
	AgencyID        string
	AgentID         *string
	CreatorID       string
	CreatorRole     auth.Role
	Status          Status
	Title           string
	Description     string
	Price           int64
	Location        string
	Bedrooms        int
	Bathrooms       int
	AreaSqFt        float64
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Agent returns the owning agent id or "" when detached.
func (p Property) Agent() string {
	if p.AgentID == nil {
		return ""
	}
	return *p.AgentID
}

// Note is one entry of a listing's append-only note log.
type Note struct {
	ID         string
	PropertyID string
	AuthorID   string
	Body       string
	CreatedAt  time.Time
}

// CreateParams contains the caller-supplied fields for a new listing.
type CreateParams struct {
	AgencyID    string
	AgentID     *string
	Title       string
	Description string
	Price       int64
	Location    string
	Bedrooms    int
	Bathrooms   int
	AreaSqFt    float64
}

// ContentUpdate captures an edit to the listing content. Nil fields are left
// unchanged.
type ContentUpdate struct {
	Title       *string
	Description *string
	Price       *int64
	Location    *string
	Bedrooms    *int
	Bathrooms   *int
	AreaSqFt    *float64
}

// Filters narrows List results. Page starts at 1.
type Filters struct {
	Status   Status
	AgencyID string
	AgentID  string
	Page     int
	PageSize int
}
