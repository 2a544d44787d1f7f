package lead

import "time"

// Status values for a lead. The set is unordered, any valid status can be
// requested from any other.
type Status string

const (
	StatusNew         Status = "new"
	StatusContacted   Status = "contacted"
	StatusSiteVisit   Status = "site_visit"
	StatusNegotiation Status = "negotiation"
	StatusConverted   Status = "converted"
	StatusLost        Status = "lost"
)

// ValidStatus reports whether s is a known lead status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusContacted, StatusSiteVisit, StatusNegotiation, StatusConverted, StatusLost:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Source string

const (
	SourceWebsite  Source = "website"
	SourceReferral Source = "referral"
	SourceWalkIn   Source = "walk_in"
	SourcePhone    Source = "phone"
	SourceSocial   Source = "social"
)

func ValidSource(s Source) bool {
	switch s {
	case SourceWebsite, SourceReferral, SourceWalkIn, SourcePhone, SourceSocial:
		return true
	}
	return false
}

// Channel identifies how a communication with the customer happened.
type Channel string

const (
	ChannelCall     Channel = "call"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelMeeting  Channel = "meeting"
)

func ValidChannel(c Channel) bool {
	switch c {
	case ChannelCall, ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelMeeting:
		return true
	}
	return false
}

// TaskKind distinguishes follow-up calls from scheduled site visits; the
// reminder scanner picks the notification type from it.
type TaskKind string

const (
	TaskFollowUp  TaskKind = "follow_up"
	TaskSiteVisit TaskKind = "site_visit"
)

func ValidTaskKind(k TaskKind) bool {
	return k == TaskFollowUp || k == TaskSiteVisit
}

// Lead is a prospective customer routed to an agency. Approved stays false
// until an admin confirms the assignment.
type Lead struct {
	ID            string
	AgencyID      string
	PropertyID    *string
	AssigneeID    *string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Status        Status
	Priority      Priority
	Source        Source
	Approved      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Assignee returns the assigned agent id or "".
func (l Lead) Assignee() string {
	if l.AssigneeID == nil {
		return ""
	}
	return *l.AssigneeID
}

// Note is an append-only free-form annotation on a lead.
type Note struct {
	ID        string
	LeadID    string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// Communication records a customer touchpoint.
type Communication struct {
	ID        string
	LeadID    string
	AuthorID  string
	Channel   Channel
	Summary   string
	CreatedAt time.Time
}

// Task is a follow-up or site-visit item with a due time. Reminded flips
// once the scanner has dispatched its reminder.
type Task struct {
	ID         string
	LeadID     string
	AuthorID   string
	AssigneeID *string
	Kind       TaskKind
	Title      string
	DueAt      time.Time
	Done       bool
	Reminded   bool
	CreatedAt  time.Time
}

// DueTask pairs a due task with the owning lead's assignee so the scanner
// can fall back to it when the task itself has none.
type DueTask struct {
	Task
	LeadAssignee *string
}

// CreateParams contains the caller-supplied fields for a new lead.
type CreateParams struct {
	AgencyID      string
	PropertyID    *string
	AssigneeID    *string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Priority      Priority
	Source        Source
}

// TaskParams describes a new task on a lead.
type TaskParams struct {
	AssigneeID *string
	Kind       TaskKind
	Title      string
	DueAt      time.Time
}

// Filters narrows List results. Page starts at 1.
type Filters struct {
	Status     Status
	AgencyID   string
	AssigneeID string
	Approved   *bool
	Page       int
	PageSize   int
}
