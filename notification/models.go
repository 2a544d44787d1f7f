package notification

import "time"

// Type enumerates the events the dispatcher knows how to deliver.
type Type string

const (
	TypeLeadAssigned      Type = "lead_assigned"
	TypeLeadStatusChanged Type = "lead_status_changed"
	TypePropertyApproved  Type = "property_approved"
	TypePropertyRejected  Type = "property_rejected"
	TypeTaskAssigned      Type = "task_assigned"
	TypeFollowUpReminder  Type = "follow_up_reminder"
	TypeSiteVisitReminder Type = "site_visit_reminder"
	TypePaymentReceived   Type = "payment_received"
)

func isValidType(t Type) bool {
	switch t {
	case TypeLeadAssigned, TypeLeadStatusChanged, TypePropertyApproved, TypePropertyRejected,
		TypeTaskAssigned, TypeFollowUpReminder, TypeSiteVisitReminder, TypePaymentReceived:
		return true
	}
	return false
}

// Notification is a persisted inbox entry for a single recipient. The id is a
// ULID so the feed sorts by id in creation order.
type Notification struct {
	ID          string
	RecipientID string
	Type        Type
	Title       string
	Message     string
	Read        bool
	CreatedAt   time.Time
}
