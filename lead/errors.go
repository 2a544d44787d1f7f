package lead

import "errors"

var (
	// ErrNotFound is returned when a lead or sub-record does not exist.
	ErrNotFound = errors.New("lead: not found")

	// ErrConcurrentModification is returned when the optimistic write lost
	// to a concurrent one on the same lead.
	ErrConcurrentModification = errors.New("lead: concurrent modification")

	// ErrMissingAssignee is returned when approval is requested for a lead
	// that has no assigned agent.
	ErrMissingAssignee = errors.New("lead: approval requires an assignee")

	// ErrCrossAgency is returned when a lead would be assigned to an agent
	// outside its agency.
	ErrCrossAgency = errors.New("lead: assignee belongs to a different agency")
)
