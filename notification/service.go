package notification

import "context"

// Service exposes the inbox read path. Every operation is scoped to the
// calling actor's own feed; there is no cross-recipient access.
type Service struct {
	repo Repository
}

// NewService builds the inbox service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the actor's newest notifications.
func (s *Service) List(ctx context.Context, actorID string, limit int) ([]Notification, error) {
	return s.repo.ListByRecipient(ctx, actorID, limit)
}

// UnreadCount returns the actor's unread badge count from persisted state.
func (s *Service) UnreadCount(ctx context.Context, actorID string) (int, error) {
	return s.repo.UnreadCount(ctx, actorID)
}

// MarkRead marks one of the actor's notifications as read.
func (s *Service) MarkRead(ctx context.Context, actorID, id string) error {
	return s.repo.MarkRead(ctx, actorID, id)
}

// MarkAllRead marks the actor's whole feed as read. Idempotent.
func (s *Service) MarkAllRead(ctx context.Context, actorID string) error {
	return s.repo.MarkAllRead(ctx, actorID)
}

// Delete removes one of the actor's notifications.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	return s.repo.Delete(ctx, actorID, id)
}
