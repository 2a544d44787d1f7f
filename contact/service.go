package contact

import (
	"context"
	"fmt"
	"strings"

	"estateflow/access"
	"estateflow/auth"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, params CreateParams) (Message, error)
	GetByID(ctx context.Context, id string) (Message, error)
	List(ctx context.Context, status Status, limit int) ([]Message, error)
	UpdateStatus(ctx context.Context, id string, to Status) (Message, error)
}

// Authorizer decides whether an actor may act on a module.
type Authorizer interface {
	Authorize(actor auth.Actor, module access.Module, action access.Action) access.Decision
}

// Service handles the public contact form and its back-office triage.
type Service struct {
	store Store
	authz Authorizer
}

func NewService(store Store, authz Authorizer) *Service {
	return &Service{store: store, authz: authz}
}

// Create accepts a message from the public form. It needs no actor.
func (s *Service) Create(ctx context.Context, params CreateParams) (Message, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.TrimSpace(params.Email)
	params.Subject = strings.TrimSpace(params.Subject)
	params.Body = strings.TrimSpace(params.Body)

	if params.Name == "" {
		return Message{}, fmt.Errorf("contact: name required")
	}
	if !strings.Contains(params.Email, "@") {
		return Message{}, fmt.Errorf("contact: invalid email")
	}
	if params.Body == "" {
		return Message{}, fmt.Errorf("contact: body required")
	}

	return s.store.Create(ctx, params)
}

// List returns messages for triage, optionally narrowed by status.
func (s *Service) List(ctx context.Context, actor auth.Actor, status Status, limit int) ([]Message, error) {
	d := s.authz.Authorize(actor, access.ModuleContactMessages, access.ActionView)
	if !d.Allowed {
		return nil, access.ErrUnauthorized
	}
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("contact: invalid status %q", status)
	}
	return s.store.List(ctx, status, limit)
}

// UpdateStatus advances a message to read or replied.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Actor, id string, to Status) (Message, error) {
	d := s.authz.Authorize(actor, access.ModuleContactMessages, access.ActionEdit)
	if !d.Allowed {
		return Message{}, access.ErrUnauthorized
	}
	if to != StatusRead && to != StatusReplied {
		return Message{}, fmt.Errorf("contact: invalid target status %q", to)
	}
	return s.store.UpdateStatus(ctx, id, to)
}
