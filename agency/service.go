package agency

import (
	"context"

	"estateflow/access"
	"estateflow/auth"
)

// ProfileReader abstracts repository operations for the service.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	List(ctx context.Context, limit int) ([]Profile, error)
	AgentBelongs(ctx context.Context, agencyID, agentID string) (bool, error)
}

// Authorizer answers permission checks for the service.
type Authorizer interface {
	Authorize(actor auth.Actor, module access.Module, action access.Action) access.Decision
}

// Service exposes business-level agency operations. Reads are gated on the
// agencies module; agency-scoped actors only see their own agency.
type Service struct {
	repo  ProfileReader
	authz Authorizer
}

// NewService builds a Service using the provided repository.
func NewService(repo ProfileReader, authz Authorizer) *Service {
	return &Service{repo: repo, authz: authz}
}

// GetByID returns the agency profile for the given identifier.
func (s *Service) GetByID(ctx context.Context, actor auth.Actor, id string) (Profile, error) {
	d := s.authz.Authorize(actor, access.ModuleAgencies, access.ActionView)
	if !d.Allowed {
		return Profile{}, access.ErrUnauthorized
	}
	if d.Filter.AgencyID != "" && id != d.Filter.AgencyID {
		return Profile{}, access.ErrUnauthorized
	}
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit agency profiles visible to the actor.
func (s *Service) List(ctx context.Context, actor auth.Actor, limit int) ([]Profile, error) {
	d := s.authz.Authorize(actor, access.ModuleAgencies, access.ActionView)
	if !d.Allowed {
		return nil, access.ErrUnauthorized
	}
	if d.Filter.AgencyID != "" {
		own, err := s.repo.GetByID(ctx, d.Filter.AgencyID)
		if err != nil {
			return nil, err
		}
		return []Profile{own}, nil
	}
	return s.repo.List(ctx, limit)
}

// AgentBelongs reports whether the agent is an active member of the agency.
func (s *Service) AgentBelongs(ctx context.Context, agencyID, agentID string) (bool, error) {
	return s.repo.AgentBelongs(ctx, agencyID, agentID)
}
