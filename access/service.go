package access

import (
	"context"
	"fmt"
	"sync"

	"estateflow/auth"
)

// Service manages permission overrides. Grant and revoke are restricted to
// super_admin; writes are serialized per scope id so concurrent updates to
// the same agency or user cannot lose each other, while reads keep hitting
// the evaluator's lock-free snapshot.
type Service struct {
	store     GrantStore
	evaluator *Evaluator

	mu         sync.Mutex
	scopeLocks map[string]*sync.Mutex
}

// NewService builds a grant administration service.
func NewService(store GrantStore, evaluator *Evaluator) *Service {
	return &Service{
		store:      store,
		evaluator:  evaluator,
		scopeLocks: make(map[string]*sync.Mutex),
	}
}

// Grant records an override for (scope, scopeID, module, action).
func (s *Service) Grant(ctx context.Context, actor auth.Actor, g Grant) error {
	if err := validateGrantRequest(actor, g.Scope, g.ScopeID, g.Module, g.Action); err != nil {
		return err
	}

	lock := s.lockFor(string(g.Scope) + ":" + g.ScopeID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Upsert(ctx, g); err != nil {
		return err
	}
	return s.evaluator.Reload(ctx)
}

// Revoke removes an override, restoring the role default for the scope.
func (s *Service) Revoke(ctx context.Context, actor auth.Actor, scope Scope, scopeID string, module Module, action Action) error {
	if err := validateGrantRequest(actor, scope, scopeID, module, action); err != nil {
		return err
	}

	lock := s.lockFor(string(scope) + ":" + scopeID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(ctx, scope, scopeID, module, action); err != nil {
		return err
	}
	return s.evaluator.Reload(ctx)
}

func (s *Service) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.scopeLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.scopeLocks[key] = lock
	}
	return lock
}

func validateGrantRequest(actor auth.Actor, scope Scope, scopeID string, module Module, action Action) error {
	if actor.Role != auth.RoleSuperAdmin {
		return ErrUnauthorized
	}
	if scope != ScopeAgency && scope != ScopeUser {
		return fmt.Errorf("access: invalid scope %q", scope)
	}
	if scopeID == "" {
		return fmt.Errorf("access: scope id required")
	}
	if !isValidModule(module) {
		return fmt.Errorf("access: invalid module %q", module)
	}
	if !isValidAction(action) {
		return fmt.Errorf("access: invalid action %q", action)
	}
	return nil
}
