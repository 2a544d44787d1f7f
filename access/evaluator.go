package access

import (
	"context"
	"errors"
	"sync/atomic"

	"estateflow/auth"
	"estateflow/obs"
)

// ErrUnauthorized signals the actor lacks the grant for (module, action).
var ErrUnauthorized = errors.New("access: unauthorized")

// FilterScope describes which subset of entities a decision exposes.
type FilterScope string

const (
	// FilterAll places no restriction on visible entities.
	FilterAll FilterScope = "all"
	// FilterAgency restricts to entities owned by the actor's agency.
	FilterAgency FilterScope = "agency"
	// FilterAgent restricts to entities whose agent (or, for leads, assigned
	// agent) is the actor.
	FilterAgent FilterScope = "agent"
	// FilterSelf restricts to records keyed to the actor itself, e.g. a
	// customer's own inquiries.
	FilterSelf FilterScope = "self"
	// FilterNone exposes nothing; paired with a denied decision.
	FilterNone FilterScope = "none"
)

// Filter is the visibility constraint attached to an allow decision.
// Repositories apply it when listing entities.
type Filter struct {
	Scope    FilterScope
	AgencyID string
	ActorID  string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Filter  Filter
}

type grantKey struct {
	scope   Scope
	scopeID string
	module  Module
	action  Action
}

// Evaluator answers authorization questions from the static role-default
// policy plus a snapshot of the mutable override grants. It is a pure read
// over current grant state; callers must not proceed when Allowed is false.
type Evaluator struct {
	policy   *Policy
	store    GrantStore
	snapshot atomic.Value // map[grantKey]bool
}

// NewEvaluator builds an evaluator over the given policy and grant store.
// Call Reload before serving to prime the override snapshot.
func NewEvaluator(policy *Policy, store GrantStore) *Evaluator {
	e := &Evaluator{policy: policy, store: store}
	e.snapshot.Store(map[grantKey]bool{})
	return e
}

// Reload replaces the override snapshot from the store. Readers observe
// either the old or the new snapshot, never a partial one.
func (e *Evaluator) Reload(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	grants, err := e.store.ListAll(ctx)
	if err != nil {
		return err
	}
	snap := make(map[grantKey]bool, len(grants))
	for _, g := range grants {
		snap[grantKey{g.Scope, g.ScopeID, g.Module, g.Action}] = g.Allowed
	}
	e.snapshot.Store(snap)
	return nil
}

// Authorize decides whether the actor may perform action on module and, when
// allowed, which subset of entities it may see. Lookup order: user-scope
// override, agency-scope override, role default, deny.
func (e *Evaluator) Authorize(actor auth.Actor, module Module, action Action) Decision {
	d := e.authorize(actor, module, action)
	outcome := "deny"
	if d.Allowed {
		outcome = "allow"
	}
	obs.AuthorizeDecisions.WithLabelValues(string(module), string(action), outcome).Inc()
	return d
}

func (e *Evaluator) authorize(actor auth.Actor, module Module, action Action) Decision {
	deny := Decision{Allowed: false, Filter: Filter{Scope: FilterNone}}

	if !actor.Active {
		return deny
	}
	if !isValidModule(module) || !isValidAction(action) {
		return deny
	}
	// Agency-scoped roles without an affiliation cannot act on anything
	// agency-owned.
	if actor.Role.AgencyScoped() && actor.Agency() == "" {
		return deny
	}

	snap, _ := e.snapshot.Load().(map[grantKey]bool)

	allowed, found := snap[grantKey{ScopeUser, actor.ID, module, action}]
	if !found && actor.Agency() != "" {
		allowed, found = snap[grantKey{ScopeAgency, actor.Agency(), module, action}]
	}
	if !found {
		allowed = e.policy.Allows(actor.Role, module, action)
	}
	if !allowed {
		return deny
	}

	return Decision{Allowed: true, Filter: filterFor(actor)}
}

func filterFor(actor auth.Actor) Filter {
	switch actor.Role {
	case auth.RoleSuperAdmin, auth.RoleStaff:
		return Filter{Scope: FilterAll}
	case auth.RoleAgencyAdmin:
		return Filter{Scope: FilterAgency, AgencyID: actor.Agency()}
	case auth.RoleAgent:
		return Filter{Scope: FilterAgent, AgencyID: actor.Agency(), ActorID: actor.ID}
	default:
		return Filter{Scope: FilterSelf, ActorID: actor.ID}
	}
}
