package access

import (
	"context"
	"errors"
	"sync"
	"testing"

	"estateflow/auth"
)

func TestService_GrantRestrictedToSuperAdmin(t *testing.T) {
	store := newFakeGrantStore()
	ev := NewEvaluator(DefaultPolicy(), store)
	svc := NewService(store, ev)

	grant := Grant{Scope: ScopeAgency, ScopeID: "acme", Module: ModuleProperties, Action: ActionDelete, Allowed: true}

	for _, role := range []auth.Role{auth.RoleStaff, auth.RoleAgencyAdmin, auth.RoleAgent, auth.RoleCustomer} {
		actor := auth.Actor{ID: "x", Role: role, Active: true}
		if err := svc.Grant(context.Background(), actor, grant); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("role %s: expected ErrUnauthorized, got %v", role, err)
		}
	}

	root := auth.Actor{ID: "root", Role: auth.RoleSuperAdmin, Active: true}
	if err := svc.Grant(context.Background(), root, grant); err != nil {
		t.Fatalf("super_admin grant: %v", err)
	}

	// Grant is visible to the evaluator without an explicit reload by the
	// caller.
	if d := ev.Authorize(agentActor("ag1", "acme"), ModuleProperties, ActionDelete); !d.Allowed {
		t.Fatal("expected grant to take effect after Grant returns")
	}

	if err := svc.Revoke(context.Background(), root, ScopeAgency, "acme", ModuleProperties, ActionDelete); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if d := ev.Authorize(agentActor("ag1", "acme"), ModuleProperties, ActionDelete); d.Allowed {
		t.Fatal("expected revoke to restore role default")
	}
}

func TestService_GrantValidation(t *testing.T) {
	store := newFakeGrantStore()
	ev := NewEvaluator(DefaultPolicy(), store)
	svc := NewService(store, ev)
	root := auth.Actor{ID: "root", Role: auth.RoleSuperAdmin, Active: true}

	cases := []Grant{
		{Scope: "team", ScopeID: "x", Module: ModuleLeads, Action: ActionView},
		{Scope: ScopeUser, ScopeID: "", Module: ModuleLeads, Action: ActionView},
		{Scope: ScopeUser, ScopeID: "x", Module: "payments", Action: ActionView},
		{Scope: ScopeUser, ScopeID: "x", Module: ModuleLeads, Action: "approve"},
	}
	for i, g := range cases {
		if err := svc.Grant(context.Background(), root, g); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestService_ConcurrentGrantsSameScope(t *testing.T) {
	store := newFakeGrantStore()
	ev := NewEvaluator(DefaultPolicy(), store)
	svc := NewService(store, ev)
	root := auth.Actor{ID: "root", Role: auth.RoleSuperAdmin, Active: true}

	var wg sync.WaitGroup
	for _, action := range []Action{ActionView, ActionCreate, ActionEdit, ActionDelete} {
		wg.Add(1)
		go func(a Action) {
			defer wg.Done()
			g := Grant{Scope: ScopeAgency, ScopeID: "acme", Module: ModuleCMS, Action: a, Allowed: true}
			if err := svc.Grant(context.Background(), root, g); err != nil {
				t.Errorf("grant %s: %v", a, err)
			}
		}(action)
	}
	wg.Wait()

	admin := auth.Actor{ID: "ad", Role: auth.RoleAgencyAdmin, AgencyID: strPtr("acme"), Active: true}
	for _, action := range []Action{ActionView, ActionCreate, ActionEdit, ActionDelete} {
		if d := ev.Authorize(admin, ModuleCMS, action); !d.Allowed {
			t.Fatalf("expected cms %s to be granted after concurrent writes", action)
		}
	}
}
