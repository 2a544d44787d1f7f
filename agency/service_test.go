package agency

import (
	"context"
	"errors"
	"testing"

	"estateflow/access"
	"estateflow/auth"
)

type fakeRepo struct {
	profiles map[string]Profile
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) List(_ context.Context, limit int) ([]Profile, error) {
	out := make([]Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) AgentBelongs(_ context.Context, agencyID, agentID string) (bool, error) {
	return false, nil
}

func newTestService() *Service {
	repo := &fakeRepo{profiles: map[string]Profile{
		"agency-1": {ID: "agency-1", Name: "Skyline Realty"},
		"agency-2": {ID: "agency-2", Name: "Harbor Homes"},
	}}
	return NewService(repo, access.NewEvaluator(access.DefaultPolicy(), nil))
}

func adminOf(agencyID string) auth.Actor {
	return auth.Actor{ID: "admin-" + agencyID, Role: auth.RoleAgencyAdmin, AgencyID: &agencyID, Active: true}
}

func TestList_StaffSeesAllAgencies(t *testing.T) {
	svc := newTestService()
	staff := auth.Actor{ID: "staff-1", Role: auth.RoleStaff, Active: true}

	profiles, err := svc.List(context.Background(), staff, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
}

func TestList_AgencyAdminSeesOnlyOwnAgency(t *testing.T) {
	svc := newTestService()

	profiles, err := svc.List(context.Background(), adminOf("agency-1"), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ID != "agency-1" {
		t.Fatalf("expected only agency-1, got %+v", profiles)
	}
}

func TestList_CustomerDenied(t *testing.T) {
	svc := newTestService()
	customer := auth.Actor{ID: "customer-1", Role: auth.RoleCustomer, Active: true}

	if _, err := svc.List(context.Background(), customer, 0); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestList_AgentDenied(t *testing.T) {
	svc := newTestService()
	agencyID := "agency-1"
	agent := auth.Actor{ID: "agent-1", Role: auth.RoleAgent, AgencyID: &agencyID, Active: true}

	if _, err := svc.List(context.Background(), agent, 0); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGetByID_AgencyAdminOwnAgency(t *testing.T) {
	svc := newTestService()

	p, err := svc.GetByID(context.Background(), adminOf("agency-1"), "agency-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "Skyline Realty" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestGetByID_AgencyAdminCrossAgencyDenied(t *testing.T) {
	svc := newTestService()

	if _, err := svc.GetByID(context.Background(), adminOf("agency-1"), "agency-2"); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGetByID_SuperAdminAnyAgency(t *testing.T) {
	svc := newTestService()
	root := auth.Actor{ID: "root", Role: auth.RoleSuperAdmin, Active: true}

	p, err := svc.GetByID(context.Background(), root, "agency-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.ID != "agency-2" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}
