package lead

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"estateflow/access"
	"estateflow/auth"
	"estateflow/notification"
	"estateflow/obs"
	"estateflow/property"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Authorizer decides whether an actor may act on a module.
type Authorizer interface {
	Authorize(actor auth.Actor, module access.Module, action access.Action) access.Decision
}

// PropertyReader resolves the listing a lead refers to.
type PropertyReader interface {
	GetByID(ctx context.Context, id string) (property.Property, error)
}

// MembershipChecker verifies that an agent is an active member of an agency.
type MembershipChecker interface {
	AgentBelongs(ctx context.Context, agencyID, agentID string) (bool, error)
}

// ActorReader resolves an actor for assignment derivation.
type ActorReader interface {
	GetByID(ctx context.Context, id string) (auth.Actor, error)
}

// Service drives the lead workflow: creation with assignee derivation,
// admin approval, reassignment within the agency, and append-only activity
// records. Notifications follow the write-then-publish rule.
type Service struct {
	pool        TxBeginner
	repo        Repository
	properties  PropertyReader
	membership  MembershipChecker
	actors      ActorReader
	authz       Authorizer
	dispatcher  *notification.Dispatcher
	idGenerator func() string
}

// NewService wires the lead service.
func NewService(pool TxBeginner, repo Repository, properties PropertyReader, membership MembershipChecker, actors ActorReader, authz Authorizer, dispatcher *notification.Dispatcher) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		properties:  properties,
		membership:  membership,
		actors:      actors,
		authz:       authz,
		dispatcher:  dispatcher,
		idGenerator: uuid.NewString,
	}
}

// WithIDGenerator overrides id generation for tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// Create registers a lead. When no assignee was given and the lead points
// at a listing, the listing's agent is assigned; the agency comes from the
// assignee, then the listing, then the caller. Approval is never automatic.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (Lead, error) {
	d := s.authz.Authorize(actor, access.ModuleLeads, access.ActionCreate)
	if !d.Allowed {
		return Lead{}, access.ErrUnauthorized
	}

	if strings.TrimSpace(params.CustomerName) == "" {
		return Lead{}, fmt.Errorf("lead: customer name required")
	}
	if params.Priority == "" {
		params.Priority = PriorityMedium
	}
	if !ValidPriority(params.Priority) {
		return Lead{}, fmt.Errorf("lead: invalid priority %q", params.Priority)
	}
	if params.Source == "" {
		params.Source = SourceWebsite
	}
	if !ValidSource(params.Source) {
		return Lead{}, fmt.Errorf("lead: invalid source %q", params.Source)
	}

	var prop *property.Property
	if params.PropertyID != nil {
		p, err := s.properties.GetByID(ctx, *params.PropertyID)
		if err != nil {
			return Lead{}, err
		}
		prop = &p
	}

	assignee := params.AssigneeID
	if assignee == nil && prop != nil && prop.AgentID != nil {
		assignee = prop.AgentID
	}

	agencyID := params.AgencyID
	switch {
	case assignee != nil:
		agent, err := s.actors.GetByID(ctx, *assignee)
		if err != nil {
			return Lead{}, err
		}
		if agent.Agency() == "" {
			return Lead{}, fmt.Errorf("lead: assignee has no agency")
		}
		agencyID = agent.Agency()
	case prop != nil:
		agencyID = prop.AgencyID
	case actor.Role.AgencyScoped():
		agencyID = actor.Agency()
	}
	if agencyID == "" {
		return Lead{}, fmt.Errorf("lead: agency id required")
	}
	if actor.Role.AgencyScoped() && agencyID != actor.Agency() {
		return Lead{}, access.ErrUnauthorized
	}

	l := Lead{
		ID:            s.idGenerator(),
		AgencyID:      agencyID,
		PropertyID:    params.PropertyID,
		AssigneeID:    assignee,
		CustomerName:  strings.TrimSpace(params.CustomerName),
		CustomerEmail: strings.TrimSpace(params.CustomerEmail),
		CustomerPhone: strings.TrimSpace(params.CustomerPhone),
		Status:        StatusNew,
		Priority:      params.Priority,
		Source:        params.Source,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Lead{}, fmt.Errorf("lead: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.Create(ctx, tx, l)
	if err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, fmt.Errorf("lead: commit tx: %w", err)
	}
	return created, nil
}

// Approve confirms the assignment. Only admin roles approve, the lead must
// already have an assignee, and a concurrent approval loses cleanly.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, leadID string) (Lead, error) {
	d := s.authz.Authorize(actor, access.ModuleLeads, access.ActionEdit)
	if !d.Allowed || !adminRole(actor.Role) {
		return Lead{}, access.ErrUnauthorized
	}

	current, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return Lead{}, err
	}
	if !visibleLead(d.Filter, current) {
		return Lead{}, access.ErrUnauthorized
	}
	if current.Assignee() == "" {
		return Lead{}, ErrMissingAssignee
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Lead{}, fmt.Errorf("lead: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	approved, err := s.repo.Approve(ctx, tx, leadID)
	if err != nil {
		return Lead{}, err
	}

	staged, err := s.dispatcher.Stage(ctx, tx, notification.Notification{
		RecipientID: approved.Assignee(),
		Type:        notification.TypeLeadAssigned,
		Title:       "Lead assigned",
		Message:     fmt.Sprintf("You are now working the lead from %s.", approved.CustomerName),
	})
	if err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, fmt.Errorf("lead: commit tx: %w", err)
	}

	s.dispatcher.Publish(staged)
	return approved, nil
}

// Reassign hands the lead to another agent of the same agency. The write is
// conditional on the assignee observed here.
func (s *Service) Reassign(ctx context.Context, actor auth.Actor, leadID, newAssigneeID string) (Lead, error) {
	d := s.authz.Authorize(actor, access.ModuleLeads, access.ActionEdit)
	if !d.Allowed || !adminRole(actor.Role) {
		return Lead{}, access.ErrUnauthorized
	}

	current, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return Lead{}, err
	}
	if !visibleLead(d.Filter, current) {
		return Lead{}, access.ErrUnauthorized
	}

	belongs, err := s.membership.AgentBelongs(ctx, current.AgencyID, newAssigneeID)
	if err != nil {
		return Lead{}, err
	}
	if !belongs {
		return Lead{}, ErrCrossAgency
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Lead{}, fmt.Errorf("lead: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.repo.UpdateAssignee(ctx, tx, leadID, current.AssigneeID, newAssigneeID)
	if err != nil {
		return Lead{}, err
	}

	staged, err := s.dispatcher.Stage(ctx, tx, notification.Notification{
		RecipientID: newAssigneeID,
		Type:        notification.TypeLeadAssigned,
		Title:       "Lead assigned",
		Message:     fmt.Sprintf("The lead from %s was assigned to you.", updated.CustomerName),
	})
	if err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, fmt.Errorf("lead: commit tx: %w", err)
	}

	s.dispatcher.Publish(staged)
	return updated, nil
}

// UpdateStatus moves the lead to any valid status, conditional on the
// status observed here. The assignee is told about the change.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Actor, leadID string, to Status) (Lead, error) {
	if !ValidStatus(to) {
		return Lead{}, fmt.Errorf("lead: invalid status %q", to)
	}

	d := s.authz.Authorize(actor, access.ModuleLeads, access.ActionEdit)
	if !d.Allowed {
		return Lead{}, access.ErrUnauthorized
	}

	current, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return Lead{}, err
	}
	if !visibleLead(d.Filter, current) {
		return Lead{}, access.ErrUnauthorized
	}
	if current.Status == to {
		return current, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Lead{}, fmt.Errorf("lead: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.repo.UpdateStatus(ctx, tx, leadID, current.Status, to)
	if err != nil {
		return Lead{}, err
	}

	var staged []notification.Notification
	if updated.Assignee() != "" && updated.Assignee() != actor.ID {
		n, err := s.dispatcher.Stage(ctx, tx, notification.Notification{
			RecipientID: updated.Assignee(),
			Type:        notification.TypeLeadStatusChanged,
			Title:       "Lead status changed",
			Message:     fmt.Sprintf("Lead from %s moved to %s.", updated.CustomerName, updated.Status),
		})
		if err != nil {
			return Lead{}, err
		}
		staged = append(staged, n)
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, fmt.Errorf("lead: commit tx: %w", err)
	}

	s.dispatcher.Publish(staged...)
	obs.LeadTransitions.WithLabelValues(string(to)).Inc()
	return updated, nil
}

// AppendNote appends to the lead's note log.
func (s *Service) AppendNote(ctx context.Context, actor auth.Actor, leadID, body string) (Note, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Note{}, fmt.Errorf("lead: note body required")
	}
	if _, err := s.guard(ctx, actor, leadID, access.ActionEdit); err != nil {
		return Note{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Note{}, fmt.Errorf("lead: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	note, err := s.repo.AppendNote(ctx, tx, Note{LeadID: leadID, AuthorID: actor.ID, Body: body})
	if err != nil {
		return Note{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Note{}, fmt.Errorf("lead: commit tx: %w", err)
	}
	return note, nil
}

// AppendCommunication records a customer touchpoint.
func (s *Service) AppendCommunication(ctx context.Context, actor auth.Actor, leadID string, channel Channel, summary string) (Communication, error) {
	if !ValidChannel(channel) {
		return Communication{}, fmt.Errorf("lead: invalid channel %q", channel)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return Communication{}, fmt.Errorf("lead: summary required")
	}
	if _, err := s.guard(ctx, actor, leadID, access.ActionEdit); err != nil {
		return Communication{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Communication{}, fmt.Errorf("lead: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	comm, err := s.repo.AppendCommunication(ctx, tx, Communication{
		LeadID:   leadID,
		AuthorID: actor.ID,
		Channel:  channel,
		Summary:  summary,
	})
	if err != nil {
		return Communication{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Communication{}, fmt.Errorf("lead: commit tx: %w", err)
	}
	return comm, nil
}

// AppendTask schedules a follow-up or site visit. A task with an assignee
// notifies them.
func (s *Service) AppendTask(ctx context.Context, actor auth.Actor, leadID string, params TaskParams) (Task, error) {
	if !ValidTaskKind(params.Kind) {
		return Task{}, fmt.Errorf("lead: invalid task kind %q", params.Kind)
	}
	if strings.TrimSpace(params.Title) == "" {
		return Task{}, fmt.Errorf("lead: task title required")
	}
	if params.DueAt.IsZero() {
		return Task{}, fmt.Errorf("lead: task due time required")
	}
	if _, err := s.guard(ctx, actor, leadID, access.ActionEdit); err != nil {
		return Task{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Task{}, fmt.Errorf("lead: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.repo.AppendTask(ctx, tx, Task{
		LeadID:     leadID,
		AuthorID:   actor.ID,
		AssigneeID: params.AssigneeID,
		Kind:       params.Kind,
		Title:      strings.TrimSpace(params.Title),
		DueAt:      params.DueAt,
	})
	if err != nil {
		return Task{}, err
	}

	var staged []notification.Notification
	if task.AssigneeID != nil && *task.AssigneeID != actor.ID {
		n, err := s.dispatcher.Stage(ctx, tx, notification.Notification{
			RecipientID: *task.AssigneeID,
			Type:        notification.TypeTaskAssigned,
			Title:       "Task assigned",
			Message:     task.Title,
		})
		if err != nil {
			return Task{}, err
		}
		staged = append(staged, n)
	}

	if err := tx.Commit(ctx); err != nil {
		return Task{}, fmt.Errorf("lead: commit tx: %w", err)
	}

	s.dispatcher.Publish(staged...)
	return task, nil
}

// Get returns a single lead subject to the actor's visibility.
func (s *Service) Get(ctx context.Context, actor auth.Actor, leadID string) (Lead, error) {
	return s.guard(ctx, actor, leadID, access.ActionView)
}

// List returns leads narrowed by the actor's visibility filter.
func (s *Service) List(ctx context.Context, actor auth.Actor, filters Filters) ([]Lead, int, error) {
	d := s.authz.Authorize(actor, access.ModuleLeads, access.ActionView)
	if !d.Allowed {
		return nil, 0, access.ErrUnauthorized
	}

	switch d.Filter.Scope {
	case access.FilterAgency:
		filters.AgencyID = d.Filter.AgencyID
	case access.FilterAgent, access.FilterSelf:
		filters.AssigneeID = d.Filter.ActorID
	}

	return s.repo.List(ctx, filters)
}

// ListNotes returns the lead's note log.
func (s *Service) ListNotes(ctx context.Context, actor auth.Actor, leadID string) ([]Note, error) {
	if _, err := s.guard(ctx, actor, leadID, access.ActionView); err != nil {
		return nil, err
	}
	return s.repo.ListNotes(ctx, leadID)
}

// ListCommunications returns the lead's communication log.
func (s *Service) ListCommunications(ctx context.Context, actor auth.Actor, leadID string) ([]Communication, error) {
	if _, err := s.guard(ctx, actor, leadID, access.ActionView); err != nil {
		return nil, err
	}
	return s.repo.ListCommunications(ctx, leadID)
}

// ListTasks returns the lead's tasks.
func (s *Service) ListTasks(ctx context.Context, actor auth.Actor, leadID string) ([]Task, error) {
	if _, err := s.guard(ctx, actor, leadID, access.ActionView); err != nil {
		return nil, err
	}
	return s.repo.ListTasks(ctx, leadID)
}

// guard authorizes the action, loads the lead, and enforces visibility.
func (s *Service) guard(ctx context.Context, actor auth.Actor, leadID string, action access.Action) (Lead, error) {
	d := s.authz.Authorize(actor, access.ModuleLeads, action)
	if !d.Allowed {
		return Lead{}, access.ErrUnauthorized
	}
	current, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return Lead{}, err
	}
	if !visibleLead(d.Filter, current) {
		return Lead{}, access.ErrUnauthorized
	}
	return current, nil
}

func adminRole(r auth.Role) bool {
	return r == auth.RoleAgencyAdmin || r == auth.RoleSuperAdmin
}

// visibleLead applies the decision filter to a single lead. Self scope
// matches on assignment, same as the agent scope.
func visibleLead(f access.Filter, l Lead) bool {
	switch f.Scope {
	case access.FilterAll:
		return true
	case access.FilterAgency:
		return l.AgencyID == f.AgencyID
	case access.FilterAgent, access.FilterSelf:
		return l.Assignee() == f.ActorID
	}
	return false
}
