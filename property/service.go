package property

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
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Authorizer decides whether an actor may act on a module.
type Authorizer interface {
	Authorize(actor auth.Actor, module access.Module, action access.Action) access.Decision
}

// Service drives the listing lifecycle. Every mutating operation authorizes
// first, validates the transition against the table, and performs a single
// conditional write; notifications are staged in the same transaction and
// pushed only after commit.
type Service struct {
	pool        TxBeginner
	repo        Repository
	authz       Authorizer
	dispatcher  *notification.Dispatcher
	idGenerator func() string
}

// NewService wires the listing service.
func NewService(pool TxBeginner, repo Repository, authz Authorizer, dispatcher *notification.Dispatcher) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
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

// Create stores a new listing with the initial status derived from the
// creator's role.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (Property, error) {
	d := s.authz.Authorize(actor, access.ModuleProperties, access.ActionCreate)
	if !d.Allowed {
		return Property{}, access.ErrUnauthorized
	}

	agencyID := params.AgencyID
	if actor.Role.AgencyScoped() {
		if agencyID != "" && agencyID != actor.Agency() {
			return Property{}, access.ErrUnauthorized
		}
		agencyID = actor.Agency()
	}
	if agencyID == "" {
		return Property{}, fmt.Errorf("property: agency id required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return Property{}, fmt.Errorf("property: title required")
	}
	if params.Price < 0 {
		return Property{}, fmt.Errorf("property: invalid price")
	}

	agentID := params.AgentID
	if actor.Role == auth.RoleAgent {
		id := actor.ID
		agentID = &id
	}

	p := Property{
		ID:          s.idGenerator(),
		AgencyID:    agencyID,
		AgentID:     agentID,
		CreatorID:   actor.ID,
		CreatorRole: actor.Role,
		Status:      InitialStatus(actor.Role),
		Title:       params.Title,
		Description: params.Description,
		Price:       params.Price,
		Location:    params.Location,
		Bedrooms:    params.Bedrooms,
		Bathrooms:   params.Bathrooms,
		AreaSqFt:    params.AreaSqFt,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Property{}, fmt.Errorf("property: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.Create(ctx, tx, p)
	if err != nil {
		return Property{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Property{}, fmt.Errorf("property: commit tx: %w", err)
	}
	return created, nil
}

// Transition moves a listing to the requested status. The write is
// conditional on the status that was validated, so a concurrent decision on
// the same listing surfaces as ErrConcurrentModification instead of silently
// overwriting it.
func (s *Service) Transition(ctx context.Context, actor auth.Actor, propertyID string, requested Status, reason *string) (Property, error) {
	d := s.authz.Authorize(actor, access.ModuleProperties, access.ActionEdit)
	if !d.Allowed {
		return Property{}, access.ErrUnauthorized
	}

	current, err := s.repo.GetByID(ctx, propertyID)
	if err != nil {
		return Property{}, err
	}
	if !visible(d.Filter, current) {
		return Property{}, access.ErrUnauthorized
	}

	isOwner := current.Agent() == actor.ID
	if !TransitionAllowed(current.Status, requested, actor.Role, isOwner) {
		return Property{}, &InvalidTransitionError{From: current.Status, Requested: requested}
	}

	// Rejection records a reason, empty when none was given. Activation
	// clears whatever an earlier rejection left behind.
	var rejectionReason *string
	switch {
	case current.Status == StatusPending && requested == StatusInactive:
		rr := ""
		if reason != nil {
			rr = strings.TrimSpace(*reason)
		}
		rejectionReason = &rr
	case requested == StatusActive:
		rr := ""
		rejectionReason = &rr
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Property{}, fmt.Errorf("property: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.repo.UpdateStatus(ctx, tx, propertyID, current.Status, requested, rejectionReason)
	if err != nil {
		return Property{}, err
	}

	staged, err := s.stageDecisionNotification(ctx, tx, current.Status, updated)
	if err != nil {
		return Property{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Property{}, fmt.Errorf("property: commit tx: %w", err)
	}

	s.dispatcher.Publish(staged...)
	obs.PropertyTransitions.WithLabelValues(string(requested)).Inc()
	return updated, nil
}

// stageDecisionNotification writes the approval outcome to the owning
// agent's inbox inside the transition's transaction.
func (s *Service) stageDecisionNotification(ctx context.Context, tx pgx.Tx, from Status, updated Property) ([]notification.Notification, error) {
	if from != StatusPending || updated.AgentID == nil {
		return nil, nil
	}

	var n notification.Notification
	switch updated.Status {
	case StatusActive:
		n = notification.Notification{
			RecipientID: *updated.AgentID,
			Type:        notification.TypePropertyApproved,
			Title:       "Listing approved",
			Message:     fmt.Sprintf("%q is now live.", updated.Title),
		}
	case StatusInactive:
		msg := fmt.Sprintf("%q was rejected.", updated.Title)
		if updated.RejectionReason != "" {
			msg = fmt.Sprintf("%q was rejected: %s", updated.Title, updated.RejectionReason)
		}
		n = notification.Notification{
			RecipientID: *updated.AgentID,
			Type:        notification.TypePropertyRejected,
			Title:       "Listing rejected",
			Message:     msg,
		}
	default:
		return nil, nil
	}

	staged, err := s.dispatcher.Stage(ctx, tx, n)
	if err != nil {
		return nil, err
	}
	return []notification.Notification{staged}, nil
}

// UpdateContent applies a content edit. An agent edit always resets the
// listing to pending for re-approval, whatever state it was in.
func (s *Service) UpdateContent(ctx context.Context, actor auth.Actor, propertyID string, upd ContentUpdate) (Property, error) {
	d := s.authz.Authorize(actor, access.ModuleProperties, access.ActionEdit)
	if !d.Allowed {
		return Property{}, access.ErrUnauthorized
	}

	current, err := s.repo.GetByID(ctx, propertyID)
	if err != nil {
		return Property{}, err
	}
	if !visible(d.Filter, current) {
		return Property{}, access.ErrUnauthorized
	}

	next := current.Status
	if actor.Role == auth.RoleAgent {
		next = StatusPending
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Property{}, fmt.Errorf("property: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.repo.UpdateContent(ctx, tx, propertyID, current.Status, upd, next)
	if err != nil {
		return Property{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Property{}, fmt.Errorf("property: commit tx: %w", err)
	}
	return updated, nil
}

// AppendNote appends to the listing's note log.
func (s *Service) AppendNote(ctx context.Context, actor auth.Actor, propertyID, body string) (Note, error) {
	d := s.authz.Authorize(actor, access.ModuleProperties, access.ActionEdit)
	if !d.Allowed {
		return Note{}, access.ErrUnauthorized
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Note{}, fmt.Errorf("property: note body required")
	}

	current, err := s.repo.GetByID(ctx, propertyID)
	if err != nil {
		return Note{}, err
	}
	if !visible(d.Filter, current) {
		return Note{}, access.ErrUnauthorized
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Note{}, fmt.Errorf("property: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	note, err := s.repo.AppendNote(ctx, tx, Note{PropertyID: propertyID, AuthorID: actor.ID, Body: body})
	if err != nil {
		return Note{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Note{}, fmt.Errorf("property: commit tx: %w", err)
	}
	return note, nil
}

// ListNotes returns the listing's note log, subject to visibility.
func (s *Service) ListNotes(ctx context.Context, actor auth.Actor, propertyID string) ([]Note, error) {
	d := s.authz.Authorize(actor, access.ModuleProperties, access.ActionView)
	if !d.Allowed {
		return nil, access.ErrUnauthorized
	}

	current, err := s.repo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !visible(d.Filter, current) {
		return nil, access.ErrUnauthorized
	}
	return s.repo.ListNotes(ctx, propertyID)
}

// Get returns a single listing subject to the actor's visibility.
func (s *Service) Get(ctx context.Context, actor auth.Actor, propertyID string) (Property, error) {
	d := s.authz.Authorize(actor, access.ModuleProperties, access.ActionView)
	if !d.Allowed {
		return Property{}, access.ErrUnauthorized
	}

	p, err := s.repo.GetByID(ctx, propertyID)
	if err != nil {
		return Property{}, err
	}
	if !visible(d.Filter, p) {
		return Property{}, access.ErrUnauthorized
	}
	return p, nil
}

// List returns listings narrowed by the actor's visibility filter.
func (s *Service) List(ctx context.Context, actor auth.Actor, filters Filters) ([]Property, int, error) {
	d := s.authz.Authorize(actor, access.ModuleProperties, access.ActionView)
	if !d.Allowed {
		return nil, 0, access.ErrUnauthorized
	}

	switch d.Filter.Scope {
	case access.FilterAgency:
		filters.AgencyID = d.Filter.AgencyID
	case access.FilterAgent:
		filters.AgentID = d.Filter.ActorID
	case access.FilterSelf:
		// Customers browse the public inventory only.
		filters.Status = StatusActive
	}

	return s.repo.List(ctx, filters)
}

// visible applies the decision filter to a single listing. Customers see
// only active listings.
func visible(f access.Filter, p Property) bool {
	switch f.Scope {
	case access.FilterAll:
		return true
	case access.FilterAgency:
		return p.AgencyID == f.AgencyID
	case access.FilterAgent:
		return p.Agent() == f.ActorID
	case access.FilterSelf:
		return p.Status == StatusActive
	}
	return false
}
