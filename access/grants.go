package access

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope identifies whose behaviour a grant overrides.
type Scope string

const (
	ScopeAgency Scope = "agency"
	ScopeUser   Scope = "user"
)

// Grant is a fine-grained permission override. It takes precedence over the
// role-default table for the scoped agency or actor.
type Grant struct {
	Scope     Scope
	ScopeID   string
	Module    Module
	Action    Action
	Allowed   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GrantStore persists permission overrides.
type GrantStore interface {
	Upsert(ctx context.Context, g Grant) error
	Delete(ctx context.Context, scope Scope, scopeID string, module Module, action Action) error
	ListAll(ctx context.Context) ([]Grant, error)
}

// PGGrantStore implements GrantStore backed by PostgreSQL.
type PGGrantStore struct {
	pool *pgxpool.Pool
}

// NewGrantStore creates a PostgreSQL-backed grant store.
func NewGrantStore(pool *pgxpool.Pool) *PGGrantStore {
	return &PGGrantStore{pool: pool}
}

func (s *PGGrantStore) Upsert(ctx context.Context, g Grant) error {
	const query = `
		INSERT INTO permission_grants (scope, scope_id, module, action, allowed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope, scope_id, module, action)
		DO UPDATE SET allowed = EXCLUDED.allowed, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, g.Scope, g.ScopeID, g.Module, g.Action, g.Allowed); err != nil {
		return fmt.Errorf("access: upsert grant: %w", err)
	}
	return nil
}

func (s *PGGrantStore) Delete(ctx context.Context, scope Scope, scopeID string, module Module, action Action) error {
	const query = `
		DELETE FROM permission_grants
		WHERE scope = $1 AND scope_id = $2 AND module = $3 AND action = $4
	`
	if _, err := s.pool.Exec(ctx, query, scope, scopeID, module, action); err != nil {
		return fmt.Errorf("access: delete grant: %w", err)
	}
	return nil
}

func (s *PGGrantStore) ListAll(ctx context.Context) ([]Grant, error) {
	const query = `
		SELECT scope, scope_id, module, action, allowed, created_at, updated_at
		FROM permission_grants
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("access: list grants: %w", err)
	}
	defer rows.Close()

	grants := make([]Grant, 0, 16)
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.Scope, &g.ScopeID, &g.Module, &g.Action, &g.Allowed, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("access: scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("access: iterate grants: %w", err)
	}
	return grants, nil
}
