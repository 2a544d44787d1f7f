package agency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"estateflow/auth"
)

// ErrNotFound signals the requested agency does not exist.
var ErrNotFound = errors.New("agency: not found")

// Repository provides access to agency profiles and membership.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches an agency profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	const query = `
		SELECT id, name, license_no, verified, created_at
		FROM agencies
		WHERE id = $1
	`

	var profile Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Name,
		&profile.LicenseNo,
		&profile.Verified,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("agency: query by id: %w", err)
	}

	return profile, nil
}

// List fetches up to limit agency profiles ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, name, license_no, verified, created_at
		FROM agencies
		ORDER BY name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("agency: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	for rows.Next() {
		var profile Profile
		if err := rows.Scan(&profile.ID, &profile.Name, &profile.LicenseNo, &profile.Verified, &profile.CreatedAt); err != nil {
			return nil, fmt.Errorf("agency: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agency: iterate profiles: %w", err)
	}

	return profiles, nil
}

// AgentBelongs reports whether the actor is an active agent of the agency.
func (r *Repository) AgentBelongs(ctx context.Context, agencyID, agentID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM actors
			WHERE id = $1 AND agency_id = $2 AND role = $3 AND active
		)
	`

	var ok bool
	if err := r.pool.QueryRow(ctx, query, agentID, agencyID, auth.RoleAgent).Scan(&ok); err != nil {
		return false, fmt.Errorf("agency: check membership: %w", err)
	}
	return ok, nil
}
