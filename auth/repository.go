package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrActorNotFound signals that the actor does not exist.
	ErrActorNotFound = errors.New("auth: actor not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

// Repository handles data access for actors.
type Repository interface {
	CreateActor(ctx context.Context, params CreateActorParams) (Actor, error)
	GetByEmail(ctx context.Context, email string) (Actor, error)
	GetByID(ctx context.Context, actorID string) (Actor, error)
	ListAgents(ctx context.Context, agencyID string) ([]Actor, error)
	Deactivate(ctx context.Context, actorID string) error
}

// CreateActorParams contains write parameters for creating actors.
type CreateActorParams struct {
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	AgencyID     *string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed actor repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const actorColumns = `id, email, full_name, password_hash, phone, agency_id, role, active, created_at, updated_at`

// CreateActor inserts a new actor with hashed password.
func (r *PGRepository) CreateActor(ctx context.Context, params CreateActorParams) (Actor, error) {
	insertSQL := `
		INSERT INTO actors (email, full_name, password_hash, role, agency_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + actorColumns

	actor, err := scanActor(r.pool.QueryRow(ctx, insertSQL, params.Email, params.FullName, params.PasswordHash, params.Role, params.AgencyID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Actor{}, ErrDuplicateEmail
		}
		return Actor{}, fmt.Errorf("auth: create actor: %w", err)
	}

	return actor, nil
}

// GetByEmail retrieves an actor by email address.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (Actor, error) {
	selectSQL := `SELECT ` + actorColumns + ` FROM actors WHERE email = $1`

	actor, err := scanActor(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, ErrActorNotFound
		}
		return Actor{}, fmt.Errorf("auth: get actor by email: %w", err)
	}

	return actor, nil
}

// GetByID retrieves an actor by primary key.
func (r *PGRepository) GetByID(ctx context.Context, actorID string) (Actor, error) {
	selectSQL := `SELECT ` + actorColumns + ` FROM actors WHERE id = $1`

	actor, err := scanActor(r.pool.QueryRow(ctx, selectSQL, actorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, ErrActorNotFound
		}
		return Actor{}, fmt.Errorf("auth: get actor by id: %w", err)
	}

	return actor, nil
}

// ListAgents returns the active agents affiliated with an agency.
func (r *PGRepository) ListAgents(ctx context.Context, agencyID string) ([]Actor, error) {
	selectSQL := `
		SELECT ` + actorColumns + `
		FROM actors
		WHERE agency_id = $1 AND role = $2 AND active
		ORDER BY full_name`

	rows, err := r.pool.Query(ctx, selectSQL, agencyID, RoleAgent)
	if err != nil {
		return nil, fmt.Errorf("auth: list agents: %w", err)
	}
	defer rows.Close()

	agents := make([]Actor, 0, 8)
	for rows.Next() {
		actor, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("auth: scan agent: %w", err)
		}
		agents = append(agents, actor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: iterate agents: %w", err)
	}
	return agents, nil
}

// Deactivate flips the active flag and detaches the agent from its listings.
// Properties keep the agency ownership; only the weak agent reference is
// nulled so listings survive agent removal.
func (r *PGRepository) Deactivate(ctx context.Context, actorID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("auth: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE actors SET active = false, updated_at = now() WHERE id = $1`, actorID)
	if err != nil {
		return fmt.Errorf("auth: deactivate actor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrActorNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE properties SET agent_id = NULL, updated_at = now() WHERE agent_id = $1`, actorID); err != nil {
		return fmt.Errorf("auth: detach listings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("auth: commit deactivate: %w", err)
	}
	return nil
}

func scanActor(row pgx.Row) (Actor, error) {
	var a Actor
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.FullName,
		&a.PasswordHash,
		&a.Phone,
		&a.AgencyID,
		&a.Role,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}
