package property

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles listing persistence. Status writes are conditional on
// the status the caller validated, implementing the optimistic check.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, p Property) (Property, error)
	GetByID(ctx context.Context, id string) (Property, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status, rejectionReason *string) (Property, error)
	UpdateContent(ctx context.Context, tx pgx.Tx, id string, from Status, upd ContentUpdate, to Status) (Property, error)
	AppendNote(ctx context.Context, tx pgx.Tx, note Note) (Note, error)
	ListNotes(ctx context.Context, propertyID string) ([]Note, error)
	List(ctx context.Context, filters Filters) ([]Property, int, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed listing repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const propertyColumns = `id, agency_id, agent_id, creator_id, creator_role, status, title, description,
	price, location, bedrooms, bathrooms, area_sqft, rejection_reason, created_at, updated_at`

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, p Property) (Property, error) {
	query := `
		INSERT INTO properties (id, agency_id, agent_id, creator_id, creator_role, status, title,
			description, price, location, bedrooms, bathrooms, area_sqft)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + propertyColumns

	row := tx.QueryRow(ctx, query,
		p.ID,
		p.AgencyID,
		p.AgentID,
		p.CreatorID,
		p.CreatorRole,
		p.Status,
		p.Title,
		p.Description,
		p.Price,
		p.Location,
		p.Bedrooms,
		p.Bathrooms,
		p.AreaSqFt,
	)
	created, err := scanProperty(row)
	if err != nil {
		return Property{}, fmt.Errorf("property: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`

	p, err := scanProperty(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Property{}, ErrNotFound
		}
		return Property{}, fmt.Errorf("property: get by id: %w", err)
	}
	return p, nil
}

// UpdateStatus performs the conditional write: it succeeds only while the
// stored status still equals the status the caller validated against.
func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status, rejectionReason *string) (Property, error) {
	query := `
		UPDATE properties
		SET status = $1,
		    rejection_reason = COALESCE($2, rejection_reason),
		    updated_at = now()
		WHERE id = $3 AND status = $4
		RETURNING ` + propertyColumns

	p, err := scanProperty(tx.QueryRow(ctx, query, to, rejectionReason, id, from))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Property{}, r.lostUpdate(ctx, tx, id)
		}
		return Property{}, fmt.Errorf("property: update status: %w", err)
	}
	return p, nil
}

// UpdateContent applies a content edit together with the status outcome the
// service computed (pending for agent edits), conditional on the observed
// status.
func (r *PGRepository) UpdateContent(ctx context.Context, tx pgx.Tx, id string, from Status, upd ContentUpdate, to Status) (Property, error) {
	query := `
		UPDATE properties
		SET title = COALESCE($1, title),
		    description = COALESCE($2, description),
		    price = COALESCE($3, price),
		    location = COALESCE($4, location),
		    bedrooms = COALESCE($5, bedrooms),
		    bathrooms = COALESCE($6, bathrooms),
		    area_sqft = COALESCE($7, area_sqft),
		    status = $8,
		    updated_at = now()
		WHERE id = $9 AND status = $10
		RETURNING ` + propertyColumns

	row := tx.QueryRow(ctx, query,
		upd.Title,
		upd.Description,
		upd.Price,
		upd.Location,
		upd.Bedrooms,
		upd.Bathrooms,
		upd.AreaSqFt,
		to,
		id,
		from,
	)
	p, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Property{}, r.lostUpdate(ctx, tx, id)
		}
		return Property{}, fmt.Errorf("property: update content: %w", err)
	}
	return p, nil
}

// lostUpdate distinguishes a missing row from a lost optimistic race.
func (r *PGRepository) lostUpdate(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM properties WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("property: verify existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConcurrentModification
}

func (r *PGRepository) AppendNote(ctx context.Context, tx pgx.Tx, note Note) (Note, error) {
	const query = `
		INSERT INTO property_notes (property_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, property_id, author_id, body, created_at
	`

	var n Note
	err := tx.QueryRow(ctx, query, note.PropertyID, note.AuthorID, note.Body).
		Scan(&n.ID, &n.PropertyID, &n.AuthorID, &n.Body, &n.CreatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("property: append note: %w", err)
	}
	return n, nil
}

func (r *PGRepository) ListNotes(ctx context.Context, propertyID string) ([]Note, error) {
	const query = `
		SELECT id, property_id, author_id, body, created_at
		FROM property_notes
		WHERE property_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("property: list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]Note, 0, 8)
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.PropertyID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("property: scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("property: iterate notes: %w", err)
	}
	return notes, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Property, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	conditions := make([]string, 0, 3)
	args := make([]any, 0, 5)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Status != "" {
		conditions = append(conditions, "status = "+arg(filters.Status))
	}
	if filters.AgencyID != "" {
		conditions = append(conditions, "agency_id = "+arg(filters.AgencyID))
	}
	if filters.AgentID != "" {
		conditions = append(conditions, "agent_id = "+arg(filters.AgentID))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM properties`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("property: count: %w", err)
	}

	query := `SELECT ` + propertyColumns + ` FROM properties` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(filters.PageSize) +
		` OFFSET ` + arg((filters.Page-1)*filters.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("property: list: %w", err)
	}
	defer rows.Close()

	items := make([]Property, 0, filters.PageSize)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("property: scan: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("property: iterate: %w", err)
	}
	return items, total, nil
}

func scanProperty(row pgx.Row) (Property, error) {
	var p Property
	err := row.Scan(
		&p.ID,
		&p.AgencyID,
		&p.AgentID,
		&p.CreatorID,
		&p.CreatorRole,
		&p.Status,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.Location,
		&p.Bedrooms,
		&p.Bathrooms,
		&p.AreaSqFt,
		&p.RejectionReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
