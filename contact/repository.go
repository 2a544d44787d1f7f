package contact

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("contact: not found")
	ErrBadStatus = errors.New("contact: invalid status transition")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const messageColumns = `id, name, email, subject, body, status, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, params CreateParams) (Message, error) {
	query := `
		INSERT INTO contact_messages (name, email, subject, body)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + messageColumns

	m, err := scanMessage(r.pool.QueryRow(ctx, query, params.Name, params.Email, params.Subject, params.Body))
	if err != nil {
		return Message{}, fmt.Errorf("contact: create: %w", err)
	}
	return m, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Message, error) {
	query := `SELECT ` + messageColumns + ` FROM contact_messages WHERE id = $1`

	m, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("contact: get by id: %w", err)
	}
	return m, nil
}

func (r *Repository) List(ctx context.Context, status Status, limit int) ([]Message, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}

	query := `SELECT ` + messageColumns + ` FROM contact_messages`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("contact: list: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, 8)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("contact: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contact: iterate: %w", err)
	}
	return out, nil
}

// UpdateStatus advances the message, refusing to leave the replied state.
func (r *Repository) UpdateStatus(ctx context.Context, id string, to Status) (Message, error) {
	query := `
		UPDATE contact_messages
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status <> 'replied'
		RETURNING ` + messageColumns

	m, err := scanMessage(r.pool.QueryRow(ctx, query, to, id))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Message{}, fmt.Errorf("contact: update status: %w", err)
	}

	var status Status
	if err := r.pool.QueryRow(ctx, `SELECT status FROM contact_messages WHERE id = $1`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("contact: update status fetch: %w", err)
	}
	return Message{}, ErrBadStatus
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Body, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
