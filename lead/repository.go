package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles lead persistence. Approval, assignment and status
// writes are conditional on the value the caller observed, so concurrent
// writers surface as ErrConcurrentModification.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, l Lead) (Lead, error)
	GetByID(ctx context.Context, id string) (Lead, error)
	Approve(ctx context.Context, tx pgx.Tx, id string) (Lead, error)
	UpdateAssignee(ctx context.Context, tx pgx.Tx, id string, from *string, to string) (Lead, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status) (Lead, error)
	AppendNote(ctx context.Context, tx pgx.Tx, note Note) (Note, error)
	ListNotes(ctx context.Context, leadID string) ([]Note, error)
	AppendCommunication(ctx context.Context, tx pgx.Tx, c Communication) (Communication, error)
	ListCommunications(ctx context.Context, leadID string) ([]Communication, error)
	AppendTask(ctx context.Context, tx pgx.Tx, t Task) (Task, error)
	ListTasks(ctx context.Context, leadID string) ([]Task, error)
	DueTasks(ctx context.Context, now time.Time, limit int) ([]DueTask, error)
	MarkReminded(ctx context.Context, tx pgx.Tx, taskID string) (bool, error)
	List(ctx context.Context, filters Filters) ([]Lead, int, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed lead repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const leadColumns = `id, agency_id, property_id, assignee_id, customer_name, customer_email,
	customer_phone, status, priority, source, is_approved, created_at, updated_at`

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, l Lead) (Lead, error) {
	query := `
		INSERT INTO leads (id, agency_id, property_id, assignee_id, customer_name, customer_email,
			customer_phone, status, priority, source)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + leadColumns

	row := tx.QueryRow(ctx, query,
		l.ID,
		l.AgencyID,
		l.PropertyID,
		l.AssigneeID,
		l.CustomerName,
		l.CustomerEmail,
		l.CustomerPhone,
		l.Status,
		l.Priority,
		l.Source,
	)
	created, err := scanLead(row)
	if err != nil {
		return Lead{}, fmt.Errorf("lead: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	l, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("lead: get by id: %w", err)
	}
	return l, nil
}

// Approve flips is_approved, conditional on it still being false.
func (r *PGRepository) Approve(ctx context.Context, tx pgx.Tx, id string) (Lead, error) {
	query := `
		UPDATE leads
		SET is_approved = true, updated_at = now()
		WHERE id = $1 AND is_approved = false
		RETURNING ` + leadColumns

	l, err := scanLead(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, r.lostUpdate(ctx, tx, id)
		}
		return Lead{}, fmt.Errorf("lead: approve: %w", err)
	}
	return l, nil
}

// UpdateAssignee reassigns the lead, conditional on the assignee the caller
// observed. IS NOT DISTINCT FROM makes the check work for the NULL case.
func (r *PGRepository) UpdateAssignee(ctx context.Context, tx pgx.Tx, id string, from *string, to string) (Lead, error) {
	query := `
		UPDATE leads
		SET assignee_id = $1, updated_at = now()
		WHERE id = $2 AND assignee_id IS NOT DISTINCT FROM $3::uuid
		RETURNING ` + leadColumns

	l, err := scanLead(tx.QueryRow(ctx, query, to, id, from))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, r.lostUpdate(ctx, tx, id)
		}
		return Lead{}, fmt.Errorf("lead: update assignee: %w", err)
	}
	return l, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status) (Lead, error) {
	query := `
		UPDATE leads
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING ` + leadColumns

	l, err := scanLead(tx.QueryRow(ctx, query, to, id, from))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, r.lostUpdate(ctx, tx, id)
		}
		return Lead{}, fmt.Errorf("lead: update status: %w", err)
	}
	return l, nil
}

// lostUpdate disambiguates a missed conditional write: the lead is either
// gone or was changed underneath the caller.
func (r *PGRepository) lostUpdate(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("lead: check existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConcurrentModification
}

func (r *PGRepository) AppendNote(ctx context.Context, tx pgx.Tx, note Note) (Note, error) {
	query := `
		INSERT INTO lead_notes (lead_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, lead_id, author_id, body, created_at`

	var created Note
	err := tx.QueryRow(ctx, query, note.LeadID, note.AuthorID, note.Body).
		Scan(&created.ID, &created.LeadID, &created.AuthorID, &created.Body, &created.CreatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("lead: append note: %w", err)
	}
	return created, nil
}

func (r *PGRepository) ListNotes(ctx context.Context, leadID string) ([]Note, error) {
	query := `
		SELECT id, lead_id, author_id, body, created_at
		FROM lead_notes
		WHERE lead_id = $1
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("lead: list notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.LeadID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("lead: scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *PGRepository) AppendCommunication(ctx context.Context, tx pgx.Tx, c Communication) (Communication, error) {
	query := `
		INSERT INTO lead_communications (lead_id, author_id, channel, summary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, author_id, channel, summary, created_at`

	var created Communication
	err := tx.QueryRow(ctx, query, c.LeadID, c.AuthorID, c.Channel, c.Summary).
		Scan(&created.ID, &created.LeadID, &created.AuthorID, &created.Channel, &created.Summary, &created.CreatedAt)
	if err != nil {
		return Communication{}, fmt.Errorf("lead: append communication: %w", err)
	}
	return created, nil
}

func (r *PGRepository) ListCommunications(ctx context.Context, leadID string) ([]Communication, error) {
	query := `
		SELECT id, lead_id, author_id, channel, summary, created_at
		FROM lead_communications
		WHERE lead_id = $1
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("lead: list communications: %w", err)
	}
	defer rows.Close()

	var comms []Communication
	for rows.Next() {
		var c Communication
		if err := rows.Scan(&c.ID, &c.LeadID, &c.AuthorID, &c.Channel, &c.Summary, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("lead: scan communication: %w", err)
		}
		comms = append(comms, c)
	}
	return comms, rows.Err()
}

const taskColumns = `id, lead_id, author_id, assignee_id, kind, title, due_at, done, reminded, created_at`

func (r *PGRepository) AppendTask(ctx context.Context, tx pgx.Tx, t Task) (Task, error) {
	query := `
		INSERT INTO lead_tasks (lead_id, author_id, assignee_id, kind, title, due_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + taskColumns

	created, err := scanTask(tx.QueryRow(ctx, query, t.LeadID, t.AuthorID, t.AssigneeID, t.Kind, t.Title, t.DueAt))
	if err != nil {
		return Task{}, fmt.Errorf("lead: append task: %w", err)
	}
	return created, nil
}

func (r *PGRepository) ListTasks(ctx context.Context, leadID string) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM lead_tasks WHERE lead_id = $1 ORDER BY due_at, id`

	rows, err := r.pool.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("lead: list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("lead: scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DueTasks returns unreminded, undone tasks due at or before now, with the
// owning lead's assignee for recipient fallback.
func (r *PGRepository) DueTasks(ctx context.Context, now time.Time, limit int) ([]DueTask, error) {
	query := `
		SELECT t.id, t.lead_id, t.author_id, t.assignee_id, t.kind, t.title, t.due_at,
			t.done, t.reminded, t.created_at, l.assignee_id
		FROM lead_tasks t
		JOIN leads l ON l.id = t.lead_id
		WHERE t.due_at <= $1 AND NOT t.done AND NOT t.reminded
		ORDER BY t.due_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("lead: due tasks: %w", err)
	}
	defer rows.Close()

	var due []DueTask
	for rows.Next() {
		var d DueTask
		err := rows.Scan(&d.ID, &d.LeadID, &d.AuthorID, &d.AssigneeID, &d.Kind, &d.Title,
			&d.DueAt, &d.Done, &d.Reminded, &d.CreatedAt, &d.LeadAssignee)
		if err != nil {
			return nil, fmt.Errorf("lead: scan due task: %w", err)
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// MarkReminded flips the reminded flag, reporting whether this caller won.
func (r *PGRepository) MarkReminded(ctx context.Context, tx pgx.Tx, taskID string) (bool, error) {
	tag, err := tx.Exec(ctx, `UPDATE lead_tasks SET reminded = true WHERE id = $1 AND NOT reminded`, taskID)
	if err != nil {
		return false, fmt.Errorf("lead: mark reminded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Lead, int, error) {
	conditions := []string{"1=1"}
	args := []any{}

	if filters.Status != "" {
		args = append(args, filters.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.AgencyID != "" {
		args = append(args, filters.AgencyID)
		conditions = append(conditions, fmt.Sprintf("agency_id = $%d", len(args)))
	}
	if filters.AssigneeID != "" {
		args = append(args, filters.AssigneeID)
		conditions = append(conditions, fmt.Sprintf("assignee_id = $%d", len(args)))
	}
	if filters.Approved != nil {
		args = append(args, *filters.Approved)
		conditions = append(conditions, fmt.Sprintf("is_approved = $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM leads WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("lead: count: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	args = append(args, pageSize, (page-1)*pageSize)

	query := fmt.Sprintf(`SELECT `+leadColumns+` FROM leads WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("lead: list: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("lead: scan: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, total, rows.Err()
}

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID,
		&l.AgencyID,
		&l.PropertyID,
		&l.AssigneeID,
		&l.CustomerName,
		&l.CustomerEmail,
		&l.CustomerPhone,
		&l.Status,
		&l.Priority,
		&l.Source,
		&l.Approved,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID,
		&t.LeadID,
		&t.AuthorID,
		&t.AssigneeID,
		&t.Kind,
		&t.Title,
		&t.DueAt,
		&t.Done,
		&t.Reminded,
		&t.CreatedAt,
	)
	return t, err
}
