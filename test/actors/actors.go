// Package actors drives concurrent workflow traffic against a live database
// for the stress harness. Each actor loops until stop closes, issuing the
// same conditional writes the services issue, so contention between them
// exercises the optimistic-concurrency paths.
package actors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Approver races to activate a pending property. The conditional update only
// lands when the listing is still pending, and a decision notification is
// written in the same transaction.
func Approver(ctx context.Context, pool *pgxpool.Pool, propertyID, agentID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("approver begin: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE properties SET status='active', rejection_reason='', updated_at=now()
                                   WHERE id=$1 AND status='pending'`, propertyID)
		if err == nil && tag.RowsAffected() == 1 {
			_, err = tx.Exec(ctx, `INSERT INTO notifications (id, recipient_id, type, title)
                                    VALUES (gen_random_uuid()::text, $1, 'property_approved', 'Listing approved')`, agentID)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("approver update: %w", err)
		}
		_ = tx.Commit(ctx)
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Rejecter competes with Approver for the same pending listing, recording a
// rejection reason when it wins.
func Rejecter(ctx context.Context, pool *pgxpool.Pool, propertyID, agentID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("rejecter begin: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE properties SET status='inactive', rejection_reason='incomplete listing', updated_at=now()
                                   WHERE id=$1 AND status='pending'`, propertyID)
		if err == nil && tag.RowsAffected() == 1 {
			_, err = tx.Exec(ctx, `INSERT INTO notifications (id, recipient_id, type, title)
                                    VALUES (gen_random_uuid()::text, $1, 'property_rejected', 'Listing rejected')`, agentID)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("rejecter update: %w", err)
		}
		_ = tx.Commit(ctx)
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// Editor stands in for the owning agent revising a decided listing, which
// sends it back to pending so the approval race starts over.
func Editor(ctx context.Context, pool *pgxpool.Pool, propertyID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := pool.Exec(ctx, `UPDATE properties SET title = 'Revision ' || floor(random()*100000)::text,
                                   status='pending', updated_at=now()
                                   WHERE id=$1 AND status IN ('active','inactive')`, propertyID)
		if err != nil {
			return fmt.Errorf("editor update: %w", err)
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// LeadApprover flips leads to approved, but only when an assignee is already
// set. The is_approved guard keeps concurrent approvers from double-notifying.
func LeadApprover(ctx context.Context, pool *pgxpool.Pool, leadID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("lead approver begin: %w", err)
		}
		var assignee *string
		err = tx.QueryRow(ctx, `UPDATE leads SET is_approved=true, updated_at=now()
                                 WHERE id=$1 AND is_approved=false AND assignee_id IS NOT NULL
                                 RETURNING assignee_id::text`, leadID).Scan(&assignee)
		if err == nil && assignee != nil {
			_, err = tx.Exec(ctx, `INSERT INTO notifications (id, recipient_id, type, title)
                                    VALUES (gen_random_uuid()::text, $1::uuid, 'lead_assigned', 'Lead assigned to you')`, *assignee)
			if err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("lead approver notify: %w", err)
			}
		}
		_ = tx.Commit(ctx)
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Reassigner bounces a lead between agents of the same agency using the
// observed-assignee compare so lost updates surface as zero-row updates
// rather than silent overwrites.
func Reassigner(ctx context.Context, pool *pgxpool.Pool, leadID string, agents []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var observed *string
		if err := pool.QueryRow(ctx, `SELECT assignee_id::text FROM leads WHERE id=$1`, leadID).Scan(&observed); err != nil {
			return fmt.Errorf("reassigner read: %w", err)
		}
		next := agents[rand.Intn(len(agents))]
		_, err := pool.Exec(ctx, `UPDATE leads SET assignee_id=$2::uuid, updated_at=now()
                                   WHERE id=$1 AND assignee_id IS NOT DISTINCT FROM $3::uuid`, leadID, next, observed)
		if err != nil {
			return fmt.Errorf("reassigner update: %w", err)
		}
		time.Sleep(time.Duration(25+rand.Intn(50)) * time.Millisecond)
	}
}

// ReminderWorker mimics the scanner: claim due tasks with SKIP LOCKED, mark
// them reminded, and stage one reminder notification in the same transaction.
func ReminderWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("reminder begin: %w", err)
		}
		rows, err := tx.Query(ctx, `SELECT t.id, t.kind, COALESCE(t.assignee_id, l.assignee_id)::text
                                     FROM lead_tasks t
                                     JOIN leads l ON l.id = t.lead_id
                                     WHERE NOT t.done AND NOT t.reminded AND t.due_at <= now()
                                     FOR UPDATE OF t SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		type due struct {
			id, kind  string
			recipient *string
		}
		var batch []due
		for rows.Next() {
			var d due
			if err := rows.Scan(&d.id, &d.kind, &d.recipient); err == nil {
				batch = append(batch, d)
			}
		}
		rows.Close()
		for _, d := range batch {
			if _, err := tx.Exec(ctx, `UPDATE lead_tasks SET reminded=true WHERE id=$1 AND NOT reminded`, d.id); err != nil {
				continue
			}
			if d.recipient == nil {
				continue
			}
			_, _ = tx.Exec(ctx, `INSERT INTO notifications (id, recipient_id, type, title)
                                  VALUES (gen_random_uuid()::text, $1::uuid, $2 || '_reminder', 'Task due')`, *d.recipient, d.kind)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}

// TaskWriter keeps the reminder pipeline fed with already-due tasks.
func TaskWriter(ctx context.Context, pool *pgxpool.Pool, leadID, authorID string, stop <-chan struct{}) error {
	kinds := []string{"follow_up", "site_visit"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		kind := kinds[rand.Intn(len(kinds))]
		_, err := pool.Exec(ctx, `INSERT INTO lead_tasks (lead_id, author_id, kind, title, due_at)
                                   VALUES ($1, $2, $3, 'Stress task', now() - interval '1 minute')`, leadID, authorID, kind)
		if err != nil {
			return fmt.Errorf("task writer insert: %w", err)
		}
		time.Sleep(time.Duration(150+rand.Intn(150)) * time.Millisecond)
	}
}

// FeedReader churns the notification feed the way a connected client would.
func FeedReader(ctx context.Context, pool *pgxpool.Pool, recipientID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var unread int
		_ = pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1::uuid AND NOT read`, recipientID).Scan(&unread)
		if unread > 0 && rand.Intn(3) == 0 {
			_, _ = pool.Exec(ctx, `UPDATE notifications SET read=true
                                    WHERE id IN (SELECT id FROM notifications WHERE recipient_id=$1::uuid AND NOT read LIMIT 1)`, recipientID)
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}
