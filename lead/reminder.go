package lead

import (
	"context"
	"fmt"
	"log"
	"time"

	"estateflow/notification"
)

// ReminderScanner periodically sweeps due, unreminded tasks and dispatches
// follow-up or site-visit reminders. The reminded flag is flipped in the
// same transaction the reminder is staged in, so a task is reminded at most
// once even with several scanner instances running.
type ReminderScanner struct {
	pool       TxBeginner
	repo       Repository
	dispatcher *notification.Dispatcher
	interval   time.Duration
	batchSize  int
	now        func() time.Time
}

// NewReminderScanner wires the scanner with a one-minute sweep interval.
func NewReminderScanner(pool TxBeginner, repo Repository, dispatcher *notification.Dispatcher) *ReminderScanner {
	return &ReminderScanner{
		pool:       pool,
		repo:       repo,
		dispatcher: dispatcher,
		interval:   time.Minute,
		batchSize:  100,
		now:        time.Now,
	}
}

// WithInterval overrides the sweep interval.
func (sc *ReminderScanner) WithInterval(d time.Duration) *ReminderScanner {
	sc.interval = d
	return sc
}

// WithClock overrides time for tests.
func (sc *ReminderScanner) WithClock(now func() time.Time) *ReminderScanner {
	sc.now = now
	return sc
}

// Run sweeps until the context is canceled.
func (sc *ReminderScanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := sc.Scan(ctx); err != nil {
				log.Printf("reminder scan: %v", err)
			}
		}
	}
}

// Scan processes one batch of due tasks. A failure on one task does not
// stop the rest of the batch.
func (sc *ReminderScanner) Scan(ctx context.Context) error {
	due, err := sc.repo.DueTasks(ctx, sc.now(), sc.batchSize)
	if err != nil {
		return err
	}

	for _, d := range due {
		if err := sc.remind(ctx, d); err != nil {
			log.Printf("remind task %s: %v", d.ID, err)
		}
	}
	return nil
}

func (sc *ReminderScanner) remind(ctx context.Context, d DueTask) error {
	recipient := ""
	switch {
	case d.AssigneeID != nil:
		recipient = *d.AssigneeID
	case d.LeadAssignee != nil:
		recipient = *d.LeadAssignee
	}

	tx, err := sc.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("lead: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	won, err := sc.repo.MarkReminded(ctx, tx, d.ID)
	if err != nil {
		return err
	}
	if !won {
		// Another scanner instance handled it.
		return nil
	}

	var staged []notification.Notification
	if recipient != "" {
		typ := notification.TypeFollowUpReminder
		title := "Follow-up due"
		if d.Kind == TaskSiteVisit {
			typ = notification.TypeSiteVisitReminder
			title = "Site visit due"
		}
		n, err := sc.dispatcher.Stage(ctx, tx, notification.Notification{
			RecipientID: recipient,
			Type:        typ,
			Title:       title,
			Message:     d.Title,
		})
		if err != nil {
			return err
		}
		staged = append(staged, n)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("lead: commit tx: %w", err)
	}

	sc.dispatcher.Publish(staged...)
	return nil
}
