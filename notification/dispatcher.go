package notification

import (
	"context"
	"fmt"
	"time"

	"estateflow/ids"
	"estateflow/obs"
)

// Dispatcher persists notification records and pushes them to live
// subscribers. Ordering is strict write-then-publish: the record must be
// durable before any push, so a crash between the two delays the live copy
// but never loses the notification.
type Dispatcher struct {
	repo   Repository
	stream *Stream
	now    func() time.Time
	newID  func() string
}

// NewDispatcher builds a dispatcher over the repository and stream.
func NewDispatcher(repo Repository, stream *Stream) *Dispatcher {
	return &Dispatcher{
		repo:   repo,
		stream: stream,
		now:    time.Now,
		newID:  ids.New,
	}
}

// WithClock overrides the dispatcher clock for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Stage inserts the notification through db, normally the transaction of the
// state change that triggered it, so the record commits atomically with the
// transition. The caller publishes after commit.
func (d *Dispatcher) Stage(ctx context.Context, db Execer, n Notification) (Notification, error) {
	if n.RecipientID == "" {
		return Notification{}, fmt.Errorf("notification: recipient required")
	}
	if !isValidType(n.Type) {
		return Notification{}, fmt.Errorf("notification: invalid type %q", n.Type)
	}
	n.ID = d.newID()
	n.Read = false
	n.CreatedAt = d.now().UTC()

	if err := d.repo.Insert(ctx, db, n); err != nil {
		return Notification{}, err
	}
	obs.NotificationsDispatched.WithLabelValues(string(n.Type)).Inc()
	return n, nil
}

// Publish fans staged notifications out to live subscribers. Call only after
// the staging transaction committed.
func (d *Dispatcher) Publish(ns ...Notification) {
	if d.stream == nil {
		return
	}
	for _, n := range ns {
		d.stream.Publish(n)
	}
}

// Dispatch is the single-step form for callers without a surrounding
// transaction: durable insert first, then the live push.
func (d *Dispatcher) Dispatch(ctx context.Context, db Execer, n Notification) (Notification, error) {
	staged, err := d.Stage(ctx, db, n)
	if err != nil {
		return Notification{}, err
	}
	d.Publish(staged)
	return staged, nil
}
