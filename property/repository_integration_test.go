package property

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"estateflow/auth"
	"estateflow/notification"
)

func TestApprovalWriteIsConditional(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	requiredTables := []string{"agencies", "actors", "properties", "notifications"}
	for _, tbl := range requiredTables {
		if !tableExists(ctx, pool, tbl) {
			t.Skipf("table %s does not exist; ensure migrations are applied", tbl)
		}
	}

	mustInsert := func(query string, args ...any) string {
		var id string
		if err := pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			t.Fatalf("seed statement failed: %v", err)
		}
		return id
	}

	nonce := time.Now().UnixNano()
	agencyID := mustInsert(`INSERT INTO agencies (name, license_no, verified) VALUES ($1, $2, true) RETURNING id`,
		fmt.Sprintf("Skyline Realty %d", nonce), fmt.Sprintf("LIC-%d", nonce))
	agentID := mustInsert(`INSERT INTO actors (email, full_name, password_hash, agency_id, role) VALUES ($1, 'Agent One', 'x', $2, 'agent') RETURNING id`,
		fmt.Sprintf("agent+%d@example.com", nonce), agencyID)

	var propertyID string
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM notifications WHERE recipient_id = $1`, agentID)
		if propertyID != "" {
			pool.Exec(ctx2, `DELETE FROM properties WHERE id = $1`, propertyID)
		}
		pool.Exec(ctx2, `DELETE FROM actors WHERE id = $1`, agentID)
		pool.Exec(ctx2, `DELETE FROM agencies WHERE id = $1`, agencyID)
	})

	repo := NewRepository(pool)
	notifRepo := notification.NewRepository(pool)
	dispatcher := notification.NewDispatcher(notifRepo, notification.NewStream())

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	created, err := repo.Create(ctx, tx, Property{
		AgencyID:    agencyID,
		AgentID:     &agentID,
		CreatorID:   agentID,
		CreatorRole: auth.RoleAgent,
		Status:      StatusPending,
		Title:       "Two-bed flat",
		Price:       250000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	propertyID = created.ID

	// First decision wins and stages a notification in the same tx.
	tx, err = pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	approved, err := repo.UpdateStatus(ctx, tx, propertyID, StatusPending, StatusActive, nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := dispatcher.Stage(ctx, tx, notification.Notification{
		RecipientID: agentID,
		Type:        notification.TypePropertyApproved,
		Title:       "Listing approved",
	}); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if approved.Status != StatusActive {
		t.Fatalf("status = %s, want active", approved.Status)
	}

	// Second decision validated against the stale pending status loses.
	tx, err = pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	reason := "late"
	_, err = repo.UpdateStatus(ctx, tx, propertyID, StatusPending, StatusInactive, &reason)
	tx.Rollback(ctx)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM properties WHERE id = $1`, propertyID).Scan(&status); err != nil {
		t.Fatalf("inspect property: %v", err)
	}
	if status != "active" {
		t.Fatalf("stored status = %s, want active", status)
	}

	var notifCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND type = 'property_approved'`, agentID).Scan(&notifCount); err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if notifCount != 1 {
		t.Fatalf("expected exactly one approval notification, got %d", notifCount)
	}

	missing, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v (%+v)", err, missing)
	}
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, name string) bool {
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists); err != nil {
		return false
	}
	return exists
}
