// Package oracles holds SQL invariant checks the stress harness runs against
// the live database. Each oracle returns rows only when its invariant is
// violated.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_approved_lead_has_assignee",
			SQL:  `SELECT id FROM leads WHERE is_approved AND assignee_id IS NULL`,
		},
		{
			Name: "O2_assignee_same_agency",
			SQL: `SELECT l.id FROM leads l
                  JOIN actors a ON a.id = l.assignee_id
                  WHERE a.agency_id IS DISTINCT FROM l.agency_id`,
		},
		{
			Name: "O3_agent_belongs_to_listing_agency",
			SQL: `SELECT p.id FROM properties p
                  JOIN actors a ON a.id = p.agent_id
                  WHERE a.agency_id IS DISTINCT FROM p.agency_id`,
		},
		{
			Name: "O4_active_listing_has_no_rejection",
			SQL:  `SELECT id FROM properties WHERE status = 'active' AND rejection_reason <> ''`,
		},
		{
			Name: "O5_reminders_at_most_once_per_task",
			SQL: `SELECT 'excess_reminders' AS detail
                  WHERE (SELECT COUNT(*) FROM notifications
                         WHERE type IN ('follow_up_reminder','site_visit_reminder'))
                      > (SELECT COUNT(*) FROM lead_tasks WHERE reminded)`,
		},
		{
			Name: "O6_notification_recipient_exists",
			SQL: `SELECT n.id FROM notifications n
                  LEFT JOIN actors a ON a.id = n.recipient_id
                  WHERE a.id IS NULL`,
		},
		{
			Name: "O7_grant_rows_unique",
			SQL: `SELECT scope, scope_id, module, action, COUNT(*) FROM permission_grants
                  GROUP BY scope, scope_id, module, action HAVING COUNT(*) > 1`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name when every invariant holds.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
