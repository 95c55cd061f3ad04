package recur

import (
	"context"
	"database/sql"

	"github.com/arlo/billdeck/internal/localdb"
)

// DismissalRepo persists which suggestions a user has rejected. Dismissals
// are keyed by bill id, not suggestion content, so they survive sessions and
// any later change to the underlying bill.
type DismissalRepo struct{ db *sql.DB }

func NewDismissalRepo(db *sql.DB) *DismissalRepo { return &DismissalRepo{db: db} }

func (r *DismissalRepo) Dismiss(ctx context.Context, billID string) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO dismissed_suggestions(bill_id, dismissed_at)
	VALUES(?, ?)
	ON CONFLICT(bill_id) DO NOTHING
	`, billID, localdb.Now())
	return err
}

func (r *DismissalRepo) IsDismissed(ctx context.Context, billID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM dismissed_suggestions WHERE bill_id = ?`, billID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// All returns the dismissal set in the shape Detect consumes.
func (r *DismissalRepo) All(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT bill_id FROM dismissed_suggestions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
