package extract

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arlo/billdeck/internal/localdb"
)

// QueueRepo persists candidates routed to human review, plus the decision
// history that keeps confirmed and rejected candidates from resurfacing on a
// later scan of the same message.
type QueueRepo struct{ db *sql.DB }

func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

func (r *QueueRepo) Add(ctx context.Context, c Candidate, status string) error {
	evidence, err := json.Marshal(c.Evidence)
	if err != nil {
		return err
	}
	var amount, due *string
	if c.Amount != nil {
		s := c.Amount.String()
		amount = &s
	}
	if c.DueDate != nil {
		s := c.DueDate.Format("2006-01-02")
		due = &s
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO review_candidates(
	 id, message_id, message_link, name, amount, due_date, category,
	 confidence, amount_confidence, due_confidence, evidence,
	 duplicate, duplicate_reason, status, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.MessageID, c.MessageLink, c.Name, amount, due, c.Category,
		c.Confidence, c.AmountConfidence, c.DueDateConfidence, string(evidence),
		boolInt(c.Duplicate), c.DuplicateReason, status, localdb.Now())
	return err
}

// Pending lists candidates awaiting a decision, oldest first.
func (r *QueueRepo) Pending(ctx context.Context) ([]Candidate, error) {
	rows, err := r.db.QueryContext(ctx, selectCandidate+` WHERE status = ? ORDER BY created_at ASC`, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *QueueRepo) Get(ctx context.Context, id string) (*Candidate, error) {
	row := r.db.QueryRowContext(ctx, selectCandidate+` WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *QueueRepo) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE review_candidates SET status = ? WHERE id = ?`, status, id)
	return err
}

// SeenMessage reports whether any candidate from this source message has
// already been queued or decided. Rejected messages stay seen forever.
func (r *QueueRepo) SeenMessage(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM review_candidates WHERE message_id = ? LIMIT 1`, messageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const selectCandidate = `
SELECT id, message_id, message_link, name, amount, due_date, category,
       confidence, amount_confidence, due_confidence, evidence,
       duplicate, duplicate_reason
FROM review_candidates`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (Candidate, error) {
	var c Candidate
	var amount, due sql.NullString
	var evidence string
	var duplicate int
	if err := row.Scan(&c.ID, &c.MessageID, &c.MessageLink, &c.Name, &amount, &due, &c.Category,
		&c.Confidence, &c.AmountConfidence, &c.DueDateConfidence, &evidence,
		&duplicate, &c.DuplicateReason); err != nil {
		return Candidate{}, err
	}
	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err == nil {
			c.Amount = &d
		}
	}
	if due.Valid {
		t, err := time.ParseInLocation("2006-01-02", due.String, time.UTC)
		if err == nil {
			c.DueDate = &t
		}
	}
	c.Duplicate = duplicate != 0
	c.Evidence = map[string]string{}
	_ = json.Unmarshal([]byte(evidence), &c.Evidence)
	return c, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
