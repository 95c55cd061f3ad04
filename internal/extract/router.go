package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/arlo/billdeck/internal/bill"
)

// CreateFunc creates a bill through the normal add path. The router never
// writes to the store directly.
type CreateFunc func(ctx context.Context, b bill.Bill) error

// Router decides what happens to each scanned candidate: auto-create for
// high-confidence clean extractions, or the review queue for everything
// else. Duplicate-flagged candidates always go to review — the duplicate
// heuristic may be wrong and the user gets to see the reason.
type Router struct {
	Scanner   Scanner
	Queue     *QueueRepo
	Create    CreateFunc
	Threshold float64
	Log       *logrus.Logger
}

// RouteResult summarizes one scan-and-route pass.
type RouteResult struct {
	AutoCreated int
	Queued      int
	Skipped     int
}

// ScanAndRoute pulls fresh candidates and routes each one. Candidates from
// messages that already produced a queued or decided candidate are skipped,
// which is what keeps a rejected candidate from resurfacing.
func (r *Router) ScanAndRoute(ctx context.Context, maxResults, daysBack int) (RouteResult, error) {
	cands, err := r.Scanner.Scan(ctx, maxResults, daysBack)
	if err != nil {
		return RouteResult{}, err
	}
	return r.Route(ctx, cands)
}

// Route applies the confidence policy to a batch of candidates.
func (r *Router) Route(ctx context.Context, cands []Candidate) (RouteResult, error) {
	var res RouteResult
	for _, c := range cands {
		seen, err := r.Queue.SeenMessage(ctx, c.MessageID)
		if err != nil {
			return res, err
		}
		if seen {
			res.Skipped++
			continue
		}
		if r.autoCreatable(c) {
			if err := r.Create(ctx, candidateBill(c)); err != nil {
				r.Log.WithError(err).WithField("candidate", c.Name).Warn("auto-create failed, queueing for review")
				if err := r.Queue.Add(ctx, c, StatusPending); err != nil {
					return res, err
				}
				res.Queued++
				continue
			}
			if err := r.Queue.Add(ctx, c, StatusAuto); err != nil {
				return res, err
			}
			res.AutoCreated++
			continue
		}
		if err := r.Queue.Add(ctx, c, StatusPending); err != nil {
			return res, err
		}
		res.Queued++
	}
	return res, nil
}

// autoCreatable: strictly above the threshold, not duplicate-flagged, and
// carrying a due date (a bill without one is always worth a human look).
func (r *Router) autoCreatable(c Candidate) bool {
	return c.Confidence > r.Threshold && !c.Duplicate && c.DueDate != nil
}

// Corrections are user edits applied at confirm time. Non-nil fields win
// over the extractor's guess.
type Corrections struct {
	Name     *string
	Amount   *decimal.Decimal
	DueDate  *time.Time
	Category *string
}

// Confirm promotes a queued candidate into a bill via the normal add path.
func (r *Router) Confirm(ctx context.Context, id string, corr Corrections) error {
	c, err := r.Queue.Get(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("candidate %s not found", id)
	}
	if corr.Name != nil {
		c.Name = *corr.Name
	}
	if corr.Amount != nil {
		c.Amount = corr.Amount
	}
	if corr.DueDate != nil {
		c.DueDate = corr.DueDate
	}
	if corr.Category != nil {
		c.Category = *corr.Category
	}
	if err := r.Create(ctx, candidateBill(*c)); err != nil {
		return err
	}
	return r.Queue.UpdateStatus(ctx, id, StatusConfirmed)
}

// Reject permanently discards a queued candidate. Its source message stays
// in the decision history, so later scans never resurface it.
func (r *Router) Reject(ctx context.Context, id string) error {
	return r.Queue.UpdateStatus(ctx, id, StatusRejected)
}

// candidateBill maps a candidate onto a new imported bill. A missing due
// date falls back to a week out; confirm-time corrections are expected to
// have filled it for anything auto-created.
func candidateBill(c Candidate) bill.Bill {
	due := bill.Day(time.Now()).AddDate(0, 0, 7)
	if c.DueDate != nil {
		due = bill.Day(*c.DueDate)
	}
	return bill.Bill{
		Name:    c.Name,
		Amount:  c.Amount,
		DueDate: due,
		Source:  bill.SourceImported,
	}
}
