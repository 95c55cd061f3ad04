package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/arlo/billdeck/internal/bill"
	"github.com/arlo/billdeck/internal/remote"
	"github.com/arlo/billdeck/internal/store"
	"github.com/arlo/billdeck/internal/undo"
)

// Result is what every verb hands back. Verbs never return errors: remote
// failures are rolled back and surfaced through the notifier, and the caller
// only needs to know whether the mutation stuck. A false Result with an
// empty Message is a silent rejection (lock contention from duplicate
// input), which is deliberately not user-visible.
type Result struct {
	OK      bool
	Message string
}

// Engine owns every mutation of the bill store. Each verb follows the same
// protocol: not-found check, per-bill lock or silent reject, snapshot in a
// local variable, synchronous optimistic apply, remote call, reconcile with
// the authoritative response or restore the snapshot exactly, and a deferred
// unlock so the lock can never leak.
type Engine struct {
	store  *store.Store
	remote remote.Client
	undo   *undo.Coordinator
	log    *logrus.Logger
	notify func(string)
	now    func() time.Time
}

func New(st *store.Store, rc remote.Client, ud *undo.Coordinator, log *logrus.Logger, notify func(string)) *Engine {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	if notify == nil {
		notify = func(string) {}
	}
	return &Engine{
		store:  st,
		remote: rc,
		undo:   ud,
		log:    log,
		notify: notify,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for paid-at stamps.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Store exposes the bill store for readers (UI, classifiers).
func (e *Engine) Store() *store.Store { return e.store }

// Undo exposes the undo coordinator for rendering pending affordances.
func (e *Engine) Undo() *undo.Coordinator { return e.undo }

// Refresh re-hydrates the store from the backend. Records whose mutation
// lock is held keep their optimistic state until their own verb reconciles.
func (e *Engine) Refresh(ctx context.Context) Result {
	bills, err := e.remote.List(ctx, true)
	if err != nil {
		e.log.WithError(err).Warn("refresh failed")
		e.notify("Couldn't refresh bills.")
		return Result{Message: "refresh failed"}
	}
	e.store.ReplaceAll(bills)
	return Result{OK: true}
}

// Add creates a bill. A placeholder record with a local pending id appears
// immediately; once the server confirms, the placeholder is discarded in
// favor of a full re-hydration, since the server owns derived fields like
// assigned ids and successor linkage.
func (e *Engine) Add(ctx context.Context, b bill.Bill) Result {
	if b.Source == "" {
		b.Source = bill.SourceManual
	}
	if err := b.Validate(); err != nil {
		return e.failInput("add", err)
	}
	b.ID = bill.NewPendingID()
	if !e.store.TryLock(b.ID, store.ReasonAdding) {
		return Result{}
	}
	defer e.store.Unlock(b.ID)

	e.store.Put(b)
	created, err := e.remote.Create(ctx, b)
	if err != nil {
		e.store.Remove(b.ID)
		return e.failRemote("add", b.Name, err)
	}
	e.store.Remove(b.ID)
	if r := e.Refresh(ctx); !r.OK {
		// keep the confirmed record even when the follow-up list fails
		e.store.Put(created)
	}
	return Result{OK: true, Message: fmt.Sprintf("Added %s.", created.Name)}
}

// Update edits a bill in place. When the nominal amount changes, the prior
// amount is retained so the UI can flag price increases.
func (e *Engine) Update(ctx context.Context, next bill.Bill) Result {
	cur, ok := e.store.Get(next.ID)
	if !ok {
		return e.failNotFound(next.ID)
	}
	if amountChanged(cur.Amount, next.Amount) {
		next.PreviousAmount = cur.Amount
	}
	if err := next.Validate(); err != nil {
		return e.failInput("update", err)
	}
	return e.applyUpdate(ctx, next, store.ReasonEditing)
}

// Snooze shifts a bill's due date forward by days and offers a time-boxed
// undo that restores the original date.
func (e *Engine) Snooze(ctx context.Context, id string, days int) Result {
	cur, ok := e.store.Get(id)
	if !ok {
		return e.failNotFound(id)
	}
	origDue := cur.DueDate
	next := cur
	next.DueDate = cur.DueDate.AddDate(0, 0, days)

	r := e.applyUpdate(ctx, next, store.ReasonSnoozing)
	if !r.OK {
		return r
	}
	e.undo.Offer(id, fmt.Sprintf("Snoozed %s %dd", cur.Name, days), func(ctx context.Context) bool {
		b, ok := e.store.Get(id)
		if !ok {
			return false
		}
		b.DueDate = origDue
		return e.applyUpdate(ctx, b, store.ReasonEditing).OK
	})
	r.Message = fmt.Sprintf("Snoozed %s to %s.", cur.Name, next.DueDate.Format("Jan 2"))
	return r
}

// applyUpdate is the shared optimistic-update path behind Update, Snooze and
// the snooze inverse.
func (e *Engine) applyUpdate(ctx context.Context, next bill.Bill, reason store.LockReason) Result {
	snapshot, ok := e.store.Get(next.ID)
	if !ok {
		return e.failNotFound(next.ID)
	}
	if !e.store.TryLock(next.ID, reason) {
		return Result{}
	}
	defer e.store.Unlock(next.ID)
	e.undo.Supersede(next.ID)

	e.store.Put(next)
	updated, err := e.remote.Update(ctx, next)
	if err != nil {
		e.store.Put(snapshot)
		return e.failRemote("update", next.Name, err)
	}
	e.store.Put(updated)
	return Result{OK: true, Message: fmt.Sprintf("Updated %s.", updated.Name)}
}

// MarkPaid marks a bill paid, merging any server-generated successor for
// recurring bills and offering an undo that carries the pre-paid snapshot
// plus the successor's id.
func (e *Engine) MarkPaid(ctx context.Context, id string, amount *decimal.Decimal) Result {
	cur, ok := e.store.Get(id)
	if !ok {
		return e.failNotFound(id)
	}
	if cur.IsPaid {
		return e.failInput("pay", errors.New("already paid"))
	}
	if !e.store.TryLock(id, store.ReasonMarkingPaid) {
		return Result{}
	}
	defer e.store.Unlock(id)
	e.undo.Supersede(id)

	snapshot := cur.Clone()
	now := e.now()
	paidAmount := amount
	if paidAmount == nil {
		paidAmount = cur.Amount
	}
	optimistic := cur
	optimistic.IsPaid = true
	optimistic.PaidAt = &now
	optimistic.LastPaidAmount = paidAmount
	e.store.Put(optimistic)

	resp, err := e.remote.Pay(ctx, id, amount)
	if err != nil {
		e.store.Put(snapshot)
		return e.failRemote("pay", cur.Name, err)
	}
	e.store.Put(resp.Paid)
	successorID := ""
	if resp.Next != nil {
		e.store.Put(*resp.Next)
		successorID = resp.Next.ID
	}

	pre := snapshot
	e.undo.Offer(id, "Paid "+cur.Name, func(ctx context.Context) bool {
		return e.UndoPaid(ctx, id, UndoPaidOptions{Restore: &pre, SuccessorID: successorID}).OK
	})
	return Result{OK: true, Message: fmt.Sprintf("Paid %s.", cur.Name)}
}

// UndoPaidOptions carries what the undo affordance learned at pay time.
// Restore is the exact pre-paid snapshot when known; SuccessorID names the
// generated successor to remove. Both may be empty for a direct
// mark-as-unpaid without a pending undo.
type UndoPaidOptions struct {
	Restore     *bill.Bill
	SuccessorID string
}

// UndoPaid reverts a payment. The restored unpaid record and the successor
// removal land in one store transition, so no reader sees both at once. The
// successor is removed unconditionally, even if it was edited after the pay.
func (e *Engine) UndoPaid(ctx context.Context, id string, opts UndoPaidOptions) Result {
	cur, ok := e.store.Get(id)
	if !ok {
		return e.failNotFound(id)
	}
	if !cur.IsPaid {
		return e.failInput("unpay", errors.New("not paid"))
	}
	if !e.store.TryLock(id, store.ReasonUndoingPayment) {
		return Result{}
	}
	defer e.store.Unlock(id)
	e.undo.Supersede(id)

	paidSnapshot := cur.Clone()
	var successorSnapshot *bill.Bill
	if opts.SuccessorID != "" {
		if s, ok := e.store.Get(opts.SuccessorID); ok {
			successorSnapshot = &s
		}
	}

	restored := cur
	if opts.Restore != nil {
		restored = opts.Restore.Clone()
	} else {
		restored.IsPaid = false
		restored.PaidAt = nil
	}
	e.store.RestoreAndRemove(restored, opts.SuccessorID)

	unpaid, err := e.remote.Unpay(ctx, id)
	if err != nil {
		e.store.Put(paidSnapshot)
		if successorSnapshot != nil {
			e.store.Put(*successorSnapshot)
		}
		return e.failRemote("unpay", cur.Name, err)
	}
	e.store.Put(unpaid)
	return Result{OK: true, Message: fmt.Sprintf("%s is unpaid again.", cur.Name)}
}

// Delete removes a bill. The record is optimistically hidden rather than
// dropped, so a failed delete restores visibility without a snapshot.
func (e *Engine) Delete(ctx context.Context, id string) Result {
	cur, ok := e.store.Get(id)
	if !ok {
		return e.failNotFound(id)
	}
	if !e.store.TryLock(id, store.ReasonDeleting) {
		return Result{}
	}
	defer e.store.Unlock(id)
	e.undo.Supersede(id)

	e.store.MarkPendingDelete(id)
	if err := e.remote.Delete(ctx, id); err != nil {
		e.store.ClearPendingDelete(id)
		return e.failRemote("delete", cur.Name, err)
	}
	e.store.Remove(id)
	if r := e.Refresh(ctx); !r.OK {
		e.log.Warn("post-delete refresh failed; local removal kept")
	}
	return Result{OK: true, Message: fmt.Sprintf("Deleted %s.", cur.Name)}
}

// CreateImported is the add path for confirmed or auto-created extraction
// candidates. It exists so the review router can depend on a plain
// error-returning creator.
func (e *Engine) CreateImported(ctx context.Context, b bill.Bill) error {
	b.Source = bill.SourceImported
	r := e.Add(ctx, b)
	if !r.OK {
		if r.Message == "" {
			return errors.New("another operation is in flight")
		}
		return errors.New(r.Message)
	}
	return nil
}

func (e *Engine) failNotFound(id string) Result {
	e.log.WithField("bill", id).Debug("mutation on missing bill")
	e.notify("That bill no longer exists.")
	return Result{Message: "bill no longer exists"}
}

func (e *Engine) failInput(verb string, err error) Result {
	msg := fmt.Sprintf("Can't %s: %v", verb, err)
	e.notify(msg)
	return Result{Message: msg}
}

func (e *Engine) failRemote(verb, name string, err error) Result {
	e.log.WithError(err).WithField("verb", verb).Warn("remote call failed, rolled back")
	msg := fmt.Sprintf("Couldn't %s %s — change reverted.", verb, name)
	if errors.Is(err, remote.ErrNotFound) {
		msg = fmt.Sprintf("%s no longer exists on the server.", name)
	}
	e.notify(msg)
	return Result{Message: msg}
}

func amountChanged(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return (a == nil) != (b == nil)
	}
	return !a.Equal(*b)
}
