package store

import (
	"sort"
	"sync"

	"github.com/arlo/billdeck/internal/bill"
)

// LockReason names the operation currently holding a bill's mutation lock.
type LockReason string

const (
	ReasonMarkingPaid    LockReason = "marking_paid"
	ReasonEditing        LockReason = "editing"
	ReasonDeleting       LockReason = "deleting"
	ReasonAdding         LockReason = "adding"
	ReasonSnoozing       LockReason = "snoozing"
	ReasonUndoingPayment LockReason = "undoing_payment"
)

// Store is the single source of truth for the bill collection. All reads
// (UI, classifiers) come from here; all writes funnel through the mutation
// engine. Records returned are deep copies, so callers can never mutate
// shared state by accident.
//
// Engine verbs run inside concurrent command goroutines, so the store is
// internally synchronized. Per-bill mutation locks on top of that serialize
// verbs targeting the same bill; verbs on distinct bills overlap freely.
type Store struct {
	mu            sync.Mutex
	bills         map[string]bill.Bill
	locks         map[string]LockReason
	pendingDelete map[string]struct{}
}

func New() *Store {
	return &Store{
		bills:         make(map[string]bill.Bill),
		locks:         make(map[string]LockReason),
		pendingDelete: make(map[string]struct{}),
	}
}

// TryLock claims the mutation lock for id. It fails (and changes nothing)
// when any operation already holds the lock, which is how double-submits on
// the same bill are rejected rather than queued.
func (s *Store) TryLock(id string, reason LockReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[id]; held {
		return false
	}
	s.locks[id] = reason
	return true
}

// Unlock releases id's mutation lock. Safe to call when not held.
func (s *Store) Unlock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}

// Lock reports the reason currently holding id, if any. The UI uses this to
// disable or spin controls mid-mutation.
func (s *Store) Lock(id string) (LockReason, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.locks[id]
	return r, ok
}

// LockedIDs returns every bill id currently holding a mutation lock.
func (s *Store) LockedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.locks))
	for id := range s.locks {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Get returns a copy of the bill, and whether it exists. Bills hidden by a
// pending delete are still visible to Get; only List filters them.
func (s *Store) Get(id string) (bill.Bill, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	if !ok {
		return bill.Bill{}, false
	}
	return b.Clone(), true
}

// Put inserts or replaces a record.
func (s *Store) Put(b bill.Bill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[b.ID] = b.Clone()
}

// Remove drops a record and any pending-delete marker for it.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bills, id)
	delete(s.pendingDelete, id)
}

// RestoreAndRemove installs restored and drops removeID in one transition.
// Undoing a payment uses this so no reader ever observes the restored unpaid
// bill and the generated successor at the same time.
func (s *Store) RestoreAndRemove(restored bill.Bill, removeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[restored.ID] = restored.Clone()
	if removeID != "" {
		delete(s.bills, removeID)
		delete(s.pendingDelete, removeID)
	}
}

// MarkPendingDelete optimistically hides id from List without discarding the
// record, so a failed delete can restore visibility without a snapshot.
func (s *Store) MarkPendingDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDelete[id] = struct{}{}
}

// ClearPendingDelete un-hides id after a failed delete.
func (s *Store) ClearPendingDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingDelete, id)
}

// PendingDelete reports whether id is optimistically hidden.
func (s *Store) PendingDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pendingDelete[id]
	return ok
}

// List returns visible bills sorted by due date (ties by name). Bills in the
// pending-deletion set are excluded; paid bills only when includePaid.
func (s *Store) List(includePaid bool) []bill.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bill.Bill, 0, len(s.bills))
	for id, b := range s.bills {
		if _, hidden := s.pendingDelete[id]; hidden {
			continue
		}
		if b.IsPaid && !includePaid {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ReplaceAll installs the authoritative server collection after a
// re-hydration. Records for bills whose mutation lock is held keep their
// local (optimistic) state: their in-flight verb has not reconciled yet and
// the server copy would briefly revert what the user just saw applied.
// Pending-delete markers survive; markers for ids the server no longer
// returns are dropped along with the record.
func (s *Store) ReplaceAll(bills []bill.Bill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]bill.Bill, len(bills))
	for _, b := range bills {
		next[b.ID] = b.Clone()
	}
	for id := range s.locks {
		if local, ok := s.bills[id]; ok {
			next[id] = local
		}
	}
	for id := range s.pendingDelete {
		if _, ok := next[id]; !ok {
			delete(s.pendingDelete, id)
		}
	}
	s.bills = next
}

// Len returns the number of records, hidden ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bills)
}
