package undo

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultWindow is how long an undo affordance stays invokable.
const DefaultWindow = 10 * time.Second

// Entry is one pending undo affordance. Invoke replays the inverse mutation
// through the engine; the coordinator never touches the store itself.
type Entry struct {
	BillID    string
	Label     string
	ExpiresAt time.Time
	invoke    func(context.Context) bool
}

// Remaining is the time left before the affordance disappears.
func (e Entry) Remaining(now time.Time) time.Duration {
	if d := e.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Coordinator tracks time-boxed undo affordances, at most one per bill.
// Undo here is a client convenience over the normal mutation path, not a
// transactional mechanism: after the window closes the entry is simply gone.
type Coordinator struct {
	mu      sync.Mutex
	entries map[string]Entry
	window  time.Duration
	now     func() time.Time
}

func New(window time.Duration) *Coordinator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coordinator{
		entries: make(map[string]Entry),
		window:  window,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests use this to step past the window.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Offer registers an undo affordance for billID, replacing any pending one
// for the same bill (a newer mutation always supersedes a stale snapshot).
func (c *Coordinator) Offer(billID, label string, invoke func(context.Context) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[billID] = Entry{
		BillID:    billID,
		Label:     label,
		ExpiresAt: c.now().Add(c.window),
		invoke:    invoke,
	}
}

// Supersede drops a pending undo for billID. The engine calls this when a
// new mutation starts on the bill, so a stale snapshot can never be
// restored over fresher state.
func (c *Coordinator) Supersede(billID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, billID)
}

// Invoke runs the pending undo for billID if it exists and has not expired.
// The entry is consumed either way once its window has closed.
func (c *Coordinator) Invoke(ctx context.Context, billID string) bool {
	c.mu.Lock()
	e, ok := c.entries[billID]
	if ok {
		delete(c.entries, billID)
	}
	expired := ok && c.now().After(e.ExpiresAt)
	c.mu.Unlock()

	if !ok || expired {
		return false
	}
	return e.invoke(ctx)
}

// Active returns unexpired entries, soonest-expiring first, pruning the
// rest. The UI renders these as toasts with a countdown.
func (c *Coordinator) Active() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	out := make([]Entry, 0, len(c.entries))
	for id, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, id)
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}
