package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/arlo/billdeck/internal/bill"
	"github.com/arlo/billdeck/internal/engine"
	"github.com/arlo/billdeck/internal/extract"
	"github.com/arlo/billdeck/internal/recur"
)

// App ties the bill store, mutation engine and review router to the screen.
// It only ever reads the store; every change goes through an engine verb
// inside a tea.Cmd, and a periodic tick re-reads the store so optimistic
// state and undo countdowns stay visible while calls are in flight.
type App struct {
	ctx        context.Context
	engine     *engine.Engine
	router     *extract.Router
	dismissals *recur.DismissalRepo
	scanCfg    ScanConfig

	state       appState
	bills       []bill.Bill
	queue       []extract.Candidate
	suggestions []recur.Suggestion

	billCursor    int
	queueCursor   int
	suggestCursor int
	showPaid      bool
	showEvidence  bool
	status        string
	width         int
	height        int

	adding   bool
	addField textinput.Model
}

// ScanConfig carries the scan parameters from config.
type ScanConfig struct {
	MaxResults int
	DaysBack   int
}

type appState string

const (
	viewBills   appState = "bills"
	viewReview  appState = "review"
	viewSuggest appState = "suggest"
)

// messages
type (
	storeChangedMsg struct{}
	statusMsg       string
	errMsg          struct{ err error }
	queueMsg        []extract.Candidate
	suggestMsg      []recur.Suggestion
	tickMsg         time.Time
)

func New(ctx context.Context, eng *engine.Engine, router *extract.Router, dismissals *recur.DismissalRepo, scanCfg ScanConfig) *App {
	field := textinput.New()
	field.Placeholder = "name, amount, YYYY-MM-DD"
	field.Prompt = "> "
	field.CharLimit = 120
	return &App{
		ctx:        ctx,
		engine:     eng,
		router:     router,
		dismissals: dismissals,
		scanCfg:    scanCfg,
		state:      viewBills,
		addField:   field,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.hydrateCmd(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// hydrateCmd fetches the remote collection and the local review queue
// together on startup and manual refresh.
func (a *App) hydrateCmd() tea.Cmd {
	return func() tea.Msg {
		g, ctx := errgroup.WithContext(a.ctx)
		var queue []extract.Candidate
		g.Go(func() error {
			if r := a.engine.Refresh(ctx); !r.OK {
				return fmt.Errorf("refresh failed")
			}
			return nil
		})
		g.Go(func() error {
			var err error
			queue, err = a.router.Queue.Pending(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return errMsg{err}
		}
		return queueMsg(queue)
	}
}

func (a *App) loadQueueCmd() tea.Cmd {
	return func() tea.Msg {
		queue, err := a.router.Queue.Pending(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return queueMsg(queue)
	}
}

func (a *App) loadSuggestionsCmd() tea.Cmd {
	return func() tea.Msg {
		dismissed, err := a.dismissals.All(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return suggestMsg(recur.Detect(a.engine.Store().List(true), dismissed))
	}
}

func (a *App) mutateCmd(run func(ctx context.Context) engine.Result) tea.Cmd {
	return func() tea.Msg {
		r := run(a.ctx)
		if r.Message != "" {
			return statusMsg(r.Message)
		}
		return storeChangedMsg{}
	}
}

func (a *App) scanCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := a.router.ScanAndRoute(a.ctx, a.scanCfg.MaxResults, a.scanCfg.DaysBack)
		if err != nil {
			switch err {
			case extract.ErrNotConnected:
				return statusMsg("Email isn't connected — link an account in settings to scan.")
			case extract.ErrAuthExpired:
				return statusMsg("Email authorization expired — reconnect to keep scanning.")
			}
			return errMsg{err}
		}
		return statusMsg(fmt.Sprintf("Scan done: %d auto-added, %d for review, %d already seen.",
			res.AutoCreated, res.Queued, res.Skipped))
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		return a, nil
	case tickMsg:
		a.readStore()
		return a, tickCmd()
	case storeChangedMsg:
		a.readStore()
		return a, nil
	case statusMsg:
		a.status = string(m)
		a.readStore()
		return a, a.loadQueueCmd()
	case errMsg:
		a.status = "error: " + m.err.Error()
		return a, nil
	case queueMsg:
		a.queue = []extract.Candidate(m)
		a.readStore()
		if a.queueCursor >= len(a.queue) {
			a.queueCursor = 0
		}
		return a, nil
	case suggestMsg:
		a.suggestions = []recur.Suggestion(m)
		if a.suggestCursor >= len(a.suggestions) {
			a.suggestCursor = 0
		}
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(m)
	}
	if a.adding {
		// cursor blink and other input machinery
		var cmd tea.Cmd
		a.addField, cmd = a.addField.Update(msg)
		return a, cmd
	}
	return a, nil
}

// readStore refreshes the rendered slice from the single source of truth.
func (a *App) readStore() {
	a.bills = a.engine.Store().List(a.showPaid)
	if a.billCursor >= len(a.bills) {
		a.billCursor = 0
	}
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.adding {
		return a.handleAddKey(m)
	}
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "1", "b":
		a.state = viewBills
		return a, nil
	case "2", "v":
		a.state = viewReview
		return a, a.loadQueueCmd()
	case "3", "g":
		a.state = viewSuggest
		return a, a.loadSuggestionsCmd()
	case "r":
		a.status = "refreshing..."
		return a, a.hydrateCmd()
	case "up", "k":
		a.moveCursor(-1)
		return a, nil
	case "down", "j":
		a.moveCursor(1)
		return a, nil
	}

	switch a.state {
	case viewBills:
		return a.handleBillsKey(m)
	case viewReview:
		return a.handleReviewKey(m)
	case viewSuggest:
		return a.handleSuggestKey(m)
	}
	return a, nil
}

func (a *App) moveCursor(delta int) {
	move := func(cursor *int, n int) {
		*cursor += delta
		if *cursor < 0 {
			*cursor = 0
		}
		if n > 0 && *cursor > n-1 {
			*cursor = n - 1
		}
	}
	switch a.state {
	case viewBills:
		move(&a.billCursor, len(a.bills))
	case viewReview:
		move(&a.queueCursor, len(a.queue))
	case viewSuggest:
		move(&a.suggestCursor, len(a.suggestions))
	}
}

func (a *App) handleBillsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "a":
		a.adding = true
		a.addField.Reset()
		return a, a.addField.Focus()
	case "t":
		a.showPaid = !a.showPaid
		a.readStore()
		return a, nil
	case "p":
		if b, ok := a.selectedBill(); ok {
			return a, a.mutateCmd(func(ctx context.Context) engine.Result {
				return a.engine.MarkPaid(ctx, b.ID, nil)
			})
		}
	case "u":
		sel, hasSel := a.selectedBill()
		return a, func() tea.Msg {
			if hasSel && a.engine.Undo().Invoke(a.ctx, sel.ID) {
				return statusMsg("Undone.")
			}
			// the bill a toast points at is usually a just-paid one, hidden
			// from the list, so fall back to the soonest-expiring entry
			if entries := a.engine.Undo().Active(); len(entries) > 0 {
				if a.engine.Undo().Invoke(a.ctx, entries[0].BillID) {
					return statusMsg("Undone.")
				}
			}
			if hasSel && sel.IsPaid {
				r := a.engine.UndoPaid(a.ctx, sel.ID, engine.UndoPaidOptions{})
				if r.Message != "" {
					return statusMsg(r.Message)
				}
				return storeChangedMsg{}
			}
			return statusMsg("Nothing to undo.")
		}
	case "x":
		if b, ok := a.selectedBill(); ok {
			return a, a.mutateCmd(func(ctx context.Context) engine.Result {
				return a.engine.Delete(ctx, b.ID)
			})
		}
	case "z":
		if b, ok := a.selectedBill(); ok {
			return a, a.mutateCmd(func(ctx context.Context) engine.Result {
				return a.engine.Snooze(ctx, b.ID, 7)
			})
		}
	case "s":
		a.status = "scanning email..."
		return a, a.scanCmd()
	}
	return a, nil
}

func (a *App) handleReviewKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	c, ok := a.selectedCandidate()
	if !ok {
		return a, nil
	}
	switch m.String() {
	case "y", "enter":
		return a, func() tea.Msg {
			if err := a.router.Confirm(a.ctx, c.ID, extract.Corrections{}); err != nil {
				return errMsg{err}
			}
			return statusMsg("Added " + c.Name + ".")
		}
	case "n":
		return a, func() tea.Msg {
			if err := a.router.Reject(a.ctx, c.ID); err != nil {
				return errMsg{err}
			}
			return statusMsg("Rejected " + c.Name + ".")
		}
	case "e":
		a.showEvidence = !a.showEvidence
	}
	return a, nil
}

func (a *App) handleSuggestKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	s, ok := a.selectedSuggestion()
	if !ok {
		return a, nil
	}
	switch m.String() {
	case "y", "enter":
		return a, tea.Sequence(
			a.mutateCmd(func(ctx context.Context) engine.Result {
				b, found := a.engine.Store().Get(s.BillID)
				if !found {
					return engine.Result{Message: "bill no longer exists"}
				}
				b.IsRecurring = true
				b.Interval = s.Interval
				return a.engine.Update(ctx, b)
			}),
			a.loadSuggestionsCmd(),
		)
	case "n":
		return a, tea.Sequence(
			func() tea.Msg {
				if err := a.dismissals.Dismiss(a.ctx, s.BillID); err != nil {
					return errMsg{err}
				}
				return statusMsg("Won't suggest " + s.BillName + " again.")
			},
			a.loadSuggestionsCmd(),
		)
	}
	return a, nil
}

func (a *App) handleAddKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.Type {
	case tea.KeyEsc:
		a.adding = false
		a.addField.Blur()
		return a, nil
	case tea.KeyEnter:
		input := a.addField.Value()
		a.adding = false
		a.addField.Blur()
		b, err := parseQuickAdd(input)
		if err != nil {
			a.status = err.Error()
			return a, nil
		}
		return a, a.mutateCmd(func(ctx context.Context) engine.Result {
			return a.engine.Add(ctx, b)
		})
	}
	var cmd tea.Cmd
	a.addField, cmd = a.addField.Update(m)
	return a, cmd
}

// parseQuickAdd understands "Name, 42.50, 2026-09-15". The amount may be "-"
// for a variable bill.
func parseQuickAdd(input string) (bill.Bill, error) {
	parts := strings.Split(input, ",")
	if len(parts) != 3 {
		return bill.Bill{}, fmt.Errorf("use: name, amount, YYYY-MM-DD")
	}
	name := strings.TrimSpace(parts[0])
	amountRaw := strings.TrimSpace(parts[1])
	dateRaw := strings.TrimSpace(parts[2])

	due, err := time.ParseInLocation("2006-01-02", dateRaw, time.UTC)
	if err != nil {
		return bill.Bill{}, fmt.Errorf("bad date %q, want YYYY-MM-DD", dateRaw)
	}
	b := bill.Bill{Name: name, DueDate: due, Source: bill.SourceManual}
	if amountRaw != "" && amountRaw != "-" {
		d, err := decimal.NewFromString(amountRaw)
		if err != nil {
			return bill.Bill{}, fmt.Errorf("bad amount %q", amountRaw)
		}
		b.Amount = &d
	} else {
		b.VariableAmount = true
	}
	return b, nil
}

func (a *App) selectedBill() (bill.Bill, bool) {
	if len(a.bills) == 0 || a.billCursor >= len(a.bills) {
		return bill.Bill{}, false
	}
	return a.bills[a.billCursor], true
}

func (a *App) selectedCandidate() (extract.Candidate, bool) {
	if len(a.queue) == 0 || a.queueCursor >= len(a.queue) {
		return extract.Candidate{}, false
	}
	return a.queue[a.queueCursor], true
}

func (a *App) selectedSuggestion() (recur.Suggestion, bool) {
	if len(a.suggestions) == 0 || a.suggestCursor >= len(a.suggestions) {
		return recur.Suggestion{}, false
	}
	return a.suggestions[a.suggestCursor], true
}
