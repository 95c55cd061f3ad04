package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/arlo/billdeck/internal/bill"
	"github.com/arlo/billdeck/internal/risk"
)

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n\n")

	switch a.state {
	case viewReview:
		b.WriteString(a.renderReview())
	case viewSuggest:
		b.WriteString(a.renderSuggestions())
	default:
		b.WriteString(a.renderBills())
	}

	b.WriteString("\n")
	if toast := a.renderToast(); toast != "" {
		b.WriteString(toast)
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(a.status))
	b.WriteString("\n")
	b.WriteString(a.renderFooter())
	return b.String()
}

func (a *App) renderHeader() string {
	tabs := []struct {
		state appState
		label string
	}{
		{viewBills, "[1] Bills"},
		{viewReview, fmt.Sprintf("[2] Review (%d)", len(a.queue))},
		{viewSuggest, fmt.Sprintf("[3] Recurring? (%d)", len(a.suggestions))},
	}
	parts := make([]string, 0, len(tabs)+1)
	parts = append(parts, titleStyle.Render("billdeck"))
	for _, t := range tabs {
		if t.state == a.state {
			parts = append(parts, tabActiveStyle.Render(t.label))
		} else {
			parts = append(parts, tabStyle.Render(t.label))
		}
	}
	return strings.Join(parts, " ")
}

func (a *App) renderBills() string {
	if a.adding {
		return "New bill:\n" + a.addField.View()
	}
	if len(a.bills) == 0 {
		return mutedStyle.Render("No bills. Press a to add one, s to scan email.")
	}
	today := time.Now()
	all := a.engine.Store().List(true)
	var b strings.Builder
	for i, item := range a.bills {
		prefix := "  "
		if i == a.billCursor {
			prefix = cursorStyle.Render("> ")
		}
		b.WriteString(prefix)
		b.WriteString(a.renderBillLine(item, all, today))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *App) renderBillLine(item bill.Bill, all []bill.Bill, today time.Time) string {
	name := item.Name
	if len(name) > 28 {
		name = name[:25] + "..."
	}
	amount := "variable"
	if item.Amount != nil {
		amount = "$" + item.Amount.StringFixed(2)
	}
	line := fmt.Sprintf("%-28s %10s  due %s", name, amount, item.DueDate.Format("Jan 02"))

	if item.IsPaid {
		return paidStyle.Render(line + "  ✓ paid")
	}
	if reason, locked := a.engine.Store().Lock(item.ID); locked {
		line += mutedStyle.Render(fmt.Sprintf("  … %s", strings.ReplaceAll(string(reason), "_", " ")))
	}
	switch risk.Classify(item, all, today) {
	case risk.TagOverdue:
		line += "  " + overdueStyle.Render("OVERDUE")
	case risk.TagUrgent:
		line += "  " + urgentStyle.Render("due soon")
	case risk.TagForgotLastMonth:
		line += "  " + forgotStyle.Render("forgot last month?")
	}
	if risk.HasLatePaymentRisk(item, today) {
		line += "  " + urgentStyle.Render("⚠ late fee risk")
	}
	if item.IsRecurring {
		line += mutedStyle.Render("  ↻ " + string(item.Interval))
	}
	if item.Autopay {
		line += mutedStyle.Render("  autopay")
	}
	return line
}

func (a *App) renderReview() string {
	if len(a.queue) == 0 {
		return mutedStyle.Render("Review queue is empty. Press s in the bills view to scan.")
	}
	var b strings.Builder
	for i, c := range a.queue {
		prefix := "  "
		if i == a.queueCursor {
			prefix = cursorStyle.Render("> ")
		}
		amount := "?"
		if c.Amount != nil {
			amount = "$" + c.Amount.StringFixed(2)
		}
		due := "no due date"
		if c.DueDate != nil {
			due = "due " + c.DueDate.Format("Jan 02")
		}
		b.WriteString(fmt.Sprintf("%s%-28s %10s  %s  %.0f%% sure", prefix, c.Name, amount, due, c.Confidence*100))
		if c.Duplicate {
			b.WriteString("  " + urgentStyle.Render("possible duplicate: "+c.DuplicateReason))
		}
		b.WriteString("\n")
		if a.showEvidence && i == a.queueCursor {
			for field, snippet := range c.Evidence {
				b.WriteString(evidenceStyle.Render(fmt.Sprintf("%s: %q", field, snippet)))
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *App) renderSuggestions() string {
	if len(a.suggestions) == 0 {
		return mutedStyle.Render("No recurrence suggestions right now.")
	}
	var b strings.Builder
	for i, s := range a.suggestions {
		prefix := "  "
		if i == a.suggestCursor {
			prefix = cursorStyle.Render("> ")
		}
		b.WriteString(fmt.Sprintf("%s%-28s looks %s (%.0f%%) — %s\n",
			prefix, s.BillName, s.Interval, s.Confidence*100, s.Justification))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderToast shows pending undo affordances with their countdown.
func (a *App) renderToast() string {
	entries := a.engine.Undo().Active()
	if len(entries) == 0 {
		return ""
	}
	now := time.Now()
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		secs := int(e.Remaining(now).Seconds())
		parts = append(parts, fmt.Sprintf("%s — press u to undo (%ds)", e.Label, secs))
	}
	return toastStyle.Render(strings.Join(parts, "   "))
}

func (a *App) renderFooter() string {
	switch a.state {
	case viewReview:
		return mutedStyle.Render("y confirm · n reject · e evidence · j/k move · 1/2/3 views · q quit")
	case viewSuggest:
		return mutedStyle.Render("y accept · n dismiss · j/k move · 1/2/3 views · q quit")
	default:
		return mutedStyle.Render("p pay · u undo · z snooze · x delete · a add · s scan · t paid · r refresh · q quit")
	}
}
