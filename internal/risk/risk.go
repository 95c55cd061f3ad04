package risk

import (
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/arlo/billdeck/internal/bill"
)

// Tag is a derived, non-persisted urgency label for an unpaid bill.
type Tag string

const (
	TagNone            Tag = ""
	TagOverdue         Tag = "overdue"
	TagUrgent          Tag = "urgent"
	TagForgotLastMonth Tag = "forgot_last_month"
)

// urgentWindowDays is how far ahead a due date still counts as urgent.
const urgentWindowDays = 3

// Classify labels one unpaid bill with at most one tag, highest priority
// first: overdue beats urgent beats forgot-last-month. Paid bills carry no
// tag. Pure: recomputed on every read, nothing stored.
func Classify(b bill.Bill, all []bill.Bill, today time.Time) Tag {
	if b.IsPaid {
		return TagNone
	}
	days := bill.DaysUntil(b.DueDate, today)
	if days < 0 {
		return TagOverdue
	}
	if days <= urgentWindowDays {
		return TagUrgent
	}
	if forgotLastMonth(b, all, today) {
		return TagForgotLastMonth
	}
	return TagNone
}

// HasLatePaymentRisk flags manually paid bills that are overdue or urgent.
// It is independent of Classify so the UI can show a late-fee affordance
// next to a risk tag.
func HasLatePaymentRisk(b bill.Bill, today time.Time) bool {
	if b.IsPaid || b.Autopay {
		return false
	}
	return bill.DaysUntil(b.DueDate, today) <= urgentWindowDays
}

// forgotLastMonth holds when a matching bill was paid in the previous
// calendar month but nothing matching has been paid this month yet.
func forgotLastMonth(b bill.Bill, all []bill.Bill, today time.Time) bool {
	thisY, thisM, _ := bill.Day(today).Date()
	prev := bill.Day(today).AddDate(0, -1, 0)
	prevY, prevM, _ := prev.Date()

	paidPrev, paidThis := false, false
	for _, other := range all {
		if other.PaidAt == nil || !sameBillName(b.Name, other.Name) {
			continue
		}
		y, m, _ := other.PaidAt.UTC().Date()
		if y == prevY && m == prevM {
			paidPrev = true
		}
		if y == thisY && m == thisM {
			paidThis = true
		}
	}
	return paidPrev && !paidThis
}

// sameBillName matches names after normalization, tolerating small typos and
// suffix drift ("Netflix" vs "Netflix Premium" stay distinct, "Electic" vs
// "Electric" match).
func sameBillName(a, b string) bool {
	na, nb := bill.NormalizeName(a), bill.NormalizeName(b)
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	return levenshtein.ComputeDistance(na, nb) <= 2
}
