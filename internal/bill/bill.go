package bill

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Interval is the cadence at which a recurring bill repeats.
type Interval string

const (
	IntervalNone     Interval = ""
	IntervalWeekly   Interval = "weekly"
	IntervalBiweekly Interval = "biweekly"
	IntervalMonthly  Interval = "monthly"
	IntervalYearly   Interval = "yearly"
)

// Source records how a bill entered the collection.
type Source string

const (
	SourceManual   Source = "manual"
	SourceImported Source = "imported"
)

// PendingIDPrefix marks locally generated placeholder ids used during an
// optimistic add, before the server has assigned a real id.
const PendingIDPrefix = "pending-"

// NewPendingID returns a fresh placeholder id.
func NewPendingID() string {
	return PendingIDPrefix + uuid.NewString()
}

// IsPendingID reports whether id is a local placeholder.
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, PendingIDPrefix)
}

// Bill is the central entity: one payable obligation with a due date.
// Amount is nil for variable bills that have no nominal amount.
type Bill struct {
	ID             string
	Name           string
	Amount         *decimal.Decimal
	DueDate        time.Time // calendar date, UTC midnight, no time component
	IsPaid         bool
	PaidAt         *time.Time
	LastPaidAmount *decimal.Decimal
	IsRecurring    bool
	Interval       Interval
	Autopay        bool
	Source         Source
	PaymentURL     *string
	VariableAmount bool
	TypicalMin     *decimal.Decimal
	TypicalMax     *decimal.Decimal
	PreviousAmount *decimal.Decimal
}

// Clone returns a deep copy. Mutation snapshots rely on this being exact:
// a rollback re-installs the clone unchanged.
func (b Bill) Clone() Bill {
	c := b
	c.Amount = cloneDec(b.Amount)
	c.LastPaidAmount = cloneDec(b.LastPaidAmount)
	c.TypicalMin = cloneDec(b.TypicalMin)
	c.TypicalMax = cloneDec(b.TypicalMax)
	c.PreviousAmount = cloneDec(b.PreviousAmount)
	if b.PaidAt != nil {
		t := *b.PaidAt
		c.PaidAt = &t
	}
	if b.PaymentURL != nil {
		u := *b.PaymentURL
		c.PaymentURL = &u
	}
	return c
}

func cloneDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// Validate enforces the record invariants before a bill is sent anywhere:
// a name, a real due date, non-negative amounts, paid implies paid-at,
// recurring implies an interval.
func (b Bill) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&b.DueDate, validation.Required, validation.By(validDate)),
		validation.Field(&b.Amount, validation.By(nonNegative)),
		validation.Field(&b.LastPaidAmount, validation.By(nonNegative)),
		validation.Field(&b.PaidAt, validation.By(func(interface{}) error {
			if b.IsPaid && b.PaidAt == nil {
				return validation.NewError("validation_paid_at", "paid bill needs a paid timestamp")
			}
			return nil
		})),
		validation.Field(&b.Interval, validation.By(func(interface{}) error {
			if b.IsRecurring && b.Interval == IntervalNone {
				return validation.NewError("validation_interval", "recurring bill needs an interval")
			}
			switch b.Interval {
			case IntervalNone, IntervalWeekly, IntervalBiweekly, IntervalMonthly, IntervalYearly:
				return nil
			}
			return validation.NewError("validation_interval", "unknown recurrence interval")
		})),
	)
}

func validDate(v interface{}) error {
	t, _ := v.(time.Time)
	if t.IsZero() {
		return validation.NewError("validation_due_date", "due date is required")
	}
	return nil
}

func nonNegative(v interface{}) error {
	d, _ := v.(*decimal.Decimal)
	if d != nil && d.IsNegative() {
		return validation.NewError("validation_amount", "amount cannot be negative")
	}
	return nil
}

// Date builds a calendar date at UTC midnight. Due dates carry no time
// component, so every construction goes through here.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return Date(y, m, d)
}

// DaysUntil returns whole calendar days from today until due (negative when
// overdue).
func DaysUntil(due, today time.Time) int {
	return int(Day(due).Sub(Day(today)).Hours() / 24)
}

// NormalizeName lowercases and collapses whitespace for name matching.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
