package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arlo/billdeck/internal/bill"
)

// ErrNotFound is returned when the backend no longer knows the bill.
var ErrNotFound = errors.New("bill not found")

// Client is the persistence backend contract. The backend owns derived
// fields (real ids, successor generation for recurring bills), so responses
// are authoritative and the engine replaces optimistic records with them.
type Client interface {
	List(ctx context.Context, includePaid bool) ([]bill.Bill, error)
	Create(ctx context.Context, b bill.Bill) (bill.Bill, error)
	Update(ctx context.Context, b bill.Bill) (bill.Bill, error)
	Delete(ctx context.Context, id string) error
	// Pay marks the bill paid. For recurring bills the response carries the
	// freshly generated successor, which the caller must merge.
	Pay(ctx context.Context, id string, amount *decimal.Decimal) (PayResult, error)
	// Unpay reverts a paid bill to unpaid and discards any successor the
	// payment generated.
	Unpay(ctx context.Context, id string) (bill.Bill, error)
}

// PayResult is the response to Pay. Next is nil unless the paid bill was
// recurring.
type PayResult struct {
	Paid bill.Bill
	Next *bill.Bill
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}
