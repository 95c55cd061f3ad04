package extract

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Scan failures the UI must distinguish: both are actionable (reconnect the
// mailbox, re-authenticate) rather than generic errors.
var (
	ErrNotConnected = errors.New("email account not connected")
	ErrAuthExpired  = errors.New("email authorization expired")
)

// Candidate is an unconfirmed, AI-proposed bill extracted from a source
// message. It is never mutated: it is either promoted into a bill (with
// optional corrections) or rejected, and once decided it never resurfaces.
type Candidate struct {
	ID          string
	MessageID   string
	MessageLink string

	Name     string
	Amount   *decimal.Decimal
	DueDate  *time.Time
	Category string

	// Confidence is the extractor's overall score in [0,1]; the per-field
	// scores cover the two fields users correct most.
	Confidence        float64
	AmountConfidence  float64
	DueDateConfidence float64

	// Evidence maps field name to the source text fragment that justified
	// the guess.
	Evidence map[string]string

	// Duplicate detection is heuristic and may be wrong, so flagged
	// candidates are still surfaced with the reason attached.
	Duplicate       bool
	DuplicateReason string
}

// Scanner is the extraction service contract: scan recent messages and
// return bill-like candidates.
type Scanner interface {
	Scan(ctx context.Context, maxResults, daysBack int) ([]Candidate, error)
}

// Status of a queued candidate.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusAuto      = "auto_created"
)
