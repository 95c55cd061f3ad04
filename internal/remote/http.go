package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/arlo/billdeck/internal/bill"
)

const dateLayout = "2006-01-02"

// HTTPClient talks to the bill backend over its REST surface.
type HTTPClient struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	log     *logrus.Logger
}

// NewHTTPClient builds a client with retries on transient failures. The
// retry logger is silenced; request failures surface through the engine's
// notification path instead.
func NewHTTPClient(baseURL, token string, log *logrus.Logger) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    rc,
		log:     log,
	}
}

// billPayload is the wire shape of a bill. Dates travel as YYYY-MM-DD,
// timestamps as RFC 3339, amounts as JSON numbers (decimal handles both
// directions without float drift).
type billPayload struct {
	ID             string           `json:"id,omitempty"`
	Name           string           `json:"name"`
	Amount         *decimal.Decimal `json:"amount"`
	DueDate        string           `json:"due_date"`
	IsPaid         bool             `json:"is_paid"`
	PaidAt         *time.Time       `json:"paid_at"`
	LastPaidAmount *decimal.Decimal `json:"last_paid_amount"`
	IsRecurring    bool             `json:"is_recurring"`
	Interval       string           `json:"recurrence_interval,omitempty"`
	Autopay        bool             `json:"autopay"`
	Source         string           `json:"source"`
	PaymentURL     *string          `json:"payment_url"`
	VariableAmount bool             `json:"variable_amount"`
	TypicalMin     *decimal.Decimal `json:"typical_min"`
	TypicalMax     *decimal.Decimal `json:"typical_max"`
	PreviousAmount *decimal.Decimal `json:"previous_amount"`
}

func toPayload(b bill.Bill) billPayload {
	id := b.ID
	if bill.IsPendingID(id) {
		id = "" // the server assigns real ids
	}
	return billPayload{
		ID:             id,
		Name:           b.Name,
		Amount:         b.Amount,
		DueDate:        b.DueDate.Format(dateLayout),
		IsPaid:         b.IsPaid,
		PaidAt:         b.PaidAt,
		LastPaidAmount: b.LastPaidAmount,
		IsRecurring:    b.IsRecurring,
		Interval:       string(b.Interval),
		Autopay:        b.Autopay,
		Source:         string(b.Source),
		PaymentURL:     b.PaymentURL,
		VariableAmount: b.VariableAmount,
		TypicalMin:     b.TypicalMin,
		TypicalMax:     b.TypicalMax,
		PreviousAmount: b.PreviousAmount,
	}
}

func (p billPayload) toBill() (bill.Bill, error) {
	due, err := time.ParseInLocation(dateLayout, p.DueDate, time.UTC)
	if err != nil {
		return bill.Bill{}, fmt.Errorf("parse due_date %q: %w", p.DueDate, err)
	}
	return bill.Bill{
		ID:             p.ID,
		Name:           p.Name,
		Amount:         p.Amount,
		DueDate:        due,
		IsPaid:         p.IsPaid,
		PaidAt:         p.PaidAt,
		LastPaidAmount: p.LastPaidAmount,
		IsRecurring:    p.IsRecurring,
		Interval:       bill.Interval(p.Interval),
		Autopay:        p.Autopay,
		Source:         bill.Source(p.Source),
		PaymentURL:     p.PaymentURL,
		VariableAmount: p.VariableAmount,
		TypicalMin:     p.TypicalMin,
		TypicalMax:     p.TypicalMax,
		PreviousAmount: p.PreviousAmount,
	}, nil
}

func (c *HTTPClient) List(ctx context.Context, includePaid bool) ([]bill.Bill, error) {
	q := url.Values{}
	if includePaid {
		q.Set("include_paid", "true")
	}
	path := "/bills"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var payloads []billPayload
	if err := c.do(ctx, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, err
	}
	out := make([]bill.Bill, 0, len(payloads))
	for _, p := range payloads {
		b, err := p.toBill()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *HTTPClient) Create(ctx context.Context, b bill.Bill) (bill.Bill, error) {
	var resp billPayload
	if err := c.do(ctx, http.MethodPost, "/bills", toPayload(b), &resp); err != nil {
		return bill.Bill{}, err
	}
	return resp.toBill()
}

func (c *HTTPClient) Update(ctx context.Context, b bill.Bill) (bill.Bill, error) {
	var resp billPayload
	if err := c.do(ctx, http.MethodPatch, "/bills/"+url.PathEscape(b.ID), toPayload(b), &resp); err != nil {
		return bill.Bill{}, err
	}
	return resp.toBill()
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/bills/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) Pay(ctx context.Context, id string, amount *decimal.Decimal) (PayResult, error) {
	body := struct {
		Amount *decimal.Decimal `json:"amount,omitempty"`
	}{Amount: amount}
	var resp struct {
		Paid billPayload  `json:"paid_bill"`
		Next *billPayload `json:"next_bill"`
	}
	if err := c.do(ctx, http.MethodPost, "/bills/"+url.PathEscape(id)+"/pay", body, &resp); err != nil {
		return PayResult{}, err
	}
	paid, err := resp.Paid.toBill()
	if err != nil {
		return PayResult{}, err
	}
	result := PayResult{Paid: paid}
	if resp.Next != nil {
		next, err := resp.Next.toBill()
		if err != nil {
			return PayResult{}, err
		}
		result.Next = &next
	}
	return result, nil
}

func (c *HTTPClient) Unpay(ctx context.Context, id string) (bill.Bill, error) {
	var resp billPayload
	if err := c.do(ctx, http.MethodPost, "/bills/"+url.PathEscape(id)+"/unpay", nil, &resp); err != nil {
		return bill.Bill{}, err
	}
	return resp.toBill()
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Warn("backend request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil {
			if e.Message != "" {
				apiErr.Message = e.Message
			} else {
				apiErr.Message = e.Error
			}
		}
		c.log.WithField("path", path).WithField("status", resp.StatusCode).Warn("backend rejected request")
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
