package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/arlo/billdeck/internal/bill"
)

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, "test-token", quietLog())
}

func TestListParsesBillsAndSendsAuth(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/bills", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("include_paid"))
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"b1","name":"Netflix","amount":15.99,"due_date":"2026-09-10","source":"manual"},
			{"id":"b2","name":"Water","amount":null,"due_date":"2026-09-05","variable_amount":true,"source":"manual"}
		]`)
	})

	bills, err := c.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	require.Equal(t, "Netflix", bills[0].Name)
	require.True(t, bills[0].Amount.Equal(decimal.RequireFromString("15.99")), "JSON numbers decode without float drift")
	require.Equal(t, bill.Date(2026, 9, 10), bills[0].DueDate)
	require.Nil(t, bills[1].Amount)
	require.True(t, bills[1].VariableAmount)
}

func TestCreateStripsPendingID(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasID := body["id"]
		require.False(t, hasID, "local placeholder ids must not reach the server")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"srv-9","name":"Internet","amount":60,"due_date":"2026-09-20","source":"manual"}`)
	})

	amt := decimal.NewFromInt(60)
	created, err := c.Create(context.Background(), bill.Bill{
		ID:      bill.NewPendingID(),
		Name:    "Internet",
		Amount:  &amt,
		DueDate: bill.Date(2026, 9, 20),
		Source:  bill.SourceManual,
	})
	require.NoError(t, err)
	require.Equal(t, "srv-9", created.ID)
}

func TestPayReturnsSuccessorForRecurringBills(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bills/b1/pay", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"paid_bill":{"id":"b1","name":"Netflix","amount":15.99,"due_date":"2026-09-10","is_paid":true,"paid_at":"2026-09-08T12:00:00Z","source":"manual"},
			"next_bill":{"id":"b2","name":"Netflix","amount":15.99,"due_date":"2026-10-10","is_recurring":true,"recurrence_interval":"monthly","source":"manual"}
		}`)
	})

	res, err := c.Pay(context.Background(), "b1", nil)
	require.NoError(t, err)
	require.True(t, res.Paid.IsPaid)
	require.NotNil(t, res.Paid.PaidAt)
	require.NotNil(t, res.Next)
	require.Equal(t, bill.Date(2026, 10, 10), res.Next.DueDate)
	require.Equal(t, bill.IntervalMonthly, res.Next.Interval)
}

func TestPayWithoutSuccessor(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"paid_bill":{"id":"b1","name":"One-off","amount":5,"due_date":"2026-09-10","is_paid":true,"paid_at":"2026-09-08T12:00:00Z","source":"manual"}}`)
	})

	res, err := c.Pay(context.Background(), "b1", nil)
	require.NoError(t, err)
	require.Nil(t, res.Next)
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such bill"}`, http.StatusNotFound)
	})

	err := c.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error":"amount cannot be negative"}`)
	})

	_, err := c.Update(context.Background(), bill.Bill{ID: "b1", Name: "X", DueDate: bill.Date(2026, 9, 1)})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "amount cannot be negative", apiErr.Message)
}

func TestTransientFailureIsRetried(t *testing.T) {
	t.Parallel()
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[]`)
	})

	bills, err := c.List(context.Background(), false)
	require.NoError(t, err)
	require.Empty(t, bills)
	require.Equal(t, 2, attempts)
}
