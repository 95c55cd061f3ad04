package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arlo/billdeck/internal/bill"
)

func newTestScanner(t *testing.T, handler http.HandlerFunc) *HTTPScanner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPScanner(srv.URL, "scan-token", quietLog())
}

func TestScanParsesCandidates(t *testing.T) {
	t.Parallel()
	s := newTestScanner(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/scan", r.URL.Path)
		require.Equal(t, "50", r.URL.Query().Get("max_results"))
		require.Equal(t, "30", r.URL.Query().Get("days_back"))
		require.Equal(t, "Bearer scan-token", r.Header.Get("Authorization"))
		io.WriteString(w, `{"candidates":[
			{
				"message_id":"m1","message_link":"https://mail/m1","name":"  Netflix ",
				"amount":"15.99","due_date":"2026-09-20","category":"streaming",
				"confidence":0.92,
				"field_confidence":{"amount":0.95,"due_date":0.88},
				"evidence":{"amount":"Total: $15.99"},
				"duplicate":true,"duplicate_reason":"matches existing Netflix"
			},
			{"message_id":"m2","name":"No Due Date","amount":12.5,"confidence":0.7}
		]}`)
	})

	got, err := s.Scan(context.Background(), 50, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)

	c := got[0]
	require.Equal(t, "Netflix", c.Name, "names are trimmed")
	require.Equal(t, "m1", c.MessageID)
	require.True(t, c.Amount.Equal(decimal.RequireFromString("15.99")))
	require.Equal(t, bill.Date(2026, 9, 20), *c.DueDate)
	require.InDelta(t, 0.92, c.Confidence, 0.001)
	require.InDelta(t, 0.95, c.AmountConfidence, 0.001)
	require.True(t, c.Duplicate)
	require.Equal(t, "matches existing Netflix", c.DuplicateReason)
	require.Equal(t, map[string]string{"amount": "Total: $15.99"}, c.Evidence)
	require.NotEmpty(t, c.ID, "each candidate gets a local id")

	require.Nil(t, got[1].DueDate)
	require.True(t, got[1].Amount.Equal(decimal.RequireFromString("12.5")), "numeric amounts parse too")
}

func TestScanSkipsMalformedCandidates(t *testing.T) {
	t.Parallel()
	s := newTestScanner(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[
			{"message_id":"m1","name":""},
			{"name":"No Message ID"},
			{"message_id":"m2","name":"Good One","confidence":0.5,"amount":"-4","due_date":"soonish"}
		]}`)
	})

	got, err := s.Scan(context.Background(), 10, 7)
	require.NoError(t, err)
	require.Len(t, got, 1, "nameless and unsourced candidates are dropped")
	c := got[0]
	require.Equal(t, "Good One", c.Name)
	require.Nil(t, c.Amount, "negative amounts are discarded")
	require.Nil(t, c.DueDate, "unparseable dates are discarded")
}

func TestScanMapsMailboxStates(t *testing.T) {
	t.Parallel()

	s := newTestScanner(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":"not_connected"}`)
	})
	_, err := s.Scan(context.Background(), 10, 7)
	require.ErrorIs(t, err, ErrNotConnected)

	s = newTestScanner(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err = s.Scan(context.Background(), 10, 7)
	require.ErrorIs(t, err, ErrAuthExpired)
}
