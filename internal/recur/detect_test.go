package recur

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arlo/billdeck/internal/bill"
	"github.com/arlo/billdeck/internal/localdb"
)

func history(name string, amount string, dates ...time.Time) []bill.Bill {
	out := make([]bill.Bill, 0, len(dates))
	for _, d := range dates {
		amt := decimal.RequireFromString(amount)
		out = append(out, bill.Bill{
			ID:      name + "-" + d.Format("2006-01-02"),
			Name:    name,
			Amount:  &amt,
			DueDate: d,
		})
	}
	return out
}

func TestDetectMonthlyCadence(t *testing.T) {
	t.Parallel()
	bills := history("Netflix", "15.99",
		bill.Date(2026, 6, 10),
		bill.Date(2026, 7, 10),
		bill.Date(2026, 8, 10),
	)

	got := Detect(bills, nil)
	require.Len(t, got, 1, "a cluster proposes once, on its newest bill")
	s := got[0]
	require.Equal(t, "Netflix-2026-08-10", s.BillID)
	require.Equal(t, bill.IntervalMonthly, s.Interval)
	require.InDelta(t, 0.6, s.Confidence, 0.001, "two gaps plus the amount bump")
	require.Contains(t, s.Justification, "3 charges")
}

func TestDetectNeedsThreeOccurrences(t *testing.T) {
	t.Parallel()
	bills := history("Netflix", "15.99",
		bill.Date(2026, 7, 10),
		bill.Date(2026, 8, 10),
	)
	require.Empty(t, Detect(bills, nil))
}

func TestDetectRejectsInconsistentGaps(t *testing.T) {
	t.Parallel()
	bills := history("Netflix", "15.99",
		bill.Date(2026, 6, 10),
		bill.Date(2026, 6, 25), // 15-day gap next to a ~monthly one
		bill.Date(2026, 8, 10),
	)
	require.Empty(t, Detect(bills, nil))
}

func TestDetectWeeklyWithJitter(t *testing.T) {
	t.Parallel()
	bills := history("Cleaner", "80",
		bill.Date(2026, 8, 3),
		bill.Date(2026, 8, 10),
		bill.Date(2026, 8, 18), // 8-day gap still inside the weekly band
		bill.Date(2026, 8, 24),
	)
	got := Detect(bills, nil)
	require.NotEmpty(t, got)
	require.Equal(t, bill.IntervalWeekly, got[0].Interval)
	require.InDelta(t, 0.75, got[0].Confidence, 0.001, "three gaps plus the amount bump")
}

func TestDetectConfidenceCapsBeforeAmountBump(t *testing.T) {
	t.Parallel()
	dates := make([]time.Time, 0, 8)
	for m := time.January; m <= time.August; m++ {
		dates = append(dates, bill.Date(2026, m, 5))
	}
	bills := history("Rent", "1200", dates...)

	got := Detect(bills, nil)
	require.NotEmpty(t, got)
	require.InDelta(t, 0.95, got[0].Confidence, 0.001)
}

func TestDetectVaryingAmountsSkipBump(t *testing.T) {
	t.Parallel()
	bills := history("Electric", "90",
		bill.Date(2026, 6, 1),
		bill.Date(2026, 7, 1),
	)
	spike := decimal.RequireFromString("140")
	bills = append(bills, bill.Bill{ID: "e3", Name: "Electric", Amount: &spike, DueDate: bill.Date(2026, 8, 1)})

	got := Detect(bills, nil)
	require.NotEmpty(t, got)
	require.InDelta(t, 0.5, got[0].Confidence, 0.001, "amounts more than 10%% apart get no bump")
}

func TestDetectFuzzyNameClustering(t *testing.T) {
	t.Parallel()
	bills := history("Spotify Premium", "11.99",
		bill.Date(2026, 6, 3),
		bill.Date(2026, 7, 3),
	)
	amt := decimal.RequireFromString("11.99")
	bills = append(bills, bill.Bill{ID: "s3", Name: "Spotify Premiun", Amount: &amt, DueDate: bill.Date(2026, 8, 3)})

	got := Detect(bills, nil)
	require.NotEmpty(t, got, "one-character drift still clusters")
	require.Equal(t, bill.IntervalMonthly, got[0].Interval)
}

func TestDetectSkipsRecurringAndDismissed(t *testing.T) {
	t.Parallel()
	bills := history("Netflix", "15.99",
		bill.Date(2026, 6, 10),
		bill.Date(2026, 7, 10),
		bill.Date(2026, 8, 10),
	)

	bills[2].IsRecurring = true
	bills[2].Interval = bill.IntervalMonthly
	require.Empty(t, Detect(bills, nil), "already-recurring bills get no suggestion")

	fresh := history("Netflix", "15.99",
		bill.Date(2026, 6, 10),
		bill.Date(2026, 7, 10),
		bill.Date(2026, 8, 10),
	)
	require.Empty(t, Detect(fresh, map[string]bool{"Netflix-2026-08-10": true}),
		"a dismissed bill never resurfaces")
}

func TestDetectRanksByConfidence(t *testing.T) {
	t.Parallel()
	long := history("Rent", "1200",
		bill.Date(2026, 4, 1),
		bill.Date(2026, 5, 1),
		bill.Date(2026, 6, 1),
		bill.Date(2026, 7, 1),
	)
	short := history("Gym", "30",
		bill.Date(2026, 6, 15),
		bill.Date(2026, 7, 15),
		bill.Date(2026, 8, 15),
	)
	got := Detect(append(long, short...), nil)
	require.NotEmpty(t, got)
	require.Equal(t, "Rent", got[0].BillName, "more consistent gaps rank first")
}

func testDB(t *testing.T) *DismissalRepo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "billdeck-test.db")
	migrations, err := filepath.Abs("../localdb/migrations")
	require.NoError(t, err)
	require.NoError(t, localdb.RunMigrations(path, migrations))
	db, err := localdb.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDismissalRepo(db)
}

func TestDismissalsPersistAndSuppress(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()

	ok, err := repo.IsDismissed(ctx, "b1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Dismiss(ctx, "b1"))
	require.NoError(t, repo.Dismiss(ctx, "b1"), "dismissing twice is a no-op")

	ok, err = repo.IsDismissed(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"b1": true}, all)

	bills := history("Netflix", "15.99",
		bill.Date(2026, 6, 10),
		bill.Date(2026, 7, 10),
		bill.Date(2026, 8, 10),
	)
	bills[2].ID = "b1" // the bill whose suggestion was dismissed
	got := Detect(bills, all)
	for _, s := range got {
		require.NotEqual(t, "b1", s.BillID)
	}
}
