package recur

import (
	"fmt"
	"sort"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/arlo/billdeck/internal/bill"
)

// Suggestion proposes converting one bill to recurring at a detected
// cadence. Confidence is in [0,1]; Justification is shown to the user as-is.
type Suggestion struct {
	BillID        string
	BillName      string
	Interval      bill.Interval
	Confidence    float64
	Justification string
}

// minInstances is how many occurrences (the bill plus its history) a name
// cluster needs before a cadence is worth proposing. Three dates give two
// gaps, the minimum to call an interval consistent.
const minInstances = 3

type intervalBand struct {
	interval bill.Interval
	min, max int // gap in days, inclusive
}

var bands = []intervalBand{
	{bill.IntervalWeekly, 6, 8},
	{bill.IntervalBiweekly, 12, 16},
	{bill.IntervalMonthly, 27, 33},
	{bill.IntervalYearly, 350, 380},
}

// Detect proposes recurrence intervals for bills not already recurring,
// ranked by confidence. dismissed is keyed by bill id; a dismissed bill
// never resurfaces regardless of how its history evolves. Pure apart from
// reading its inputs.
func Detect(bills []bill.Bill, dismissed map[string]bool) []Suggestion {
	var out []Suggestion
	for _, b := range bills {
		if b.IsRecurring || dismissed[b.ID] {
			continue
		}
		s, ok := suggestFor(b, bills)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func suggestFor(b bill.Bill, all []bill.Bill) (Suggestion, bool) {
	dates := clusterDates(b, all)
	if len(dates) < minInstances {
		return Suggestion{}, false
	}
	// one suggestion per cluster, attached to its newest bill
	if !bill.Day(b.DueDate).Equal(dates[len(dates)-1]) {
		return Suggestion{}, false
	}
	gaps := make([]int, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		gaps = append(gaps, int(dates[i].Sub(dates[i-1]).Hours()/24))
	}
	interval, ok := matchBand(gaps)
	if !ok {
		return Suggestion{}, false
	}
	conf := confidence(b, all, gaps)
	avg := 0
	for _, g := range gaps {
		avg += g
	}
	avg /= len(gaps)
	return Suggestion{
		BillID:        b.ID,
		BillName:      b.Name,
		Interval:      interval,
		Confidence:    conf,
		Justification: fmt.Sprintf("%d charges roughly %d days apart", len(dates), avg),
	}, true
}

// clusterDates collects due dates of bills whose names fuzzily match b,
// deduplicated and sorted ascending.
func clusterDates(b bill.Bill, all []bill.Bill) []time.Time {
	seen := map[time.Time]struct{}{}
	var dates []time.Time
	for _, other := range all {
		if !matchName(b.Name, other.Name) {
			continue
		}
		d := bill.Day(other.DueDate)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// matchBand returns the single band every gap falls into, if there is one.
func matchBand(gaps []int) (bill.Interval, bool) {
	for _, band := range bands {
		all := true
		for _, g := range gaps {
			if g < band.min || g > band.max {
				all = false
				break
			}
		}
		if all {
			return band.interval, true
		}
	}
	return bill.IntervalNone, false
}

// confidence grows with the number of consistent gaps and gets a bump when
// historical amounts agree within 10%.
func confidence(b bill.Bill, all []bill.Bill, gaps []int) float64 {
	conf := 0.5 + 0.15*float64(len(gaps)-2)
	if conf > 0.85 {
		conf = 0.85
	}
	if amountsAgree(b, all) {
		conf += 0.1
	}
	return conf
}

func amountsAgree(b bill.Bill, all []bill.Bill) bool {
	if b.Amount == nil {
		return false
	}
	for _, other := range all {
		if other.ID == b.ID || !matchName(b.Name, other.Name) || other.Amount == nil {
			continue
		}
		diff := b.Amount.Sub(*other.Amount).Abs()
		if diff.GreaterThan(b.Amount.Mul(tenPercent)) {
			return false
		}
	}
	return true
}

// matchName tolerates small edit distance relative to name length, the same
// rough-match approach used for duplicate candidates.
func matchName(a, b string) bool {
	na, nb := bill.NormalizeName(a), bill.NormalizeName(b)
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	dist := levenshtein.ComputeDistance(na, nb)
	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	return float64(dist)/float64(longest) < 0.25
}

var tenPercent = decimal.RequireFromString("0.10")
