package panel

import (
	"sort"

	"github.com/seenimoa/panelstudy/pkg/models"
)

// ApplySplits annotates one ticker's sorted rows with split events and
// derives AdjClose.
//
// A split or dividend whose date falls on a non-trading day is booked on
// the next trading row; events outside the rows' range are ignored.
// SplitCumFactor is the product of every split ratio on or before the row
// date. AdjClose expresses Close on the final share
// basis and backs out later dividends:
//
//	adj_close = close × cum / cum_last × Π_{later ex-dates j} (1 − D_j / close_{j−1})
func ApplySplits(rows []Row, splits []models.Split, dividends []models.Dividend) {
	if len(rows) == 0 {
		return
	}

	splitAt := make(map[int]float64)
	for _, s := range splits {
		if i := rowOnOrAfter(rows, models.FormatDate(s.Date)); i >= 0 {
			if _, ok := splitAt[i]; !ok {
				splitAt[i] = 1
			}
			splitAt[i] *= s.Ratio()
		}
	}
	divAt := make(map[int]float64)
	for _, d := range dividends {
		if d.Amount <= 0 {
			continue
		}
		if i := rowOnOrAfter(rows, models.FormatDate(d.Date)); i >= 0 {
			divAt[i] += d.Amount
		}
	}

	cum := 1.0
	for i := range rows {
		r := &rows[i]
		r.SplitRatio, r.IsSplitDay, r.IsReverseSplitDay, r.Dividend = nil, false, false, nil
		if ratio, ok := splitAt[i]; ok && ratio != 1 {
			cum *= ratio
			r.SplitRatio = F64(ratio)
			r.IsSplitDay = ratio > 1
			r.IsReverseSplitDay = ratio < 1
		}
		if amt, ok := divAt[i]; ok {
			r.Dividend = F64(amt)
		}
		r.SplitCumFactor = cum
	}
	cumLast := cum

	// Walk backwards accumulating the dividend factor of later ex-dates.
	divFactor := 1.0
	for i := len(rows) - 1; i >= 0; i-- {
		r := &rows[i]
		if r.Close > 0 {
			r.AdjClose = F64(r.Close * r.SplitCumFactor / cumLast * divFactor)
		} else {
			r.AdjClose = nil
		}
		if amt, ok := divAt[i]; ok && i > 0 {
			prev := rows[i-1].Close
			if f := 1 - amt/prev; prev > 0 && f > 0 {
				divFactor *= f
			}
		}
	}
}

// rowOnOrAfter returns the index of the first row dated on or after date,
// or -1 when date is outside the rows' range.
func rowOnOrAfter(rows []Row, date string) int {
	if date < rows[0].Date {
		return -1
	}
	i := sort.Search(len(rows), func(i int) bool { return rows[i].Date >= date })
	if i == len(rows) {
		return -1
	}
	return i
}
