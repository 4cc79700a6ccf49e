// Package sectorindex builds cumulative return indices per sector from the
// thin artifact.
package sectorindex

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/seenimoa/panelstudy/internal/store"
)

// winsor caps daily simple returns before averaging.
const winsor = 0.95

var (
	ErrNoSectors = errors.New("sectorindex: no sectors selected")
	ErrNoData    = errors.New("sectorindex: no data for the selected sectors and dates")
)

// Request selects sectors and dates. EqualWeight averages member returns
// equally; otherwise each member is weighted by its market cap on the
// previous trading day.
type Request struct {
	Sectors     []string `json:"sectors"`
	From        string   `json:"from,omitempty"`
	To          string   `json:"to,omitempty"`
	EqualWeight bool     `json:"equal_weight"`
}

// Series is one sector's index over Result.Dates. Daily is nil on dates
// without a usable member return; the index treats those as flat.
type Series struct {
	Sector string     `json:"sector"`
	Index  []float64  `json:"index"`
	Daily  []*float64 `json:"daily"`
}

// Total is the last index level of a sector.
type Total struct {
	Sector         string  `json:"sector" csv:"sector"`
	Index          float64 `json:"index" csv:"index"`
	TotalReturnPct float64 `json:"total_return_pct" csv:"total_return_pct"`
}

// Dropped counts member observations left out of the sector means.
type Dropped struct {
	SplitDays   int `json:"split_days"`
	NullReturns int `json:"null_returns"`
}

// Result holds the indices, rebased to 1 on the first date. Missing lists
// requested sectors with no usable observation in the range; they have no
// series.
type Result struct {
	Request Request  `json:"request"`
	Dates   []string `json:"dates"`
	Series  []Series `json:"series"`
	Totals  []Total  `json:"totals"`
	Missing []string `json:"missing"`
	Dropped Dropped  `json:"dropped"`
}

type obs struct {
	r, w float64
}

// Build computes the sector indices. Returns on split and reverse-split
// days are dropped, each (date, ticker) contributes once, and returns are
// winsorized to ±0.95 before the per-date sector mean.
func Build(ds *store.Dataset, req Request) (*Result, error) {
	sectors := make(map[string]bool)
	for _, s := range req.Sectors {
		if s = strings.TrimSpace(s); s != "" {
			sectors[s] = true
		}
	}
	if len(sectors) == 0 {
		return nil, ErrNoSectors
	}

	// sector → date → observations
	data := make(map[string]map[string][]obs)
	dateSet := make(map[string]bool)
	var dropped Dropped
	for _, ticker := range ds.Tickers() {
		s, _ := ds.Series(ticker)
		for j := range s.Rows {
			r := &s.Rows[j]
			if (req.From != "" && r.Date < req.From) || (req.To != "" && r.Date > req.To) {
				continue
			}
			sec := ""
			if r.Sector != nil {
				sec = strings.TrimSpace(*r.Sector)
			}
			if !sectors[sec] {
				continue
			}
			dateSet[r.Date] = true
			if r.IsSplitDay || r.IsReverseSplitDay {
				dropped.SplitDays++
				continue
			}
			if r.LogRet == nil {
				dropped.NullReturns++
				continue
			}
			ret := math.Expm1(*r.LogRet)
			if math.IsNaN(ret) || math.IsInf(ret, 0) {
				dropped.NullReturns++
				continue
			}
			o := obs{r: math.Max(-winsor, math.Min(winsor, ret)), w: 1}
			if !req.EqualWeight {
				o.w = 0
				if j > 0 && s.Rows[j-1].MarketCap != nil && *s.Rows[j-1].MarketCap > 0 {
					o.w = *s.Rows[j-1].MarketCap
				}
			}
			if data[sec] == nil {
				data[sec] = make(map[string][]obs)
			}
			data[sec][r.Date] = append(data[sec][r.Date], o)
		}
	}
	if len(dateSet) == 0 {
		return nil, ErrNoData
	}

	res := &Result{Request: req, Missing: []string{}, Dropped: dropped}
	for d := range dateSet {
		res.Dates = append(res.Dates, d)
	}
	sort.Strings(res.Dates)

	names := make([]string, 0, len(sectors))
	for s := range sectors {
		names = append(names, s)
	}
	sort.Strings(names)

	for _, sec := range names {
		byDate, ok := data[sec]
		if !ok {
			res.Missing = append(res.Missing, sec)
			continue
		}
		ser := Series{Sector: sec, Index: make([]float64, len(res.Dates)), Daily: make([]*float64, len(res.Dates))}
		level := 1.0
		for i, d := range res.Dates {
			if m, ok := average(byDate[d]); ok {
				ser.Daily[i] = &m
				if i > 0 {
					level *= 1 + m
				}
			}
			ser.Index[i] = level
		}
		res.Series = append(res.Series, ser)
		res.Totals = append(res.Totals, Total{Sector: sec, Index: level, TotalReturnPct: (level - 1) * 100})
	}
	if len(res.Series) == 0 {
		return nil, ErrNoData
	}
	return res, nil
}

// average is the weighted mean of obs. With no positive weight it falls
// back to the equal-weight mean.
func average(os []obs) (float64, bool) {
	if len(os) == 0 {
		return 0, false
	}
	var sum, wsum, plain float64
	for _, o := range os {
		sum += o.r * o.w
		wsum += o.w
		plain += o.r
	}
	if wsum > 0 {
		return sum / wsum, true
	}
	return plain / float64(len(os)), true
}
