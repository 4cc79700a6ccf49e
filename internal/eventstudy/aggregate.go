package eventstudy

import (
	"math"
	"sort"

	"github.com/seenimoa/panelstudy/internal/store"
)

// z95 is the two-sided 95% normal quantile used for the CAR band.
const z95 = 1.96

// DayStat aggregates the log returns observed at one relative day.
// CAR is the running sum of Mean; CARSE propagates SE assuming
// independence across days.
type DayStat struct {
	RelDay int     `json:"rel_day" csv:"rel_day"`
	Mean   float64 `json:"mean" csv:"mean"`
	Median float64 `json:"median" csv:"median"`
	Count  int     `json:"count" csv:"count"`
	SD     float64 `json:"sd" csv:"sd"`
	SE     float64 `json:"se" csv:"se"`
	CAR    float64 `json:"car" csv:"car"`
	CARSE  float64 `json:"car_se" csv:"car_se"`
	CILo   float64 `json:"ci_lo" csv:"ci_lo"`
	CIHi   float64 `json:"ci_hi" csv:"ci_hi"`
}

// Aggregate computes per-relative-day statistics over the non-null
// returns in rows, ordered by relative day. Days with no observations are
// omitted. SD uses n-1 and is zero for a single observation.
func Aggregate(rows []WindowRow) []DayStat {
	byDay := make(map[int][]float64)
	for _, r := range rows {
		if r.LogRet == nil || math.IsNaN(*r.LogRet) {
			continue
		}
		byDay[r.RelDay] = append(byDay[r.RelDay], *r.LogRet)
	}
	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Ints(days)

	out := make([]DayStat, 0, len(days))
	var car, carVar float64
	for _, d := range days {
		xs := byDay[d]
		st := DayStat{RelDay: d, Count: len(xs), Mean: mean(xs), Median: median(xs)}
		if st.Count > 1 {
			st.SD = stddev(xs, st.Mean)
			st.SE = st.SD / math.Sqrt(float64(st.Count))
		}
		car += st.Mean
		carVar += st.SE * st.SE
		st.CAR = car
		st.CARSE = math.Sqrt(carVar)
		st.CILo = car - z95*st.CARSE
		st.CIHi = car + z95*st.CARSE
		out = append(out, st)
	}
	return out
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func stddev(xs []float64, mu float64) float64 {
	var ss float64
	for _, x := range xs {
		ss += (x - mu) * (x - mu)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// Summary describes the coverage of a study.
type Summary struct {
	Events    int `json:"events"`
	Excluded  int `json:"excluded"`
	Rows      int `json:"rows"`
	MinPerDay int `json:"min_rows_per_rel_day"`
	MaxPerDay int `json:"max_rows_per_rel_day"`
	Tickers   int `json:"tickers"`
}

// Summarize counts events, rows and tickers of w.
func Summarize(w Windows) Summary {
	s := Summary{Events: w.Matched, Excluded: w.Excluded, Rows: len(w.Rows)}
	perDay := make(map[int]int)
	tickers := make(map[string]bool)
	for _, r := range w.Rows {
		perDay[r.RelDay]++
		tickers[r.Ticker] = true
	}
	first := true
	for _, n := range perDay {
		if first || n < s.MinPerDay {
			s.MinPerDay = n
		}
		if first || n > s.MaxPerDay {
			s.MaxPerDay = n
		}
		first = false
	}
	s.Tickers = len(tickers)
	return s
}

// Request is one event-study query.
type Request struct {
	Filter
	K int `json:"k"`
}

// Study is the full result of a query.
type Study struct {
	Request Request   `json:"request"`
	Windows Windows   `json:"windows"`
	Stats   []DayStat `json:"stats"`
	Summary Summary   `json:"summary"`
	Events  []Event   `json:"-"`
}

// Run filters the dataset's events, builds their windows and aggregates
// them. Pass events to reuse a table built by BuildEvents; nil derives it
// from ds.
func Run(ds *store.Dataset, events []Event, req Request) *Study {
	if events == nil {
		events = BuildEvents(ds)
	}
	req.K = ClampK(req.K)
	selected := req.Filter.Apply(events)
	w := BuildWindows(ds, selected, req.K)
	return &Study{
		Request: req,
		Windows: w,
		Stats:   Aggregate(w.Rows),
		Summary: Summarize(w),
		Events:  selected,
	}
}
