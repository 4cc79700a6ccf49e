package eventstudy

import (
	"math"
	"reflect"
	"testing"

	"github.com/seenimoa/panelstudy/internal/store"
	"github.com/seenimoa/panelstudy/internal/thin"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-12 }

// series builds n consecutive rows for ticker starting 2024-01-01 with
// logret = step*(tidx+1); the first row has no return.
func series(ticker, sector string, n int, step float64) []thin.Row {
	rows := make([]thin.Row, n)
	for i := range rows {
		rows[i] = thin.Row{
			Ticker: ticker,
			Date:   "2024-01-" + pad(i+1),
			TIdx:   int32(i),
			Close:  100,
			Sector: s(sector),
		}
		if i > 0 {
			rows[i].LogRet = f(step * float64(i+1))
		}
	}
	return rows
}

func pad(d int) string {
	if d < 10 {
		return "0" + string(rune('0'+d))
	}
	return string(rune('0'+d/10)) + string(rune('0'+d%10))
}

func dataset(t *testing.T, rows ...[]thin.Row) *store.Dataset {
	t.Helper()
	var all []thin.Row
	for _, r := range rows {
		all = append(all, r...)
	}
	ds, err := store.NewDataset(all, 0)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return ds
}

// ════════════════════════════════════════════════════════════════════
// Events
// ════════════════════════════════════════════════════════════════════

func TestBuildEventsOverlap(t *testing.T) {
	aaa := series("AAA", "Technology", 5, 0.01)
	aaa[2].FilingForm = s("8-K")
	aaa[2].IsSplitDay = true
	aaa[4].FilingForm = s("10-Q")
	bbb := series("BBB", "Energy", 3, 0.01)
	bbb[1].IsReverseSplitDay = true

	events := BuildEvents(dataset(t, aaa, bbb))
	want := []Event{
		{Ticker: "BBB", Date: "2024-01-02", Type: TypeReverseSplit, Sector: "Energy", NEvents: 1},
		{Ticker: "AAA", Date: "2024-01-03", Type: "8-K", Sector: "Technology", NEvents: 2, IsOverlap: true},
		{Ticker: "AAA", Date: "2024-01-03", Type: TypeSplit, Sector: "Technology", NEvents: 2, IsOverlap: true},
		{Ticker: "AAA", Date: "2024-01-05", Type: "10-Q", Sector: "Technology", NEvents: 1},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events:\n got %+v\nwant %+v", events, want)
	}
	if got := Types(events); !reflect.DeepEqual(got, []string{"10-Q", "8-K", TypeReverseSplit, TypeSplit}) {
		t.Errorf("types: %v", got)
	}
}

func TestFilterApply(t *testing.T) {
	events := []Event{
		{Ticker: "AAA", Date: "2024-01-03", Type: "8-K", Sector: "Technology", IsOverlap: true},
		{Ticker: "AAA", Date: "2024-01-05", Type: "10-Q", Sector: "Technology"},
		{Ticker: "BBB", Date: "2024-01-02", Type: TypeSplit, Sector: "Energy"},
	}
	tests := []struct {
		name string
		f    Filter
		want int
	}{
		{"no filter", Filter{}, 3},
		{"types", Filter{Types: []string{"8-K", "10-Q"}}, 2},
		{"date range", Filter{From: "2024-01-03", To: "2024-01-04"}, 1},
		{"sector", Filter{Sectors: []string{" Energy "}}, 1},
		{"tickers are case-insensitive", Filter{Tickers: []string{"aaa"}}, 2},
		{"no overlap", Filter{NoOverlap: true}, 2},
		{"combined", Filter{Types: []string{"8-K"}, NoOverlap: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Apply(events); len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Windows
// ════════════════════════════════════════════════════════════════════

func TestClampK(t *testing.T) {
	for _, tt := range []struct{ in, want int }{{0, 5}, {-3, 1}, {1, 1}, {7, 7}, {20, 20}, {50, 20}} {
		if got := ClampK(tt.in); got != tt.want {
			t.Errorf("ClampK(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuildWindowsTruncatesAtBoundaries(t *testing.T) {
	ds := dataset(t, series("AAA", "Technology", 10, 0.01))
	tests := []struct {
		name       string
		date       string
		k          int
		wantFirst  int
		wantLast   int
		wantLength int
	}{
		{"interior", "2024-01-05", 2, -2, 2, 5},
		{"near start", "2024-01-02", 3, -1, 3, 5},
		{"at end", "2024-01-10", 4, -4, 0, 5},
		{"radius covers everything", "2024-01-05", 20, -4, 5, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := BuildWindows(ds, []Event{{Ticker: "AAA", Date: tt.date, Type: "8-K"}}, tt.k)
			if len(w.Rows) != tt.wantLength {
				t.Fatalf("rows: got %d, want %d", len(w.Rows), tt.wantLength)
			}
			if w.Rows[0].RelDay != tt.wantFirst || w.Rows[len(w.Rows)-1].RelDay != tt.wantLast {
				t.Errorf("rel days: %d..%d", w.Rows[0].RelDay, w.Rows[len(w.Rows)-1].RelDay)
			}
			for _, r := range w.Rows {
				if r.RelDay == 0 && r.Date != tt.date {
					t.Errorf("rel_day 0 is %s, want %s", r.Date, tt.date)
				}
			}
		})
	}
}

func TestBuildWindowsCountsExcluded(t *testing.T) {
	ds := dataset(t, series("AAA", "Technology", 5, 0.01))
	events := []Event{
		{Ticker: "AAA", Date: "2024-01-03", Type: "8-K"},
		{Ticker: "AAA", Date: "2024-01-06", Type: "8-K"}, // not a trading day
		{Ticker: "ZZZ", Date: "2024-01-03", Type: "8-K"}, // unknown ticker
	}
	w := BuildWindows(ds, events, 1)
	if w.Matched != 1 || w.Excluded != 2 {
		t.Errorf("matched=%d excluded=%d", w.Matched, w.Excluded)
	}
	if len(w.Rows) != 3 {
		t.Errorf("rows: %d", len(w.Rows))
	}
}

// ════════════════════════════════════════════════════════════════════
// Aggregation
// ════════════════════════════════════════════════════════════════════

func TestAggregate(t *testing.T) {
	rows := []WindowRow{
		{RelDay: -1, LogRet: f(0.01)},
		{RelDay: -1, LogRet: f(0.03)},
		{RelDay: 0, LogRet: f(0.02)},
		{RelDay: 0, LogRet: f(0.04)},
		{RelDay: 0, LogRet: f(0.09)},
		{RelDay: 0, LogRet: nil},
		{RelDay: 1, LogRet: f(-0.01)},
		{RelDay: 2, LogRet: nil}, // no observations: omitted
	}
	stats := Aggregate(rows)
	if len(stats) != 3 {
		t.Fatalf("stats: got %d days, want 3", len(stats))
	}

	d0 := stats[0]
	if d0.RelDay != -1 || d0.Count != 2 || !near(d0.Mean, 0.02) || !near(d0.Median, 0.02) {
		t.Errorf("day -1: %+v", d0)
	}
	sd := math.Sqrt(0.0002)
	if !near(d0.SD, sd) || !near(d0.SE, sd/math.Sqrt2) {
		t.Errorf("day -1 sd/se: %v %v", d0.SD, d0.SE)
	}

	d1 := stats[1]
	if d1.Count != 3 || !near(d1.Mean, 0.05) || !near(d1.Median, 0.04) {
		t.Errorf("day 0: %+v", d1)
	}
	if !near(d1.CAR, 0.07) {
		t.Errorf("CAR day 0: %v", d1.CAR)
	}
	if !near(d1.CARSE, math.Sqrt(d0.SE*d0.SE+d1.SE*d1.SE)) {
		t.Errorf("CAR se day 0: %v", d1.CARSE)
	}
	if !near(d1.CIHi-d1.CAR, 1.96*d1.CARSE) || !near(d1.CAR-d1.CILo, 1.96*d1.CARSE) {
		t.Errorf("CI band: %+v", d1)
	}

	d2 := stats[2]
	if d2.Count != 1 || d2.SD != 0 || d2.SE != 0 || !near(d2.CAR, 0.06) {
		t.Errorf("day 1: %+v", d2)
	}
	if !near(d2.CARSE, d1.CARSE) {
		t.Error("a single observation adds no variance")
	}
}

func TestRunStudy(t *testing.T) {
	aaa := series("AAA", "Technology", 7, 0.01)
	aaa[3].FilingForm = s("8-K")
	bbb := series("BBB", "Energy", 7, 0.02)
	bbb[3].FilingForm = s("8-K")
	bbb[5].IsSplitDay = true
	ds := dataset(t, aaa, bbb)

	st := Run(ds, nil, Request{Filter: Filter{Types: []string{"8-K"}}, K: 2})
	if st.Summary.Events != 2 || st.Summary.Rows != 10 || st.Summary.Tickers != 2 {
		t.Errorf("summary: %+v", st.Summary)
	}
	if st.Summary.MinPerDay != 2 || st.Summary.MaxPerDay != 2 {
		t.Errorf("rows per day: %+v", st.Summary)
	}
	if len(st.Stats) != 5 {
		t.Fatalf("stats: %d", len(st.Stats))
	}
	// rel_day 0 is tidx 3: AAA 0.04, BBB 0.08
	if !near(st.Stats[2].Mean, 0.06) {
		t.Errorf("day 0 mean: %v", st.Stats[2].Mean)
	}

	ind := Run(ds, nil, Request{Filter: Filter{Tickers: []string{"bbb"}}, K: 1})
	if ind.Summary.Events != 2 || ind.Summary.Tickers != 1 {
		t.Errorf("individual study: %+v", ind.Summary)
	}
	if ind.Request.K != 1 {
		t.Errorf("k: %d", ind.Request.K)
	}
}
