package portfolio

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/panelstudy/internal/store"
	"github.com/seenimoa/panelstudy/internal/thin"
)

var days = []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}

// history builds rows for ticker on days[start:] with the given simple
// returns; nil entries leave logret null. rets[0] is ignored.
func history(ticker string, start int, close float64, rets ...*float64) []thin.Row {
	var rows []thin.Row
	for i, r := range rets {
		row := thin.Row{Ticker: ticker, Date: days[start+i], TIdx: int32(i), Close: close}
		if i > 0 && r != nil {
			lr := math.Log1p(*r)
			row.LogRet = &lr
		}
		rows = append(rows, row)
	}
	return rows
}

func ret(v float64) *float64 { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func dataset(t *testing.T, rows ...[]thin.Row) *store.Dataset {
	t.Helper()
	var all []thin.Row
	for _, r := range rows {
		all = append(all, r...)
	}
	ds, err := store.NewDataset(all, 0)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func twoTickers(t *testing.T) *store.Dataset {
	return dataset(t,
		history("AAA", 0, 100, nil, ret(0.1), ret(0), ret(0.1)),
		history("BBB", 0, 50, nil, ret(0.2), nil, ret(0)),
	)
}

// ════════════════════════════════════════════════════════════════════
// Simulation
// ════════════════════════════════════════════════════════════════════

func TestSimulateExcludesMissingReturns(t *testing.T) {
	res, err := Simulate(twoTickers(t), Request{Tickers: []string{"aaa", "BBB"}})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	want := []float64{10000, 11500, 11000, 12100}
	if len(res.Points) != len(want) {
		t.Fatalf("points: %d", len(res.Points))
	}
	for i, w := range want {
		if !near(res.Points[i].Value, w) {
			t.Errorf("day %d value: got %v, want %v", i+1, res.Points[i].Value, w)
		}
	}
	if res.Points[2].Active != 1 || res.Points[1].Active != 2 {
		t.Errorf("active counts: %+v", res.Points)
	}
	if !near(res.Points[3].RDaily, 0.1) || !near(res.Points[3].RTotal, 0.21) {
		t.Errorf("returns: %+v", res.Points[3])
	}

	if len(res.Excluded) != 1 || res.Excluded[0] != (Exclusion{Ticker: "BBB", Date: "2024-01-04"}) {
		t.Errorf("excluded: %+v", res.Excluded)
	}
	if res.Summary.Excluded != 1 {
		t.Errorf("summary excluded: %d", res.Summary.Excluded)
	}
	bbb := res.Lines[1]
	if bbb.Ticker != "BBB" || bbb.Growth[1] == nil || !near(*bbb.Growth[1], 1.2) || bbb.Growth[2] != nil {
		t.Errorf("BBB line: %+v", bbb)
	}
}

func TestSimulateHoldings(t *testing.T) {
	res, err := Simulate(twoTickers(t), Request{Tickers: []string{"AAA", "BBB"}, Cash: 10000})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		ticker                   string
		spent, shares, final, w0 string
		excludedOn               string
	}{
		{"AAA", "5000", "50", "6050", "0.5", ""},
		{"BBB", "5000", "100", "6000", "0.5", "2024-01-04"},
	}
	for i, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			h := res.Holdings[i]
			check := func(name string, got decimal.Decimal, want string) {
				if !got.Equal(decimal.RequireFromString(want)) {
					t.Errorf("%s: got %s, want %s", name, got, want)
				}
			}
			check("spent", h.Spent, tt.spent)
			check("shares0", h.Shares, tt.shares)
			check("final_value", h.FinalValue, tt.final)
			check("w0", h.Weight, tt.w0)
			if h.ExcludedOn != tt.excludedOn {
				t.Errorf("excluded_on: %q", h.ExcludedOn)
			}
		})
	}
}

func TestSimulateTickerMissingAtStart(t *testing.T) {
	ds := dataset(t,
		history("AAA", 0, 100, nil, ret(0.1), ret(0.1), ret(0.1)),
		history("CCC", 1, 10, nil, ret(0.5), ret(0.5)),
	)
	res, err := Simulate(ds, Request{Tickers: []string{"AAA", "CCC"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Excluded) != 1 || res.Excluded[0].Ticker != "CCC" || res.Excluded[0].Date != "" {
		t.Errorf("excluded: %+v", res.Excluded)
	}
	if !near(res.Points[3].Value, 10000*1.331) {
		t.Errorf("final value: %v", res.Points[3].Value)
	}
	if !res.Holdings[1].Spent.IsZero() {
		t.Errorf("CCC should receive no allocation: %+v", res.Holdings[1])
	}
}

func TestSimulateDateRange(t *testing.T) {
	res, err := Simulate(twoTickers(t), Request{Tickers: []string{"AAA"}, From: "2024-01-03", To: "2024-01-04"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Points) != 2 || res.Points[0].Date != "2024-01-03" || !near(res.Points[1].Value, 10000) {
		t.Errorf("points: %+v", res.Points)
	}
}

func TestSimulateErrors(t *testing.T) {
	ds := twoTickers(t)
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"no tickers", Request{Tickers: []string{" ", ""}}, ErrNoTickers},
		{"too many", Request{Tickers: []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K"}}, ErrTooManyTickers},
		{"unknown weighting", Request{Tickers: []string{"AAA"}, Weighting: "cap"}, ErrUnknownWeighting},
		{"no rows", Request{Tickers: []string{"ZZZ"}}, ErrNoData},
		{"empty range", Request{Tickers: []string{"AAA"}, From: "2030-01-01"}, ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Simulate(ds, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Weights and metrics
// ════════════════════════════════════════════════════════════════════

func TestWeights(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		mode   Weighting
		want   []float64
	}{
		{"equal", []float64{100, 50}, EqualWeight, []float64{0.5, 0.5}},
		{"inverse price", []float64{100, 50}, InversePrice, []float64{1.0 / 3, 2.0 / 3}},
		{"inverse skips bad prices", []float64{0, 50}, InversePrice, []float64{0, 1}},
		{"inverse falls back to equal", []float64{0, -1}, InversePrice, []float64{0.5, 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Weights(tt.prices, tt.mode)
			for i := range tt.want {
				if !near(got[i], tt.want[i]) {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestSummaryMetrics(t *testing.T) {
	res, err := Simulate(twoTickers(t), Request{Tickers: []string{"AAA", "BBB"}})
	if err != nil {
		t.Fatal(err)
	}
	s := res.Summary
	if s.Start != "2024-01-02" || s.End != "2024-01-05" || s.Days != 4 {
		t.Errorf("span: %+v", s)
	}
	if !near(s.TotalReturnPct, 21) {
		t.Errorf("total return: %v", s.TotalReturnPct)
	}
	if !near(s.MaxDrawdown, 500) || !near(s.MaxDrawdownPct, 500.0/11500*100) {
		t.Errorf("drawdown: %v %v", s.MaxDrawdown, s.MaxDrawdownPct)
	}
	if s.CAGR <= 0 || s.SharpeRatio <= 0 || s.SortinoRatio <= 0 {
		t.Errorf("ratios should be positive: %+v", s)
	}
}
