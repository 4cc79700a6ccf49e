package report

import (
	"fmt"
	"math"
	"strconv"

	"github.com/seenimoa/panelstudy/internal/eventstudy"
	"github.com/seenimoa/panelstudy/internal/portfolio"
	"github.com/seenimoa/panelstudy/internal/sectorindex"
)

// Holding pie measures.
const (
	PieSpent  = "spent"
	PieShares = "shares"
	PieFinal  = "final"
)

// PortfolioValue charts the simulated portfolio value over time.
func PortfolioValue(res *portfolio.Result, cfg ChartConfig) string {
	if cfg.Title == "" {
		cfg.Title = "Portfolio value"
	}
	cfg = cfg.withDefaults("")
	cfg.YTitle = "USD"
	values := make([]float64, len(res.Points))
	labels := make([]string, len(res.Points))
	for i, p := range res.Points {
		values[i] = p.Value
		labels[i] = p.Date
	}
	return LineChart([]LineChartSeries{{Name: "Portfolio", Values: values}}, labels, cfg)
}

// PortfolioGrowth charts each ticker's growth of one dollar.
func PortfolioGrowth(res *portfolio.Result, cfg ChartConfig) string {
	if cfg.Title == "" {
		cfg.Title = "Growth of $1 by ticker"
	}
	cfg = cfg.withDefaults("")
	labels := make([]string, len(res.Points))
	for i, p := range res.Points {
		labels[i] = p.Date
	}
	series := make([]LineChartSeries, 0, len(res.Lines))
	for _, l := range res.Lines {
		series = append(series, LineChartSeries{Name: l.Ticker, Values: nullable(l.Growth)})
	}
	return LineChart(series, labels, cfg)
}

// HoldingsPie charts the allocation of the portfolio by measure: spent,
// shares or final.
func HoldingsPie(res *portfolio.Result, measure string, cfg ChartConfig) (string, error) {
	titles := map[string]string{
		PieSpent:  "Initial allocation",
		PieShares: "Shares bought",
		PieFinal:  "Final value",
	}
	title, ok := titles[measure]
	if !ok {
		return "", fmt.Errorf("unknown pie measure %q", measure)
	}
	if cfg.Title == "" {
		cfg.Title = title
	}
	unit := " USD"
	slices := make([]PieSlice, 0, len(res.Holdings))
	for _, h := range res.Holdings {
		v := h.Spent
		switch measure {
		case PieShares:
			v, unit = h.Shares, ""
		case PieFinal:
			v = h.FinalValue
		}
		f, _ := v.Float64()
		slices = append(slices, PieSlice{Label: h.Ticker, Value: f})
	}
	return PieChart(slices, unit, cfg), nil
}

// SectorIndices charts the level of each sector index.
func SectorIndices(res *sectorindex.Result, cfg ChartConfig) string {
	if cfg.Title == "" {
		cfg.Title = "Sector indices (start = 1)"
	}
	cfg = cfg.withDefaults("")
	cfg.ValueFormat = "%.3f"
	series := make([]LineChartSeries, 0, len(res.Series))
	for _, s := range res.Series {
		series = append(series, LineChartSeries{Name: s.Sector, Values: s.Index})
	}
	return LineChart(series, res.Dates, cfg)
}

// CAR charts the cumulative average return across relative days with a
// shaded 95% confidence band and a marker on the event day.
func CAR(stats []eventstudy.DayStat, cfg ChartConfig) string {
	if cfg.Title == "" {
		cfg.Title = "Cumulative average return"
	}
	cfg = cfg.withDefaults("")
	cfg.ValueFormat = "%.4f"
	cfg.XTitle = "Days relative to event"
	if len(stats) == 0 {
		return emptySVG(cfg, "No events matched")
	}

	car := make([]float64, len(stats))
	aar := make([]float64, len(stats))
	band := &Band{Lo: make([]float64, len(stats)), Hi: make([]float64, len(stats)), Label: "95% CI"}
	labels := make([]string, len(stats))
	zero := -1
	for i, s := range stats {
		car[i], aar[i] = s.CAR, s.Mean
		band.Lo[i], band.Hi[i] = s.CILo, s.CIHi
		labels[i] = strconv.Itoa(s.RelDay)
		if s.RelDay == 0 {
			zero = i
		}
	}
	series := []LineChartSeries{
		{Name: "CAR", Values: car},
		{Name: "AAR", Values: aar, Dashed: true},
	}
	return lineChart(series, labels, band, &VLine{Index: zero, Label: "event"}, cfg)
}

func nullable(vs []*float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	return out
}
