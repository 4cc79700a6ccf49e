package portfolio

import (
	"math"

	"github.com/seenimoa/panelstudy/pkg/models"
)

// tradingDays annualizes daily ratios.
const tradingDays = 252

// Summary holds the performance of a simulated portfolio. Percentages are
// in percent units.
type Summary struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Days           int     `json:"days"`
	StartValue     float64 `json:"start_value"`
	EndValue       float64 `json:"end_value"`
	TotalReturnPct float64 `json:"total_return_pct"`
	CAGR           float64 `json:"cagr_pct"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe"`
	SortinoRatio   float64 `json:"sortino"`
	Excluded       int     `json:"excluded"`
}

// ════════════════════════════════════════════════════════════════════
// Performance Metrics
// ════════════════════════════════════════════════════════════════════

func summarize(points []Point, excluded int) Summary {
	s := Summary{Excluded: excluded, Days: len(points)}
	if len(points) == 0 {
		return s
	}
	first, last := points[0], points[len(points)-1]
	s.Start, s.End = first.Date, last.Date
	s.StartValue, s.EndValue = first.Value, last.Value
	if first.Value > 0 {
		s.TotalReturnPct = (last.Value/first.Value - 1) * 100
	}

	computeCAGR(&s)
	computeDrawdown(&s, points)
	returns := dailyReturns(points)
	s.SharpeRatio = sharpe(returns)
	s.SortinoRatio = sortino(returns)
	return s
}

// ────────────────────────────────────────────────────────────────────
// CAGR: compound annual growth rate over calendar days
// ────────────────────────────────────────────────────────────────────

func computeCAGR(s *Summary) {
	if s.StartValue <= 0 || s.EndValue <= 0 {
		return
	}
	days, err := models.DaysBetween(s.Start, s.End)
	if err != nil || days <= 0 {
		return
	}
	years := float64(days) / 365.25
	s.CAGR = (math.Pow(s.EndValue/s.StartValue, 1.0/years) - 1) * 100
}

// ────────────────────────────────────────────────────────────────────
// Maximum Drawdown
// ────────────────────────────────────────────────────────────────────

func computeDrawdown(s *Summary, points []Point) {
	peak := points[0].Value
	for _, p := range points {
		if p.Value > peak {
			peak = p.Value
		}
		dd := peak - p.Value
		if dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
		if peak > 0 && dd/peak*100 > s.MaxDrawdownPct {
			s.MaxDrawdownPct = dd / peak * 100
		}
	}
}

// ────────────────────────────────────────────────────────────────────
// Sharpe and Sortino (annualized, zero risk-free rate)
// ────────────────────────────────────────────────────────────────────

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := stddev(returns)
	if sd == 0 {
		return 0
	}
	return mean(returns) / sd * math.Sqrt(tradingDays)
}

func sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var downside float64
	for _, r := range returns {
		if r < 0 {
			downside += r * r
		}
	}
	dd := math.Sqrt(downside / float64(len(returns)))
	if dd == 0 {
		return 0
	}
	return mean(returns) / dd * math.Sqrt(tradingDays)
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// dailyReturns skips the start point, whose daily return is zero by
// construction.
func dailyReturns(points []Point) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, len(points)-1)
	for i := 1; i < len(points); i++ {
		out[i-1] = points[i].RDaily
	}
	return out
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func stddev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	m := mean(data)
	sumSq := 0.0
	for _, v := range data {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(data)-1))
}
