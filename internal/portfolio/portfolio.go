// Package portfolio simulates static-weight buy-and-hold portfolios over
// the thin artifact.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/panelstudy/internal/store"
)

// Limits and defaults of a simulation request.
const (
	MaxTickers  = 10
	DefaultCash = 10000.0
)

// Weighting selects how the initial allocation is split.
type Weighting string

const (
	EqualWeight  Weighting = "equal"
	InversePrice Weighting = "inverse_price"
)

var (
	ErrNoTickers        = errors.New("portfolio: no tickers selected")
	ErrTooManyTickers   = fmt.Errorf("portfolio: at most %d tickers", MaxTickers)
	ErrNoData           = errors.New("portfolio: no data for the selected tickers and dates")
	ErrUnknownWeighting = errors.New("portfolio: unknown weighting")
)

// Request describes one simulation.
type Request struct {
	Tickers   []string  `json:"tickers"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Cash      float64   `json:"cash"`
	Weighting Weighting `json:"weighting"`
}

// normalize upper-cases and dedupes tickers and fills defaults.
func (r Request) normalize() (Request, error) {
	seen := make(map[string]bool)
	var tickers []string
	for _, t := range r.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	if len(tickers) == 0 {
		return r, ErrNoTickers
	}
	if len(tickers) > MaxTickers {
		return r, ErrTooManyTickers
	}
	r.Tickers = tickers
	if r.Cash <= 0 {
		r.Cash = DefaultCash
	}
	switch r.Weighting {
	case "":
		r.Weighting = EqualWeight
	case EqualWeight, InversePrice:
	default:
		return r, fmt.Errorf("%w %q", ErrUnknownWeighting, r.Weighting)
	}
	return r, nil
}

// Point is the portfolio on one date.
type Point struct {
	Date   string  `json:"date" csv:"date"`
	Value  float64 `json:"value" csv:"portfolio_value"`
	RDaily float64 `json:"r_daily" csv:"portfolio_r_daily"`
	RTotal float64 `json:"r_total" csv:"portfolio_r_total"`
	Active int     `json:"active" csv:"active_tickers"`
}

// Line is one ticker's cumulative growth, aligned with Result.Points.
// Growth is nil from the date the ticker was excluded.
type Line struct {
	Ticker string     `json:"ticker"`
	Growth []*float64 `json:"growth"`
}

// Holding is the initial allocation to one ticker and what became of it.
// FinalValue is the position at its last valid date.
type Holding struct {
	Ticker     string          `json:"ticker" csv:"ticker"`
	Weight     decimal.Decimal `json:"w0" csv:"w0"`
	Price      decimal.Decimal `json:"p0" csv:"p0"`
	Spent      decimal.Decimal `json:"spent" csv:"spent"`
	Shares     decimal.Decimal `json:"shares0" csv:"shares0"`
	FinalValue decimal.Decimal `json:"final_value" csv:"final_value"`
	ExcludedOn string          `json:"excluded_on,omitempty" csv:"excluded_on"`
}

// Exclusion records a ticker dropped from the allocation.
type Exclusion struct {
	Ticker string `json:"ticker"`
	// Date is the first date without a return; empty when the ticker had
	// no row on the start date.
	Date string `json:"date,omitempty"`
}

// Result is the outcome of a simulation.
type Result struct {
	Request  Request     `json:"request"`
	Points   []Point     `json:"points"`
	Lines    []Line      `json:"lines"`
	Holdings []Holding   `json:"holdings"`
	Excluded []Exclusion `json:"excluded"`
	Summary  Summary     `json:"summary"`
}

// Simulate runs req against ds. Each ticker's position grows with its
// simple daily returns and is never rebalanced. A ticker whose return is
// missing on some date is dropped from that date on, and the value is
// carried by the remaining positions with their weights renormalized.
func Simulate(ds *store.Dataset, req Request) (*Result, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	type pos struct {
		ticker string
		rows   map[string]*float64 // date → logret
		p0     float64
		w      float64
		growth float64
		active bool
		line   Line
		exc    string
	}

	dateSet := make(map[string]bool)
	positions := make([]*pos, 0, len(req.Tickers))
	for _, t := range req.Tickers {
		p := &pos{ticker: t, rows: make(map[string]*float64), growth: 1, line: Line{Ticker: t}}
		if s, ok := ds.Series(t); ok {
			for _, r := range s.Between(req.From, req.To) {
				p.rows[r.Date] = r.LogRet
				dateSet[r.Date] = true
				if p.p0 == 0 && r.Close > 0 {
					p.p0 = r.Close
				}
			}
		}
		positions = append(positions, p)
	}
	if len(dateSet) == 0 {
		return nil, ErrNoData
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	res := &Result{Request: req}
	var starting []*pos
	for _, p := range positions {
		if _, ok := p.rows[dates[0]]; ok {
			p.active = true
			starting = append(starting, p)
			continue
		}
		res.Excluded = append(res.Excluded, Exclusion{Ticker: p.ticker})
	}
	prices := make([]float64, len(starting))
	for i, p := range starting {
		prices[i] = p.p0
	}
	for i, w := range Weights(prices, req.Weighting) {
		starting[i].w = w
	}

	for i, d := range dates {
		if i > 0 {
			for _, p := range positions {
				if !p.active {
					continue
				}
				lr, ok := p.rows[d]
				if !ok || lr == nil || math.IsNaN(*lr) {
					p.active = false
					p.exc = d
					res.Excluded = append(res.Excluded, Exclusion{Ticker: p.ticker, Date: d})
					continue
				}
				p.growth *= 1 + math.Expm1(*lr)
			}
		}

		var value, wsum float64
		active := 0
		for _, p := range positions {
			if !p.active {
				p.line.Growth = append(p.line.Growth, nil)
				continue
			}
			g := p.growth
			p.line.Growth = append(p.line.Growth, &g)
			value += p.w * g
			wsum += p.w
			active++
		}
		if active == 0 || wsum == 0 {
			break
		}
		pt := Point{Date: d, Value: req.Cash * value / wsum, Active: active}
		if n := len(res.Points); n > 0 {
			prev := res.Points[n-1].Value
			if prev != 0 {
				pt.RDaily = pt.Value/prev - 1
			}
			pt.RTotal = pt.Value/res.Points[0].Value - 1
		}
		res.Points = append(res.Points, pt)
	}
	if len(res.Points) == 0 {
		return nil, ErrNoData
	}

	cash := decimal.NewFromFloat(req.Cash)
	for _, p := range positions {
		p.line.Growth = p.line.Growth[:len(res.Points)]
		res.Lines = append(res.Lines, p.line)
		h := Holding{Ticker: p.ticker, ExcludedOn: p.exc}
		if p.w > 0 {
			h.Weight = decimal.NewFromFloat(p.w).Round(6)
			h.Price = decimal.NewFromFloat(p.p0)
			h.Spent = cash.Mul(decimal.NewFromFloat(p.w)).Round(2)
			if p.p0 > 0 {
				h.Shares = h.Spent.DivRound(h.Price, 6)
			}
			h.FinalValue = h.Spent.Mul(decimal.NewFromFloat(p.growth)).Round(2)
		}
		res.Holdings = append(res.Holdings, h)
	}
	res.Summary = summarize(res.Points, len(res.Excluded))
	return res, nil
}

// Weights returns static weights summing to one for positions bought at
// prices. Inverse-price weights fall back to equal weights when no price
// is positive.
func Weights(prices []float64, mode Weighting) []float64 {
	w := make([]float64, len(prices))
	if len(prices) == 0 {
		return w
	}
	if mode == InversePrice {
		var sum float64
		for _, p := range prices {
			if p > 0 {
				sum += 1 / p
			}
		}
		if sum > 0 {
			for i, p := range prices {
				if p > 0 {
					w[i] = (1 / p) / sum
				}
			}
			return w
		}
	}
	for i := range w {
		w[i] = 1 / float64(len(prices))
	}
	return w
}
