// Package models defines the core data structures shared by the data sources,
// the dataset pipeline and the dashboard.
package models

import "time"

// OHLCV represents one daily bar of price data.
type OHLCV struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close,omitempty"`
	Volume   int64     `json:"volume"`
	// HasVolume is false when the source returned a null volume for the bar.
	HasVolume bool `json:"has_volume"`
}

// Split is a stock split or reverse split. A 2-for-1 split has
// Numerator 2 and Denominator 1.
type Split struct {
	Date        time.Time `json:"date"`
	Numerator   float64   `json:"numerator"`
	Denominator float64   `json:"denominator"`
}

// Ratio returns shares-after over shares-before. Malformed splits report 1.
func (s Split) Ratio() float64 {
	if s.Numerator <= 0 || s.Denominator <= 0 {
		return 1
	}
	return s.Numerator / s.Denominator
}

// IsReverse reports whether the split reduces the share count.
func (s Split) IsReverse() bool {
	return s.Ratio() < 1
}

// Dividend is a cash dividend keyed by its ex-date.
type Dividend struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// PriceHistory is the cached result of one price fetch for a ticker.
type PriceHistory struct {
	Ticker    string     `json:"ticker"`
	Bars      []OHLCV    `json:"bars"`
	Splits    []Split    `json:"splits,omitempty"`
	Dividends []Dividend `json:"dividends,omitempty"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Actions holds the corporate actions of a ticker.
type Actions struct {
	Ticker    string     `json:"ticker"`
	Splits    []Split    `json:"splits"`
	Dividends []Dividend `json:"dividends"`
}
