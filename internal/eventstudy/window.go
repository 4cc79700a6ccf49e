package eventstudy

import (
	"github.com/seenimoa/panelstudy/internal/store"
)

// Window radius limits.
const (
	DefaultK = 5
	MaxK     = 20
)

// ClampK bounds the window radius to [1, MaxK]. Zero means DefaultK.
func ClampK(k int) int {
	switch {
	case k == 0:
		return DefaultK
	case k < 1:
		return 1
	case k > MaxK:
		return MaxK
	}
	return k
}

// WindowRow is one trading day inside an event window.
type WindowRow struct {
	Ticker    string   `json:"ticker" csv:"ticker"`
	EventType string   `json:"event_type" csv:"event_type"`
	Sector    string   `json:"sector,omitempty" csv:"sector"`
	EventDate string   `json:"event_date" csv:"event_date"`
	Date      string   `json:"date" csv:"date"`
	RelDay    int      `json:"rel_day" csv:"rel_day"`
	LogRet    *float64 `json:"logret" csv:"logret"`
	NEvents   int      `json:"n_events" csv:"n_events"`
	IsOverlap bool     `json:"is_overlap" csv:"is_overlap"`
}

// Windows holds the aligned rows of a set of events.
type Windows struct {
	K    int         `json:"k"`
	Rows []WindowRow `json:"rows"`
	// Matched counts events whose date is a trading day of their ticker.
	Matched int `json:"matched"`
	// Excluded counts events with no such trading day; they contribute no
	// rows.
	Excluded int `json:"excluded"`
}

// BuildWindows resolves each event to its tidx and collects the rows at
// tidx-k..tidx+k that exist. Windows are truncated at the series
// boundaries, never padded.
func BuildWindows(ds *store.Dataset, events []Event, k int) Windows {
	k = ClampK(k)
	w := Windows{K: k}
	for _, e := range events {
		s, ok := ds.Series(e.Ticker)
		if !ok {
			w.Excluded++
			continue
		}
		i, ok := s.TIdx(e.Date)
		if !ok {
			w.Excluded++
			continue
		}
		w.Matched++
		lo, hi := max(0, i-k), min(s.Len()-1, i+k)
		for j := lo; j <= hi; j++ {
			r := &s.Rows[j]
			w.Rows = append(w.Rows, WindowRow{
				Ticker:    e.Ticker,
				EventType: e.Type,
				Sector:    e.Sector,
				EventDate: e.Date,
				Date:      r.Date,
				RelDay:    j - i,
				LogRet:    r.LogRet,
				NEvents:   e.NEvents,
				IsOverlap: e.IsOverlap,
			})
		}
	}
	return w
}
