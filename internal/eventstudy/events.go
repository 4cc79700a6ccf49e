// Package eventstudy aligns returns around corporate events on the
// trading-day index and aggregates them into average and cumulative
// abnormal returns, with expected return zero.
package eventstudy

import (
	"sort"
	"strings"

	"github.com/seenimoa/panelstudy/internal/store"
)

// Event types derived from the split flags. Filing events use the form
// name as their type.
const (
	TypeSplit        = "SPLIT"
	TypeReverseSplit = "REVERSE_SPLIT"
)

// Event is one (ticker, date, type) occurrence. NEvents counts all events
// of the ticker on that date; IsOverlap is NEvents > 1.
type Event struct {
	Ticker    string `json:"ticker" csv:"ticker"`
	Date      string `json:"date" csv:"date"`
	Type      string `json:"event_type" csv:"event_type"`
	Sector    string `json:"sector,omitempty" csv:"sector"`
	NEvents   int    `json:"n_events" csv:"n_events"`
	IsOverlap bool   `json:"is_overlap" csv:"is_overlap"`
}

// BuildEvents derives the event table from a dataset: one event per
// filing form on a filing day, plus SPLIT and REVERSE_SPLIT on split days.
// Events are sorted by date, ticker and type.
func BuildEvents(ds *store.Dataset) []Event {
	type key struct{ ticker, date, typ string }
	seen := make(map[key]bool)
	var out []Event
	add := func(ticker, date, typ, sector string) {
		k := key{ticker, date, typ}
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, Event{Ticker: ticker, Date: date, Type: typ, Sector: sector})
	}
	for i := range ds.Rows {
		r := &ds.Rows[i]
		sector := ""
		if r.Sector != nil {
			sector = strings.TrimSpace(*r.Sector)
		}
		if r.FilingForm != nil && strings.TrimSpace(*r.FilingForm) != "" {
			add(r.Ticker, r.Date, strings.TrimSpace(*r.FilingForm), sector)
		}
		if r.IsSplitDay {
			add(r.Ticker, r.Date, TypeSplit, sector)
		}
		if r.IsReverseSplitDay {
			add(r.Ticker, r.Date, TypeReverseSplit, sector)
		}
	}
	countOverlaps(out)
	sortEvents(out)
	return out
}

func countOverlaps(events []Event) {
	type day struct{ ticker, date string }
	n := make(map[day]int)
	for _, e := range events {
		n[day{e.Ticker, e.Date}]++
	}
	for i := range events {
		events[i].NEvents = n[day{events[i].Ticker, events[i].Date}]
		events[i].IsOverlap = events[i].NEvents > 1
	}
}

func sortEvents(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.Type < b.Type
	})
}

// Types returns the distinct event types, sorted.
func Types(events []Event) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range events {
		if !seen[e.Type] {
			seen[e.Type] = true
			out = append(out, e.Type)
		}
	}
	sort.Strings(out)
	return out
}

// Filter selects events. Empty fields do not filter.
type Filter struct {
	Types     []string `json:"types,omitempty"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Sectors   []string `json:"sectors,omitempty"`
	Tickers   []string `json:"tickers,omitempty"`
	NoOverlap bool     `json:"no_overlap,omitempty"`
}

// Apply returns the events matching f, in input order.
func (f Filter) Apply(events []Event) []Event {
	types := set(f.Types, false)
	sectors := set(f.Sectors, false)
	tickers := set(f.Tickers, true)
	var out []Event
	for _, e := range events {
		switch {
		case f.From != "" && e.Date < f.From:
		case f.To != "" && e.Date > f.To:
		case len(types) > 0 && !types[e.Type]:
		case len(sectors) > 0 && !sectors[e.Sector]:
		case len(tickers) > 0 && !tickers[e.Ticker]:
		case f.NoOverlap && e.IsOverlap:
		default:
			out = append(out, e)
		}
	}
	return out
}

func set(vals []string, upper bool) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if upper {
			v = strings.ToUpper(v)
		}
		if v != "" {
			m[v] = true
		}
	}
	return m
}
