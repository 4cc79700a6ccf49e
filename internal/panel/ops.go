package panel

import (
	"fmt"
	"sort"
	"strings"
)

// Sort orders rows by ticker, then date.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Ticker != rows[j].Ticker {
			return rows[i].Ticker < rows[j].Ticker
		}
		return rows[i].Date < rows[j].Date
	})
}

// Dedupe drops repeated (date, ticker) keys, keeping the last occurrence,
// and returns the rows sorted.
func Dedupe(rows []Row) []Row {
	last := make(map[Key]int, len(rows))
	for i := range rows {
		last[rows[i].Key()] = i
	}
	out := make([]Row, 0, len(last))
	for i := range rows {
		if last[rows[i].Key()] == i {
			out = append(out, rows[i])
		}
	}
	Sort(out)
	return out
}

// Validate checks the key invariant: every (date, ticker) is unique and
// neither part is empty.
func Validate(rows []Row) error {
	seen := make(map[Key]struct{}, len(rows))
	for i := range rows {
		k := rows[i].Key()
		if k.Date == "" || k.Ticker == "" {
			return fmt.Errorf("row %d: empty key %+v", i, k)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate key %s/%s", k.Ticker, k.Date)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// GroupByTicker splits sorted rows into per-ticker sub-slices that share
// the backing array, so edits through a group are visible in rows.
func GroupByTicker(rows []Row) map[string][]Row {
	groups := make(map[string][]Row)
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].Ticker != rows[start].Ticker {
			if start < len(rows) {
				groups[rows[start].Ticker] = rows[start:i:i]
			}
			start = i
		}
	}
	return groups
}

// Tickers returns the distinct tickers of rows, sorted.
func Tickers(rows []Row) []string {
	set := make(map[string]struct{})
	for i := range rows {
		set[rows[i].Ticker] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NormalizeTickers upper-cases and trims every ticker in place.
func NormalizeTickers(rows []Row) {
	for i := range rows {
		rows[i].Ticker = strings.ToUpper(strings.TrimSpace(rows[i].Ticker))
	}
}

// DateRange returns the first and last date in rows.
func DateRange(rows []Row) (first, last string) {
	for i := range rows {
		d := rows[i].Date
		if first == "" || d < first {
			first = d
		}
		if d > last {
			last = d
		}
	}
	return first, last
}
