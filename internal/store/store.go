// Package store holds the thin artifact in memory for the dashboard and
// reloads it when the file on disk changes.
package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/panelstudy/internal/thin"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// ErrNotLoaded is returned by queries made before the first successful load.
var ErrNotLoaded = errors.New("dataset not loaded")

// Options are the query defaults of a Store.
type Options struct {
	LookbackDays    int // dashboard date picker lower bound, in calendar days
	SearchMinLength int
	SearchLimit     int
}

// DefaultOptions returns the dashboard defaults.
func DefaultOptions() Options {
	return Options{LookbackDays: 756, SearchMinLength: 2, SearchLimit: 25}
}

// Series is one ticker's rows ordered by tidx.
type Series struct {
	Ticker string
	Rows   []thin.Row
	byDate map[string]int
}

// Len returns the number of trading days in the series.
func (s *Series) Len() int { return len(s.Rows) }

// TIdx returns the trading-day index of date.
func (s *Series) TIdx(date string) (int, bool) {
	i, ok := s.byDate[date]
	return i, ok
}

// Between returns the rows with from <= date <= to. Empty bounds are open.
func (s *Series) Between(from, to string) []thin.Row {
	lo := 0
	if from != "" {
		lo = sort.Search(len(s.Rows), func(i int) bool { return s.Rows[i].Date >= from })
	}
	hi := len(s.Rows)
	if to != "" {
		hi = sort.Search(len(s.Rows), func(i int) bool { return s.Rows[i].Date > to })
	}
	if lo >= hi {
		return nil
	}
	return s.Rows[lo:hi]
}

// Bounds are the dates covered by a dataset. Lo is the earliest date the
// dashboard offers, no more than the lookback before Max.
type Bounds struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Lo  string `json:"lo"`
	Hi  string `json:"hi"`
}

// Dataset is an immutable, indexed snapshot of the thin artifact.
type Dataset struct {
	Path     string
	LoadedAt time.Time
	Rows     []thin.Row // sorted by ticker, date

	series  map[string]*Series
	tickers []string
	sectors []string
	forms   []string
	bounds  Bounds
}

// NewDataset indexes rows. The rows must satisfy thin.CheckTIdx once sorted.
func NewDataset(rows []thin.Row, lookbackDays int) (*Dataset, error) {
	sorted := make([]thin.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ticker != sorted[j].Ticker {
			return sorted[i].Ticker < sorted[j].Ticker
		}
		return sorted[i].Date < sorted[j].Date
	})
	if err := thin.CheckTIdx(sorted); err != nil {
		return nil, fmt.Errorf("thin artifact: %w", err)
	}

	d := &Dataset{Rows: sorted, series: make(map[string]*Series)}
	sectors := make(map[string]bool)
	forms := make(map[string]bool)
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].Ticker == sorted[i].Ticker {
			j++
		}
		s := &Series{Ticker: sorted[i].Ticker, Rows: sorted[i:j:j], byDate: make(map[string]int, j-i)}
		for k := range s.Rows {
			r := &s.Rows[k]
			s.byDate[r.Date] = int(r.TIdx)
			if sec := strings.TrimSpace(deref(r.Sector)); sec != "" {
				sectors[sec] = true
			}
			if r.FilingForm != nil && *r.FilingForm != "" {
				forms[*r.FilingForm] = true
			}
			if d.bounds.Min == "" || r.Date < d.bounds.Min {
				d.bounds.Min = r.Date
			}
			if r.Date > d.bounds.Max {
				d.bounds.Max = r.Date
			}
		}
		d.series[s.Ticker] = s
		d.tickers = append(d.tickers, s.Ticker)
		i = j
	}
	d.sectors = sortedKeys(sectors)
	d.forms = sortedKeys(forms)
	d.bounds.Lo, d.bounds.Hi = d.bounds.Min, d.bounds.Max
	if d.bounds.Max != "" && lookbackDays > 0 {
		max, err := models.ParseDate(d.bounds.Max)
		if err != nil {
			return nil, err
		}
		if lo := models.FormatDate(max.AddDate(0, 0, -lookbackDays)); lo > d.bounds.Lo {
			d.bounds.Lo = lo
		}
	}
	return d, nil
}

// Series returns the rows of ticker, matched case-insensitively.
func (d *Dataset) Series(ticker string) (*Series, bool) {
	s, ok := d.series[strings.ToUpper(strings.TrimSpace(ticker))]
	return s, ok
}

// Tickers returns the sorted ticker universe.
func (d *Dataset) Tickers() []string { return d.tickers }

// Sectors returns the distinct non-empty sectors, sorted.
func (d *Dataset) Sectors() []string { return d.sectors }

// FilingForms returns the distinct filing forms present, sorted.
func (d *Dataset) FilingForms() []string { return d.forms }

// Bounds returns the dataset's date bounds.
func (d *Dataset) Bounds() Bounds { return d.bounds }

// Availability renders the dashboard's "Data available" line with
// US-style dates.
func (d *Dataset) Availability() string {
	if d.bounds.Min == "" {
		return "No data loaded"
	}
	return fmt.Sprintf("Data available: %s to %s", usDate(d.bounds.Lo), usDate(d.bounds.Hi))
}

func usDate(s string) string {
	t, err := models.ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format("1/2/2006")
}

// Search returns up to limit tickers starting with prefix. Prefixes
// shorter than minLen return nothing.
func (d *Dataset) Search(prefix string, minLen, limit int) []string {
	p := strings.ToUpper(strings.TrimSpace(prefix))
	if len(p) < minLen || p == "" {
		return nil
	}
	i := sort.SearchStrings(d.tickers, p)
	var out []string
	for ; i < len(d.tickers) && strings.HasPrefix(d.tickers[i], p); i++ {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, d.tickers[i])
	}
	return out
}

// Store owns the current Dataset and swaps it on reload.
type Store struct {
	path string
	opts Options
	log  zerolog.Logger

	mu sync.RWMutex
	ds *Dataset
}

// New creates a Store for the thin artifact at path. Nothing is read until
// Load is called.
func New(path string, opts Options, log zerolog.Logger) *Store {
	def := DefaultOptions()
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = def.LookbackDays
	}
	if opts.SearchMinLength <= 0 {
		opts.SearchMinLength = def.SearchMinLength
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = def.SearchLimit
	}
	return &Store{path: path, opts: opts, log: log.With().Str("component", "store").Logger()}
}

// Path returns the artifact path.
func (s *Store) Path() string { return s.path }

// Load reads the artifact and replaces the current dataset. On error the
// previous dataset stays in place.
func (s *Store) Load() (*Dataset, error) {
	start := time.Now()
	rows, err := thin.Read(s.path)
	if err != nil {
		return nil, err
	}
	ds, err := NewDataset(rows, s.opts.LookbackDays)
	if err != nil {
		return nil, err
	}
	ds.Path = s.path
	ds.LoadedAt = time.Now().UTC()
	if fi, err := os.Stat(s.path); err == nil {
		ds.LoadedAt = fi.ModTime().UTC()
	}

	s.mu.Lock()
	s.ds = ds
	s.mu.Unlock()

	s.log.Info().
		Int("rows", len(ds.Rows)).
		Int("tickers", len(ds.tickers)).
		Str("from", ds.bounds.Min).
		Str("to", ds.bounds.Max).
		Dur("took", time.Since(start)).
		Msg("dataset loaded")
	return ds, nil
}

// Set installs ds directly, bypassing the file.
func (s *Store) Set(ds *Dataset) {
	s.mu.Lock()
	s.ds = ds
	s.mu.Unlock()
}

// Dataset returns the current snapshot.
func (s *Store) Dataset() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return nil, ErrNotLoaded
	}
	return s.ds, nil
}

// Search runs Dataset.Search with the store's limits.
func (s *Store) Search(prefix string) ([]string, error) {
	ds, err := s.Dataset()
	if err != nil {
		return nil, err
	}
	return ds.Search(prefix, s.opts.SearchMinLength, s.opts.SearchLimit), nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
