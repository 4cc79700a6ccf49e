package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/panelstudy/internal/eventstudy"
	"github.com/seenimoa/panelstudy/internal/export"
	"github.com/seenimoa/panelstudy/internal/portfolio"
	"github.com/seenimoa/panelstudy/internal/report"
	"github.com/seenimoa/panelstudy/internal/sectorindex"
	"github.com/seenimoa/panelstudy/internal/store"
)

// View names accepted by the export, chart and report routes.
const (
	ViewPortfolio  = "portfolio"
	ViewSectors    = "sectors"
	ViewEvents     = "events"
	ViewIndividual = "individual"
)

// badRequest marks a client error in query parameters.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return badRequest{fmt.Sprintf(format, args...)}
}

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, portfolio.ErrNoTickers),
		errors.Is(err, portfolio.ErrTooManyTickers),
		errors.Is(err, portfolio.ErrUnknownWeighting),
		errors.Is(err, sectorindex.ErrNoSectors),
		errors.Is(err, export.ErrUnknownTable):
		return http.StatusBadRequest
	case errors.Is(err, portfolio.ErrNoData), errors.Is(err, sectorindex.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================
// Query parameters
// ============================================================

// listParam accepts both repeated keys and comma-separated values.
func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func boolParam(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequestf("%s must be a boolean", key)
	}
	return b, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequestf("%s must be an integer", key)
	}
	return n, nil
}

func floatParam(q url.Values, key string, def float64) (float64, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badRequestf("%s must be a number", key)
	}
	return f, nil
}

func dateRange(q url.Values) (from, to string, err error) {
	from, to = q.Get("from"), q.Get("to")
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if len(d) != 10 || d[4] != '-' || d[7] != '-' {
			return "", "", badRequestf("dates must be YYYY-MM-DD, got %q", d)
		}
	}
	if from != "" && to != "" && from > to {
		return "", "", badRequestf("from %s is after to %s", from, to)
	}
	return from, to, nil
}

// ============================================================
// View computations
// ============================================================

func (s *Server) runPortfolio(r *http.Request, ds *store.Dataset) (*portfolio.Result, error) {
	q := r.URL.Query()
	tickers := listParam(q, "tickers")
	if limit := s.cfg.Dashboard.MaxTickers; limit > 0 && len(tickers) > limit {
		return nil, badRequestf("at most %d tickers", limit)
	}
	from, to, err := dateRange(q)
	if err != nil {
		return nil, err
	}
	cash, err := floatParam(q, "cash", s.cfg.Dashboard.DefaultCash)
	if err != nil {
		return nil, err
	}
	if cash <= 0 {
		return nil, badRequestf("cash must be positive")
	}
	return portfolio.Simulate(ds, portfolio.Request{
		Tickers:   tickers,
		From:      from,
		To:        to,
		Cash:      cash,
		Weighting: portfolio.Weighting(q.Get("weighting")),
	})
}

func (s *Server) runSectors(r *http.Request, ds *store.Dataset) (*sectorindex.Result, error) {
	q := r.URL.Query()
	from, to, err := dateRange(q)
	if err != nil {
		return nil, err
	}
	equal, err := boolParam(q, "equal_weight")
	if err != nil {
		return nil, err
	}
	return sectorindex.Build(ds, sectorindex.Request{
		Sectors:     listParam(q, "sectors"),
		From:        from,
		To:          to,
		EqualWeight: equal,
	})
}

// runStudy runs the event study. individual requires 1 to MaxTickers
// tickers.
func (s *Server) runStudy(r *http.Request, ds *store.Dataset, individual bool) (*eventstudy.Study, error) {
	q := r.URL.Query()
	from, to, err := dateRange(q)
	if err != nil {
		return nil, err
	}
	noOverlap, err := boolParam(q, "no_overlap")
	if err != nil {
		return nil, err
	}
	k, err := intParam(q, "k", s.cfg.Dashboard.DefaultWindow)
	if err != nil {
		return nil, err
	}
	k = eventstudy.ClampK(k)
	if limit := s.cfg.Dashboard.MaxWindow; limit > 0 && k > limit {
		k = limit
	}

	tickers := listParam(q, "tickers")
	if individual {
		limit := s.cfg.Dashboard.MaxTickers
		if limit <= 0 {
			limit = portfolio.MaxTickers
		}
		if len(tickers) == 0 || len(tickers) > limit {
			return nil, badRequestf("select 1 to %d tickers", limit)
		}
	}
	req := eventstudy.Request{
		Filter: eventstudy.Filter{
			Types:     listParam(q, "types"),
			From:      from,
			To:        to,
			Sectors:   listParam(q, "sectors"),
			Tickers:   tickers,
			NoOverlap: noOverlap,
		},
		K: k,
	}
	return eventstudy.Run(ds, s.events(ds), req), nil
}

// ============================================================
// View handlers
// ============================================================

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	ds, err := s.store.Dataset()
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.runPortfolio(r, ds)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeData(w, res)
}

func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	ds, err := s.store.Dataset()
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.runSectors(r, ds)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeData(w, res)
}

// StudyResponse adds the matched events to the study payload.
type StudyResponse struct {
	*eventstudy.Study
	Events []eventstudy.Event `json:"events"`
}

func (s *Server) serveStudy(w http.ResponseWriter, r *http.Request, individual bool) {
	ds, err := s.store.Dataset()
	if err != nil {
		s.fail(w, err)
		return
	}
	st, err := s.runStudy(r, ds, individual)
	if err != nil {
		s.fail(w, err)
		return
	}
	events := st.Events
	if events == nil {
		events = []eventstudy.Event{}
	}
	s.writeData(w, StudyResponse{Study: st, Events: events})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.serveStudy(w, r, false)
}

func (s *Server) handleIndividualEvents(w http.ResponseWriter, r *http.Request) {
	s.serveStudy(w, r, true)
}

// computed holds one evaluated view.
type computed struct {
	portfolio *portfolio.Result
	sectors   *sectorindex.Result
	study     *eventstudy.Study
}

func (s *Server) compute(r *http.Request) (*store.Dataset, computed, error) {
	ds, err := s.store.Dataset()
	if err != nil {
		return nil, computed{}, err
	}
	var c computed
	switch view := chi.URLParam(r, "view"); view {
	case ViewPortfolio:
		c.portfolio, err = s.runPortfolio(r, ds)
	case ViewSectors:
		c.sectors, err = s.runSectors(r, ds)
	case ViewEvents:
		c.study, err = s.runStudy(r, ds, false)
	case ViewIndividual:
		c.study, err = s.runStudy(r, ds, true)
	default:
		err = badRequestf("unknown view %q", view)
	}
	return ds, c, err
}

func (c computed) tables() []export.Table {
	switch {
	case c.portfolio != nil:
		return export.Portfolio(c.portfolio)
	case c.sectors != nil:
		return export.Sectors(c.sectors)
	default:
		return export.Study(c.study)
	}
}

// ============================================================
// Export / chart / report
// ============================================================

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, c, err := s.compute(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	table := r.URL.Query().Get("table")
	var buf bytes.Buffer
	if err := export.Write(&buf, format, c.tables(), table); err != nil {
		s.fail(w, err)
		return
	}

	name := chi.URLParam(r, "view")
	if format == export.FormatCSV && table != "" {
		name += "_" + strings.ToLower(table)
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	_, c, err := s.compute(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	cfg := report.DefaultChartConfig()
	q := r.URL.Query()
	if width, err := intParam(q, "width", 0); err == nil && width >= 200 && width <= 4000 {
		cfg.Width = width
	}
	if height, err := intParam(q, "height", 0); err == nil && height >= 150 && height <= 3000 {
		cfg.Height = height
	}

	var svg string
	switch {
	case c.portfolio != nil:
		switch chart := q.Get("chart"); chart {
		case "", "value":
			svg = report.PortfolioValue(c.portfolio, cfg)
		case "growth", "lines":
			svg = report.PortfolioGrowth(c.portfolio, cfg)
		default:
			svg, err = report.HoldingsPie(c.portfolio, chart, cfg)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
	case c.sectors != nil:
		svg = report.SectorIndices(c.sectors, cfg)
	default:
		svg = report.CAR(c.study.Stats, cfg)
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(svg)) //nolint:errcheck
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format := report.Format(strings.ToLower(r.URL.Query().Get("format")))
	if format != "" && format != report.FormatHTML && format != report.FormatText {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown report format %q", format))
		return
	}
	ds, c, err := s.compute(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	out, err := report.Generate(report.Snapshot{
		Title:        r.URL.Query().Get("title"),
		Availability: ds.Availability(),
		Portfolio:    c.portfolio,
		Sectors:      c.sectors,
		Study:        c.study,
	}, format)
	if err != nil {
		s.fail(w, err)
		return
	}
	if format == report.FormatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Write([]byte(out)) //nolint:errcheck
}
