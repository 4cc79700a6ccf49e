package backfill

import (
	"context"
	"strings"

	"github.com/seenimoa/panelstudy/internal/panel"
	"github.com/seenimoa/panelstudy/internal/pipeline"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// NamespaceETFPrices holds price histories of ETFs added to the panel.
const NamespaceETFPrices = "etf_prices"

// ETFs adds the reference ETFs missing from the panel, with sector "ETF",
// over the panel's date range. ETFs already in the panel only get their
// sector gaps set to "ETF"; their other columns are left alone.
func ETFs(ctx context.Context, rows []panel.Row, d Deps) ([]panel.Row, Report, error) {
	rep := newReport(KindETFs, rows)
	out := clone(rows)
	groups := panel.GroupByTicker(out)
	first, last := panel.DateRange(out)

	var missing []string
	seen := make(map[string]bool)
	for _, t := range d.ETFTickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		g, ok := groups[t]
		if !ok {
			missing = append(missing, t)
			rep.GapBefore++
			continue
		}
		for i := range g {
			if sectorGap(&g[i]) {
				g[i].Sector = panel.Str(panel.SectorETF)
				rep.Filled++
				rep.count("existing_rows")
			}
		}
	}
	rep.Tickers = len(missing)
	if len(missing) == 0 || d.Env == nil || d.Env.Cache == nil {
		rep.GapAfter = len(missing)
		rep.RowsOut = len(out)
		return out, rep, nil
	}
	env := d.Env

	if d.Fetch && env.Sources != nil && first != "" {
		if src, err := env.Sources.Prices(); err == nil {
			from, to := dayRange(first, last)
			_, err := pipeline.FetchAll(ctx, env, NamespaceETFPrices, missing,
				func(ctx context.Context, t string) (*models.PriceHistory, error) {
					return src.FetchDaily(ctx, t, from, to)
				})
			if err != nil {
				return nil, rep, err
			}
		}
	}
	hists, err := pipeline.LoadCached[models.PriceHistory](env, NamespaceETFPrices, missing)
	if err != nil {
		return nil, rep, err
	}

	var added []panel.Row
	for _, t := range missing {
		h := hists[t]
		if h == nil {
			rep.GapAfter++
			continue
		}
		h.Ticker = t
		n := 0
		for _, r := range panel.FromHistory(h) {
			if first != "" && (r.Date < first || r.Date > last) {
				continue
			}
			r.Sector = panel.Str(panel.SectorETF)
			added = append(added, r)
			n++
		}
		if n == 0 {
			rep.GapAfter++
			continue
		}
		rep.count(NamespaceETFPrices)
	}
	panel.Sort(added)
	panel.ComputeReturns(added)
	rep.Filled += len(added)

	out = append(out, added...)
	panel.Sort(out)
	rep.RowsOut = len(out)
	return out, rep, nil
}
