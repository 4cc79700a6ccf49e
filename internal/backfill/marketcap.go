package backfill

import (
	"context"

	"github.com/seenimoa/panelstudy/internal/panel"
)

// MarketCap fills market_cap = close × shares_outstanding on rows that
// lack it. A ticker with no share count on any row borrows the cached
// profile snapshot for its gap rows first.
func MarketCap(ctx context.Context, rows []panel.Row, d Deps) ([]panel.Row, Report, error) {
	rep := newReport(KindMarketCap, rows)
	out := clone(rows)
	groups := panel.GroupByTicker(out)

	var noShares []string
	for _, t := range panel.Tickers(out) {
		g := groups[t]
		hasShares, gap := false, false
		for i := range g {
			if g[i].MarketCap == nil {
				rep.GapBefore++
				gap = true
			}
			if g[i].SharesOutstanding != nil {
				hasShares = true
			}
		}
		if gap {
			rep.Tickers++
			if !hasShares {
				noShares = append(noShares, t)
			}
		}
	}

	profiles, err := d.profiles(ctx, noShares)
	if err != nil {
		return nil, rep, err
	}
	for _, t := range noShares {
		p := profiles[t]
		if p == nil || p.SharesOutstanding <= 0 {
			continue
		}
		g := groups[t]
		for i := range g {
			if g[i].MarketCap == nil {
				g[i].SharesOutstanding = panel.F64(p.SharesOutstanding)
			}
		}
	}

	rep.Filled = panel.ComputeMarketCap(out, false)
	for i := range out {
		if out[i].MarketCap == nil {
			rep.GapAfter++
		}
	}
	rep.RowsOut = len(out)
	return out, rep, nil
}
