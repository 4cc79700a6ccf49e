package backfill

import (
	"context"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/panel"
	"github.com/seenimoa/panelstudy/internal/pipeline"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// NamespaceVolume holds price histories refetched for missing volume.
const NamespaceVolume = "volume_refetch"

const (
	fromCache   = "prices_cache"
	fromRefetch = "refetch"
)

func volumeGap(r *panel.Row) bool {
	return r.Volume == nil && panel.Deref(r.VolumeStatus) != panel.VolumeConfirmedAbsent
}

// Volume fills missing volume from price histories. A refetched history
// is preferred over the pipeline's cache. When the source has the date
// but reports no volume, or confirms the ticker has no data at all, the
// row is tagged confirmed_absent. Dates the source does not cover stay
// in the gap.
func Volume(ctx context.Context, rows []panel.Row, d Deps) ([]panel.Row, Report, error) {
	rep := newReport(KindVolume, rows)
	out := clone(rows)
	groups := panel.GroupByTicker(out)

	var gapTickers []string
	for _, t := range panel.Tickers(out) {
		g := groups[t]
		n := 0
		for i := range g {
			if volumeGap(&g[i]) {
				n++
			}
		}
		if n > 0 {
			rep.GapBefore += n
			gapTickers = append(gapTickers, t)
		}
	}
	rep.Tickers = len(gapTickers)
	if len(gapTickers) == 0 || d.Env == nil || d.Env.Cache == nil {
		rep.GapAfter = rep.GapBefore
		rep.RowsOut = len(out)
		return out, rep, nil
	}
	env := d.Env

	if d.Fetch && env.Sources != nil {
		if src, err := env.Sources.Prices(); err == nil {
			_, err := pipeline.FetchAll(ctx, env, NamespaceVolume, gapTickers,
				func(ctx context.Context, t string) (*models.PriceHistory, error) {
					from, to := dayRange(panel.DateRange(groups[t]))
					return src.FetchDaily(ctx, t, from, to)
				})
			if err != nil {
				return nil, rep, err
			}
		}
	}

	cached, err := pipeline.LoadCached[models.PriceHistory](env, pipeline.NamespacePrices, gapTickers)
	if err != nil {
		return nil, rep, err
	}
	fresh, err := pipeline.LoadCached[models.PriceHistory](env, NamespaceVolume, gapTickers)
	if err != nil {
		return nil, rep, err
	}
	refetchLedger, err := env.Ledger(NamespaceVolume)
	if err != nil {
		return nil, rep, err
	}

	for _, t := range gapTickers {
		g := groups[t]
		if refetchLedger.Status(t) == infra.StatusAbsent {
			for i := range g {
				if volumeGap(&g[i]) {
					g[i].VolumeStatus = panel.Str(panel.VolumeConfirmedAbsent)
					rep.Sentinel++
				}
			}
			continue
		}

		h, source := fresh[t], fromRefetch
		if h == nil {
			h, source = cached[t], fromCache
		}
		bars := barsByDate(h)
		for i := range g {
			r := &g[i]
			if !volumeGap(r) {
				continue
			}
			b, ok := bars[r.Date]
			switch {
			case !ok:
				rep.GapAfter++
			case b.HasVolume:
				r.Volume = panel.I64(b.Volume)
				r.VolumeStatus = panel.Str(panel.VolumeReported)
				rep.Filled++
				rep.count(source)
			default:
				r.VolumeStatus = panel.Str(panel.VolumeConfirmedAbsent)
				rep.Sentinel++
			}
		}
	}
	rep.RowsOut = len(out)
	return out, rep, nil
}

func barsByDate(h *models.PriceHistory) map[string]models.OHLCV {
	if h == nil {
		return nil
	}
	out := make(map[string]models.OHLCV, len(h.Bars))
	for _, b := range h.Bars {
		out[models.FormatDate(b.Date)] = b
	}
	return out
}

// dayRange converts panel dates to the fetch range of a source call.
func dayRange(first, last string) (time.Time, time.Time) {
	from, _ := models.ParseDate(first)
	to, _ := models.ParseDate(last)
	return from, to
}
