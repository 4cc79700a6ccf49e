package backfill

import (
	"context"
	"strconv"
	"strings"

	"github.com/seenimoa/panelstudy/internal/panel"
	"github.com/seenimoa/panelstudy/internal/pipeline"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// Resolution sources recorded in the report.
const (
	fromTicker  = "ticker_rows"
	fromProfile = "profile"
	fromSIC     = "sic"
)

// sectorGap reports whether a row's sector still needs resolving.
// Unclassified rows stay in scope so new source data can upgrade them.
func sectorGap(r *panel.Row) bool {
	s := strings.TrimSpace(panel.Deref(r.Sector))
	return s == "" || s == panel.SectorUnclassified
}

// Sector fills missing sectors. For each ticker with a gap it tries, in
// order: a sector already present on the ticker's other rows, the cached
// (or, with Fetch, freshly fetched) profile, the SIC code mapped to a
// sector, and finally the Unclassified sentinel.
func Sector(ctx context.Context, rows []panel.Row, d Deps) ([]panel.Row, Report, error) {
	rep := newReport(KindSector, rows)
	out := clone(rows)
	groups := panel.GroupByTicker(out)

	var gapTickers []string
	for _, t := range panel.Tickers(out) {
		for i := range groups[t] {
			if sectorGap(&groups[t][i]) {
				rep.GapBefore++
			}
		}
		for i := range groups[t] {
			if sectorGap(&groups[t][i]) {
				gapTickers = append(gapTickers, t)
				break
			}
		}
	}

	profiles, err := d.profiles(ctx, gapTickers)
	if err != nil {
		return nil, rep, err
	}

	for _, t := range gapTickers {
		if err := ctx.Err(); err != nil {
			return nil, rep, err
		}
		g := groups[t]
		sector, source := resolveSector(g, profiles[t])
		rep.Tickers++
		for i := range g {
			if !sectorGap(&g[i]) {
				continue
			}
			g[i].Sector = panel.Str(sector)
			if sector == panel.SectorUnclassified {
				rep.Sentinel++
				rep.GapAfter++
				continue
			}
			rep.Filled++
			rep.count(source)
		}
	}
	rep.RowsOut = len(out)
	return out, rep, nil
}

func resolveSector(g []panel.Row, prof *models.Profile) (sector, source string) {
	// The latest real sector on the ticker's own rows wins.
	for i := len(g) - 1; i >= 0; i-- {
		if !sectorGap(&g[i]) {
			return strings.TrimSpace(*g[i].Sector), fromTicker
		}
	}
	if prof != nil {
		if s := strings.TrimSpace(prof.Sector); s != "" {
			return s, fromProfile
		}
		if strings.EqualFold(prof.QuoteType, "ETF") {
			return panel.SectorETF, fromProfile
		}
	}
	for i := len(g) - 1; i >= 0; i-- {
		if s := SICSector(panel.Deref(g[i].SIC)); s != "" {
			return s, fromSIC
		}
	}
	return panel.SectorUnclassified, ""
}

// profiles returns cached profiles for tickers. With Fetch set, tickers
// not yet resolved are fetched first.
func (d Deps) profiles(ctx context.Context, tickers []string) (map[string]*models.Profile, error) {
	if d.Env == nil || d.Env.Cache == nil || len(tickers) == 0 {
		return nil, nil
	}
	if d.Fetch && d.Env.Sources != nil {
		if src, err := d.Env.Sources.Profiles(); err == nil {
			if _, err := pipeline.FetchAll(ctx, d.Env, pipeline.NamespaceProfiles, tickers, src.FetchProfile); err != nil {
				return nil, err
			}
		}
	}
	return pipeline.LoadCached[models.Profile](d.Env, pipeline.NamespaceProfiles, tickers)
}

// sicRange maps an inclusive SIC code range to a sector name.
type sicRange struct {
	lo, hi int
	sector string
}

// sicSectors is ordered narrow ranges first; the first match wins.
var sicSectors = []sicRange{
	{1300, 1399, "Energy"},
	{2830, 2836, "Healthcare"},
	{2900, 2999, "Energy"},
	{3570, 3579, "Technology"},
	{3600, 3699, "Technology"},
	{3700, 3719, "Consumer Cyclical"},
	{3800, 3829, "Technology"},
	{3840, 3851, "Healthcare"},
	{4800, 4899, "Communication Services"},
	{4900, 4999, "Utilities"},
	{6500, 6553, "Real Estate"},
	{6798, 6798, "Real Estate"},
	{7370, 7379, "Technology"},
	{7800, 7999, "Communication Services"},
	{2700, 2799, "Communication Services"},
	{8000, 8099, "Healthcare"},
	{100, 999, "Consumer Defensive"},
	{1000, 1499, "Basic Materials"},
	{1500, 1799, "Industrials"},
	{2000, 2199, "Consumer Defensive"},
	{2200, 2399, "Consumer Cyclical"},
	{2400, 2899, "Basic Materials"},
	{3000, 3999, "Industrials"},
	{4000, 4799, "Industrials"},
	{5000, 5199, "Industrials"},
	{5200, 5999, "Consumer Cyclical"},
	{6000, 6799, "Financial Services"},
	{7000, 7299, "Consumer Cyclical"},
	{7300, 7999, "Industrials"},
	{8100, 8999, "Industrials"},
}

// SICSector maps a four-digit SIC code to a sector name, or "" when the
// code is empty or outside every known range.
func SICSector(sic string) string {
	code, err := strconv.Atoi(strings.TrimSpace(sic))
	if err != nil || code <= 0 {
		return ""
	}
	for _, r := range sicSectors {
		if code >= r.lo && code <= r.hi {
			return r.sector
		}
	}
	return ""
}
