package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/panel"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// Raw cache namespaces.
const (
	NamespacePrices      = "prices"
	NamespaceProfiles    = "profiles"
	NamespaceShares      = "companyfacts"
	NamespaceActions     = "actions"
	NamespaceSubmissions = "submissions"
)

// feedCount is how many recent filings the refresh check reads per company.
const feedCount = 10

func normTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// ════════════════════════════════════════════════════════════════════
// tickers
// ════════════════════════════════════════════════════════════════════

type tickersStage struct{}

func (tickersStage) Name() string { return StageTickers }
func (tickersStage) Output(env *Env) string { return env.StagePath(universeFile) }

func (s tickersStage) Run(ctx context.Context, env *Env) (Artifact, error) {
	out := s.Output(env)
	ids, err := s.universe(ctx, env)
	if err != nil {
		return Artifact{Path: out}, err
	}
	if env.MaxTickers > 0 && len(ids) > env.MaxTickers {
		ids = ids[:env.MaxTickers]
	}
	data, err := gocsv.MarshalBytes(&ids)
	if err != nil {
		return Artifact{Path: out}, fmt.Errorf("encode universe: %w", err)
	}
	if err := infra.WriteFileAtomic(out, data); err != nil {
		return Artifact{Path: out}, err
	}
	return Artifact{Path: out, Rows: len(ids)}, nil
}

// universe lists the SEC-mapped tickers on the configured exchanges, or
// the explicit ticker list with CIKs looked up where the SEC knows them.
func (tickersStage) universe(ctx context.Context, env *Env) ([]models.CompanyID, error) {
	var listed []models.CompanyID
	src, srcErr := env.Sources.Universe()
	if srcErr == nil {
		var err error
		listed, err = src.FetchUniverse(ctx)
		if err != nil {
			if len(env.Tickers) == 0 {
				return nil, fmt.Errorf("fetch universe: %w", err)
			}
			env.Log.Warn().Err(err).Msg("universe unavailable, tickers will have no CIK")
		}
	} else if len(env.Tickers) == 0 {
		return nil, srcErr
	}

	if len(env.Tickers) == 0 {
		ids := models.FilterExchanges(listed, env.Exchanges)
		sort.Slice(ids, func(i, j int) bool { return ids[i].Ticker < ids[j].Ticker })
		return ids, nil
	}

	byTicker := make(map[string]models.CompanyID, len(listed))
	for _, id := range listed {
		byTicker[id.Ticker] = id
	}
	seen := make(map[string]bool)
	ids := make([]models.CompanyID, 0, len(env.Tickers))
	for _, t := range env.Tickers {
		t = normTicker(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		id, ok := byTicker[t]
		if !ok {
			id = models.CompanyID{Ticker: t}
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Ticker < ids[j].Ticker })
	return ids, nil
}

// ReadUniverse loads the tickers stage output.
func ReadUniverse(env *Env) ([]models.CompanyID, error) {
	data, err := os.ReadFile(env.StagePath(universeFile))
	if err != nil {
		return nil, fmt.Errorf("read universe (run the tickers stage first): %w", err)
	}
	var ids []models.CompanyID
	if err := gocsv.UnmarshalBytes(data, &ids); err != nil {
		return nil, fmt.Errorf("decode universe: %w", err)
	}
	return ids, nil
}

func universeTickers(ids []models.CompanyID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if t := normTicker(id.Ticker); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func universeCIKs(ids []models.CompanyID) []string {
	set := make(map[string]struct{})
	for _, id := range ids {
		if id.CIK != "" {
			set[id.CIK] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ════════════════════════════════════════════════════════════════════
// prices
// ════════════════════════════════════════════════════════════════════

type pricesStage struct{}

func (pricesStage) Name() string { return StagePrices }
func (pricesStage) Output(env *Env) string { return env.StagePath(pricesFile) }
func (pricesStage) Incomplete(env *Env) bool { return hasPending(env, NamespacePrices) }

// Run fetches daily bars and writes unadjusted rows. Split factors and
// adjusted closes are applied by assemble once actions are known.
func (s pricesStage) Run(ctx context.Context, env *Env) (Artifact, error) {
	out := s.Output(env)
	ids, err := ReadUniverse(env)
	if err != nil {
		return Artifact{Path: out}, err
	}
	src, err := env.Sources.Prices()
	if err != nil {
		return Artifact{Path: out}, err
	}
	tickers := universeTickers(ids)
	stats, err := FetchAll(ctx, env, NamespacePrices, tickers,
		func(ctx context.Context, t string) (*models.PriceHistory, error) {
			return src.FetchDaily(ctx, t, env.From, env.To)
		})
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}

	hists, err := LoadCached[models.PriceHistory](env, NamespacePrices, tickers)
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	from, to := models.FormatDate(env.From), models.FormatDate(env.To)
	var rows []panel.Row
	for _, t := range tickers {
		h, ok := hists[t]
		if !ok {
			continue
		}
		for _, r := range panel.FromHistory(&models.PriceHistory{Ticker: t, Bars: h.Bars}) {
			if r.Date >= from && r.Date <= to {
				rows = append(rows, r)
			}
		}
	}
	panel.Sort(rows)
	if err := panel.Write(out, rows); err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	return Artifact{Path: out, Rows: len(rows), Fetch: stats}, nil
}

// ════════════════════════════════════════════════════════════════════
// fundamentals
// ════════════════════════════════════════════════════════════════════

type fundamentalsStage struct{}

func (fundamentalsStage) Name() string { return StageFundamentals }
func (fundamentalsStage) Output(env *Env) string { return env.StagePath(profilesFile) }
func (fundamentalsStage) Incomplete(env *Env) bool { return hasPending(env, NamespaceProfiles) }

func (s fundamentalsStage) Run(ctx context.Context, env *Env) (Artifact, error) {
	out := s.Output(env)
	ids, err := ReadUniverse(env)
	if err != nil {
		return Artifact{Path: out}, err
	}
	src, err := env.Sources.Profiles()
	if err != nil {
		return Artifact{Path: out}, err
	}
	tickers := universeTickers(ids)
	stats, err := FetchAll(ctx, env, NamespaceProfiles, tickers, src.FetchProfile)
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}

	profs, err := LoadCached[models.Profile](env, NamespaceProfiles, tickers)
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	recs := make([]ProfileRecord, 0, len(profs))
	for _, t := range tickers {
		p, ok := profs[t]
		if !ok {
			continue
		}
		recs = append(recs, ProfileRecord{
			Ticker:            t,
			Name:              p.Name,
			QuoteType:         p.QuoteType,
			Sector:            strings.TrimSpace(p.Sector),
			Industry:          strings.TrimSpace(p.Industry),
			MarketCap:         p.MarketCap,
			SharesOutstanding: p.SharesOutstanding,
			FloatShares:       p.FloatShares,
		})
	}
	if err := panel.WriteFile(out, recs); err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	return Artifact{Path: out, Rows: len(recs), Fetch: stats}, nil
}

// ════════════════════════════════════════════════════════════════════
// shares
// ════════════════════════════════════════════════════════════════════

type sharesStage struct{}

func (sharesStage) Name() string { return StageShares }
func (sharesStage) Output(env *Env) string { return env.StagePath(sharesFile) }
func (sharesStage) Incomplete(env *Env) bool { return hasPending(env, NamespaceShares) }

func (s sharesStage) Run(ctx context.Context, env *Env) (Artifact, error) {
	out := s.Output(env)
	ids, err := ReadUniverse(env)
	if err != nil {
		return Artifact{Path: out}, err
	}
	src, err := env.Sources.Shares()
	if err != nil {
		return Artifact{Path: out}, err
	}
	ciks := universeCIKs(ids)
	stats, err := FetchAll(ctx, env, NamespaceShares, ciks, src.FetchShares)
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}

	hists, err := LoadCached[models.SharesHistory](env, NamespaceShares, ciks)
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	var recs []SharesRecord
	for _, cik := range ciks {
		if h, ok := hists[cik]; ok {
			recs = append(recs, sharesRecords(cik, h)...)
		}
	}
	if err := panel.WriteFile(out, recs); err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	return Artifact{Path: out, Rows: len(recs), Fetch: stats}, nil
}

// ════════════════════════════════════════════════════════════════════
// splits
// ════════════════════════════════════════════════════════════════════

type splitsStage struct{}

func (splitsStage) Name() string { return StageSplits }
func (splitsStage) Output(env *Env) string { return env.StagePath(actionsFile) }
func (splitsStage) Incomplete(env *Env) bool { return hasPending(env, NamespaceActions) }

func (s splitsStage) Run(ctx context.Context, env *Env) (Artifact, error) {
	out := s.Output(env)
	ids, err := ReadUniverse(env)
	if err != nil {
		return Artifact{Path: out}, err
	}
	src, err := env.Sources.Actions()
	if err != nil {
		return Artifact{Path: out}, err
	}
	tickers := universeTickers(ids)
	stats, err := FetchAll(ctx, env, NamespaceActions, tickers,
		func(ctx context.Context, t string) (*models.Actions, error) {
			return src.FetchActions(ctx, t, env.From, env.To)
		})
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}

	acts, err := LoadCached[models.Actions](env, NamespaceActions, tickers)
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	var recs []ActionRecord
	for _, t := range tickers {
		if a, ok := acts[t]; ok {
			a.Ticker = t
			recs = append(recs, actionRecords(a)...)
		}
	}
	if err := panel.WriteFile(out, recs); err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	return Artifact{Path: out, Rows: len(recs), Fetch: stats}, nil
}

// ════════════════════════════════════════════════════════════════════
// filings
// ════════════════════════════════════════════════════════════════════

// latestFilings is implemented by filing sources with a cheap feed of
// recent filings.
type latestFilings interface {
	FetchLatestFilings(ctx context.Context, cik string, count int) ([]models.Filing, error)
}

type filingsStage struct{}

func (filingsStage) Name() string { return StageFilings }
func (filingsStage) Output(env *Env) string { return env.StagePath(filingsFile) }
func (filingsStage) Incomplete(env *Env) bool { return hasPending(env, NamespaceSubmissions) || env.RefreshFilings }

// CompaniesPath is the companion output holding SIC codes and names.
func CompaniesPath(env *Env) string { return env.StagePath(companiesFile) }

func (s filingsStage) Run(ctx context.Context, env *Env) (Artifact, error) {
	out := s.Output(env)
	ids, err := ReadUniverse(env)
	if err != nil {
		return Artifact{Path: out}, err
	}
	src, err := env.Sources.Filings()
	if err != nil {
		return Artifact{Path: out}, err
	}
	ciks := universeCIKs(ids)

	if env.RefreshFilings {
		if feed, ok := src.(latestFilings); ok {
			n, err := refreshFilings(ctx, env, feed, ciks)
			if err != nil {
				return Artifact{Path: out}, err
			}
			env.Log.Info().Int("invalidated", n).Msg("filing feed checked")
		} else {
			env.Log.Warn().Msg("filing source has no feed, refresh skipped")
		}
	}

	stats, err := FetchAll(ctx, env, NamespaceSubmissions, ciks, src.FetchSubmissions)
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}

	subs, err := LoadCached[models.Submissions](env, NamespaceSubmissions, ciks)
	if err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	var filings []FilingRecord
	companies := make([]CompanyRecord, 0, len(subs))
	for _, cik := range ciks {
		sub, ok := subs[cik]
		if !ok {
			continue
		}
		companies = append(companies, CompanyRecord{
			CIK: cik, Name: sub.Name, SIC: sub.SIC, SICDesc: sub.SICDescription,
		})
		for _, f := range sub.Filings {
			filings = append(filings, FilingRecord{
				CIK: cik, Form: f.Form, FilingDate: models.FormatDate(f.FilingDate), Accession: f.Accession,
			})
		}
	}
	if err := panel.WriteFile(CompaniesPath(env), companies); err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	if err := panel.WriteFile(out, filings); err != nil {
		return Artifact{Path: out, Fetch: stats}, err
	}
	return Artifact{Path: out, Rows: len(filings), Fetch: stats}, nil
}

// refreshFilings reads the recent-filings feed of every resolved company
// and invalidates those with a filing newer than the cached submissions.
// A new filing is new input, so absent companies are invalidated too.
// Feed errors are logged and leave the company as it is.
func refreshFilings(ctx context.Context, env *Env, feed latestFilings, ciks []string) (int, error) {
	ledger, err := env.Ledger(NamespaceSubmissions)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, cik := range ciks {
		st := ledger.Status(cik)
		if st != infra.StatusDone && st != infra.StatusAbsent {
			continue
		}
		latest := ""
		if st == infra.StatusDone {
			var sub models.Submissions
			if ok, err := env.Cache.Load(NamespaceSubmissions, cik, &sub); err == nil && ok {
				if f, found := sub.Latest(); found {
					latest = models.FormatDate(f.FilingDate)
				}
			}
		}
		recent, err := feed.FetchLatestFilings(ctx, cik, feedCount)
		if err != nil {
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			env.Log.Debug().Str("cik", cik).Err(err).Msg("feed unavailable")
			continue
		}
		for _, f := range recent {
			if models.FormatDate(f.FilingDate) > latest {
				ledger.Invalidate(cik)
				n++
				break
			}
		}
	}
	return n, ledger.Save()
}
