package pipeline

import (
	"sort"

	"github.com/seenimoa/panelstudy/internal/panel"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// Stage output file names.
const (
	universeFile  = "universe.csv"
	pricesFile    = "prices.parquet"
	profilesFile  = "profiles.parquet"
	sharesFile    = "shares.parquet"
	actionsFile   = "actions.parquet"
	filingsFile   = "filings.parquet"
	companiesFile = "companies.parquet"
)

// ProfileRecord is one row of the fundamentals stage output.
type ProfileRecord struct {
	Ticker            string  `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name              string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	QuoteType         string  `parquet:"name=quote_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sector            string  `parquet:"name=sector, type=BYTE_ARRAY, convertedtype=UTF8"`
	Industry          string  `parquet:"name=industry, type=BYTE_ARRAY, convertedtype=UTF8"`
	MarketCap         float64 `parquet:"name=market_cap, type=DOUBLE"`
	SharesOutstanding float64 `parquet:"name=shares_outstanding, type=DOUBLE"`
	FloatShares       float64 `parquet:"name=float_shares, type=DOUBLE"`
}

// Profile converts the record back to the model type.
func (r ProfileRecord) Profile() *models.Profile {
	return &models.Profile{
		Ticker:            r.Ticker,
		Name:              r.Name,
		QuoteType:         r.QuoteType,
		Sector:            r.Sector,
		Industry:          r.Industry,
		MarketCap:         r.MarketCap,
		SharesOutstanding: r.SharesOutstanding,
		FloatShares:       r.FloatShares,
	}
}

// Share series kinds.
const (
	kindOutstanding = "shares_outstanding"
	kindPublicFloat = "public_float_usd"
)

// SharesRecord is one reported value of the shares stage output.
type SharesRecord struct {
	CIK   string  `parquet:"name=cik, type=BYTE_ARRAY, convertedtype=UTF8"`
	Kind  string  `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date  string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value float64 `parquet:"name=value, type=DOUBLE"`
	Form  string  `parquet:"name=form, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Action kinds.
const (
	actionSplit    = "split"
	actionDividend = "dividend"
)

// ActionRecord is one split or dividend of the splits stage output.
type ActionRecord struct {
	Ticker      string  `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date        string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Kind        string  `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Numerator   float64 `parquet:"name=numerator, type=DOUBLE"`
	Denominator float64 `parquet:"name=denominator, type=DOUBLE"`
	Amount      float64 `parquet:"name=amount, type=DOUBLE"`
}

// FilingRecord is one filing of the filings stage output.
type FilingRecord struct {
	CIK        string `parquet:"name=cik, type=BYTE_ARRAY, convertedtype=UTF8"`
	Form       string `parquet:"name=form, type=BYTE_ARRAY, convertedtype=UTF8"`
	FilingDate string `parquet:"name=filing_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Accession  string `parquet:"name=accession, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// CompanyRecord is the company-level part of a submissions response.
type CompanyRecord struct {
	CIK     string `parquet:"name=cik, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name    string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	SIC     string `parquet:"name=sic, type=BYTE_ARRAY, convertedtype=UTF8"`
	SICDesc string `parquet:"name=sic_desc, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func sharesRecords(cik string, h *models.SharesHistory) []SharesRecord {
	out := make([]SharesRecord, 0, len(h.Outstanding)+len(h.PublicFloatUSD))
	for _, p := range h.Outstanding {
		out = append(out, SharesRecord{CIK: cik, Kind: kindOutstanding, Date: models.FormatDate(p.Date), Value: p.Value, Form: p.Form})
	}
	for _, p := range h.PublicFloatUSD {
		out = append(out, SharesRecord{CIK: cik, Kind: kindPublicFloat, Date: models.FormatDate(p.Date), Value: p.Value, Form: p.Form})
	}
	return out
}

// sharesByCIK rebuilds per-company share histories with points sorted by
// date. Records with unparseable dates are dropped.
func sharesByCIK(recs []SharesRecord) map[string]*models.SharesHistory {
	out := make(map[string]*models.SharesHistory)
	for _, r := range recs {
		d, err := models.ParseDate(r.Date)
		if err != nil {
			continue
		}
		h, ok := out[r.CIK]
		if !ok {
			h = &models.SharesHistory{CIK: r.CIK}
			out[r.CIK] = h
		}
		p := models.SharesPoint{Date: d, Value: r.Value, Form: r.Form}
		switch r.Kind {
		case kindOutstanding:
			h.Outstanding = append(h.Outstanding, p)
		case kindPublicFloat:
			h.PublicFloatUSD = append(h.PublicFloatUSD, p)
		}
	}
	for _, h := range out {
		sortPoints(h.Outstanding)
		sortPoints(h.PublicFloatUSD)
	}
	return out
}

func sortPoints(ps []models.SharesPoint) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Date.Before(ps[j].Date) })
}

func actionRecords(a *models.Actions) []ActionRecord {
	ticker := normTicker(a.Ticker)
	out := make([]ActionRecord, 0, len(a.Splits)+len(a.Dividends))
	for _, s := range a.Splits {
		out = append(out, ActionRecord{
			Ticker: ticker, Date: models.FormatDate(s.Date), Kind: actionSplit,
			Numerator: s.Numerator, Denominator: s.Denominator,
		})
	}
	for _, d := range a.Dividends {
		out = append(out, ActionRecord{
			Ticker: ticker, Date: models.FormatDate(d.Date), Kind: actionDividend, Amount: d.Amount,
		})
	}
	return out
}

// actionsByTicker regroups action records per ticker, sorted by date.
func actionsByTicker(recs []ActionRecord) map[string]*models.Actions {
	out := make(map[string]*models.Actions)
	for _, r := range recs {
		d, err := models.ParseDate(r.Date)
		if err != nil {
			continue
		}
		a, ok := out[r.Ticker]
		if !ok {
			a = &models.Actions{Ticker: r.Ticker}
			out[r.Ticker] = a
		}
		switch r.Kind {
		case actionSplit:
			a.Splits = append(a.Splits, models.Split{Date: d, Numerator: r.Numerator, Denominator: r.Denominator})
		case actionDividend:
			a.Dividends = append(a.Dividends, models.Dividend{Date: d, Amount: r.Amount})
		}
	}
	for _, a := range out {
		sort.SliceStable(a.Splits, func(i, j int) bool { return a.Splits[i].Date.Before(a.Splits[j].Date) })
		sort.SliceStable(a.Dividends, func(i, j int) bool { return a.Dividends[i].Date.Before(a.Dividends[j].Date) })
	}
	return out
}

// submissionsByCIK joins company and filing records back into
// Submissions values.
func submissionsByCIK(companies []CompanyRecord, filings []FilingRecord) map[string]*models.Submissions {
	out := make(map[string]*models.Submissions, len(companies))
	for _, c := range companies {
		out[c.CIK] = &models.Submissions{CIK: c.CIK, Name: c.Name, SIC: c.SIC, SICDescription: c.SICDesc}
	}
	for _, f := range filings {
		d, err := models.ParseDate(f.FilingDate)
		if err != nil {
			continue
		}
		s, ok := out[f.CIK]
		if !ok {
			s = &models.Submissions{CIK: f.CIK}
			out[f.CIK] = s
		}
		s.Filings = append(s.Filings, models.Filing{Form: f.Form, FilingDate: d, Accession: f.Accession})
	}
	return out
}

// readOptional loads a stage output, treating a missing file as empty.
func readOptional[T any](env *Env, file string) ([]T, error) {
	path := env.StagePath(file)
	if !panel.Exists(path) {
		env.Log.Warn().Str("file", path).Msg("stage output missing, continuing without it")
		return nil, nil
	}
	return panel.ReadFile[T](path)
}
