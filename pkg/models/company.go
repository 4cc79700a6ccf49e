package models

import (
	"strings"
	"time"
)

// CompanyID maps an exchange ticker to its SEC identity.
type CompanyID struct {
	Ticker   string `json:"ticker"   csv:"ticker"`
	CIK      string `json:"cik"      csv:"cik"`
	Name     string `json:"name"     csv:"name"`
	Exchange string `json:"exchange" csv:"exchange"`
}

// Profile is the static classification and size snapshot of a ticker.
type Profile struct {
	Ticker            string    `json:"ticker"`
	Name              string    `json:"name,omitempty"`
	QuoteType         string    `json:"quote_type,omitempty"` // EQUITY, ETF, ...
	Sector            string    `json:"sector,omitempty"`
	Industry          string    `json:"industry,omitempty"`
	MarketCap         float64   `json:"market_cap,omitempty"`
	SharesOutstanding float64   `json:"shares_outstanding,omitempty"`
	FloatShares       float64   `json:"float_shares,omitempty"`
	FetchedAt         time.Time `json:"fetched_at"`
}

// Filing is one EDGAR filing of a company.
type Filing struct {
	Form       string    `json:"form"`
	FilingDate time.Time `json:"filing_date"`
	Accession  string    `json:"accession,omitempty"`
}

// Submissions is the company-level metadata and filing history from EDGAR.
type Submissions struct {
	CIK            string    `json:"cik"`
	Name           string    `json:"name"`
	SIC            string    `json:"sic"`
	SICDescription string    `json:"sic_description"`
	Tickers        []string  `json:"tickers,omitempty"`
	Filings        []Filing  `json:"filings"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// Latest returns the most recent filing, or false when there are none.
func (s *Submissions) Latest() (Filing, bool) {
	var best Filing
	found := false
	for _, f := range s.Filings {
		if !found || f.FilingDate.After(best.FilingDate) {
			best = f
			found = true
		}
	}
	return best, found
}

// SharesPoint is a dated value reported in a filing.
type SharesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Form  string    `json:"form,omitempty"`
}

// SharesHistory holds the reported share count and public float of a company.
type SharesHistory struct {
	CIK            string        `json:"cik"`
	Outstanding    []SharesPoint `json:"outstanding"`
	PublicFloatUSD []SharesPoint `json:"public_float_usd"`
}

// FilterExchanges keeps the companies listed on one of exchanges
// (case-insensitive). An empty list keeps everything.
func FilterExchanges(ids []CompanyID, exchanges []string) []CompanyID {
	if len(exchanges) == 0 {
		return ids
	}
	allowed := make(map[string]bool, len(exchanges))
	for _, e := range exchanges {
		allowed[strings.ToLower(strings.TrimSpace(e))] = true
	}
	out := ids[:0:0]
	for _, id := range ids {
		if allowed[strings.ToLower(id.Exchange)] {
			out = append(out, id)
		}
	}
	return out
}
