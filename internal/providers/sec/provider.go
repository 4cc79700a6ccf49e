// Package sec implements the SEC EDGAR data source.
// EDGAR provides free access to the ticker/CIK map, company submissions
// (SIC code, recent filings), XBRL company facts and per-company Atom feeds.
//
// No API key required. Every request must carry a User-Agent naming the
// requester and a contact e-mail, and traffic is capped at 10 requests/second.
// Docs: https://www.sec.gov/edgar/sec-api-documentation
package sec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
)

const (
	sourceName = "sec"

	defaultDataURL = "https://data.sec.gov"
	defaultWWWURL  = "https://www.sec.gov"
)

// Options configures the provider. Zero values take defaults.
type Options struct {
	DataURL    string // submissions and company facts
	WWWURL     string // ticker map and Atom feeds
	UserAgent  string
	RatePerSec int
	HTTP       infra.HTTPOptions
}

// Provider implements provider.Source plus the filings, shares and
// universe capabilities.
type Provider struct {
	provider.BaseProvider
	provider.BaseFetcher
	dataURL   string
	wwwURL    string
	userAgent string
	parser    *gofeed.Parser
}

// New creates an SEC EDGAR provider.
func New(opts Options) *Provider {
	if opts.DataURL == "" {
		opts.DataURL = defaultDataURL
	}
	if opts.WWWURL == "" {
		opts.WWWURL = defaultWWWURL
	}
	if opts.RatePerSec <= 0 || opts.RatePerSec > 10 {
		opts.RatePerSec = 10
	}
	opts.HTTP.UserAgent = opts.UserAgent
	return &Provider{
		BaseProvider: provider.NewBaseProvider(
			sourceName,
			"SEC EDGAR - ticker map, SIC codes, filings and reported share counts",
			"https://www.sec.gov/edgar",
			[]provider.Capability{provider.CapFilings, provider.CapShares, provider.CapUniverse},
			[]provider.Credential{{
				Name:        "user_agent",
				Description: "Requester name and contact e-mail sent as User-Agent",
				Required:    true,
				EnvVar:      "SEC_USER_AGENT",
			}},
		),
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherOptions{
			HTTP:       opts.HTTP,
			CacheTTL:   30 * time.Minute,
			RatePerSec: opts.RatePerSec,
		}),
		dataURL:   strings.TrimRight(opts.DataURL, "/"),
		wwwURL:    strings.TrimRight(opts.WWWURL, "/"),
		userAgent: opts.UserAgent,
		parser:    gofeed.NewParser(),
	}
}

// Ping checks connectivity to EDGAR.
func (p *Provider) Ping(ctx context.Context) error {
	url := p.dataURL + "/submissions/CIK0000320193.json" // Apple
	if _, err := p.Client().Get(ctx, url, p.headers("application/json")); err != nil {
		return fmt.Errorf("sec ping: %w", err)
	}
	return nil
}

// --- Shared helpers ---

func (p *Provider) headers(accept string) map[string]string {
	h := map[string]string{"Accept": accept}
	if ua := p.Credential("user_agent"); ua != "" {
		h["User-Agent"] = ua
	} else if p.userAgent != "" {
		h["User-Agent"] = p.userAgent
	}
	return h
}

// padCIK pads a CIK number to 10 digits with leading zeros.
func padCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "CIK")
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

// NormalizeCIK strips leading zeros; the canonical key used in artifacts.
func NormalizeCIK(cik string) string {
	c := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if c == "" && cik != "" {
		return "0"
	}
	return c
}
