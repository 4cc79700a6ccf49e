// Package yfinance implements the Yahoo Finance data source.
// It wraps the v8 chart endpoint (daily bars, splits, dividends) and the
// v10 quoteSummary endpoint (sector, industry, share statistics).
//
// Yahoo Finance needs no API key. It throttles aggressively, so every
// request goes through the shared rate limiter and 429 responses are
// retried with backoff.
package yfinance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
)

const (
	sourceName     = "yfinance"
	defaultBaseURL = "https://query1.finance.yahoo.com"
)

// Options configures the provider. Zero values take defaults.
type Options struct {
	BaseURL    string
	RatePerSec int
	HTTP       infra.HTTPOptions
}

// Provider implements provider.Source plus the price, action and profile
// capabilities.
type Provider struct {
	provider.BaseProvider
	provider.BaseFetcher
	baseURL string
}

// New creates a Yahoo Finance provider.
func New(opts Options) *Provider {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	return &Provider{
		BaseProvider: provider.NewBaseProvider(
			sourceName,
			"Yahoo Finance - daily prices, corporate actions and company profiles",
			"https://finance.yahoo.com",
			[]provider.Capability{provider.CapPrices, provider.CapActions, provider.CapProfile},
			nil, // no credentials required
		),
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherOptions{
			HTTP:       opts.HTTP,
			CacheTTL:   15 * time.Minute,
			RatePerSec: opts.RatePerSec,
		}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Ping checks connectivity to Yahoo Finance.
func (p *Provider) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/v8/finance/chart/SPY?range=1d&interval=1d", p.baseURL)
	if _, err := p.Client().Get(ctx, url, jsonHeaders()); err != nil {
		return fmt.Errorf("yfinance ping: %w", err)
	}
	return nil
}

// --- Shared helpers ---

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

// toYFTicker converts an exchange ticker to Yahoo's form (BRK.B → BRK-B).
func toYFTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if strings.HasPrefix(t, "^") {
		return t
	}
	return strings.ReplaceAll(t, ".", "-")
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// isNotFound reports whether a Yahoo error payload means the symbol is unknown.
func isNotFound(e *yfError) bool {
	if e == nil {
		return false
	}
	code := strings.ToLower(e.Code)
	return code == "not found" || strings.Contains(strings.ToLower(e.Description), "no data found")
}
