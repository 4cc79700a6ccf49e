package yfinance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/pkg/models"
)

const profileModules = "assetProfile,price,defaultKeyStatistics"

// FetchProfile returns the sector, industry and share statistics of ticker.
func (p *Provider) FetchProfile(ctx context.Context, ticker string) (*models.Profile, error) {
	if err := provider.ValidateParams("ticker", ticker); err != nil {
		return nil, err
	}
	yfTicker := toYFTicker(ticker)
	url := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s", p.baseURL, yfTicker, profileModules)

	body, err := p.GetCached(ctx, url, jsonHeaders())
	if err != nil {
		if errors.Is(err, infra.ErrNotFound) {
			return nil, provider.NoData(ticker, "unknown symbol")
		}
		return nil, fmt.Errorf("yfinance profile %s: %w", yfTicker, err)
	}
	var resp yfQuoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("yfinance profile %s: parse JSON: %w", yfTicker, err)
	}
	if e := resp.QuoteSummary.Error; e != nil {
		if isNotFound(e) {
			return nil, provider.NoData(ticker, e.Description)
		}
		return nil, fmt.Errorf("yfinance profile error: %s", e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, provider.NoData(ticker, "empty quoteSummary")
	}

	r := resp.QuoteSummary.Result[0]
	prof := &models.Profile{Ticker: ticker, FetchedAt: time.Now().UTC()}
	if a := r.AssetProfile; a != nil {
		prof.Sector = strings.TrimSpace(a.Sector)
		prof.Industry = strings.TrimSpace(a.Industry)
	}
	if pr := r.Price; pr != nil {
		prof.Name = coalesce(pr.LongName, pr.ShortName)
		prof.QuoteType = strings.ToUpper(pr.QuoteType)
		prof.MarketCap = pr.MarketCap.Raw
	}
	if ks := r.DefaultKeyStatistics; ks != nil {
		prof.SharesOutstanding = ks.SharesOutstanding.Raw
		prof.FloatShares = ks.FloatShares.Raw
	}
	return prof, nil
}
