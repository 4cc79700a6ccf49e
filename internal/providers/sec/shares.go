package sec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/pkg/models"
)

const (
	conceptSharesOutstanding = "EntityCommonStockSharesOutstanding"
	conceptPublicFloat       = "EntityPublicFloat"
)

// FetchShares returns the cover-page shares outstanding and public float
// reported in XBRL filings. Points are dated by filing date so an as-of
// join never sees a value before it was public.
func (p *Provider) FetchShares(ctx context.Context, cik string) (*models.SharesHistory, error) {
	if err := provider.ValidateParams("cik", cik); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", p.dataURL, padCIK(cik))

	body, err := p.GetCached(ctx, url, p.headers("application/json"))
	if err != nil {
		if errors.Is(err, infra.ErrNotFound) {
			return nil, provider.NoData(cik, "no company facts")
		}
		return nil, fmt.Errorf("sec companyfacts %s: %w", cik, err)
	}
	var resp edgarCompanyFactsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("sec companyfacts %s: parse JSON: %w", cik, err)
	}

	dei := resp.Facts["dei"]
	hist := &models.SharesHistory{
		CIK:            NormalizeCIK(cik),
		Outstanding:    factSeries(dei[conceptSharesOutstanding], "shares"),
		PublicFloatUSD: factSeries(dei[conceptPublicFloat], "USD"),
	}
	if len(hist.Outstanding) == 0 && len(hist.PublicFloatUSD) == 0 {
		return nil, provider.NoData(cik, "no dei share facts")
	}
	return hist, nil
}

// factSeries flattens one concept/unit into points sorted by filing date.
// When several facts share a filing date the last reported one wins.
func factSeries(f edgarFact, unit string) []models.SharesPoint {
	units := f.Units[unit]
	byDate := make(map[string]models.SharesPoint, len(units))
	for _, u := range units {
		filed := u.Filed
		if filed == "" {
			filed = u.End
		}
		d, err := models.ParseDate(filed)
		if err != nil || u.Val <= 0 {
			continue
		}
		byDate[filed] = models.SharesPoint{Date: d, Value: u.Val, Form: u.Form}
	}
	out := make([]models.SharesPoint, 0, len(byDate))
	for _, pt := range byDate {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
