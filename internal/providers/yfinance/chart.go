package yfinance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// FetchDaily returns daily bars with as-traded prices together with the
// splits and dividends in the range.
func (p *Provider) FetchDaily(ctx context.Context, ticker string, from, to time.Time) (*models.PriceHistory, error) {
	if err := provider.ValidateParams("ticker", ticker); err != nil {
		return nil, err
	}
	res, err := p.chart(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}
	splits, dividends := parseEvents(res)
	bars := parseCandles(res)
	if len(bars) == 0 {
		return nil, provider.NoData(ticker, "chart has no bars")
	}
	restoreAsTraded(bars, splits)

	return &models.PriceHistory{
		Ticker:    ticker,
		Bars:      bars,
		Splits:    splits,
		Dividends: dividends,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// FetchActions returns the splits and dividends in the range.
func (p *Provider) FetchActions(ctx context.Context, ticker string, from, to time.Time) (*models.Actions, error) {
	if err := provider.ValidateParams("ticker", ticker); err != nil {
		return nil, err
	}
	res, err := p.chart(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}
	splits, dividends := parseEvents(res)
	return &models.Actions{Ticker: ticker, Splits: splits, Dividends: dividends}, nil
}

func (p *Provider) chart(ctx context.Context, ticker string, from, to time.Time) (yfChartResult, error) {
	yfTicker := toYFTicker(ticker)
	if to.IsZero() {
		to = time.Now().UTC()
	}
	url := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div%%2Csplit&includeAdjustedClose=true",
		p.baseURL, yfTicker, from.Unix(), to.AddDate(0, 0, 1).Unix(),
	)

	body, err := p.GetCached(ctx, url, jsonHeaders())
	if err != nil {
		if errors.Is(err, infra.ErrNotFound) {
			return yfChartResult{}, provider.NoData(ticker, "unknown symbol")
		}
		return yfChartResult{}, fmt.Errorf("yfinance chart %s: %w", yfTicker, err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return yfChartResult{}, fmt.Errorf("yfinance chart %s: parse JSON: %w", yfTicker, err)
	}
	if e := resp.Chart.Error; e != nil {
		if isNotFound(e) {
			return yfChartResult{}, provider.NoData(ticker, e.Description)
		}
		return yfChartResult{}, fmt.Errorf("yfinance chart error: %s", e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return yfChartResult{}, provider.NoData(ticker, "empty chart result")
	}
	return resp.Chart.Result[0], nil
}

// barDate converts a Yahoo timestamp to the exchange-local calendar date.
func barDate(ts, gmtOffset int64) time.Time {
	return models.Day(time.Unix(ts+gmtOffset, 0))
}

func parseCandles(result yfChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Rows with a null close are placeholders for halted sessions.
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		c := models.OHLCV{
			Date:  barDate(ts, result.Meta.GMTOffset),
			Close: *q.Close[i],
		}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
			c.HasVolume = true
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			c.AdjClose = *adjCloses[i]
		}
		candles = append(candles, c)
	}
	return candles
}

func parseEvents(result yfChartResult) ([]models.Split, []models.Dividend) {
	if result.Events == nil {
		return nil, nil
	}
	off := result.Meta.GMTOffset

	splits := make([]models.Split, 0, len(result.Events.Splits))
	for _, s := range result.Events.Splits {
		splits = append(splits, models.Split{
			Date:        barDate(s.Date, off),
			Numerator:   s.Numerator,
			Denominator: s.Denominator,
		})
	}
	sort.Slice(splits, func(i, j int) bool { return splits[i].Date.Before(splits[j].Date) })

	divs := make([]models.Dividend, 0, len(result.Events.Dividends))
	for _, d := range result.Events.Dividends {
		divs = append(divs, models.Dividend{Date: barDate(d.Date, off), Amount: d.Amount})
	}
	sort.Slice(divs, func(i, j int) bool { return divs[i].Date.Before(divs[j].Date) })
	return splits, divs
}

// restoreAsTraded undoes Yahoo's split adjustment. Chart prices are scaled
// to the latest share basis; a bar before a split is multiplied by the
// ratios of every later split. Splits must be sorted by date.
func restoreAsTraded(bars []models.OHLCV, splits []models.Split) {
	if len(splits) == 0 {
		return
	}
	for i := range bars {
		factor := 1.0
		for _, s := range splits {
			if s.Date.After(bars[i].Date) {
				factor *= s.Ratio()
			}
		}
		if factor == 1 {
			continue
		}
		b := &bars[i]
		b.Open *= factor
		b.High *= factor
		b.Low *= factor
		b.Close *= factor
		if b.HasVolume {
			b.Volume = int64(math.Round(float64(b.Volume) / factor))
		}
	}
}
