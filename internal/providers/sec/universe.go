package sec

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// FetchUniverse returns every ticker EDGAR maps to a CIK, with its exchange.
// Rows are sorted by ticker; a ticker listed twice keeps its first row.
func (p *Provider) FetchUniverse(ctx context.Context) ([]models.CompanyID, error) {
	url := p.wwwURL + "/files/company_tickers_exchange.json"
	body, err := p.GetCached(ctx, url, p.headers("application/json"))
	if err != nil {
		return nil, fmt.Errorf("sec ticker map: %w", err)
	}

	var resp edgarTickerExchange
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("sec ticker map: parse JSON: %w", err)
	}
	ids, err := parseTickerExchange(resp)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, provider.NoData("company_tickers_exchange", "empty ticker map")
	}
	return ids, nil
}

func parseTickerExchange(resp edgarTickerExchange) ([]models.CompanyID, error) {
	col := map[string]int{}
	for i, f := range resp.Fields {
		col[strings.ToLower(f)] = i
	}
	for _, want := range []string{"cik", "name", "ticker", "exchange"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("sec ticker map: missing field %q", want)
		}
	}

	seen := make(map[string]bool, len(resp.Data))
	out := make([]models.CompanyID, 0, len(resp.Data))
	for _, row := range resp.Data {
		id := models.CompanyID{
			CIK:      cellString(row, col["cik"]),
			Name:     cellString(row, col["name"]),
			Ticker:   strings.ToUpper(cellString(row, col["ticker"])),
			Exchange: cellString(row, col["exchange"]),
		}
		if id.Ticker == "" || id.CIK == "" || seen[id.Ticker] {
			continue
		}
		seen[id.Ticker] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

// cellString renders a JSON cell; CIKs arrive as numbers.
func cellString(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprint(v)
	}
}
