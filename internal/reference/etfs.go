package reference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocarina/gocsv"

	"github.com/seenimoa/panelstudy/internal/infra"
)

// ETF is one row of the top-ETF table.
type ETF struct {
	Rank        int     `csv:"rank" json:"rank"`
	Symbol      string  `csv:"symbol" json:"symbol"`
	Name        string  `csv:"name" json:"name"`
	AssetClass  string  `csv:"asset_class" json:"asset_class"`
	TotalAssets float64 `csv:"total_assets_mm" json:"total_assets_mm"` // $MM
}

// DefaultETFSymbols is used by the ETF backfill when no table has been
// scraped.
var DefaultETFSymbols = []string{
	"VOO", "IVV", "SPY", "VTI", "QQQ", "VUG", "VEA", "IEFA", "VTV", "BND",
	"AGG", "IWF", "GLD", "IEMG", "VXUS", "IJH", "VGT", "VWO", "IJR", "VIG",
	"IWM", "XLK", "VO", "BNDX", "ITOT", "SCHD", "IBIT", "VB", "IWD", "EFA",
}

// ErrNoETFTable is returned when a page has no parsable ETF table.
var ErrNoETFTable = errors.New("no ETF table found")

// LoadETFs reads the ETF CSV at path.
func LoadETFs(path string) ([]ETF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var etfs []ETF
	if err := gocsv.UnmarshalBytes(data, &etfs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return etfs, nil
}

// WriteETFs stores etfs as CSV.
func WriteETFs(path string, etfs []ETF) error {
	data, err := gocsv.MarshalBytes(&etfs)
	if err != nil {
		return err
	}
	return infra.WriteFileAtomic(path, data)
}

// Symbols returns the ETF tickers in table order. A missing or unreadable
// file at path yields DefaultETFSymbols.
func Symbols(path string) []string {
	etfs, err := LoadETFs(path)
	if err != nil || len(etfs) == 0 {
		return append([]string(nil), DefaultETFSymbols...)
	}
	out := make([]string, 0, len(etfs))
	for _, e := range etfs {
		if s := strings.ToUpper(strings.TrimSpace(e.Symbol)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ScrapeTopETFs fetches the ETF ranking page at url and returns up to
// limit rows ordered by assets. limit <= 0 means no limit.
func ScrapeTopETFs(ctx context.Context, client *infra.HTTPClient, url string, limit int) ([]ETF, error) {
	body, err := client.Get(ctx, url, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML from %s: %w", url, err)
	}
	return ParseETFTable(doc, limit)
}

// ParseETFTable extracts the first table whose header carries a Symbol
// column. Columns are located by header text.
func ParseETFTable(doc *goquery.Document, limit int) ([]ETF, error) {
	var etfs []ETF
	found := false
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols := make(map[string]int)
		table.Find("thead th").Each(func(i int, th *goquery.Selection) {
			cols[headerKey(th.Text())] = i
		})
		sym, ok := cols["symbol"]
		if !ok {
			return true
		}
		found = true
		table.Find("tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			cells := tr.Find("td")
			cell := func(name string) string {
				i, ok := cols[name]
				if !ok {
					return ""
				}
				return strings.TrimSpace(cells.Eq(i).Text())
			}
			symbol := strings.ToUpper(strings.TrimSpace(cells.Eq(sym).Text()))
			if symbol == "" {
				return true
			}
			etfs = append(etfs, ETF{
				Rank:        len(etfs) + 1,
				Symbol:      symbol,
				Name:        cell("name"),
				AssetClass:  cell("asset class"),
				TotalAssets: parseMoney(cell("total assets")),
			})
			return limit <= 0 || len(etfs) < limit
		})
		return false
	})
	if !found {
		return nil, ErrNoETFTable
	}
	return etfs, nil
}

// headerKey normalizes "Total Assets ($MM)" to "total assets".
func headerKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, "("); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return strings.Join(strings.Fields(s), " ")
}

func parseMoney(s string) float64 {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
