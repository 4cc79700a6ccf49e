package reference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/panelstudy/internal/infra"
)

const etfPage = `<html><body>
<table id="nav"><thead><tr><th>Menu</th></tr></thead><tbody><tr><td>x</td></tr></tbody></table>
<table id="etfs">
 <thead><tr><th>Symbol</th><th>Name</th><th>Asset Class</th><th>Total Assets ($MM)</th><th>YTD</th></tr></thead>
 <tbody>
  <tr><td><a href="/etf/VOO/">VOO</a></td><td>Vanguard S&amp;P 500 ETF</td><td>Equity</td><td>$1,234,567.89</td><td>10%</td></tr>
  <tr><td>ivv</td><td>iShares Core S&amp;P 500 ETF</td><td>Equity</td><td>$600,000.00</td><td>9%</td></tr>
  <tr><td></td><td>ad row</td><td></td><td></td><td></td></tr>
  <tr><td>BND</td><td>Vanguard Total Bond Market ETF</td><td>Bond</td><td>n/a</td><td>1%</td></tr>
 </tbody>
</table></body></html>`

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// ════════════════════════════════════════════════════════════════════
// ETFs
// ════════════════════════════════════════════════════════════════════

func TestParseETFTable(t *testing.T) {
	etfs, err := ParseETFTable(doc(t, etfPage), 0)
	if err != nil {
		t.Fatalf("ParseETFTable: %v", err)
	}
	want := []ETF{
		{Rank: 1, Symbol: "VOO", Name: "Vanguard S&P 500 ETF", AssetClass: "Equity", TotalAssets: 1234567.89},
		{Rank: 2, Symbol: "IVV", Name: "iShares Core S&P 500 ETF", AssetClass: "Equity", TotalAssets: 600000},
		{Rank: 3, Symbol: "BND", Name: "Vanguard Total Bond Market ETF", AssetClass: "Bond"},
	}
	if !reflect.DeepEqual(etfs, want) {
		t.Errorf("got %+v\nwant %+v", etfs, want)
	}

	limited, _ := ParseETFTable(doc(t, etfPage), 2)
	if len(limited) != 2 {
		t.Errorf("limit: got %d rows", len(limited))
	}

	if _, err := ParseETFTable(doc(t, "<table><tr><td>1</td></tr></table>"), 0); !errors.Is(err, ErrNoETFTable) {
		t.Errorf("got %v, want ErrNoETFTable", err)
	}
}

func TestScrapeTopETFsAndSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(etfPage))
	}))
	defer srv.Close()

	client := infra.NewHTTPClient(infra.HTTPOptions{})
	etfs, err := ScrapeTopETFs(context.Background(), client, srv.URL, 0)
	if err != nil {
		t.Fatalf("ScrapeTopETFs: %v", err)
	}

	path := filepath.Join(t.TempDir(), "etfs.csv")
	if err := WriteETFs(path, etfs); err != nil {
		t.Fatal(err)
	}
	if got := Symbols(path); !reflect.DeepEqual(got, []string{"VOO", "IVV", "BND"}) {
		t.Errorf("symbols: %v", got)
	}
	if got := Symbols(filepath.Join(t.TempDir(), "missing.csv")); len(got) != len(DefaultETFSymbols) {
		t.Errorf("fallback symbols: %d", len(got))
	}
}

// ════════════════════════════════════════════════════════════════════
// Forms
// ════════════════════════════════════════════════════════════════════

func TestLoadFormsFallsBackToBuiltin(t *testing.T) {
	forms, err := LoadForms(filepath.Join(t.TempDir(), "none.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(forms) != len(builtinForms) {
		t.Errorf("got %d forms", len(forms))
	}
	if f, ok := Describe(forms, " 10-q "); !ok || f.Category != "Periodic report" {
		t.Errorf("Describe 10-Q: %+v %v", f, ok)
	}
	if _, ok := Describe(forms, "XYZ"); ok {
		t.Error("unknown form should not be described")
	}
}

func TestWriteFormsSorted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forms.csv")
	in := []Form{{Form: "8-K", Description: "current"}, {Form: "10-K", Description: "annual"}}
	if err := WriteForms(path, in); err != nil {
		t.Fatal(err)
	}
	got, err := LoadForms(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Form != "10-K" || in[0].Form != "8-K" {
		t.Errorf("sorted copy: %+v (input %+v)", got, in)
	}
}
