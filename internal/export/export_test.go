package export

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/seenimoa/panelstudy/internal/eventstudy"
	"github.com/seenimoa/panelstudy/internal/portfolio"
	"github.com/seenimoa/panelstudy/internal/sectorindex"
)

func fp(v float64) *float64 { return &v }

func samplePortfolio() *portfolio.Result {
	return &portfolio.Result{
		Points: []portfolio.Point{
			{Date: "2024-01-02", Value: 10000, Active: 2},
			{Date: "2024-01-03", Value: 10500, RDaily: 0.05, RTotal: 0.05, Active: 1},
		},
		Lines: []portfolio.Line{
			{Ticker: "AAA", Growth: []*float64{fp(1), fp(1.1)}},
			{Ticker: "BBB", Growth: []*float64{fp(1), nil}},
		},
		Holdings: []portfolio.Holding{{
			Ticker: "AAA", Weight: decimal.RequireFromString("0.5"), Price: decimal.NewFromInt(10),
			Spent: decimal.NewFromInt(5000), Shares: decimal.NewFromInt(500), FinalValue: decimal.NewFromInt(5500),
		}},
	}
}

// ════════════════════════════════════════════════════════════════════
// Formats
// ════════════════════════════════════════════════════════════════════

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{" xlsx ", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
	if !strings.Contains(FormatXLSX.ContentType(), "spreadsheetml") {
		t.Error("xlsx content type")
	}
}

func TestPick(t *testing.T) {
	tables := Portfolio(samplePortfolio())
	if got, _ := Pick(tables, ""); got.Name != "value" {
		t.Errorf("default table: %s", got.Name)
	}
	if got, _ := Pick(tables, "Holdings"); got.Name != "holdings" {
		t.Errorf("named table: %s", got.Name)
	}
	if _, err := Pick(tables, "nope"); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// CSV
// ════════════════════════════════════════════════════════════════════

func TestWriteCSV_PortfolioTables(t *testing.T) {
	tables := Portfolio(samplePortfolio())

	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, tables, ""); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "date,portfolio_value,portfolio_r_daily,portfolio_r_total,active_tickers" || len(lines) != 3 {
		t.Errorf("value table:\n%s", buf.String())
	}

	buf.Reset()
	if err := Write(&buf, FormatCSV, tables, "lines"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "2024-01-03,BBB,\n") {
		t.Errorf("missing growth must be empty:\n%s", buf.String())
	}

	buf.Reset()
	if err := Write(&buf, FormatCSV, tables, "holdings"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "AAA,0.5,10,5000,500,5500,") {
		t.Errorf("holdings:\n%s", buf.String())
	}
}

func TestWriteCSV_EmptyTableKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	st := &eventstudy.Study{}
	if err := Write(&buf, FormatCSV, Study(st), "stats"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "rel_day,mean,median,count") {
		t.Errorf("got %q", buf.String())
	}
}

func TestSectorsLongForm(t *testing.T) {
	res := &sectorindex.Result{
		Dates: []string{"d1", "d2"},
		Series: []sectorindex.Series{
			{Sector: "Energy", Index: []float64{1, 1.1}, Daily: []*float64{nil, fp(0.1)}},
			{Sector: "Tech", Index: []float64{1, 0.9}, Daily: []*float64{nil, fp(-0.1)}},
		},
	}
	tables := Sectors(res)
	rows := *tables[0].Records.(*[]SectorRow)
	if len(rows) != 4 || rows[3].Sector != "Tech" || *rows[3].Daily != -0.1 {
		t.Errorf("rows: %+v", rows)
	}
}

// ════════════════════════════════════════════════════════════════════
// XLSX
// ════════════════════════════════════════════════════════════════════

func TestWriteXLSX_OneSheetPerTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatXLSX, Portfolio(samplePortfolio()), ""); err != nil {
		t.Fatalf("Write xlsx: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"value", "lines", "holdings"}) {
		t.Errorf("sheets: %v", got)
	}
	rows, err := f.GetRows("value")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != "date" || rows[2][1] != "10500" {
		t.Errorf("value sheet: %v", rows)
	}
}

func TestSheetName(t *testing.T) {
	if got := sheetName("", 2); got != "Sheet3" {
		t.Errorf("got %q", got)
	}
	if got := sheetName("a/b:c[d]", 0); got != "a_b-c(d)" {
		t.Errorf("got %q", got)
	}
	if got := sheetName(strings.Repeat("x", 40), 0); len(got) != 31 {
		t.Errorf("len %d", len(got))
	}
}
