package thin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seenimoa/panelstudy/internal/panel"
)

func panelRow(ticker, date string, close float64) panel.Row {
	return panel.Row{Date: date, Ticker: ticker, Close: close, SplitCumFactor: 1}
}

func TestProjectWindowAndTIdx(t *testing.T) {
	rows := []panel.Row{
		panelRow("aaa", "2020-06-01", 1), // outside a 3y window ending 2024-01-05
		panelRow("AAA", "2021-01-05", 2), // exactly 3 years back: excluded
		panelRow("AAA", "2021-01-06", 3),
		panelRow("AAA", "2024-01-04", 4),
		panelRow("bbb", "2024-01-05", 5),
		panelRow("BBB", "2024-01-03", 6),
		panelRow("BBB", "2024-01-03", 7), // duplicate after upper-casing
	}
	out, err := Project(rows, Window{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("rows: got %d, want 4: %+v", len(out), out)
	}
	if err := CheckTIdx(out); err != nil {
		t.Errorf("CheckTIdx: %v", err)
	}

	want := []struct {
		ticker, date string
		tidx         int32
		year         int32
	}{
		{"AAA", "2021-01-06", 0, 2021},
		{"AAA", "2024-01-04", 1, 2024},
		{"BBB", "2024-01-03", 0, 2024},
		{"BBB", "2024-01-05", 1, 2024},
	}
	for i, w := range want {
		r := out[i]
		if r.Ticker != w.ticker || r.Date != w.date || r.TIdx != w.tidx || r.Year != w.year {
			t.Errorf("row %d: got %s %s tidx=%d year=%d, want %+v", i, r.Ticker, r.Date, r.TIdx, r.Year, w)
		}
	}
	if out[2].Close != 7 {
		t.Errorf("duplicate key should keep the last row, got close %v", out[2].Close)
	}
}

func TestProjectFirstRowKeepsPanelReturn(t *testing.T) {
	before := panelRow("AAA", "2021-01-05", 2)
	first := panelRow("AAA", "2021-01-06", 3)
	first.LogRet = panel.F64(0.4)
	last := panelRow("AAA", "2024-01-04", 4)
	last.LogRet = panel.F64(0.1)

	out, err := Project([]panel.Row{before, first, last}, Window{End: "2024-01-05"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(out) != 2 || out[0].TIdx != 0 {
		t.Fatalf("rows: %+v", out)
	}
	if out[0].LogRet == nil || *out[0].LogRet != 0.4 {
		t.Errorf("tidx 0 logret: got %v, want the panel's 0.4", out[0].LogRet)
	}
}

func TestProjectColumns(t *testing.T) {
	a := panelRow("AAA", "2024-01-02", 10)
	a.Sector = panel.Str("  ")
	a.FilingForm = panel.Str("10-K")
	a.LastFilingDate = panel.Str("2024-01-02")
	a.MarketCap = panel.F64(1e9)
	b := panelRow("AAA", "2024-01-03", 11)
	b.Sector = panel.Str(" Technology ")
	b.FilingForm = panel.Str("10-K") // carried forward, not a filing day
	b.LastFilingDate = panel.Str("2024-01-02")
	b.LogRet = panel.F64(0.1)
	b.IsReverseSplitDay = true

	out, err := Project([]panel.Row{a, b}, Window{Years: 1, End: "2024-06-30"})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Sector != nil {
		t.Errorf("blank sector should be null, got %q", *out[0].Sector)
	}
	if panel.Deref(out[1].Sector) != "Technology" {
		t.Errorf("sector should be trimmed, got %q", panel.Deref(out[1].Sector))
	}
	if panel.Deref(out[0].FilingForm) != "10-K" || out[1].FilingForm != nil {
		t.Errorf("filing_form: %v / %v", out[0].FilingForm, out[1].FilingForm)
	}
	if out[0].MarketCap == nil || *out[0].MarketCap != 1e9 {
		t.Error("market cap lost")
	}
	if !out[1].IsReverseSplitDay || out[1].IsSplitDay {
		t.Error("split flags")
	}
	if out[0].LogRet != nil || *out[1].LogRet != 0.1 {
		t.Error("logret should pass through")
	}
}

func TestWindowBounds(t *testing.T) {
	tests := []struct {
		name     string
		w        Window
		last     string
		from, to string
		wantErr  bool
	}{
		{"default three years", Window{}, "2024-09-30", "2021-10-01", "2024-09-30", false},
		{"explicit end", Window{Years: 1, End: "2023-12-31"}, "2024-09-30", "2023-01-01", "2023-12-31", false},
		{"bad end", Window{End: "yesterday"}, "2024-09-30", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := tt.w.Bounds(tt.last)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if from != tt.from || to != tt.to {
				t.Errorf("got [%s, %s], want [%s, %s]", from, to, tt.from, tt.to)
			}
		})
	}
}

func TestCheckTIdxRejectsGaps(t *testing.T) {
	rows := []Row{
		{Ticker: "AAA", Date: "2024-01-02", TIdx: 0},
		{Ticker: "AAA", Date: "2024-01-03", TIdx: 2},
	}
	if err := CheckTIdx(rows); err == nil {
		t.Error("expected error for a tidx gap")
	}
	rows[1].TIdx = 1
	rows[1].Date = "2024-01-02"
	if err := CheckTIdx(rows); err == nil {
		t.Error("expected error for a repeated date")
	}
}

func TestBuildAndUniverse(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "panel.parquet")
	out := filepath.Join(dir, "thin.parquet")
	rows := []panel.Row{
		panelRow("MSFT", "2024-01-02", 370),
		panelRow("AAPL", "2024-01-02", 185),
		panelRow("AAPL", "2024-01-03", 184),
	}
	if err := panel.Write(in, rows); err != nil {
		t.Fatal(err)
	}
	n, err := Build(in, out, Window{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n != 3 {
		t.Errorf("rows written: %d", n)
	}
	got, err := Read(out)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Ticker != "AAPL" || got[1].TIdx != 1 || got[2].Ticker != "MSFT" {
		t.Errorf("artifact order: %+v", got)
	}

	csvPath := filepath.Join(dir, "tickers.csv")
	count, err := WriteUniverse(csvPath, got)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("universe size: %d", count)
	}
	data, _ := os.ReadFile(csvPath)
	if lines := strings.Fields(string(data)); len(lines) != 3 || lines[0] != "ticker" || lines[1] != "AAPL" {
		t.Errorf("csv: %q", data)
	}
}
