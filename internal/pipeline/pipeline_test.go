package pipeline

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/panel"
	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Fake source
// ════════════════════════════════════════════════════════════════════

func day(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeSource serves every capability from fixtures. AAA (CIK 1) has full
// data, DEAD has none, and FLAKY fails transiently until its failure
// budget is used up.
type fakeSource struct {
	provider.BaseProvider
	calls    map[string]int
	failures map[string]int
	filings  []models.Filing
	feed     []models.Filing
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		BaseProvider: provider.NewBaseProvider("fake", "fixtures", "", []provider.Capability{
			provider.CapPrices, provider.CapActions, provider.CapProfile,
			provider.CapFilings, provider.CapShares, provider.CapUniverse,
		}, nil),
		calls:    make(map[string]int),
		failures: map[string]int{"FLAKY": 1},
		filings:  []models.Filing{{Form: "10-Q", FilingDate: day("2024-01-03"), Accession: "0000000001-24-000001"}},
	}
}

func (f *fakeSource) hit(kind, key string) error {
	f.calls[kind+":"+key]++
	switch key {
	case "DEAD":
		return provider.NoData(key, "delisted")
	case "FLAKY":
		if kind == "prices" && f.failures[key] > 0 {
			f.failures[key]--
			return errors.New("502 bad gateway")
		}
	}
	return nil
}

func (f *fakeSource) FetchUniverse(ctx context.Context) ([]models.CompanyID, error) {
	return []models.CompanyID{
		{Ticker: "AAA", CIK: "1", Name: "Aaa Corp", Exchange: "NYSE"},
		{Ticker: "OTCX", CIK: "9", Name: "Otc Co", Exchange: "OTC"},
	}, nil
}

func (f *fakeSource) FetchDaily(ctx context.Context, ticker string, from, to time.Time) (*models.PriceHistory, error) {
	if err := f.hit("prices", ticker); err != nil {
		return nil, err
	}
	closes := []float64{100, 102, 51, 52}
	if ticker == "FLAKY" {
		closes = []float64{10, 11, 12, 13}
	}
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}
	h := &models.PriceHistory{Ticker: ticker}
	for i, c := range closes {
		h.Bars = append(h.Bars, models.OHLCV{
			Date: day(dates[i]), Open: c, High: c, Low: c, Close: c, Volume: 1000, HasVolume: true,
		})
	}
	return h, nil
}

func (f *fakeSource) FetchActions(ctx context.Context, ticker string, from, to time.Time) (*models.Actions, error) {
	if err := f.hit("actions", ticker); err != nil {
		return nil, err
	}
	a := &models.Actions{Ticker: ticker}
	if ticker == "AAA" {
		a.Splits = []models.Split{{Date: day("2024-01-04"), Numerator: 2, Denominator: 1}}
	}
	return a, nil
}

func (f *fakeSource) FetchProfile(ctx context.Context, ticker string) (*models.Profile, error) {
	if err := f.hit("profile", ticker); err != nil {
		return nil, err
	}
	if ticker != "AAA" {
		return nil, provider.NoData(ticker, "no profile")
	}
	return &models.Profile{Ticker: ticker, Sector: "Technology", Industry: "Software", SharesOutstanding: 1000}, nil
}

func (f *fakeSource) FetchSubmissions(ctx context.Context, cik string) (*models.Submissions, error) {
	f.calls["submissions:"+cik]++
	return &models.Submissions{CIK: cik, Name: "Aaa Corp", SIC: "7372", SICDescription: "Prepackaged Software", Filings: f.filings}, nil
}

func (f *fakeSource) FetchShares(ctx context.Context, cik string) (*models.SharesHistory, error) {
	f.calls["shares:"+cik]++
	return &models.SharesHistory{
		CIK:         cik,
		Outstanding: []models.SharesPoint{{Date: day("2024-01-03"), Value: 2000, Form: "10-Q"}},
	}, nil
}

func (f *fakeSource) FetchLatestFilings(ctx context.Context, cik string, count int) ([]models.Filing, error) {
	f.calls["feed:"+cik]++
	return f.feed, nil
}

func newTestEnv(t *testing.T, src *fakeSource) *Env {
	t.Helper()
	dir := t.TempDir()
	reg := provider.NewRegistry()
	if err := reg.Register(src); err != nil {
		t.Fatal(err)
	}
	return &Env{
		DataDir:   dir,
		PanelPath: filepath.Join(dir, "panel_v1.parquet"),
		Cache:     infra.NewJSONStore(filepath.Join(dir, "raw")),
		Sources:   reg,
		From:      day("2024-01-01"),
		To:        day("2024-01-31"),
		Tickers:   []string{"aaa", "DEAD", "FLAKY"},
		Log:       zerolog.Nop(),
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// ════════════════════════════════════════════════════════════════════
// Options
// ════════════════════════════════════════════════════════════════════

func TestParseRunOptions(t *testing.T) {
	tests := []struct {
		name    string
		enabled []string
		rebuild []string
		wantErr bool
		check   func(t *testing.T, o RunOptions)
	}{
		{
			name: "defaults enable everything",
			check: func(t *testing.T, o RunOptions) {
				if len(o.Stages) != len(AllStages()) {
					t.Errorf("stages: got %d", len(o.Stages))
				}
			},
		},
		{
			name:    "subset with rebuild",
			enabled: []string{"prices", " Assemble "},
			rebuild: []string{"assemble"},
			check: func(t *testing.T, o RunOptions) {
				if o.Stages[StageTickers].Enabled {
					t.Error("tickers should be disabled")
				}
				if !o.Stages[StageAssemble].Rebuild || o.Stages[StagePrices].Rebuild {
					t.Errorf("rebuild flags: %+v", o.Stages)
				}
			},
		},
		{
			name:    "rebuild all",
			enabled: []string{"prices", "splits"},
			rebuild: []string{"all"},
			check: func(t *testing.T, o RunOptions) {
				if !o.Stages[StagePrices].Rebuild || !o.Stages[StageSplits].Rebuild {
					t.Errorf("rebuild flags: %+v", o.Stages)
				}
			},
		},
		{name: "unknown stage", enabled: []string{"weather"}, wantErr: true},
		{name: "unknown rebuild", rebuild: []string{"weather"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := ParseRunOptions(tt.enabled, tt.rebuild)
			if tt.wantErr {
				if !errors.Is(err, ErrStageUnknown) {
					t.Errorf("expected ErrStageUnknown, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, o)
		})
	}
}

func TestRunRejectsUnknownStage(t *testing.T) {
	env := newTestEnv(t, newFakeSource())
	_, err := NewRunner(env).Run(context.Background(), RunOptions{
		Stages: map[string]StageOptions{"weather": {Enabled: true}},
	}, "")
	if !errors.Is(err, ErrStageUnknown) {
		t.Errorf("expected ErrStageUnknown, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// End to end
// ════════════════════════════════════════════════════════════════════

func TestRunBuildsPanel(t *testing.T) {
	src := newFakeSource()
	env := newTestEnv(t, src)
	manifestPath := filepath.Join(env.DataDir, "manifest.yaml")

	m, err := NewRunner(env).Run(context.Background(), DefaultRunOptions(), manifestPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.RunID == "" {
		t.Error("run id should be generated")
	}
	for _, s := range m.Stages {
		if s.Status != StatusRan {
			t.Errorf("stage %s: status %s (%s)", s.Name, s.Status, s.Error)
		}
	}
	prices, _ := m.Result(StagePrices)
	if f := prices.Fetch; f == nil || f.Fetched != 1 || f.Absent != 1 || f.Pending != 1 {
		t.Errorf("prices fetch stats: %+v", prices.Fetch)
	}

	saved, err := LoadManifest(manifestPath)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if saved.RunID != m.RunID || len(saved.Stages) != len(AllStages()) {
		t.Errorf("saved manifest: %+v", saved)
	}

	rows, err := panel.Read(env.PanelPath)
	if err != nil {
		t.Fatalf("read panel: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows: got %d, want 4 (AAA only)", len(rows))
	}

	wantCum := []float64{1, 1, 2, 2}
	wantAdj := []float64{50, 51, 51, 52}
	for i, r := range rows {
		if r.Ticker != "AAA" {
			t.Fatalf("row %d ticker %q", i, r.Ticker)
		}
		if !approx(r.SplitCumFactor, wantCum[i]) {
			t.Errorf("row %d split_cum_factor: got %f, want %f", i, r.SplitCumFactor, wantCum[i])
		}
		if r.AdjClose == nil || !approx(*r.AdjClose, wantAdj[i]) {
			t.Errorf("row %d adj_close: got %v, want %f", i, r.AdjClose, wantAdj[i])
		}
		if panel.Deref(r.Sector) != "Technology" || panel.Deref(r.CIK) != "1" || panel.Deref(r.SIC) != "7372" {
			t.Errorf("row %d identity: sector=%v cik=%v sic=%v", i, r.Sector, r.CIK, r.SIC)
		}
	}
	if rows[0].LogRet != nil {
		t.Error("first row logret should be null")
	}
	if rows[2].LogRet == nil || !approx(*rows[2].LogRet, 0) {
		t.Errorf("split day logret: got %v, want 0", rows[2].LogRet)
	}
	if panel.Deref(rows[1].FilingForm) != "10-Q" || !rows[1].IsFilingDay {
		t.Errorf("filing day: %+v", rows[1])
	}
	if rows[0].SharesOutstanding != nil || rows[0].MarketCap != nil {
		t.Error("shares before the first SEC point should be null")
	}
	if rows[1].MarketCap == nil || !approx(*rows[1].MarketCap, 102*2000) {
		t.Errorf("market cap: got %v", rows[1].MarketCap)
	}
	if !rows[2].IsSplitDay {
		t.Error("2024-01-04 should be a split day")
	}
}

func TestRunResumesPendingAndSkipsAbsent(t *testing.T) {
	src := newFakeSource()
	env := newTestEnv(t, src)
	r := NewRunner(env)

	if _, err := r.Run(context.Background(), DefaultRunOptions(), ""); err != nil {
		t.Fatalf("first run: %v", err)
	}

	opts := DefaultRunOptions()
	opts.Stages[StageAssemble] = StageOptions{Enabled: true, Rebuild: true}
	m, err := r.Run(context.Background(), opts, "")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	status := map[string]string{}
	for _, s := range m.Stages {
		status[s.Name] = s.Status
	}
	if status[StageTickers] != StatusSkipped {
		t.Errorf("tickers: got %s, want skipped", status[StageTickers])
	}
	if status[StagePrices] != StatusRan {
		t.Errorf("prices with a pending key should resume, got %s", status[StagePrices])
	}
	if status[StageFundamentals] != StatusSkipped {
		t.Errorf("fundamentals: got %s, want skipped", status[StageFundamentals])
	}

	if got := src.calls["prices:AAA"]; got != 1 {
		t.Errorf("AAA fetched %d times, want 1 (cached)", got)
	}
	if got := src.calls["prices:DEAD"]; got != 1 {
		t.Errorf("DEAD fetched %d times, want 1 (absent)", got)
	}
	if got := src.calls["prices:FLAKY"]; got != 2 {
		t.Errorf("FLAKY fetched %d times, want 2", got)
	}

	rows, err := panel.Read(env.PanelPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := panel.Tickers(rows); len(got) != 2 || got[1] != "FLAKY" {
		t.Errorf("tickers after resume: %v", got)
	}
}

func TestRunStopsOnFailedStage(t *testing.T) {
	env := newTestEnv(t, newFakeSource())
	opts, err := ParseRunOptions([]string{"prices"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	// No universe has been written yet.
	m, err := NewRunner(env).Run(context.Background(), opts, "")
	if err == nil {
		t.Fatal("expected error")
	}
	res, _ := m.Result(StagePrices)
	if res.Status != StatusFailed || res.Error == "" {
		t.Errorf("prices result: %+v", res)
	}
	if next, _ := m.Result(StageFundamentals); next.Status != "" {
		t.Errorf("stages after a failure should not run, got %+v", next)
	}
}

func TestFetchAllCancelled(t *testing.T) {
	env := newTestEnv(t, newFakeSource())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := FetchAll(ctx, env, "things", []string{"A", "B"},
		func(ctx context.Context, key string) (*models.Profile, error) {
			t.Fatal("fetch should not be called")
			return nil, nil
		})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if stats.Fetched != 0 {
		t.Errorf("stats: %+v", stats)
	}
}

// ════════════════════════════════════════════════════════════════════
// Filing refresh
// ════════════════════════════════════════════════════════════════════

func TestRefreshFilings(t *testing.T) {
	tests := []struct {
		name      string
		feed      []models.Filing
		wantCalls int
	}{
		{"newer filing invalidates", []models.Filing{{Form: "8-K", FilingDate: day("2024-01-20")}}, 2},
		{"nothing new keeps cache", []models.Filing{{Form: "10-Q", FilingDate: day("2024-01-03")}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			env := newTestEnv(t, src)
			r := NewRunner(env)
			if _, err := r.Run(context.Background(), DefaultRunOptions(), ""); err != nil {
				t.Fatal(err)
			}

			src.feed = tt.feed
			env.RefreshFilings = true
			opts, _ := ParseRunOptions([]string{StageFilings}, nil)
			if _, err := r.Run(context.Background(), opts, ""); err != nil {
				t.Fatal(err)
			}
			if got := src.calls["feed:1"]; got != 1 {
				t.Errorf("feed calls: got %d", got)
			}
			if got := src.calls["submissions:1"]; got != tt.wantCalls {
				t.Errorf("submissions calls: got %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Assemble
// ════════════════════════════════════════════════════════════════════

func TestAssembleBooksHolidayFiling(t *testing.T) {
	rows := []panel.Row{
		{Date: "2024-03-28", Ticker: "CCC", Close: 10, SplitCumFactor: 1},
		{Date: "2024-04-01", Ticker: "CCC", Close: 11, SplitCumFactor: 1},
	}
	in := Inputs{
		Submissions: map[string]*models.Submissions{"88": {
			CIK:     "88",
			Filings: []models.Filing{{Form: "8-K", FilingDate: day("2024-03-29"), Accession: "x1"}},
		}},
	}
	out, booking, err := Assemble(context.Background(), rows, []models.CompanyID{{Ticker: "CCC", CIK: "88"}}, in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if booking.Shifted != 1 || booking.OutOfRange != 0 {
		t.Errorf("booking: got %+v", booking)
	}
	if out[0].FilingForm != nil {
		t.Errorf("2024-03-28 filing form: got %q", panel.Deref(out[0].FilingForm))
	}
	if panel.Deref(out[1].FilingForm) != "8-K" {
		t.Errorf("Good Friday 8-K should land on 2024-04-01, got %q", panel.Deref(out[1].FilingForm))
	}
}

func TestAssembleProfileFallbackForShares(t *testing.T) {
	rows := []panel.Row{
		{Date: "2024-01-02", Ticker: "bbb", Close: 10, SplitCumFactor: 1},
		{Date: "2024-01-03", Ticker: "BBB", Close: 11, SplitCumFactor: 1},
		{Date: "2024-01-03", Ticker: "BBB", Close: 11, SplitCumFactor: 1},
	}
	in := Inputs{
		Profiles: map[string]*models.Profile{"BBB": {SharesOutstanding: 500, FloatShares: 400, Sector: " Energy "}},
	}
	out, _, err := Assemble(context.Background(), rows, []models.CompanyID{{Ticker: "BBB", CIK: "77"}}, in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("rows: got %d, want 2 after dedupe", len(out))
	}
	for _, r := range out {
		if r.SharesOutstanding == nil || *r.SharesOutstanding != 500 {
			t.Errorf("%s shares: got %v", r.Date, r.SharesOutstanding)
		}
		if r.FreeFloat == nil || !approx(*r.FreeFloat, 0.8) {
			t.Errorf("%s free float: got %v", r.Date, r.FreeFloat)
		}
		if panel.Deref(r.CIK) != "77" || panel.Deref(r.Sector) != "Energy" {
			t.Errorf("%s identity: cik=%v sector=%v", r.Date, r.CIK, r.Sector)
		}
	}
	if out[1].MarketCap == nil || !approx(*out[1].MarketCap, 5500) {
		t.Errorf("market cap: got %v", out[1].MarketCap)
	}
}
