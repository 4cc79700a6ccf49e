package sec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/pkg/models"
)

func TestProviderInfo(t *testing.T) {
	p := New(Options{UserAgent: "Test test@example.org"})
	info := p.Info()
	if info.Name != "sec" {
		t.Errorf("expected name sec, got %s", info.Name)
	}
	if len(info.Credentials) != 1 || !info.Credentials[0].Required {
		t.Errorf("expected one required credential, got %+v", info.Credentials)
	}
	if err := p.Init(nil); err == nil {
		t.Error("Init without user agent should fail")
	}
}

func TestProviderImplementsCapabilities(t *testing.T) {
	var _ provider.FilingSource = (*Provider)(nil)
	var _ provider.SharesSource = (*Provider)(nil)
	var _ provider.UniverseSource = (*Provider)(nil)
}

func TestPadCIK(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"320193", "0000320193"},
		{"0000320193", "0000320193"},
		{"1", "0000000001"},
		{"CIK320193", "0000320193"},
		{"12345678901", "12345678901"}, // Already longer
	}
	for _, tt := range tests {
		got := padCIK(tt.input)
		if got != tt.expected {
			t.Errorf("padCIK(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeCIK(t *testing.T) {
	if got := NormalizeCIK("0000320193"); got != "320193" {
		t.Errorf("NormalizeCIK: got %q", got)
	}
	if got := NormalizeCIK("0000"); got != "0" {
		t.Errorf("NormalizeCIK(0000): got %q", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Fake EDGAR
// ════════════════════════════════════════════════════════════════════

const tickerMapFixture = `{
  "fields": ["cik", "name", "ticker", "exchange"],
  "data": [
    [320193, "Apple Inc.", "AAPL", "Nasdaq"],
    [1067983, "BERKSHIRE HATHAWAY INC", "brk-b", "NYSE"],
    [320193, "Apple Inc.", "AAPL", "Nasdaq"],
    [99999, "Pink Co", "PINK", "OTC"]
  ]
}`

const submissionsFixture = `{
  "cik": "320193",
  "name": "Apple Inc.",
  "sic": "3571",
  "sicDescription": "Electronic Computers",
  "tickers": ["AAPL"],
  "filings": {"recent": {
    "accessionNumber": ["0000320193-24-000123", "0000320193-24-000081", "0000320193-24-000001"],
    "filingDate": ["2024-11-01", "2024-08-02", "not-a-date"],
    "form": ["10-K", "10-Q", "8-K"]
  }}
}`

const factsFixture = `{
  "cik": 320193,
  "entityName": "Apple Inc.",
  "facts": {"dei": {
    "EntityCommonStockSharesOutstanding": {"units": {"shares": [
      {"end": "2024-07-19", "val": 15204137000, "form": "10-Q", "filed": "2024-08-02"},
      {"end": "2024-10-18", "val": 15115823000, "form": "10-K", "filed": "2024-11-01"},
      {"end": "2024-10-18", "val": 0, "form": "10-K", "filed": "2024-11-02"}
    ]}},
    "EntityPublicFloat": {"units": {"USD": [
      {"end": "2024-03-29", "val": 2628553000000, "form": "10-K", "filed": "2024-11-01"}
    ]}}
  }}
}`

const atomFixture = `<?xml version="1.0" encoding="ISO-8859-1" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>APPLE INC  (0000320193)</title>
  <updated>2024-11-01T06:01:36-04:00</updated>
  <entry>
    <category label="form type" scheme="https://www.sec.gov/" term="10-Q" />
    <id>urn:tag:sec.gov,2008:accession-number=0000320193-24-000081</id>
    <title>10-Q  - Quarterly report</title>
    <updated>2024-08-02T18:05:12-04:00</updated>
  </entry>
  <entry>
    <category label="form type" scheme="https://www.sec.gov/" term="10-K" />
    <id>urn:tag:sec.gov,2008:accession-number=0000320193-24-000123</id>
    <title>10-K  - Annual report</title>
    <updated>2024-11-01T06:01:36-04:00</updated>
  </entry>
</feed>`

func newTestProvider(t *testing.T) (*Provider, *[]string) {
	t.Helper()
	var agents []string
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers_exchange.json", func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Write([]byte(tickerMapFixture))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Write([]byte(submissionsFixture))
	})
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(factsFixture))
	})
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000000002.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cik":2,"entityName":"Shell","facts":{"us-gaap":{}}}`))
	})
	mux.HandleFunc("/cgi-bin/browse-edgar", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("output") != "atom" {
			t.Errorf("output param: got %q", r.URL.Query().Get("output"))
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(atomFixture))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := New(Options{
		DataURL:   srv.URL,
		WWWURL:    srv.URL,
		UserAgent: "Test Runner test@example.org",
		HTTP:      infra.HTTPOptions{MaxRetries: 0, BaseDelay: time.Millisecond},
	})
	return p, &agents
}

func TestFetchUniverse(t *testing.T) {
	p, agents := newTestProvider(t)
	ids, err := p.FetchUniverse(context.Background())
	if err != nil {
		t.Fatalf("FetchUniverse: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 unique tickers, got %d", len(ids))
	}
	if ids[0].Ticker != "AAPL" || ids[0].CIK != "320193" {
		t.Errorf("first row: got %+v", ids[0])
	}
	if ids[1].Ticker != "BRK-B" {
		t.Errorf("ticker should be upper-cased, got %q", ids[1].Ticker)
	}
	if (*agents)[0] != "Test Runner test@example.org" {
		t.Errorf("User-Agent: got %q", (*agents)[0])
	}

	listed := models.FilterExchanges(ids, []string{"nasdaq", "NYSE"})
	if len(listed) != 2 {
		t.Errorf("FilterExchanges: got %d, want 2", len(listed))
	}
	if len(models.FilterExchanges(ids, nil)) != 3 {
		t.Error("empty exchange list should keep all")
	}
}

func TestFetchSubmissions(t *testing.T) {
	p, _ := newTestProvider(t)
	sub, err := p.FetchSubmissions(context.Background(), "320193")
	if err != nil {
		t.Fatalf("FetchSubmissions: %v", err)
	}
	if sub.SIC != "3571" || sub.SICDescription != "Electronic Computers" {
		t.Errorf("SIC: got %q / %q", sub.SIC, sub.SICDescription)
	}
	if len(sub.Filings) != 2 {
		t.Fatalf("expected 2 valid filings, got %d", len(sub.Filings))
	}
	if sub.Filings[0].Form != "10-Q" {
		t.Errorf("filings should be oldest first, got %s", sub.Filings[0].Form)
	}
	latest, ok := sub.Latest()
	if !ok || latest.Form != "10-K" || models.FormatDate(latest.FilingDate) != "2024-11-01" {
		t.Errorf("Latest: got %+v", latest)
	}
}

func TestFetchSubmissionsNotFound(t *testing.T) {
	p, _ := newTestProvider(t)
	_, err := p.FetchSubmissions(context.Background(), "7")
	if !errors.Is(err, provider.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestFetchShares(t *testing.T) {
	p, _ := newTestProvider(t)
	hist, err := p.FetchShares(context.Background(), "0000320193")
	if err != nil {
		t.Fatalf("FetchShares: %v", err)
	}
	if hist.CIK != "320193" {
		t.Errorf("CIK: got %q", hist.CIK)
	}
	if len(hist.Outstanding) != 2 {
		t.Fatalf("outstanding: got %d points, want 2 (zero value dropped)", len(hist.Outstanding))
	}
	if models.FormatDate(hist.Outstanding[0].Date) != "2024-08-02" {
		t.Errorf("points should be dated by filing, got %s", models.FormatDate(hist.Outstanding[0].Date))
	}
	if len(hist.PublicFloatUSD) != 1 || hist.PublicFloatUSD[0].Value != 2628553000000 {
		t.Errorf("public float: got %+v", hist.PublicFloatUSD)
	}
}

func TestFetchSharesNoFacts(t *testing.T) {
	p, _ := newTestProvider(t)
	_, err := p.FetchShares(context.Background(), "2")
	if !errors.Is(err, provider.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestFetchLatestFilings(t *testing.T) {
	p, _ := newTestProvider(t)
	filings, err := p.FetchLatestFilings(context.Background(), "320193", 10)
	if err != nil {
		t.Fatalf("FetchLatestFilings: %v", err)
	}
	if len(filings) != 2 {
		t.Fatalf("expected 2 filings, got %d", len(filings))
	}
	if filings[0].Form != "10-K" || filings[0].Accession != "0000320193-24-000123" {
		t.Errorf("newest filing: got %+v", filings[0])
	}
	// 18:05 New York time stays on its own calendar date.
	if got := models.FormatDate(filings[1].FilingDate); got != "2024-08-02" {
		t.Errorf("filing date: got %s, want 2024-08-02", got)
	}
}
