package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// mockSource implements Source and PriceSource for testing.
type mockSource struct {
	BaseProvider
	bars int
}

func newMockSource(name string, caps ...Capability) *mockSource {
	return &mockSource{
		BaseProvider: NewBaseProvider(name, "Mock "+name, "https://example.com", caps, nil),
		bars:         1,
	}
}

func (m *mockSource) FetchDaily(ctx context.Context, ticker string, from, to time.Time) (*models.PriceHistory, error) {
	if m.bars == 0 {
		return nil, NoData(ticker, "empty chart")
	}
	return &models.PriceHistory{Ticker: ticker, Bars: make([]models.OHLCV, m.bars)}, nil
}

// --- Registry Tests ---

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(newMockSource("alpha", CapPrices)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := reg.Get("alpha")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Info().Name != "alpha" {
		t.Errorf("expected name alpha, got %s", got.Info().Name)
	}

	_, err = reg.Get("nonexistent")
	var nf *ErrSourceNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected ErrSourceNotFound, got %T", err)
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	if err := NewRegistry().Register(newMockSource("")); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestRegistryPriority(t *testing.T) {
	reg := NewRegistry()
	first := newMockSource("first", CapPrices)
	second := newMockSource("second", CapPrices, CapShares)
	reg.Register(first)
	reg.Register(second)
	reg.Register(first) // re-registering keeps priority

	srcs := reg.SourcesFor(CapPrices)
	if len(srcs) != 2 || srcs[0].Info().Name != "first" {
		t.Fatalf("SourcesFor(prices): got %d sources", len(srcs))
	}

	ps, err := reg.Prices()
	if err != nil {
		t.Fatal(err)
	}
	if ps.(*mockSource).Info().Name != "first" {
		t.Error("expected first as default price source")
	}

	cov := reg.Coverage()
	if len(cov[CapShares]) != 1 || cov[CapShares][0] != "second" {
		t.Errorf("Coverage(shares): got %v", cov[CapShares])
	}
	if names := reg.List(); len(names) != 2 || names[0].Name != "first" {
		t.Errorf("List: got %v", names)
	}
}

func TestRegistryCapabilityMissing(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newMockSource("alpha", CapPrices))

	// alpha advertises no filings and does not implement FilingSource.
	_, err := reg.Filings()
	var ce *ErrCapabilityNotSupported
	if !errors.As(err, &ce) || ce.Capability != CapFilings {
		t.Errorf("expected ErrCapabilityNotSupported, got %v", err)
	}
}

// --- Credentials ---

func TestBaseProviderInit(t *testing.T) {
	bp := NewBaseProvider("sec", "", "", nil, []Credential{{Name: "user_agent", Required: true}})
	if err := bp.Init(nil); err == nil {
		t.Fatal("expected error for missing credential")
	}
	if err := bp.Init(map[string]string{"user_agent": "me me@example.org"}); err != nil {
		t.Fatal(err)
	}
	if got := bp.Credential("user_agent"); got != "me me@example.org" {
		t.Errorf("Credential: got %q", got)
	}
}

// --- Classify ---

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeDone},
		{"no data", NoData("AAA", "empty"), OutcomeAbsent},
		{"wrapped no data", fmt.Errorf("stage: %w", NoData("AAA", "empty")), OutcomeAbsent},
		{"not found", fmt.Errorf("GET: %w", infra.ErrNotFound), OutcomeAbsent},
		{"rate limited", fmt.Errorf("GET: %w", infra.ErrRateLimited), OutcomePending},
		{"server error", &infra.ErrHTTP{StatusCode: 503}, OutcomePending},
		{"cancelled", context.Canceled, OutcomePending},
		{"missing param", &ErrMissingParam{Param: "cik"}, OutcomeAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v): got %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestValidateParams(t *testing.T) {
	if err := ValidateParams("ticker", "AAA", "cik", "0000000001"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ValidateParams("ticker", "AAA", "cik", "")
	var me *ErrMissingParam
	if !errors.As(err, &me) || me.Param != "cik" {
		t.Errorf("expected missing cik, got %v", err)
	}
}

func TestNoDataSentinel(t *testing.T) {
	src := newMockSource("alpha", CapPrices)
	src.bars = 0
	_, err := src.FetchDaily(context.Background(), "DEAD", time.Time{}, time.Time{})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
