package providers

import (
	"testing"

	"github.com/seenimoa/panelstudy/internal/config"
	"github.com/seenimoa/panelstudy/internal/provider"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestRegisterAllTo(t *testing.T) {
	reg := provider.NewRegistry()
	if err := RegisterAllTo(reg, defaultConfig(t)); err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}

	for _, name := range []string{"yfinance", "sec"} {
		s, err := reg.Get(name)
		if err != nil {
			t.Fatalf("%s not registered: %v", name, err)
		}
		if s.Info().Name != name {
			t.Errorf("wrong provider name: got %q, want %q", s.Info().Name, name)
		}
	}
}

func TestRegisterAllToCoverage(t *testing.T) {
	reg, err := NewRegistry(defaultConfig(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	want := map[provider.Capability]string{
		provider.CapPrices:   "yfinance",
		provider.CapActions:  "yfinance",
		provider.CapProfile:  "yfinance",
		provider.CapFilings:  "sec",
		provider.CapShares:   "sec",
		provider.CapUniverse: "sec",
	}
	coverage := reg.Coverage()
	for c, name := range want {
		names := coverage[c]
		if len(names) == 0 || names[0] != name {
			t.Errorf("capability %s: got %v, want %s first", c, names, name)
		}
	}

	if _, err := reg.Prices(); err != nil {
		t.Errorf("Prices(): %v", err)
	}
	if _, err := reg.Universe(); err != nil {
		t.Errorf("Universe(): %v", err)
	}
}

func TestRegisterAllToRequiresUserAgent(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Sources.SECUserAgent = ""
	if err := RegisterAllTo(provider.NewRegistry(), cfg); err == nil {
		t.Fatal("expected error without an SEC User-Agent")
	}
}

func TestHTTPOptions(t *testing.T) {
	cfg := defaultConfig(t)
	opts := HTTPOptions(cfg)
	if opts.Timeout != cfg.Sources.Timeout() || opts.MaxRetries != cfg.Retry.MaxRetries {
		t.Errorf("HTTPOptions = %+v", opts)
	}
}
