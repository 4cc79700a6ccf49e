// Package providers builds the concrete data sources from configuration
// and registers them with a source registry.
package providers

import (
	"github.com/seenimoa/panelstudy/internal/config"
	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/internal/providers/sec"
	"github.com/seenimoa/panelstudy/internal/providers/yfinance"
)

// HTTPOptions returns the client settings shared by every source.
func HTTPOptions(cfg *config.Config) infra.HTTPOptions {
	return infra.HTTPOptions{
		Timeout:    cfg.Sources.Timeout(),
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay(),
		MaxDelay:   cfg.Retry.MaxDelay(),
	}
}

// NewRegistry returns a registry holding every source built from cfg.
func NewRegistry(cfg *config.Config) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	if err := RegisterAllTo(reg, cfg); err != nil {
		return nil, err
	}
	return reg, nil
}

// RegisterAllTo registers Yahoo Finance (prices, actions, profiles) and
// SEC EDGAR (universe, filings, shares) to reg.
func RegisterAllTo(reg *provider.Registry, cfg *config.Config) error {
	// --- Yahoo Finance (no credentials) ---
	yf := yfinance.New(yfinance.Options{
		BaseURL:    cfg.Sources.YahooBaseURL,
		RatePerSec: cfg.Sources.YahooRatePerSec,
		HTTP:       HTTPOptions(cfg),
	})
	if err := yf.Init(nil); err != nil {
		return err
	}
	if err := reg.Register(yf); err != nil {
		return err
	}

	// --- SEC EDGAR (User-Agent required) ---
	edgar := sec.New(sec.Options{
		DataURL:    cfg.Sources.SECDataURL,
		WWWURL:     cfg.Sources.SECWWWURL,
		UserAgent:  cfg.Sources.SECUserAgent,
		RatePerSec: cfg.Sources.SECRatePerSec,
		HTTP:       HTTPOptions(cfg),
	})
	if err := edgar.Init(map[string]string{"user_agent": cfg.Sources.SECUserAgent}); err != nil {
		return err
	}
	return reg.Register(edgar)
}
