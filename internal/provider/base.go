package provider

import (
	"context"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
)

// BaseFetcher carries the HTTP client, response cache and rate limiter
// shared by a source's endpoints. Embed it in concrete sources.
type BaseFetcher struct {
	client  *infra.HTTPClient
	cache   *infra.Cache[[]byte]
	limiter *infra.RateLimiter
}

// FetcherOptions configures NewBaseFetcher. Zero values take defaults.
type FetcherOptions struct {
	HTTP       infra.HTTPOptions
	CacheTTL   time.Duration
	RatePerSec int
}

// NewBaseFetcher builds a base fetcher. The limiter is installed on the
// HTTP client so retries are throttled too.
func NewBaseFetcher(opts FetcherOptions) BaseFetcher {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	limiter := infra.PerSecond(opts.RatePerSec)
	opts.HTTP.Limiter = limiter
	return BaseFetcher{
		client:  infra.NewHTTPClient(opts.HTTP),
		cache:   infra.NewCache[[]byte](opts.CacheTTL),
		limiter: limiter,
	}
}

// Client returns the underlying HTTP client.
func (b *BaseFetcher) Client() *infra.HTTPClient { return b.client }

// GetCached performs a GET, serving repeated URLs from the in-memory cache.
func (b *BaseFetcher) GetCached(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if body, ok := b.cache.Get(url); ok {
		return body, nil
	}
	body, err := b.client.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	b.cache.Set(url, body)
	return body, nil
}

// RateLimit waits until a request slot is available.
func (b *BaseFetcher) RateLimit(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// BaseProvider implements the Info and Init parts of Source.
type BaseProvider struct {
	info        Info
	credentials map[string]string
}

// NewBaseProvider creates a base provider.
func NewBaseProvider(name, description, website string, caps []Capability, creds []Credential) BaseProvider {
	return BaseProvider{
		info: Info{
			Name:         name,
			Description:  description,
			Website:      website,
			Credentials:  creds,
			Capabilities: caps,
		},
		credentials: make(map[string]string),
	}
}

func (bp *BaseProvider) Info() Info { return bp.info }

func (bp *BaseProvider) Init(credentials map[string]string) error {
	for _, cred := range bp.info.Credentials {
		if !cred.Required {
			continue
		}
		if v := credentials[cred.Name]; v == "" {
			return &ErrInvalidCredentials{
				Source: bp.info.Name,
				Detail: "missing required credential: " + cred.Name,
			}
		}
	}
	if credentials != nil {
		bp.credentials = credentials
	}
	return nil
}

func (bp *BaseProvider) Ping(ctx context.Context) error { return nil }

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}

// Supports reports whether the source advertises capability c.
func (bp *BaseProvider) Supports(c Capability) bool {
	for _, have := range bp.info.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
