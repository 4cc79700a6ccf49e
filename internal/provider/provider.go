// Package provider defines the data-source abstraction used by the pipeline.
// A Source advertises the capabilities it implements (prices, corporate
// actions, profiles, filings, shares, ticker universe) and is registered in
// a Registry that stages query by capability.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// Capability names one kind of data a Source can return.
type Capability string

const (
	CapPrices   Capability = "prices"
	CapActions  Capability = "actions"
	CapProfile  Capability = "profile"
	CapFilings  Capability = "filings"
	CapShares   Capability = "shares"
	CapUniverse Capability = "universe"
)

// Credential describes a setting a source needs before it can be used.
type Credential struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"`
}

// Info holds metadata about a registered source.
type Info struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Website      string       `json:"website"`
	Credentials  []Credential `json:"credentials"`
	Capabilities []Capability `json:"capabilities"`
}

// Source is implemented by every concrete data provider.
type Source interface {
	Info() Info

	// Init validates credentials. Called once before registration.
	Init(credentials map[string]string) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}

// PriceSource returns daily OHLCV bars for [from, to].
type PriceSource interface {
	FetchDaily(ctx context.Context, ticker string, from, to time.Time) (*models.PriceHistory, error)
}

// ActionSource returns splits and dividends for [from, to].
type ActionSource interface {
	FetchActions(ctx context.Context, ticker string, from, to time.Time) (*models.Actions, error)
}

// ProfileSource returns sector, industry and share statistics.
type ProfileSource interface {
	FetchProfile(ctx context.Context, ticker string) (*models.Profile, error)
}

// FilingSource returns company metadata and recent filings by CIK.
type FilingSource interface {
	FetchSubmissions(ctx context.Context, cik string) (*models.Submissions, error)
}

// SharesSource returns the reported shares outstanding and public float series.
type SharesSource interface {
	FetchShares(ctx context.Context, cik string) (*models.SharesHistory, error)
}

// UniverseSource lists the tradable tickers with their CIK and exchange.
type UniverseSource interface {
	FetchUniverse(ctx context.Context) ([]models.CompanyID, error)
}

// ErrNoData is returned when a source confirms it has nothing for a key.
// Callers record it as a permanent negative.
var ErrNoData = errors.New("no data")

// NoData wraps ErrNoData with the key and a reason.
func NoData(key, reason string) error {
	return fmt.Errorf("%s: %s: %w", key, reason, ErrNoData)
}

// ErrSourceNotFound is returned when a requested source is not registered.
type ErrSourceNotFound struct {
	Name string
}

func (e *ErrSourceNotFound) Error() string {
	return fmt.Sprintf("source %q not found", e.Name)
}

// ErrCapabilityNotSupported is returned when no registered source offers a capability.
type ErrCapabilityNotSupported struct {
	Source     string
	Capability Capability
}

func (e *ErrCapabilityNotSupported) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("no source supports %q", e.Capability)
	}
	return fmt.Sprintf("source %q does not support %q", e.Source, e.Capability)
}

// ErrMissingParam is returned when a required parameter is empty.
type ErrMissingParam struct {
	Param string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// ErrInvalidCredentials is returned when source credentials are invalid.
type ErrInvalidCredentials struct {
	Source string
	Detail string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for source %q: %s", e.Source, e.Detail)
}

// ValidateParams checks that every named parameter is non-empty.
// Arguments alternate name, value.
func ValidateParams(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return &ErrMissingParam{Param: pairs[i]}
		}
	}
	return nil
}

// Outcome is the ledger verdict for one fetch attempt.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomePending
	OutcomeAbsent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeAbsent:
		return "absent"
	default:
		return "pending"
	}
}

// Classify maps a fetch error to a ledger outcome. ErrNoData and 404 mean
// the source confirmed absence; everything else is treated as transient.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeDone
	case errors.Is(err, ErrNoData), errors.Is(err, infra.ErrNotFound):
		return OutcomeAbsent
	case errors.Is(err, context.Canceled):
		return OutcomePending
	}
	var me *ErrMissingParam
	if errors.As(err, &me) {
		return OutcomeAbsent
	}
	return OutcomePending
}
