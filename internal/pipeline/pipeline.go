// Package pipeline builds the panel dataset in sequential, cache-gated
// stages: tickers → prices → fundamentals → shares → splits → filings →
// assemble. Each stage reads on-disk artifacts and owns exactly one output
// file, so any stage can be re-run on its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seenimoa/panelstudy/internal/config"
	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// Stage names, in execution order.
const (
	StageTickers      = "tickers"
	StagePrices       = "prices"
	StageFundamentals = "fundamentals"
	StageShares       = "shares"
	StageSplits       = "splits"
	StageFilings      = "filings"
	StageAssemble     = "assemble"
)

// AllStages returns every stage name in execution order.
func AllStages() []string {
	return []string{
		StageTickers, StagePrices, StageFundamentals, StageShares,
		StageSplits, StageFilings, StageAssemble,
	}
}

// IsValidStage reports whether name is a known stage.
func IsValidStage(name string) bool {
	for _, s := range AllStages() {
		if s == name {
			return true
		}
	}
	return false
}

// ErrStageUnknown is returned for a stage name that is not in AllStages.
var ErrStageUnknown = errors.New("unknown pipeline stage")

// Env is the shared state of a run: where artifacts live, which sources
// to call and the date range to fetch.
type Env struct {
	DataDir   string // stage outputs live under DataDir/stages
	PanelPath string
	Cache     *infra.JSONStore
	Sources   *provider.Registry

	From, To   time.Time
	Exchanges  []string
	MaxTickers int
	// Tickers, when set, replaces the SEC listing as the universe.
	Tickers []string
	// RefreshFilings checks the EDGAR feed of every cached company and
	// invalidates those with filings newer than the cache.
	RefreshFilings bool

	Log zerolog.Logger
}

// NewEnv builds an Env from configuration.
func NewEnv(cfg *config.Config, sources *provider.Registry, log zerolog.Logger) (*Env, error) {
	to := time.Now().UTC()
	if cfg.Pipeline.End != "" {
		t, err := models.ParseDate(cfg.Pipeline.End)
		if err != nil {
			return nil, fmt.Errorf("pipeline.end: %w", err)
		}
		to = t
	}
	to = models.Day(to)
	years := cfg.Pipeline.HistoryYears
	if years < 1 {
		years = 1
	}
	return &Env{
		DataDir:    cfg.Data.Dir,
		PanelPath:  cfg.Data.Path(cfg.Data.PanelFile),
		Cache:      infra.NewJSONStore(cfg.Data.Path(cfg.Data.RawDir)),
		Sources:    sources,
		From:       to.AddDate(-years, 0, 0),
		To:         to,
		Exchanges:  cfg.Pipeline.Exchanges,
		MaxTickers: cfg.Pipeline.MaxTickers,
		Log:        log,
	}, nil
}

// StagePath returns the path of a stage output file.
func (e *Env) StagePath(file string) string {
	return filepath.Join(e.DataDir, "stages", file)
}

// Ledger opens the fetch ledger of a cache namespace.
func (e *Env) Ledger(namespace string) (*infra.Ledger, error) {
	return infra.OpenLedger(filepath.Join(e.Cache.Root(), namespace, "_status.json"))
}

// Artifact describes what a stage wrote.
type Artifact struct {
	Path  string
	Rows  int
	Fetch *FetchStats
}

// Stage is one independently runnable step.
type Stage interface {
	Name() string
	// Output is the file the stage owns. Its presence gates the stage.
	Output(env *Env) string
	Run(ctx context.Context, env *Env) (Artifact, error)
}

// incompleter is implemented by stages that can tell their output is
// stale even though it exists, e.g. because keys are still pending.
type incompleter interface {
	Incomplete(env *Env) bool
}

// StageOptions are the per-stage flags of a run.
type StageOptions struct {
	Enabled bool
	Rebuild bool
}

// RunOptions selects what a run does. A stage missing from Stages is
// disabled.
type RunOptions struct {
	RunID  string
	Stages map[string]StageOptions
}

// DefaultRunOptions enables every stage without rebuilding.
func DefaultRunOptions() RunOptions {
	opts := RunOptions{Stages: make(map[string]StageOptions)}
	for _, s := range AllStages() {
		opts.Stages[s] = StageOptions{Enabled: true}
	}
	return opts
}

// ParseRunOptions builds options from stage lists. An empty enabled list
// means every stage; "all" in rebuild rebuilds every enabled stage.
func ParseRunOptions(enabled, rebuild []string) (RunOptions, error) {
	opts := RunOptions{Stages: make(map[string]StageOptions)}
	if len(enabled) == 0 {
		enabled = AllStages()
	}
	for _, name := range enabled {
		name = strings.ToLower(strings.TrimSpace(name))
		if !IsValidStage(name) {
			return opts, fmt.Errorf("%w: %q", ErrStageUnknown, name)
		}
		opts.Stages[name] = StageOptions{Enabled: true}
	}
	for _, name := range rebuild {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "all" {
			for s, o := range opts.Stages {
				o.Rebuild = true
				opts.Stages[s] = o
			}
			continue
		}
		if !IsValidStage(name) {
			return opts, fmt.Errorf("%w: %q", ErrStageUnknown, name)
		}
		o := opts.Stages[name]
		o.Rebuild = true
		opts.Stages[name] = o
	}
	return opts, nil
}

// Runner executes stages in order.
type Runner struct {
	env    *Env
	stages []Stage
	now    func() time.Time
}

// NewRunner returns a runner with the default stage list.
func NewRunner(env *Env) *Runner {
	return &Runner{env: env, stages: DefaultStages(), now: time.Now}
}

// DefaultStages returns the built-in stages in execution order.
func DefaultStages() []Stage {
	return []Stage{
		tickersStage{},
		pricesStage{},
		fundamentalsStage{},
		sharesStage{},
		splitsStage{},
		filingsStage{},
		assembleStage{},
	}
}

// Stage returns the built-in stage with the given name.
func (r *Runner) Stage(name string) (Stage, error) {
	for _, s := range r.stages {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrStageUnknown, name)
}

// Run executes the enabled stages and writes the manifest to
// manifestPath (skipped when empty). A failing stage stops the run; the
// manifest still records what happened.
func (r *Runner) Run(ctx context.Context, opts RunOptions, manifestPath string) (*Manifest, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	for name := range opts.Stages {
		if !IsValidStage(name) {
			return nil, fmt.Errorf("%w: %q", ErrStageUnknown, name)
		}
	}

	m := &Manifest{
		RunID:     opts.RunID,
		StartedAt: r.now().UTC(),
		From:      models.FormatDate(r.env.From),
		To:        models.FormatDate(r.env.To),
	}
	log := r.env.Log.With().Str("run_id", opts.RunID).Logger()

	var runErr error
	for _, st := range r.stages {
		so := opts.Stages[st.Name()]
		res := r.runStage(ctx, st, so, log)
		m.Stages = append(m.Stages, res)
		if res.Status == StatusFailed {
			runErr = fmt.Errorf("stage %s: %s", st.Name(), res.Error)
			break
		}
	}
	m.FinishedAt = r.now().UTC()

	if manifestPath != "" {
		if err := m.Save(manifestPath); err != nil {
			log.Error().Err(err).Msg("write manifest")
			if runErr == nil {
				runErr = err
			}
		}
	}
	return m, runErr
}

func (r *Runner) runStage(ctx context.Context, st Stage, so StageOptions, log zerolog.Logger) StageResult {
	out := st.Output(r.env)
	res := StageResult{Name: st.Name(), Output: out}
	slog := log.With().Str("stage", st.Name()).Logger()

	if !so.Enabled {
		res.Status = StatusDisabled
		return res
	}
	if !so.Rebuild && fileExists(out) {
		stale := false
		if inc, ok := st.(incompleter); ok {
			stale = inc.Incomplete(r.env)
		}
		if !stale {
			slog.Info().Str("output", out).Msg("output exists, skipping")
			res.Status = StatusSkipped
			return res
		}
		slog.Info().Msg("output exists but keys are pending, resuming")
	}

	start := r.now()
	env := *r.env
	env.Log = slog
	art, err := st.Run(ctx, &env)
	res.DurationMS = r.now().Sub(start).Milliseconds()
	res.Rows = art.Rows
	res.Fetch = art.Fetch
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		slog.Error().Err(err).Msg("stage failed")
		return res
	}
	res.Status = StatusRan
	slog.Info().Int("rows", art.Rows).Int64("ms", res.DurationMS).Msg("stage complete")
	return res
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
