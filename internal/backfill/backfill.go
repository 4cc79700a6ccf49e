// Package backfill patches named gaps in an existing panel and writes the
// result as a new panel version. Every pass only touches rows inside its
// gap, and re-running a pass without new source data reproduces its
// output exactly. Gaps that cannot be resolved get an explicit sentinel.
package backfill

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/panel"
	"github.com/seenimoa/panelstudy/internal/pipeline"
)

// Kind names a backfill pass.
type Kind string

const (
	KindSector    Kind = "sector"
	KindMarketCap Kind = "market_cap"
	KindVolume    Kind = "volume"
	KindETFs      Kind = "etfs"
)

// AllKinds lists the passes in the order `backfill all` applies them.
func AllKinds() []Kind {
	return []Kind{KindSector, KindMarketCap, KindVolume, KindETFs}
}

// ParseKind validates a pass name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backfill %q (want one of sector, market_cap, volume, etfs)", s)
}

// Deps are the supplementary sources a pass may read. Env supplies the
// raw cache, the source registry and the date range.
type Deps struct {
	Env *pipeline.Env
	// Fetch allows passes to call sources for keys missing from the cache.
	Fetch bool
	// ETFTickers is the reference ETF list used by the etfs pass.
	ETFTickers []string
}

// Report summarizes one pass.
type Report struct {
	ID        string    `yaml:"id"`
	Kind      Kind      `yaml:"kind"`
	Input     string    `yaml:"input,omitempty"`
	Output    string    `yaml:"output,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
	RowsIn    int       `yaml:"rows_in"`
	RowsOut   int       `yaml:"rows_out"`
	GapBefore int       `yaml:"gap_before"`
	GapAfter  int       `yaml:"gap_after"`
	Filled    int       `yaml:"filled"`
	Sentinel  int       `yaml:"sentinel"`
	Tickers   int       `yaml:"tickers"`
	// Sources counts how filled values were resolved.
	Sources map[string]int `yaml:"sources,omitempty"`
}

func (d Deps) log() zerolog.Logger {
	if d.Env == nil {
		return zerolog.Nop()
	}
	return d.Env.Log
}

func (r *Report) count(source string) {
	if r.Sources == nil {
		r.Sources = make(map[string]int)
	}
	r.Sources[source]++
}

// Func is the signature shared by every pass.
type Func func(ctx context.Context, rows []panel.Row, d Deps) ([]panel.Row, Report, error)

// ForKind returns the pass implementing k.
func ForKind(k Kind) (Func, error) {
	switch k {
	case KindSector:
		return Sector, nil
	case KindMarketCap:
		return MarketCap, nil
	case KindVolume:
		return Volume, nil
	case KindETFs:
		return ETFs, nil
	}
	return nil, fmt.Errorf("unknown backfill %q", k)
}

// Run reads inPath, applies the pass and writes outPath plus a YAML report
// next to it. inPath is never modified.
func Run(ctx context.Context, k Kind, inPath, outPath string, d Deps) (Report, error) {
	fn, err := ForKind(k)
	if err != nil {
		return Report{}, err
	}
	if filepath.Clean(inPath) == filepath.Clean(outPath) {
		return Report{}, fmt.Errorf("backfill output must differ from input %s", inPath)
	}
	rows, err := panel.Read(inPath)
	if err != nil {
		return Report{}, err
	}

	out, rep, err := fn(ctx, rows, d)
	if err != nil {
		return rep, fmt.Errorf("backfill %s: %w", k, err)
	}
	if err := panel.Validate(out); err != nil {
		return rep, fmt.Errorf("backfill %s: %w", k, err)
	}
	if err := panel.Write(outPath, out); err != nil {
		return rep, err
	}

	rep.Input, rep.Output = inPath, outPath
	data, err := yaml.Marshal(rep)
	if err != nil {
		return rep, err
	}
	if err := infra.WriteFileAtomic(ReportPath(outPath), data); err != nil {
		return rep, err
	}
	lg := d.log()
	lg.Info().
		Str("kind", string(k)).
		Str("output", outPath).
		Int("gap_before", rep.GapBefore).
		Int("gap_after", rep.GapAfter).
		Int("filled", rep.Filled).
		Int("sentinel", rep.Sentinel).
		Msg("backfill written")
	return rep, nil
}

// ReportPath is where Run writes the report for a panel version.
func ReportPath(panelPath string) string {
	return strings.TrimSuffix(panelPath, filepath.Ext(panelPath)) + ".backfill.yaml"
}

var versionRe = regexp.MustCompile(`_v(\d+)$`)

// NextVersionPath returns the path of the next panel version:
// panel_v1.parquet → panel_v2.parquet, panel.parquet → panel_v2.parquet.
func NextVersionPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if m := versionRe.FindStringSubmatch(base); m != nil {
		n, _ := strconv.Atoi(m[1])
		return strings.TrimSuffix(base, m[0]) + fmt.Sprintf("_v%d", n+1) + ext
	}
	return base + "_v2" + ext
}

// LatestVersion returns the highest existing version of the panel at
// path, or path itself when no later version exists.
func LatestVersion(path string) string {
	ext := filepath.Ext(path)
	base := versionRe.ReplaceAllString(strings.TrimSuffix(path, ext), "")
	matches, _ := filepath.Glob(base + "_v*" + ext)
	best, bestN := path, 0
	if m := versionRe.FindStringSubmatch(strings.TrimSuffix(path, ext)); m != nil {
		bestN, _ = strconv.Atoi(m[1])
	}
	for _, cand := range matches {
		m := versionRe.FindStringSubmatch(strings.TrimSuffix(cand, ext))
		if m == nil || strings.TrimSuffix(strings.TrimSuffix(cand, ext), m[0]) != base {
			continue
		}
		if n, _ := strconv.Atoi(m[1]); n > bestN {
			best, bestN = cand, n
		}
	}
	return best
}

func newReport(k Kind, rows []panel.Row) Report {
	return Report{
		ID:        uuid.New().String(),
		Kind:      k,
		CreatedAt: time.Now().UTC(),
		RowsIn:    len(rows),
	}
}

// clone copies rows so a pass never edits its input. Pointer fields are
// shared; passes replace them rather than writing through them.
func clone(rows []panel.Row) []panel.Row {
	out := make([]panel.Row, len(rows))
	copy(out, rows)
	panel.Sort(out)
	return out
}
