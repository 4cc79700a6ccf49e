package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/seenimoa/panelstudy/internal/eventstudy"
	"github.com/seenimoa/panelstudy/internal/portfolio"
	"github.com/seenimoa/panelstudy/internal/sectorindex"
)

// ════════════════════════════════════════════════════════════════════
// Report generator: charts + template rendering
// ════════════════════════════════════════════════════════════════════

// Format specifies the output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// ErrEmpty is returned when a snapshot carries no view.
var ErrEmpty = errors.New("report: nothing to render")

// Snapshot bundles the dashboard views rendered into one report. Nil
// views are left out.
type Snapshot struct {
	Title        string
	Availability string
	GeneratedAt  time.Time
	Portfolio    *portfolio.Result
	Sectors      *sectorindex.Result
	Study        *eventstudy.Study
}

// ════════════════════════════════════════════════════════════════════
// Report data, flattened for the templates
// ════════════════════════════════════════════════════════════════════

// reportData is the template model passed to the HTML template.
type reportData struct {
	Title        string
	Availability string
	GeneratedAt  string

	Portfolio *portfolioSection
	Sectors   *sectorSection
	Study     *studySection
}

type portfolioSection struct {
	Tickers   string
	Weighting string
	Metrics   []kv
	Holdings  [][]string
	Excluded  []string

	ValueChart  template.HTML
	GrowthChart template.HTML
	SpentPie    template.HTML
	FinalPie    template.HTML
}

type sectorSection struct {
	Chart   template.HTML
	Totals  [][]string
	Missing []string
	Dropped string
}

type studySection struct {
	Filter  []kv
	Summary []kv
	Chart   template.HTML
	Stats   [][]string
}

type kv struct {
	Label string
	Value string
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

// Generate renders snap in the given format.
func Generate(snap Snapshot, format Format) (string, error) {
	switch format {
	case FormatHTML, "":
		return GenerateHTML(snap)
	case FormatText:
		return GenerateText(snap)
	default:
		return "", fmt.Errorf("report: unknown format %q", format)
	}
}

// GenerateHTML generates a standalone HTML page with inline SVG charts.
func GenerateHTML(snap Snapshot) (string, error) {
	data, err := buildReportData(snap)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// GenerateText generates a plain-text report (terminal / CLI friendly).
func GenerateText(snap Snapshot) (string, error) {
	data, err := buildReportData(snap)
	if err != nil {
		return "", err
	}
	return renderTextReport(data), nil
}

// ════════════════════════════════════════════════════════════════════
// Template data
// ════════════════════════════════════════════════════════════════════

func buildReportData(snap Snapshot) (reportData, error) {
	if snap.Portfolio == nil && snap.Sectors == nil && snap.Study == nil {
		return reportData{}, ErrEmpty
	}
	if snap.GeneratedAt.IsZero() {
		snap.GeneratedAt = time.Now()
	}
	data := reportData{
		Title:        snap.Title,
		Availability: snap.Availability,
		GeneratedAt:  snap.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"),
	}
	if data.Title == "" {
		data.Title = "Market panel report"
	}
	cfg := DefaultChartConfig()

	if p := snap.Portfolio; p != nil {
		sec := &portfolioSection{
			Tickers:     strings.Join(p.Request.Tickers, ", "),
			Weighting:   string(p.Request.Weighting),
			ValueChart:  template.HTML(PortfolioValue(p, cfg)),
			GrowthChart: template.HTML(PortfolioGrowth(p, cfg)),
		}
		pie := cfg
		pie.Width, pie.Height = 420, 260
		spent, _ := HoldingsPie(p, PieSpent, pie)
		final, _ := HoldingsPie(p, PieFinal, pie)
		sec.SpentPie, sec.FinalPie = template.HTML(spent), template.HTML(final)

		s := p.Summary
		sec.Metrics = []kv{
			{"Period", s.Start + " to " + s.End},
			{"Start value", "$" + formatAmount(s.StartValue)},
			{"End value", "$" + formatAmount(s.EndValue)},
			{"Total return", fmt.Sprintf("%.2f%%", s.TotalReturnPct)},
			{"CAGR", fmt.Sprintf("%.2f%%", s.CAGR)},
			{"Max drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdownPct)},
			{"Sharpe", fmt.Sprintf("%.2f", s.SharpeRatio)},
			{"Sortino", fmt.Sprintf("%.2f", s.SortinoRatio)},
		}
		for _, h := range p.Holdings {
			sec.Holdings = append(sec.Holdings, []string{
				h.Ticker, h.Weight.String(), h.Price.StringFixed(2), h.Spent.StringFixed(2),
				h.Shares.String(), h.FinalValue.StringFixed(2), h.ExcludedOn,
			})
		}
		for _, e := range p.Excluded {
			if e.Date == "" {
				sec.Excluded = append(sec.Excluded, e.Ticker+" (no price on start date)")
			} else {
				sec.Excluded = append(sec.Excluded, e.Ticker+" from "+e.Date)
			}
		}
		data.Portfolio = sec
	}

	if r := snap.Sectors; r != nil {
		sec := &sectorSection{Chart: template.HTML(SectorIndices(r, cfg))}
		for _, t := range r.Totals {
			sec.Totals = append(sec.Totals, []string{t.Sector, fmt.Sprintf("%.4f", t.Index), fmt.Sprintf("%.2f%%", t.TotalReturnPct)})
		}
		sec.Missing = r.Missing
		sec.Dropped = fmt.Sprintf("%d split-day and %d null-return observations left out",
			r.Dropped.SplitDays, r.Dropped.NullReturns)
		data.Sectors = sec
	}

	if st := snap.Study; st != nil {
		sec := &studySection{Chart: template.HTML(CAR(st.Stats, cfg))}
		req := st.Request
		sec.Filter = []kv{
			{"Event types", orAll(req.Types)},
			{"Sectors", orAll(req.Sectors)},
			{"Tickers", orAll(req.Tickers)},
			{"Dates", orAll(compact(req.From, req.To))},
			{"Window", fmt.Sprintf("±%d days", st.Windows.K)},
			{"Overlaps", map[bool]string{true: "excluded", false: "included"}[req.NoOverlap]},
		}
		sm := st.Summary
		sec.Summary = []kv{
			{"Events", fmt.Sprint(sm.Events)},
			{"Tickers", fmt.Sprint(sm.Tickers)},
			{"Excluded events", fmt.Sprint(sm.Excluded)},
			{"Window rows", fmt.Sprint(sm.Rows)},
			{"Rows per day", fmt.Sprintf("%d to %d", sm.MinPerDay, sm.MaxPerDay)},
		}
		for _, d := range st.Stats {
			sec.Stats = append(sec.Stats, []string{
				fmt.Sprint(d.RelDay), fmt.Sprint(d.Count),
				fmt.Sprintf("%.5f", d.Mean), fmt.Sprintf("%.5f", d.Median),
				fmt.Sprintf("%.5f", d.CAR), fmt.Sprintf("[%.5f, %.5f]", d.CILo, d.CIHi),
			})
		}
		data.Study = sec
	}
	return data, nil
}

func orAll(v []string) string {
	if len(v) == 0 {
		return "all"
	}
	return strings.Join(v, ", ")
}

func compact(from, to string) []string {
	if from == "" && to == "" {
		return nil
	}
	return []string{orDash(from) + " to " + orDash(to)}
}

func orDash(s string) string {
	if s == "" {
		return "…"
	}
	return s
}

// ════════════════════════════════════════════════════════════════════
// Text Report
// ════════════════════════════════════════════════════════════════════

func renderTextReport(d reportData) string {
	var sb strings.Builder
	line := strings.Repeat("═", 64)

	sb.WriteString(line + "\n")
	sb.WriteString("  " + d.Title + "\n")
	if d.Availability != "" {
		sb.WriteString("  " + d.Availability + "\n")
	}
	sb.WriteString("  Generated " + d.GeneratedAt + "\n")
	sb.WriteString(line + "\n")

	writeKV := func(rows []kv) {
		for _, r := range rows {
			fmt.Fprintf(&sb, "  %-18s %s\n", r.Label+":", r.Value)
		}
	}

	if p := d.Portfolio; p != nil {
		sb.WriteString("\n▸ PORTFOLIO (" + p.Tickers + ", " + p.Weighting + ")\n")
		writeKV(p.Metrics)
		if len(p.Holdings) > 0 {
			fmt.Fprintf(&sb, "\n  %-8s %10s %10s %12s %12s %12s\n", "Ticker", "w0", "p0", "Spent", "Shares", "Final")
			for _, h := range p.Holdings {
				fmt.Fprintf(&sb, "  %-8s %10s %10s %12s %12s %12s\n", h[0], h[1], h[2], h[3], h[4], h[5])
			}
		}
		for _, e := range p.Excluded {
			sb.WriteString("  excluded: " + e + "\n")
		}
	}

	if s := d.Sectors; s != nil {
		sb.WriteString("\n▸ SECTOR INDICES\n")
		for _, t := range s.Totals {
			fmt.Fprintf(&sb, "  %-28s %10s %10s\n", t[0], t[1], t[2])
		}
		if len(s.Missing) > 0 {
			sb.WriteString("  no data: " + strings.Join(s.Missing, ", ") + "\n")
		}
		sb.WriteString("  " + s.Dropped + "\n")
	}

	if s := d.Study; s != nil {
		sb.WriteString("\n▸ EVENT STUDY\n")
		writeKV(s.Filter)
		writeKV(s.Summary)
		if len(s.Stats) > 0 {
			fmt.Fprintf(&sb, "\n  %5s %6s %10s %10s %10s  %s\n", "Day", "N", "AAR", "Median", "CAR", "95% CI")
			for _, r := range s.Stats {
				fmt.Fprintf(&sb, "  %5s %6s %10s %10s %10s  %s\n", r[0], r[1], r[2], r[3], r[4], r[5])
			}
		}
	}

	sb.WriteString("\n" + line + "\n")
	return sb.String()
}
