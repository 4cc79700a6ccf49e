// Package report renders the dashboard charts as standalone SVG documents.
package report

import (
	"fmt"
	"math"
	"strings"
)

// ════════════════════════════════════════════════════════════════════
// SVG Chart Generator
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 800)
	Height       int    // SVG height in pixels (default: 400)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 30)
	MarginBottom int    // bottom margin (default: 50)
	MarginLeft   int    // left margin (default: 80)
	BgColor      string // background color (default: "#ffffff")
	GridColor    string // grid line color (default: "#e8e8e8")
	TextColor    string // axis label color (default: "#333333")
	FontSize     int    // axis label font size (default: 11)
	Title        string // chart title
	ValueFormat  string // fmt verb for y-axis labels (default: "%.2f")
	XTitle       string
	YTitle       string
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       400,
		MarginTop:    40,
		MarginRight:  30,
		MarginBottom: 50,
		MarginLeft:   80,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
		ValueFormat:  "%.2f",
	}
}

// withDefaults fills zero fields from DefaultChartConfig.
func (c ChartConfig) withDefaults(title string) ChartConfig {
	d := DefaultChartConfig()
	if c.Width == 0 {
		title, xt, yt, vf := c.Title, c.XTitle, c.YTitle, c.ValueFormat
		c = d
		c.Title, c.XTitle, c.YTitle = title, xt, yt
		if vf != "" {
			c.ValueFormat = vf
		}
	}
	if c.ValueFormat == "" {
		c.ValueFormat = d.ValueFormat
	}
	if c.Title == "" {
		c.Title = title
	}
	return c
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

var palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf"}

// Color returns the palette color of the i-th series.
func Color(i int) string { return palette[i%len(palette)] }

// ════════════════════════════════════════════════════════════════════
// Line Chart
// ════════════════════════════════════════════════════════════════════

// LineChartSeries represents a named data series for line charts. NaN
// values leave a gap in the line.
type LineChartSeries struct {
	Name   string
	Values []float64
	Color  string // hex color (optional, auto-assigned if empty)
	Dashed bool
}

// Band is a shaded range drawn under the series.
type Band struct {
	Lo, Hi []float64
	Color  string
	Label  string
}

// VLine marks an x position, by index into the labels.
type VLine struct {
	Index int
	Label string
}

// LineChart generates an SVG line chart with one or more series.
// Labels are optional X-axis labels corresponding to data points.
func LineChart(series []LineChartSeries, labels []string, cfg ChartConfig) string {
	return lineChart(series, labels, nil, nil, cfg.withDefaults("Line Chart"))
}

func lineChart(series []LineChartSeries, labels []string, band *Band, vline *VLine, cfg ChartConfig) string {
	if len(series) == 0 {
		return emptySVG(cfg, "No data")
	}
	px, py, pw, ph := cfg.plotArea()

	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	maxLen := 0
	track := func(vs []float64) {
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	for _, s := range series {
		maxLen = max(maxLen, len(s.Values))
		track(s.Values)
	}
	if band != nil {
		track(band.Lo)
		track(band.Hi)
	}
	if maxLen == 0 || minVal > maxVal {
		return emptySVG(cfg, "No data points")
	}

	vRange := maxVal - minVal
	if vRange < 1e-9 {
		vRange = math.Max(math.Abs(maxVal), 1) * 0.1
	}
	minVal -= vRange * 0.05
	maxVal += vRange * 0.05
	vRange = maxVal - minVal

	xAt := func(i int) float64 {
		if maxLen == 1 {
			return float64(px) + float64(pw)/2
		}
		return float64(px) + float64(i)*float64(pw)/float64(maxLen-1)
	}
	yAt := func(v float64) float64 {
		return float64(py+ph) - (v-minVal)/vRange*float64(ph)
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	writeFrame(&sb, cfg)

	// Y-axis grid
	gridLines := 5
	for i := 0; i <= gridLines; i++ {
		val := minVal + vRange*float64(i)/float64(gridLines)
		y := py + ph - int(float64(ph)*float64(i)/float64(gridLines))
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-5, y+4, cfg.FontSize, cfg.TextColor, escapeXML(fmt.Sprintf(cfg.ValueFormat, val)))
	}

	if band != nil {
		writeBand(&sb, band, xAt, yAt)
	}
	if vline != nil && vline.Index >= 0 && vline.Index < maxLen {
		x := xAt(vline.Index)
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="#000" stroke-opacity="0.6" stroke-dasharray="6,4"/>`,
			x, py, x, py+ph)
		if vline.Label != "" {
			fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
				x, py-4, cfg.FontSize, cfg.TextColor, escapeXML(vline.Label))
		}
	}

	// Draw series
	for si, s := range series {
		color := s.Color
		if color == "" {
			color = Color(si)
		}
		d := pathData(s.Values, xAt, yAt)
		if d != "" {
			dash := ""
			if s.Dashed {
				dash = ` stroke-dasharray="5,3"`
			}
			fmt.Fprintf(&sb, `<path d="%s" fill="none" stroke="%s" stroke-width="2"%s/>`, d, color, dash)
		}

		// Legend
		ly := py + 10 + si*16
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`,
			px+10, ly, px+30, ly, color)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`,
			px+35, ly+4, cfg.TextColor, escapeXML(s.Name))
	}
	if band != nil && band.Label != "" {
		ly := py + 10 + len(series)*16
		fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="20" height="8" fill="%s"/>`, px+10, ly-4, bandColor(band))
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`,
			px+35, ly+4, cfg.TextColor, escapeXML(band.Label))
	}

	// X-axis labels
	if len(labels) > 0 {
		interval := max(maxLen/6, 1)
		for i := 0; i < len(labels) && i < maxLen; i += interval {
			fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
				xAt(i), py+ph+18, cfg.FontSize-1, cfg.TextColor, escapeXML(labels[i]))
		}
	}
	writeAxisTitles(&sb, cfg)

	sb.WriteString("</svg>")
	return sb.String()
}

// pathData builds an SVG path, starting a new subpath after each gap.
func pathData(values []float64, xAt func(int) float64, yAt func(float64) float64) string {
	var parts []string
	pen := false
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			pen = false
			continue
		}
		cmd := "L"
		if !pen {
			cmd = "M"
			pen = true
		}
		parts = append(parts, fmt.Sprintf("%s%.1f,%.1f", cmd, xAt(i), yAt(v)))
	}
	return strings.Join(parts, " ")
}

func writeBand(sb *strings.Builder, b *Band, xAt func(int) float64, yAt func(float64) float64) {
	n := min(len(b.Lo), len(b.Hi))
	var upper, lower []string
	for i := 0; i < n; i++ {
		if math.IsNaN(b.Lo[i]) || math.IsNaN(b.Hi[i]) {
			continue
		}
		upper = append(upper, fmt.Sprintf("%.1f,%.1f", xAt(i), yAt(b.Hi[i])))
		lower = append([]string{fmt.Sprintf("%.1f,%.1f", xAt(i), yAt(b.Lo[i]))}, lower...)
	}
	if len(upper) < 2 {
		return
	}
	fmt.Fprintf(sb, `<polygon points="%s %s" fill="%s" stroke="none"/>`,
		strings.Join(upper, " "), strings.Join(lower, " "), bandColor(b))
}

func bandColor(b *Band) string {
	if b.Color != "" {
		return b.Color
	}
	return "rgba(31,119,180,0.20)"
}

// ════════════════════════════════════════════════════════════════════
// Pie Chart
// ════════════════════════════════════════════════════════════════════

// PieSlice is one labelled share of a pie chart.
type PieSlice struct {
	Label string
	Value float64
	Color string
}

// PieChart draws a donut chart. Slices with non-positive values are
// skipped. unit is appended to the value in the legend.
func PieChart(slices []PieSlice, unit string, cfg ChartConfig) string {
	cfg = cfg.withDefaults("Pie Chart")
	var total float64
	var kept []PieSlice
	for i, s := range slices {
		if s.Value > 0 && !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0) {
			if s.Color == "" {
				s.Color = Color(i)
			}
			kept = append(kept, s)
			total += s.Value
		}
	}
	if total == 0 {
		return emptySVG(cfg, "No data")
	}

	px, py, pw, ph := cfg.plotArea()
	r := float64(min(pw/2, ph)) / 2
	cx := float64(px) + r + 10
	cy := float64(py) + float64(ph)/2
	inner := r * 0.35

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	writeFrame(&sb, cfg)

	angle := -math.Pi / 2
	for i, s := range kept {
		frac := s.Value / total
		if len(kept) == 1 {
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>`, cx, cy, r, s.Color)
		} else {
			end := angle + frac*2*math.Pi
			large := 0
			if frac > 0.5 {
				large = 1
			}
			x0, y0 := cx+r*math.Cos(angle), cy+r*math.Sin(angle)
			x1, y1 := cx+r*math.Cos(end), cy+r*math.Sin(end)
			fmt.Fprintf(&sb, `<path d="M%.1f,%.1f L%.1f,%.1f A%.1f,%.1f 0 %d,1 %.1f,%.1f Z" fill="%s" stroke="#fff"/>`,
				cx, cy, x0, y0, r, r, large, x1, y1, s.Color)
			angle = end
		}

		ly := py + 10 + i*18
		lx := int(cx+r) + 30
		fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="12" height="12" fill="%s"/>`, lx, ly-10, s.Color)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="%d" fill="%s">%s: %s%s (%.1f%%)</text>`,
			lx+18, ly, cfg.FontSize, cfg.TextColor, escapeXML(s.Label),
			formatAmount(s.Value), escapeXML(unit), frac*100)
	}
	fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>`, cx, cy, inner, cfg.BgColor)

	sb.WriteString("</svg>")
	return sb.String()
}

// formatAmount renders v with thousands separators and two decimals.
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", math.Abs(v))
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if v < 0 {
		return "-" + b.String() + frac
	}
	return b.String() + frac
}

// ════════════════════════════════════════════════════════════════════
// SVG Helpers
// ════════════════════════════════════════════════════════════════════

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func writeFrame(sb *strings.Builder, cfg ChartConfig) {
	fmt.Fprintf(sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, cfg.Width, cfg.Height, cfg.BgColor)
	fmt.Fprintf(sb, `<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title))
}

func writeAxisTitles(sb *strings.Builder, cfg ChartConfig) {
	px, py, pw, ph := cfg.plotArea()
	if cfg.XTitle != "" {
		fmt.Fprintf(sb, `<text x="%d" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
			px+pw/2, cfg.Height-8, cfg.FontSize, cfg.TextColor, escapeXML(cfg.XTitle))
	}
	if cfg.YTitle != "" {
		fmt.Fprintf(sb, `<text x="14" y="%d" font-size="%d" fill="%s" text-anchor="middle" transform="rotate(-90 14 %d)">%s</text>`,
			py+ph/2, cfg.FontSize, cfg.TextColor, py+ph/2, escapeXML(cfg.YTitle))
	}
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
