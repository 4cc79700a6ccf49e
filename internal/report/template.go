package report

// reportTemplate is the HTML template for the snapshot report. Charts are
// inlined as SVG so the page has no external assets.
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.5rem; color: var(--accent); }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  .muted { color: var(--muted); font-size: 0.85rem; }
  .header { border-bottom: 3px solid var(--accent); padding-bottom: 12px; margin-bottom: 16px; }
  .metrics {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(160px, 1fr));
    gap: 8px;
    background: var(--section-bg);
    padding: 12px;
    border-radius: 8px;
    margin-bottom: 16px;
  }
  .metric .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .metric .value { font-size: 1rem; font-weight: 600; }
  .chart-container { margin: 12px 0; overflow-x: auto; }
  .pies { display: flex; flex-wrap: wrap; gap: 12px; }
  table { width: 100%; border-collapse: collapse; margin: 8px 0 16px; font-size: 0.9rem; }
  th { background: var(--section-bg); text-align: left; padding: 8px; font-weight: 600; }
  td { padding: 6px 8px; border-bottom: 1px solid var(--border); font-variant-numeric: tabular-nums; }
  .footer { margin-top: 32px; padding-top: 12px; border-top: 1px solid var(--border); text-align: center; }
</style>
</head>
<body>

<div class="header">
  <h1>{{.Title}}</h1>
  {{if .Availability}}<p class="muted">{{.Availability}}</p>{{end}}
  <p class="muted">Generated {{.GeneratedAt}}</p>
</div>

{{with .Portfolio}}
<section>
  <h2>Portfolio</h2>
  <p class="muted">{{.Tickers}} · {{.Weighting}} weighting</p>
  <div class="metrics">
    {{range .Metrics}}<div class="metric"><div class="label">{{.Label}}</div><div class="value">{{.Value}}</div></div>{{end}}
  </div>
  <div class="chart-container">{{.ValueChart}}</div>
  <div class="chart-container">{{.GrowthChart}}</div>
  <div class="pies"><div>{{.SpentPie}}</div><div>{{.FinalPie}}</div></div>
  {{if .Holdings}}
  <table>
    <tr><th>Ticker</th><th>w0</th><th>p0</th><th>Spent</th><th>Shares</th><th>Final value</th><th>Excluded on</th></tr>
    {{range .Holdings}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
  </table>
  {{end}}
  {{if .Excluded}}
  <p class="muted">Excluded: {{range $i, $e := .Excluded}}{{if $i}}; {{end}}{{$e}}{{end}}</p>
  {{end}}
</section>
{{end}}

{{with .Sectors}}
<section>
  <h2>Sector indices</h2>
  <div class="chart-container">{{.Chart}}</div>
  <table>
    <tr><th>Sector</th><th>Final index</th><th>Total return</th></tr>
    {{range .Totals}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
  </table>
  {{if .Missing}}<p class="muted">No data: {{range $i, $m := .Missing}}{{if $i}}, {{end}}{{$m}}{{end}}</p>{{end}}
  <p class="muted">{{.Dropped}}</p>
</section>
{{end}}

{{with .Study}}
<section>
  <h2>Event study</h2>
  <div class="metrics">
    {{range .Filter}}<div class="metric"><div class="label">{{.Label}}</div><div class="value">{{.Value}}</div></div>{{end}}
    {{range .Summary}}<div class="metric"><div class="label">{{.Label}}</div><div class="value">{{.Value}}</div></div>{{end}}
  </div>
  <div class="chart-container">{{.Chart}}</div>
  <table>
    <tr><th>Day</th><th>N</th><th>AAR</th><th>Median</th><th>CAR</th><th>95% CI</th></tr>
    {{range .Stats}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
  </table>
</section>
{{end}}

<div class="footer muted">Daily returns are log returns. Confidence intervals use a normal approximation.</div>
</body>
</html>
`
