// Package export writes the dashboard view tables as CSV or XLSX.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/seenimoa/panelstudy/internal/eventstudy"
	"github.com/seenimoa/panelstudy/internal/portfolio"
	"github.com/seenimoa/panelstudy/internal/sectorindex"
)

// Format selects the export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownTable is returned when a table name does not exist in a view.
var ErrUnknownTable = errors.New("export: unknown table")

// Table is a named slice of csv-tagged records.
type Table struct {
	Name    string
	Records any
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ParseFormat accepts "csv" and "xlsx", case-insensitively. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

// Write encodes tables to w. CSV carries a single table: the one named
// table, or the first when table is empty. XLSX carries every table as a
// sheet.
func Write(w io.Writer, format Format, tables []Table, table string) error {
	if format == FormatXLSX {
		return XLSX(w, tables...)
	}
	t, err := Pick(tables, table)
	if err != nil {
		return err
	}
	return CSV(w, t)
}

// Pick returns the table called name, or the first table when name is empty.
func Pick(tables []Table, name string) (Table, error) {
	if len(tables) == 0 {
		return Table{}, ErrUnknownTable
	}
	if name == "" {
		return tables[0], nil
	}
	for _, t := range tables {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("%w %q", ErrUnknownTable, name)
}

// CSV writes t with a header row.
func CSV(w io.Writer, t Table) error {
	data, err := gocsv.MarshalBytes(t.Records)
	if err != nil {
		return fmt.Errorf("export %s: %w", t.Name, err)
	}
	_, err = w.Write(data)
	return err
}

// XLSX writes one sheet per table. The header row is bold and frozen;
// numeric cells are stored as numbers.
func XLSX(w io.Writer, tables ...Table) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, t := range tables {
		data, err := gocsv.MarshalBytes(t.Records)
		if err != nil {
			return fmt.Errorf("export %s: %w", t.Name, err)
		}
		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			return fmt.Errorf("export %s: %w", t.Name, err)
		}

		sheet := sheetName(t.Name, i)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		for r, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			values := make([]any, len(row))
			for c, v := range row {
				values[c] = cellValue(v, r == 0)
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
		}
		if len(rows) > 0 {
			if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
				return err
			}
			if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

func cellValue(v string, header bool) any {
	if header || v == "" {
		return v
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}

// sheetName trims name to the 31 characters Excel allows.
func sheetName(name string, i int) string {
	if name == "" {
		name = fmt.Sprintf("Sheet%d", i+1)
	}
	name = strings.NewReplacer("/", "_", "\\", "_", "?", "", "*", "", "[", "(", "]", ")", ":", "-").Replace(name)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// ════════════════════════════════════════════════════════════════════
// View tables
// ════════════════════════════════════════════════════════════════════

// LineRow is one ticker's growth of one dollar on a date.
type LineRow struct {
	Date   string   `csv:"date"`
	Ticker string   `csv:"ticker"`
	Growth *float64 `csv:"growth"`
}

// SectorRow is one sector index value on a date.
type SectorRow struct {
	Date   string   `csv:"date"`
	Sector string   `csv:"sector"`
	Index  float64  `csv:"index"`
	Daily  *float64 `csv:"daily_return"`
}

// Portfolio returns the tables of a simulation: value, lines, holdings.
func Portfolio(res *portfolio.Result) []Table {
	var lines []LineRow
	for _, l := range res.Lines {
		for i, g := range l.Growth {
			if i < len(res.Points) {
				lines = append(lines, LineRow{Date: res.Points[i].Date, Ticker: l.Ticker, Growth: g})
			}
		}
	}
	return []Table{
		{Name: "value", Records: nonNil(res.Points)},
		{Name: "lines", Records: nonNil(lines)},
		{Name: "holdings", Records: nonNil(res.Holdings)},
	}
}

// Sectors returns the sector index in long form plus the totals.
func Sectors(res *sectorindex.Result) []Table {
	var rows []SectorRow
	for _, s := range res.Series {
		for i, d := range res.Dates {
			if i >= len(s.Index) {
				break
			}
			row := SectorRow{Date: d, Sector: s.Sector, Index: s.Index[i]}
			if i < len(s.Daily) {
				row.Daily = s.Daily[i]
			}
			rows = append(rows, row)
		}
	}
	return []Table{
		{Name: "index", Records: nonNil(rows)},
		{Name: "totals", Records: nonNil(res.Totals)},
	}
}

// Study returns the per-day statistics, the window rows and the events.
func Study(st *eventstudy.Study) []Table {
	return []Table{
		{Name: "stats", Records: nonNil(st.Stats)},
		{Name: "windows", Records: nonNil(st.Windows.Rows)},
		{Name: "events", Records: nonNil(st.Events)},
	}
}

// nonNil keeps gocsv writing a header for empty tables.
func nonNil[T any](s []T) *[]T {
	if s == nil {
		s = []T{}
	}
	return &s
}
