// Package thin projects the panel onto the serving artifact read by the
// dashboard: a fixed column set over a trailing date window, with a
// per-ticker trading-day index.
package thin

import (
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/panel"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// Row is one ticker-day of the serving artifact. TIdx numbers a ticker's
// rows 0..N-1 in date order. LogRet is copied from the panel, so a
// ticker's first in-window row (TIdx 0) keeps the return against its
// previous panel day, which the window cut off. It is null only when the
// panel has no earlier row.
type Row struct {
	Date              string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY" json:"date"`
	Ticker            string   `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY" json:"ticker"`
	TIdx              int32    `parquet:"name=tidx, type=INT32" json:"tidx"`
	Close             float64  `parquet:"name=close, type=DOUBLE" json:"close"`
	LogRet            *float64 `parquet:"name=logret, type=DOUBLE, repetitiontype=OPTIONAL" json:"logret"`
	FilingForm        *string  `parquet:"name=filing_form, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"filing_form"`
	Sector            *string  `parquet:"name=sector, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"sector"`
	IsSplitDay        bool     `parquet:"name=is_split_day, type=BOOLEAN" json:"is_split_day"`
	IsReverseSplitDay bool     `parquet:"name=is_reverse_split_day, type=BOOLEAN" json:"is_reverse_split_day"`
	MarketCap         *float64 `parquet:"name=market_cap, type=DOUBLE, repetitiontype=OPTIONAL" json:"market_cap"`
	Year              int32    `parquet:"name=year, type=INT32" json:"year"`
}

// Window selects the dates kept by Project.
type Window struct {
	Years int    // trailing years; values below 1 mean 3
	End   string // YYYY-MM-DD; empty means the panel's last date
}

// Bounds resolves the window against the panel's last date. The start is
// exclusive of the day exactly Years before End.
func (w Window) Bounds(lastDate string) (from, to string, err error) {
	years := w.Years
	if years < 1 {
		years = 3
	}
	to = w.End
	if to == "" {
		to = lastDate
	}
	end, err := models.ParseDate(to)
	if err != nil {
		return "", "", fmt.Errorf("window end: %w", err)
	}
	return models.FormatDate(end.AddDate(-years, 0, 1)), models.FormatDate(end), nil
}

// Project builds the serving rows from panel rows. Tickers are
// upper-cased (a collision keeps the last row), rows outside the window
// are dropped, and tidx is assigned over what remains, so it is
// contiguous within the artifact.
func Project(rows []panel.Row, w Window) ([]Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	src := make([]panel.Row, len(rows))
	copy(src, rows)
	panel.NormalizeTickers(src)
	src = panel.Dedupe(src)

	_, last := panel.DateRange(src)
	from, to, err := w.Bounds(last)
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(src))
	var prev string
	var tidx int32
	for i := range src {
		r := &src[i]
		if r.Date < from || r.Date > to || r.Ticker == "" {
			continue
		}
		if r.Ticker != prev {
			prev, tidx = r.Ticker, 0
		}
		out = append(out, Row{
			Date:              r.Date,
			Ticker:            r.Ticker,
			TIdx:              tidx,
			Close:             r.Close,
			LogRet:            r.LogRet,
			FilingForm:        filingForm(r),
			Sector:            panel.Str(strings.TrimSpace(panel.Deref(r.Sector))),
			IsSplitDay:        r.IsSplitDay,
			IsReverseSplitDay: r.IsReverseSplitDay,
			MarketCap:         r.MarketCap,
			Year:              year(r.Date),
		})
		tidx++
	}
	return out, nil
}

// filingForm keeps the form only on the filing day itself.
func filingForm(r *panel.Row) *string {
	f := strings.TrimSpace(panel.Deref(r.FilingForm))
	if f == "" {
		return nil
	}
	if r.LastFilingDate != nil && *r.LastFilingDate != r.Date {
		return nil
	}
	return &f
}

func year(date string) int32 {
	t, err := models.ParseDate(date)
	if err != nil {
		return 0
	}
	return int32(t.Year())
}

// CheckTIdx verifies that rows sorted by ticker and date carry tidx
// 0..N-1 per ticker, strictly increasing with date.
func CheckTIdx(rows []Row) error {
	for i := range rows {
		first := i == 0 || rows[i-1].Ticker != rows[i].Ticker
		if first {
			if rows[i].TIdx != 0 {
				return fmt.Errorf("%s starts at tidx %d", rows[i].Ticker, rows[i].TIdx)
			}
			continue
		}
		if rows[i].Ticker < rows[i-1].Ticker {
			return fmt.Errorf("rows not sorted by ticker at %d", i)
		}
		if rows[i].Date <= rows[i-1].Date {
			return fmt.Errorf("%s: date %s does not follow %s", rows[i].Ticker, rows[i].Date, rows[i-1].Date)
		}
		if rows[i].TIdx != rows[i-1].TIdx+1 {
			return fmt.Errorf("%s: tidx jumps from %d to %d", rows[i].Ticker, rows[i-1].TIdx, rows[i].TIdx)
		}
	}
	return nil
}

// Read loads a thin artifact.
func Read(path string) ([]Row, error) {
	return panel.ReadFile[Row](path)
}

// Write stores a thin artifact.
func Write(path string, rows []Row) error {
	return panel.WriteFile(path, rows)
}

// Build projects the panel at inPath and writes the artifact to outPath.
// It returns the number of rows written.
func Build(inPath, outPath string, w Window) (int, error) {
	rows, err := panel.Read(inPath)
	if err != nil {
		return 0, err
	}
	out, err := Project(rows, w)
	if err != nil {
		return 0, err
	}
	if err := CheckTIdx(out); err != nil {
		return 0, err
	}
	return len(out), Write(outPath, out)
}

// TickerRecord is one line of the ticker universe CSV.
type TickerRecord struct {
	Ticker string `csv:"ticker"`
}

// Universe returns the distinct tickers of rows, sorted.
func Universe(rows []Row) []TickerRecord {
	var out []TickerRecord
	for i := range rows {
		if i == 0 || rows[i].Ticker != rows[i-1].Ticker {
			out = append(out, TickerRecord{Ticker: rows[i].Ticker})
		}
	}
	return out
}

// WriteUniverse writes the ticker universe CSV.
func WriteUniverse(path string, rows []Row) (int, error) {
	recs := Universe(rows)
	data, err := gocsv.MarshalBytes(&recs)
	if err != nil {
		return 0, err
	}
	return len(recs), infra.WriteFileAtomic(path, data)
}
