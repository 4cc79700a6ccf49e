// Package panel holds the (date, ticker) keyed dataset produced by the
// pipeline, its Parquet encoding, and the per-ticker transformations that
// derive returns, split factors and filing annotations.
package panel

// Volume status sentinels. A row with a nil Volume and VolumeConfirmedAbsent
// is known to have no volume data at the source.
const (
	VolumeReported        = "reported"
	VolumeConfirmedAbsent = "confirmed_absent"
)

// SectorUnclassified marks a ticker whose sector could not be resolved
// from any source.
const SectorUnclassified = "Unclassified"

// SectorETF is the sector assigned to exchange-traded funds.
const SectorETF = "ETF"

// Row is one ticker on one trading day. Dates are YYYY-MM-DD strings so
// lexical order is chronological. Optional fields are nil when unknown.
type Row struct {
	Date   string `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY" json:"date"`
	Ticker string `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY" json:"ticker"`

	Open         float64  `parquet:"name=open, type=DOUBLE" json:"open"`
	High         float64  `parquet:"name=high, type=DOUBLE" json:"high"`
	Low          float64  `parquet:"name=low, type=DOUBLE" json:"low"`
	Close        float64  `parquet:"name=close, type=DOUBLE" json:"close"`
	AdjClose     *float64 `parquet:"name=adj_close, type=DOUBLE, repetitiontype=OPTIONAL" json:"adj_close"`
	Volume       *int64   `parquet:"name=volume, type=INT64, repetitiontype=OPTIONAL" json:"volume"`
	VolumeStatus *string  `parquet:"name=volume_status, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"volume_status"`
	Dividend     *float64 `parquet:"name=dividend, type=DOUBLE, repetitiontype=OPTIONAL" json:"dividend"`

	Ret    *float64 `parquet:"name=ret, type=DOUBLE, repetitiontype=OPTIONAL" json:"ret"`
	LogRet *float64 `parquet:"name=logret, type=DOUBLE, repetitiontype=OPTIONAL" json:"logret"`

	Sector   *string `parquet:"name=sector, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"sector"`
	Industry *string `parquet:"name=industry, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"industry"`
	CIK      *string `parquet:"name=cik, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"cik"`
	SIC      *string `parquet:"name=sic, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"sic"`
	SICDesc  *string `parquet:"name=sic_desc, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"sic_desc"`

	MarketCap         *float64 `parquet:"name=market_cap, type=DOUBLE, repetitiontype=OPTIONAL" json:"market_cap"`
	SharesOutstanding *float64 `parquet:"name=shares_outstanding, type=DOUBLE, repetitiontype=OPTIONAL" json:"shares_outstanding"`
	FloatShares       *float64 `parquet:"name=float_shares, type=DOUBLE, repetitiontype=OPTIONAL" json:"float_shares"`
	FreeFloat         *float64 `parquet:"name=free_float, type=DOUBLE, repetitiontype=OPTIONAL" json:"free_float"`
	PublicFloatUSD    *float64 `parquet:"name=public_float_usd, type=DOUBLE, repetitiontype=OPTIONAL" json:"public_float_usd"`

	SplitRatio        *float64 `parquet:"name=split_ratio, type=DOUBLE, repetitiontype=OPTIONAL" json:"split_ratio"`
	IsSplitDay        bool     `parquet:"name=is_split_day, type=BOOLEAN" json:"is_split_day"`
	IsReverseSplitDay bool     `parquet:"name=is_reverse_split_day, type=BOOLEAN" json:"is_reverse_split_day"`
	SplitCumFactor    float64  `parquet:"name=split_cum_factor, type=DOUBLE" json:"split_cum_factor"`

	FilingForm       *string `parquet:"name=filing_form, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"filing_form"`
	LastFilingDate   *string `parquet:"name=last_filing_date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"last_filing_date"`
	IsFilingDay      bool    `parquet:"name=is_filing_day, type=BOOLEAN" json:"is_filing_day"`
	DaysSinceFiling  *int32  `parquet:"name=days_since_filing, type=INT32, repetitiontype=OPTIONAL" json:"days_since_filing"`
	RecentForm       *string `parquet:"name=recent_form, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"recent_form"`
	RecentFilingDate *string `parquet:"name=recent_filing_date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"recent_filing_date"`
}

// Key identifies a row.
type Key struct {
	Date   string
	Ticker string
}

// Key returns the (date, ticker) key of r.
func (r *Row) Key() Key { return Key{Date: r.Date, Ticker: r.Ticker} }

// F64 returns a pointer to v.
func F64(v float64) *float64 { return &v }

// I64 returns a pointer to v.
func I64(v int64) *int64 { return &v }

// I32 returns a pointer to v.
func I32(v int32) *int32 { return &v }

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns *p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
