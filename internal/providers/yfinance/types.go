package yfinance

// --- Yahoo Finance API response types ---

// yfChartResponse wraps the v8 chart API response.
type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Events     *yfEvents    `json:"events"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol         string `json:"symbol"`
	Currency       string `json:"currency"`
	InstrumentType string `json:"instrumentType"`
	ExchangeName   string `json:"exchangeName"`
	GMTOffset      int64  `json:"gmtoffset"`
}

// yfEvents holds corporate actions keyed by their unix timestamp string.
type yfEvents struct {
	Dividends map[string]yfDividendEvent `json:"dividends"`
	Splits    map[string]yfSplitEvent    `json:"splits"`
}

type yfDividendEvent struct {
	Amount float64 `json:"amount"`
	Date   int64   `json:"date"`
}

type yfSplitEvent struct {
	Date        int64   `json:"date"`
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
	SplitRatio  string  `json:"splitRatio"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

// yfQuoteSummaryResponse wraps the v10 quoteSummary API response.
type yfQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []yfQuoteSummaryResult `json:"result"`
		Error  *yfError               `json:"error"`
	} `json:"quoteSummary"`
}

type yfQuoteSummaryResult struct {
	AssetProfile         *yfAssetProfile         `json:"assetProfile"`
	Price                *yfPrice                `json:"price"`
	DefaultKeyStatistics *yfDefaultKeyStatistics `json:"defaultKeyStatistics"`
}

type yfFinVal struct {
	Raw float64 `json:"raw"`
	Fmt string  `json:"fmt"`
}

type yfAssetProfile struct {
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Country  string `json:"country"`
}

type yfPrice struct {
	Symbol    string   `json:"symbol"`
	QuoteType string   `json:"quoteType"`
	ShortName string   `json:"shortName"`
	LongName  string   `json:"longName"`
	MarketCap yfFinVal `json:"marketCap"`
}

type yfDefaultKeyStatistics struct {
	SharesOutstanding yfFinVal `json:"sharesOutstanding"`
	FloatShares       yfFinVal `json:"floatShares"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
