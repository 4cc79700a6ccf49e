package sec

// --- EDGAR Submissions (data.sec.gov/submissions) ---

// edgarSubmissionsResponse is the response from the company submissions endpoint.
type edgarSubmissionsResponse struct {
	CIK            string       `json:"cik"`
	EntityType     string       `json:"entityType"`
	SIC            string       `json:"sic"`
	SICDescription string       `json:"sicDescription"`
	Name           string       `json:"name"`
	Tickers        []string     `json:"tickers"`
	Exchanges      []string     `json:"exchanges"`
	Filings        edgarFilings `json:"filings"`
}

type edgarFilings struct {
	Recent edgarFilingSet `json:"recent"`
}

// edgarFilingSet stores filings column-wise; index i across the slices is
// one filing.
type edgarFilingSet struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
}

// --- EDGAR Company Facts (XBRL) ---

// edgarCompanyFactsResponse is the response from the company facts endpoint.
type edgarCompanyFactsResponse struct {
	CIK        int                             `json:"cik"`
	EntityName string                          `json:"entityName"`
	Facts      map[string]map[string]edgarFact `json:"facts"` // taxonomy -> concept -> fact
}

type edgarFact struct {
	Label string                     `json:"label"`
	Units map[string][]edgarFactUnit `json:"units"` // unit type ("USD", "shares") -> values
}

type edgarFactUnit struct {
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Accn  string  `json:"accn"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"`
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
}

// --- CIK / Ticker Mapping ---

// edgarTickerExchange is company_tickers_exchange.json: a field list plus
// rows of [cik, name, ticker, exchange].
type edgarTickerExchange struct {
	Fields []string `json:"fields"`
	Data   [][]any  `json:"data"`
}
