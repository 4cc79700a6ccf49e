package panel

import "math"

// ComputeReturns fills Ret and LogRet from AdjClose within each ticker's
// date-ordered sequence. Rows must be sorted by ticker, then date. The
// first row of a ticker, and any row where either price is missing or
// non-positive, gets nil returns.
func ComputeReturns(rows []Row) {
	for i := range rows {
		rows[i].Ret, rows[i].LogRet = nil, nil
		if i == 0 || rows[i-1].Ticker != rows[i].Ticker {
			continue
		}
		prev, cur := rows[i-1].AdjClose, rows[i].AdjClose
		if prev == nil || cur == nil || *prev <= 0 || *cur <= 0 {
			continue
		}
		if math.IsNaN(*prev) || math.IsNaN(*cur) {
			continue
		}
		ratio := *cur / *prev
		rows[i].Ret = F64(ratio - 1)
		rows[i].LogRet = F64(math.Log(ratio))
	}
}
