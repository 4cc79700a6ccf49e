package panel

import (
	"strings"

	"github.com/seenimoa/panelstudy/pkg/models"
)

// FromHistory converts a price history into sorted panel rows with split
// annotations and adjusted closes. Returns are left to ComputeReturns.
func FromHistory(h *models.PriceHistory) []Row {
	if h == nil {
		return nil
	}
	ticker := strings.ToUpper(strings.TrimSpace(h.Ticker))
	rows := make([]Row, 0, len(h.Bars))
	for _, b := range h.Bars {
		r := Row{
			Date:           models.FormatDate(b.Date),
			Ticker:         ticker,
			Open:           b.Open,
			High:           b.High,
			Low:            b.Low,
			Close:          b.Close,
			SplitCumFactor: 1,
		}
		if b.HasVolume {
			r.Volume = I64(b.Volume)
			r.VolumeStatus = Str(VolumeReported)
		}
		rows = append(rows, r)
	}
	rows = Dedupe(rows)
	ApplySplits(rows, h.Splits, h.Dividends)
	return rows
}
