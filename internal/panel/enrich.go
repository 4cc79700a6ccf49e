package panel

import (
	"sort"
	"strings"

	"github.com/seenimoa/panelstudy/pkg/models"
)

// AttachProfile copies sector and industry onto one ticker's rows. Empty
// profile fields leave existing values alone.
func AttachProfile(rows []Row, prof *models.Profile) {
	if prof == nil {
		return
	}
	sector := Str(strings.TrimSpace(prof.Sector))
	industry := Str(strings.TrimSpace(prof.Industry))
	for i := range rows {
		if sector != nil {
			rows[i].Sector = sector
		}
		if industry != nil {
			rows[i].Industry = industry
		}
	}
}

// AttachSubmissions copies the SEC identity (CIK, SIC) and the snapshot of
// the latest filing onto one ticker's rows.
func AttachSubmissions(rows []Row, sub *models.Submissions) {
	if sub == nil {
		return
	}
	cik, sic, desc := Str(sub.CIK), Str(sub.SIC), Str(sub.SICDescription)
	var form, date *string
	if latest, ok := sub.Latest(); ok {
		form = Str(latest.Form)
		date = Str(models.FormatDate(latest.FilingDate))
	}
	for i := range rows {
		rows[i].CIK, rows[i].SIC, rows[i].SICDesc = cik, sic, desc
		rows[i].RecentForm, rows[i].RecentFilingDate = form, date
	}
}

// FilingBooking counts filings AttachFilings could not place on their own
// filing date.
type FilingBooking struct {
	// Shifted filings were dated on a non-trading day and booked on the
	// next trading row.
	Shifted int `json:"shifted"`
	// OutOfRange filings fall before the first or after the last row.
	OutOfRange int `json:"out_of_range"`
}

// Add accumulates o into b.
func (b *FilingBooking) Add(o FilingBooking) {
	b.Shifted += o.Shifted
	b.OutOfRange += o.OutOfRange
}

// AttachFilings annotates one ticker's sorted rows with its filing history.
// A filing is booked on the row of its filing date, or on the next trading
// row when it was filed on a weekend or holiday. When several filings land
// on one row the earliest (by date, then accession) wins. LastFilingDate
// and DaysSinceFiling are as-of values over every filing on or before the
// row date and keep the true filing date.
func AttachFilings(rows []Row, filings []models.Filing) FilingBooking {
	var b FilingBooking
	if len(rows) == 0 {
		return b
	}
	fs := append([]models.Filing(nil), filings...)
	sort.SliceStable(fs, func(i, j int) bool {
		if !fs[i].FilingDate.Equal(fs[j].FilingDate) {
			return fs[i].FilingDate.Before(fs[j].FilingDate)
		}
		return fs[i].Accession < fs[j].Accession
	})

	booked := make(map[int]string, len(fs))
	for _, f := range fs {
		if f.Form == "" {
			continue
		}
		d := models.FormatDate(f.FilingDate)
		at := rowOnOrAfter(rows, d)
		if at < 0 {
			b.OutOfRange++
			continue
		}
		if rows[at].Date != d {
			b.Shifted++
		}
		if _, ok := booked[at]; !ok {
			booked[at] = f.Form
		}
	}

	j := 0
	var last string
	for i := range rows {
		r := &rows[i]
		for j < len(fs) && models.FormatDate(fs[j].FilingDate) <= r.Date {
			last = models.FormatDate(fs[j].FilingDate)
			j++
		}
		r.FilingForm, r.IsFilingDay = nil, false
		if form, ok := booked[i]; ok {
			r.FilingForm = Str(form)
			r.IsFilingDay = true
		}
		r.LastFilingDate, r.DaysSinceFiling = nil, nil
		if last != "" {
			r.LastFilingDate = Str(last)
			if n, err := models.DaysBetween(last, r.Date); err == nil {
				r.DaysSinceFiling = I32(int32(n))
			}
		}
	}
	return b
}

// AttachShares fills shares_outstanding and public_float_usd by carrying
// the latest reported value on or before each row date. When the SEC
// series has no outstanding-shares coverage the profile snapshot is used
// for every row. float_shares comes from the profile; free_float is
// float_shares / shares_outstanding when that ratio lies in (0, 1].
func AttachShares(rows []Row, hist *models.SharesHistory, prof *models.Profile) {
	var outstanding, public []models.SharesPoint
	if hist != nil {
		outstanding, public = hist.Outstanding, hist.PublicFloatUSD
	}
	var snapShares, snapFloat *float64
	if prof != nil {
		if prof.SharesOutstanding > 0 {
			snapShares = F64(prof.SharesOutstanding)
		}
		if prof.FloatShares > 0 {
			snapFloat = F64(prof.FloatShares)
		}
	}

	for i := range rows {
		r := &rows[i]
		if len(outstanding) > 0 {
			r.SharesOutstanding = asOf(outstanding, r.Date)
		} else if snapShares != nil {
			r.SharesOutstanding = snapShares
		}
		if v := asOf(public, r.Date); v != nil {
			r.PublicFloatUSD = v
		}
		if snapFloat != nil {
			r.FloatShares = snapFloat
		}
		r.FreeFloat = nil
		if r.FloatShares != nil && r.SharesOutstanding != nil && *r.SharesOutstanding > 0 {
			if ff := *r.FloatShares / *r.SharesOutstanding; ff > 0 && ff <= 1 {
				r.FreeFloat = F64(ff)
			}
		}
	}
}

// asOf returns the value of the last point dated on or before date.
// Points must be sorted by date.
func asOf(points []models.SharesPoint, date string) *float64 {
	i := sort.Search(len(points), func(i int) bool {
		return models.FormatDate(points[i].Date) > date
	})
	if i == 0 {
		return nil
	}
	return F64(points[i-1].Value)
}

// ComputeMarketCap sets market_cap = close × shares_outstanding. With
// overwrite false only rows lacking a market cap are touched. It returns
// the number of rows written.
func ComputeMarketCap(rows []Row, overwrite bool) int {
	n := 0
	for i := range rows {
		r := &rows[i]
		if r.MarketCap != nil && !overwrite {
			continue
		}
		if r.SharesOutstanding == nil || *r.SharesOutstanding <= 0 || r.Close <= 0 {
			continue
		}
		r.MarketCap = F64(r.Close * *r.SharesOutstanding)
		n++
	}
	return n
}

// MarkVolume sets VolumeStatus to reported on rows that carry a volume.
func MarkVolume(rows []Row) {
	for i := range rows {
		if rows[i].Volume != nil {
			rows[i].VolumeStatus = Str(VolumeReported)
		}
	}
}
