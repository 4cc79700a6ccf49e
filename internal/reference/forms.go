// Package reference loads the lookup tables shown next to the dashboard:
// SEC form descriptions and the top ETFs by assets.
package reference

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/seenimoa/panelstudy/internal/infra"
)

// Form describes one SEC filing form.
type Form struct {
	Form        string `csv:"form" json:"form"`
	Category    string `csv:"category" json:"category"`
	Description string `csv:"description" json:"description"`
}

// builtinForms covers the forms that appear in the panel. It is used when
// no forms CSV has been written.
var builtinForms = []Form{
	{"10-K", "Periodic report", "Annual report with audited financial statements"},
	{"10-K/A", "Periodic report", "Amendment to an annual report"},
	{"10-Q", "Periodic report", "Quarterly report with unaudited financial statements"},
	{"10-Q/A", "Periodic report", "Amendment to a quarterly report"},
	{"8-K", "Current report", "Report of a material event such as earnings, M&A or officer changes"},
	{"8-K/A", "Current report", "Amendment to a current report"},
	{"20-F", "Foreign issuer", "Annual report of a foreign private issuer"},
	{"40-F", "Foreign issuer", "Annual report of a Canadian issuer under the multijurisdictional system"},
	{"6-K", "Foreign issuer", "Current report of a foreign private issuer"},
	{"S-1", "Registration", "Registration statement for an initial public offering"},
	{"S-3", "Registration", "Short-form registration for seasoned issuers"},
	{"S-4", "Registration", "Registration of securities issued in a business combination"},
	{"S-8", "Registration", "Registration of securities offered to employees"},
	{"424B2", "Prospectus", "Prospectus supplement for a shelf takedown"},
	{"424B4", "Prospectus", "Final prospectus with pricing information"},
	{"DEF 14A", "Proxy", "Definitive proxy statement for a shareholder meeting"},
	{"DEFA14A", "Proxy", "Additional definitive proxy soliciting material"},
	{"SC 13D", "Ownership", "Beneficial ownership above 5% with intent to influence"},
	{"SC 13G", "Ownership", "Passive beneficial ownership above 5%"},
	{"SC 13G/A", "Ownership", "Amendment to a passive ownership report"},
	{"3", "Insider", "Initial statement of beneficial ownership"},
	{"4", "Insider", "Change in beneficial ownership"},
	{"5", "Insider", "Annual statement of beneficial ownership changes"},
	{"144", "Insider", "Notice of proposed sale of restricted securities"},
	{"11-K", "Periodic report", "Annual report of an employee stock purchase or savings plan"},
	{"NT 10-K", "Late filing", "Notification of late filing of an annual report"},
	{"NT 10-Q", "Late filing", "Notification of late filing of a quarterly report"},
	{"25-NSE", "Delisting", "Exchange notice of removal from listing"},
	{"15-12B", "Deregistration", "Termination of registration of a class of securities"},
	{"SPLIT", "Corporate action", "Forward stock split (ratio above one)"},
	{"REVERSE_SPLIT", "Corporate action", "Reverse stock split (ratio below one)"},
}

// BuiltinForms returns a copy of the built-in form table.
func BuiltinForms() []Form {
	out := make([]Form, len(builtinForms))
	copy(out, builtinForms)
	return out
}

// LoadForms reads the forms CSV at path. A missing file yields the
// built-in table.
func LoadForms(path string) ([]Form, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return BuiltinForms(), nil
	}
	if err != nil {
		return nil, err
	}
	var forms []Form
	if err := gocsv.UnmarshalBytes(data, &forms); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range forms {
		forms[i].Form = strings.TrimSpace(forms[i].Form)
	}
	return forms, nil
}

// WriteForms stores forms as CSV, sorted by form.
func WriteForms(path string, forms []Form) error {
	sorted := make([]Form, len(forms))
	copy(sorted, forms)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Form < sorted[j].Form })
	data, err := gocsv.MarshalBytes(&sorted)
	if err != nil {
		return err
	}
	return infra.WriteFileAtomic(path, data)
}

// Describe returns the description of form, if known.
func Describe(forms []Form, form string) (Form, bool) {
	form = strings.ToUpper(strings.TrimSpace(form))
	for _, f := range forms {
		if strings.EqualFold(f.Form, form) {
			return f, true
		}
	}
	return Form{}, false
}
