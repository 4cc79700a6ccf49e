package sec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// FetchSubmissions returns the SIC classification and recent filings of a
// company. Filings are sorted by filing date, oldest first.
func (p *Provider) FetchSubmissions(ctx context.Context, cik string) (*models.Submissions, error) {
	if err := provider.ValidateParams("cik", cik); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/submissions/CIK%s.json", p.dataURL, padCIK(cik))

	body, err := p.GetCached(ctx, url, p.headers("application/json"))
	if err != nil {
		if errors.Is(err, infra.ErrNotFound) {
			return nil, provider.NoData(cik, "no submissions")
		}
		return nil, fmt.Errorf("sec submissions %s: %w", cik, err)
	}
	var resp edgarSubmissionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("sec submissions %s: parse JSON: %w", cik, err)
	}

	return &models.Submissions{
		CIK:            NormalizeCIK(cik),
		Name:           resp.Name,
		SIC:            strings.TrimSpace(resp.SIC),
		SICDescription: strings.TrimSpace(resp.SICDescription),
		Tickers:        resp.Tickers,
		Filings:        parseFilingSet(resp.Filings.Recent),
		FetchedAt:      time.Now().UTC(),
	}, nil
}

func parseFilingSet(set edgarFilingSet) []models.Filing {
	n := len(set.Form)
	if len(set.FilingDate) < n {
		n = len(set.FilingDate)
	}
	out := make([]models.Filing, 0, n)
	for i := 0; i < n; i++ {
		d, err := models.ParseDate(set.FilingDate[i])
		if err != nil || strings.TrimSpace(set.Form[i]) == "" {
			continue
		}
		f := models.Filing{Form: strings.TrimSpace(set.Form[i]), FilingDate: d}
		if i < len(set.AccessionNumber) {
			f.Accession = set.AccessionNumber[i]
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FilingDate.Before(out[j].FilingDate) })
	return out
}
