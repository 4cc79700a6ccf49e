package sec

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
	"github.com/seenimoa/panelstudy/pkg/models"
)

// FetchLatestFilings reads the EDGAR company Atom feed and returns up to
// count filings, newest first. The pipeline uses it to detect companies
// with filings newer than their cached submissions.
func (p *Provider) FetchLatestFilings(ctx context.Context, cik string, count int) ([]models.Filing, error) {
	if err := provider.ValidateParams("cik", cik); err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 40
	}
	url := fmt.Sprintf(
		"%s/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=&dateb=&owner=include&count=%d&output=atom",
		p.wwwURL, padCIK(cik), count,
	)

	body, err := p.Client().Get(ctx, url, p.headers("application/atom+xml"))
	if err != nil {
		if errors.Is(err, infra.ErrNotFound) {
			return nil, provider.NoData(cik, "no filing feed")
		}
		return nil, fmt.Errorf("sec feed %s: %w", cik, err)
	}
	feed, err := p.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("sec feed %s: parse: %w", cik, err)
	}

	out := make([]models.Filing, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.UpdatedParsed == nil || len(item.Categories) == 0 {
			continue
		}
		out = append(out, models.Filing{
			Form:       strings.TrimSpace(item.Categories[0]),
			FilingDate: localDay(*item.UpdatedParsed),
			Accession:  accessionFromID(item.GUID),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FilingDate.After(out[j].FilingDate) })
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

// localDay keeps the calendar date in the feed's own time zone.
func localDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// accessionFromID extracts the accession number from an entry id such as
// "urn:tag:sec.gov,2008:accession-number=0000320193-24-000123".
func accessionFromID(id string) string {
	const marker = "accession-number="
	if i := strings.Index(id, marker); i >= 0 {
		return id[i+len(marker):]
	}
	return ""
}
