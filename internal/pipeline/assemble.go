package pipeline

import (
	"context"
	"fmt"

	"github.com/seenimoa/panelstudy/internal/panel"
	"github.com/seenimoa/panelstudy/pkg/models"
)

type assembleStage struct{}

func (assembleStage) Name() string { return StageAssemble }
func (assembleStage) Output(env *Env) string { return env.PanelPath }

// Run merges the stage outputs into the panel. Prices are required; any
// other missing output leaves its columns null.
func (s assembleStage) Run(ctx context.Context, env *Env) (Artifact, error) {
	out := s.Output(env)
	ids, err := ReadUniverse(env)
	if err != nil {
		return Artifact{Path: out}, err
	}
	rows, err := panel.Read(env.StagePath(pricesFile))
	if err != nil {
		return Artifact{Path: out}, fmt.Errorf("read prices (run the prices stage first): %w", err)
	}
	in, err := loadInputs(env)
	if err != nil {
		return Artifact{Path: out}, err
	}

	rows, filings, err := Assemble(ctx, rows, ids, in)
	if err != nil {
		return Artifact{Path: out}, err
	}
	if filings.Shifted > 0 || filings.OutOfRange > 0 {
		env.Log.Info().
			Int("shifted", filings.Shifted).
			Int("out_of_range", filings.OutOfRange).
			Msg("filings booked off their filing date")
	}
	if err := panel.Write(out, rows); err != nil {
		return Artifact{Path: out}, err
	}
	return Artifact{Path: out, Rows: len(rows)}, nil
}

// Inputs are the per-key lookups assemble joins onto price rows.
type Inputs struct {
	Profiles    map[string]*models.Profile       // by ticker
	Actions     map[string]*models.Actions       // by ticker
	Shares      map[string]*models.SharesHistory // by CIK
	Submissions map[string]*models.Submissions   // by CIK
}

func loadInputs(env *Env) (Inputs, error) {
	var in Inputs

	profs, err := readOptional[ProfileRecord](env, profilesFile)
	if err != nil {
		return in, err
	}
	in.Profiles = make(map[string]*models.Profile, len(profs))
	for _, p := range profs {
		in.Profiles[p.Ticker] = p.Profile()
	}

	acts, err := readOptional[ActionRecord](env, actionsFile)
	if err != nil {
		return in, err
	}
	in.Actions = actionsByTicker(acts)

	shares, err := readOptional[SharesRecord](env, sharesFile)
	if err != nil {
		return in, err
	}
	in.Shares = sharesByCIK(shares)

	companies, err := readOptional[CompanyRecord](env, companiesFile)
	if err != nil {
		return in, err
	}
	filings, err := readOptional[FilingRecord](env, filingsFile)
	if err != nil {
		return in, err
	}
	in.Submissions = submissionsByCIK(companies, filings)
	return in, nil
}

// Assemble joins actions, profiles, shares and filings onto price rows
// and derives returns and market cap. The result is sorted by ticker and
// date with a unique key. The booking totals count filings that did not
// land on their own filing date.
func Assemble(ctx context.Context, rows []panel.Row, ids []models.CompanyID, in Inputs) ([]panel.Row, panel.FilingBooking, error) {
	var booking panel.FilingBooking
	cikOf := make(map[string]string, len(ids))
	for _, id := range ids {
		cikOf[normTicker(id.Ticker)] = id.CIK
	}

	panel.NormalizeTickers(rows)
	rows = panel.Dedupe(rows)
	for ticker, g := range panel.GroupByTicker(rows) {
		if err := ctx.Err(); err != nil {
			return nil, booking, err
		}
		var splits []models.Split
		var divs []models.Dividend
		if a := in.Actions[ticker]; a != nil {
			splits, divs = a.Splits, a.Dividends
		}
		panel.ApplySplits(g, splits, divs)

		prof := in.Profiles[ticker]
		panel.AttachProfile(g, prof)

		cik := cikOf[ticker]
		if sub := in.Submissions[cik]; cik != "" && sub != nil {
			panel.AttachSubmissions(g, sub)
			booking.Add(panel.AttachFilings(g, sub.Filings))
		} else if cik != "" {
			cikPtr := panel.Str(cik)
			for i := range g {
				g[i].CIK = cikPtr
			}
		}
		var hist *models.SharesHistory
		if cik != "" {
			hist = in.Shares[cik]
		}
		panel.AttachShares(g, hist, prof)
	}

	panel.ComputeReturns(rows)
	panel.ComputeMarketCap(rows, true)
	if err := panel.Validate(rows); err != nil {
		return nil, booking, fmt.Errorf("assembled panel: %w", err)
	}
	return rows, booking, nil
}
