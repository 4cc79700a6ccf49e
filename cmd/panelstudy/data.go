package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seenimoa/panelstudy/internal/backfill"
	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/pipeline"
	"github.com/seenimoa/panelstudy/internal/providers"
	"github.com/seenimoa/panelstudy/internal/reference"
	"github.com/seenimoa/panelstudy/internal/thin"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// newEnv builds the pipeline environment shared by pipeline and backfill.
func newEnv() (*pipeline.Env, error) {
	sources, err := providers.NewRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("register sources: %w", err)
	}
	return pipeline.NewEnv(cfg, sources, logger)
}

// --- Pipeline Command ---

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Build the panel dataset",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline stages in order",
	Long: `Run the pipeline stages in order:
  tickers → prices → fundamentals → shares → splits → filings → assemble

A stage whose output exists is skipped unless it is rebuilt or still has
pending keys in its fetch ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stages, _ := cmd.Flags().GetStringSlice("stages")
		rebuild, _ := cmd.Flags().GetStringSlice("rebuild")
		if len(stages) == 0 {
			stages = cfg.Pipeline.Stages
		}
		opts, err := pipeline.ParseRunOptions(stages, rebuild)
		if err != nil {
			return err
		}

		env, err := newEnv()
		if err != nil {
			return err
		}
		if tickers, _ := cmd.Flags().GetStringSlice("tickers"); len(tickers) > 0 {
			env.Tickers = tickers
		}
		if n, _ := cmd.Flags().GetInt("max-tickers"); n > 0 {
			env.MaxTickers = n
		}
		env.RefreshFilings, _ = cmd.Flags().GetBool("refresh-filings")

		ctx, cancel := signalContext(cmd)
		defer cancel()

		manifestPath := cfg.Data.Path(cfg.Data.ManifestFile)
		m, err := pipeline.NewRunner(env).Run(ctx, opts, manifestPath)
		if m != nil {
			printManifest(m)
		}
		return err
	},
}

func init() {
	pipelineRunCmd.Flags().StringSlice("stages", nil, "stages to enable (default: all)")
	pipelineRunCmd.Flags().StringSlice("rebuild", nil, "stages to rebuild even if their output exists (\"all\" for every stage)")
	pipelineRunCmd.Flags().StringSlice("tickers", nil, "explicit ticker universe instead of the SEC listing")
	pipelineRunCmd.Flags().Int("max-tickers", 0, "cap on the universe size (0 = config value)")
	pipelineRunCmd.Flags().Bool("refresh-filings", false, "check EDGAR feeds for filings newer than the cache")
	pipelineCmd.AddCommand(pipelineRunCmd)
}

func printManifest(m *pipeline.Manifest) {
	fmt.Printf("Run %s  (%s → %s)\n", m.RunID, m.From, m.To)
	for _, s := range m.Stages {
		line := fmt.Sprintf("  %-13s %-9s", s.Name, s.Status)
		if s.Status == pipeline.StatusRan {
			line += fmt.Sprintf(" %8d rows  %6dms", s.Rows, s.DurationMS)
		}
		if s.Fetch != nil {
			line += fmt.Sprintf("  fetch %+v", *s.Fetch)
		}
		if s.Error != "" {
			line += "  " + s.Error
		}
		fmt.Println(line)
	}
}

// --- Backfill Command ---

var backfillCmd = &cobra.Command{
	Use:   "backfill [sector|market_cap|volume|etfs|all]",
	Short: "Patch gaps in the panel and write a new version",
	Long: `Apply a backfill pass to the latest panel version and write the result
as the next version (panel_v1 → panel_v2) with a YAML report beside it.
"all" chains every pass, each reading the previous pass's output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var kinds []backfill.Kind
		if strings.EqualFold(args[0], "all") {
			kinds = backfill.AllKinds()
		} else {
			k, err := backfill.ParseKind(args[0])
			if err != nil {
				return err
			}
			kinds = []backfill.Kind{k}
		}

		env, err := newEnv()
		if err != nil {
			return err
		}
		fetch, _ := cmd.Flags().GetBool("fetch")
		deps := backfill.Deps{
			Env:        env,
			Fetch:      fetch,
			ETFTickers: reference.Symbols(cfg.Data.Path(cfg.Data.ETFsFile)),
		}

		in, _ := cmd.Flags().GetString("in")
		if in == "" {
			in = backfill.LatestVersion(env.PanelPath)
		}

		ctx, cancel := signalContext(cmd)
		defer cancel()

		for _, k := range kinds {
			out := backfill.NextVersionPath(in)
			rep, err := backfill.Run(ctx, k, in, out, deps)
			if err != nil {
				return err
			}
			fmt.Printf("%-11s %s → %s  gap %d → %d  (filled %d, sentinel %d)\n",
				k, in, out, rep.GapBefore, rep.GapAfter, rep.Filled, rep.Sentinel)
			in = out
		}
		return nil
	},
}

func init() {
	backfillCmd.Flags().String("in", "", "input panel (default: latest version)")
	backfillCmd.Flags().Bool("fetch", false, "call sources for keys missing from the raw cache")
}

// --- Thin Command ---

var thinCmd = &cobra.Command{
	Use:   "thin",
	Short: "Project the panel onto the dashboard serving file",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _ := cmd.Flags().GetString("in")
		if in == "" {
			in = backfill.LatestVersion(cfg.Data.Path(cfg.Data.PanelFile))
		}
		w := thin.Window{Years: cfg.Thin.Years, End: cfg.Thin.End}
		if y, _ := cmd.Flags().GetInt("years"); y > 0 {
			w.Years = y
		}

		out := cfg.Data.Path(cfg.Data.ThinFile)
		n, err := thin.Build(in, out, w)
		if err != nil {
			return err
		}
		logger.Info().Str("input", in).Str("output", out).Int("rows", n).Msg("thin artifact written")
		fmt.Printf("%s → %s  (%d rows)\n", in, out, n)
		return writeTickers(out)
	},
}

func init() {
	thinCmd.Flags().String("in", "", "input panel (default: latest version)")
	thinCmd.Flags().Int("years", 0, "trailing years to keep (0 = config value)")
}

// --- Tickers Command ---

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "Write the ticker universe CSV from the serving file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeTickers(cfg.Data.Path(cfg.Data.ThinFile))
	},
}

func writeTickers(thinPath string) error {
	rows, err := thin.Read(thinPath)
	if err != nil {
		return err
	}
	out := cfg.Data.Path(cfg.Data.TickersFile)
	n, err := thin.WriteUniverse(out, rows)
	if err != nil {
		return err
	}
	fmt.Printf("%s  (%d tickers)\n", out, n)
	return nil
}

// --- Reference Command ---

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Write the reference tables (filing forms, top ETFs)",
}

var referenceFormsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Write the SEC filing form descriptions CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cfg.Data.Path(cfg.Data.FormsFile)
		forms := reference.BuiltinForms()
		if err := reference.WriteForms(out, forms); err != nil {
			return err
		}
		fmt.Printf("%s  (%d forms)\n", out, len(forms))
		return nil
	},
}

var referenceETFsCmd = &cobra.Command{
	Use:   "etfs",
	Short: "Scrape the largest ETFs by assets and write them as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		ctx, cancel := signalContext(cmd)
		defer cancel()

		client := infra.NewHTTPClient(providers.HTTPOptions(cfg))
		etfs, err := reference.ScrapeTopETFs(ctx, client, cfg.Sources.ETFListURL, limit)
		if err != nil {
			return err
		}
		out := cfg.Data.Path(cfg.Data.ETFsFile)
		if err := reference.WriteETFs(out, etfs); err != nil {
			return err
		}
		fmt.Printf("%s  (%d ETFs)\n", out, len(etfs))
		return nil
	},
}

func init() {
	referenceETFsCmd.Flags().Int("limit", 100, "number of ETFs to keep")
	referenceCmd.AddCommand(referenceFormsCmd)
	referenceCmd.AddCommand(referenceETFsCmd)
}
