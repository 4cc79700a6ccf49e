package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/panelstudy/api"
	"github.com/seenimoa/panelstudy/internal/backfill"
	"github.com/seenimoa/panelstudy/internal/config"
	"github.com/seenimoa/panelstudy/internal/pipeline"
	"github.com/seenimoa/panelstudy/internal/store"
)

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard and its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		noUI, _ := cmd.Flags().GetBool("no-ui")
		watch := cfg.API.Watch
		if cmd.Flags().Changed("watch") {
			watch, _ = cmd.Flags().GetBool("watch")
		}
		if p, _ := cmd.Flags().GetInt("port"); p > 0 {
			cfg.API.Port = p
		}

		st := store.New(cfg.Data.Path(cfg.Data.ThinFile), store.Options{
			LookbackDays:    cfg.Dashboard.LookbackDays,
			SearchMinLength: cfg.Dashboard.SearchMinLength,
			SearchLimit:     cfg.Dashboard.SearchLimit,
		}, logger)
		if ds, err := st.Load(); err != nil {
			// The server still starts; queries answer 503 until a reload.
			logger.Warn().Err(err).Str("path", st.Path()).Msg("dataset not loaded")
		} else {
			logger.Info().Str("availability", ds.Availability()).Msg("dataset loaded")
		}

		srv := api.NewServer(cfg, st, logger, api.Options{Version: version, ServeUI: !noUI})

		ctx, cancel := signalContext(cmd)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(ctx) })
		if watch {
			g.Go(func() error {
				// A failed watcher leaves the server running on the loaded snapshot.
				if err := st.Watch(ctx, srv.NotifyReload); err != nil {
					logger.Warn().Err(err).Msg("dataset watcher stopped")
				}
				return nil
			})
		}
		fmt.Printf("Serving panelstudy on http://%s\n", cfg.API.Addr())
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (0 = config value)")
	serveCmd.Flags().Bool("watch", true, "reload the serving file when it changes")
	serveCmd.Flags().Bool("no-ui", false, "serve the API only")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, source settings and the last pipeline run",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  panelstudy — Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Data dir:      %s\n", cfg.Data.Dir)
		fmt.Printf("    Panel:         %s\n", backfill.LatestVersion(cfg.Data.Path(cfg.Data.PanelFile)))
		fmt.Printf("    Serving file:  %s\n", cfg.Data.Path(cfg.Data.ThinFile))
		fmt.Printf("    History:       %d years (thin: %d)\n", cfg.Pipeline.HistoryYears, cfg.Thin.Years)
		fmt.Printf("    API Server:    %s\n", cfg.API.Addr())
		fmt.Println()

		fmt.Println("  Source settings:")
		for _, k := range config.CheckKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}
		fmt.Println()

		fmt.Println("  Last pipeline run:")
		m, err := pipeline.LoadManifest(cfg.Data.Path(cfg.Data.ManifestFile))
		if err != nil {
			fmt.Println("    none")
		} else {
			fmt.Printf("    %s  finished %s\n", m.RunID, m.FinishedAt.Format("2006-01-02 15:04:05"))
			for _, s := range m.Stages {
				fmt.Printf("    %-13s %s\n", s.Name, s.Status)
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
