package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seenimoa/panelstudy/internal/config"
)

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or persist the effective configuration",
}

var configSaveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Write the effective configuration (file, env and defaults merged) as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config/config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.Save(cfg, path); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("configuration written to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSaveCmd)
}
