package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relayhq/relay/internal/config"
	"github.com/relayhq/relay/internal/db"
)

func main() {
	root := &cobra.Command{
		Use:   "relay",
		Short: "Relay multi-channel messaging gateway",
	}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.toml (defaults to CONFIG_PATH, then ./config.toml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		Run: func(_ *cobra.Command, _ []string) {
			runServe(resolveConfigPath(cfgPath))
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath(cfgPath))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres)
		},
	}

	root.AddCommand(serveCmd, migrateCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("CONFIG_PATH")
}
