package main

import (
	"github.com/spf13/cobra"

	pgInfra "github.com/fastygo/classtrack/internal/infrastructure/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, zapLogger, err := bootstrap()
		if err != nil {
			return err
		}
		defer zapLogger.Sync()
		return pgInfra.RunMigrations(cfg, true, zapLogger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
