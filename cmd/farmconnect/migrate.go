package main

import (
	"github.com/spf13/cobra"

	pkgdb "github.com/Skotchmaster/farmconnect/pkg/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, closeLogs := newLogger(ctx, cfg)
		defer closeLogs()

		db, err := openDB(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer pkgdb.Close(db)

		logger.Info("migrate_success")
		return nil
	},
}
