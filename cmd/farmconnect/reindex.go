package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/farmconnect/internal/repo"
	"github.com/Skotchmaster/farmconnect/internal/search"
	"github.com/Skotchmaster/farmconnect/internal/service"
	pkgdb "github.com/Skotchmaster/farmconnect/pkg/db"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the Elasticsearch catalog index from the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Search.URL == "" {
			return errors.New("ES_URL is not set")
		}
		logger, closeLogs := newLogger(ctx, cfg)
		defer closeLogs()

		db, err := openDB(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer pkgdb.Close(db)

		ix, err := search.Connect(ctx, searchConfig(cfg))
		if err != nil {
			return err
		}

		svc := &service.CatalogService{Repo: repo.New(db)}
		n, err := svc.Reindex(ctx, ix)
		if err != nil {
			return err
		}
		logger.Info("reindex_success", "index", cfg.Search.Index, "documents", n)
		return nil
	},
}
