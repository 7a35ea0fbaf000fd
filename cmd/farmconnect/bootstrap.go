package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/farmconnect/internal/config"
	"github.com/Skotchmaster/farmconnect/internal/repo"
	pkgdb "github.com/Skotchmaster/farmconnect/pkg/db"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger installs the stdout JSON logger as default, fanning out to the
// Mongo sink when one is configured. The returned func flushes the sink.
func newLogger(ctx context.Context, cfg *config.Config) (*slog.Logger, func()) {
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	closer := func() {}

	if cfg.LogSink.URI != "" {
		sink, err := logging.NewMongoHandler(ctx, cfg.LogSink.URI, cfg.LogSink.Database, cfg.LogSink.Collection, logging.ParseLevel(cfg.LogLevel))
		if err != nil {
			logger.Warn("log_sink_disabled", "reason", "mongo unreachable", "error", err)
		} else {
			logger = logging.NewWithWriter(os.Stdout, cfg.LogLevel, sink).With("service", cfg.ServiceName)
			closer = func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := sink.Close(flushCtx); err != nil {
					logger.Warn("log_sink_close_error", "error", err)
				}
			}
		}
	}

	slog.SetDefault(logger)
	return logger, closer
}

func openDB(ctx context.Context, cfg *config.Config, migrate bool) (*gorm.DB, error) {
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := pkgdb.Open(openCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := repo.Migrate(openCtx, db); err != nil {
			_ = pkgdb.Close(db)
			return nil, err
		}
	}
	return db, nil
}
