package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Skotchmaster/farmconnect/internal/cart"
	"github.com/Skotchmaster/farmconnect/internal/config"
	"github.com/Skotchmaster/farmconnect/internal/httpserver"
	"github.com/Skotchmaster/farmconnect/internal/repo"
	"github.com/Skotchmaster/farmconnect/internal/search"
	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/upstream"
	"github.com/Skotchmaster/farmconnect/pkg/cache"
	pkgdb "github.com/Skotchmaster/farmconnect/pkg/db"
	"github.com/Skotchmaster/farmconnect/pkg/events"
	"github.com/Skotchmaster/farmconnect/pkg/metrics"
	loggingmw "github.com/Skotchmaster/farmconnect/pkg/middleware/logging"
	"github.com/Skotchmaster/farmconnect/pkg/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	bodyLimit       = "50M"
	cartTTL         = 30 * 24 * time.Hour
)

var noMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip AutoMigrate on start")
}

// backends holds the optional infrastructure; each field may be a disabled
// zero value.
type backends struct {
	db       *gorm.DB
	cache    *cache.Cache
	producer *events.Producer
	index    *search.Index
	images   storage.Store
}

func (b *backends) publisher() events.Publisher {
	if b.producer == nil {
		return events.Noop{}
	}
	return b.producer
}

func (b *backends) close(l *slog.Logger) {
	if b.producer != nil {
		if err := b.producer.Close(); err != nil {
			l.Warn("kafka_close_error", "error", err)
		}
	}
	if err := b.cache.Close(); err != nil {
		l.Warn("redis_close_error", "error", err)
	}
	if b.db != nil {
		if err := pkgdb.Close(b.db); err != nil {
			l.Warn("db_close_error", "error", err)
		}
	}
}

func connectBackends(ctx context.Context, cfg *config.Config, l *slog.Logger) (*backends, error) {
	db, err := openDB(ctx, cfg, !noMigrate)
	if err != nil {
		return nil, err
	}
	b := &backends{db: db}

	if cfg.Redis.Addr != "" {
		c, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.ServiceName+":")
		switch {
		case err == nil:
			b.cache = c
		case cfg.CartStore == config.CartStoreRedis:
			b.close(l)
			return nil, err
		default:
			l.Warn("redis_disabled", "reason", "redis unreachable", "error", err)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		p, err := events.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			l.Warn("kafka_disabled", "error", err)
		} else {
			b.producer = p
		}
	}

	if cfg.Search.URL != "" {
		ix, err := search.Connect(ctx, searchConfig(cfg))
		if err == nil {
			err = ix.EnsureIndex(ctx)
		}
		if err != nil {
			l.Warn("search_disabled", "reason", "elasticsearch unreachable", "error", err)
		} else {
			b.index = ix
		}
	}

	if cfg.S3.Bucket != "" {
		s3, err := storage.NewS3(ctx, cfg.S3)
		if err != nil {
			b.close(l)
			return nil, err
		}
		b.images = s3
	}
	return b, nil
}

func searchConfig(cfg *config.Config) search.Config {
	return search.Config{
		URL:      cfg.Search.URL,
		User:     cfg.Search.User,
		Password: cfg.Search.Password,
		Index:    cfg.Search.Index,
	}
}

func cartStore(cfg *config.Config, b *backends) cart.Store {
	switch cfg.CartStore {
	case config.CartStoreMemory:
		return cart.NewMemoryStore()
	case config.CartStoreRedis:
		return cart.NewRedisStore(b.cache.Client(), cfg.ServiceName+":cart:", cartTTL)
	default:
		return repo.NewCartStore(b.db)
	}
}

func newServices(cfg *config.Config, b *backends) httpserver.Services {
	r := repo.New(b.db)
	pub := b.publisher()

	orders := &service.OrderService{Repo: r, Events: pub}
	catalog := &service.CatalogService{Repo: r, Images: b.images, Events: pub}
	if b.index != nil {
		catalog.Index = b.index
		orders.Index = b.index
	}

	return httpserver.Services{
		Auth: &service.AuthService{
			Repo:      r,
			JWTSecret: []byte(cfg.JWTSecret),
			TokenTTL:  cfg.JWTTTL,
			Events:    pub,
		},
		Catalog: catalog,
		Orders:  orders,
		Cart:    &service.CartService{Store: cartStore(cfg, b), Repo: r, Orders: orders},
		Advisory: &service.AdvisoryService{
			ML:       upstream.NewMLClient(cfg.ML.URL, cfg.UpstreamTimeout),
			Weather:  upstream.NewWeatherClient(cfg.Weather.BaseURL, cfg.Weather.APIKey, cfg.UpstreamTimeout),
			Cache:    b.cache,
			CacheTTL: cfg.Weather.CacheTTL,
		},
	}
}

func newEcho(cfg *config.Config, b *backends, logger *slog.Logger) *echo.Echo {
	deps := httpserver.NewDeps(
		newServices(cfg, b),
		httpserver.NewPolicy(cfg.OwnershipPolicy),
		func(ctx context.Context) error { return pkgdb.Ping(ctx, b.db) },
	)
	return httpserver.New(deps, cfg.IsDevelopment(),
		echomw.Recover(),
		echomw.RequestID(),
		echomw.BodyLimit(bodyLimit),
		loggingmw.RequestLogger(logger),
		metrics.Middleware(),
		echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}),
	)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, closeLogs := newLogger(ctx, cfg)
	defer closeLogs()

	b, err := connectBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup_error", "error", err)
		return err
	}
	defer b.close(logger)

	logger.Info("backends_ready",
		"cart_store", cfg.CartStore,
		"redis", b.cache.Enabled(),
		"kafka", b.producer != nil,
		"search", b.index.Enabled(),
		"images", b.images != nil,
		"ownership_policy", cfg.OwnershipPolicy,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newEcho(cfg, b, logger),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("http_shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http_server_error", "error", err)
		return err
	}
	return nil
}
