package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Skotchmaster/farmconnect/pkg/config"
	"github.com/Skotchmaster/farmconnect/pkg/storage"
)

const (
	OwnershipHide   = "hide"
	OwnershipReveal = "reveal"

	CartStoreDB     = "db"
	CartStoreMemory = "memory"
	CartStoreRedis  = "redis"
)

type Config struct {
	AppEnv      string `yaml:"app_env"`
	ServiceName string `yaml:"service_name"`
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`

	DatabaseURL string        `yaml:"database_url"`
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTTTL      time.Duration `yaml:"jwt_ttl"`

	OwnershipPolicy string   `yaml:"ownership_policy"`
	CartStore       string   `yaml:"cart_store"`
	CORSOrigins     []string `yaml:"cors_origins"`

	Redis   RedisConfig        `yaml:"redis"`
	Kafka   KafkaConfig        `yaml:"kafka"`
	Search  SearchConfig       `yaml:"search"`
	S3      storage.S3Config   `yaml:"s3"`
	ML      MLConfig           `yaml:"ml"`
	Weather WeatherConfig      `yaml:"weather"`
	LogSink MongoLogSinkConfig `yaml:"log_mongo"`

	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type SearchConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"`
}

type MLConfig struct {
	URL string `yaml:"url"`
}

type WeatherConfig struct {
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type MongoLogSinkConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

func Defaults() Config {
	return Config{
		AppEnv:          "development",
		ServiceName:     "farmconnect",
		Port:            "5000",
		LogLevel:        "info",
		JWTTTL:          7 * 24 * time.Hour,
		OwnershipPolicy: OwnershipHide,
		CartStore:       CartStoreDB,
		CORSOrigins:     []string{"*"},
		Search:          SearchConfig{Index: "farmconnect-catalog"},
		ML:              MLConfig{URL: "http://localhost:8000"},
		Weather: WeatherConfig{
			BaseURL:  "https://api.openweathermap.org/data/2.5",
			CacheTTL: 10 * time.Minute,
		},
		LogSink:         MongoLogSinkConfig{Database: "farmconnect", Collection: "logs"},
		UpstreamTimeout: 5 * time.Second,
	}
}

// LoadDotEnv loads a .env file if it exists.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("dotenv_not_found", "path", path)
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load applies defaults, then the YAML file at path, then the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if err := pkgconfig.LoadYAML(path, &cfg); err != nil {
		return nil, err
	}

	cfg.AppEnv = pkgconfig.EnvDefault("APP_ENV", cfg.AppEnv)
	cfg.ServiceName = pkgconfig.EnvDefault("SERVICE_NAME", cfg.ServiceName)
	cfg.Port = pkgconfig.EnvDefault("SERVER_PORT", pkgconfig.EnvDefault("PORT", cfg.Port))
	cfg.LogLevel = pkgconfig.EnvDefault("LOG_LEVEL", cfg.LogLevel)

	cfg.DatabaseURL = pkgconfig.EnvDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = pkgconfig.EnvDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTTTL = pkgconfig.EnvDurationDefault("JWT_TTL", cfg.JWTTTL)

	cfg.OwnershipPolicy = strings.ToLower(pkgconfig.EnvDefault("OWNERSHIP_POLICY", cfg.OwnershipPolicy))
	cfg.CartStore = strings.ToLower(pkgconfig.EnvDefault("CART_STORE", cfg.CartStore))
	cfg.CORSOrigins = pkgconfig.EnvCSVDefault("CORS_ORIGINS", cfg.CORSOrigins)

	cfg.Redis.Addr = pkgconfig.EnvDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = pkgconfig.EnvDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = pkgconfig.EnvIntDefault("REDIS_DB", cfg.Redis.DB)

	cfg.Kafka.Brokers = pkgconfig.EnvCSVDefault("KAFKA_BROKERS", cfg.Kafka.Brokers)

	cfg.Search.URL = pkgconfig.EnvDefault("ES_URL", cfg.Search.URL)
	cfg.Search.User = pkgconfig.EnvDefault("ES_USER", cfg.Search.User)
	cfg.Search.Password = pkgconfig.EnvDefault("ES_PASSWORD", cfg.Search.Password)
	cfg.Search.Index = pkgconfig.EnvDefault("ES_INDEX", cfg.Search.Index)

	cfg.S3.Bucket = pkgconfig.EnvDefault("S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.Region = pkgconfig.EnvDefault("S3_REGION", cfg.S3.Region)
	cfg.S3.Key = pkgconfig.EnvDefault("S3_KEY", cfg.S3.Key)
	cfg.S3.Secret = pkgconfig.EnvDefault("S3_SECRET", cfg.S3.Secret)
	cfg.S3.Endpoint = pkgconfig.EnvDefault("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.BaseURL = pkgconfig.EnvDefault("S3_URL", cfg.S3.BaseURL)

	cfg.ML.URL = pkgconfig.EnvDefault("ML_SERVICE_URL", cfg.ML.URL)
	cfg.Weather.APIKey = pkgconfig.EnvDefault("OPENWEATHER_API_KEY", cfg.Weather.APIKey)
	cfg.Weather.BaseURL = pkgconfig.EnvDefault("WEATHER_BASE_URL", cfg.Weather.BaseURL)
	cfg.Weather.CacheTTL = pkgconfig.EnvDurationDefault("WEATHER_CACHE_TTL", cfg.Weather.CacheTTL)
	cfg.UpstreamTimeout = pkgconfig.EnvDurationDefault("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)

	cfg.LogSink.URI = pkgconfig.EnvDefault("LOG_MONGO_URI", cfg.LogSink.URI)
	cfg.LogSink.Database = pkgconfig.EnvDefault("LOG_MONGO_DB", cfg.LogSink.Database)
	cfg.LogSink.Collection = pkgconfig.EnvDefault("LOG_MONGO_COLLECTION", cfg.LogSink.Collection)

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development" || c.AppEnv == "dev"
}

func (c *Config) Validate() error {
	var errs []error
	errs = append(errs,
		pkgconfig.MustNonEmpty(c.DatabaseURL, "DATABASE_URL"),
		pkgconfig.MustNonEmpty(c.JWTSecret, "JWT_SECRET"),
		pkgconfig.MustOneOf(c.OwnershipPolicy, "OWNERSHIP_POLICY", OwnershipHide, OwnershipReveal),
		pkgconfig.MustOneOf(c.CartStore, "CART_STORE", CartStoreDB, CartStoreMemory, CartStoreRedis),
	)
	if c.CartStore == CartStoreRedis && c.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("CART_STORE=redis requires REDIS_ADDR"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, fmt.Errorf("JWT_TTL must be positive"))
	}
	return errors.Join(errs...)
}
