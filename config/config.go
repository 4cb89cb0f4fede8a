package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
)

// Provider names accepted by the PROVIDER variable.
const (
	ProviderPolygon          = "polygon"
	ProviderPolygonFlatFiles = "polygon-flatfiles"
	ProviderYahoo            = "yahoo"
)

// Config is built once at startup and handed to the constructors that need it. Nothing below main reads the
// environment directly.
type Config struct {
	DB      DBConfig      `envPrefix:"DB_"`
	Polygon PolygonConfig `envPrefix:"POLYGON_"`
	Yahoo   YahooConfig   `envPrefix:"YAHOO_"`

	Provider      string        `env:"PROVIDER" envDefault:"polygon"`
	TrailingYears int           `env:"TRAILING_YEARS" envDefault:"5"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"2m"`
	FetchAttempts int           `env:"FETCH_ATTEMPTS" envDefault:"1"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
}

// DBConfig holds the store connection parameters. The five connection values have no defaults: a missing value
// is reported by the driver when connecting.
type DBConfig struct {
	Name     string `env:"NAME"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Host     string `env:"HOST"`
	Port     string `env:"PORT"`

	SSLMode        string        `env:"SSL_MODE" envDefault:"prefer"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	// Hypertable turns stock_data into a TimescaleDB hypertable on migrate.
	Hypertable bool `env:"HYPERTABLE" envDefault:"false"`
}

type PolygonConfig struct {
	APIKey string `env:"API_KEY"`

	FlatFilesEndpoint        string `env:"FLAT_FILES_ENDPOINT" envDefault:"files.polygon.io"`
	FlatFilesBucket          string `env:"FLAT_FILES_BUCKET" envDefault:"flatfiles"`
	FlatFilesAccessKeyID     string `env:"FLAT_FILES_ACCESS_KEY_ID"`
	FlatFilesSecretAccessKey string `env:"FLAT_FILES_SECRET_ACCESS_KEY"`
}

type YahooConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"https://query1.finance.yahoo.com"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	switch cfg.Provider {
	case ProviderPolygon, ProviderPolygonFlatFiles, ProviderYahoo:
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if cfg.TrailingYears <= 0 {
		return nil, fmt.Errorf("TRAILING_YEARS must be positive, got %d", cfg.TrailingYears)
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.FetchAttempts < 1 {
		cfg.FetchAttempts = 1
	}

	return cfg, nil
}
