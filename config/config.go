package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration loaded from environment variables or .env file.
//
// It is composed of smaller structs that represent different concerns of the system.
//
// Example ENV equivalent:
//
//	SERVER_PORT=8080
//	POSTGRES_HOST=localhost
//	POSTGRES_DB=settlepulse
//	IMPORT_PARALLEL=4
//	PRICE_PROVIDERS=store,tencent,yahoo
//	PRICE_OVERRIDES=600000:45.2,000001:12.30
//	RISK_FREE_RATE=0.03
type Config struct {
	Server   ServerConfig   // HTTP server configuration
	Postgres PostgresConfig // PostgreSQL connection settings
	Import   ImportConfig   // export file ingestion
	Pricing  PricingConfig  // price provider chain
	Analysis AnalysisConfig // performance metrics
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        // TCP port the HTTP server listens on (e.g., "8080")
	RequestTimeout time.Duration // per-request deadline
	RateEvery      time.Duration // one token per client every RateEvery
	RateBurst      int
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host: hostname of the database server.
//   - Port: port number of the database server (default 5432).
//   - User: username for authentication.
//   - Password: password for authentication.
//   - DBName: target database name.
//   - SSLMode: SSL mode (e.g., "disable", "require").
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// ImportConfig tunes batch imports. Zero values fall back to the importer defaults.
type ImportConfig struct {
	Parallel  int
	BatchSize int
}

// PricingConfig configures the ranked provider chain.
type PricingConfig struct {
	Providers   []string // ranked provider names: store, tencent, yahoo
	MaxAttempts int
	Backoff     time.Duration
	CacheTTL    time.Duration
	Concurrency int
	Overrides   string        // "code:price,code:price"
	StoreMaxAge time.Duration // stored prices older than this are ignored
	RateEvery   time.Duration // shared outbound limiter for HTTP providers
	RateBurst   int
	HTTPTimeout time.Duration

	YahooBaseURL    string
	YahooSessionURL string
	TencentQuoteURL string
	TencentKlineURL string
}

// AnalysisConfig holds performance calculation settings.
type AnalysisConfig struct {
	RiskFreeRate float64 // annual, e.g. 0.03
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and used throughout the application.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// Fatal exit:
//   - If required variables are missing or invalid, validateConfig() terminates
//     the app with a descriptive log message.
func LoadConfig() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_REQUEST_TIMEOUT", "30s")
	viper.SetDefault("SERVER_RATE_EVERY", "1s")
	viper.SetDefault("SERVER_RATE_BURST", 60)

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "postgres")
	viper.SetDefault("POSTGRES_DB", "settlepulse")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")

	viper.SetDefault("IMPORT_PARALLEL", 0)
	viper.SetDefault("IMPORT_BATCH_SIZE", 0)

	viper.SetDefault("PRICE_PROVIDERS", "store,tencent,yahoo")
	viper.SetDefault("PRICE_MAX_ATTEMPTS", 3)
	viper.SetDefault("PRICE_BACKOFF", "1s")
	viper.SetDefault("PRICE_CACHE_TTL", "5m")
	viper.SetDefault("PRICE_CONCURRENCY", 4)
	viper.SetDefault("PRICE_OVERRIDES", "")
	viper.SetDefault("PRICE_STORE_MAX_AGE", "72h")
	viper.SetDefault("PRICE_RATE_EVERY", "200ms")
	viper.SetDefault("PRICE_RATE_BURST", 5)
	viper.SetDefault("PRICE_HTTP_TIMEOUT", "10s")
	viper.SetDefault("PRICE_YAHOO_URL", "https://query1.finance.yahoo.com")
	viper.SetDefault("PRICE_YAHOO_SESSION_URL", "https://finance.yahoo.com/quote/600000.SS")
	viper.SetDefault("PRICE_TENCENT_QUOTE_URL", "https://qt.gtimg.cn")
	viper.SetDefault("PRICE_TENCENT_KLINE_URL", "https://web.ifzq.gtimg.cn")

	viper.SetDefault("RISK_FREE_RATE", 0.03)

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig() // ignore error if no .env

	viper.AutomaticEnv()

	AppConfig = Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			RequestTimeout: viper.GetDuration("SERVER_REQUEST_TIMEOUT"),
			RateEvery:      viper.GetDuration("SERVER_RATE_EVERY"),
			RateBurst:      viper.GetInt("SERVER_RATE_BURST"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetInt("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		},
		Import: ImportConfig{
			Parallel:  viper.GetInt("IMPORT_PARALLEL"),
			BatchSize: viper.GetInt("IMPORT_BATCH_SIZE"),
		},
		Pricing: PricingConfig{
			Providers:       splitList(viper.GetString("PRICE_PROVIDERS")),
			MaxAttempts:     viper.GetInt("PRICE_MAX_ATTEMPTS"),
			Backoff:         viper.GetDuration("PRICE_BACKOFF"),
			CacheTTL:        viper.GetDuration("PRICE_CACHE_TTL"),
			Concurrency:     viper.GetInt("PRICE_CONCURRENCY"),
			Overrides:       viper.GetString("PRICE_OVERRIDES"),
			StoreMaxAge:     viper.GetDuration("PRICE_STORE_MAX_AGE"),
			RateEvery:       viper.GetDuration("PRICE_RATE_EVERY"),
			RateBurst:       viper.GetInt("PRICE_RATE_BURST"),
			HTTPTimeout:     viper.GetDuration("PRICE_HTTP_TIMEOUT"),
			YahooBaseURL:    viper.GetString("PRICE_YAHOO_URL"),
			YahooSessionURL: viper.GetString("PRICE_YAHOO_SESSION_URL"),
			TencentQuoteURL: viper.GetString("PRICE_TENCENT_QUOTE_URL"),
			TencentKlineURL: viper.GetString("PRICE_TENCENT_KLINE_URL"),
		},
		Analysis: AnalysisConfig{
			RiskFreeRate: viper.GetFloat64("RISK_FREE_RATE"),
		},
	}

	AppConfig.Postgres.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		AppConfig.Postgres.User,
		AppConfig.Postgres.Password,
		AppConfig.Postgres.Host,
		AppConfig.Postgres.Port,
		AppConfig.Postgres.DBName,
		AppConfig.Postgres.SSLMode,
	)

	validateConfig()
}

// knownProviders lists the names accepted in PRICE_PROVIDERS.
var knownProviders = map[string]bool{"store": true, "tencent": true, "yahoo": true}

// validateConfig ensures required variables are present and terminates
// the application if they are missing.
//
// Behavior:
//   - Checks each critical field of AppConfig.
//   - Collects missing or invalid ones in a slice.
//   - If any are found, logs them and terminates the app with log.Fatalf().
func validateConfig() {
	if problems := problems(AppConfig); len(problems) > 0 {
		log.Fatalf("missing or invalid configuration: %v\n", problems)
	}
}

func problems(c Config) []string {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if c.Postgres.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if c.Postgres.Port == 0 {
		missing = append(missing, "POSTGRES_PORT")
	}
	if c.Postgres.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if c.Postgres.Password == "" {
		missing = append(missing, "POSTGRES_PASSWORD")
	}
	if c.Postgres.DBName == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if len(c.Pricing.Providers) == 0 {
		missing = append(missing, "PRICE_PROVIDERS")
	}
	for _, p := range c.Pricing.Providers {
		if !knownProviders[p] {
			missing = append(missing, "PRICE_PROVIDERS("+p+")")
		}
	}
	if c.Pricing.MaxAttempts < 1 {
		missing = append(missing, "PRICE_MAX_ATTEMPTS")
	}
	if c.Analysis.RiskFreeRate < 0 {
		missing = append(missing, "RISK_FREE_RATE")
	}
	return missing
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
