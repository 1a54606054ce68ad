package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Admin    AdminConfig
	CORS     CORSConfig
	Log      LogConfig
	Rates    RatesConfig
	Fraud    FraudConfig
	Search   SearchConfig
	Visitors VisitorsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AdminConfig governs the moderation surface's authentication.
type AdminConfig struct {
	PasswordHash string
	JWTSecret    string
	TokenExpiry  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RatesConfig points at the remote exchange-rate provider.
type RatesConfig struct {
	APIKey       string
	BaseURL      string
	BaseCurrency string
	Timeout      time.Duration
}

// FraudConfig holds the IP reputation provider credentials. Either key may
// be empty; the fraud service degrades to neutral defaults without them.
type FraudConfig struct {
	ReputationAPIKey  string
	ReputationBaseURL string
	BlocklistAPIKey   string
	BlocklistBaseURL  string
	Timeout           time.Duration
}

// SearchConfig tunes school search and read-side caching.
type SearchConfig struct {
	Limit    int
	CacheTTL time.Duration
}

// VisitorsConfig controls the async visitor IP tracker.
type VisitorsConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Admin = AdminConfig{
		PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		JWTSecret:    v.GetString("ADMIN_JWT_SECRET"),
		TokenExpiry:  parseDuration(v.GetString("ADMIN_TOKEN_EXPIRY"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Rates = RatesConfig{
		APIKey:       v.GetString("EXCHANGE_RATE_API_KEY"),
		BaseURL:      v.GetString("EXCHANGE_RATE_BASE_URL"),
		BaseCurrency: v.GetString("EXCHANGE_RATE_BASE_CURRENCY"),
		Timeout:      parseDuration(v.GetString("EXCHANGE_RATE_TIMEOUT"), 10*time.Second),
	}

	cfg.Fraud = FraudConfig{
		ReputationAPIKey:  v.GetString("IP_REPUTATION_API_KEY"),
		ReputationBaseURL: v.GetString("IP_REPUTATION_BASE_URL"),
		BlocklistAPIKey:   v.GetString("IP_BLOCKLIST_API_KEY"),
		BlocklistBaseURL:  v.GetString("IP_BLOCKLIST_BASE_URL"),
		Timeout:           parseDuration(v.GetString("IP_CHECK_TIMEOUT"), 5*time.Second),
	}

	cfg.Search = SearchConfig{
		Limit:    v.GetInt("SCHOOL_SEARCH_LIMIT"),
		CacheTTL: parseDuration(v.GetString("READ_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Visitors = VisitorsConfig{
		Enabled:    v.GetBool("TRACK_VISITOR_IPS"),
		Workers:    v.GetInt("VISITOR_TRACKER_WORKERS"),
		BufferSize: v.GetInt("VISITOR_TRACKER_BUFFER"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "teacherpay")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("ADMIN_JWT_SECRET", "dev_secret")
	v.SetDefault("ADMIN_TOKEN_EXPIRY", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXCHANGE_RATE_API_KEY", "")
	v.SetDefault("EXCHANGE_RATE_BASE_URL", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("EXCHANGE_RATE_BASE_CURRENCY", "USD")
	v.SetDefault("EXCHANGE_RATE_TIMEOUT", "10s")

	v.SetDefault("IP_REPUTATION_API_KEY", "")
	v.SetDefault("IP_REPUTATION_BASE_URL", "https://api.ipapi.is")
	v.SetDefault("IP_BLOCKLIST_API_KEY", "")
	v.SetDefault("IP_BLOCKLIST_BASE_URL", "https://v2.api.iphub.info/ip")
	v.SetDefault("IP_CHECK_TIMEOUT", "5s")

	v.SetDefault("SCHOOL_SEARCH_LIMIT", 15)
	v.SetDefault("READ_CACHE_TTL", "5m")

	v.SetDefault("TRACK_VISITOR_IPS", true)
	v.SetDefault("VISITOR_TRACKER_WORKERS", 1)
	v.SetDefault("VISITOR_TRACKER_BUFFER", 64)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
