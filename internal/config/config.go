package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the analysis server
type Config struct {
	Server    ServerConfig
	Analysis  AnalysisConfig
	Etherscan EtherscanConfig
	Phishing  PhishingConfig
	ML        MLConfig
	History   HistoryConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// AnalysisConfig holds risk aggregator settings
type AnalysisConfig struct {
	EvidenceTimeout time.Duration // per evidence call inside one analysis
}

// EtherscanConfig holds the contract verification lookup settings
type EtherscanConfig struct {
	APIURL        string
	APIKey        string
	Timeout       time.Duration
	CacheTTL      time.Duration // successful lookups
	ErrorCacheTTL time.Duration // failed lookups; short so outages self-heal
	MaxCacheSize  int
}

// PhishingConfig holds the phishing reputation lookup settings
type PhishingConfig struct {
	FeedURL       string // eth-phishing-detect style blocklist feed
	FeedRefresh   time.Duration
	GoPlusURL     string
	GoPlusChainID int
	BlocklistPath string // optional local YAML blocklist
	Timeout       time.Duration
	CacheTTL      time.Duration
	MaxCacheSize  int
}

// MLConfig holds the transaction scoring model settings
type MLConfig struct {
	WeightsPath string // TOML weights file; empty means uninitialized model
}

// HistoryConfig holds report history storage settings
type HistoryConfig struct {
	Enabled    bool
	Type       string // "sqlite" or "postgres"
	SQLitePath string
	Postgres   PostgresConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// SecurityConfig holds security middleware settings
type SecurityConfig struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 8080),
			Host:         getEnv("HOST", "0.0.0.0"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 120),
		},
		Analysis: AnalysisConfig{
			EvidenceTimeout: getEnvDuration("ANALYSIS_EVIDENCE_TIMEOUT", 6*time.Second),
		},
		Etherscan: EtherscanConfig{
			APIURL:        getEnv("ETHERSCAN_API_URL", "https://api.etherscan.io/api"),
			APIKey:        getEnv("ETHERSCAN_API_KEY", ""),
			Timeout:       getEnvDuration("ETHERSCAN_TIMEOUT", 5*time.Second),
			CacheTTL:      getEnvDuration("ETHERSCAN_CACHE_TTL", 10*time.Minute),
			ErrorCacheTTL: getEnvDuration("ETHERSCAN_ERROR_CACHE_TTL", 30*time.Second),
			MaxCacheSize:  getEnvInt("ETHERSCAN_CACHE_MAX_ENTRIES", 1000),
		},
		Phishing: PhishingConfig{
			FeedURL:       getEnv("PHISHING_FEED_URL", "https://raw.githubusercontent.com/MetaMask/eth-phishing-detect/master/src/config.json"),
			FeedRefresh:   getEnvDuration("PHISHING_FEED_REFRESH", time.Hour),
			GoPlusURL:     getEnv("GOPLUS_API_URL", "https://api.gopluslabs.io/api/v1"),
			GoPlusChainID: getEnvInt("GOPLUS_CHAIN_ID", 1),
			BlocklistPath: getEnv("PHISHING_BLOCKLIST_PATH", ""),
			Timeout:       getEnvDuration("PHISHING_TIMEOUT", 5*time.Second),
			CacheTTL:      getEnvDuration("PHISHING_CACHE_TTL", 5*time.Minute),
			MaxCacheSize:  getEnvInt("PHISHING_CACHE_MAX_ENTRIES", 1000),
		},
		ML: MLConfig{
			WeightsPath: getEnv("ML_WEIGHTS_PATH", ""),
		},
		History: HistoryConfig{
			Enabled:    getEnvBool("HISTORY_ENABLED", true),
			Type:       getEnv("HISTORY_TYPE", "sqlite"),
			SQLitePath: getEnv("HISTORY_SQLITE_PATH", "./data/metaguard.db"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Security: SecurityConfig{
			FilterEnabled: getEnvBool("SECURITY_FILTER_ENABLED", true),
			MaxBodySizeMB: getEnvInt("MAX_BODY_SIZE_MB", 1),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	// If DATABASE_URL is set, default history storage to postgres
	if cfg.History.Postgres.URL != "" && cfg.History.Type == "sqlite" {
		cfg.History.Type = "postgres"
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
