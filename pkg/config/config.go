package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional; empty URL disables the postgres source)
	Database DatabaseConfig

	// Redis (optional second-tier result cache)
	Redis RedisConfig

	// External progress feed
	Feed FeedConfig

	// Estimation engine defaults
	Estimation EstimationConfig

	// Scheduled cache warm-up
	Warmup WarmupConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// FeedConfig holds the HTTP progress feed configuration
type FeedConfig struct {
	URL            string
	RequestsPerSec float64 // client-side rate limit (기본: 5)
	Timeout        time.Duration
}

// EstimationConfig holds engine defaults applied to every request
type EstimationConfig struct {
	Mode                 string   // basic, advanced, mapsheet, real_time
	ConfidenceLevel      float64  // 기본: 0.8
	DaysBack             int      // 기본: 30
	EnableIntegration    bool     // 기본: true
	SkipCompleted        bool     // minimal completed report (기본: false)
	CacheEnabled         bool     // 기본: true
	CacheTTL             time.Duration
	MonteCarloIterations int      // 기본: 1000
	MonteCarloSeed       int64    // 0 = random per call
	DisabledMethods      []string // method identifiers to skip
}

// WarmupConfig holds the scheduled warm-up targets
type WarmupConfig struct {
	Schedule string
	Targets  []WarmupTarget
}

// WarmupTarget one item to pre-compute; ItemID "*" is the whole project
type WarmupTarget struct {
	ItemID       string
	TargetPoints float64
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	targets, err := parseWarmupTargets(getEnv("WARMUP_TARGETS", ""))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Feed: FeedConfig{
			URL:            getEnv("PROGRESS_FEED_URL", ""),
			RequestsPerSec: getEnvAsFloat("PROGRESS_FEED_RPS", 5),
			Timeout:        getEnvAsDuration("PROGRESS_FEED_TIMEOUT", "10s"),
		},

		Estimation: EstimationConfig{
			Mode:                 getEnv("ESTIMATION_MODE", "basic"),
			ConfidenceLevel:      getEnvAsFloat("ESTIMATION_CONFIDENCE_LEVEL", 0.8),
			DaysBack:             getEnvAsInt("ESTIMATION_DAYS_BACK", 30),
			EnableIntegration:    getEnvAsBool("ESTIMATION_ENABLE_INTEGRATION", true),
			SkipCompleted:        getEnvAsBool("ESTIMATION_SKIP_COMPLETED", false),
			CacheEnabled:         getEnvAsBool("ESTIMATION_CACHE_ENABLED", true),
			CacheTTL:             time.Duration(getEnvAsFloat("ESTIMATION_CACHE_TTL_HOURS", 6) * float64(time.Hour)),
			MonteCarloIterations: getEnvAsInt("ESTIMATION_MC_ITERATIONS", 1000),
			MonteCarloSeed:       int64(getEnvAsInt("ESTIMATION_MC_SEED", 0)),
			DisabledMethods:      getEnvAsList("ESTIMATION_DISABLED_METHODS"),
		},

		Warmup: WarmupConfig{
			Schedule: getEnv("WARMUP_SCHEDULE", "0 0 6 * * *"),
			Targets:  targets,
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads an explicit .env file first, then falls back to Load.
// Variables already set in the environment win over the file.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return Load()
}

// validate checks configuration values
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Estimation.Mode {
	case "basic", "advanced", "mapsheet", "real_time":
	default:
		return fmt.Errorf("ESTIMATION_MODE must be one of: basic, advanced, mapsheet, real_time")
	}

	if c.Estimation.ConfidenceLevel < 0 || c.Estimation.ConfidenceLevel > 1 {
		return fmt.Errorf("ESTIMATION_CONFIDENCE_LEVEL must be within [0, 1]")
	}

	if c.Estimation.DaysBack <= 0 {
		return fmt.Errorf("ESTIMATION_DAYS_BACK must be positive")
	}

	if c.Estimation.CacheTTL <= 0 {
		return fmt.Errorf("ESTIMATION_CACHE_TTL_HOURS must be positive")
	}

	if c.Estimation.MonteCarloIterations <= 0 {
		return fmt.Errorf("ESTIMATION_MC_ITERATIONS must be positive")
	}

	if c.Feed.RequestsPerSec <= 0 {
		return fmt.Errorf("PROGRESS_FEED_RPS must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// parseWarmupTargets parses "item:target,item:target" ("*:target" = whole project)
func parseWarmupTargets(raw string) ([]WarmupTarget, error) {
	var targets []WarmupTarget
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		item, target, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(item) == "" {
			return nil, fmt.Errorf("WARMUP_TARGETS entry %q must be item:target", part)
		}

		points, err := strconv.ParseFloat(strings.TrimSpace(target), 64)
		if err != nil || points <= 0 {
			return nil, fmt.Errorf("WARMUP_TARGETS entry %q has invalid target", part)
		}

		targets = append(targets, WarmupTarget{ItemID: strings.TrimSpace(item), TargetPoints: points})
	}
	return targets, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
