package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// RiskWeights scale each risk breakdown component. Weights must be >= 0.
type RiskWeights struct {
	Late          float64 `json:"late"`
	Blocked       float64 `json:"blocked"`
	Unassigned    float64 `json:"unassigned"`
	ReportPending float64 `json:"reportPending"`
}

// DefaultRiskWeights are used when no RISK_WEIGHT_* variables are set.
var DefaultRiskWeights = RiskWeights{Late: 3, Blocked: 2, Unassigned: 1, ReportPending: 2}

// DefaultRiskThreshold marks a locality as at risk.
const DefaultRiskThreshold = 10.0

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type DBConfig struct {
	Driver     string
	URL        string
	Host       string
	User       string
	Password   string
	Name       string
	Port       string
	SQLitePath string
}

// Config is the process configuration, read once at start.
type Config struct {
	Port          string
	Env           string
	DB            DBConfig
	JWTSecret     string
	RedisURL      string
	CORSOrigins   string
	Log           LogConfig
	RiskWeights   RiskWeights
	RiskThreshold float64
	OTLPEndpoint  string
	// AdminEmail and AdminPassword seed the first ADMIN user when it is missing.
	AdminEmail    string
	AdminPassword string
}

// Load reads .env (optional) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getenv("PORT", "3000"),
		Env:         getenv("APP_ENV", "development"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CORSOrigins: getenv("CORS_ALLOWED_ORIGINS", "*"),
		DB: DBConfig{
			Driver:     strings.ToLower(getenv("DB_DRIVER", "postgres")),
			URL:        os.Getenv("DATABASE_URL"),
			Host:       getenv("DB_HOST", "localhost"),
			User:       os.Getenv("DB_USER"),
			Password:   os.Getenv("DB_PASSWORD"),
			Name:       os.Getenv("DB_NAME"),
			Port:       getenv("DB_PORT", "5432"),
			SQLitePath: getenv("SQLITE_PATH", "taskboard.db"),
		},
		Log: LogConfig{
			Level: getenv("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AdminEmail:    getenv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if cfg.AdminPassword == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("ADMIN_PASSWORD is required in production")
		}
		cfg.AdminPassword = "admin12345"
	}
	if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "sqlite" {
		return nil, fmt.Errorf("invalid DB_DRIVER %q: use postgres or sqlite", cfg.DB.Driver)
	}

	var err error
	if cfg.Log.MaxSizeMB, err = intEnv("LOG_MAX_SIZE_MB", 100); err != nil {
		return nil, err
	}
	if cfg.Log.MaxBackups, err = intEnv("LOG_MAX_BACKUPS", 5); err != nil {
		return nil, err
	}
	if cfg.Log.MaxAgeDays, err = intEnv("LOG_MAX_AGE_DAYS", 30); err != nil {
		return nil, err
	}

	w := DefaultRiskWeights
	if w.Late, err = weightEnv("RISK_WEIGHT_LATE", w.Late); err != nil {
		return nil, err
	}
	if w.Blocked, err = weightEnv("RISK_WEIGHT_BLOCKED", w.Blocked); err != nil {
		return nil, err
	}
	if w.Unassigned, err = weightEnv("RISK_WEIGHT_UNASSIGNED", w.Unassigned); err != nil {
		return nil, err
	}
	if w.ReportPending, err = weightEnv("RISK_WEIGHT_REPORT_PENDING", w.ReportPending); err != nil {
		return nil, err
	}
	cfg.RiskWeights = w
	if cfg.RiskThreshold, err = weightEnv("RISK_THRESHOLD", DefaultRiskThreshold); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func weightEnv(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid %s: must be >= 0", key)
	}
	return f, nil
}
