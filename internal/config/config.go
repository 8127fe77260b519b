package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/solar-radiation-ingestion/internal/logger"
	"github.com/i474232898/solar-radiation-ingestion/internal/solar"
)

type AppConfig struct {
	Source   SourceConfig
	Database DatabaseConfig
	Schedule ScheduleConfig

	// In-memory run history retention.
	HistoryMaxRuns int           `validate:"gte=0"` // 0 = unlimited
	HistoryMaxAge  time.Duration `validate:"gte=0"` // 0 = unlimited

	Port     string `validate:"required,numeric"`
	LogLevel string
}

// SourceConfig describes the upstream forecast API.
type SourceConfig struct {
	BaseURL     string `validate:"required,url"`
	Location    solar.Location
	HTTPTimeout time.Duration `validate:"gt=0"`
}

// DatabaseConfig holds the connection settings for the radiation store.
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gt=0,lte=65535"`
	User     string `validate:"required"`
	Password string
	Name     string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	Table    string `validate:"required"`
}

// ConnectionString returns a lib/pq key/value DSN.
func (d DatabaseConfig) ConnectionString() string {
	parts := []string{
		"host=" + quoteDSN(d.Host),
		"port=" + strconv.Itoa(d.Port),
		"user=" + quoteDSN(d.User),
		"dbname=" + quoteDSN(d.Name),
		"sslmode=" + quoteDSN(d.SSLMode),
	}
	if d.Password != "" {
		parts = append(parts, "password="+quoteDSN(d.Password))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// ScheduleConfig controls the daily trigger.
type ScheduleConfig struct {
	At         string `validate:"required,datetime=15:04"`
	Timezone   *time.Location
	RunOnStart bool
	RunTimeout time.Duration `validate:"gte=0"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Infof("No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the current environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.Source.BaseURL = getenvDefault("SOLAR_API_BASE_URL", "https://ensemble-api.open-meteo.com")
	if cfg.Source.Location.Latitude, err = getenvFloat("SOLAR_LATITUDE", 6.4541); err != nil {
		return nil, err
	}
	if cfg.Source.Location.Longitude, err = getenvFloat("SOLAR_LONGITUDE", 3.3947); err != nil {
		return nil, err
	}
	if cfg.Source.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.Database = DatabaseConfig{
		Host:     getenvDefault("DB_HOST", "localhost"),
		Port:     getenvInt("DB_PORT", 5432),
		User:     getenvDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     getenvDefault("DB_NAME", "postgres"),
		SSLMode:  getenvDefault("DB_SSLMODE", "disable"),
		Table:    getenvDefault("DB_TABLE", "solar_radiation_data"),
	}

	cfg.Schedule.At = getenvDefault("SCHEDULE_AT", "00:00")
	tz := getenvDefault("SCHEDULE_TIMEZONE", "UTC")
	if cfg.Schedule.Timezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE: %w", err)
	}
	if cfg.Schedule.RunOnStart, err = getenvBool("RUN_ON_START", true); err != nil {
		return nil, err
	}
	if cfg.Schedule.RunTimeout, err = getenvDuration("RUN_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.HistoryMaxRuns = getenvInt("HISTORY_MAX_RUNS", 30) // a month of daily runs
	if cfg.HistoryMaxAge, err = getenvDuration("HISTORY_MAX_AGE", 720*time.Hour); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "INFO")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		logger.Warnf("invalid %s %q; using %d", key, v, def)
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
