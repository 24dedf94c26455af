package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Drivers lists the accepted DB_DRIVER values.
var Drivers = []string{"sqlserver", "postgres", "mysql", "sqlite"}

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL string
	DBDriver    string

	CensusAPIKey  string
	CensusBaseURL string
	CensusTimeout time.Duration

	FieldMapPath string
	OutputDir    string

	LogLevel        string
	LogFormat       string
	MetricsAddr     string
	PushgatewayURL  string
	ShutdownTimeout time.Duration

	// Optional Kafka sink; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// KafkaEnabled reports whether recoded records are also published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	censusTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("CENSUS_TIMEOUT", "30s"))
	if err != nil || censusTimeout <= 0 {
		return nil, errors.New("invalid CENSUS_TIMEOUT")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBDriver:    strings.ToLower(sharedcfg.EnvOrDefault("DB_DRIVER", "sqlserver")),

		CensusAPIKey:  os.Getenv("CENSUS_API_KEY"),
		CensusBaseURL: sharedcfg.EnvOrDefault("CENSUS_BASE_URL", "https://api.census.gov/data/2022/acs/acs1/pums"),
		CensusTimeout: censusTimeout,

		FieldMapPath: sharedcfg.EnvOrDefault("FIELD_MAP_PATH", "configs/field_map.yaml"),
		OutputDir:    sharedcfg.EnvOrDefault("OUTPUT_DIR", "csv_data"),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "census-microdata"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if !slices.Contains(Drivers, cfg.DBDriver) {
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want one of %s", cfg.DBDriver, strings.Join(Drivers, ", "))
	}

	return cfg, nil
}
