package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputPath  string
	OutputPath string
	ModelPath  string

	// Catalog columns, in the order the models were fitted on.
	Species []string
	Strata  []string

	LastYear            int
	Years               int
	Workers             int
	PredictionCacheSize int

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	PostgresDSN string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	lastYear, err := parseInt("FORECAST_LAST_YEAR", 2022)
	if err != nil {
		return nil, err
	}
	years, err := parseInt("FORECAST_YEARS", 1)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("FORECAST_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("PREDICTION_CACHE_SIZE", 0)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		InputPath:           sharedcfg.EnvOrDefault("CENSUS_INPUT_PATH", "data/census.csv"),
		OutputPath:          os.Getenv("CENSUS_OUTPUT_PATH"),
		ModelPath:           sharedcfg.EnvOrDefault("MODEL_BUNDLE_PATH", "data/models.json"),
		Species:             parseList(os.Getenv("CENSUS_SPECIES")),
		Strata:              parseList(os.Getenv("CENSUS_STRATA")),
		LastYear:            lastYear,
		Years:               years,
		Workers:             workers,
		PredictionCacheSize: cacheSize,
		KafkaEnabled:        kafkaEnabled,
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:      sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "census-forecast"),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		HTTPAddr:            sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges. It is called by Load and again after command
// line flags override loaded values.
func (c *Config) Validate() error {
	if len(c.Species) == 0 {
		return errors.New("CENSUS_SPECIES is required")
	}
	if c.InputPath == "" {
		return errors.New("CENSUS_INPUT_PATH is required")
	}
	if c.ModelPath == "" {
		return errors.New("MODEL_BUNDLE_PATH is required")
	}
	if c.Years < 0 {
		return errors.New("FORECAST_YEARS must not be negative")
	}
	if c.Workers < 1 {
		return errors.New("FORECAST_WORKERS must be at least 1")
	}
	if c.PredictionCacheSize < 0 {
		return errors.New("PREDICTION_CACHE_SIZE must not be negative")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
