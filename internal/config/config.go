package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Rollup      RollupConfig
	Query       QueryConfig
	Anomaly     AnomalyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string
	MaxConns int
}

// RabbitMQConfig holds event publishing settings. URL is optional: when
// empty the worker runs without publishing anomaly/rollup events.
type RabbitMQConfig struct {
	URL               string
	EventsExchange    string
	AnomalyRoutingKey string
	RollupRoutingKey  string
}

// RollupConfig holds the hourly aggregation schedule settings.
type RollupConfig struct {
	Interval        time.Duration
	RecentLookback  time.Duration
	BackfillDays    int
	BackfillOnStart bool
}

// QueryConfig holds query-path settings.
type QueryConfig struct {
	WindowRowCap int
}

// AnomalyConfig holds anomaly detection settings.
type AnomalyConfig struct {
	ContextSamples int
	MinSamples     int
	TempMin        float64
	TempMax        float64
	HumMin         float64
	HumMax         float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "telemetry-insight-worker"),
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvAsInt("DATABASE_MAX_CONNS", 8),
		},
		RabbitMQ: RabbitMQConfig{
			URL:               getEnv("RABBITMQ_URL", ""),
			EventsExchange:    getEnv("RABBITMQ_EVENTS_EXCHANGE", "telemetry.insight.events.exchange"),
			AnomalyRoutingKey: getEnv("RABBITMQ_ANOMALY_ROUTING_KEY", "telemetry.anomaly.detected"),
			RollupRoutingKey:  getEnv("RABBITMQ_ROLLUP_ROUTING_KEY", "telemetry.rollup.completed"),
		},
		Rollup: RollupConfig{
			Interval:        time.Duration(getEnvAsInt("ROLLUP_INTERVAL_MINUTES", 60)) * time.Minute,
			RecentLookback:  time.Duration(getEnvAsInt("ROLLUP_RECENT_LOOKBACK_HOURS", 2)) * time.Hour,
			BackfillDays:    getEnvAsInt("ROLLUP_BACKFILL_DAYS", 30),
			BackfillOnStart: getEnvAsBool("ROLLUP_BACKFILL_ON_START", true),
		},
		Query: QueryConfig{
			WindowRowCap: getEnvAsInt("QUERY_WINDOW_ROW_CAP", 15000),
		},
		Anomaly: AnomalyConfig{
			ContextSamples: getEnvAsInt("ANOMALY_CONTEXT_SAMPLES", 300),
			MinSamples:     getEnvAsInt("ANOMALY_MIN_SAMPLES", 20),
			TempMin:        getEnvAsFloat("COMFORT_TEMP_MIN", 20.0),
			TempMax:        getEnvAsFloat("COMFORT_TEMP_MAX", 26.0),
			HumMin:         getEnvAsFloat("COMFORT_HUM_MIN", 30.0),
			HumMax:         getEnvAsFloat("COMFORT_HUM_MAX", 60.0),
		},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.Rollup.Interval <= 0 {
		return nil, fmt.Errorf("ROLLUP_INTERVAL_MINUTES must be positive")
	}

	return cfg, nil
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
