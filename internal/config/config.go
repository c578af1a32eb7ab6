package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Debug       bool
	HTTP        HTTPConfig
	Zones       ZonesConfig
	Validation  ValidationConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Location    *time.Location
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ZonesConfig holds the fixed zone set
type ZonesConfig struct {
	Names []string
	IDs   map[string]string
}

// ValidationConfig holds reading validation settings
type ValidationConfig struct {
	RequiredFields            []string
	TimestampToleranceMinutes int
}

// StorageConfig holds time-series storage settings
type StorageConfig struct {
	Backend         string
	Timeout         time.Duration
	WriteQueueSize  int
	WriteWorkers    int
	WriteMaxRetries int
	BreakerFailures int
	BreakerOpen     time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and queue settings.
// An empty URL disables queue ingress and event publishing.
type RabbitMQConfig struct {
	URL              string
	IngestExchange   string
	IngestQueue      string
	IngestRoutingKey string
	EventsExchange   string
	EventsRoutingKey string
	DLQQueue         string
	PrefetchCount    int
}

// Enabled reports whether RabbitMQ is configured.
func (c RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "farm-telemetry"),
		Debug:       getEnvAsBool("DEBUG", false),
		HTTP: HTTPConfig{
			Addr:         getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:  getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		},
		Zones: ZonesConfig{
			Names: getEnvAsList("ZONES", []string{"zone1", "zone2", "zone3"}),
			IDs:   getEnvAsPairs("ZONE_IDS"),
		},
		Validation: ValidationConfig{
			RequiredFields:            getEnvAsList("REQUIRED_FIELDS", []string{"soil", "temperature", "humidity"}),
			TimestampToleranceMinutes: getEnvAsInt("TIMESTAMP_TOLERANCE_MINUTES", 0),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(getEnv("STORAGE_BACKEND", BackendPostgres)),
			Timeout:         getEnvAsDuration("STORAGE_TIMEOUT", 5*time.Second),
			WriteQueueSize:  getEnvAsInt("WRITE_QUEUE_SIZE", 1024),
			WriteWorkers:    getEnvAsInt("WRITE_WORKERS", 4),
			WriteMaxRetries: getEnvAsInt("WRITE_MAX_RETRIES", 3),
			BreakerFailures: getEnvAsInt("BREAKER_FAILURES", 5),
			BreakerOpen:     getEnvAsDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			IngestExchange:   getEnv("RABBITMQ_INGEST_EXCHANGE", "farm-telemetry.ingest.exchange"),
			IngestQueue:      getEnv("RABBITMQ_INGEST_QUEUE", "farm-telemetry.ingest.queue"),
			IngestRoutingKey: getEnv("RABBITMQ_INGEST_ROUTING_KEY", "zone.reading.raw"),
			EventsExchange:   getEnv("RABBITMQ_EVENTS_EXCHANGE", "farm-telemetry.events.exchange"),
			EventsRoutingKey: getEnv("RABBITMQ_EVENTS_ROUTING_KEY", "zone.reading.accepted"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "farm-telemetry.ingest.dlq"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
	}

	loc, err := loadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, err
	}
	cfg.Location = loc

	// Validate required fields
	switch cfg.Storage.Backend {
	case BackendPostgres:
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q (expected %s or %s)", cfg.Storage.Backend, BackendPostgres, BackendMemory)
	}
	if cfg.Storage.WriteWorkers < 1 {
		cfg.Storage.WriteWorkers = 1
	}
	if cfg.Storage.WriteQueueSize < 1 {
		cfg.Storage.WriteQueueSize = 1
	}

	return cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvAsPairs parses "k1=v1,k2=v2".
func getEnvAsPairs(key string) map[string]string {
	out := map[string]string{}
	for _, item := range getEnvAsList(key, nil) {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
