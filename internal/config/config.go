package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Broker    BrokerConfig
	Ingest    IngestConfig
	Simulator SimulatorConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"toolcrib-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Timezone used for device timestamps that carry no offset. Empty means
	// the process local zone.
	Timezone string `envconfig:"APP_TIMEZONE" default:""`

	// APIKeys protects the management routes. Empty disables the check.
	APIKeys []string `envconfig:"API_KEYS" default:""`
}

// DatabaseConfig selects the SQL dialect and its connection settings.
type DatabaseConfig struct {
	Driver string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite, postgres or mysql
	Path   string `envconfig:"DB_PATH" default:"./data/toolcrib.db"`

	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"toolcrib"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASS" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"toolcrib"`
}

// BrokerConfig enables RabbitMQ notifications when URL is set.
type BrokerConfig struct {
	URL      string `envconfig:"RABBITMQ_URL" default:""`
	Exchange string `envconfig:"RABBITMQ_EXCHANGE" default:"toolcrib.events"`
}

// IngestConfig tunes event recording.
type IngestConfig struct {
	DedupWindow time.Duration `envconfig:"DEDUP_WINDOW" default:"5s"`
}

// SimulatorConfig drives the synthetic event generator.
type SimulatorConfig struct {
	Enabled   bool   `envconfig:"SIMULATOR_ENABLED" default:"false"`
	Schedule  string `envconfig:"SIMULATOR_SCHEDULE" default:"@every 5s"`
	TargetURL string `envconfig:"SIMULATOR_TARGET_URL" default:""`
	OriginIP  string `envconfig:"SIMULATOR_ORIGIN_IP" default:"127.0.0.1"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Location resolves Timezone, falling back to time.Local.
func (a *AppConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// Keys returns the non-empty configured API keys.
func (a *AppConfig) Keys() []string {
	keys := make([]string, 0, len(a.APIKeys))
	for _, k := range a.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// DSN returns the driver-specific data source name. The sqlite DSN is built
// by the repository package since it carries driver pragmas.
func (d *DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql", "pg":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
	case "mysql", "mariadb":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name)
	}
	return d.Path
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Ingest.DedupWindow <= 0 {
		return nil, fmt.Errorf("DEDUP_WINDOW must be positive, got %s", cfg.Ingest.DedupWindow)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
