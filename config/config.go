// Package config defines the TOML configuration for the maillog service.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Output string `toml:"output"` // "stderr", "stdout", "syslog" or a file path
	Format string `toml:"format"` // "console" or "json"
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
}

// DatabaseConfig holds the PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string `toml:"host"`
	Port            string `toml:"port"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	Name            string `toml:"name"`
	TLSMode         bool   `toml:"tls"`
	LogQueries      bool   `toml:"log_queries"`
	MaxConns        int    `toml:"max_conns"`          // Maximum number of connections in the pool
	MinConns        int    `toml:"min_conns"`          // Minimum number of connections in the pool
	MaxConnLifetime string `toml:"max_conn_lifetime"`  // Maximum lifetime of a connection
	MaxConnIdleTime string `toml:"max_conn_idle_time"` // Maximum idle time before a connection is closed
	QueryTimeout    string `toml:"query_timeout"`      // Timeout for individual database queries (e.g. "30s")
}

// GetMaxConnLifetime parses the max connection lifetime duration
func (d *DatabaseConfig) GetMaxConnLifetime() (time.Duration, error) {
	if d.MaxConnLifetime == "" {
		return time.Hour, nil
	}
	return time.ParseDuration(d.MaxConnLifetime)
}

// GetMaxConnIdleTime parses the max connection idle time duration
func (d *DatabaseConfig) GetMaxConnIdleTime() (time.Duration, error) {
	if d.MaxConnIdleTime == "" {
		return 30 * time.Minute, nil
	}
	return time.ParseDuration(d.MaxConnIdleTime)
}

// GetQueryTimeout parses the query timeout duration
func (d *DatabaseConfig) GetQueryTimeout() (time.Duration, error) {
	if d.QueryTimeout == "" {
		return 30 * time.Second, nil // Default 30 second timeout for queries
	}
	return time.ParseDuration(d.QueryTimeout)
}

// HTTPAPIConfig holds configuration for the HTTP search API server
type HTTPAPIConfig struct {
	Start        bool     `toml:"start"`
	Addr         string   `toml:"addr"`
	APIKey       string   `toml:"api_key"`       // Optional bearer token for the JSON endpoint; empty disables auth
	AllowedHosts []string `toml:"allowed_hosts"` // Optional list of allowed client hosts/networks
}

// MetricsConfig holds configuration for the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	Path    string `toml:"path"`
}

// ServersConfig groups the server sections
type ServersConfig struct {
	HTTPAPI HTTPAPIConfig `toml:"http_api"`
	Metrics MetricsConfig `toml:"metrics"`
}

// IngestConfig holds configuration for file ingestion
type IngestConfig struct {
	Path string `toml:"path"` // Log file to ingest at startup; empty disables ingestion
}

// Config is the top-level configuration
type Config struct {
	Logging  LoggingConfig  `toml:"logging"`
	Database DatabaseConfig `toml:"database"`
	Servers  ServersConfig  `toml:"servers"`
	Ingest   IngestConfig   `toml:"ingest"`
}

// NewDefaultConfig returns a Config populated with application defaults.
// Command-line flags and the config file override these.
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
		Database: DatabaseConfig{
			Host: "localhost",
			Port: "5432",
			User: "postgres",
			Name: "maillog",
		},
		Servers: ServersConfig{
			HTTPAPI: HTTPAPIConfig{
				Start: true,
				Addr:  ":8080",
			},
			Metrics: MetricsConfig{
				Enabled: false,
				Addr:    ":9090",
				Path:    "/metrics",
			},
		},
	}
}

// LoadConfigFromFile decodes the TOML file at configPath into cfg,
// overriding whatever defaults cfg already carries. Unknown keys are
// reported as warnings rather than errors so older configs keep working.
func LoadConfigFromFile(configPath string, cfg *Config) error {
	content, err := os.ReadFile(configPath)
	if err != nil {
		// Returned unwrapped so callers can check os.IsNotExist.
		return err
	}

	metadata, err := toml.Decode(string(content), cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", configPath, err)
	}

	for _, key := range metadata.Undecoded() {
		log.Printf("WARNING: unknown configuration key '%s' in %s", key, configPath)
	}

	return nil
}
