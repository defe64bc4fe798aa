package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[logging]
output = "syslog"
level = "debug"

[database]
host = "db.internal"
port = "5433"
user = "maillog"
password = "s3cret"
name = "maillog_prod"
max_conns = 20

[servers.http_api]
start = true
addr = ":9000"
api_key = "token"

[servers.metrics]
enabled = true
addr = ":9100"

[ingest]
path = "/var/log/exim/main.log"
`)

	cfg := NewDefaultConfig()
	require.NoError(t, LoadConfigFromFile(path, &cfg))

	assert.Equal(t, "syslog", cfg.Logging.Output)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, "console", cfg.Logging.Format)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "5433", cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConns)

	assert.True(t, cfg.Servers.HTTPAPI.Start)
	assert.Equal(t, ":9000", cfg.Servers.HTTPAPI.Addr)
	assert.Equal(t, "token", cfg.Servers.HTTPAPI.APIKey)

	assert.True(t, cfg.Servers.Metrics.Enabled)
	assert.Equal(t, "/var/log/exim/main.log", cfg.Ingest.Path)
}

func TestLoadConfigMissingFileIsNotExist(t *testing.T) {
	cfg := NewDefaultConfig()
	err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.toml"), &cfg)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadConfigBadTOML(t *testing.T) {
	path := writeConfig(t, `[logging`)
	cfg := NewDefaultConfig()
	assert.Error(t, LoadConfigFromFile(path, &cfg))
}

func TestLoadConfigUnknownKeysAreTolerated(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"

[retention]
days = 30
`)
	cfg := NewDefaultConfig()
	require.NoError(t, LoadConfigFromFile(path, &cfg))
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestDatabaseDurationDefaults(t *testing.T) {
	var d DatabaseConfig

	lifetime, err := d.GetMaxConnLifetime()
	require.NoError(t, err)
	assert.Equal(t, "1h0m0s", lifetime.String())

	idle, err := d.GetMaxConnIdleTime()
	require.NoError(t, err)
	assert.Equal(t, "30m0s", idle.String())

	timeout, err := d.GetQueryTimeout()
	require.NoError(t, err)
	assert.Equal(t, "30s", timeout.String())

	d.QueryTimeout = "bogus"
	_, err = d.GetQueryTimeout()
	assert.Error(t, err)
}
