package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/migadu/maillog/config"
	"github.com/stretchr/testify/require"
)

// setupTestDatabase connects to the database described by config-test.toml
// in the project root. Tests are skipped when the file is absent so the
// suite runs without a local PostgreSQL.
func setupTestDatabase(t *testing.T) *Database {
	t.Helper()

	configPath, err := findTestConfig()
	if err != nil {
		t.Skip("config-test.toml not found, skipping database tests")
	}

	var cfg config.Config
	_, err = toml.DecodeFile(configPath, &cfg)
	require.NoError(t, err, "failed to load test config, please check config-test.toml syntax")

	ctx := context.Background()
	database, err := NewDatabase(ctx, &cfg.Database)
	require.NoError(t, err, "failed to connect to test database, please ensure PostgreSQL is running and %s exists", cfg.Database.Name)

	t.Cleanup(func() {
		// Each test works with unique identifiers, so truncating is not
		// required, but drop test residue to keep reruns small.
		database.Close()
	})

	return database
}

// findTestConfig walks up the directory tree to find config-test.toml.
func findTestConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, "config-test.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config-test.toml not found")
		}
		dir = parent
	}
}
