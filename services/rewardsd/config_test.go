package rewardsd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
oracle:
  endpoint: "http://localhost:7091"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":7090", cfg.ListenAddress)
	require.Equal(t, "memory", cfg.Database.Backend)
	require.Equal(t, 5*time.Second, cfg.Oracle.Timeout.Duration)
	require.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestLoadConfigParsesDurations(t *testing.T) {
	path := writeConfig(t, `
reclaim_window: "48h"
oracle:
  endpoint: "http://localhost:7091"
  timeout: "2s"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 48*time.Hour, cfg.ReclaimWindow.Duration)
	require.Equal(t, 2*time.Second, cfg.Oracle.Timeout.Duration)
}

func TestLoadConfigRejectsMissingOracle(t *testing.T) {
	path := writeConfig(t, `
listen: ":7090"
`)
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "oracle endpoint")
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
database:
  backend: cassandra
oracle:
  endpoint: "http://localhost:7091"
`)
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "unknown database backend")
}

func TestLoadConfigRequiresPathForPersistentBackends(t *testing.T) {
	path := writeConfig(t, `
database:
  backend: bolt
oracle:
  endpoint: "http://localhost:7091"
`)
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "database path")
}

func TestLoadConfigReadsBearerTokenFile(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenPath, []byte("  sekrit \n"), 0o600))
	path := writeConfig(t, `
oracle:
  endpoint: "http://localhost:7091"
auth:
  bearer_token_file: "`+tokenPath+`"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "sekrit", cfg.Auth.BearerToken)
}
