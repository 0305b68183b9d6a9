package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthmon/internals/domain"
	"healthmon/pkg/apperror"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healthmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Defaults.Host)
	assert.Equal(t, 10, cfg.Defaults.Interval)
	assert.Equal(t, 3, cfg.Defaults.DownAlertThreshold)
	assert.Equal(t, 1000, cfg.History.MaxEntries)
	assert.Equal(t, 30, cfg.History.RetentionDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention())
	assert.Equal(t, 5*time.Second, cfg.Defaults.ProbeTimeout)
	assert.Equal(t, "file", cfg.Storage.Driver)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
env: production
defaults:
  host: example.com
  interval: 30
  down_alert_threshold: 2
history:
  max_entries: 50
  retention_days: 7
services:
  - name: api
    path: /health
    scheme: https
  - name: db
    host: 10.0.0.5
    port: 5432
    scheme: tcp
    interval_sec: 5
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 50, cfg.History.MaxEntries)
	require.Len(t, cfg.Services, 2)
	assert.Equal(t, "api", cfg.Services[0].Name)
	assert.Equal(t, domain.SchemeTCP, cfg.Services[1].Scheme)
	assert.Equal(t, 5432, cfg.Services[1].Port)

	d := cfg.ServiceDefaults()
	assert.Equal(t, domain.Defaults{Host: "example.com", IntervalSec: 30, DownAlertThreshold: 2}, d)
}

func TestLoadConfigRejectsOutOfRange(t *testing.T) {
	cases := map[string]string{
		"interval":  "defaults:\n  interval: 0\n",
		"threshold": "defaults:\n  down_alert_threshold: 0\n",
		"max":       "history:\n  max_entries: -5\n",
		"retention": "history:\n  retention_days: 0\n",
		"driver":    "storage:\n  driver: mongo\n",
		"postgres":  "storage:\n  driver: postgres\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
			assert.True(t, apperror.IsKind(err, apperror.Configuration))
		})
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("HEALTHMON_DEFAULTS_INTERVAL", "45")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Defaults.Interval)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Configuration))
}
