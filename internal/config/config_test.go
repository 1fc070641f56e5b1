package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %s", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()

	cfg, err := LoadConfig(writeConfigFile(t, "environment: dev\n"))
	assert.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, 60, cfg.Chains.FlowWindowSeconds)
	assert.Equal(t, "60s", cfg.FlowWindow().String())
	assert.Empty(t, cfg.Integrations)
}

func TestLoadConfig_File(t *testing.T) {
	viper.Reset()

	path := writeConfigFile(t, `
environment: production
log_level: debug
server:
  addr: ":9090"
db:
  host: db.lan
  password: hunter2
auth:
  issuer_url: "https://auth.home.lan/realms/homeops/"
  client_id: homeops-backend
chains:
  flow_window_seconds: 90
integrations:
  - service: overseerr
    url: "http://overseerr.lan:5055"
    api_key: abc123
    enabled: true
  - service: sabnzbd
    url: "http://sabnzbd.lan:8080"
    api_key: def456
    enabled: false
`)

	cfg, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "db.lan", cfg.DB.Host)
	assert.Equal(t, "hunter2", cfg.DB.Password)
	assert.Equal(t, "90s", cfg.FlowWindow().String())

	// Trailing slash on the issuer is normalized away.
	assert.Equal(t, "https://auth.home.lan/realms/homeops", cfg.Auth.IssuerURL)

	assert.Len(t, cfg.Integrations, 2)
	assert.Equal(t, "overseerr", cfg.Integrations[0].Service)
	assert.True(t, cfg.Integrations[0].Enabled)
	assert.False(t, cfg.Integrations[1].Enabled)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("HOMEOPS_DB_HOST", "postgres.cluster.lan")

	cfg, err := LoadConfig(writeConfigFile(t, "environment: dev\n"))
	assert.NoError(t, err)
	assert.Equal(t, "postgres.cluster.lan", cfg.DB.Host)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	viper.Reset()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
