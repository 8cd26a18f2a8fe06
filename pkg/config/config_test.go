package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_Defaults(t *testing.T) {
	cfg := InitConfig(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, "WHATSAPP-BAILEYS", cfg.Gateway.Integration)
	assert.Equal(t, int64(1), cfg.Gateway.NodeID)
	assert.Equal(t, DefaultQrRendererURL, cfg.Lifecycle.QrRendererURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.Lifecycle.QrWarmUp)
	assert.Equal(t, 24, cfg.Lifecycle.QrAttempts)
	assert.Equal(t, 2*time.Second, cfg.Lifecycle.QrInterval)
	assert.Equal(t, 12, cfg.Lifecycle.RefreshAttempts)
	assert.Equal(t, time.Second, cfg.Lifecycle.LogoutSettle)
	assert.Equal(t, 3*time.Second, cfg.Lifecycle.PollInterval)
	assert.Equal(t, 120*time.Second, cfg.Lifecycle.PollMaxDuration)
	assert.Equal(t, "@every 5m", cfg.Lifecycle.ReconcileEvery)
}

func TestInitConfig_YamlAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
app:
  name: funnel-wa
  port: "9000"
gateway:
  base_url: http://yaml-gateway:8080
  api_key: from-yaml
lifecycle:
  qr_attempts: 5
  poll_interval: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	t.Setenv("GATEWAY_API_KEY", "from-env")
	t.Setenv("APP_PORT", "9100")
	t.Setenv("GATEWAY_NODE_ID", "7")

	cfg := InitConfig(path)

	assert.Equal(t, "funnel-wa", cfg.App.Name)
	assert.Equal(t, "9100", cfg.App.Port)
	assert.Equal(t, "http://yaml-gateway:8080", cfg.Gateway.BaseURL)
	assert.Equal(t, "from-env", cfg.Gateway.APIKey)
	assert.Equal(t, int64(7), cfg.Gateway.NodeID)
	assert.Equal(t, 5, cfg.Lifecycle.QrAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Lifecycle.PollInterval)
}
