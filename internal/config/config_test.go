package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "homelab")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "homelab_monitor")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Minute, cfg.Alerting.RuleCacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.Alerting.DefaultCooldown)
	assert.Equal(t, 4, cfg.Alerting.Workers)
	assert.Equal(t, 256, cfg.Alerting.QueueSize)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PongTimeout)
	assert.Equal(t, "homelab/hosts/+/metrics", cfg.MQTT.MetricsTopic)
	assert.False(t, cfg.MQTT.Enabled)
	assert.False(t, cfg.NATS.Enabled())
	assert.Equal(t, 30, cfg.Retention.MetricsDays)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RULE_CACHE_TTL", "30s")
	t.Setenv("ALERT_WORKERS", "8")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("ALERT_QUEUE_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Alerting.RuleCacheTTL)
	assert.Equal(t, 8, cfg.Alerting.Workers)
	assert.Equal(t, 256, cfg.Alerting.QueueSize)
	assert.True(t, cfg.NATS.Enabled())
}

func TestValidateCollectsErrors(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Server.Port = 0
	cfg.Alerting.Workers = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "ALERT_WORKERS")
}

func TestLoadAgentRequiresKey(t *testing.T) {
	t.Setenv("AGENT_API_KEY", "")
	_, err := LoadAgent()
	require.Error(t, err)

	t.Setenv("AGENT_API_KEY", "hk_abc")
	t.Setenv("AGENT_INTERVAL", "15s")
	cfg, err := LoadAgent()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Interval)
	assert.Equal(t, "http://localhost:8000", cfg.ServerURL)
}
