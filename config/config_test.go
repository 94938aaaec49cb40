package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DEDUP_CAPACITY", "")
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "redis", cfg.PushDriver)
	assert.Equal(t, 1000, cfg.DedupCapacity)
	assert.Equal(t, 300*time.Second, cfg.DedupTTL)
	assert.False(t, cfg.S3Enabled())
	assert.Nil(t, cfg.KafkaBrokers)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("PUSH_DRIVER", "nats")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("GUEST_SESSION_IDLE_MINUTES", "5")
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("S3_BUCKET", "attachments")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, "nats", cfg.PushDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Minute, cfg.GuestIdleTimeout)
	assert.True(t, cfg.S3Enabled())
}
