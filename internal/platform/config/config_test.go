package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("COMPLIANCE_DATABASE_URL", "")
	t.Setenv("COMPLIANCE_AUDIT_TOPIC", "")
	t.Setenv("COMPLIANCE_DEFAULT_TIMEZONE", "")
	t.Setenv("COMPLIANCE_KAFKA_BROKERS", "")

	cfg := FromEnv()
	assert.Equal(t, "compliance.audit", cfg.AuditTopic)
	assert.Equal(t, "America/New_York", cfg.DefaultTimezone)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("COMPLIANCE_DATABASE_URL", "postgres://localhost/compliance")
	t.Setenv("COMPLIANCE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("COMPLIANCE_AUDIT_TOPIC", "audit.v2")
	t.Setenv("COMPLIANCE_DEFAULT_TIMEZONE", "America/Chicago")
	t.Setenv("COMPLIANCE_KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")

	cfg := FromEnv()
	assert.Equal(t, "postgres://localhost/compliance", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "audit.v2", cfg.AuditTopic)
	assert.Equal(t, "America/Chicago", cfg.DefaultTimezone)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}
