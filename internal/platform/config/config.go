package config

import (
	"os"
	"strings"
)

// Engine captures infrastructure configuration for the compliance engine.
// Statutory values (calling window, business-day deadline, sync intervals)
// are constants in their domain packages, not configuration: they are imposed
// by regulation, not by deployment.
type Engine struct {
	// DatabaseURL is the DSN of the shared relational store.
	DatabaseURL string
	// RedisURL enables the DNC listing cache when non-empty.
	RedisURL string
	// KafkaBrokers enables the audit outbox drain when non-empty.
	KafkaBrokers []string
	// AuditTopic is the Kafka topic the outbox drain produces to.
	AuditTopic string
	// DefaultTimezone is used for calling-hour checks when a contact has no
	// timezone on record.
	DefaultTimezone string
}

// FromEnv builds an Engine config from environment variables so wiring code
// stays lean.
func FromEnv() Engine {
	cfg := Engine{
		DatabaseURL:     os.Getenv("COMPLIANCE_DATABASE_URL"),
		RedisURL:        os.Getenv("COMPLIANCE_REDIS_URL"),
		AuditTopic:      os.Getenv("COMPLIANCE_AUDIT_TOPIC"),
		DefaultTimezone: os.Getenv("COMPLIANCE_DEFAULT_TIMEZONE"),
	}
	if brokers := os.Getenv("COMPLIANCE_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if cfg.AuditTopic == "" {
		cfg.AuditTopic = "compliance.audit"
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "America/New_York"
	}
	return cfg
}
