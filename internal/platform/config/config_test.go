package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"SEEDTRACE_ADDR", "DATABASE_URL", "DATABASE_DRIVER", "KAFKA_BROKERS", "AUDIT_SECRET", "SEEDTRACE_ENV", "PAGE_SIZE_DEFAULT", "PAGE_SIZE_MAX", "LOT_NUMBER_PREFIX", "QR_VERIFY_BASE_URL", "RATE_LIMIT_ENABLED", "RATE_LIMIT_WRITE_PER_MINUTE"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 20, cfg.Reporting.DefaultPageSize)
	assert.Equal(t, 100, cfg.Reporting.MaxPageSize)
	assert.Equal(t, devAuditSecret, cfg.Audit.Secret)
	assert.Equal(t, 10*time.Minute, cfg.Audit.SweepInterval)
	assert.Equal(t, "http://localhost:8080", cfg.Identity.VerifyBaseURL)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 120, cfg.RateLimit.WritePerMinute)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LOT_NUMBER_PREFIX", "gacp")
	t.Setenv("QR_VERIFY_BASE_URL", "https://trace.example.com/")
	t.Setenv("AUDIT_SWEEP_INTERVAL", "90s")
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("PAGE_SIZE_DEFAULT", "")
	t.Setenv("PAGE_SIZE_MAX", "")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "GACP", cfg.Identity.LotNumberPrefix)
	assert.Equal(t, "https://trace.example.com", cfg.Identity.VerifyBaseURL)
	assert.Equal(t, 90*time.Second, cfg.Audit.SweepInterval)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"PAGE_SIZE_MAX": "lots"}, "PAGE_SIZE_MAX"},
		{"bad duration", map[string]string{"AUDIT_SWEEP_INTERVAL": "often"}, "AUDIT_SWEEP_INTERVAL"},
		{"default above max", map[string]string{"PAGE_SIZE_DEFAULT": "50", "PAGE_SIZE_MAX": "10"}, "PAGE_SIZE_DEFAULT"},
		{"bad rate limit", map[string]string{"RATE_LIMIT_SCAN_PER_MINUTE": "many"}, "RATE_LIMIT_SCAN_PER_MINUTE"},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "sqlite"}, "DATABASE_DRIVER"},
		{"missing secret in production", map[string]string{"SEEDTRACE_ENV": "production", "AUDIT_SECRET": ""}, "AUDIT_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
