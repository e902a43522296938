package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "seedtrace/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string

	// RequireActor rejects writes without an X-Actor-ID header.
	RequireActor bool
}

// DatabaseConfig selects the storage backend. An empty URL keeps every store
// in memory.
type DatabaseConfig struct {
	URL          string
	Driver       string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

// RedisConfig backs the lot-number sequence. An empty URL falls back to the
// in-process counter.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the audit feed relay when Brokers is non-empty.
type KafkaConfig struct {
	Brokers      []string
	AuditTopic   string
	PollInterval time.Duration
}

type AuditConfig struct {
	Secret        string
	SweepInterval time.Duration
}

type IdentityConfig struct {
	LotNumberPrefix string
	VerifyBaseURL   string
}

type ReportingConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

type LifecycleConfig struct {
	LockTimeout time.Duration
}

// RateLimitConfig holds per-minute request budgets per client IP. Zero
// disables a class.
type RateLimitConfig struct {
	Enabled          bool
	ReadPerMinute    int
	WritePerMinute   int
	ScanPerMinute    int
	FailureThreshold int
}

// Config is the full process configuration.
type Config struct {
	Server              Server
	Database            DatabaseConfig
	Redis               RedisConfig
	Kafka               KafkaConfig
	Audit               AuditConfig
	Identity            IdentityConfig
	Reporting           ReportingConfig
	Lifecycle           LifecycleConfig
	RateLimit           RateLimitConfig
	ComplianceRulesFile string
}

// devAuditSecret is only accepted when no secret is configured outside production.
const devAuditSecret = "dev-audit-secret-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	intVar := func(key string, def int) int {
		v, err := intEnv(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := durationEnv(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := Config{
		Server: Server{
			Addr:            stringEnv("SEEDTRACE_ADDR", ":8080"),
			RequestTimeout:  durVar("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: durVar("SHUTDOWN_TIMEOUT", 10*time.Second),
			LogLevel:        stringEnv("LOG_LEVEL", "info"),
			RequireActor:    os.Getenv("REQUIRE_ACTOR") == "true",
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			Driver:       stringEnv("DATABASE_DRIVER", "postgres"),
			MaxOpenConns: intVar("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: intVar("DATABASE_MAX_IDLE_CONNS", 5),
			AutoMigrate:  os.Getenv("DATABASE_AUTO_MIGRATE") != "false",
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intVar("REDIS_POOL_SIZE", 10),
			MinIdleConns: intVar("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durVar("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durVar("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durVar("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      listEnv("KAFKA_BROKERS"),
			AuditTopic:   stringEnv("AUDIT_TOPIC", "seedtrace.audit"),
			PollInterval: durVar("AUDIT_FEED_POLL_INTERVAL", time.Second),
		},
		Audit: AuditConfig{
			Secret:        os.Getenv("AUDIT_SECRET"),
			SweepInterval: durVar("AUDIT_SWEEP_INTERVAL", 10*time.Minute),
		},
		Identity: IdentityConfig{
			LotNumberPrefix: strings.ToUpper(os.Getenv("LOT_NUMBER_PREFIX")),
			VerifyBaseURL:   strings.TrimRight(stringEnv("QR_VERIFY_BASE_URL", "http://localhost:8080"), "/"),
		},
		Reporting: ReportingConfig{
			DefaultPageSize: intVar("PAGE_SIZE_DEFAULT", 20),
			MaxPageSize:     intVar("PAGE_SIZE_MAX", 100),
		},
		Lifecycle: LifecycleConfig{
			LockTimeout: durVar("LIFECYCLE_LOCK_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:          os.Getenv("RATE_LIMIT_ENABLED") != "false",
			ReadPerMinute:    intVar("RATE_LIMIT_READ_PER_MINUTE", 600),
			WritePerMinute:   intVar("RATE_LIMIT_WRITE_PER_MINUTE", 120),
			ScanPerMinute:    intVar("RATE_LIMIT_SCAN_PER_MINUTE", 300),
			FailureThreshold: intVar("RATE_LIMIT_FAILURE_THRESHOLD", 5),
		},
		ComplianceRulesFile: os.Getenv("COMPLIANCE_RULES_FILE"),
	}

	if cfg.Audit.Secret == "" {
		if os.Getenv("SEEDTRACE_ENV") == "production" {
			errs = append(errs, "AUDIT_SECRET is required in production")
		}
		cfg.Audit.Secret = devAuditSecret
	}
	if cfg.Reporting.DefaultPageSize < 1 || cfg.Reporting.MaxPageSize < cfg.Reporting.DefaultPageSize {
		errs = append(errs, "PAGE_SIZE_DEFAULT must be positive and not exceed PAGE_SIZE_MAX")
	}
	switch cfg.Database.Driver {
	case "postgres", "pgx":
	default:
		errs = append(errs, fmt.Sprintf("DATABASE_DRIVER %q is not supported", cfg.Database.Driver))
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}

func listEnv(key string) []string {
	return strutil.SplitList(os.Getenv(key), ",")
}
