package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"seedtrace/internal/audit"
	"seedtrace/internal/audit/feed"
	audithandler "seedtrace/internal/audit/handler"
	auditmetrics "seedtrace/internal/audit/metrics"
	"seedtrace/internal/compliance"
	"seedtrace/internal/identity"
	identityhandler "seedtrace/internal/identity/handler"
	identitymetrics "seedtrace/internal/identity/metrics"
	"seedtrace/internal/ledger"
	"seedtrace/internal/ledger/adapters"
	ledgermetrics "seedtrace/internal/ledger/metrics"
	"seedtrace/internal/lifecycle"
	lifecyclehandler "seedtrace/internal/lifecycle/handler"
	lifecyclemetrics "seedtrace/internal/lifecycle/metrics"
	"seedtrace/internal/platform/config"
	"seedtrace/internal/platform/httpserver"
	"seedtrace/internal/platform/logger"
	platformmetrics "seedtrace/internal/platform/metrics"
	"seedtrace/internal/ratelimit"
	"seedtrace/internal/reporting"
	reportinghandler "seedtrace/internal/reporting/handler"
	reportingmetrics "seedtrace/internal/reporting/metrics"
	httptransport "seedtrace/internal/transport/http"
)

const (
	feedPartitions         = 3
	feedReplicas           = 1
	rateLimitSweepInterval = time.Minute
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// process lifecycle small. Business logic lives in the internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seedtrace: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	rules, err := compliance.LoadRules(cfg.ComplianceRulesFile)
	if err != nil {
		return err
	}

	httpMetrics := platformmetrics.New()
	auditMetrics := auditmetrics.New()

	auditService := audit.NewService(in.audit, cfg.Audit.Secret,
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
	)
	identityService := identity.NewService(in.identity, cfg.Identity.VerifyBaseURL,
		identity.WithLogger(log),
		identity.WithMetrics(identitymetrics.New()),
	)
	ledgerService := ledger.NewService(in.ledger, adapters.NewLifecycleSubjects(in.lifecycle), auditService,
		ledger.WithLogger(log),
		ledger.WithMetrics(ledgermetrics.New()),
		ledger.WithTxRunner(in.tx),
	)
	lifecycleService := lifecycle.NewService(in.lifecycle, auditService, ledgerService, identityService,
		identity.NewLotNumbers(cfg.Identity.LotNumberPrefix, in.sequence),
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(lifecyclemetrics.New()),
		lifecycle.WithTxRunner(in.tx),
		lifecycle.WithLockTimeout(cfg.Lifecycle.LockTimeout),
	)
	reportingService := reporting.NewService(lifecycleService, ledgerService, auditService, identityService,
		compliance.NewEvaluator(rules),
		reporting.WithLogger(log),
		reporting.WithMetrics(reportingmetrics.New()),
		reporting.WithPageSizes(cfg.Reporting.DefaultPageSize, cfg.Reporting.MaxPageSize),
		reporting.WithResponseTimes(httpMetrics),
	)

	var (
		limiter     *ratelimit.Limiter
		limitMemory *ratelimit.MemoryStore
	)
	if cfg.RateLimit.Enabled {
		limiter, limitMemory = newRateLimiter(cfg.RateLimit, in.redis, log)
	}

	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Metrics:        httpMetrics,
		RequestTimeout: cfg.Server.RequestTimeout,
		RequireActor:   cfg.Server.RequireActor,
		HealthChecks:   checks,
		RateLimiter:    limiter,
	},
		lifecyclehandler.New(lifecycleService, ledgerService, identityService, log),
		reportinghandler.New(reportingService, log),
		audithandler.New(auditService, log),
		identityhandler.New(identityService, log),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})

	if cfg.Audit.SweepInterval > 0 {
		sweeper := audit.NewSweeper(auditService, cfg.Audit.SweepInterval)
		g.Go(func() error {
			return ignoreCancel(sweeper.Run(gctx))
		})
	}

	if limitMemory != nil {
		g.Go(func() error {
			return ignoreCancel(limitMemory.RunSweeper(gctx, rateLimitSweepInterval))
		})
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := feed.NewClient(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := feed.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, feedPartitions, feedReplicas); err != nil {
			log.Warn("audit feed topic bootstrap failed", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		relay := feed.NewRelay(in.audit, feed.NewKafkaProducer(client, cfg.Kafka.AuditTopic),
			feed.WithLogger(log),
			feed.WithMetrics(auditMetrics),
			feed.WithPollInterval(cfg.Kafka.PollInterval),
		)
		g.Go(func() error {
			return ignoreCancel(relay.Run(gctx))
		})
		log.Info("audit feed relay enabled", "topic", cfg.Kafka.AuditTopic)
	}

	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
