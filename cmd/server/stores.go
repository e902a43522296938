package main

import (
	"context"
	"database/sql"
	"log/slog"

	"seedtrace/internal/audit"
	auditmemory "seedtrace/internal/audit/store/memory"
	auditpostgres "seedtrace/internal/audit/store/postgres"
	"seedtrace/internal/identity"
	identitymemory "seedtrace/internal/identity/store/memory"
	identitypostgres "seedtrace/internal/identity/store/postgres"
	"seedtrace/internal/ledger"
	ledgermemory "seedtrace/internal/ledger/store/memory"
	ledgerpostgres "seedtrace/internal/ledger/store/postgres"
	"seedtrace/internal/lifecycle"
	lifecyclememory "seedtrace/internal/lifecycle/store/memory"
	lifecyclepostgres "seedtrace/internal/lifecycle/store/postgres"
	"seedtrace/internal/platform/config"
	"seedtrace/internal/platform/postgres"
	"seedtrace/internal/platform/redis"
	"seedtrace/pkg/platform/tx"
)

// infra holds the external connections and the stores built on them.
type infra struct {
	db    *sql.DB
	redis *redis.Client

	lifecycle lifecycle.Store
	ledger    ledger.Store
	audit     audit.Store
	identity  identity.Store
	sequence  identity.SequenceSource
	tx        tx.Runner
}

// openInfra picks Postgres when DATABASE_URL is set and memory otherwise,
// and the Redis sequence when REDIS_URL is set.
func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		in.db = db
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		in.lifecycle = lifecyclepostgres.New(db)
		in.ledger = ledgerpostgres.New(db)
		in.audit = auditpostgres.New(db)
		in.identity = identitypostgres.New(db)
		in.tx = tx.NewSQLRunner(db)
		log.Info("using postgres storage", "driver", cfg.Database.Driver)
	} else {
		in.lifecycle = lifecyclememory.NewInMemoryStore()
		in.ledger = ledgermemory.NewInMemoryStore()
		in.audit = auditmemory.NewInMemoryStore()
		in.identity = identitymemory.NewInMemoryStore()
		in.tx = tx.NoopRunner{}
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		in.sequence = identity.NewRedisSequence(rc.Client)
		log.Info("using redis lot-number sequence")
	} else {
		in.sequence = identity.NewMemorySequence()
	}
	return in, nil
}

func (in *infra) Close() {
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}
