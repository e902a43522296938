package audit

import (
	"context"
	"log/slog"
	"time"

	"seedtrace/internal/audit/metrics"
)

// Sweeper periodically verifies the whole chain and exports the outcome.
type Sweeper struct {
	verifier interface {
		VerifyChain(ctx context.Context, startID, endID int64) (*ChainVerification, error)
	}
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{
		verifier: svc,
		interval: interval,
		logger:   svc.logger,
		metrics:  svc.metrics,
	}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (w *Sweeper) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs one full verification. Storage failures are logged and leave
// the gauge untouched.
func (w *Sweeper) Sweep(ctx context.Context) *ChainVerification {
	result, err := w.verifier.VerifyChain(ctx, 0, 0)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("audit sweep failed", "error", err)
		}
		return nil
	}
	w.metrics.SetChainIntact(result.Valid)
	if result.Valid {
		w.logger.Debug("audit sweep passed", "checked", result.Checked)
	} else {
		w.logger.Error("audit chain broken",
			"record_id", result.BrokenAtID,
			"reason", result.Message,
			"checked", result.Checked,
		)
	}
	return result
}
