package worker

import (
	"context"
	"time"

	"fortune-letter/internal/metrics"
	"fortune-letter/internal/repo"
	"fortune-letter/internal/service"

	"go.uber.org/zap"
)

const sweepBatch = 100

// Reconciler settles one pending payment attempt against the provider's
// record. The order service implements it under the order lock.
type Reconciler interface {
	ReconcilePayment(ctx context.Context, externalOrderID string) (service.ReconcileOutcome, error)
}

// ReconciliationWorker finds payment attempts that were initiated but never
// confirmed and asks the provider what became of them. Captured ones are
// recorded as paid; the rest are cancelled, and the customer has to request
// a new payment.
type ReconciliationWorker struct {
	store      repo.Store
	reconciler Reconciler
	interval   time.Duration
	pendingTTL time.Duration
	log        *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewReconciliationWorker(
	store repo.Store,
	reconciler Reconciler,
	interval time.Duration,
	pendingTTL time.Duration,
	log *zap.Logger,
	m *metrics.Metrics,
) *ReconciliationWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconciliationWorker{
		store:      store,
		reconciler: reconciler,
		interval:   interval,
		pendingTTL: pendingTTL,
		log:        log.With(zap.String("component", "payment_sweeper")),
		metrics:    m,
		now:        time.Now,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.Info("reconciliation_worker_started",
		zap.Duration("interval", rw.interval),
		zap.Duration("pending_ttl", rw.pendingTTL),
	)

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("reconciliation_worker_stopped")
			return
		case <-ticker.C:
			if _, err := rw.Sweep(ctx); err != nil {
				rw.log.Error("reconciliation_failed", zap.Error(err))
			}
		}
	}
}

// Sweep reconciles one batch of stale pending payments and reports how
// many were cancelled.
func (rw *ReconciliationWorker) Sweep(ctx context.Context) (int, error) {
	stale, err := rw.store.FindStalePendingPayments(ctx, rw.now().Add(-rw.pendingTTL), sweepBatch)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	cancelled, recovered := 0, 0
	for _, p := range stale {
		outcome, err := rw.reconciler.ReconcilePayment(ctx, p.ExternalOrderID)
		if err != nil {
			// left pending for the next sweep
			rw.log.Warn("payment_reconcile_failed",
				zap.String("order_id", p.OrderID.String()),
				zap.String("external_order_id", p.ExternalOrderID),
				zap.Error(err),
			)
			continue
		}
		switch outcome {
		case service.ReconcileCancelled:
			cancelled++
		case service.ReconcileCaptured:
			recovered++
		}
	}
	rw.metrics.PaymentsSwept(cancelled)
	rw.metrics.PaymentsRecovered(recovered)
	if recovered > 0 {
		rw.log.Warn("captured_payments_recovered", zap.Int("count", recovered))
	}
	return cancelled, nil
}
