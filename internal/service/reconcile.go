package service

import (
	"context"
	"fmt"

	"fortune-letter/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ReconcileOutcome says what ReconcilePayment did. Skipped means the
// attempt was no longer pending once the order lock was held; captured
// means the provider had taken the funds and payment and order were settled.
type ReconcileOutcome string

const (
	ReconcileSkipped   ReconcileOutcome = "skipped"
	ReconcileCancelled ReconcileOutcome = "cancelled"
	ReconcileCaptured  ReconcileOutcome = "captured"
)

// ReconcilePayment settles a pending attempt from the provider's record of
// it. A captured payment is recorded exactly as a confirm would record it;
// one the provider never captured is cancelled. Provider errors leave the
// attempt pending.
func (s *orderService) ReconcilePayment(ctx context.Context, externalOrderID string) (ReconcileOutcome, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ReconcilePayment",
		trace.WithAttributes(attribute.String("payment.external_order_id", externalOrderID)))
	defer span.End()

	outcome, err := s.reconcilePayment(ctx, externalOrderID)
	if err != nil {
		recordSpanError(span, err)
		return ReconcileSkipped, err
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	return outcome, nil
}

func (s *orderService) reconcilePayment(ctx context.Context, externalOrderID string) (ReconcileOutcome, error) {
	p, err := s.store.GetPaymentByExternalId(ctx, externalOrderID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", fmt.Errorf("%w: payment %s", domain.ErrNotFound, externalOrderID)
	}

	unlock, err := s.locker.Lock(ctx, p.OrderID.String())
	if err != nil {
		return "", fmt.Errorf("lock order %s: %w", p.OrderID, err)
	}
	defer unlock()

	// a confirm may have settled it while we waited for the lock
	p, err = s.store.GetPaymentByExternalId(ctx, externalOrderID)
	if err != nil {
		return "", err
	}
	if p == nil || p.Status != domain.PaymentPending {
		return ReconcileSkipped, nil
	}
	log := s.log.With(
		zap.String("order_id", p.OrderID.String()),
		zap.String("external_order_id", p.ExternalOrderID),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	result, err := s.provider.LookupPayment(callCtx, p.ExternalOrderID)
	err = classifyTimeout(callCtx, err)
	cancel()
	if err != nil {
		log.Warn("payment_lookup_failed", zap.Error(err))
		return "", fmt.Errorf("lookup payment: %w", err)
	}

	if !result.Success {
		if err := s.store.UpdatePaymentByExternalId(ctx, p.ExternalOrderID, domain.PaymentUpdate{
			Status:      domain.PaymentCancelled,
			RawResponse: result.Raw,
			UpdatedAt:   s.now(),
		}); err != nil {
			return "", err
		}
		log.Info("stale_payment_cancelled", zap.String("reason", declineReason(result)))
		return ReconcileCancelled, nil
	}

	order, err := s.loadOrder(ctx, p.OrderID)
	if err != nil {
		return "", err
	}
	log.Warn("captured_payment_recovered", zap.String("provider_payment_id", result.PaymentID))
	if err := s.recordCapture(ctx, log, order, p, result); err != nil {
		return "", err
	}
	return ReconcileCaptured, nil
}
