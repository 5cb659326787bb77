package service

import (
	"context"
	"errors"
	"fmt"

	"fortune-letter/internal/domain"
	"fortune-letter/internal/infrastructure/generator"
	"fortune-letter/internal/infrastructure/payment"
	"fortune-letter/internal/repo"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConfirmAndGenerate settles the payment (once) and then produces the
// letter (once). It is safe to call again after any failure: a confirmed
// payment is never re-confirmed and a stored letter is never regenerated.
func (s *orderService) ConfirmAndGenerate(ctx context.Context, in ConfirmInput) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ConfirmAndGenerate",
		trace.WithAttributes(
			attribute.String("order.id", in.OrderID.String()),
			attribute.String("payment.external_order_id", in.ExternalOrderID),
		))
	defer span.End()

	outcome, err := s.confirmAndGenerate(ctx, in)
	if err != nil {
		outcome = domain.Kind(err)
		recordSpanError(span, err)
	}
	s.metrics.ConfirmOutcome(outcome)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		return uuid.Nil, err
	}
	return in.OrderID, nil
}

func (s *orderService) confirmAndGenerate(ctx context.Context, in ConfirmInput) (string, error) {
	if in.ExternalOrderID == "" {
		return "", domain.NewValidationError("externalOrderId", "external order id is required")
	}

	unlock, err := s.locker.Lock(ctx, in.OrderID.String())
	if err != nil {
		return "", fmt.Errorf("lock order %s: %w", in.OrderID, err)
	}
	defer unlock()

	order, err := s.loadOrder(ctx, in.OrderID)
	if err != nil {
		return "", err
	}
	log := s.log.With(zap.String("order_id", order.ID.String()))

	switch order.Status {
	case domain.OrderFortuneGenerated:
		return "already_generated", nil
	case domain.OrderPendingPayment:
		if err := s.confirmPayment(ctx, log, order, in); err != nil {
			return "", err
		}
	}

	if !order.NeedsFortune() {
		return "", fmt.Errorf("%w: order %s is %s", domain.ErrInvalidState, order.ID, order.Status)
	}
	return s.ensureFortune(ctx, log, order)
}

// confirmPayment moves a pending_payment order to paid, or marks the
// payment failed and leaves the order untouched.
func (s *orderService) confirmPayment(ctx context.Context, log *zap.Logger, order *domain.Order, in ConfirmInput) error {
	p, err := s.store.GetPaymentByExternalId(ctx, in.ExternalOrderID)
	if err != nil {
		return err
	}
	if p == nil || p.OrderID != order.ID {
		return fmt.Errorf("%w: unknown payment reference %s for order %s", domain.ErrInvalidState, in.ExternalOrderID, order.ID)
	}
	if p.Status != domain.PaymentPending {
		return fmt.Errorf("%w: payment %s is %s, request a new payment", domain.ErrInvalidState, p.ExternalOrderID, p.Status)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	result, err := s.provider.ConfirmPayment(callCtx, payment.ConfirmRequest{
		ExternalOrderID: p.ExternalOrderID,
		PaymentKey:      in.PaymentKey,
		Amount:          p.Amount,
	})
	err = classifyTimeout(callCtx, err)
	cancel()
	if err != nil {
		log.Error("payment_confirm_error", zap.String("external_order_id", p.ExternalOrderID), zap.Error(err))
		return fmt.Errorf("confirm payment: %w", err)
	}

	now := s.now()
	if !result.Success {
		reason := declineReason(result)
		if err := s.store.UpdatePaymentByExternalId(ctx, p.ExternalOrderID, domain.PaymentUpdate{
			Status:      domain.PaymentFailed,
			RawResponse: result.Raw,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		log.Warn("payment_declined", zap.String("external_order_id", p.ExternalOrderID), zap.String("reason", reason))
		return fmt.Errorf("%w: %s", domain.ErrPaymentFailed, reason)
	}

	return s.recordCapture(ctx, log, order, p, result)
}

// recordCapture stores a payment the provider reports as captured and
// moves a pending_payment order to paid in the same transaction.
func (s *orderService) recordCapture(ctx context.Context, log *zap.Logger, order *domain.Order, p *domain.Payment, result *payment.PaymentResult) error {
	now := s.now()
	update := domain.PaymentUpdate{
		Status:      domain.PaymentSucceeded,
		PaidAt:      &now,
		RawResponse: result.Raw,
		UpdatedAt:   now,
	}
	if result.PaymentID != "" {
		update.ProviderPaymentID = &result.PaymentID
	}

	settle := order.Status == domain.OrderPendingPayment
	if settle {
		if err := order.Transition(domain.OrderPaid, now); err != nil {
			return err
		}
	} else {
		// funds taken twice for one order; needs a manual refund
		log.Error("payment_captured_on_settled_order",
			zap.String("external_order_id", p.ExternalOrderID),
			zap.String("order_status", string(order.Status)),
		)
	}

	err := s.store.WithTx(ctx, func(tx repo.Store) error {
		if err := tx.UpdatePaymentByExternalId(ctx, p.ExternalOrderID, update); err != nil {
			return err
		}
		if !settle {
			return nil
		}
		return tx.UpdateOrderStatus(ctx, order)
	})
	if err != nil {
		// the provider already captured the funds; a retry re-confirms idempotently
		log.Error("payment_record_failed", zap.String("external_order_id", p.ExternalOrderID), zap.Error(err))
		return err
	}

	log.Info("payment_confirmed",
		zap.String("external_order_id", p.ExternalOrderID),
		zap.String("provider_payment_id", result.PaymentID),
	)
	return nil
}

// ensureFortune generates and stores the letter for a paid (or previously
// failed) order unless one is already stored.
func (s *orderService) ensureFortune(ctx context.Context, log *zap.Logger, order *domain.Order) (string, error) {
	input := generator.InputFromOrder(order)
	fingerprint := input.Fingerprint()

	existing, err := s.store.GetFortuneByOrderId(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if existing.PromptHash != "" && existing.PromptHash != fingerprint {
			log.Warn("fortune_fingerprint_mismatch",
				zap.String("stored", existing.PromptHash),
				zap.String("current", fingerprint),
			)
		}
		if err := s.markGenerated(ctx, order); err != nil {
			return "", err
		}
		return "recovered", nil
	}

	model := s.generator.Model()
	start := s.now()
	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	content, err := s.generator.Generate(genCtx, input)
	err = classifyTimeout(genCtx, err)
	cancel()
	if err != nil {
		s.metrics.ObserveGeneration(model, "error", s.now().Sub(start))
		log.Error("fortune_generation_failed", zap.String("model", model), zap.Error(err))

		if order.Status != domain.OrderFailed {
			if terr := order.Transition(domain.OrderFailed, s.now()); terr != nil {
				return "", terr
			}
			if uerr := s.store.UpdateOrderStatus(ctx, order); uerr != nil {
				log.Error("order_mark_failed_error", zap.Error(uerr))
			}
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	s.metrics.ObserveGeneration(model, "success", s.now().Sub(start))

	now := s.now()
	fortune := &domain.Fortune{
		ID:         uuid.New(),
		OrderID:    order.ID,
		Content:    *content,
		Model:      model,
		PromptHash: fingerprint,
		CreatedAt:  now,
	}
	if err := order.Transition(domain.OrderFortuneGenerated, now); err != nil {
		return "", err
	}

	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		if err := tx.InsertFortune(ctx, fortune); err != nil {
			return err
		}
		return tx.UpdateOrderStatus(ctx, order)
	})
	if errors.Is(err, domain.ErrDuplicateFortune) {
		log.Warn("fortune_already_stored")
		if err := s.store.UpdateOrderStatus(ctx, order); err != nil {
			return "", err
		}
		return "recovered", nil
	}
	if err != nil {
		log.Error("fortune_store_failed", zap.Error(err))
		return "", err
	}

	log.Info("fortune_generated", zap.String("model", model), zap.String("prompt_hash", fingerprint))
	return "generated", nil
}

func (s *orderService) markGenerated(ctx context.Context, order *domain.Order) error {
	if err := order.Transition(domain.OrderFortuneGenerated, s.now()); err != nil {
		return err
	}
	return s.store.UpdateOrderStatus(ctx, order)
}
