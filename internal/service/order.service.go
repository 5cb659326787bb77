package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fortune-letter/internal/domain"
	"fortune-letter/internal/infrastructure/generator"
	"fortune-letter/internal/infrastructure/payment"
	"fortune-letter/internal/metrics"
	"fortune-letter/internal/repo"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPrice             int64 = 1000
	DefaultOrderName               = "Fortune Letter"
	DefaultProviderTimeout         = 10 * time.Second
	DefaultGenerationTimeout       = 60 * time.Second
)

var tracer = otel.Tracer("fortune-letter/service")

// Locker grants exclusive access per key for the lifetime of one call.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, in domain.OrderInput) (*domain.Order, error)
	RequestPayment(ctx context.Context, orderID uuid.UUID) (*PaymentSession, error)
	ConfirmAndGenerate(ctx context.Context, in ConfirmInput) (uuid.UUID, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetails, error)
	ReconcilePayment(ctx context.Context, externalOrderID string) (ReconcileOutcome, error)
}

type PaymentSession struct {
	ExternalOrderID string
	Provider        string
	Amount          int64
}

type ConfirmInput struct {
	OrderID         uuid.UUID
	ExternalOrderID string
	PaymentKey      string
}

type OrderDetails struct {
	Order    *domain.Order
	Fortune  *domain.Fortune
	Payments []domain.Payment
}

type Option func(*orderService)

func WithLogger(l *zap.Logger) Option { return func(s *orderService) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *orderService) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *orderService) { s.now = now } }

func WithPrice(amount int64) Option { return func(s *orderService) { s.price = amount } }

func WithOrderName(name string) Option { return func(s *orderService) { s.orderName = name } }

// WithTimeouts bounds each payment provider call and each generation call.
func WithTimeouts(provider, generation time.Duration) Option {
	return func(s *orderService) {
		if provider > 0 {
			s.providerTimeout = provider
		}
		if generation > 0 {
			s.generationTimeout = generation
		}
	}
}

type orderService struct {
	store     repo.Store
	provider  payment.Provider
	generator generator.Generator
	locker    Locker

	log               *zap.Logger
	metrics           *metrics.Metrics
	now               func() time.Time
	price             int64
	orderName         string
	providerTimeout   time.Duration
	generationTimeout time.Duration
}

func NewOrderService(
	store repo.Store,
	provider payment.Provider,
	gen generator.Generator,
	locker Locker,
	opts ...Option,
) OrderService {
	s := &orderService{
		store:             store,
		provider:          provider,
		generator:         gen,
		locker:            locker,
		log:               zap.NewNop(),
		now:               time.Now,
		price:             DefaultPrice,
		orderName:         DefaultOrderName,
		providerTimeout:   DefaultProviderTimeout,
		generationTimeout: DefaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *orderService) CreateOrder(ctx context.Context, in domain.OrderInput) (*domain.Order, error) {
	order, err := domain.NewOrder(in, s.price, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.InsertOrder(ctx, order); err != nil {
		s.log.Error("order_create_failed", zap.Error(err))
		return nil, err
	}

	s.metrics.OrderCreated()
	s.log.Info("order_created", zap.String("order_id", order.ID.String()), zap.Int64("amount", order.Amount))
	return order, nil
}

func (s *orderService) RequestPayment(ctx context.Context, orderID uuid.UUID) (*PaymentSession, error) {
	ctx, span := tracer.Start(ctx, "OrderService.RequestPayment",
		trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	session, err := s.requestPayment(ctx, orderID)
	outcome := "success"
	if err != nil {
		outcome = domain.Kind(err)
		recordSpanError(span, err)
	}
	s.metrics.PaymentRequested(s.provider.Name(), outcome)
	return session, err
}

func (s *orderService) requestPayment(ctx context.Context, orderID uuid.UUID) (*PaymentSession, error) {
	unlock, err := s.locker.Lock(ctx, orderID.String())
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderPendingPayment {
		return nil, fmt.Errorf("%w: order %s is already %s", domain.ErrInvalidState, order.ID, order.Status)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	result, err := s.provider.InitiatePayment(callCtx, payment.PaymentRequest{
		OrderID:      order.ID.String(),
		Amount:       order.Amount,
		OrderName:    s.orderName,
		CustomerName: order.Name,
	})
	err = classifyTimeout(callCtx, err)
	cancel()
	if err != nil {
		s.log.Error("payment_initiate_failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("initiate payment: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentFailed, declineReason(result))
	}

	providerName := result.Provider
	if providerName == "" {
		providerName = s.provider.Name()
	}
	now := s.now()
	p := &domain.Payment{
		ID:              uuid.New(),
		OrderID:         order.ID,
		Provider:        providerName,
		ExternalOrderID: result.ExternalOrderID,
		Amount:          order.Amount,
		Status:          domain.PaymentPending,
		RawResponse:     result.Raw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var cancelled int64
	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		n, err := tx.CancelPendingPayments(ctx, order.ID, now)
		if err != nil {
			return err
		}
		cancelled = n
		return tx.InsertPayment(ctx, p)
	})
	if err != nil {
		s.log.Error("payment_insert_failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, err
	}

	s.log.Info("payment_requested",
		zap.String("order_id", order.ID.String()),
		zap.String("external_order_id", p.ExternalOrderID),
		zap.String("provider", p.Provider),
		zap.Int64("superseded", cancelled),
	)
	return &PaymentSession{
		ExternalOrderID: p.ExternalOrderID,
		Provider:        p.Provider,
		Amount:          p.Amount,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetails, error) {
	var details OrderDetails

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		order, err := s.store.GetOrderById(gctx, orderID)
		details.Order = order
		return err
	})
	g.Go(func() error {
		fortune, err := s.store.GetFortuneByOrderId(gctx, orderID)
		details.Fortune = fortune
		return err
	})
	g.Go(func() error {
		payments, err := s.store.ListPaymentsByOrderId(gctx, orderID)
		details.Payments = payments
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if details.Order == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, orderID)
	}
	return &details, nil
}

func (s *orderService) loadOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.GetOrderById(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, orderID)
	}
	return order, nil
}

// classifyTimeout tags deadline expiries of an outbound call so callers can
// tell them apart from an explicit rejection.
func classifyTimeout(callCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	}
	return err
}

func declineReason(r *payment.PaymentResult) string {
	if r.Error != "" {
		return r.Error
	}
	return "declined by provider"
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, domain.Kind(err))
}
