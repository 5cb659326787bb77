package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fortune-letter/internal/domain"
	"fortune-letter/internal/infrastructure/generator"
	"fortune-letter/internal/infrastructure/payment"
	"fortune-letter/internal/lock"
	"fortune-letter/internal/metrics"
	"fortune-letter/internal/repo"
	"fortune-letter/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockOrderService struct {
	CreateOrderFunc        func(ctx context.Context, in domain.OrderInput) (*domain.Order, error)
	RequestPaymentFunc     func(ctx context.Context, orderID uuid.UUID) (*service.PaymentSession, error)
	ConfirmAndGenerateFunc func(ctx context.Context, in service.ConfirmInput) (uuid.UUID, error)
	GetOrderFunc           func(ctx context.Context, orderID uuid.UUID) (*service.OrderDetails, error)
	ReconcilePaymentFunc   func(ctx context.Context, externalOrderID string) (service.ReconcileOutcome, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, in domain.OrderInput) (*domain.Order, error) {
	return m.CreateOrderFunc(ctx, in)
}

func (m *mockOrderService) RequestPayment(ctx context.Context, orderID uuid.UUID) (*service.PaymentSession, error) {
	return m.RequestPaymentFunc(ctx, orderID)
}

func (m *mockOrderService) ConfirmAndGenerate(ctx context.Context, in service.ConfirmInput) (uuid.UUID, error) {
	return m.ConfirmAndGenerateFunc(ctx, in)
}

func (m *mockOrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderDetails, error) {
	return m.GetOrderFunc(ctx, orderID)
}

func (m *mockOrderService) ReconcilePayment(ctx context.Context, externalOrderID string) (service.ReconcileOutcome, error) {
	return m.ReconcilePaymentFunc(ctx, externalOrderID)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		retryable  bool
	}{
		{"validation", domain.NewValidationError("name", "name is required"), http.StatusBadRequest, "validation", false},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "not_found", false},
		{"invalid state", fmt.Errorf("%w: order is paid", domain.ErrInvalidState), http.StatusBadRequest, "invalid_state", false},
		{"declined", fmt.Errorf("%w: card declined", domain.ErrPaymentFailed), http.StatusBadRequest, "payment_failed", true},
		{"generation", fmt.Errorf("%w: boom", domain.ErrGenerationFailed), http.StatusInternalServerError, "generation_failed", true},
		{"timeout", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, domain.ErrUpstreamTimeout), http.StatusGatewayTimeout, "timeout", true},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "internal", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				ConfirmAndGenerateFunc: func(ctx context.Context, in service.ConfirmInput) (uuid.UUID, error) {
					return uuid.Nil, tt.err
				},
			}
			h := NewServer(svc, Options{}).Handler()

			w := doJSON(t, h, http.MethodPost, "/api/payments/confirm", map[string]string{
				"orderId":         uuid.NewString(),
				"externalOrderId": "mock_x_1",
			})
			assert.Equal(t, tt.wantStatus, w.Code)

			resp := decode[errorResponse](t, w)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.retryable, resp.Retryable)
			assert.NotEmpty(t, resp.Error)
			if tt.wantKind == "internal" {
				assert.Equal(t, "internal server error", resp.Error)
			}
		})
	}
}

func TestMalformedRequests(t *testing.T) {
	svc := &mockOrderService{}
	h := NewServer(svc, Options{}).Handler()

	w := doJSON(t, h, http.MethodPost, "/api/payments/request", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/payments/request", map[string]string{"orderId": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/payments/confirm", map[string]string{"orderId": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = doJSON(t, h, http.MethodGet, "/api/orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	svc := &mockOrderService{}
	h := NewServer(svc, Options{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(headerRequestID))

	w = doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestHealthReportsDown(t *testing.T) {
	h := NewServer(&mockOrderService{}, Options{
		Health: func(ctx context.Context) map[string]string {
			return map[string]string{"status": "down", "error": "db down"}
		},
	}).Handler()

	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type stubGenerator struct{}

func (stubGenerator) Model() string { return "stub" }

func (stubGenerator) Generate(ctx context.Context, in generator.Input) (*domain.FortuneContent, error) {
	return &domain.FortuneContent{
		OverallEnergy:   "bright",
		InterviewEnergy: "calm",
		ClosingMessage:  "go for it",
	}, nil
}

func TestOrderFlowOverHTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := service.NewOrderService(
		repo.NewMemoryStore(),
		payment.NewMockGateway(),
		stubGenerator{},
		lock.NewKeyed(),
		service.WithMetrics(m),
	)
	h := NewServer(svc, Options{
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}).Handler()

	w := doJSON(t, h, http.MethodPost, "/api/orders", map[string]string{
		"name":       "Minjun",
		"birth_date": "2024-05-10",
		"story":      "interview tomorrow",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderID := decode[createOrderResponse](t, w).OrderID

	w = doJSON(t, h, http.MethodPost, "/api/orders", map[string]string{"name": "Minjun", "birth_date": "10/05/2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[errorResponse](t, w).Kind)

	w = doJSON(t, h, http.MethodPost, "/api/payments/request", map[string]string{"orderId": orderID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[requestPaymentResponse](t, w)
	assert.Equal(t, "mock", session.Provider)
	assert.Equal(t, int64(1000), session.Amount)

	confirm := map[string]string{
		"orderId":         orderID,
		"externalOrderId": session.ExternalOrderID,
		"paymentKey":      "pk_test",
	}
	for i := 0; i < 2; i++ {
		w = doJSON(t, h, http.MethodPost, "/api/payments/confirm", confirm)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, orderID, decode[confirmPaymentResponse](t, w).OrderID)
	}

	w = doJSON(t, h, http.MethodGet, "/api/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	details := decode[getOrderResponse](t, w)
	assert.Equal(t, domain.OrderFortuneGenerated, details.Order.Status)
	require.NotNil(t, details.Fortune)
	assert.Equal(t, "bright", details.Fortune.Content.OverallEnergy)
	require.Len(t, details.Payments, 1)
	assert.Equal(t, domain.PaymentSucceeded, details.Payments[0].Status)

	w = doJSON(t, h, http.MethodPost, "/api/payments/request", map[string]string{"orderId": orderID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_state", decode[errorResponse](t, w).Kind)

	w = doJSON(t, h, http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fortune_orders_created_total 1")
}
