package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockGateway succeeds without any network. Confirming the same external
// order id twice returns the same payment id.
type MockGateway struct {
	mu        sync.RWMutex
	confirmed map[string]string
	failNext  atomic.Bool
	lastMs    atomic.Int64
	now       func() time.Time
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		confirmed: make(map[string]string),
		now:       time.Now,
	}
}

func (m *MockGateway) Name() string { return ProviderMock }

// FailConfirm makes every following ConfirmPayment report a decline until
// it is switched off again.
func (m *MockGateway) FailConfirm(fail bool) {
	m.failNext.Store(fail)
}

func (m *MockGateway) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	externalOrderID := fmt.Sprintf("mock_%s_%d", req.OrderID, m.stamp())
	return &PaymentResult{
		Success:         true,
		ExternalOrderID: externalOrderID,
		Provider:        ProviderMock,
	}, nil
}

// stamp returns the current unix millisecond, bumped past the previous
// stamp so two initiations within one millisecond get distinct ids.
func (m *MockGateway) stamp() int64 {
	for {
		last := m.lastMs.Load()
		ms := m.now().UnixMilli()
		if ms <= last {
			ms = last + 1
		}
		if m.lastMs.CompareAndSwap(last, ms) {
			return ms
		}
	}
}

func (m *MockGateway) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.failNext.Load() {
		return &PaymentResult{
			Success:         false,
			ExternalOrderID: req.ExternalOrderID,
			Provider:        ProviderMock,
			Error:           "card declined",
		}, nil
	}

	m.mu.RLock()
	paymentID, exists := m.confirmed[req.ExternalOrderID]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if paymentID, exists = m.confirmed[req.ExternalOrderID]; !exists {
			paymentID = fmt.Sprintf("mock_pay_%d", m.now().UnixNano())
			m.confirmed[req.ExternalOrderID] = paymentID
		}
		m.mu.Unlock()
	}

	raw, _ := json.Marshal(map[string]any{
		"paymentId":       paymentID,
		"externalOrderId": req.ExternalOrderID,
		"amount":          req.Amount,
		"status":          "DONE",
	})
	return &PaymentResult{
		Success:         true,
		PaymentID:       paymentID,
		ExternalOrderID: req.ExternalOrderID,
		Provider:        ProviderMock,
		Raw:             raw,
	}, nil
}

func (m *MockGateway) LookupPayment(ctx context.Context, externalOrderID string) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	paymentID, exists := m.confirmed[externalOrderID]
	m.mu.RUnlock()

	result := &PaymentResult{ExternalOrderID: externalOrderID, Provider: ProviderMock}
	if !exists {
		result.Error = "payment not found"
		return result, nil
	}
	result.Success = true
	result.PaymentID = paymentID
	result.Raw, _ = json.Marshal(map[string]any{
		"paymentId":       paymentID,
		"externalOrderId": externalOrderID,
		"status":          "DONE",
	})
	return result, nil
}
