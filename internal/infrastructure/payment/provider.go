package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	ProviderMock = "mock"
	ProviderToss = "toss"
)

type PaymentRequest struct {
	OrderID      string
	Amount       int64
	OrderName    string
	CustomerName string
}

type ConfirmRequest struct {
	ExternalOrderID string
	PaymentKey      string
	Amount          int64
}

// PaymentResult carries the provider's verdict. A declined payment is a
// result with Success=false, not an error.
type PaymentResult struct {
	Success         bool
	PaymentID       string
	ExternalOrderID string
	Provider        string
	Error           string
	Raw             json.RawMessage
}

type Provider interface {
	Name() string
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
	ConfirmPayment(ctx context.Context, req ConfirmRequest) (*PaymentResult, error)
	// LookupPayment asks the provider whether the attempt was captured.
	// Success=true means the funds were taken; Success=false means the
	// provider holds no captured payment for externalOrderID.
	LookupPayment(ctx context.Context, externalOrderID string) (*PaymentResult, error)
}

type Config struct {
	Provider   string
	TossSecret string
	TossAPI    string
	Timeout    time.Duration
}

// NewProvider picks the configured variant. It is called once at startup.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", ProviderMock:
		return NewMockGateway(), nil
	case ProviderToss:
		if cfg.TossSecret == "" {
			return nil, fmt.Errorf("payment provider %q requires TOSS_SECRET_KEY", cfg.Provider)
		}
		return NewTossGateway(cfg.TossAPI, cfg.TossSecret, &http.Client{Timeout: cfg.Timeout}), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
