package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	tossConfirmPath = "/v1/payments/confirm"
	tossLookupPath  = "/v1/payments/orders/"
)

// TossGateway talks to a hosted checkout. The customer pays in the
// provider's widget; the server only mints the order reference and
// confirms the payment key the widget hands back.
type TossGateway struct {
	baseURL string
	auth    string
	client  *http.Client
	now     func() time.Time
}

type tossConfirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type tossPayment struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"totalAmount"`
}

type tossError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewTossGateway(baseURL, secretKey string, client *http.Client) *TossGateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TossGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(secretKey+":")),
		client:  client,
		now:     time.Now,
	}
}

func (g *TossGateway) Name() string { return ProviderToss }

func (g *TossGateway) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// orderId must be 6-64 characters of [A-Za-z0-9_-]
	compact := strings.ReplaceAll(req.OrderID, "-", "")
	return &PaymentResult{
		Success:         true,
		ExternalOrderID: fmt.Sprintf("toss_%s_%d", compact, g.now().UnixMilli()),
		Provider:        ProviderToss,
	}, nil
}

func (g *TossGateway) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*PaymentResult, error) {
	result := &PaymentResult{ExternalOrderID: req.ExternalOrderID, Provider: ProviderToss}
	if req.PaymentKey == "" {
		result.Error = "missing payment key"
		return result, nil
	}

	body, err := json.Marshal(tossConfirmRequest{
		PaymentKey: req.PaymentKey,
		OrderID:    req.ExternalOrderID,
		Amount:     req.Amount,
	})
	if err != nil {
		return nil, err
	}

	status, raw, err := g.send(ctx, http.MethodPost, tossConfirmPath, body, req.ExternalOrderID)
	if err != nil {
		return nil, fmt.Errorf("toss confirm: %w", err)
	}
	if json.Valid(raw) {
		result.Raw = raw
	}

	switch {
	case status == http.StatusOK:
		var p tossPayment
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("toss confirm: decode payment: %w", err)
		}
		if p.Status != "DONE" {
			result.Error = fmt.Sprintf("unexpected payment status %s", p.Status)
			return result, nil
		}
		result.Success = true
		result.PaymentID = p.PaymentKey
		return result, nil

	case status >= 400 && status < 500:
		var e tossError
		if err := json.Unmarshal(raw, &e); err != nil || e.Code == "" {
			result.Error = fmt.Sprintf("rejected with status %d", status)
		} else {
			result.Error = e.Code + ": " + e.Message
		}
		return result, nil

	default:
		return nil, fmt.Errorf("toss confirm: unexpected status %d", status)
	}
}

// LookupPayment reads the payment Toss holds for the order reference. Only
// a 404 counts as "not captured"; any other rejection is returned as an
// error so the caller leaves the attempt alone.
func (g *TossGateway) LookupPayment(ctx context.Context, externalOrderID string) (*PaymentResult, error) {
	status, raw, err := g.send(ctx, http.MethodGet, tossLookupPath+url.PathEscape(externalOrderID), nil, "")
	if err != nil {
		return nil, fmt.Errorf("toss lookup: %w", err)
	}

	result := &PaymentResult{ExternalOrderID: externalOrderID, Provider: ProviderToss}
	if json.Valid(raw) {
		result.Raw = raw
	}

	switch status {
	case http.StatusOK:
		var p tossPayment
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("toss lookup: decode payment: %w", err)
		}
		if p.Status != "DONE" {
			result.Error = fmt.Sprintf("payment status %s", p.Status)
			return result, nil
		}
		result.Success = true
		result.PaymentID = p.PaymentKey
		return result, nil

	case http.StatusNotFound:
		result.Error = "payment not found"
		return result, nil

	default:
		return nil, fmt.Errorf("toss lookup: unexpected status %d", status)
	}
}

func (g *TossGateway) send(ctx context.Context, method, path string, body []byte, idempotencyKey string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Authorization", g.auth)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, raw, nil
}
