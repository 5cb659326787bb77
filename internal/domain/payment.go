package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type Payment struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	Provider          string
	ProviderPaymentID *string
	ExternalOrderID   string
	Amount            int64
	Status            PaymentStatus
	PaidAt            *time.Time
	RawResponse       json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentUpdate is applied to the payment matching an external order id.
type PaymentUpdate struct {
	Status            PaymentStatus
	ProviderPaymentID *string
	PaidAt            *time.Time
	RawResponse       json.RawMessage
	UpdatedAt         time.Time
}

func (s PaymentStatus) Terminal() bool {
	return s != PaymentPending
}
