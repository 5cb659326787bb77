package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fortune-letter/internal/domain"

	"github.com/google/uuid"
)

const paymentColumns = `id, order_id, provider, provider_payment_id, external_order_id, amount, status, paid_at, raw_response, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p                 domain.Payment
		providerPaymentID sql.NullString
		paidAt            sql.NullTime
		raw               []byte
	)
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Provider,
		&providerPaymentID,
		&p.ExternalOrderID,
		&p.Amount,
		&p.Status,
		&paidAt,
		&raw,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerPaymentID.Valid {
		p.ProviderPaymentID = &providerPaymentID.String
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	if len(raw) > 0 {
		p.RawResponse = raw
	}
	return &p, nil
}

// jsonParam turns an empty payload into SQL NULL.
func jsonParam(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (s *pgStore) InsertPayment(ctx context.Context, p *domain.Payment) error {
	_, err := s.exec.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.OrderID, p.Provider, p.ProviderPaymentID, p.ExternalOrderID, p.Amount, p.Status, p.PaidAt, jsonParam(p.RawResponse), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *pgStore) GetPaymentByExternalId(ctx context.Context, externalOrderID string) (*domain.Payment, error) {
	row := s.exec.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE external_order_id = $1`, externalOrderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", externalOrderID, err)
	}
	return p, nil
}

func (s *pgStore) UpdatePaymentByExternalId(ctx context.Context, externalOrderID string, u domain.PaymentUpdate) error {
	query := `
		UPDATE payments
		SET status = $2,
		    provider_payment_id = COALESCE($3, provider_payment_id),
		    paid_at = COALESCE($4, paid_at),
		    raw_response = COALESCE($5::jsonb, raw_response),
		    updated_at = $6
		WHERE external_order_id = $1
	`
	res, err := s.exec.ExecContext(ctx, query, externalOrderID, u.Status, u.ProviderPaymentID, u.PaidAt, jsonParam(u.RawResponse), u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", externalOrderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update payment %s: %w", externalOrderID, domain.ErrNotFound)
	}
	return nil
}

func (s *pgStore) CancelPendingPayments(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	res, err := s.exec.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = $2 WHERE order_id = $3 AND status = $4`,
		domain.PaymentCancelled, at, orderID, domain.PaymentPending,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel pending payments for %s: %w", orderID, err)
	}
	return res.RowsAffected()
}

func (s *pgStore) ListPaymentsByOrderId(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	rows, err := s.exec.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", orderID, err)
	}
	return collectPayments(rows)
}

func (s *pgStore) FindStalePendingPayments(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE status = $1
		AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := s.exec.QueryContext(ctx, query, domain.PaymentPending, before, limit)
	if err != nil {
		return nil, fmt.Errorf("find stale payments: %w", err)
	}
	return collectPayments(rows)
}

func collectPayments(rows *sql.Rows) ([]domain.Payment, error) {
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
