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

const orderColumns = `id, name, birth_date, story, status, amount, created_at, updated_at`

func (s *pgStore) InsertOrder(ctx context.Context, order *domain.Order) error {
	_, err := s.exec.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID, order.Name, order.BirthDate, order.Story, order.Status, order.Amount, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *pgStore) GetOrderById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var (
		order     domain.Order
		birthDate time.Time
		story     sql.NullString
	)
	err := s.exec.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id).Scan(
		&order.ID,
		&order.Name,
		&birthDate,
		&story,
		&order.Status,
		&order.Amount,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	order.BirthDate = birthDate.Format(domain.BirthDateLayout)
	if story.Valid {
		order.Story = &story.String
	}
	return &order, nil
}

func (s *pgStore) UpdateOrderStatus(ctx context.Context, order *domain.Order) error {
	res, err := s.exec.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		order.Status, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order %s status: %w", order.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update order %s status: %w", order.ID, domain.ErrNotFound)
	}
	return nil
}
