package repo

import (
	"context"
	"database/sql"
	"time"

	"fortune-letter/internal/domain"

	"github.com/google/uuid"
)

// Store is the persistence contract the order coordinator depends on.
// Lookups return (nil, nil) when the row does not exist.
type Store interface {
	InsertOrder(ctx context.Context, order *domain.Order) error
	GetOrderById(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, order *domain.Order) error

	InsertPayment(ctx context.Context, payment *domain.Payment) error
	GetPaymentByExternalId(ctx context.Context, externalOrderID string) (*domain.Payment, error)
	UpdatePaymentByExternalId(ctx context.Context, externalOrderID string, update domain.PaymentUpdate) error
	CancelPendingPayments(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error)
	ListPaymentsByOrderId(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error)
	FindStalePendingPayments(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error)

	GetFortuneByOrderId(ctx context.Context, orderID uuid.UUID) (*domain.Fortune, error)
	InsertFortune(ctx context.Context, fortune *domain.Fortune) error

	// WithTx runs fn against a transactional view of the store. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgStore struct {
	db   *sql.DB
	exec dbtx
}

func NewPostgresStore(db *sql.DB) Store {
	return &pgStore{db: db, exec: db}
}

func (s *pgStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// already inside a transaction
	if _, ok := s.exec.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&pgStore{db: s.db, exec: tx}); err != nil {
		return err
	}
	return tx.Commit()
}
