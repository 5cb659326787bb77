package repo

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"fortune-letter/internal/domain"

	"github.com/google/uuid"
)

type memoryState struct {
	orders   map[uuid.UUID]domain.Order
	payments map[string]domain.Payment // keyed by external order id
	fortunes map[uuid.UUID]domain.Fortune
}

func newMemoryState() *memoryState {
	return &memoryState{
		orders:   make(map[uuid.UUID]domain.Order),
		payments: make(map[string]domain.Payment),
		fortunes: make(map[uuid.UUID]domain.Fortune),
	}
}

func (st *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.payments {
		c.payments[k] = v
	}
	for k, v := range st.fortunes {
		c.fortunes[k] = v
	}
	return c
}

// MemoryStore keeps everything in process memory. It is meant for local
// development and tests; data is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (s *MemoryStore) read(fn func(*memoryState)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

func (s *MemoryStore) write(fn func(*memoryState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memoryTx{state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) InsertOrder(ctx context.Context, order *domain.Order) error {
	return s.write(func(st *memoryState) error { return st.insertOrder(order) })
}

func (s *MemoryStore) GetOrderById(ctx context.Context, id uuid.UUID) (order *domain.Order, err error) {
	s.read(func(st *memoryState) { order = st.getOrder(id) })
	return order, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, order *domain.Order) error {
	return s.write(func(st *memoryState) error { return st.updateOrderStatus(order) })
}

func (s *MemoryStore) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	return s.write(func(st *memoryState) error { return st.insertPayment(payment) })
}

func (s *MemoryStore) GetPaymentByExternalId(ctx context.Context, externalOrderID string) (p *domain.Payment, err error) {
	s.read(func(st *memoryState) { p = st.getPayment(externalOrderID) })
	return p, nil
}

func (s *MemoryStore) UpdatePaymentByExternalId(ctx context.Context, externalOrderID string, u domain.PaymentUpdate) error {
	return s.write(func(st *memoryState) error { return st.updatePayment(externalOrderID, u) })
}

func (s *MemoryStore) CancelPendingPayments(ctx context.Context, orderID uuid.UUID, at time.Time) (n int64, err error) {
	err = s.write(func(st *memoryState) error {
		n = st.cancelPending(orderID, at)
		return nil
	})
	return n, err
}

func (s *MemoryStore) ListPaymentsByOrderId(ctx context.Context, orderID uuid.UUID) (out []domain.Payment, err error) {
	s.read(func(st *memoryState) { out = st.listPayments(orderID) })
	return out, nil
}

func (s *MemoryStore) FindStalePendingPayments(ctx context.Context, before time.Time, limit int) (out []domain.Payment, err error) {
	s.read(func(st *memoryState) { out = st.stalePending(before, limit) })
	return out, nil
}

func (s *MemoryStore) GetFortuneByOrderId(ctx context.Context, orderID uuid.UUID) (f *domain.Fortune, err error) {
	s.read(func(st *memoryState) { f = st.getFortune(orderID) })
	return f, nil
}

func (s *MemoryStore) InsertFortune(ctx context.Context, fortune *domain.Fortune) error {
	return s.write(func(st *memoryState) error { return st.insertFortune(fortune) })
}

// memoryTx operates on a private copy of the state; MemoryStore.WithTx
// swaps it in on success.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) WithTx(ctx context.Context, fn func(Store) error) error { return fn(t) }

func (t *memoryTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	return t.state.insertOrder(order)
}

func (t *memoryTx) GetOrderById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return t.state.getOrder(id), nil
}

func (t *memoryTx) UpdateOrderStatus(ctx context.Context, order *domain.Order) error {
	return t.state.updateOrderStatus(order)
}

func (t *memoryTx) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	return t.state.insertPayment(payment)
}

func (t *memoryTx) GetPaymentByExternalId(ctx context.Context, externalOrderID string) (*domain.Payment, error) {
	return t.state.getPayment(externalOrderID), nil
}

func (t *memoryTx) UpdatePaymentByExternalId(ctx context.Context, externalOrderID string, u domain.PaymentUpdate) error {
	return t.state.updatePayment(externalOrderID, u)
}

func (t *memoryTx) CancelPendingPayments(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	return t.state.cancelPending(orderID, at), nil
}

func (t *memoryTx) ListPaymentsByOrderId(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	return t.state.listPayments(orderID), nil
}

func (t *memoryTx) FindStalePendingPayments(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	return t.state.stalePending(before, limit), nil
}

func (t *memoryTx) GetFortuneByOrderId(ctx context.Context, orderID uuid.UUID) (*domain.Fortune, error) {
	return t.state.getFortune(orderID), nil
}

func (t *memoryTx) InsertFortune(ctx context.Context, fortune *domain.Fortune) error {
	return t.state.insertFortune(fortune)
}

func (st *memoryState) insertOrder(order *domain.Order) error {
	if _, exists := st.orders[order.ID]; exists {
		return fmt.Errorf("insert order: duplicate id %s", order.ID)
	}
	st.orders[order.ID] = *order
	return nil
}

func (st *memoryState) getOrder(id uuid.UUID) *domain.Order {
	o, ok := st.orders[id]
	if !ok {
		return nil
	}
	return &o
}

func (st *memoryState) updateOrderStatus(order *domain.Order) error {
	o, ok := st.orders[order.ID]
	if !ok {
		return fmt.Errorf("update order %s status: %w", order.ID, domain.ErrNotFound)
	}
	o.Status = order.Status
	o.UpdatedAt = order.UpdatedAt
	st.orders[order.ID] = o
	return nil
}

func (st *memoryState) insertPayment(p *domain.Payment) error {
	if _, exists := st.payments[p.ExternalOrderID]; exists {
		return fmt.Errorf("insert payment: duplicate external order id %s", p.ExternalOrderID)
	}
	st.payments[p.ExternalOrderID] = *p
	return nil
}

func (st *memoryState) getPayment(externalOrderID string) *domain.Payment {
	p, ok := st.payments[externalOrderID]
	if !ok {
		return nil
	}
	return &p
}

func (st *memoryState) updatePayment(externalOrderID string, u domain.PaymentUpdate) error {
	p, ok := st.payments[externalOrderID]
	if !ok {
		return fmt.Errorf("update payment %s: %w", externalOrderID, domain.ErrNotFound)
	}
	p.Status = u.Status
	if u.ProviderPaymentID != nil {
		p.ProviderPaymentID = u.ProviderPaymentID
	}
	if u.PaidAt != nil {
		p.PaidAt = u.PaidAt
	}
	if len(u.RawResponse) > 0 {
		p.RawResponse = u.RawResponse
	}
	p.UpdatedAt = u.UpdatedAt
	st.payments[externalOrderID] = p
	return nil
}

func (st *memoryState) cancelPending(orderID uuid.UUID, at time.Time) int64 {
	var n int64
	for key, p := range st.payments {
		if p.OrderID == orderID && p.Status == domain.PaymentPending {
			p.Status = domain.PaymentCancelled
			p.UpdatedAt = at
			st.payments[key] = p
			n++
		}
	}
	return n
}

func (st *memoryState) listPayments(orderID uuid.UUID) []domain.Payment {
	var out []domain.Payment
	for _, p := range st.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sortByCreated(out)
	return out
}

func (st *memoryState) stalePending(before time.Time, limit int) []domain.Payment {
	var out []domain.Payment
	for _, p := range st.payments {
		if p.Status == domain.PaymentPending && p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (st *memoryState) getFortune(orderID uuid.UUID) *domain.Fortune {
	f, ok := st.fortunes[orderID]
	if !ok {
		return nil
	}
	return &f
}

func (st *memoryState) insertFortune(f *domain.Fortune) error {
	if _, exists := st.fortunes[f.OrderID]; exists {
		return fmt.Errorf("insert fortune for %s: %w", f.OrderID, domain.ErrDuplicateFortune)
	}
	st.fortunes[f.OrderID] = *f
	return nil
}

func sortByCreated(ps []domain.Payment) {
	slices.SortStableFunc(ps, func(a, b domain.Payment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
