// Package memstore keeps orders, products and accounts in process memory.
// It backs STORE=memory runs and the handler tests; MarkPaid and DecrementStock
// hold the same guarantees as the Postgres statements they stand in for.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MikeMC777/ordenes-pagos/internal/order"
	"github.com/MikeMC777/ordenes-pagos/internal/product"
	"github.com/MikeMC777/ordenes-pagos/internal/user"
)

type Store struct {
	mu       sync.Mutex
	orders   map[string]*order.Order
	products map[string]*product.Product
	users    map[string]*user.User
	// StockWrites counts successful DecrementStock calls.
	StockWrites int
}

func New() *Store {
	return &Store{
		orders:   map[string]*order.Order{},
		products: map[string]*product.Product{},
		users:    map[string]*user.User{},
	}
}

func (s *Store) Orders() order.Repository     { return (*orderRepo)(s) }
func (s *Store) Products() product.Repository { return (*productRepo)(s) }
func (s *Store) Users() user.Repository       { return (*userRepo)(s) }

func (s *Store) PutProduct(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
}

func (s *Store) PutUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *Store) PutOrder(o order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(&o)
}

// Stock returns the current stock for a product, or -1 if unknown.
func (s *Store) Stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return p.Stock
	}
	return -1
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		cp.PaymentResult = &pr
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}

type orderRepo Store

func (r *orderRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *orderRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]order.Order, error) {
	return r.filter(func(o *order.Order) bool { return o.UserID == userID }, limit, offset), nil
}

func (r *orderRepo) List(_ context.Context, limit, offset int) ([]order.Order, error) {
	return r.filter(func(*order.Order) bool { return true }, limit, offset), nil
}

func (r *orderRepo) filter(keep func(*order.Order) bool, limit, offset int) []order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []order.Order{}
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 || offset > len(out) {
		offset = len(out)
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end]
}

func (r *orderRepo) UpdateStatus(_ context.Context, id string, status order.Status) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if !o.Status.CanAdvanceTo(status) {
		return nil, order.ErrInvalidTransition
	}
	o.Status = status
	if status == order.StatusDelivered && o.DeliveredAt == nil {
		now := time.Now().UTC()
		o.IsDelivered, o.DeliveredAt = true, &now
	}
	o.UpdatedAt = time.Now().UTC()
	return cloneOrder(o), nil
}

func (r *orderRepo) SetTracking(_ context.Context, id, trackingNumber string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.TrackingNumber = trackingNumber
	if o.Status == order.StatusPending || o.Status == order.StatusProcessing {
		o.Status = order.StatusShipped
	}
	o.UpdatedAt = time.Now().UTC()
	return cloneOrder(o), nil
}

func (r *orderRepo) MarkPaid(_ context.Context, id string, paidAt time.Time, res order.PaymentResult) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.IsPaid {
		return nil, order.ErrAlreadyPaid
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	if o.Status == order.StatusPending {
		o.Status = order.StatusProcessing
	}
	o.PaymentResult = &res
	o.UpdatedAt = time.Now().UTC()
	return cloneOrder(o), nil
}

type productRepo Store

func (r *productRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *productRepo) DecrementStock(_ context.Context, id string, qty int) (int, error) {
	if qty <= 0 {
		return 0, product.ErrInvalidQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return 0, product.ErrNotFound
	}
	p.Stock = max(0, p.Stock-qty)
	p.UpdatedAt = time.Now().UTC()
	r.StockWrites++
	return p.Stock, nil
}

type userRepo Store

func (r *userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
