package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrAlreadyPaid       = errors.New("order already paid")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
	SetTracking(ctx context.Context, id, trackingNumber string) (*Order, error)
	// MarkPaid flips is_paid only if it is still false at write time.
	// It returns ErrAlreadyPaid when another writer got there first.
	MarkPaid(ctx context.Context, id string, paidAt time.Time, res PaymentResult) (*Order, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const orderColumns = `
    id, COALESCE(user_id::text, ''), shipping_address, payment_method,
    items_price::text, tax_price::text, shipping_price::text, total_price::text,
    status, is_paid, paid_at, payment_result, tracking_number,
    is_delivered, delivered_at, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, o *Order) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID any
	if o.UserID != "" {
		userID = o.UserID
	}
	if _, err := tx.Exec(ctx, `
    INSERT INTO orders (id, user_id, shipping_address, payment_method,
      items_price, tax_price, shipping_price, total_price, status, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
  `, o.ID, userID, string(addr), o.PaymentMethod,
		o.ItemsPrice.String(), o.TaxPrice.String(), o.ShippingPrice.String(), o.TotalPrice.String(),
		string(o.Status)); err != nil {
		return err
	}

	for i, it := range o.Items {
		if _, err := tx.Exec(ctx, `
      INSERT INTO order_items (id, order_id, position, product_id, name, price, quantity, image, selected_variation)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, it.ID, o.ID, i, it.ProductID, it.Name, it.Price.String(), it.Quantity, it.Image, it.SelectedVariation); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.items(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []Order{}, nil
	}
	limit, offset = page(limit, offset)
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1
    ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Order, error) {
	limit, offset = page(limit, offset)
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
    ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidTransition
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// forward-only: the rank of the new status must not be lower than the stored one
	tag, err := r.db.Exec(ctx, `
    UPDATE orders
    SET status = $2,
        is_delivered = is_delivered OR $2 = 'Delivered',
        delivered_at = CASE WHEN $2 = 'Delivered' AND delivered_at IS NULL THEN NOW() ELSE delivered_at END,
        updated_at = NOW()
    WHERE id = $1
      AND array_position(ARRAY['Pending','Processing','Shipped','Delivered'], status)
          <= array_position(ARRAY['Pending','Processing','Shipped','Delivered'], $2::text)
  `, id, string(status))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	return r.GetByID(ctx, id)
}

func (r *PGRepo) SetTracking(ctx context.Context, id, trackingNumber string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
    UPDATE orders
    SET tracking_number = $2,
        status = CASE WHEN status IN ('Pending','Processing') THEN 'Shipped' ELSE status END,
        updated_at = NOW()
    WHERE id = $1
  `, id, trackingNumber)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PGRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time, res PaymentResult) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	evidence, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	tag, err := r.db.Exec(ctx, `
    UPDATE orders
    SET is_paid = TRUE,
        paid_at = $2,
        status = CASE WHEN status = 'Pending' THEN 'Processing' ELSE status END,
        payment_result = $3,
        updated_at = NOW()
    WHERE id = $1 AND is_paid = FALSE
  `, id, paidAt, string(evidence))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyPaid
	}
	return r.GetByID(ctx, id)
}

func (r *PGRepo) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PGRepo) items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, product_id, name, price::text, quantity, image, selected_variation
    FROM order_items
    WHERE order_id = $1
    ORDER BY position
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var price string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &price, &it.Quantity, &it.Image, &it.SelectedVariation); err != nil {
			return nil, err
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                           Order
		status                      string
		addr, evidence              []byte
		items, tax, shipping, total string
	)
	if err := row.Scan(&o.ID, &o.UserID, &addr, &o.PaymentMethod,
		&items, &tax, &shipping, &total,
		&status, &o.IsPaid, &o.PaidAt, &evidence, &o.TrackingNumber,
		&o.IsDelivered, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	if len(addr) > 0 {
		if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
			return nil, err
		}
	}
	if len(evidence) > 0 {
		o.PaymentResult = &PaymentResult{}
		if err := json.Unmarshal(evidence, o.PaymentResult); err != nil {
			return nil, err
		}
	}
	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&o.ItemsPrice, items}, {&o.TaxPrice, tax}, {&o.ShippingPrice, shipping}, {&o.TotalPrice, total}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
