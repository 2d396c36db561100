// Package product provides the repository interface and PostgreSQL implementation for catalog products.
package product

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// DecrementStock sets stock = max(0, stock - qty) and returns the stored value.
	DecrementStock(ctx context.Context, id string, qty int) (int, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p Product
	var price string
	err := r.db.QueryRow(ctx, `
		SELECT id, name, sku, price::text, stock, image, created_at, updated_at
		FROM products WHERE id=$1
	`, id).Scan(&p.ID, &p.Name, &p.SKU, &price, &p.Stock, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGRepo) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	if _, err := uuid.Parse(id); err != nil {
		return 0, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// single statement so concurrent orders for the same product do not lose updates
	var stock int
	err := r.db.QueryRow(ctx, `
		UPDATE products
		SET stock = GREATEST(stock - $2, 0),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`, id, qty).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return stock, err
}
