package payment

import (
	"context"
	"errors"
	"log"

	"github.com/MikeMC777/ordenes-pagos/internal/order"
	"github.com/MikeMC777/ordenes-pagos/internal/product"
)

// StockReport summarizes one best-effort pass over an order's items.
type StockReport struct {
	Adjusted int
	Skipped  int
	Failed   int
}

// StockAdjuster decrements inventory for a paid order. It never fails the caller:
// missing products are skipped and write errors are logged and left behind.
type StockAdjuster struct {
	products product.Repository
}

func NewStockAdjuster(products product.Repository) *StockAdjuster {
	return &StockAdjuster{products: products}
}

func (s *StockAdjuster) Apply(ctx context.Context, o *order.Order) StockReport {
	var rep StockReport
	for _, it := range o.Items {
		if it.Quantity <= 0 {
			rep.Skipped++
			continue
		}
		left, err := s.products.DecrementStock(ctx, it.ProductID, it.Quantity)
		switch {
		case errors.Is(err, product.ErrNotFound):
			log.Printf("[stock] order=%s product=%s not found, skipping", o.ID, it.ProductID)
			rep.Skipped++
		case err != nil:
			log.Printf("[stock] order=%s product=%s qty=%d update failed: %v", o.ID, it.ProductID, it.Quantity, err)
			rep.Failed++
		default:
			log.Printf("[stock] order=%s product=%s qty=%d stock=%d", o.ID, it.ProductID, it.Quantity, left)
			rep.Adjusted++
		}
	}
	return rep
}
