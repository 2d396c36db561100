// Package notify delivers customer notifications about orders. Delivery is best
// effort: callers log failures and never undo the state change that triggered them.
package notify

import (
	"context"
	"log"

	"github.com/MikeMC777/ordenes-pagos/internal/order"
)

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Notifier interface {
	OrderPaid(ctx context.Context, o *order.Order, to Recipient) error
	OrderShipped(ctx context.Context, o *order.Order, to Recipient) error
}

// LogNotifier is used when no delivery channel is configured.
type LogNotifier struct{}

func (LogNotifier) OrderPaid(_ context.Context, o *order.Order, to Recipient) error {
	log.Printf("[notify] delivery not configured, skipping paid notification order=%s to=%s", o.ID, to.Email)
	return nil
}

func (LogNotifier) OrderShipped(_ context.Context, o *order.Order, to Recipient) error {
	log.Printf("[notify] delivery not configured, skipping tracking notification order=%s to=%s tracking=%s",
		o.ID, to.Email, o.TrackingNumber)
	return nil
}
