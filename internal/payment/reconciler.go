// Package payment decides when an order becomes paid. Every trigger (gateway
// webhook, client verification, operator action) funnels into Reconciler.Apply,
// which flips the paid flag at most once per order and runs the downstream
// stock and notification steps only for the call that won.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MikeMC777/ordenes-pagos/internal/gateway"
	"github.com/MikeMC777/ordenes-pagos/internal/notify"
	"github.com/MikeMC777/ordenes-pagos/internal/order"
	"github.com/MikeMC777/ordenes-pagos/internal/user"
)

type Outcome string

const (
	OutcomeApplied     Outcome = "applied"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeNotApproved Outcome = "not_approved"
)

type Result struct {
	Order   *order.Order   `json:"order"`
	Outcome Outcome        `json:"outcome"`
	Status  gateway.Status `json:"status"`
	Stock   StockReport    `json:"-"`
	// Notified is true when the notifier accepted the message.
	Notified bool `json:"-"`
}

type Reconciler struct {
	orders        order.Repository
	users         user.Repository
	stock         *StockAdjuster
	notifier      notify.Notifier
	notifyTimeout time.Duration
	now           func() time.Time
}

type ReconcilerOption func(*Reconciler)

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func WithNotifyTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.notifyTimeout = d }
}

func NewReconciler(orders order.Repository, users user.Repository, stock *StockAdjuster, n notify.Notifier, opts ...ReconcilerOption) *Reconciler {
	if n == nil {
		n = notify.LogNotifier{}
	}
	r := &Reconciler{
		orders:        orders,
		users:         users,
		stock:         stock,
		notifier:      n,
		notifyTimeout: 5 * time.Second,
		now:           time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Apply applies a transaction outcome to the order identified by orderID.
// order.ErrNotFound is returned as is so adapters can choose between acking and 404.
func (r *Reconciler) Apply(ctx context.Context, orderID string, tx gateway.Transaction) (*Result, error) {
	o, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		log.Printf("[payment] order=%s already paid, ignoring tx=%s source=%s", o.ID, tx.ID, tx.Gateway)
		return &Result{Order: o, Outcome: OutcomeAlreadyPaid, Status: gateway.StatusApproved}, nil
	}
	if !tx.Approved() {
		log.Printf("[payment] order=%s tx=%s status=%s (%s), no change", o.ID, tx.ID, tx.Status, tx.RawStatus)
		return &Result{Order: o, Outcome: OutcomeNotApproved, Status: tx.Status}, nil
	}

	now := r.now().UTC()
	evidence := order.PaymentResult{
		ID:           tx.ID,
		Status:       tx.RawStatus,
		UpdateTime:   tx.UpdatedAt,
		EmailAddress: tx.PayerEmail,
	}
	if evidence.Status == "" {
		evidence.Status = string(tx.Status)
	}
	if evidence.UpdateTime == "" {
		evidence.UpdateTime = now.Format(time.RFC3339)
	}

	paid, err := r.orders.MarkPaid(ctx, o.ID, now, evidence)
	if errors.Is(err, order.ErrAlreadyPaid) {
		// lost the race against a concurrent delivery of the same approval
		cur, gerr := r.orders.GetByID(ctx, o.ID)
		if gerr != nil {
			return nil, gerr
		}
		log.Printf("[payment] order=%s paid concurrently, tx=%s is a no-op", o.ID, tx.ID)
		return &Result{Order: cur, Outcome: OutcomeAlreadyPaid, Status: gateway.StatusApproved}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark order %s paid: %w", o.ID, err)
	}
	log.Printf("[payment] order=%s marked paid tx=%s source=%s", paid.ID, tx.ID, tx.Gateway)

	// the paid flag is committed; nothing below may undo it or fail the call
	after := context.WithoutCancel(ctx)
	res := &Result{Order: paid, Outcome: OutcomeApplied, Status: gateway.StatusApproved}
	res.Stock = r.stock.Apply(after, paid)
	res.Notified = r.notifyPaid(after, paid, tx)
	return res, nil
}

func (r *Reconciler) notifyPaid(ctx context.Context, o *order.Order, tx gateway.Transaction) bool {
	to := r.Recipient(ctx, o, tx.PayerEmail, tx.PayerName)
	if to.Email == "" {
		log.Printf("[notify] no recipient for order=%s, skipping", o.ID)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, r.notifyTimeout)
	defer cancel()
	if err := r.notifier.OrderPaid(ctx, o, to); err != nil {
		log.Printf("[notify] paid notification failed order=%s to=%s: %v", o.ID, to.Email, err)
		return false
	}
	return true
}

// NotifyShipped tells the customer about a tracking number. Failures are logged only.
func (r *Reconciler) NotifyShipped(ctx context.Context, o *order.Order) bool {
	var email string
	if o.PaymentResult != nil {
		email = o.PaymentResult.EmailAddress
	}
	to := r.Recipient(ctx, o, email, "")
	if to.Email == "" {
		log.Printf("[notify] no recipient for order=%s, skipping tracking", o.ID)
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.notifyTimeout)
	defer cancel()
	if err := r.notifier.OrderShipped(ctx, o, to); err != nil {
		log.Printf("[notify] tracking notification failed order=%s to=%s: %v", o.ID, to.Email, err)
		return false
	}
	return true
}

// Recipient prefers the account behind the order and falls back to the
// payer reported by the gateway.
func (r *Reconciler) Recipient(ctx context.Context, o *order.Order, payerEmail, payerName string) notify.Recipient {
	if o.UserID != "" && r.users != nil {
		u, err := r.users.GetByID(ctx, o.UserID)
		switch {
		case err == nil && u.Email != "":
			return notify.Recipient{Email: u.Email, Name: u.Name}
		case err != nil && !errors.Is(err, user.ErrNotFound):
			log.Printf("[notify] account lookup failed order=%s user=%s: %v", o.ID, o.UserID, err)
		}
	}
	name := payerName
	if name == "" {
		name = "Customer"
	}
	return notify.Recipient{Email: payerEmail, Name: name}
}
