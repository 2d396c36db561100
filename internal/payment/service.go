package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/MikeMC777/ordenes-pagos/internal/gateway"
	"github.com/MikeMC777/ordenes-pagos/internal/order"
)

const (
	wompiTransactionUpdated = "transaction.updated"
	manualTransactionID     = "MANUAL_PAYMENT"
)

type Config struct {
	WompiEventsSecret        string
	WompiIntegritySecret     string
	WompiPublicKey           string
	MercadoPagoWebhookSecret string
	Currency                 string
}

// Service adapts the three payment triggers onto the Reconciler. The adapters
// differ only in how they obtain the transaction.
type Service struct {
	rec      *Reconciler
	orders   order.Repository
	gateways map[gateway.Name]gateway.Client
	checksum ChecksumVerifier
	hmac     HMACVerifier
	cfg      Config
}

// NewService wires the adapters; nil clients are skipped (that gateway is unconfigured).
func NewService(rec *Reconciler, orders order.Repository, cfg Config, clients ...gateway.Client) *Service {
	s := &Service{
		rec:      rec,
		orders:   orders,
		gateways: map[gateway.Name]gateway.Client{},
		checksum: ChecksumVerifier{Secret: cfg.WompiEventsSecret},
		hmac:     HMACVerifier{Secret: cfg.MercadoPagoWebhookSecret},
		cfg:      cfg,
	}
	for _, c := range clients {
		if c != nil {
			s.gateways[c.Name()] = c
		}
	}
	return s
}

func (s *Service) Reconciler() *Reconciler { return s.rec }

// WebhookResult describes what happened to an authenticated event. All of these are
// acknowledged to the sender.
type WebhookResult struct {
	Event   string  `json:"event"`
	Handled bool    `json:"handled"`
	Reason  string  `json:"reason,omitempty"`
	Result  *Result `json:"-"`
}

// HandleWompiEvent verifies and applies a Wompi event body.
func (s *Service) HandleWompiEvent(ctx context.Context, body []byte) (*WebhookResult, error) {
	payload, err := ParsePayload(body)
	if err != nil {
		return nil, err
	}
	if err := s.checksum.Verify(payload); err != nil {
		return nil, err
	}
	event := LookupString(payload, "event")
	if event != wompiTransactionUpdated {
		log.Printf("[payment] wompi event=%s ignored", event)
		return &WebhookResult{Event: event, Reason: "ignored event type"}, nil
	}

	signed := signedWompiTransaction(payload)
	if signed.ID == "" {
		return nil, fmt.Errorf("%w: missing data.transaction.id", ErrMalformedPayload)
	}
	tx := &signed
	if c, ok := s.gateways[gateway.Wompi]; ok {
		tx, err = c.FetchTransaction(ctx, signed.ID)
		if errors.Is(err, gateway.ErrNotFound) {
			log.Printf("[payment] wompi tx=%s unknown to gateway, acknowledging", signed.ID)
			return &WebhookResult{Event: event, Reason: "transaction not found at gateway"}, nil
		}
		if err != nil {
			return nil, err
		}
	} else {
		if !signsAll(payload, trustedWompiFields...) {
			return nil, fmt.Errorf("%w: wompi client is not configured and the event does not sign %v", ErrConfig, trustedWompiFields)
		}
		log.Printf("[payment] wompi client not configured, trusting signed payload tx=%s", signed.ID)
	}
	return s.applyWebhook(ctx, event, *tx)
}

// HandleMercadoPagoEvent verifies the body HMAC and applies the referenced payment.
func (s *Service) HandleMercadoPagoEvent(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if err := s.hmac.Verify(body, signature); err != nil {
		return nil, err
	}
	payload, err := ParsePayload(body)
	if err != nil {
		return nil, err
	}
	kind := LookupString(payload, "type")
	if kind == "" {
		kind = LookupString(payload, "topic")
	}
	event := LookupString(payload, "action")
	if event == "" {
		event = kind
	}
	if kind != "payment" {
		log.Printf("[payment] mercadopago type=%s ignored", kind)
		return &WebhookResult{Event: event, Reason: "ignored event type"}, nil
	}
	id := LookupString(payload, "data.id")
	if id == "" {
		return nil, fmt.Errorf("%w: missing data.id", ErrMalformedPayload)
	}
	c, ok := s.gateways[gateway.MercadoPago]
	if !ok {
		return nil, fmt.Errorf("%w: mercadopago client is not configured", ErrConfig)
	}
	tx, err := c.FetchTransaction(ctx, id)
	if errors.Is(err, gateway.ErrNotFound) {
		log.Printf("[payment] mercadopago payment=%s unknown to gateway, acknowledging", id)
		return &WebhookResult{Event: event, Reason: "transaction not found at gateway"}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.applyWebhook(ctx, event, *tx)
}

func (s *Service) applyWebhook(ctx context.Context, event string, tx gateway.Transaction) (*WebhookResult, error) {
	res, err := s.rec.Apply(ctx, tx.Reference, tx)
	if errors.Is(err, order.ErrNotFound) {
		log.Printf("[payment] %s tx=%s reference=%s: order not found, acknowledging", tx.Gateway, tx.ID, tx.Reference)
		return &WebhookResult{Event: event, Reason: "order not found"}, nil
	}
	if err != nil {
		return nil, err
	}
	return &WebhookResult{Event: event, Handled: res.Outcome == OutcomeApplied, Reason: string(res.Outcome), Result: res}, nil
}

// trustedWompiFields must all be covered by the checksum before an event body is
// used without re-reading the transaction from the gateway.
var trustedWompiFields = []string{"transaction.id", "transaction.status", "transaction.reference"}

func signsAll(payload *structpb.Struct, paths ...string) bool {
	signed := map[string]bool{}
	for _, p := range LookupStruct(payload, "signature").GetFields()["properties"].GetListValue().GetValues() {
		signed[p.GetStringValue()] = true
	}
	for _, p := range paths {
		if !signed[p] {
			return false
		}
	}
	return true
}

// signedWompiTransaction reads the transaction carried by a verified event body.
func signedWompiTransaction(payload *structpb.Struct) gateway.Transaction {
	t := LookupStruct(payload, "data.transaction")
	amount := decimal.Zero
	if cents, err := decimal.NewFromString(LookupString(t, "amount_in_cents")); err == nil {
		amount = cents.Shift(-2)
	}
	updated := LookupString(t, "finalized_at")
	if updated == "" {
		updated = LookupString(t, "created_at")
	}
	raw := LookupString(t, "status")
	return gateway.Transaction{
		ID:         LookupString(t, "id"),
		Gateway:    gateway.Wompi,
		Reference:  LookupString(t, "reference"),
		Status:     gateway.NormalizeWompi(raw),
		RawStatus:  raw,
		Amount:     amount,
		Currency:   LookupString(t, "currency"),
		UpdatedAt:  updated,
		PayerEmail: LookupString(t, "customer_email"),
		PayerName:  LookupString(t, "customer_data.full_name"),
	}
}

// VerifyRequest is the client-side check after a checkout redirect.
type VerifyRequest struct {
	OrderID   string       `json:"orderId"`
	PaymentID string       `json:"paymentId,omitempty"`
	Gateway   gateway.Name `json:"gateway,omitempty"`
}

type VerifyResult struct {
	Status gateway.Status `json:"status"`
	Order  *order.Order   `json:"order"`
}

// Verify reports the payment status of an order, applying an approval the
// webhook has not delivered yet.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return &VerifyResult{Status: gateway.StatusApproved, Order: o}, nil
	}
	name := req.Gateway
	if name == "" {
		name = gateway.Wompi
	}
	c, ok := s.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, name)
	}

	var tx *gateway.Transaction
	if req.PaymentID == "" {
		finder, ok := c.(gateway.ReferenceFinder)
		if !ok {
			return &VerifyResult{Status: gateway.StatusPending, Order: o}, nil
		}
		tx, err = finder.FindByReference(ctx, o.ID)
		if errors.Is(err, gateway.ErrNotFound) {
			return &VerifyResult{Status: gateway.StatusPending, Order: o}, nil
		}
	} else {
		tx, err = c.FetchTransaction(ctx, req.PaymentID)
	}
	if err != nil {
		return nil, err
	}
	if tx.Reference != o.ID {
		return nil, fmt.Errorf("%w: tx=%s reference=%s order=%s", ErrReferenceMismatch, tx.ID, tx.Reference, o.ID)
	}
	res, err := s.rec.Apply(ctx, o.ID, *tx)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Status: res.Status, Order: res.Order}, nil
}

// VerifyTransaction is the redirect flow keyed by the gateway transaction id; the
// order comes from the transaction reference.
func (s *Service) VerifyTransaction(ctx context.Context, name gateway.Name, txID string) (*VerifyResult, error) {
	c, ok := s.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, name)
	}
	tx, err := c.FetchTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	res, err := s.rec.Apply(ctx, tx.Reference, *tx)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Status: res.Status, Order: res.Order}, nil
}

// MarkPaidManually is the operator override. It goes through the same transition.
func (s *Service) MarkPaidManually(ctx context.Context, orderID, actor string) (*Result, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log.Printf("[payment] manual payment requested order=%s by=%s", o.ID, actor)
	return s.rec.Apply(ctx, o.ID, gateway.Transaction{
		ID:         manualTransactionID,
		Gateway:    gateway.Manual,
		Reference:  o.ID,
		Status:     gateway.StatusApproved,
		RawStatus:  "completed",
		Amount:     o.TotalPrice,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
		PayerEmail: o.ShippingAddress.Email,
	})
}

// WidgetSignature signs the checkout widget parameters for an unpaid order, using
// the stored total rather than an amount supplied by the browser.
func (s *Service) WidgetSignature(ctx context.Context, orderID string) (*WidgetSignature, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return nil, order.ErrAlreadyPaid
	}
	if s.cfg.WompiPublicKey == "" {
		return nil, fmt.Errorf("%w: wompi public key is not set", ErrConfig)
	}
	sig, err := IntegritySignature(o.ID, o.TotalPrice, s.currency(), s.cfg.WompiIntegritySecret)
	if err != nil {
		return nil, err
	}
	sig.PublicKey = s.cfg.WompiPublicKey
	return &sig, nil
}

func (s *Service) currency() string {
	if s.cfg.Currency == "" {
		return "COP"
	}
	return s.cfg.Currency
}
