package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-pagos/internal/gateway"
	"github.com/MikeMC777/ordenes-pagos/internal/order"
)

type fakeGateway struct {
	name gateway.Name
	mu   sync.Mutex
	txs  map[string]gateway.Transaction
	err  error
	hits int
}

func (g *fakeGateway) Name() gateway.Name { return g.name }

func (g *fakeGateway) FetchTransaction(_ context.Context, id string) (*gateway.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hits++
	if g.err != nil {
		return nil, g.err
	}
	tx, ok := g.txs[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &tx, nil
}

type findingGateway struct {
	*fakeGateway
}

func (g findingGateway) FindByReference(_ context.Context, ref string) (*gateway.Transaction, error) {
	for _, tx := range g.txs {
		if tx.Reference == ref {
			return &tx, nil
		}
	}
	return nil, gateway.ErrNotFound
}

func testConfig() Config {
	return Config{
		WompiEventsSecret:        eventsSecret,
		WompiIntegritySecret:     "integrity",
		WompiPublicKey:           "pub_test_abc",
		MercadoPagoWebhookSecret: "mp_secret",
		Currency:                 "COP",
	}
}

func TestHandleWompiEvent_TrustsSignedPayloadWithoutClient(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.rec, f.store.Orders(), testConfig())

	res, err := svc.HandleWompiEvent(context.Background(), signedWompiEvent(f.orderID, "APPROVED"))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, "transaction.updated", res.Event)

	o := f.order(t)
	assert.True(t, o.IsPaid)
	assert.Equal(t, "1234-1610641025-49201", o.PaymentResult.ID)
	assert.Equal(t, "payer@example.com", o.PaymentResult.EmailAddress)
	assert.Equal(t, 3, f.store.Stock(f.p1))
	assert.Equal(t, 1, f.notifier.paidCount())
}

func TestHandleWompiEvent_ReferenceSwapIsRejected(t *testing.T) {
	f := newFixture(t)
	victimID := uuid.NewString()
	victim := f.order(t)
	victim.ID = victimID
	f.store.PutOrder(*victim)
	svc := NewService(f.rec, f.store.Orders(), testConfig())

	// a genuine event re-pointed at another order no longer matches its checksum
	forged := strings.ReplaceAll(string(signedWompiEvent(f.orderID, "APPROVED")), f.orderID, victimID)
	_, err := svc.HandleWompiEvent(context.Background(), []byte(forged))
	assert.ErrorIs(t, err, ErrSignature)

	// an event whose checksum leaves the reference out is not trusted without a client
	_, err = svc.HandleWompiEvent(context.Background(), amountSignedWompiEvent(victimID, "APPROVED"))
	assert.ErrorIs(t, err, ErrConfig)

	o, err := f.store.Orders().GetByID(context.Background(), victimID)
	require.NoError(t, err)
	assert.False(t, o.IsPaid)
	assert.Equal(t, 5, f.store.Stock(f.p1))
	assert.Equal(t, 0, f.notifier.paidCount())
}

func TestHandleWompiEvent_UnsignedReferenceNeedsClient(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{name: gateway.Wompi, txs: map[string]gateway.Transaction{
		"1234-1610641025-49201": {
			ID: "1234-1610641025-49201", Gateway: gateway.Wompi, Reference: f.orderID,
			Status: gateway.StatusApproved, RawStatus: "APPROVED",
		},
	}}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), gw)

	res, err := svc.HandleWompiEvent(context.Background(), amountSignedWompiEvent("ignored-reference", "APPROVED"))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.True(t, f.order(t).IsPaid)
}

func TestHandleWompiEvent_TamperedIsRejected(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.rec, f.store.Orders(), testConfig())
	body := wompiEvent(f.orderID, "APPROVED", sha("1234-1610641025-49201DECLINED10500000"+eventsSecret))

	_, err := svc.HandleWompiEvent(context.Background(), body)
	assert.ErrorIs(t, err, ErrSignature)
	assert.False(t, f.order(t).IsPaid)
	assert.Equal(t, 5, f.store.Stock(f.p1))
	assert.Equal(t, 0, f.notifier.paidCount())
}

func TestHandleWompiEvent_Malformed(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.rec, f.store.Orders(), testConfig())
	_, err := svc.HandleWompiEvent(context.Background(), []byte(`{"event":`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestHandleWompiEvent_IgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.rec, f.store.Orders(), testConfig())
	body := []byte(`{"event":"nequi_token.updated","data":{"id":"x"},"signature":{"properties":["id"],"checksum":"` +
		sha("x"+eventsSecret) + `"}}`)

	res, err := svc.HandleWompiEvent(context.Background(), body)
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, "ignored event type", res.Reason)
	assert.False(t, f.order(t).IsPaid)
}

func TestHandleWompiEvent_UnknownOrderIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.rec, f.store.Orders(), testConfig())

	res, err := svc.HandleWompiEvent(context.Background(), signedWompiEvent("no-such-order", "APPROVED"))
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, "order not found", res.Reason)
}

func TestHandleWompiEvent_GatewayIsAuthoritative(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{name: gateway.Wompi, txs: map[string]gateway.Transaction{
		"1234-1610641025-49201": {
			ID: "1234-1610641025-49201", Gateway: gateway.Wompi, Reference: f.orderID,
			Status: gateway.StatusDeclined, RawStatus: "DECLINED",
		},
	}}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), gw)

	res, err := svc.HandleWompiEvent(context.Background(), signedWompiEvent(f.orderID, "APPROVED"))
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, string(OutcomeNotApproved), res.Reason)
	assert.Equal(t, 1, gw.hits)
	assert.False(t, f.order(t).IsPaid)
}

func TestHandleWompiEvent_GatewayErrors(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{name: gateway.Wompi, txs: map[string]gateway.Transaction{}}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), gw)

	res, err := svc.HandleWompiEvent(context.Background(), signedWompiEvent(f.orderID, "APPROVED"))
	require.NoError(t, err)
	assert.Equal(t, "transaction not found at gateway", res.Reason)

	gw.err = gateway.ErrUnavailable
	_, err = svc.HandleWompiEvent(context.Background(), signedWompiEvent(f.orderID, "APPROVED"))
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.False(t, f.order(t).IsPaid)
}

func TestHandleWompiEvent_Redelivery(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.rec, f.store.Orders(), testConfig())
	body := signedWompiEvent(f.orderID, "APPROVED")

	for i := 0; i < 3; i++ {
		_, err := svc.HandleWompiEvent(context.Background(), body)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.store.Stock(f.p1))
	assert.Equal(t, 2, f.store.StockWrites)
	assert.Equal(t, 1, f.notifier.paidCount())
}

func mpSign(body []byte) string {
	mac := hmac.New(sha256.New, []byte("mp_secret"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandleMercadoPagoEvent(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{name: gateway.MercadoPago, txs: map[string]gateway.Transaction{
		"42": {ID: "42", Gateway: gateway.MercadoPago, Reference: f.orderID, Status: gateway.StatusApproved, RawStatus: "approved", PayerEmail: "mp@example.com"},
	}}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), gw)
	body := []byte(`{"action":"payment.updated","type":"payment","data":{"id":"42"}}`)

	_, err := svc.HandleMercadoPagoEvent(context.Background(), body, "deadbeef")
	assert.ErrorIs(t, err, ErrSignature)
	assert.Equal(t, 0, gw.hits)

	res, err := svc.HandleMercadoPagoEvent(context.Background(), body, mpSign(body))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, "payment.updated", res.Event)
	o := f.order(t)
	assert.True(t, o.IsPaid)
	assert.Equal(t, "42", o.PaymentResult.ID)

	other := []byte(`{"type":"merchant_order","data":{"id":"7"}}`)
	res, err = svc.HandleMercadoPagoEvent(context.Background(), other, mpSign(other))
	require.NoError(t, err)
	assert.Equal(t, "ignored event type", res.Reason)

	noID := []byte(`{"type":"payment","data":{}}`)
	_, err = svc.HandleMercadoPagoEvent(context.Background(), noID, mpSign(noID))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestHandleMercadoPagoEvent_NoClient(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.rec, f.store.Orders(), testConfig())
	body := []byte(`{"type":"payment","data":{"id":"42"}}`)
	_, err := svc.HandleMercadoPagoEvent(context.Background(), body, mpSign(body))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestVerify_AlreadyPaidSkipsGateway(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{name: gateway.Wompi}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), gw)
	_, err := f.rec.Apply(context.Background(), f.orderID, f.approval())
	require.NoError(t, err)

	res, err := svc.Verify(context.Background(), VerifyRequest{OrderID: f.orderID, PaymentID: "tx-123"})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusApproved, res.Status)
	assert.True(t, res.Order.IsPaid)
	assert.Equal(t, 0, gw.hits)
	assert.Equal(t, 3, f.store.Stock(f.p1))
}

func TestVerify_AppliesApproval(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{name: gateway.Wompi, txs: map[string]gateway.Transaction{"tx-123": f.approval()}}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), gw)

	res, err := svc.Verify(context.Background(), VerifyRequest{OrderID: f.orderID, PaymentID: "tx-123"})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusApproved, res.Status)
	assert.True(t, res.Order.IsPaid)
	assert.Equal(t, 1, f.notifier.paidCount())
}

func TestVerify_ReferenceMismatch(t *testing.T) {
	f := newFixture(t)
	tx := f.approval()
	tx.Reference = "someone-else"
	gw := &fakeGateway{name: gateway.Wompi, txs: map[string]gateway.Transaction{"tx-123": tx}}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), gw)

	_, err := svc.Verify(context.Background(), VerifyRequest{OrderID: f.orderID, PaymentID: "tx-123"})
	assert.ErrorIs(t, err, ErrReferenceMismatch)
	assert.False(t, f.order(t).IsPaid)
}

func TestVerify_PendingAndUnknownGateway(t *testing.T) {
	f := newFixture(t)
	pending := f.approval()
	pending.Status, pending.RawStatus = gateway.StatusPending, "PENDING"
	wompi := &fakeGateway{name: gateway.Wompi, txs: map[string]gateway.Transaction{"tx-123": pending}}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), wompi)

	res, err := svc.Verify(context.Background(), VerifyRequest{OrderID: f.orderID, PaymentID: "tx-123"})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusPending, res.Status)

	// no payment id and no reference search: still pending
	res, err = svc.Verify(context.Background(), VerifyRequest{OrderID: f.orderID})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusPending, res.Status)

	_, err = svc.Verify(context.Background(), VerifyRequest{OrderID: f.orderID, Gateway: gateway.MercadoPago})
	assert.ErrorIs(t, err, ErrUnknownGateway)

	_, err = svc.Verify(context.Background(), VerifyRequest{OrderID: "missing"})
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestVerify_SearchesByReference(t *testing.T) {
	f := newFixture(t)
	mp := findingGateway{&fakeGateway{name: gateway.MercadoPago, txs: map[string]gateway.Transaction{"42": {
		ID: "42", Gateway: gateway.MercadoPago, Reference: f.orderID, Status: gateway.StatusApproved, RawStatus: "approved",
	}}}}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), mp)

	res, err := svc.Verify(context.Background(), VerifyRequest{OrderID: f.orderID, Gateway: gateway.MercadoPago})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusApproved, res.Status)
	assert.True(t, f.order(t).IsPaid)
}

func TestVerifyTransaction(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{name: gateway.Wompi, txs: map[string]gateway.Transaction{"tx-123": f.approval()}}
	svc := NewService(f.rec, f.store.Orders(), testConfig(), gw)

	res, err := svc.VerifyTransaction(context.Background(), gateway.Wompi, "tx-123")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusApproved, res.Status)

	_, err = svc.VerifyTransaction(context.Background(), gateway.Wompi, "nope")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestMarkPaidManually(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.rec, f.store.Orders(), testConfig())

	res, err := svc.MarkPaidManually(context.Background(), f.orderID, "admin")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	o := f.order(t)
	assert.Equal(t, "MANUAL_PAYMENT", o.PaymentResult.ID)
	assert.Equal(t, "completed", o.PaymentResult.Status)
	assert.Equal(t, 3, f.store.Stock(f.p1))

	res, err = svc.MarkPaidManually(context.Background(), f.orderID, "admin")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPaid, res.Outcome)
	assert.Equal(t, 1, f.notifier.paidCount())
}

func TestWidgetSignature(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.rec, f.store.Orders(), testConfig())

	sig, err := svc.WidgetSignature(context.Background(), f.orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(10500000), sig.AmountInCents)
	assert.Equal(t, "pub_test_abc", sig.PublicKey)
	want, _ := IntegritySignature(f.orderID, decimal.NewFromInt(105000), "COP", "integrity")
	assert.Equal(t, want.Signature, sig.Signature)

	_, err = f.rec.Apply(context.Background(), f.orderID, f.approval())
	require.NoError(t, err)
	_, err = svc.WidgetSignature(context.Background(), f.orderID)
	assert.ErrorIs(t, err, order.ErrAlreadyPaid)

	cfg := testConfig()
	cfg.WompiPublicKey = ""
	g := newFixture(t)
	_, err = NewService(g.rec, g.store.Orders(), cfg).WidgetSignature(context.Background(), g.orderID)
	assert.ErrorIs(t, err, ErrConfig)
}
