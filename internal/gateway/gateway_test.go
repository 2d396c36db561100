package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWompiEnvironment_FromKeyPrefix(t *testing.T) {
	env, err := WompiEnvironment("pub_test_abc")
	require.NoError(t, err)
	assert.Equal(t, Sandbox, env)

	env, err = WompiEnvironment("pub_prod_abc")
	require.NoError(t, err)
	assert.Equal(t, Production, env)

	_, err = WompiEnvironment("")
	assert.ErrorIs(t, err, ErrCredential)
	_, err = WompiEnvironment("sk_live_123")
	assert.ErrorIs(t, err, ErrCredential)

	c, err := NewWompi("pub_test_abc", time.Second)
	require.NoError(t, err)
	assert.Equal(t, wompiSandboxURL, c.BaseURL)
	c, err = NewWompi("prv_prod_abc", time.Second)
	require.NoError(t, err)
	assert.Equal(t, wompiProductionURL, c.BaseURL)
}

func TestMercadoPagoEnvironment_FromTokenPrefix(t *testing.T) {
	env, err := MercadoPagoEnvironment("TEST-123-abc")
	require.NoError(t, err)
	assert.Equal(t, Sandbox, env)

	env, err = MercadoPagoEnvironment("APP_USR-123-abc")
	require.NoError(t, err)
	assert.Equal(t, Production, env)

	_, err = MercadoPagoEnvironment("Bearer xyz")
	assert.ErrorIs(t, err, ErrCredential)
}

func TestWompiFetchTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pub_test_key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/transactions/tx-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"id":"tx-1","reference":"order-1","status":"APPROVED",
				"amount_in_cents":12345600,"currency":"COP","created_at":"2024-05-01T10:00:00Z",
				"customer_email":"payer@example.com","customer_data":{"full_name":"Ana Payer"}}}`))
		case "/transactions/missing":
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		default:
			http.Error(w, "boom", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c, err := NewWompi("pub_test_key", time.Second, WithBaseURL(srv.URL))
	require.NoError(t, err)

	tx, err := c.FetchTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", tx.Reference)
	assert.True(t, tx.Approved())
	assert.Equal(t, "123456", tx.Amount.String())
	assert.Equal(t, "payer@example.com", tx.PayerEmail)
	assert.Equal(t, "Ana Payer", tx.PayerName)
	assert.Equal(t, "2024-05-01T10:00:00Z", tx.UpdatedAt)

	_, err = c.FetchTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.FetchTransaction(context.Background(), "explode")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestWompiFetchTransaction_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewWompi("pub_test_key", time.Second, WithBaseURL(url))
	require.NoError(t, err)
	_, err = c.FetchTransaction(context.Background(), "tx-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMercadoPagoFetchAndSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/payments/42":
			_, _ = w.Write([]byte(`{"id":42,"status":"approved","external_reference":"order-9",
				"transaction_amount":99.5,"currency_id":"COP","date_approved":"2024-05-02T11:00:00Z",
				"payer":{"email":"mp@example.com","first_name":"Luis","last_name":"Pérez"}}`))
		case "/v1/payments/search":
			assert.Equal(t, "order-9", r.URL.Query().Get("external_reference"))
			_, _ = w.Write([]byte(`{"results":[
				{"id":50,"status":"rejected","external_reference":"order-9"},
				{"id":42,"status":"approved","external_reference":"order-9"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewMercadoPago("TEST-token", time.Second, WithBaseURL(srv.URL))
	require.NoError(t, err)

	tx, err := c.FetchTransaction(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", tx.ID)
	assert.Equal(t, "order-9", tx.Reference)
	assert.Equal(t, StatusApproved, tx.Status)
	assert.Equal(t, "Luis Pérez", tx.PayerName)
	assert.Equal(t, "99.5", tx.Amount.String())

	tx, err = c.FindByReference(context.Background(), "order-9")
	require.NoError(t, err)
	assert.Equal(t, "42", tx.ID)

	_, err = c.FetchTransaction(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNormalizeStatuses(t *testing.T) {
	assert.Equal(t, StatusApproved, NormalizeWompi("APPROVED"))
	assert.Equal(t, StatusDeclined, NormalizeWompi("VOIDED"))
	assert.Equal(t, StatusDeclined, NormalizeWompi("ERROR"))
	assert.Equal(t, StatusPending, NormalizeWompi("PENDING"))
	assert.Equal(t, StatusPending, NormalizeMercadoPago("in_process"))
	assert.Equal(t, StatusDeclined, NormalizeMercadoPago("charged_back"))
}
