package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const mercadoPagoURL = "https://api.mercadopago.com"

type MercadoPagoClient struct {
	httpClient
	token string
	env   Environment
}

// MercadoPagoEnvironment reads the environment off the access token: TEST- tokens
// belong to test users, APP_USR- tokens to production accounts.
func MercadoPagoEnvironment(token string) (Environment, error) {
	switch {
	case token == "":
		return "", fmt.Errorf("%w: mercadopago access token is empty", ErrCredential)
	case strings.HasPrefix(token, "TEST-"):
		return Sandbox, nil
	case strings.HasPrefix(token, "APP_USR-"):
		return Production, nil
	default:
		return "", fmt.Errorf("%w: unrecognized mercadopago token prefix", ErrCredential)
	}
}

func NewMercadoPago(token string, timeout time.Duration, opts ...Option) (*MercadoPagoClient, error) {
	env, err := MercadoPagoEnvironment(token)
	if err != nil {
		return nil, err
	}
	c := &MercadoPagoClient{
		httpClient: httpClient{HTTP: &http.Client{Timeout: timeout}, BaseURL: mercadoPagoURL},
		token:      token,
		env:        env,
	}
	for _, o := range opts {
		o(&c.httpClient)
	}
	return c, nil
}

func (c *MercadoPagoClient) Name() Name               { return MercadoPago }
func (c *MercadoPagoClient) Environment() Environment { return c.env }

type mpPayment struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	DateApproved      string          `json:"date_approved"`
	DateLastUpdated   string          `json:"date_last_updated"`
	Payer             struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"payer"`
}

func (p mpPayment) toTransaction() *Transaction {
	updated := p.DateApproved
	if updated == "" {
		updated = p.DateLastUpdated
	}
	return &Transaction{
		ID:         strconv.FormatInt(p.ID, 10),
		Gateway:    MercadoPago,
		Reference:  p.ExternalReference,
		Status:     NormalizeMercadoPago(p.Status),
		RawStatus:  p.Status,
		Amount:     p.TransactionAmount,
		Currency:   p.CurrencyID,
		UpdatedAt:  updated,
		PayerEmail: p.Payer.Email,
		PayerName:  strings.TrimSpace(p.Payer.FirstName + " " + p.Payer.LastName),
	}
}

func (c *MercadoPagoClient) FetchTransaction(ctx context.Context, id string) (*Transaction, error) {
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, ErrNotFound
	}
	log.Printf("[mercadopago] fetching payment id=%s env=%s", id, c.env)
	var p mpPayment
	if err := c.get(ctx, c.BaseURL+"/v1/payments/"+id, c.token, &p); err != nil {
		return nil, err
	}
	return p.toTransaction(), nil
}

// FindByReference returns the approved payment for the reference if any, else the most recent one.
func (c *MercadoPagoClient) FindByReference(ctx context.Context, reference string) (*Transaction, error) {
	q := url.Values{}
	q.Set("external_reference", reference)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")
	log.Printf("[mercadopago] searching payments reference=%s env=%s", reference, c.env)

	var body struct {
		Results []mpPayment `json:"results"`
	}
	if err := c.get(ctx, c.BaseURL+"/v1/payments/search?"+q.Encode(), c.token, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, ErrNotFound
	}
	for _, p := range body.Results {
		if NormalizeMercadoPago(p.Status) == StatusApproved {
			return p.toTransaction(), nil
		}
	}
	return body.Results[0].toTransaction(), nil
}
