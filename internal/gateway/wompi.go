package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	wompiSandboxURL    = "https://sandbox.wompi.co/v1"
	wompiProductionURL = "https://production.wompi.co/v1"
)

type Option func(*httpClient)

type httpClient struct {
	HTTP    *http.Client
	BaseURL string
}

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.BaseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *httpClient) { c.HTTP = h }
}

type WompiClient struct {
	httpClient
	key string
	env Environment
}

// WompiEnvironment derives sandbox/production from the key prefix
// (pub_test_/prv_test_ vs pub_prod_/prv_prod_) so key and host cannot disagree.
func WompiEnvironment(key string) (Environment, error) {
	switch {
	case key == "":
		return "", fmt.Errorf("%w: wompi key is empty", ErrCredential)
	case strings.HasPrefix(key, "pub_test_"), strings.HasPrefix(key, "prv_test_"):
		return Sandbox, nil
	case strings.HasPrefix(key, "pub_prod_"), strings.HasPrefix(key, "prv_prod_"):
		return Production, nil
	default:
		return "", fmt.Errorf("%w: unrecognized wompi key prefix", ErrCredential)
	}
}

func NewWompi(key string, timeout time.Duration, opts ...Option) (*WompiClient, error) {
	env, err := WompiEnvironment(key)
	if err != nil {
		return nil, err
	}
	c := &WompiClient{
		httpClient: httpClient{HTTP: &http.Client{Timeout: timeout}, BaseURL: wompiProductionURL},
		key:        key,
		env:        env,
	}
	if env == Sandbox {
		c.BaseURL = wompiSandboxURL
	}
	for _, o := range opts {
		o(&c.httpClient)
	}
	return c, nil
}

func (c *WompiClient) Name() Name               { return Wompi }
func (c *WompiClient) Environment() Environment { return c.env }

type wompiTransaction struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at"`
	FinalizedAt   string `json:"finalized_at"`
	CustomerEmail string `json:"customer_email"`
	CustomerData  struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	} `json:"customer_data"`
}

func (w wompiTransaction) toTransaction() *Transaction {
	updated := w.FinalizedAt
	if updated == "" {
		updated = w.CreatedAt
	}
	email := w.CustomerEmail
	if email == "" {
		email = w.CustomerData.Email
	}
	return &Transaction{
		ID:         w.ID,
		Gateway:    Wompi,
		Reference:  w.Reference,
		Status:     NormalizeWompi(w.Status),
		RawStatus:  w.Status,
		Amount:     decimal.New(w.AmountInCents, -2),
		Currency:   w.Currency,
		UpdatedAt:  updated,
		PayerEmail: email,
		PayerName:  w.CustomerData.FullName,
	}
}

func (c *WompiClient) FetchTransaction(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	log.Printf("[wompi] fetching transaction id=%s env=%s", id, c.env)
	var body struct {
		Data wompiTransaction `json:"data"`
	}
	if err := c.get(ctx, c.BaseURL+"/transactions/"+url.PathEscape(id), c.key, &body); err != nil {
		return nil, err
	}
	return body.Data.toTransaction(), nil
}

func (c *httpClient) get(ctx context.Context, endpoint, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode < 200 || res.StatusCode > 299:
		return fmt.Errorf("%w: %s", ErrUnavailable, res.Status)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
