// Package gateway reads authoritative transaction state from the payment processors.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound means the processor answered and does not know the transaction.
	ErrNotFound = errors.New("transaction not found")
	// ErrUnavailable covers network failures and non-success answers; callers may retry.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrCredential is returned at construction when the credential is missing or malformed.
	ErrCredential = errors.New("invalid gateway credential")
)

type Name string

const (
	Wompi       Name = "wompi"
	MercadoPago Name = "mercadopago"
	Manual      Name = "manual"
)

// Status is the normalized outcome of a transaction.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusDeclined Status = "declined"
)

type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

// Transaction is a read-only snapshot of a remote payment.
type Transaction struct {
	ID        string          `json:"id"`
	Gateway   Name            `json:"gateway"`
	Reference string          `json:"reference"`
	Status    Status          `json:"status"`
	RawStatus string          `json:"raw_status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	// UpdatedAt is kept as the processor formatted it.
	UpdatedAt  string `json:"updated_at"`
	PayerEmail string `json:"payer_email,omitempty"`
	PayerName  string `json:"payer_name,omitempty"`
}

func (t Transaction) Approved() bool { return t.Status == StatusApproved }

type Client interface {
	Name() Name
	FetchTransaction(ctx context.Context, id string) (*Transaction, error)
}

// ReferenceFinder is implemented by processors that can search by external reference.
type ReferenceFinder interface {
	FindByReference(ctx context.Context, reference string) (*Transaction, error)
}

func NormalizeWompi(raw string) Status {
	switch strings.ToUpper(raw) {
	case "APPROVED":
		return StatusApproved
	case "PENDING", "":
		return StatusPending
	default: // DECLINED, VOIDED, ERROR
		return StatusDeclined
	}
}

func NormalizeMercadoPago(raw string) Status {
	switch strings.ToLower(raw) {
	case "approved":
		return StatusApproved
	case "pending", "in_process", "in_mediation", "authorized", "":
		return StatusPending
	default: // rejected, cancelled, refunded, charged_back
		return StatusDeclined
	}
}
