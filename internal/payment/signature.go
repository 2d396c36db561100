package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"
)

// ChecksumVerifier checks Wompi-style event signatures: the payload names, in
// signature.properties, the fields under data whose values are concatenated,
// followed by the events secret, and hashed with SHA-256.
type ChecksumVerifier struct {
	Secret string
}

func (v ChecksumVerifier) Verify(payload *structpb.Struct) error {
	if v.Secret == "" {
		return fmt.Errorf("%w: events secret is not set", ErrConfig)
	}
	sig := LookupStruct(payload, "signature")
	if sig == nil {
		return fmt.Errorf("%w: missing signature block", ErrSignature)
	}
	checksum := LookupString(sig, "checksum")
	if checksum == "" {
		return fmt.Errorf("%w: missing checksum", ErrSignature)
	}
	props := sig.GetFields()["properties"].GetListValue().GetValues()
	if len(props) == 0 {
		return fmt.Errorf("%w: missing properties", ErrSignature)
	}

	data := LookupStruct(payload, "data")
	var b strings.Builder
	for _, p := range props {
		path := p.GetStringValue()
		val, err := Lookup(data, path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSignature, err)
		}
		b.WriteString(val)
	}
	b.WriteString(v.Secret)

	sum := sha256.Sum256([]byte(b.String()))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(checksum))) != 1 {
		return fmt.Errorf("%w: checksum mismatch", ErrSignature)
	}
	return nil
}

// HMACVerifier checks a hex HMAC-SHA256 of the raw request body, as sent in a header.
type HMACVerifier struct {
	Secret string
}

func (v HMACVerifier) Verify(body []byte, signature string) error {
	if v.Secret == "" {
		return fmt.Errorf("%w: webhook secret is not set", ErrConfig)
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return fmt.Errorf("%w: missing signature header", ErrSignature)
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrSignature)
	}
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), got) {
		return fmt.Errorf("%w: hmac mismatch", ErrSignature)
	}
	return nil
}

// WidgetSignature is what the checkout widget needs to open a payment for an order.
type WidgetSignature struct {
	Signature     string `json:"signature"`
	Reference     string `json:"reference"`
	AmountInCents int64  `json:"amountInCents"`
	Currency      string `json:"currency"`
	PublicKey     string `json:"publicKey"`
}

// IntegritySignature hashes reference + amount in cents + currency + secret.
func IntegritySignature(reference string, amount decimal.Decimal, currency, secret string) (WidgetSignature, error) {
	if secret == "" {
		return WidgetSignature{}, fmt.Errorf("%w: integrity secret is not set", ErrConfig)
	}
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	sum := sha256.Sum256([]byte(reference + strconv.FormatInt(cents, 10) + currency + secret))
	return WidgetSignature{
		Signature:     hex.EncodeToString(sum[:]),
		Reference:     reference,
		AmountInCents: cents,
		Currency:      currency,
	}, nil
}
