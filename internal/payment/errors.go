package payment

import "errors"

var (
	// ErrConfig is a server misconfiguration (missing secret or credential). Not retried.
	ErrConfig = errors.New("payment configuration error")
	// ErrSignature rejects an inbound event whose authenticity cannot be established.
	ErrSignature = errors.New("invalid webhook signature")
	// ErrMalformedPayload is a body that cannot be parsed at all.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrReferenceMismatch means the transaction belongs to another order.
	ErrReferenceMismatch = errors.New("transaction reference does not match order")
	// ErrUnknownGateway is a request for a gateway that is not configured.
	ErrUnknownGateway = errors.New("unknown payment gateway")
)
