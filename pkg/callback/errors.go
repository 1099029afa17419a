package callback

import "errors"

var (
	ErrDeliveryFailed = errors.New("callback delivery failed")
	ErrPermanent      = errors.New("callback rejected")
	ErrTemporary      = errors.New("temporary callback failure")
	ErrTimeout        = errors.New("callback request timeout")
	ErrCircuitOpen    = errors.New("callback circuit breaker is open")
	ErrInvalidURL     = errors.New("invalid callback URL")
	ErrInvalidPayload = errors.New("invalid callback payload")
	ErrInvalidSecret  = errors.New("callback secret is required")
	ErrBadSignature   = errors.New("invalid callback signature")
)
