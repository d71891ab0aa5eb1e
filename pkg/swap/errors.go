package swap

import "errors"

// Every mutating operation either fully succeeds or fails with one of these
// and leaves no partial state behind.
var (
	ErrUnauthorized        = errors.New("unauthorized caller")
	ErrInvalidOrder        = errors.New("order does not exist or is not active")
	ErrOrderExpired        = errors.New("order expired")
	ErrPriceNotMet         = errors.New("price condition not met")
	ErrInsufficientDeposit = errors.New("deposit below minimum order amount")
	ErrUnsupportedToken    = errors.New("token not supported")
	ErrInvalidTriggerPrice = errors.New("trigger price must be positive")
	ErrInvalidExpiration   = errors.New("expiration must be in the future")
	ErrSwapFailed          = errors.New("swap failed")
)
