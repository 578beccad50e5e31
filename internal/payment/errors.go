package payment

import "errors"

var (
	// ErrInvalidAmount is returned when a human amount is not a positive decimal
	// that fits the token's base-unit range
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnknownNetwork is returned for a network with no configured chain client
	ErrUnknownNetwork = errors.New("unknown payment network")

	// ErrUnknownPurpose is returned for a purpose missing from the pricing catalog
	ErrUnknownPurpose = errors.New("unknown payment purpose")

	// ErrNoMerchant is returned when no merchant address is configured for a network
	ErrNoMerchant = errors.New("no merchant configured for network")
)
