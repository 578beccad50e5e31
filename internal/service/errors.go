package service

import "errors"

var (
	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPaymentNotConfirmed is returned when polling ends without a confirming transfer
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")

	// ErrPaymentMismatch is returned when the reference paid the wrong amount or account
	ErrPaymentMismatch = errors.New("payment amount or destination mismatch")

	// ErrReferenceRejected is returned for a reference previously rejected by verification
	ErrReferenceRejected = errors.New("payment reference rejected")

	// ErrReferenceUsed is returned when an admitted reference is presented for another purpose
	ErrReferenceUsed = errors.New("payment reference already used")

	// ErrTransactionUsed is returned when the confirming transaction already admitted another reference
	ErrTransactionUsed = errors.New("payment transaction already used")

	// ErrPaymentOtherPurpose is returned when the reference paid the price of a different purpose
	ErrPaymentOtherPurpose = errors.New("payment matches a different purpose")

	// ErrAlreadyAdmitted is returned when an admission row for the reference already exists
	ErrAlreadyAdmitted = errors.New("reference already admitted")

	// ErrPromoInvalid is returned when a promo code does not exist
	ErrPromoInvalid = errors.New("invalid promo code")

	// ErrPromoExhausted is returned when a promo code has no remaining uses
	ErrPromoExhausted = errors.New("promo code exhausted")

	// ErrPromoExists is returned when attempting to create a promo code that already exists
	ErrPromoExists = errors.New("promo code already exists")

	// ErrPromoNotFound is returned when a promo code cannot be found by id
	ErrPromoNotFound = errors.New("promo code not found")

	// ErrListingNotFound is returned when a listing cannot be found
	ErrListingNotFound = errors.New("listing not found")

	// ErrSubscriptionNotFound is returned when a subscriber has no active subscription
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
