package model

import (
	"time"

	"github.com/google/uuid"
)

// Subscription grants data access to a subscriber until ExpiresAt.
type Subscription struct {
	ID               uuid.UUID `json:"id"`
	Subscriber       string    `json:"subscriber"`
	PaymentReference string    `json:"payment_reference"`
	StartsAt         time.Time `json:"starts_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// PurchaseSubscriptionRequest is the DTO for POST /api/subscriptions
type PurchaseSubscriptionRequest struct {
	Subscriber     string `json:"subscriber" validate:"required,notblank,max=255"`
	Reference      string `json:"reference" validate:"required_without=PromoCode,max=128"`
	PaymentNetwork string `json:"payment_network" validate:"max=64"`
	PromoCode      string `json:"promo_code" validate:"max=64"`
}
