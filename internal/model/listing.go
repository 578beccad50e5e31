package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is a published real-estate listing.
type Listing struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	Location         string          `json:"location"`
	Owner            string          `json:"owner"`
	PaymentReference string          `json:"payment_reference"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CreateListingRequest is the DTO for POST /api/listings.
// Either Reference (paid) or PromoCode must be set.
type CreateListingRequest struct {
	Title          string      `json:"title" validate:"required,notblank,max=200"`
	Description    string      `json:"description" validate:"max=5000"`
	Price          json.Number `json:"price" validate:"required,amount"`
	Location       string      `json:"location" validate:"required,notblank,max=255"`
	Owner          string      `json:"owner" validate:"required,notblank,max=255"`
	Reference      string      `json:"reference" validate:"required_without=PromoCode,max=128"`
	PaymentNetwork string      `json:"payment_network" validate:"max=64"`
	PromoCode      string      `json:"promo_code" validate:"max=64"`
}
