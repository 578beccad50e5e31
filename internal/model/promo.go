package model

import (
	"time"

	"github.com/google/uuid"
)

// FreePromoCode is the fixed code created by the "free" administrative shortcut.
const (
	FreePromoCode = "free"
	FreePromoUses = 1000
)

// Promo is a counted-use code that admits an action without payment.
type Promo struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	MaxUses       int       `json:"max_uses"`
	RemainingUses int       `json:"remaining_uses"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreatePromoRequest is the DTO for POST /api/admin/promos
type CreatePromoRequest struct {
	MaxUses *int `json:"max_uses" validate:"required,gte=1,lte=1000000"`
}

// ResetPromoRequest is the DTO for PUT /api/admin/promos/:id/reset
type ResetPromoRequest struct {
	RemainingUses *int `json:"remaining_uses" validate:"required,gte=0,lte=1000000"`
}
