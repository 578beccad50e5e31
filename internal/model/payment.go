package model

import "encoding/json"

// ReferenceRequest is the DTO for POST /api/payments/reference
type ReferenceRequest struct {
	Network string `json:"network" validate:"max=64"`
}

// ReferenceResponse carries a freshly issued payment reference.
type ReferenceResponse struct {
	Reference string `json:"reference"`
	Network   string `json:"network"`
}

// BuildTransactionRequest is the DTO for POST /api/payments/transaction.
// Amount is in human token units.
type BuildTransactionRequest struct {
	Network   string      `json:"network" validate:"max=64"`
	Payer     string      `json:"payer" validate:"required,notblank,max=128"`
	Recipient string      `json:"recipient" validate:"required,notblank,max=128"`
	Amount    json.Number `json:"amount" validate:"required,amount"`
	Reference string      `json:"reference" validate:"required,notblank,max=128"`
}

// BuildTransactionResponse carries the base64 unsigned transaction.
type BuildTransactionResponse struct {
	Transaction string `json:"transaction"`
}

// VerifyPaymentRequest is the DTO for POST /api/payments/verify
type VerifyPaymentRequest struct {
	Reference string `json:"reference" validate:"required,notblank,max=128"`
	Network   string `json:"network" validate:"max=64"`
	Purpose   string `json:"purpose" validate:"omitempty,oneof=listing subscription"`
}

// VerifyPaymentResponse reports a single verification.
type VerifyPaymentResponse struct {
	Confirmed     bool   `json:"confirmed"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
}
