package handler

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/internal/payment"
)

// PaymentServiceInterface defines the payment operations exposed over HTTP.
type PaymentServiceInterface interface {
	NewReference(network chain.Network) (chain.Network, string, error)
	Build(ctx context.Context, req payment.BuildRequest) (string, error)
	VerifyPurpose(ctx context.Context, network chain.Network, reference string, purpose payment.Purpose) (payment.Outcome, error)
}

// PaymentHandler handles reference issuance, transaction building and verification.
type PaymentHandler struct {
	service   PaymentServiceInterface
	validator *validator.Validate
}

// NewPaymentHandler creates a new PaymentHandler with the given service and validator.
func NewPaymentHandler(svc PaymentServiceInterface, v *validator.Validate) *PaymentHandler {
	return &PaymentHandler{service: svc, validator: v}
}

// NewReference handles POST /api/payments/reference.
func (h *PaymentHandler) NewReference(c *fiber.Ctx) error {
	var req model.ReferenceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	network, ref, err := h.service.NewReference(chain.Network(strings.TrimSpace(req.Network)))
	if err != nil {
		return errorResponse(c, err, logFor(c).Str("network", req.Network))
	}
	return c.Status(fiber.StatusCreated).JSON(model.ReferenceResponse{
		Reference: ref,
		Network:   network.String(),
	})
}

// BuildTransaction handles POST /api/payments/transaction. The response carries
// an unsigned, base64-encoded transaction for the payer's wallet to sign.
func (h *PaymentHandler) BuildTransaction(c *fiber.Ctx) error {
	var req model.BuildTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	tx, err := h.service.Build(c.Context(), payment.BuildRequest{
		Network:   chain.Network(strings.TrimSpace(req.Network)),
		Payer:     strings.TrimSpace(req.Payer),
		Recipient: strings.TrimSpace(req.Recipient),
		Amount:    req.Amount.String(),
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		return errorResponse(c, err, logFor(c).
			Str("network", req.Network).
			Str("reference", req.Reference))
	}
	return c.JSON(model.BuildTransactionResponse{Transaction: tx})
}

// Verify handles POST /api/payments/verify. A single check against the ledger,
// without polling. Purpose defaults to listing.
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	var req model.VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	purpose := payment.Purpose(req.Purpose)
	if purpose == "" {
		purpose = payment.PurposeListing
	}

	out, err := h.service.VerifyPurpose(c.Context(), chain.Network(strings.TrimSpace(req.Network)), strings.TrimSpace(req.Reference), purpose)
	if err != nil {
		return errorResponse(c, err, logFor(c).
			Str("network", req.Network).
			Str("reference", req.Reference))
	}
	return c.JSON(model.VerifyPaymentResponse{
		Confirmed:     out.Confirmed,
		Status:        string(out.Status),
		TransactionID: out.TxID,
	})
}
