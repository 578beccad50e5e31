package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/payment"
	"github.com/fairyhunter13/listing-payment-gate/internal/service"
)

// fieldNames maps request struct fields to their JSON names for error messages.
var fieldNames = map[string]string{
	"Title":          "title",
	"Description":    "description",
	"Price":          "price",
	"Location":       "location",
	"Owner":          "owner",
	"Reference":      "reference",
	"PaymentNetwork": "payment_network",
	"PromoCode":      "promo_code",
	"Subscriber":     "subscriber",
	"Network":        "network",
	"Payer":          "payer",
	"Recipient":      "recipient",
	"Amount":         "amount",
	"Purpose":        "purpose",
	"MaxUses":        "max_uses",
	"RemainingUses":  "remaining_uses",
}

// formatValidationError converts validator errors to client-facing messages.
// Only the first failing field is reported.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	field, ok := fieldNames[fe.Field()]
	if !ok {
		field = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return "invalid request: " + field + " is required"
	case "required_without":
		return "invalid request: " + field + " or " + fieldNames[fe.Param()] + " is required"
	case "notblank":
		return "invalid request: " + field + " cannot be whitespace only"
	case "max":
		return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
	case "amount":
		return "invalid request: " + field + " must be a positive decimal"
	case "gte":
		return "invalid request: " + field + " must be at least " + fe.Param()
	case "lte":
		return "invalid request: " + field + " must be at most " + fe.Param()
	case "oneof":
		return "invalid request: " + field + " must be one of: " + fe.Param()
	default:
		return "invalid request: " + field + " is invalid"
	}
}

// errorResponse maps a domain error to a status code and message.
// Unrecognized errors are logged and reported as 500 without detail.
func errorResponse(c *fiber.Ctx, err error, event *zerolog.Event) error {
	status, msg := classify(err)
	switch status {
	case fiber.StatusInternalServerError:
		event.Err(err).Msg("request failed")
	case fiber.StatusServiceUnavailable:
		event.Err(err).Msg("chain unavailable")
	default:
		event.Discard()
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return fiber.StatusBadRequest, "invalid request"
	case errors.Is(err, chain.ErrMalformedAddress):
		return fiber.StatusBadRequest, "invalid request: malformed address or reference"
	case errors.Is(err, payment.ErrInvalidAmount):
		return fiber.StatusBadRequest, "invalid request: amount must be a positive decimal within token precision"
	case errors.Is(err, payment.ErrUnknownNetwork):
		return fiber.StatusBadRequest, "invalid request: unknown payment network"
	case errors.Is(err, payment.ErrUnknownPurpose):
		return fiber.StatusBadRequest, "invalid request: unknown purpose"
	case errors.Is(err, service.ErrPaymentNotConfirmed),
		errors.Is(err, service.ErrPaymentMismatch),
		errors.Is(err, service.ErrPaymentOtherPurpose),
		errors.Is(err, service.ErrReferenceRejected):
		return fiber.StatusBadRequest, "Invalid payment"
	case errors.Is(err, service.ErrPromoInvalid):
		return fiber.StatusBadRequest, "Invalid promo"
	case errors.Is(err, service.ErrPromoExhausted):
		return fiber.StatusBadRequest, "Promo exhausted"
	case errors.Is(err, service.ErrReferenceUsed):
		return fiber.StatusConflict, "payment reference already used"
	case errors.Is(err, service.ErrTransactionUsed):
		return fiber.StatusConflict, "payment transaction already used"
	case errors.Is(err, service.ErrPromoExists):
		return fiber.StatusConflict, "promo code already exists"
	case errors.Is(err, service.ErrPromoNotFound):
		return fiber.StatusNotFound, "promo code not found"
	case errors.Is(err, service.ErrListingNotFound):
		return fiber.StatusNotFound, "listing not found"
	case errors.Is(err, service.ErrSubscriptionNotFound):
		return fiber.StatusNotFound, "subscription not found"
	case errors.Is(err, chain.ErrUnverifiable), errors.Is(err, chain.ErrUnsupported):
		return fiber.StatusUnprocessableEntity, "payment network cannot be verified"
	case errors.Is(err, payment.ErrNoMerchant):
		return fiber.StatusUnprocessableEntity, "payment network has no merchant account"
	case errors.Is(err, chain.ErrTransient):
		return fiber.StatusServiceUnavailable, "payment network temporarily unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout, "request cancelled"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}

// logFor starts an error log event carrying request context.
func logFor(c *fiber.Ctx) *zerolog.Event {
	ev := log.Error().Str("method", c.Method()).Str("path", c.Path())
	if rid, ok := c.Locals("requestid").(string); ok {
		ev = ev.Str("request_id", rid)
	}
	return ev
}
