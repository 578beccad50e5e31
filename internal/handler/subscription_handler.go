package handler

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/listing-payment-gate/internal/model"
)

// SubscriptionServiceInterface defines the interface for subscription business logic.
type SubscriptionServiceInterface interface {
	Purchase(ctx context.Context, req *model.PurchaseSubscriptionRequest) (*model.Subscription, bool, error)
	Active(ctx context.Context, subscriber string) (*model.Subscription, error)
}

// SubscriptionHandler handles HTTP requests for data-access subscriptions.
type SubscriptionHandler struct {
	service   SubscriptionServiceInterface
	validator *validator.Validate
}

// NewSubscriptionHandler creates a new SubscriptionHandler with the given service and validator.
func NewSubscriptionHandler(svc SubscriptionServiceInterface, v *validator.Validate) *SubscriptionHandler {
	return &SubscriptionHandler{service: svc, validator: v}
}

// Purchase handles POST /api/subscriptions.
func (h *SubscriptionHandler) Purchase(c *fiber.Ctx) error {
	var req model.PurchaseSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	sub, created, err := h.service.Purchase(c.Context(), &req)
	if err != nil {
		return errorResponse(c, err, logFor(c).
			Str("subscriber", req.Subscriber).
			Str("reference", req.Reference).
			Str("promo_code", req.PromoCode))
	}

	log.Info().
		Str("subscriber", sub.Subscriber).
		Time("expires_at", sub.ExpiresAt).
		Bool("created", created).
		Msg("subscription granted")

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(sub)
}

// GetActive handles GET /api/subscriptions/:subscriber.
func (h *SubscriptionHandler) GetActive(c *fiber.Ctx) error {
	subscriber := strings.TrimSpace(c.Params("subscriber"))
	if subscriber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: subscriber is required"})
	}

	sub, err := h.service.Active(c.Context(), subscriber)
	if err != nil {
		return errorResponse(c, err, logFor(c).Str("subscriber", subscriber))
	}
	return c.JSON(sub)
}
