package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/listing-payment-gate/internal/model"
)

// PromoServiceInterface defines the administrative promo operations.
type PromoServiceInterface interface {
	Generate(ctx context.Context, req *model.CreatePromoRequest) (*model.Promo, error)
	CreateFree(ctx context.Context) (*model.Promo, error)
	Get(ctx context.Context, code string) (*model.Promo, error)
	ListActive(ctx context.Context) ([]model.Promo, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reset(ctx context.Context, id uuid.UUID, req *model.ResetPromoRequest) (*model.Promo, error)
}

// PromoHandler handles the admin promo code endpoints.
type PromoHandler struct {
	service   PromoServiceInterface
	validator *validator.Validate
}

// NewPromoHandler creates a new PromoHandler with the given service and validator.
func NewPromoHandler(svc PromoServiceInterface, v *validator.Validate) *PromoHandler {
	return &PromoHandler{service: svc, validator: v}
}

// Generate handles POST /api/admin/promos.
func (h *PromoHandler) Generate(c *fiber.Ctx) error {
	var req model.CreatePromoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	promo, err := h.service.Generate(c.Context(), &req)
	if err != nil {
		return errorResponse(c, err, logFor(c))
	}

	log.Info().Str("promo_code", promo.Code).Int("max_uses", promo.MaxUses).Msg("promo code generated")
	return c.Status(fiber.StatusCreated).JSON(promo)
}

// CreateFree handles POST /api/admin/promos/free.
func (h *PromoHandler) CreateFree(c *fiber.Ctx) error {
	promo, err := h.service.CreateFree(c.Context())
	if err != nil {
		return errorResponse(c, err, logFor(c))
	}

	log.Info().Str("promo_code", promo.Code).Int("remaining_uses", promo.RemainingUses).Msg("free promo code reset")
	return c.Status(fiber.StatusCreated).JSON(promo)
}

// ListActive handles GET /api/admin/promos.
func (h *PromoHandler) ListActive(c *fiber.Ctx) error {
	promos, err := h.service.ListActive(c.Context())
	if err != nil {
		return errorResponse(c, err, logFor(c))
	}
	return c.JSON(fiber.Map{"promos": promos})
}

// Get handles GET /api/admin/promos/:code.
func (h *PromoHandler) Get(c *fiber.Ctx) error {
	code := c.Params("code")
	promo, err := h.service.Get(c.Context(), code)
	if err != nil {
		return errorResponse(c, err, logFor(c).Str("promo_code", code))
	}
	return c.JSON(promo)
}

// Delete handles DELETE /api/admin/promos/:id.
func (h *PromoHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be a uuid"})
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		return errorResponse(c, err, logFor(c).Str("promo_id", id.String()))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Reset handles PUT /api/admin/promos/:id/reset.
func (h *PromoHandler) Reset(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be a uuid"})
	}

	var req model.ResetPromoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	promo, err := h.service.Reset(c.Context(), id, &req)
	if err != nil {
		return errorResponse(c, err, logFor(c).Str("promo_id", id.String()))
	}
	return c.JSON(promo)
}
