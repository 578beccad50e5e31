package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/listing-payment-gate/internal/model"
)

// ListingServiceInterface defines the interface for listing business logic.
type ListingServiceInterface interface {
	Create(ctx context.Context, req *model.CreateListingRequest) (*model.Listing, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Listing, error)
	List(ctx context.Context, limit, offset int) ([]model.Listing, error)
}

// ListingHandler handles HTTP requests for listings.
type ListingHandler struct {
	service   ListingServiceInterface
	validator *validator.Validate
}

// NewListingHandler creates a new ListingHandler with the given service and validator.
func NewListingHandler(svc ListingServiceInterface, v *validator.Validate) *ListingHandler {
	return &ListingHandler{service: svc, validator: v}
}

// CreateListing handles POST /api/listings. The listing is published only
// after its payment reference confirms or its promo code admits it.
// Responds 201 for a new listing and 200 when the reference was already used
// to publish one.
func (h *ListingHandler) CreateListing(c *fiber.Ctx) error {
	var req model.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	listing, created, err := h.service.Create(c.Context(), &req)
	if err != nil {
		return errorResponse(c, err, logFor(c).
			Str("reference", req.Reference).
			Str("network", req.PaymentNetwork).
			Str("promo_code", req.PromoCode))
	}

	log.Info().
		Str("listing_id", listing.ID.String()).
		Str("reference", listing.PaymentReference).
		Bool("created", created).
		Msg("listing published")

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(listing)
}

// GetListing handles GET /api/listings/:id.
func (h *ListingHandler) GetListing(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be a uuid"})
	}

	listing, err := h.service.Get(c.Context(), id)
	if err != nil {
		return errorResponse(c, err, logFor(c).Str("listing_id", id.String()))
	}
	return c.JSON(listing)
}

// ListListings handles GET /api/listings?limit=&offset=.
func (h *ListingHandler) ListListings(c *fiber.Ctx) error {
	listings, err := h.service.List(c.Context(), c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return errorResponse(c, err, logFor(c))
	}
	return c.JSON(fiber.Map{"listings": listings})
}
