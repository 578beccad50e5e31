package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/internal/payment"
	"github.com/fairyhunter13/listing-payment-gate/pkg/database"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListingRepositoryInterface defines the interface for listing data access.
type ListingRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, l *model.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Listing, error)
	List(ctx context.Context, limit, offset int) ([]model.Listing, error)
}

// ListingService publishes listings behind the admission gate.
type ListingService struct {
	gate     *Gate
	listings ListingRepositoryInterface
}

// NewListingService creates a new ListingService.
func NewListingService(gate *Gate, listings ListingRepositoryInterface) *ListingService {
	return &ListingService{gate: gate, listings: listings}
}

// Create publishes a listing once the request is admitted. A promo code, when
// present, is used instead of the payment reference.
// The returned bool is false when the reference was already admitted and the
// existing listing is returned.
func (s *ListingService) Create(ctx context.Context, req *model.CreateListingRequest) (*model.Listing, bool, error) {
	// Defense-in-depth: check for nil pointer even though handler validates
	if req == nil {
		return nil, false, ErrInvalidRequest
	}
	price, err := decimal.NewFromString(req.Price.String())
	if err != nil || price.Sign() <= 0 {
		return nil, false, ErrInvalidRequest
	}

	var listing *model.Listing
	create := func(ctx context.Context, tx database.TxQuerier, id uuid.UUID, reference string) error {
		l := &model.Listing{
			ID:               id,
			Title:            strings.TrimSpace(req.Title),
			Description:      req.Description,
			Price:            price,
			Location:         strings.TrimSpace(req.Location),
			Owner:            strings.TrimSpace(req.Owner),
			PaymentReference: reference,
		}
		if err := s.listings.Insert(ctx, tx, l); err != nil {
			return err
		}
		listing = l
		return nil
	}

	var admitted *Admitted
	if strings.TrimSpace(req.PromoCode) != "" {
		admitted, err = s.gate.AdmitPromo(ctx, PromoClaim{Code: req.PromoCode, Purpose: payment.PurposeListing}, create)
	} else {
		admitted, err = s.gate.AdmitPayment(ctx, PaymentClaim{
			Network:   chain.Network(req.PaymentNetwork),
			Reference: req.Reference,
			Purpose:   payment.PurposeListing,
		}, create)
	}
	if err != nil {
		return nil, false, err
	}

	if admitted.Replayed {
		existing, err := s.Get(ctx, admitted.Admission.EntityID)
		if err != nil {
			return nil, false, fmt.Errorf("load admitted listing: %w", err)
		}
		return existing, false, nil
	}
	return listing, true, nil
}

// Get retrieves a listing. Returns ErrListingNotFound if it does not exist.
func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, ErrListingNotFound
	}
	return l, nil
}

// List returns listings newest first. limit is clamped to [1, 100].
func (s *ListingService) List(ctx context.Context, limit, offset int) ([]model.Listing, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.listings.List(ctx, limit, offset)
}
