package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/pkg/database"
)

const (
	promoCodeLength   = 8
	promoCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	// bytes at or above this bound are redrawn so every symbol is equally likely
	promoCodeByteLimit = 256 - 256%len(promoCodeAlphabet)
	// draws before giving up on code collisions
	promoCodeAttempts = 5
)

// PromoRepositoryInterface defines the interface for promo code data access.
type PromoRepositoryInterface interface {
	Insert(ctx context.Context, promo *model.Promo) error
	Upsert(ctx context.Context, promo *model.Promo) error
	GetByCode(ctx context.Context, code string) (*model.Promo, error)
	ListActive(ctx context.Context) ([]model.Promo, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reset(ctx context.Context, id uuid.UUID, remaining int) (*model.Promo, error)
	ConsumeUse(ctx context.Context, tx database.TxQuerier, code string) (int, error)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ TxBeginner = (*pgxpool.Pool)(nil)

// PromoService provides administrative operations on promo codes.
type PromoService struct {
	promos PromoRepositoryInterface
}

// NewPromoService creates a new PromoService.
func NewPromoService(promos PromoRepositoryInterface) *PromoService {
	return &PromoService{promos: promos}
}

// Generate creates a random code with req.MaxUses uses.
// Returns ErrInvalidRequest if request data is nil or incomplete.
func (s *PromoService) Generate(ctx context.Context, req *model.CreatePromoRequest) (*model.Promo, error) {
	// Defense-in-depth: check for nil pointer even though handler validates
	if req == nil || req.MaxUses == nil || *req.MaxUses < 1 {
		return nil, ErrInvalidRequest
	}

	for i := 0; i < promoCodeAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return nil, err
		}
		promo := &model.Promo{ID: uuid.New(), Code: code, MaxUses: *req.MaxUses}
		err = s.promos.Insert(ctx, promo)
		if errors.Is(err, ErrPromoExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return promo, nil
	}
	return nil, fmt.Errorf("generate promo code: %w", ErrPromoExists)
}

// CreateFree creates the well-known "free" code, or restores its uses if it exists.
func (s *PromoService) CreateFree(ctx context.Context) (*model.Promo, error) {
	promo := &model.Promo{ID: uuid.New(), Code: model.FreePromoCode, MaxUses: model.FreePromoUses}
	if err := s.promos.Upsert(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

// Get retrieves a code in canonical form, exhausted or not.
// Returns ErrPromoNotFound if the code does not exist.
func (s *PromoService) Get(ctx context.Context, code string) (*model.Promo, error) {
	promo, err := s.promos.GetByCode(ctx, CanonicalPromoCode(code))
	if err != nil {
		return nil, fmt.Errorf("get promo: %w", err)
	}
	if promo == nil {
		return nil, ErrPromoNotFound
	}
	return promo, nil
}

// ListActive returns codes with uses left.
func (s *PromoService) ListActive(ctx context.Context) ([]model.Promo, error) {
	return s.promos.ListActive(ctx)
}

// Delete removes a code. Returns ErrPromoNotFound if it does not exist.
func (s *PromoService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.promos.Delete(ctx, id)
}

// Reset sets the remaining uses of a code.
// Returns ErrPromoNotFound if it does not exist.
func (s *PromoService) Reset(ctx context.Context, id uuid.UUID, req *model.ResetPromoRequest) (*model.Promo, error) {
	if req == nil || req.RemainingUses == nil || *req.RemainingUses < 0 {
		return nil, ErrInvalidRequest
	}
	return s.promos.Reset(ctx, id, *req.RemainingUses)
}

func randomCode() (string, error) {
	return randomCodeFrom(rand.Reader)
}

func randomCodeFrom(r io.Reader) (string, error) {
	code := make([]byte, 0, promoCodeLength)
	buf := make([]byte, promoCodeLength)
	for len(code) < promoCodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("generate promo code: %w", err)
		}
		for _, b := range buf {
			if int(b) >= promoCodeByteLimit {
				continue
			}
			code = append(code, promoCodeAlphabet[int(b)%len(promoCodeAlphabet)])
			if len(code) == promoCodeLength {
				break
			}
		}
	}
	return string(code), nil
}
