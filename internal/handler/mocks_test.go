package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/internal/payment"
)

// mockPaymentService is a mock implementation of PaymentServiceInterface.
type mockPaymentService struct {
	newReferenceFn  func(network chain.Network) (chain.Network, string, error)
	buildFn         func(ctx context.Context, req payment.BuildRequest) (string, error)
	verifyPurposeFn func(ctx context.Context, network chain.Network, reference string, purpose payment.Purpose) (payment.Outcome, error)
}

func (m *mockPaymentService) NewReference(network chain.Network) (chain.Network, string, error) {
	if m.newReferenceFn != nil {
		return m.newReferenceFn(network)
	}
	return chain.NetworkSolana, "ref", nil
}

func (m *mockPaymentService) Build(ctx context.Context, req payment.BuildRequest) (string, error) {
	if m.buildFn != nil {
		return m.buildFn(ctx, req)
	}
	return "", nil
}

func (m *mockPaymentService) VerifyPurpose(ctx context.Context, network chain.Network, reference string, purpose payment.Purpose) (payment.Outcome, error) {
	if m.verifyPurposeFn != nil {
		return m.verifyPurposeFn(ctx, network, reference, purpose)
	}
	return payment.Outcome{Status: payment.StatusPending}, nil
}

// mockListingService is a mock implementation of ListingServiceInterface.
type mockListingService struct {
	createFn func(ctx context.Context, req *model.CreateListingRequest) (*model.Listing, bool, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*model.Listing, error)
	listFn   func(ctx context.Context, limit, offset int) ([]model.Listing, error)
}

func (m *mockListingService) Create(ctx context.Context, req *model.CreateListingRequest) (*model.Listing, bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &model.Listing{ID: uuid.New()}, true, nil
}

func (m *mockListingService) Get(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Listing{ID: id}, nil
}

func (m *mockListingService) List(ctx context.Context, limit, offset int) ([]model.Listing, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return []model.Listing{}, nil
}

// mockSubscriptionService is a mock implementation of SubscriptionServiceInterface.
type mockSubscriptionService struct {
	purchaseFn func(ctx context.Context, req *model.PurchaseSubscriptionRequest) (*model.Subscription, bool, error)
	activeFn   func(ctx context.Context, subscriber string) (*model.Subscription, error)
}

func (m *mockSubscriptionService) Purchase(ctx context.Context, req *model.PurchaseSubscriptionRequest) (*model.Subscription, bool, error) {
	if m.purchaseFn != nil {
		return m.purchaseFn(ctx, req)
	}
	return &model.Subscription{ID: uuid.New(), Subscriber: req.Subscriber}, true, nil
}

func (m *mockSubscriptionService) Active(ctx context.Context, subscriber string) (*model.Subscription, error) {
	if m.activeFn != nil {
		return m.activeFn(ctx, subscriber)
	}
	return &model.Subscription{Subscriber: subscriber}, nil
}

// mockPromoService is a mock implementation of PromoServiceInterface.
type mockPromoService struct {
	generateFn   func(ctx context.Context, req *model.CreatePromoRequest) (*model.Promo, error)
	createFreeFn func(ctx context.Context) (*model.Promo, error)
	getFn        func(ctx context.Context, code string) (*model.Promo, error)
	listActiveFn func(ctx context.Context) ([]model.Promo, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
	resetFn      func(ctx context.Context, id uuid.UUID, req *model.ResetPromoRequest) (*model.Promo, error)
}

func (m *mockPromoService) Generate(ctx context.Context, req *model.CreatePromoRequest) (*model.Promo, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return &model.Promo{ID: uuid.New(), Code: "abcd2345", MaxUses: *req.MaxUses, RemainingUses: *req.MaxUses}, nil
}

func (m *mockPromoService) CreateFree(ctx context.Context) (*model.Promo, error) {
	if m.createFreeFn != nil {
		return m.createFreeFn(ctx)
	}
	return &model.Promo{ID: uuid.New(), Code: model.FreePromoCode, MaxUses: model.FreePromoUses, RemainingUses: model.FreePromoUses}, nil
}

func (m *mockPromoService) Get(ctx context.Context, code string) (*model.Promo, error) {
	if m.getFn != nil {
		return m.getFn(ctx, code)
	}
	return &model.Promo{ID: uuid.New(), Code: code, MaxUses: 1, RemainingUses: 1}, nil
}

func (m *mockPromoService) ListActive(ctx context.Context) ([]model.Promo, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []model.Promo{}, nil
}

func (m *mockPromoService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockPromoService) Reset(ctx context.Context, id uuid.UUID, req *model.ResetPromoRequest) (*model.Promo, error) {
	if m.resetFn != nil {
		return m.resetFn(ctx, id, req)
	}
	return &model.Promo{ID: id, RemainingUses: *req.RemainingUses}, nil
}
