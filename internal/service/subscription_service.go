package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/internal/payment"
	"github.com/fairyhunter13/listing-payment-gate/pkg/database"
)

const defaultSubscriptionDays = 30

// SubscriptionRepositoryInterface defines the interface for subscription data access.
type SubscriptionRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, s *model.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
	ActiveBySubscriber(ctx context.Context, subscriber string, now time.Time) (*model.Subscription, error)
	LatestExpiry(ctx context.Context, tx database.TxQuerier, subscriber string) (time.Time, error)
}

// SubscriptionService sells time-boxed data access behind the admission gate.
type SubscriptionService struct {
	gate     *Gate
	subs     SubscriptionRepositoryInterface
	duration time.Duration
	now      func() time.Time
}

// NewSubscriptionService creates a SubscriptionService granting days of access per purchase.
func NewSubscriptionService(gate *Gate, subs SubscriptionRepositoryInterface, days int) *SubscriptionService {
	if days <= 0 {
		days = defaultSubscriptionDays
	}
	return &SubscriptionService{
		gate:     gate,
		subs:     subs,
		duration: time.Duration(days) * 24 * time.Hour,
		now:      time.Now,
	}
}

// Purchase grants a subscription once the request is admitted. A purchase made
// while a subscription is running starts when the latest one expires.
// The returned bool is false when the reference was already admitted.
func (s *SubscriptionService) Purchase(ctx context.Context, req *model.PurchaseSubscriptionRequest) (*model.Subscription, bool, error) {
	if req == nil {
		return nil, false, ErrInvalidRequest
	}
	subscriber := strings.TrimSpace(req.Subscriber)
	if subscriber == "" {
		return nil, false, ErrInvalidRequest
	}

	var sub *model.Subscription
	create := func(ctx context.Context, tx database.TxQuerier, id uuid.UUID, reference string) error {
		starts := s.now().UTC()
		latest, err := s.subs.LatestExpiry(ctx, tx, subscriber)
		if err != nil {
			return err
		}
		if latest.After(starts) {
			starts = latest
		}
		created := &model.Subscription{
			ID:               id,
			Subscriber:       subscriber,
			PaymentReference: reference,
			StartsAt:         starts,
			ExpiresAt:        starts.Add(s.duration),
		}
		if err := s.subs.Insert(ctx, tx, created); err != nil {
			return err
		}
		sub = created
		return nil
	}

	var (
		admitted *Admitted
		err      error
	)
	if strings.TrimSpace(req.PromoCode) != "" {
		admitted, err = s.gate.AdmitPromo(ctx, PromoClaim{Code: req.PromoCode, Purpose: payment.PurposeSubscription}, create)
	} else {
		admitted, err = s.gate.AdmitPayment(ctx, PaymentClaim{
			Network:   chain.Network(req.PaymentNetwork),
			Reference: req.Reference,
			Purpose:   payment.PurposeSubscription,
		}, create)
	}
	if err != nil {
		return nil, false, err
	}

	if admitted.Replayed {
		existing, err := s.subs.GetByID(ctx, admitted.Admission.EntityID)
		if err != nil {
			return nil, false, fmt.Errorf("load admitted subscription: %w", err)
		}
		if existing == nil {
			return nil, false, ErrSubscriptionNotFound
		}
		return existing, false, nil
	}
	return sub, true, nil
}

// Active returns the subscription currently running for subscriber.
// Returns ErrSubscriptionNotFound if there is none.
func (s *SubscriptionService) Active(ctx context.Context, subscriber string) (*model.Subscription, error) {
	sub, err := s.subs.ActiveBySubscriber(ctx, strings.TrimSpace(subscriber), s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}
