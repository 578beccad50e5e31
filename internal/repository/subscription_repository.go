package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/pkg/database"
)

const subscriptionColumns = `id, subscriber, payment_reference, starts_at, expires_at, created_at`

// SubscriptionRepository provides data access for subscriptions using pgx.
type SubscriptionRepository struct {
	pool PoolInterface
}

// NewSubscriptionRepository creates a new SubscriptionRepository with the given pool.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// NewSubscriptionRepositoryWithPool creates a new SubscriptionRepository with a custom pool interface.
// This is primarily used for testing.
func NewSubscriptionRepositoryWithPool(pool PoolInterface) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Insert inserts a subscription within tx and fills in CreatedAt.
func (r *SubscriptionRepository) Insert(ctx context.Context, tx database.TxQuerier, s *model.Subscription) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO subscriptions (id, subscriber, payment_reference, starts_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		s.ID, s.Subscriber, s.PaymentReference, s.StartsAt, s.ExpiresAt,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription.
// Returns nil, nil if it is not found.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	s, err := scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return s, nil
}

// ActiveBySubscriber returns the subscription with the latest expiry that is
// still running at now.
// Returns nil, nil if the subscriber has none.
func (r *SubscriptionRepository) ActiveBySubscriber(ctx context.Context, subscriber string, now time.Time) (*model.Subscription, error) {
	s, err := scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE subscriber = $1 AND starts_at <= $2 AND expires_at > $2
		 ORDER BY expires_at DESC LIMIT 1`,
		subscriber, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active subscription for %s: %w", subscriber, err)
	}
	return s, nil
}

// LatestExpiry returns when the subscriber's furthest subscription ends, or
// the zero time if there is none.
func (r *SubscriptionRepository) LatestExpiry(ctx context.Context, tx database.TxQuerier, subscriber string) (time.Time, error) {
	var expires *time.Time
	err := tx.QueryRow(ctx,
		`SELECT MAX(expires_at) FROM subscriptions WHERE subscriber = $1`, subscriber).Scan(&expires)
	if err != nil {
		return time.Time{}, fmt.Errorf("get latest expiry for %s: %w", subscriber, err)
	}
	if expires == nil {
		return time.Time{}, nil
	}
	return *expires, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	if err := row.Scan(
		&s.ID,
		&s.Subscriber,
		&s.PaymentReference,
		&s.StartsAt,
		&s.ExpiresAt,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
