package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/internal/service"
	"github.com/fairyhunter13/listing-payment-gate/pkg/database"
)

const uniqueViolation = "23505"

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const promoColumns = `id, code, max_uses, remaining_uses, created_at, updated_at`

// PromoRepository provides data access for promo codes using pgx.
type PromoRepository struct {
	pool PoolInterface
}

// NewPromoRepository creates a new PromoRepository with the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// NewPromoRepositoryWithPool creates a new PromoRepository with a custom pool interface.
// This is primarily used for testing.
func NewPromoRepositoryWithPool(pool PoolInterface) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// Insert inserts a new promo code with all of its uses remaining.
// Returns service.ErrPromoExists if the code is taken.
func (r *PromoRepository) Insert(ctx context.Context, promo *model.Promo) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO promo_codes (id, code, max_uses, remaining_uses) VALUES ($1, $2, $3, $3)
		 RETURNING `+promoColumns,
		promo.ID, promo.Code, promo.MaxUses).Scan(promoDest(promo)...)
	if err != nil {
		if isUniqueViolation(err) {
			return service.ErrPromoExists
		}
		return fmt.Errorf("insert promo: %w", err)
	}
	return nil
}

// Upsert creates the code or, if it exists, restores its allowance to MaxUses.
func (r *PromoRepository) Upsert(ctx context.Context, promo *model.Promo) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO promo_codes (id, code, max_uses, remaining_uses) VALUES ($1, $2, $3, $3)
		 ON CONFLICT (code) DO UPDATE
		 SET max_uses = EXCLUDED.max_uses, remaining_uses = EXCLUDED.remaining_uses, updated_at = NOW()
		 RETURNING `+promoColumns,
		promo.ID, promo.Code, promo.MaxUses).Scan(promoDest(promo)...)
	if err != nil {
		return fmt.Errorf("upsert promo %s: %w", promo.Code, err)
	}
	return nil
}

// GetByCode retrieves a promo code.
// Returns nil, nil if the code is not found (service layer handles this).
func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*model.Promo, error) {
	var promo model.Promo
	err := r.pool.QueryRow(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code).Scan(promoDest(&promo)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get promo by code %s: %w", code, err)
	}
	return &promo, nil
}

// ListActive returns codes with uses left, newest first.
// On success, returns an empty slice (not nil) when none exist.
func (r *PromoRepository) ListActive(ctx context.Context) ([]model.Promo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE remaining_uses > 0 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active promos: %w", err)
	}
	defer rows.Close()

	promos := []model.Promo{}
	for rows.Next() {
		var promo model.Promo
		if err := rows.Scan(promoDest(&promo)...); err != nil {
			return nil, fmt.Errorf("scan promo: %w", err)
		}
		promos = append(promos, promo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate promo rows: %w", err)
	}
	return promos, nil
}

// Delete removes a promo code.
// Returns service.ErrPromoNotFound if no row matched.
func (r *PromoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promo %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrPromoNotFound
	}
	return nil
}

// Reset sets the remaining uses of a code. A value above max_uses raises
// max_uses with it.
// Returns service.ErrPromoNotFound if no row matched.
func (r *PromoRepository) Reset(ctx context.Context, id uuid.UUID, remaining int) (*model.Promo, error) {
	var promo model.Promo
	err := r.pool.QueryRow(ctx,
		`UPDATE promo_codes
		 SET remaining_uses = $2, max_uses = GREATEST(max_uses, $2), updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+promoColumns,
		id, remaining).Scan(promoDest(&promo)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrPromoNotFound
		}
		return nil, fmt.Errorf("reset promo %s: %w", id, err)
	}
	return &promo, nil
}

// ConsumeUse atomically takes one use of code within tx and returns the uses
// left. The conditional UPDATE serializes concurrent callers on the row lock,
// so remaining_uses never goes below zero.
// Returns service.ErrPromoInvalid for an unknown code and
// service.ErrPromoExhausted when no uses remain.
func (r *PromoRepository) ConsumeUse(ctx context.Context, tx database.TxQuerier, code string) (int, error) {
	var remaining int
	err := tx.QueryRow(ctx,
		`UPDATE promo_codes SET remaining_uses = remaining_uses - 1, updated_at = NOW()
		 WHERE code = $1 AND remaining_uses > 0
		 RETURNING remaining_uses`, code).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("consume promo %s: %w", code, err)
	}

	exists, err := r.Exists(ctx, tx, code)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, service.ErrPromoInvalid
	}
	return 0, service.ErrPromoExhausted
}

// Exists reports whether code is configured, regardless of remaining uses.
func (r *PromoRepository) Exists(ctx context.Context, tx database.TxQuerier, code string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM promo_codes WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check promo %s: %w", code, err)
	}
	return exists, nil
}

func promoDest(p *model.Promo) []any {
	return []any{&p.ID, &p.Code, &p.MaxUses, &p.RemainingUses, &p.CreatedAt, &p.UpdatedAt}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
