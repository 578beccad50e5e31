package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/pkg/database"
)

// price is read back as text so no precision is lost through float conversion.
const listingColumns = `id, title, description, price::text, location, owner, payment_reference, created_at`

// ListingRepository provides data access for listings using pgx.
type ListingRepository struct {
	pool PoolInterface
}

// NewListingRepository creates a new ListingRepository with the given pool.
func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

// NewListingRepositoryWithPool creates a new ListingRepository with a custom pool interface.
// This is primarily used for testing.
func NewListingRepositoryWithPool(pool PoolInterface) *ListingRepository {
	return &ListingRepository{pool: pool}
}

// Insert inserts a listing within tx and fills in CreatedAt.
func (r *ListingRepository) Insert(ctx context.Context, tx database.TxQuerier, l *model.Listing) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO listings (id, title, description, price, location, owner, payment_reference)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		 RETURNING created_at`,
		l.ID, l.Title, l.Description, l.Price.String(), l.Location, l.Owner, l.PaymentReference,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByID retrieves a listing.
// Returns nil, nil if the listing is not found.
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	l, err := scanListing(r.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return l, nil
}

// List returns listings newest first.
// On success, returns an empty slice (not nil) when none exist.
func (r *ListingRepository) List(ctx context.Context, limit, offset int) ([]model.Listing, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}
	return listings, nil
}

func scanListing(row pgx.Row) (*model.Listing, error) {
	var (
		l     model.Listing
		price string
	)
	if err := row.Scan(
		&l.ID,
		&l.Title,
		&l.Description,
		&price,
		&l.Location,
		&l.Owner,
		&l.PaymentReference,
		&l.CreatedAt,
	); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	l.Price = p
	return &l, nil
}
