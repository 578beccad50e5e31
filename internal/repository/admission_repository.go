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

// admissionTxIndex is the unique index allowing one admission per transaction.
const admissionTxIndex = "uniq_admissions_network_tx"

const admissionColumns = `reference, network, method, purpose, status, entity_id, tx_id, promo_code, reason, created_at`

// AdmissionRepository records which references have been consumed.
type AdmissionRepository struct {
	pool PoolInterface
}

// NewAdmissionRepository creates a new AdmissionRepository with the given pool.
func NewAdmissionRepository(pool *pgxpool.Pool) *AdmissionRepository {
	return &AdmissionRepository{pool: pool}
}

// NewAdmissionRepositoryWithPool creates a new AdmissionRepository with a custom pool interface.
// This is primarily used for testing.
func NewAdmissionRepositoryWithPool(pool PoolInterface) *AdmissionRepository {
	return &AdmissionRepository{pool: pool}
}

// Get retrieves the admission for reference.
// Returns nil, nil if the reference was never admitted or rejected.
func (r *AdmissionRepository) Get(ctx context.Context, reference string) (*model.Admission, error) {
	var (
		a        model.Admission
		entityID uuid.NullUUID
	)
	err := r.pool.QueryRow(ctx,
		`SELECT `+admissionColumns+` FROM admissions WHERE reference = $1`, reference).Scan(
		&a.Reference,
		&a.Network,
		&a.Method,
		&a.Purpose,
		&a.Status,
		&entityID,
		&a.TxID,
		&a.PromoCode,
		&a.Reason,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admission %s: %w", reference, err)
	}
	if entityID.Valid {
		a.EntityID = entityID.UUID
	}
	return &a, nil
}

// Insert records an admitted reference within tx.
// Returns service.ErrAlreadyAdmitted if the reference already has a row and
// service.ErrTransactionUsed if its transaction already admitted another reference.
func (r *AdmissionRepository) Insert(ctx context.Context, tx database.TxQuerier, a *model.Admission) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO admissions (reference, network, method, purpose, status, entity_id, tx_id, promo_code, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.Reference, a.Network, string(a.Method), a.Purpose, string(a.Status),
		nullableID(a.EntityID), a.TxID, a.PromoCode, a.Reason)
	if err != nil {
		if isUniqueViolation(err) {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.ConstraintName == admissionTxIndex {
				return service.ErrTransactionUsed
			}
			return service.ErrAlreadyAdmitted
		}
		return fmt.Errorf("insert admission: %w", err)
	}
	return nil
}

// MarkRejected records a rejected reference so it cannot be retried.
// A reference that already has a row keeps it.
func (r *AdmissionRepository) MarkRejected(ctx context.Context, a *model.Admission) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO admissions (reference, network, method, purpose, status, tx_id, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (reference) DO NOTHING`,
		a.Reference, a.Network, string(model.MethodPayment), a.Purpose,
		string(model.AdmissionRejected), a.TxID, a.Reason)
	if err != nil {
		return fmt.Errorf("mark admission %s rejected: %w", a.Reference, err)
	}
	return nil
}

func nullableID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
