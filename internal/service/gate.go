package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/metrics"
	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/internal/payment"
	"github.com/fairyhunter13/listing-payment-gate/pkg/database"
)

// PromoReferencePrefix marks admission references generated for promo uses.
const PromoReferencePrefix = "promo:"

// AdmissionRepositoryInterface defines the interface for admission data access.
type AdmissionRepositoryInterface interface {
	Get(ctx context.Context, reference string) (*model.Admission, error)
	Insert(ctx context.Context, tx database.TxQuerier, a *model.Admission) error
	MarkRejected(ctx context.Context, a *model.Admission) error
}

// PaymentChecker verifies that a reference paid for a purpose.
// Implemented by *payment.Service.
type PaymentChecker interface {
	DefaultNetwork() chain.Network
	Family(network chain.Network) (chain.Family, error)
	CanonicalReference(network chain.Network, reference string) (string, error)
	VerifyPurpose(ctx context.Context, network chain.Network, reference string, purpose payment.Purpose) (payment.Outcome, error)
}

// CreateFunc creates the gated entity inside the admission transaction.
// entityID is the id the admission row points to; reference is the consumed reference.
type CreateFunc func(ctx context.Context, tx database.TxQuerier, entityID uuid.UUID, reference string) error

// PaymentClaim asks for admission on the strength of an on-chain payment.
type PaymentClaim struct {
	Network   chain.Network
	Reference string
	Purpose   payment.Purpose
}

// PromoClaim asks for admission on the strength of a promo code.
type PromoClaim struct {
	Code    string
	Purpose payment.Purpose
}

// Admitted is the result of a successful admission.
// Replayed is set when the reference had already been admitted and nothing new was created.
type Admitted struct {
	Admission *model.Admission
	Replayed  bool
}

// Gate admits gated actions exactly once per payment reference or promo use.
type Gate struct {
	pool       TxBeginner
	admissions AdmissionRepositoryInterface
	promos     PromoRepositoryInterface
	payments   PaymentChecker
	poller     *Poller
	recorder   metrics.Recorder
}

// NewGate creates a Gate. A nil recorder disables metrics.
func NewGate(pool TxBeginner, admissions AdmissionRepositoryInterface, promos PromoRepositoryInterface,
	payments PaymentChecker, poller *Poller, recorder metrics.Recorder) *Gate {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if poller == nil {
		poller = NewPoller(0, 0)
	}
	return &Gate{
		pool:       pool,
		admissions: admissions,
		promos:     promos,
		payments:   payments,
		poller:     poller,
		recorder:   recorder,
	}
}

// CanonicalPromoCode normalizes user input to the stored form.
func CanonicalPromoCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// AdmitPayment polls for a confirmed payment and then runs create exactly once
// for claim.Reference.
// Returns:
//   - the existing admission with Replayed set if the reference was already admitted
//   - ErrReferenceRejected if the reference was rejected before
//   - ErrReferenceUsed if the reference was admitted for another purpose
//   - chain.ErrUnverifiable for networks without ledger verification
//   - ErrPaymentNotConfirmed when polling ends without a confirmation
//   - ErrPaymentMismatch after recording the reference as rejected
//   - ErrPaymentOtherPurpose when the payment fits another purpose; nothing is recorded
//   - ErrTransactionUsed when the confirming transaction already admitted another reference
//
// References are canonicalized per network first, so every spelling of one
// ledger tag shares a single admission.
func (g *Gate) AdmitPayment(ctx context.Context, claim PaymentClaim, create CreateFunc) (*Admitted, error) {
	start := time.Now()
	network := claim.Network
	if network == "" {
		network = g.payments.DefaultNetwork()
	}

	res, err := g.admitPayment(ctx, network, claim, create)

	labels := map[string]string{metrics.LabelNetwork: network.String()}
	g.recorder.ObserveLatency("admit_payment", time.Since(start), labels)
	labels[metrics.LabelOutcome] = admissionOutcome(res, err)
	g.recorder.IncCounter("admission_payment", labels)

	return res, err
}

func (g *Gate) admitPayment(ctx context.Context, network chain.Network, claim PaymentClaim, create CreateFunc) (*Admitted, error) {
	reference := strings.TrimSpace(claim.Reference)
	if reference == "" || strings.HasPrefix(reference, PromoReferencePrefix) {
		return nil, ErrInvalidRequest
	}

	family, err := g.payments.Family(network)
	if err != nil {
		return nil, err
	}
	if family == chain.FamilyUnverified {
		return nil, fmt.Errorf("%s: %w", network, chain.ErrUnverifiable)
	}
	reference, err = g.payments.CanonicalReference(network, reference)
	if err != nil {
		return nil, err
	}

	existing, err := g.admissions.Get(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("get admission: %w", err)
	}
	if existing != nil {
		return replay(existing, claim.Purpose)
	}

	outcome, err := g.poller.Await(ctx, func(ctx context.Context) (payment.Outcome, error) {
		return g.payments.VerifyPurpose(ctx, network, reference, claim.Purpose)
	})
	if errors.Is(err, ErrPaymentMismatch) {
		g.reject(ctx, network, reference, claim.Purpose, outcome.TxID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	admission := &model.Admission{
		Reference: reference,
		Network:   network.String(),
		Method:    model.MethodPayment,
		Purpose:   string(claim.Purpose),
		Status:    model.AdmissionAdmitted,
		EntityID:  uuid.New(),
		TxID:      outcome.TxID,
	}
	err = g.commit(ctx, admission, create)
	if errors.Is(err, ErrAlreadyAdmitted) {
		// lost the race to a concurrent request for the same reference
		existing, getErr := g.admissions.Get(ctx, reference)
		if getErr != nil {
			return nil, fmt.Errorf("get admission: %w", getErr)
		}
		if existing == nil {
			return nil, err
		}
		return replay(existing, claim.Purpose)
	}
	if errors.Is(err, ErrTransactionUsed) {
		log.Warn().
			Str("reference", reference).
			Str("network", network.String()).
			Str("tx_id", outcome.TxID).
			Msg("transaction already admitted another reference")
		return nil, ErrTransactionUsed
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("reference", reference).
		Str("network", network.String()).
		Str("purpose", string(claim.Purpose)).
		Str("tx_id", outcome.TxID).
		Str("entity_id", admission.EntityID.String()).
		Msg("payment admitted")
	return &Admitted{Admission: admission}, nil
}

// AdmitPromo consumes one use of claim.Code and runs create in the same
// transaction. A failing create returns the use.
// Returns ErrPromoInvalid for unknown codes and ErrPromoExhausted when no uses remain.
func (g *Gate) AdmitPromo(ctx context.Context, claim PromoClaim, create CreateFunc) (*Admitted, error) {
	start := time.Now()
	res, err := g.admitPromo(ctx, claim, create)

	labels := map[string]string{metrics.LabelNetwork: "promo"}
	g.recorder.ObserveLatency("admit_promo", time.Since(start), labels)
	labels[metrics.LabelOutcome] = admissionOutcome(res, err)
	g.recorder.IncCounter("admission_promo", labels)

	return res, err
}

func (g *Gate) admitPromo(ctx context.Context, claim PromoClaim, create CreateFunc) (*Admitted, error) {
	code := CanonicalPromoCode(claim.Code)
	if code == "" {
		return nil, ErrPromoInvalid
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	remaining, err := g.promos.ConsumeUse(ctx, tx, code)
	if err != nil {
		if errors.Is(err, ErrPromoInvalid) || errors.Is(err, ErrPromoExhausted) {
			log.Info().Str("promo_code", code).Err(err).Msg("promo refused")
			return nil, err
		}
		return nil, fmt.Errorf("consume promo: %w", err)
	}

	admission := &model.Admission{
		Reference: PromoReferencePrefix + uuid.NewString(),
		Method:    model.MethodPromo,
		Purpose:   string(claim.Purpose),
		Status:    model.AdmissionAdmitted,
		EntityID:  uuid.New(),
		PromoCode: code,
	}
	if err := g.admissions.Insert(ctx, tx, admission); err != nil {
		return nil, fmt.Errorf("insert admission: %w", err)
	}
	if err := create(ctx, tx, admission.EntityID, admission.Reference); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	log.Info().
		Str("promo_code", code).
		Int("remaining_uses", remaining).
		Str("purpose", string(claim.Purpose)).
		Str("entity_id", admission.EntityID.String()).
		Msg("promo admitted")
	return &Admitted{Admission: admission}, nil
}

func (g *Gate) commit(ctx context.Context, admission *model.Admission, create CreateFunc) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	if err := g.admissions.Insert(ctx, tx, admission); err != nil {
		if errors.Is(err, ErrAlreadyAdmitted) {
			return err
		}
		return fmt.Errorf("insert admission: %w", err)
	}
	if err := create(ctx, tx, admission.EntityID, admission.Reference); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (g *Gate) reject(ctx context.Context, network chain.Network, reference string, purpose payment.Purpose, txID string) {
	err := g.admissions.MarkRejected(ctx, &model.Admission{
		Reference: reference,
		Network:   network.String(),
		Purpose:   string(purpose),
		TxID:      txID,
		Reason:    ErrPaymentMismatch.Error(),
	})
	if err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("failed to record rejected reference")
		return
	}
	log.Warn().
		Str("reference", reference).
		Str("network", network.String()).
		Str("tx_id", txID).
		Msg("payment rejected")
}

func replay(existing *model.Admission, purpose payment.Purpose) (*Admitted, error) {
	if existing.Status == model.AdmissionRejected {
		return nil, ErrReferenceRejected
	}
	if existing.Purpose != string(purpose) {
		return nil, ErrReferenceUsed
	}
	return &Admitted{Admission: existing, Replayed: true}, nil
}

func admissionOutcome(res *Admitted, err error) string {
	switch {
	case err == nil && res.Replayed:
		return "replayed"
	case err == nil:
		return "admitted"
	case errors.Is(err, ErrPaymentNotConfirmed):
		return "not_confirmed"
	case errors.Is(err, ErrPaymentMismatch), errors.Is(err, ErrReferenceRejected):
		return "rejected"
	case errors.Is(err, ErrPaymentOtherPurpose):
		return "other_purpose"
	case errors.Is(err, ErrTransactionUsed):
		return "tx_used"
	case errors.Is(err, ErrPromoInvalid):
		return "invalid"
	case errors.Is(err, ErrPromoExhausted):
		return "exhausted"
	case errors.Is(err, chain.ErrUnverifiable):
		return "unverifiable"
	case errors.Is(err, chain.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
