package payment

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/metrics"
)

// Status classifies a verification attempt.
type Status string

const (
	// StatusPending means nothing matching was found yet. Keep polling.
	StatusPending Status = "pending"
	// StatusConfirmed means an exact-amount transfer to the destination was found.
	StatusConfirmed Status = "confirmed"
	// StatusMismatch means the reference was paid with the wrong amount or to
	// the wrong account. The reference is spent and must not be retried.
	StatusMismatch Status = "mismatch"
	// StatusOtherPurpose means the reference paid the catalog price of a
	// different purpose. The reference stays usable for that purpose.
	StatusOtherPurpose Status = "other_purpose"
)

// Outcome is the derived result of one verification.
// Paid lists the base-unit amounts the reference's transaction moved into the
// destination; it is only set for StatusMismatch.
type Outcome struct {
	Status    Status
	Confirmed bool
	TxID      string
	Paid      []uint64
}

// Verifier checks ledger state for a payment tagged with a reference.
// It has no side effects and is safe for concurrent use.
type Verifier struct {
	registry *Registry
	recorder metrics.Recorder
}

// NewVerifier creates a Verifier. A nil recorder disables metrics.
func NewVerifier(registry *Registry, recorder metrics.Recorder) *Verifier {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Verifier{registry: registry, recorder: recorder}
}

// Verify looks up the latest activity for reference and reports whether it
// transferred exactly amount base units into destination.
//
// No activity yet is StatusPending, not an error. Errors are reserved for
// malformed input (chain.ErrMalformedAddress), infrastructure faults
// (chain.ErrTransient) and unverifiable networks (chain.ErrUnverifiable).
func (v *Verifier) Verify(ctx context.Context, network chain.Network, reference, destination string, amount uint64) (Outcome, error) {
	client, err := v.registry.Client(network)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	out, err := v.verify(ctx, client, reference, destination, amount)

	labels := map[string]string{metrics.LabelNetwork: client.Network().String()}
	v.recorder.ObserveLatency("verify", time.Since(start), labels)
	labels[metrics.LabelOutcome] = outcomeLabel(out, err)
	v.recorder.IncCounter("verify", labels)

	if err != nil {
		return Outcome{}, err
	}

	log.Debug().
		Str("network", client.Network().String()).
		Str("reference", reference).
		Str("status", string(out.Status)).
		Str("tx_id", out.TxID).
		Msg("payment verification")
	return out, nil
}

func (v *Verifier) verify(ctx context.Context, client chain.Client, reference, destination string, amount uint64) (Outcome, error) {
	if client.Family() == chain.FamilyUnverified {
		return Outcome{}, chain.ErrUnverifiable
	}

	reference, err := client.CanonicalReference(reference)
	if err != nil {
		return Outcome{}, err
	}

	txID, found, err := client.LatestActivity(ctx, reference)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		return Outcome{Status: StatusPending}, nil
	}

	decoded, err := client.FetchTransaction(ctx, txID)
	if errors.Is(err, chain.ErrNotFound) {
		// indexed by reference but not yet retrievable at this commitment
		return Outcome{Status: StatusPending}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if decoded.Failed || len(decoded.Instructions) == 0 {
		return Outcome{Status: StatusPending}, nil
	}

	// Only instructions that carry the reference count, so one transfer
	// cannot pay for several references.
	token := client.Token()
	var paid []uint64
	for _, inst := range decoded.Instructions {
		if inst.Destination != destination || !tagged(inst, reference) {
			continue
		}
		if inst.Mint != "" && inst.Mint != token {
			continue
		}
		if inst.Amount == amount {
			return Outcome{Status: StatusConfirmed, Confirmed: true, TxID: decoded.ID}, nil
		}
		paid = append(paid, inst.Amount)
	}
	return Outcome{Status: StatusMismatch, TxID: decoded.ID, Paid: paid}, nil
}

func tagged(inst chain.Instruction, reference string) bool {
	for _, acc := range inst.Accounts {
		if acc == reference {
			return true
		}
	}
	return false
}

func outcomeLabel(out Outcome, err error) string {
	switch {
	case errors.Is(err, chain.ErrTransient):
		return "transient"
	case errors.Is(err, chain.ErrUnverifiable):
		return "unverifiable"
	case err != nil:
		return "error"
	default:
		return string(out.Status)
	}
}
