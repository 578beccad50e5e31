package payment

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
)

// BuildRequest describes the transfer a payer wants composed. Amount is in
// human units.
type BuildRequest struct {
	Network   chain.Network
	Payer     string
	Recipient string
	Amount    string
	Reference string
}

// Builder composes unsigned transfer transactions.
type Builder struct {
	registry *Registry
}

// NewBuilder creates a Builder over registry.
func NewBuilder(registry *Registry) *Builder {
	return &Builder{registry: registry}
}

// Build returns the base64 encoding of the unsigned transaction for req.
// Addresses, reference and amount are validated before any chain call.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (string, error) {
	client, err := b.registry.Client(req.Network)
	if err != nil {
		return "", err
	}
	if client.Family() == chain.FamilyUnverified {
		return "", fmt.Errorf("build on %s: %w", client.Network(), chain.ErrUnsupported)
	}

	if err := client.ValidateAddress(req.Payer); err != nil {
		return "", fmt.Errorf("payer: %w", err)
	}
	if err := client.ValidateAddress(req.Recipient); err != nil {
		return "", fmt.Errorf("recipient: %w", err)
	}
	amount, err := ToBaseUnits(req.Amount, client.Decimals())
	if err != nil {
		return "", err
	}

	raw, err := client.ComposeTransfer(ctx, chain.Transfer{
		Payer:     req.Payer,
		Recipient: req.Recipient,
		Amount:    amount,
		Reference: req.Reference,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
