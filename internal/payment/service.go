package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
)

// Purpose names a paid action.
type Purpose string

const (
	PurposeListing      Purpose = "listing"
	PurposeSubscription Purpose = "subscription"
)

// Charge is what a payer must transfer for a purpose on a network.
type Charge struct {
	Network chain.Network
	Token   string
	// Merchant is the owner address payments go to.
	Merchant string
	// Destination is the merchant's holding account for Token.
	Destination string
	Price       decimal.Decimal
	Amount      uint64
	Decimals    uint8
}

// ServiceConfig configures the payment Service.
type ServiceConfig struct {
	// Prices are human token amounts per purpose.
	Prices    map[Purpose]string
	Merchants map[chain.Network]string
}

// Service combines the registry, builder and verifier with the pricing
// catalog and per-network merchant accounts.
type Service struct {
	registry  *Registry
	builder   *Builder
	verifier  *Verifier
	prices    map[Purpose]decimal.Decimal
	merchants map[chain.Network]string
}

// NewService creates a Service. Every price must be a positive decimal.
func NewService(registry *Registry, verifier *Verifier, cfg ServiceConfig) (*Service, error) {
	prices := make(map[Purpose]decimal.Decimal, len(cfg.Prices))
	for purpose, raw := range cfg.Prices {
		price, err := decimal.NewFromString(raw)
		if err != nil || price.Sign() <= 0 {
			return nil, fmt.Errorf("%w: price for %s is %q", ErrInvalidAmount, purpose, raw)
		}
		prices[purpose] = price
	}
	merchants := make(map[chain.Network]string, len(cfg.Merchants))
	for n, m := range cfg.Merchants {
		merchants[n] = m
	}
	return &Service{
		registry:  registry,
		builder:   NewBuilder(registry),
		verifier:  verifier,
		prices:    prices,
		merchants: merchants,
	}, nil
}

// DefaultNetwork is the network used when a request names none.
func (s *Service) DefaultNetwork() chain.Network {
	return s.registry.Default()
}

// Networks lists the configured networks.
func (s *Service) Networks() []chain.Network {
	return s.registry.Networks()
}

// Family reports the family of network.
func (s *Service) Family(network chain.Network) (chain.Family, error) {
	client, err := s.registry.Client(network)
	if err != nil {
		return "", err
	}
	return client.Family(), nil
}

// NewReference issues a fresh reference on network.
func (s *Service) NewReference(network chain.Network) (chain.Network, string, error) {
	client, err := s.registry.Client(network)
	if err != nil {
		return "", "", err
	}
	ref, err := client.NewReference()
	if err != nil {
		return "", "", err
	}
	return client.Network(), ref, nil
}

// ExpectedCharge resolves price, merchant and destination for purpose on network.
func (s *Service) ExpectedCharge(network chain.Network, purpose Purpose) (*Charge, error) {
	client, err := s.registry.Client(network)
	if err != nil {
		return nil, err
	}
	if client.Family() == chain.FamilyUnverified {
		return nil, fmt.Errorf("%s: %w", client.Network(), chain.ErrUnverifiable)
	}
	price, ok := s.prices[purpose]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
	}
	merchant, ok := s.merchants[client.Network()]
	if !ok || merchant == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoMerchant, client.Network())
	}

	amount, err := DecimalToBaseUnits(price, client.Decimals())
	if err != nil {
		return nil, err
	}
	destination, err := client.DeriveHoldingAccount(merchant, client.Token())
	if err != nil {
		return nil, fmt.Errorf("derive merchant account: %w", err)
	}

	return &Charge{
		Network:     client.Network(),
		Token:       client.Token(),
		Merchant:    merchant,
		Destination: destination,
		Price:       price,
		Amount:      amount,
		Decimals:    client.Decimals(),
	}, nil
}

// Build composes an unsigned transfer. See Builder.Build.
func (s *Service) Build(ctx context.Context, req BuildRequest) (string, error) {
	return s.builder.Build(ctx, req)
}

// CanonicalReference normalizes reference to the form network keys it by.
func (s *Service) CanonicalReference(network chain.Network, reference string) (string, error) {
	client, err := s.registry.Client(network)
	if err != nil {
		return "", err
	}
	return client.CanonicalReference(reference)
}

// VerifyPurpose checks that reference paid the catalog price of purpose to
// the merchant on network.
//
// A mismatch whose transfer equals the price of another purpose is reported
// as StatusOtherPurpose, so submitting a reference under the wrong purpose
// does not spend it.
func (s *Service) VerifyPurpose(ctx context.Context, network chain.Network, reference string, purpose Purpose) (Outcome, error) {
	charge, err := s.ExpectedCharge(network, purpose)
	if err != nil {
		return Outcome{}, err
	}
	out, err := s.verifier.Verify(ctx, charge.Network, reference, charge.Destination, charge.Amount)
	if err != nil || out.Status != StatusMismatch {
		return out, err
	}
	for other := range s.prices {
		if other == purpose {
			continue
		}
		alt, err := s.ExpectedCharge(network, other)
		if err != nil {
			continue
		}
		for _, paid := range out.Paid {
			if paid == alt.Amount {
				return Outcome{Status: StatusOtherPurpose, TxID: out.TxID}, nil
			}
		}
	}
	return out, nil
}
