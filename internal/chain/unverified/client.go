// Package unverified provides the chain client for networks the engine can
// issue references for but cannot verify on the ledger. It never reports a
// payment as found.
package unverified

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
)

const referenceBytes = 32

// Client is the chain.Client for an unverifiable network.
type Client struct {
	network chain.Network
}

var _ chain.Client = (*Client)(nil)

// NewClient creates an unverified client for network.
func NewClient(network chain.Network) (*Client, error) {
	if strings.TrimSpace(network.String()) == "" {
		return nil, fmt.Errorf("unverified network name is required")
	}
	return &Client{network: network}, nil
}

func (c *Client) Network() chain.Network { return c.network }
func (c *Client) Family() chain.Family   { return chain.FamilyUnverified }
func (c *Client) Token() string          { return "" }
func (c *Client) Decimals() uint8        { return 0 }

// NewReference returns 32 random bytes as hex.
func (c *Client) NewReference() (string, error) {
	buf := make([]byte, referenceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CanonicalReference lower-cases a hex reference, dropping any 0x prefix.
func (c *Client) CanonicalReference(reference string) (string, error) {
	ref := strings.ToLower(strings.TrimSpace(reference))
	ref = strings.TrimPrefix(ref, "0x")
	raw, err := hex.DecodeString(ref)
	if err != nil || len(raw) != referenceBytes {
		return "", fmt.Errorf("%w: %q", chain.ErrMalformedAddress, reference)
	}
	return ref, nil
}

// ValidateAddress accepts any non-blank address; the format is not known.
func (c *Client) ValidateAddress(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("%w: empty address", chain.ErrMalformedAddress)
	}
	return nil
}

func (c *Client) DeriveHoldingAccount(owner, token string) (string, error) {
	return "", c.unsupported("derive holding account")
}

func (c *Client) LatestActivity(ctx context.Context, reference string) (string, bool, error) {
	return "", false, fmt.Errorf("%s: %w", c.network, chain.ErrUnverifiable)
}

func (c *Client) FetchTransaction(ctx context.Context, txID string) (*chain.DecodedTransaction, error) {
	return nil, fmt.Errorf("%s: %w", c.network, chain.ErrUnverifiable)
}

func (c *Client) ComposeTransfer(ctx context.Context, t chain.Transfer) ([]byte, error) {
	return nil, c.unsupported("compose transfer")
}

func (c *Client) unsupported(op string) error {
	return fmt.Errorf("%s on %s: %w", op, c.network, chain.ErrUnsupported)
}
