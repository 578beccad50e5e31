// Package chain defines the ledger capabilities the payment engine relies on.
// Each supported ledger family provides one Client implementation.
package chain

import (
	"context"
	"errors"
)

// Network identifies a configured ledger, e.g. "solana" or "base".
type Network string

func (n Network) String() string {
	return string(n)
}

// Family groups networks that share an addressing and verification model.
type Family string

const (
	// FamilyAccount covers account-based token chains with implicit holding accounts (SPL).
	FamilyAccount Family = "account"
	// FamilyEVM covers EVM-compatible chains paying with an ERC-20 token.
	FamilyEVM Family = "evm"
	// FamilyUnverified covers networks accepted for reference generation only.
	FamilyUnverified Family = "unverified"
)

const (
	NetworkSolana       Network = "solana"
	NetworkSolanaDevnet Network = "solana-devnet"
	NetworkBase         Network = "base"
	NetworkBaseSepolia  Network = "base-sepolia"
	NetworkPolygon      Network = "polygon"
	NetworkPolygonAmoy  Network = "polygon-amoy"
)

// FamilyOf classifies a network. Names outside the known account and EVM sets are unverified.
func FamilyOf(n Network) Family {
	switch n {
	case NetworkSolana, NetworkSolanaDevnet:
		return FamilyAccount
	case NetworkBase, NetworkBaseSepolia, NetworkPolygon, NetworkPolygonAmoy:
		return FamilyEVM
	default:
		return FamilyUnverified
	}
}

var (
	// ErrMalformedAddress is returned when an address or reference is not valid for the chain.
	ErrMalformedAddress = errors.New("malformed address")

	// ErrTransient marks a retryable infrastructure fault (RPC timeout, node unavailable, open breaker).
	ErrTransient = errors.New("chain temporarily unavailable")

	// ErrUnverifiable is returned by networks whose payments cannot be verified on the ledger.
	ErrUnverifiable = errors.New("payment network cannot be verified")

	// ErrUnsupported is returned for operations a chain variant does not offer.
	ErrUnsupported = errors.New("operation not supported on this network")
)

// Transfer describes an exact-amount token transfer to compose.
// Amount is already expressed in base units.
type Transfer struct {
	Payer     string
	Recipient string
	Amount    uint64
	Reference string
}

// Instruction is one decoded value-moving instruction of a ledger transaction.
// Source and Destination are holding accounts (token accounts on SPL, owner
// addresses on EVM).
type Instruction struct {
	Program     string
	Source      string
	Destination string
	Mint        string
	Amount      uint64
	Accounts    []string
}

// DecodedTransaction is the structured view of a fetched transaction.
type DecodedTransaction struct {
	ID           string
	Failed       bool
	Instructions []Instruction
}

// Client is the capability set the builder and verifier need from a ledger.
type Client interface {
	Network() Network
	Family() Family
	// Token is the identifier of the single stablecoin accepted on this network.
	Token() string
	Decimals() uint8

	// NewReference returns a fresh, unguessable correlation reference in the chain's native format.
	NewReference() (string, error)
	// CanonicalReference returns the single spelling of reference that admissions are keyed on.
	// Spellings that address the same ledger tag map to the same string.
	CanonicalReference(reference string) (string, error)
	// ValidateAddress reports ErrMalformedAddress for anything that is not a valid account address.
	ValidateAddress(addr string) error
	// DeriveHoldingAccount deterministically derives the account holding token for owner.
	DeriveHoldingAccount(owner, token string) (string, error)

	// LatestActivity returns the most recent transaction tagged with reference.
	// found is false when the ledger has no activity for it yet; that is not an error.
	LatestActivity(ctx context.Context, reference string) (txID string, found bool, err error)
	// FetchTransaction fetches and decodes a transaction.
	FetchTransaction(ctx context.Context, txID string) (*DecodedTransaction, error)
	// ComposeTransfer builds the unsigned wire-format transaction for t.
	ComposeTransfer(ctx context.Context, t Transfer) ([]byte, error)
}
