// Package solana implements the chain client for SPL token payments.
//
// A payment is an SPL TransferChecked into the merchant's associated token
// account that lists the payment reference as an extra read-only account, so
// the reference can later be found with getSignaturesForAddress.
package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
)

// rpcAPI is the subset of *rpc.Client used by Client.
type rpcAPI interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetSignaturesForAddressWithOpts(ctx context.Context, account sol.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetTransaction(ctx context.Context, txSig sol.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// Config configures a Solana client.
type Config struct {
	Network  chain.Network
	RPCURL   string
	Mint     string
	Decimals uint8
}

// Client talks to a Solana RPC node.
type Client struct {
	network  chain.Network
	mint     sol.PublicKey
	decimals uint8
	rpc      rpcAPI
	guard    *chain.Guard
}

var _ chain.Client = (*Client)(nil)

// NewClient creates a Solana client for cfg. guard may be nil.
func NewClient(cfg Config, guard *chain.Guard) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("solana %s: rpc url is required", cfg.Network)
	}
	return newClient(cfg, rpc.New(cfg.RPCURL), guard)
}

func newClient(cfg Config, api rpcAPI, guard *chain.Guard) (*Client, error) {
	mint, err := sol.PublicKeyFromBase58(cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("solana %s: invalid mint %q: %w", cfg.Network, cfg.Mint, err)
	}
	network := cfg.Network
	if network == "" {
		network = chain.NetworkSolana
	}
	return &Client{
		network:  network,
		mint:     mint,
		decimals: cfg.Decimals,
		rpc:      api,
		guard:    guard,
	}, nil
}

func (c *Client) Network() chain.Network { return c.network }
func (c *Client) Family() chain.Family   { return chain.FamilyAccount }
func (c *Client) Token() string          { return c.mint.String() }
func (c *Client) Decimals() uint8        { return c.decimals }

// NewReference generates a fresh keypair and returns its public key.
// The private key is dropped; the reference is only ever used as a tag.
func (c *Client) NewReference() (string, error) {
	key, err := sol.NewRandomPrivateKey()
	if err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return key.PublicKey().String(), nil
}

// CanonicalReference round-trips reference through its public key form.
func (c *Client) CanonicalReference(reference string) (string, error) {
	key, err := parseKey(strings.TrimSpace(reference))
	if err != nil {
		return "", err
	}
	return key.String(), nil
}

// ValidateAddress checks that addr is a base58 ed25519 public key.
func (c *Client) ValidateAddress(addr string) error {
	_, err := parseKey(addr)
	return err
}

// DeriveHoldingAccount returns the associated token account of owner for token.
func (c *Client) DeriveHoldingAccount(owner, token string) (string, error) {
	ownerKey, err := parseKey(owner)
	if err != nil {
		return "", err
	}
	mintKey, err := parseKey(token)
	if err != nil {
		return "", err
	}
	ata, err := deriveATA(ownerKey, mintKey)
	if err != nil {
		return "", err
	}
	return ata.String(), nil
}

// LatestActivity returns the newest confirmed signature that touched the reference account.
func (c *Client) LatestActivity(ctx context.Context, reference string) (string, bool, error) {
	ref, err := parseKey(reference)
	if err != nil {
		return "", false, err
	}

	limit := 1
	var sigs []*rpc.TransactionSignature
	err = c.guard.Do(ctx, "get signatures for reference", func(ctx context.Context) error {
		var callErr error
		sigs, callErr = c.rpc.GetSignaturesForAddressWithOpts(ctx, ref, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
		return callErr
	})
	if err != nil {
		return "", false, err
	}
	if len(sigs) == 0 || sigs[0] == nil {
		return "", false, nil
	}
	return sigs[0].Signature.String(), true, nil
}

// FetchTransaction loads a confirmed transaction and decodes its token transfers.
func (c *Client) FetchTransaction(ctx context.Context, txID string) (*chain.DecodedTransaction, error) {
	sig, err := sol.SignatureFromBase58(txID)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction id %q", chain.ErrMalformedAddress, txID)
	}

	maxVersion := uint64(0)
	var out *rpc.GetTransactionResult
	err = c.guard.Do(ctx, "get transaction", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       sol.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if errors.Is(callErr, rpc.ErrNotFound) {
			return chain.ErrNotFound
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if out == nil || out.Transaction == nil {
		return nil, chain.ErrNotFound
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", txID, err)
	}
	var (
		loaded sol.PublicKeySlice
		failed bool
	)
	if out.Meta != nil {
		failed = out.Meta.Err != nil
		loaded = append(loaded, out.Meta.LoadedAddresses.Writable...)
		loaded = append(loaded, out.Meta.LoadedAddresses.ReadOnly...)
	}
	return decodeTransaction(txID, tx, loaded, failed), nil
}

// ComposeTransfer builds the unsigned payment transaction:
// CreateIdempotent(recipient ATA) followed by TransferChecked tagged with the reference.
func (c *Client) ComposeTransfer(ctx context.Context, t chain.Transfer) ([]byte, error) {
	payer, err := parseKey(t.Payer)
	if err != nil {
		return nil, err
	}
	recipient, err := parseKey(t.Recipient)
	if err != nil {
		return nil, err
	}
	reference, err := parseKey(t.Reference)
	if err != nil {
		return nil, err
	}

	var blockhash sol.Hash
	err = c.guard.Do(ctx, "get latest blockhash", func(ctx context.Context) error {
		out, callErr := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if callErr != nil {
			return callErr
		}
		if out == nil || out.Value == nil {
			return errors.New("empty blockhash response")
		}
		blockhash = out.Value.Blockhash
		return nil
	})
	if err != nil {
		return nil, err
	}

	return composeTransfer(transferPlan{
		Payer:     payer,
		Recipient: recipient,
		Mint:      c.mint,
		Reference: reference,
		Amount:    t.Amount,
		Decimals:  c.decimals,
		Blockhash: blockhash,
	})
}

func parseKey(s string) (sol.PublicKey, error) {
	key, err := sol.PublicKeyFromBase58(s)
	if err != nil {
		return sol.PublicKey{}, fmt.Errorf("%w: %q", chain.ErrMalformedAddress, s)
	}
	return key, nil
}

func deriveATA(owner, mint sol.PublicKey) (sol.PublicKey, error) {
	ata, _, err := sol.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return sol.PublicKey{}, fmt.Errorf("derive associated token account: %w", err)
	}
	return ata, nil
}
