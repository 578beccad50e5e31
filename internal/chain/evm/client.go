// Package evm implements the chain client for ERC-20 payments on
// EVM-compatible networks.
//
// The payment reference travels as a trailing 32-byte word on the
// transfer(address,uint256) calldata. Verification walks recent Transfer logs
// into the merchant and matches that trailing word.
package evm

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
)

const (
	defaultGasLimit    = 100_000
	defaultLogLookback = 5_000
)

// ethAPI is the subset of *ethclient.Client used by Client.
type ethAPI interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Config configures an EVM client.
type Config struct {
	Network  chain.Network
	RPCURL   string
	Token    string
	Decimals uint8
	// Merchant is the address whose incoming transfers are scanned for references.
	Merchant    string
	GasLimit    uint64
	LogLookback uint64
}

// Client talks to an EVM JSON-RPC node.
type Client struct {
	network     chain.Network
	token       common.Address
	decimals    uint8
	merchant    common.Address
	gasLimit    uint64
	logLookback uint64
	eth         ethAPI
	guard       *chain.Guard
}

var _ chain.Client = (*Client)(nil)

// NewClient dials cfg.RPCURL and creates an EVM client. guard may be nil.
func NewClient(cfg Config, guard *chain.Guard) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("evm %s: rpc url is required", cfg.Network)
	}
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm %s: failed to connect to rpc: %w", cfg.Network, err)
	}
	return newClient(cfg, eth, guard)
}

func newClient(cfg Config, eth ethAPI, guard *chain.Guard) (*Client, error) {
	token, err := parseAddress(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("evm %s: invalid token contract: %w", cfg.Network, err)
	}
	merchant, err := parseAddress(cfg.Merchant)
	if err != nil {
		return nil, fmt.Errorf("evm %s: invalid merchant: %w", cfg.Network, err)
	}

	c := &Client{
		network:     cfg.Network,
		token:       token,
		decimals:    cfg.Decimals,
		merchant:    merchant,
		gasLimit:    cfg.GasLimit,
		logLookback: cfg.LogLookback,
		eth:         eth,
		guard:       guard,
	}
	if c.network == "" {
		c.network = chain.NetworkBase
	}
	if c.gasLimit == 0 {
		c.gasLimit = defaultGasLimit
	}
	if c.logLookback == 0 {
		c.logLookback = defaultLogLookback
	}
	return c, nil
}

func (c *Client) Network() chain.Network { return c.network }
func (c *Client) Family() chain.Family   { return chain.FamilyEVM }
func (c *Client) Token() string          { return c.token.Hex() }
func (c *Client) Decimals() uint8        { return c.decimals }

// NewReference returns 32 random bytes as 0x-prefixed hex.
func (c *Client) NewReference() (string, error) {
	var ref common.Hash
	if _, err := rand.Read(ref[:]); err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return ref.Hex(), nil
}

// CanonicalReference returns the lower-case 0x-prefixed hex of the 32-byte tag.
func (c *Client) CanonicalReference(reference string) (string, error) {
	ref, err := parseReference(reference)
	if err != nil {
		return "", err
	}
	return ref.Hex(), nil
}

func (c *Client) ValidateAddress(addr string) error {
	_, err := parseAddress(addr)
	return err
}

// DeriveHoldingAccount returns owner itself: ERC-20 balances live in the
// token contract keyed by the owner address.
func (c *Client) DeriveHoldingAccount(owner, token string) (string, error) {
	ownerAddr, err := parseAddress(owner)
	if err != nil {
		return "", err
	}
	if _, err := parseAddress(token); err != nil {
		return "", err
	}
	return ownerAddr.Hex(), nil
}

// LatestActivity scans the lookback window for Transfer logs into the merchant,
// newest first, and returns the first transaction whose calldata carries reference.
func (c *Client) LatestActivity(ctx context.Context, reference string) (string, bool, error) {
	ref, err := parseReference(reference)
	if err != nil {
		return "", false, err
	}

	var head *types.Header
	err = c.guard.Do(ctx, "get head", func(ctx context.Context) error {
		var callErr error
		head, callErr = c.eth.HeaderByNumber(ctx, nil)
		return callErr
	})
	if err != nil {
		return "", false, err
	}
	if head == nil || head.Number == nil {
		return "", false, fmt.Errorf("get head: %w: empty header", chain.ErrTransient)
	}

	to := head.Number.Uint64()
	from := uint64(0)
	if to > c.logLookback {
		from = to - c.logLookback
	}

	var logs []types.Log
	err = c.guard.Do(ctx, "filter transfer logs", func(ctx context.Context) error {
		var callErr error
		logs, callErr = c.eth.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{c.token},
			Topics: [][]common.Hash{
				{transferTopic},
				nil,
				{common.BytesToHash(c.merchant.Bytes())},
			},
		})
		return callErr
	})
	if err != nil {
		return "", false, err
	}

	seen := make(map[common.Hash]struct{}, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		lg := logs[i]
		if lg.Removed {
			continue
		}
		if _, ok := seen[lg.TxHash]; ok {
			continue
		}
		seen[lg.TxHash] = struct{}{}

		tx, err := c.transaction(ctx, lg.TxHash)
		if errors.Is(err, chain.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		transfer, err := decodeTransfer(tx.Data())
		if err != nil || !transfer.Tagged {
			continue
		}
		if transfer.Reference == ref {
			return lg.TxHash.Hex(), true, nil
		}
	}
	return "", false, nil
}

// FetchTransaction loads a mined transaction and its receipt. A receipt status
// other than success marks the transaction failed.
func (c *Client) FetchTransaction(ctx context.Context, txID string) (*chain.DecodedTransaction, error) {
	hash, err := parseReference(txID)
	if err != nil {
		return nil, err
	}

	var receipt *types.Receipt
	err = c.guard.Do(ctx, "get receipt", func(ctx context.Context) error {
		var callErr error
		receipt, callErr = c.eth.TransactionReceipt(ctx, hash)
		if errors.Is(callErr, ethereum.NotFound) {
			return chain.ErrNotFound
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, chain.ErrNotFound
	}

	tx, err := c.transaction(ctx, hash)
	if err != nil {
		return nil, err
	}

	decoded := &chain.DecodedTransaction{
		ID:     hash.Hex(),
		Failed: receipt.Status != types.ReceiptStatusSuccessful,
	}
	if tx.To() == nil {
		return decoded, nil
	}

	transfer, err := decodeTransfer(tx.Data())
	if err != nil {
		return decoded, nil
	}

	var source string
	if sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		source = sender.Hex()
	}

	inst := chain.Instruction{
		Program:     tx.To().Hex(),
		Source:      source,
		Destination: transfer.To.Hex(),
		Mint:        tx.To().Hex(),
		Amount:      transfer.Amount,
	}
	if transfer.Tagged {
		inst.Accounts = []string{transfer.Reference.Hex()}
	}
	decoded.Instructions = append(decoded.Instructions, inst)
	return decoded, nil
}

// ComposeTransfer builds an unsigned EIP-1559 transaction calling
// transfer(recipient, amount) on the token with the reference tag appended.
func (c *Client) ComposeTransfer(ctx context.Context, t chain.Transfer) ([]byte, error) {
	payer, err := parseAddress(t.Payer)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress(t.Recipient)
	if err != nil {
		return nil, err
	}
	ref, err := parseReference(t.Reference)
	if err != nil {
		return nil, err
	}

	var (
		chainID *big.Int
		nonce   uint64
		tip     *big.Int
		head    *types.Header
	)
	err = c.guard.Do(ctx, "prepare transaction", func(ctx context.Context) error {
		var callErr error
		if chainID, callErr = c.eth.ChainID(ctx); callErr != nil {
			return callErr
		}
		if nonce, callErr = c.eth.PendingNonceAt(ctx, payer); callErr != nil {
			return callErr
		}
		if tip, callErr = c.eth.SuggestGasTipCap(ctx); callErr != nil {
			return callErr
		}
		head, callErr = c.eth.HeaderByNumber(ctx, nil)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	baseFee := new(big.Int)
	if head != nil && head.BaseFee != nil {
		baseFee.Set(head.BaseFee)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee, big.NewInt(2)))

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       c.gasLimit,
		To:        &c.token,
		Value:     new(big.Int),
		Data:      encodeTransfer(recipient, t.Amount, ref),
	})

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	return raw, nil
}

func (c *Client) transaction(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	var tx *types.Transaction
	err := c.guard.Do(ctx, "get transaction", func(ctx context.Context) error {
		var (
			pending bool
			callErr error
		)
		tx, pending, callErr = c.eth.TransactionByHash(ctx, hash)
		if errors.Is(callErr, ethereum.NotFound) {
			return chain.ErrNotFound
		}
		if callErr == nil && (pending || tx == nil) {
			return chain.ErrNotFound
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func parseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", chain.ErrMalformedAddress, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", chain.ErrMalformedAddress)
	}
	return addr, nil
}

func parseReference(s string) (common.Hash, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q", chain.ErrMalformedAddress, s)
	}
	return common.BytesToHash(raw), nil
}
