package solana

import (
	"fmt"

	sol "github.com/gagliardetto/solana-go"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
)

type transferPlan struct {
	Payer     sol.PublicKey
	Recipient sol.PublicKey
	Mint      sol.PublicKey
	Reference sol.PublicKey
	Amount    uint64
	Decimals  uint8
	Blockhash sol.Hash
}

// composeTransfer assembles and serializes the unsigned payment transaction.
// Signature slots are zero-filled so wallets can sign in place.
func composeTransfer(p transferPlan) ([]byte, error) {
	payerATA, err := deriveATA(p.Payer, p.Mint)
	if err != nil {
		return nil, err
	}
	recipientATA, err := deriveATA(p.Recipient, p.Mint)
	if err != nil {
		return nil, err
	}

	createATA := sol.NewInstruction(
		sol.SPLAssociatedTokenAccountProgramID,
		sol.AccountMetaSlice{
			sol.NewAccountMeta(p.Payer, true, true),
			sol.NewAccountMeta(recipientATA, true, false),
			sol.NewAccountMeta(p.Recipient, false, false),
			sol.NewAccountMeta(p.Mint, false, false),
			sol.NewAccountMeta(sol.SystemProgramID, false, false),
			sol.NewAccountMeta(sol.TokenProgramID, false, false),
		},
		encodeCreateIdempotent(),
	)

	transferData, err := encodeTransferChecked(p.Amount, p.Decimals)
	if err != nil {
		return nil, fmt.Errorf("encode transfer: %w", err)
	}
	transfer := sol.NewInstruction(
		sol.TokenProgramID,
		sol.AccountMetaSlice{
			sol.NewAccountMeta(payerATA, true, false),
			sol.NewAccountMeta(p.Mint, false, false),
			sol.NewAccountMeta(recipientATA, true, false),
			sol.NewAccountMeta(p.Payer, false, true),
			// reference: read-only observer, never signs or moves funds
			sol.NewAccountMeta(p.Reference, false, false),
		},
		transferData,
	)

	tx, err := sol.NewTransaction(
		[]sol.Instruction{createATA, transfer},
		p.Blockhash,
		sol.TransactionPayer(p.Payer),
	)
	if err != nil {
		return nil, fmt.Errorf("assemble transaction: %w", err)
	}
	tx.Signatures = make([]sol.Signature, tx.Message.Header.NumRequiredSignatures)

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	return raw, nil
}

// decodeTransaction extracts SPL token transfers from tx. Instructions of
// other programs, and token instructions that are not transfers, are skipped.
// loaded holds the addresses a versioned transaction pulled from lookup
// tables, writable first; account indexes past the static keys point into it.
func decodeTransaction(id string, tx *sol.Transaction, loaded sol.PublicKeySlice, failed bool) *chain.DecodedTransaction {
	decoded := &chain.DecodedTransaction{ID: id, Failed: failed}
	keys := tx.Message.AccountKeys
	if len(loaded) > 0 {
		keys = append(append(sol.PublicKeySlice{}, keys...), loaded...)
	}

	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) {
			continue
		}
		program := keys[inst.ProgramIDIndex]
		if !program.Equals(sol.TokenProgramID) {
			continue
		}

		accounts := make([]string, 0, len(inst.Accounts))
		inRange := true
		for _, idx := range inst.Accounts {
			if int(idx) >= len(keys) {
				inRange = false
				break
			}
			accounts = append(accounts, keys[idx].String())
		}
		if !inRange {
			continue
		}

		transfer, err := decodeTokenTransfer(inst.Data)
		if err != nil {
			continue
		}

		out := chain.Instruction{
			Program:  program.String(),
			Amount:   transfer.Amount,
			Accounts: accounts,
		}
		if transfer.Checked {
			// source, mint, destination, authority, ...
			if len(accounts) < 4 {
				continue
			}
			out.Source, out.Mint, out.Destination = accounts[0], accounts[1], accounts[2]
		} else {
			// source, destination, authority, ...
			if len(accounts) < 3 {
				continue
			}
			out.Source, out.Destination = accounts[0], accounts[1]
		}
		decoded.Instructions = append(decoded.Instructions, out)
	}
	return decoded
}
