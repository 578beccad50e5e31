package evm

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	wordSize = 32

	// selector + to + amount
	plainTransferLen = 4 + 2*wordSize
	// selector + to + amount + reference tag
	taggedTransferLen = plainTransferLen + wordSize
)

var (
	// transferSelector is keccak256("transfer(address,uint256)")[:4].
	transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

	// transferTopic is keccak256("Transfer(address,address,uint256)").
	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

	errNotTransfer    = errors.New("calldata is not an erc20 transfer")
	errAmountOverflow = errors.New("transfer amount exceeds uint64")
)

type erc20Transfer struct {
	To        common.Address
	Amount    uint64
	Reference common.Hash
	Tagged    bool
}

// encodeTransfer builds transfer(to, amount) calldata with the reference
// appended as a trailing word. The token contract ignores the extra word.
func encodeTransfer(to common.Address, amount uint64, reference common.Hash) []byte {
	data := make([]byte, 0, taggedTransferLen)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), wordSize)...)
	data = append(data, common.LeftPadBytes(new(big.Int).SetUint64(amount).Bytes(), wordSize)...)
	data = append(data, reference.Bytes()...)
	return data
}

// decodeTransfer parses transfer calldata, with or without a reference tag.
func decodeTransfer(data []byte) (*erc20Transfer, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], transferSelector) {
		return nil, errNotTransfer
	}
	if len(data) != plainTransferLen && len(data) != taggedTransferLen {
		return nil, fmt.Errorf("%w: unexpected length %d", errNotTransfer, len(data))
	}

	toWord := data[4 : 4+wordSize]
	for _, b := range toWord[:wordSize-common.AddressLength] {
		if b != 0 {
			return nil, fmt.Errorf("%w: dirty address word", errNotTransfer)
		}
	}

	amount := new(big.Int).SetBytes(data[4+wordSize : 4+2*wordSize])
	if !amount.IsUint64() {
		return nil, errAmountOverflow
	}

	out := &erc20Transfer{
		To:     common.BytesToAddress(toWord),
		Amount: amount.Uint64(),
	}
	if len(data) == taggedTransferLen {
		out.Reference = common.BytesToHash(data[plainTransferLen:])
		out.Tagged = true
	}
	return out, nil
}
