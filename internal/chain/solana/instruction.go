package solana

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// SPL token program instruction discriminators.
const (
	tokenInstructionTransfer        uint8 = 3
	tokenInstructionTransferChecked uint8 = 12
)

// Associated token account program instruction discriminators.
const (
	ataInstructionCreate           uint8 = 0
	ataInstructionCreateIdempotent uint8 = 1
)

const (
	transferDataLen        = 1 + 8
	transferCheckedDataLen = 1 + 8 + 1
)

var errNotTokenTransfer = errors.New("not a token transfer instruction")

// tokenTransfer is the decoded payload of a Transfer or TransferChecked instruction.
type tokenTransfer struct {
	Checked  bool
	Amount   uint64
	Decimals uint8
}

// encodeTransferChecked returns [12] ++ amount (u64 little-endian) ++ decimals.
func encodeTransferChecked(amount uint64, decimals uint8) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	if err := enc.WriteUint8(tokenInstructionTransferChecked); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(amount, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(decimals); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeCreateIdempotent returns the single-byte CreateIdempotent payload.
func encodeCreateIdempotent() []byte {
	return []byte{ataInstructionCreateIdempotent}
}

// decodeTokenTransfer decodes Transfer and TransferChecked payloads.
// Any other token instruction yields errNotTokenTransfer.
func decodeTokenTransfer(data []byte) (*tokenTransfer, error) {
	if len(data) == 0 {
		return nil, errNotTokenTransfer
	}
	dec := bin.NewBinDecoder(data)
	kind, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}

	switch kind {
	case tokenInstructionTransfer:
		if len(data) != transferDataLen {
			return nil, fmt.Errorf("transfer data length %d, want %d", len(data), transferDataLen)
		}
		amount, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return nil, fmt.Errorf("read transfer amount: %w", err)
		}
		return &tokenTransfer{Amount: amount}, nil
	case tokenInstructionTransferChecked:
		if len(data) != transferCheckedDataLen {
			return nil, fmt.Errorf("transfer checked data length %d, want %d", len(data), transferCheckedDataLen)
		}
		amount, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return nil, fmt.Errorf("read transfer checked amount: %w", err)
		}
		decimals, err := dec.ReadUint8()
		if err != nil {
			return nil, fmt.Errorf("read transfer checked decimals: %w", err)
		}
		return &tokenTransfer{Checked: true, Amount: amount, Decimals: decimals}, nil
	default:
		return nil, errNotTokenTransfer
	}
}
