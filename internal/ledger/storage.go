package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"metasnap.app/msc/internal/types"
)

// Storage binds the SimpleStorage demo contract used by the toy backend. It
// shares nothing with the social contract beyond the transport.
type Storage struct {
	backend Backend
	address common.Address
	from    common.Address
	timeout time.Duration
}

// NewStorage binds the SimpleStorage contract at address for the identity from.
func NewStorage(backend Backend, address, from common.Address, finalityTimeout time.Duration) *Storage {
	return &Storage{backend: backend, address: address, from: from, timeout: finalityTimeout}
}

// Value reads the stored integer.
func (s *Storage) Value(ctx context.Context) (uint64, error) {
	data, err := simpleStorage.Pack("value")
	if err != nil {
		return 0, types.WrapError(types.ErrLedgerRead, "encode value", err)
	}
	raw, err := s.backend.CallContract(ctx, s.address, data)
	if err != nil {
		return 0, types.WrapError(types.ErrLedgerRead, "value call failed", err)
	}
	out, err := simpleStorage.Unpack("value", raw)
	if err != nil {
		return 0, types.WrapError(types.ErrLedgerRead, "decode value result", err)
	}
	return decodeUint(out, 0, "value")
}

// SetValue writes the stored integer and waits for finality.
func (s *Storage) SetValue(ctx context.Context, v uint64) error {
	data, err := simpleStorage.Pack("setValue", new(big.Int).SetUint64(v))
	if err != nil {
		return types.WrapError(types.ErrLedgerWrite, "encode setValue", err)
	}
	txHash, err := s.backend.SendTransaction(ctx, s.from, s.address, data)
	if err != nil {
		return types.WrapError(types.ErrLedgerWrite, "setValue submission failed", err)
	}
	_, err = waitMined(ctx, s.backend, txHash, s.timeout)
	return err
}
