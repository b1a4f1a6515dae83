// Package ledger binds the on-chain contracts behind typed Go methods. Reads
// are plain contract calls; writes are submitted through a Backend and
// awaited to finality before they are treated as applied. One decode function
// per record type keeps the positional tuple layout of the contract interface
// out of the rest of the system.
package ledger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"metasnap.app/msc/internal/types"
)

// Receipt is the subset of a transaction receipt the client cares about.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
}

// Backend is the transport capability a contract binding needs: read calls,
// write submission under some signing identity, and receipt lookup. The
// wallet package provides a node-signed implementation for the client and a
// locally-keyed one for the backend process.
type Backend interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
}

const receiptPollInterval = 500 * time.Millisecond

// waitMined polls for the receipt of txHash until it lands, the context ends,
// or timeout elapses. A receipt with status 0 is a ledger-side revert and is
// reported as a write failure like any other.
func waitMined(ctx context.Context, backend Backend, txHash common.Hash, timeout time.Duration) (*Receipt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, types.WrapError(types.ErrLedgerWrite, "receipt lookup failed", err)
		}
		if receipt != nil {
			if receipt.Status == 0 {
				return nil, types.NewError(types.ErrLedgerWrite, "transaction reverted: "+txHash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, types.WrapError(types.ErrLedgerWrite, "timed out waiting for finality of "+txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
