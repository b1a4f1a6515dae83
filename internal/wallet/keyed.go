package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"metasnap.app/msc/internal/ledger"
	"metasnap.app/msc/internal/types"
)

// Keyed is the backend process's provider: it signs transactions locally with
// a configured private key and submits them raw. The dashboard client never
// uses this path.
type Keyed struct {
	rpc     *rpc.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

// DialKeyed connects to the node endpoint and prepares the local signer. The
// key is validated before any network activity.
func DialKeyed(ctx context.Context, url, hexKey string) (*Keyed, error) {
	if hexKey == "" {
		return nil, types.NewError(types.ErrConfig, "backend signing key is not set")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, types.WrapError(types.ErrConfig, "malformed backend signing key", err)
	}
	if url == "" {
		return nil, types.NewError(types.ErrConfig, "backend RPC endpoint is not set")
	}

	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, types.WrapError(types.ErrProviderUnavailable, "dial backend node", err)
	}

	var chainID hexutil.Big
	if err := c.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		c.Close()
		return nil, types.WrapError(types.ErrProviderUnavailable, "eth_chainId", err)
	}

	return &Keyed{
		rpc:     c,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: (*big.Int)(&chainID),
	}, nil
}

// From returns the address derived from the configured key.
func (k *Keyed) From() common.Address {
	return k.from
}

// Close releases the underlying connection.
func (k *Keyed) Close() {
	k.rpc.Close()
}

// CallContract performs a read-only contract call.
func (k *Keyed) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var result hexutil.Bytes
	err := k.rpc.CallContext(ctx, &result, "eth_call", callArg{To: &to, Data: data}, "latest")
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SendTransaction signs a legacy transaction with the local key and submits
// it raw. The from argument must match the configured key's address.
func (k *Keyed) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	if from != k.from {
		return common.Hash{}, types.NewError(types.ErrLedgerWrite,
			"transaction from "+from.Hex()+" does not match the configured signer "+k.from.Hex())
	}

	var nonce hexutil.Uint64
	if err := k.rpc.CallContext(ctx, &nonce, "eth_getTransactionCount", k.from, "pending"); err != nil {
		return common.Hash{}, err
	}
	var gasPrice hexutil.Big
	if err := k.rpc.CallContext(ctx, &gasPrice, "eth_gasPrice"); err != nil {
		return common.Hash{}, err
	}
	var gas hexutil.Uint64
	if err := k.rpc.CallContext(ctx, &gas, "eth_estimateGas", sendArg{From: k.from, To: &to, Data: data}); err != nil {
		return common.Hash{}, err
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    uint64(nonce),
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      uint64(gas),
		GasPrice: (*big.Int)(&gasPrice),
		Data:     data,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(k.chainID), k.key)
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, err
	}

	var h common.Hash
	if err := k.rpc.CallContext(ctx, &h, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, err
	}
	return h, nil
}

// TransactionReceipt looks up a receipt; nil with nil error means pending.
func (k *Keyed) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ledger.Receipt, error) {
	return fetchReceipt(ctx, k.rpc, txHash)
}
