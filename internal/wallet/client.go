// Package wallet implements the provider capability the client uses to reach
// a signing identity. The shipped Client talks JSON-RPC to a node that holds
// the user's accounts (the development target keeps them unlocked); key
// material never enters this process. Keyed is the backend-side variant that
// signs locally with a configured private key.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"metasnap.app/msc/internal/ledger"
	"metasnap.app/msc/internal/types"
)

// EIP-1193 user rejection, and the standard JSON-RPC "method not found".
const (
	codeUserRejected   = 4001
	codeMethodNotFound = -32601
)

// Client is the node-backed wallet provider.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the wallet provider endpoint. An empty URL means no
// provider is present at all, reported before any network activity.
func Dial(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, types.NewError(types.ErrProviderUnavailable,
			"no wallet provider configured; set MSC_RPC_URL to your node endpoint")
	}
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, types.WrapError(types.ErrProviderUnavailable, "dial wallet provider", err)
	}
	return &Client{rpc: c}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Accounts returns the already-authorized identities without prompting.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	if err := c.rpc.CallContext(ctx, &out, "eth_accounts"); err != nil {
		return nil, types.WrapError(types.ErrProviderUnavailable, "eth_accounts", err)
	}
	return out, nil
}

// RequestAccounts asks the provider for authorization, prompting the user
// where the provider supports it. Providers without the prompting method fall
// back to the silent account list.
func (c *Client) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	err := c.rpc.CallContext(ctx, &out, "eth_requestAccounts")
	if err == nil {
		return out, nil
	}
	if rpcErrorCode(err) == codeUserRejected {
		return nil, types.WrapError(types.ErrAuthRejected, "user declined identity access", err)
	}
	if rpcErrorCode(err) == codeMethodNotFound {
		return c.Accounts(ctx)
	}
	return nil, types.WrapError(types.ErrProviderUnavailable, "eth_requestAccounts", err)
}

// ChainID returns the provider's current chain identity.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := c.rpc.CallContext(ctx, &result, "eth_chainId"); err != nil {
		return nil, types.WrapError(types.ErrProviderUnavailable, "eth_chainId", err)
	}
	return (*big.Int)(&result), nil
}

type callArg struct {
	To   *common.Address `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

type sendArg struct {
	From common.Address  `json:"from"`
	To   *common.Address `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

// CallContract performs a read-only contract call.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var result hexutil.Bytes
	err := c.rpc.CallContext(ctx, &result, "eth_call", callArg{To: &to, Data: data}, "latest")
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SendTransaction submits a write under the node-held account from. The node
// performs the signing; gas is left to its estimation.
func (c *Client) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	var h common.Hash
	err := c.rpc.CallContext(ctx, &h, "eth_sendTransaction", sendArg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, err
	}
	return h, nil
}

// TransactionReceipt looks up a receipt. A nil receipt with nil error means
// the transaction is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ledger.Receipt, error) {
	return fetchReceipt(ctx, c.rpc, txHash)
}

type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	Status          hexutil.Uint64 `json:"status"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
}

func fetchReceipt(ctx context.Context, c *rpc.Client, txHash common.Hash) (*ledger.Receipt, error) {
	var r *rpcReceipt
	if err := c.CallContext(ctx, &r, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	receipt := &ledger.Receipt{
		TxHash: r.TransactionHash,
		Status: uint64(r.Status),
	}
	if r.BlockNumber != nil {
		receipt.BlockNumber = r.BlockNumber.ToInt().Uint64()
	}
	return receipt, nil
}

func rpcErrorCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}
