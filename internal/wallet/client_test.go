package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"metasnap.app/msc/internal/types"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcErrObj struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// newRPCServer runs a minimal JSON-RPC endpoint backed by handle. handle
// returns either a result or an error object.
func newRPCServer(t *testing.T, handle func(method string, params json.RawMessage) (interface{}, *rpcErrObj)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad rpc request: %v", err)
			return
		}
		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": json.RawMessage(req.ID)}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDialEmptyURLFailsBeforeNetwork(t *testing.T) {
	_, err := Dial(context.Background(), "")
	if types.Code(err) != types.ErrProviderUnavailable {
		t.Fatalf("expected PROVIDER_UNAVAILABLE, got %v", err)
	}
}

func TestAccounts(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (interface{}, *rpcErrObj) {
		if method != "eth_accounts" {
			t.Errorf("unexpected method %s", method)
		}
		return []string{addr.Hex()}, nil
	})

	c, err := Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	accounts, err := c.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != addr {
		t.Errorf("Accounts = %v", accounts)
	}
}

func TestRequestAccountsUserRejected(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (interface{}, *rpcErrObj) {
		return nil, &rpcErrObj{Code: 4001, Message: "User rejected the request"}
	})

	c, _ := Dial(context.Background(), srv.URL)
	defer c.Close()

	_, err := c.RequestAccounts(context.Background())
	if types.Code(err) != types.ErrAuthRejected {
		t.Fatalf("expected AUTH_REJECTED, got %v", err)
	}
}

func TestRequestAccountsFallsBackToSilentList(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (interface{}, *rpcErrObj) {
		switch method {
		case "eth_requestAccounts":
			return nil, &rpcErrObj{Code: -32601, Message: "method not found"}
		case "eth_accounts":
			return []string{addr.Hex()}, nil
		}
		t.Errorf("unexpected method %s", method)
		return nil, &rpcErrObj{Code: -32601, Message: "method not found"}
	})

	c, _ := Dial(context.Background(), srv.URL)
	defer c.Close()

	accounts, err := c.RequestAccounts(context.Background())
	if err != nil {
		t.Fatalf("RequestAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != addr {
		t.Errorf("RequestAccounts = %v", accounts)
	}
}

func TestChainID(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (interface{}, *rpcErrObj) {
		return "0x539", nil // 1337, the usual development chain
	})

	c, _ := Dial(context.Background(), srv.URL)
	defer c.Close()

	id, err := c.ChainID(context.Background())
	if err != nil {
		t.Fatalf("ChainID: %v", err)
	}
	if id.Cmp(big.NewInt(1337)) != 0 {
		t.Errorf("ChainID = %v, want 1337", id)
	}
}

func TestCallContractRoundTrip(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	srv := newRPCServer(t, func(method string, params json.RawMessage) (interface{}, *rpcErrObj) {
		if method != "eth_call" {
			t.Errorf("unexpected method %s", method)
		}
		var args []json.RawMessage
		if err := json.Unmarshal(params, &args); err != nil || len(args) != 2 {
			t.Fatalf("bad eth_call params: %v", err)
		}
		var msg struct {
			To   string `json:"to"`
			Data string `json:"data"`
		}
		if err := json.Unmarshal(args[0], &msg); err != nil {
			t.Fatalf("bad call msg: %v", err)
		}
		if !types.SameAccount(msg.To, to.Hex()) {
			t.Errorf("call to %s, want %s", msg.To, to.Hex())
		}
		if msg.Data != hexutil.Encode(data) {
			t.Errorf("call data %s", msg.Data)
		}
		return "0x0001", nil
	})

	c, _ := Dial(context.Background(), srv.URL)
	defer c.Close()

	out, err := c.CallContract(context.Background(), to, data)
	if err != nil {
		t.Fatalf("CallContract: %v", err)
	}
	if len(out) != 2 || out[0] != 0x00 || out[1] != 0x01 {
		t.Errorf("CallContract = %x", out)
	}
}

func TestTransactionReceiptPendingIsNil(t *testing.T) {
	mined := false
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (interface{}, *rpcErrObj) {
		if !mined {
			return nil, nil // JSON null: still pending
		}
		return map[string]interface{}{
			"transactionHash": common.Hash{0x01}.Hex(),
			"status":          "0x1",
			"blockNumber":     "0x10",
		}, nil
	})

	c, _ := Dial(context.Background(), srv.URL)
	defer c.Close()

	r, err := c.TransactionReceipt(context.Background(), common.Hash{0x01})
	if err != nil || r != nil {
		t.Fatalf("pending receipt = %v, %v; want nil, nil", r, err)
	}

	mined = true
	r, err = c.TransactionReceipt(context.Background(), common.Hash{0x01})
	if err != nil {
		t.Fatalf("TransactionReceipt: %v", err)
	}
	if r.Status != 1 || r.BlockNumber != 16 {
		t.Errorf("receipt = %+v", r)
	}
}

func TestKeyedSignsLocally(t *testing.T) {
	const hexKey = "4c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0f"
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("bad test key: %v", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	chainID := big.NewInt(1337)

	var gotRaw string
	srv := newRPCServer(t, func(method string, params json.RawMessage) (interface{}, *rpcErrObj) {
		switch method {
		case "eth_chainId":
			return hexutil.EncodeBig(chainID), nil
		case "eth_getTransactionCount":
			return "0x5", nil
		case "eth_gasPrice":
			return "0x3b9aca00", nil
		case "eth_estimateGas":
			return "0x186a0", nil
		case "eth_sendRawTransaction":
			var args []string
			if err := json.Unmarshal(params, &args); err != nil || len(args) != 1 {
				t.Fatalf("bad sendRawTransaction params: %v", err)
			}
			gotRaw = args[0]
			return common.Hash{0xaa}.Hex(), nil
		}
		t.Errorf("unexpected method %s", method)
		return nil, &rpcErrObj{Code: -32601, Message: "method not found"}
	})

	k, err := DialKeyed(context.Background(), srv.URL, hexKey)
	if err != nil {
		t.Fatalf("DialKeyed: %v", err)
	}
	defer k.Close()

	if k.From() != from {
		t.Fatalf("From = %s, want %s", k.From().Hex(), from.Hex())
	}

	data := []byte{0x01, 0x02}
	hash, err := k.SendTransaction(context.Background(), from, to, data)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if hash != (common.Hash{0xaa}) {
		t.Errorf("hash = %s", hash.Hex())
	}

	// The submitted payload must be a valid transaction signed by our key.
	rawBytes, err := hexutil.Decode(gotRaw)
	if err != nil {
		t.Fatalf("decode raw tx: %v", err)
	}
	var tx ethtypes.Transaction
	if err := tx.UnmarshalBinary(rawBytes); err != nil {
		t.Fatalf("unmarshal raw tx: %v", err)
	}
	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), &tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if sender != from {
		t.Errorf("sender = %s, want %s", sender.Hex(), from.Hex())
	}
	if tx.To() == nil || *tx.To() != to {
		t.Errorf("to = %v, want %s", tx.To(), to.Hex())
	}
	if tx.Nonce() != 5 {
		t.Errorf("nonce = %d, want 5", tx.Nonce())
	}
}

func TestKeyedRefusesForeignSender(t *testing.T) {
	const hexKey = "4c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0f"
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (interface{}, *rpcErrObj) {
		return "0x539", nil
	})

	k, err := DialKeyed(context.Background(), srv.URL, hexKey)
	if err != nil {
		t.Fatalf("DialKeyed: %v", err)
	}
	defer k.Close()

	other := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	_, err = k.SendTransaction(context.Background(), other, other, nil)
	if types.Code(err) != types.ErrLedgerWrite {
		t.Fatalf("expected LEDGER_WRITE for foreign sender, got %v", err)
	}
}

func TestDialKeyedValidatesConfigFirst(t *testing.T) {
	if _, err := DialKeyed(context.Background(), "http://unused", ""); types.Code(err) != types.ErrConfig {
		t.Errorf("empty key: got %v", err)
	}
	if _, err := DialKeyed(context.Background(), "http://unused", "zz"); types.Code(err) != types.ErrConfig {
		t.Errorf("malformed key: got %v", err)
	}
	if _, err := DialKeyed(context.Background(), "",
		"4c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0f"); types.Code(err) != types.ErrConfig {
		t.Errorf("empty url: got %v", err)
	}
}
