package session

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"metasnap.app/msc/internal/ledger"
	"metasnap.app/msc/internal/types"
)

// fakeProvider implements Provider with settable state
type fakeProvider struct {
	accounts   []common.Address
	chain      *big.Int
	requestErr error
	requested  bool
}

func (f *fakeProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	return f.accounts, nil
}

func (f *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	f.requested = true
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	return f.accounts, nil
}

func (f *fakeProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chain, nil
}

// noopBackend satisfies ledger.Backend for handle construction
type noopBackend struct{}

func (noopBackend) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (noopBackend) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	return common.Hash{}, errors.New("not implemented")
}

func (noopBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ledger.Receipt, error) {
	return nil, errors.New("not implemented")
}

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	accountA     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	accountB     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func newTestWatcher(p Provider) *Watcher {
	return New(p, noopBackend{}, testContract, time.Second)
}

func TestSilentRestoreAdoptsFirstAccount(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA, accountB}, chain: big.NewInt(1337)}
	w := newTestWatcher(p)

	w.pollOnce(context.Background())

	active, ok := w.Active()
	if !ok || active != accountA.Hex() {
		t.Fatalf("Active = %q, %v; want first reported account", active, ok)
	}
	if p.requested {
		t.Error("silent restore must not prompt for authorization")
	}
}

func TestEmptyAccountListClearsIdentity(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA}, chain: big.NewInt(1337)}
	w := newTestWatcher(p)

	resets := 0
	w.OnReset(func() { resets++ })

	w.pollOnce(context.Background())
	if resets != 1 {
		t.Fatalf("resets after adopt = %d, want 1", resets)
	}

	p.accounts = nil
	w.pollOnce(context.Background())

	if _, ok := w.Active(); ok {
		t.Error("identity should be cleared when the provider reports none")
	}
	if resets != 2 {
		t.Errorf("resets after clear = %d, want 2", resets)
	}

	if _, err := w.Handle(); types.Code(err) != types.ErrProviderUnavailable {
		t.Errorf("Handle without identity: got %v", err)
	}
}

func TestChainSwitchDiscardsState(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA}, chain: big.NewInt(1337)}
	w := newTestWatcher(p)
	w.pollOnce(context.Background())

	resets := 0
	w.OnReset(func() { resets++ })

	p.chain = big.NewInt(11155111)
	w.pollOnce(context.Background())

	if resets != 1 {
		t.Fatalf("chain switch fired %d resets, want 1", resets)
	}
	if w.Chain() != "11155111" {
		t.Errorf("Chain = %q", w.Chain())
	}
}

func TestStaleHandleKeepsOldIdentity(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA}, chain: big.NewInt(1337)}
	w := newTestWatcher(p)
	w.pollOnce(context.Background())

	stale, err := w.Handle()
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	p.accounts = []common.Address{accountB}
	w.pollOnce(context.Background())

	fresh, err := w.Handle()
	if err != nil {
		t.Fatalf("Handle after switch: %v", err)
	}

	// The stale handle is still bound to the old identity: a write through it
	// can never be dispatched under the new identity's signer.
	if stale.Account() != accountA.Hex() {
		t.Errorf("stale handle account = %s, want %s", stale.Account(), accountA.Hex())
	}
	if fresh.Account() != accountB.Hex() {
		t.Errorf("fresh handle account = %s, want %s", fresh.Account(), accountB.Hex())
	}
}

func TestConnectWithoutProvider(t *testing.T) {
	w := New(nil, nil, testContract, time.Second)
	err := w.Connect(context.Background())
	if types.Code(err) != types.ErrProviderUnavailable {
		t.Fatalf("expected PROVIDER_UNAVAILABLE, got %v", err)
	}
}

func TestConnectPropagatesRejection(t *testing.T) {
	p := &fakeProvider{
		chain:      big.NewInt(1337),
		requestErr: types.NewError(types.ErrAuthRejected, "user declined identity access"),
	}
	w := newTestWatcher(p)

	err := w.Connect(context.Background())
	if types.Code(err) != types.ErrAuthRejected {
		t.Fatalf("expected AUTH_REJECTED, got %v", err)
	}
	if _, ok := w.Active(); ok {
		t.Error("no identity should be active after a declined connect")
	}
}

func TestHandleRequiresContractAddress(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA}, chain: big.NewInt(1337)}
	w := New(p, noopBackend{}, common.Address{}, time.Second)
	w.pollOnce(context.Background())

	if _, err := w.Handle(); types.Code(err) != types.ErrConfig {
		t.Fatalf("expected CONFIG for unset address, got %v", err)
	}
}

func TestDisconnectClearsIdentity(t *testing.T) {
	p := &fakeProvider{accounts: []common.Address{accountA}, chain: big.NewInt(1337)}
	w := newTestWatcher(p)
	w.pollOnce(context.Background())

	w.Disconnect()
	if _, ok := w.Active(); ok {
		t.Error("identity still active after Disconnect")
	}
}
