// Package session tracks the active wallet identity and chain context. It
// polls the provider for the authorized account list and chain id, resets all
// dependent state when either changes, and hands out fresh ledger bindings
// scoped to the current identity. Exactly one session is active at a time;
// bindings are rebuilt on every use and never survive an identity change.
package session

import (
	"context"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"metasnap.app/msc/internal/ledger"
	"metasnap.app/msc/internal/types"
)

// Provider is the wallet capability the watcher needs: account listing with
// and without prompting, and the chain identity.
type Provider interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Watcher owns the session state.
type Watcher struct {
	provider Provider
	backend  ledger.Backend
	contract common.Address
	timeout  time.Duration

	mu         sync.RWMutex
	account    common.Address
	hasAccount bool
	chainID    *big.Int

	updates chan struct{}
	onReset []func()
}

// New constructs a Watcher. provider and backend may be nil when no wallet
// endpoint is configured; every dependent operation then fails with a
// provider error instead of at startup.
func New(provider Provider, backend ledger.Backend, contract common.Address, finalityTimeout time.Duration) *Watcher {
	return &Watcher{
		provider: provider,
		backend:  backend,
		contract: contract,
		timeout:  finalityTimeout,
		updates:  make(chan struct{}, 1),
	}
}

// Updates returns a channel that receives a value whenever the session state
// changes.
func (w *Watcher) Updates() <-chan struct{} {
	return w.updates
}

// OnReset registers a hook run whenever the active identity or chain changes.
// Hooks must not block; they are how dependent caches get invalidated.
func (w *Watcher) OnReset(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReset = append(w.onReset, fn)
}

// Start begins the polling loop. The first poll runs immediately so an
// already-authorized identity is restored without prompting.
func (w *Watcher) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		w.pollOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.pollOnce(ctx)
			}
		}
	}()
}

func (w *Watcher) pollOnce(ctx context.Context) {
	if w.provider == nil {
		return
	}

	chain, err := w.provider.ChainID(ctx)
	if err != nil {
		log.Printf("session: chain id poll failed: %v", err)
		return
	}
	accounts, err := w.provider.Accounts(ctx)
	if err != nil {
		log.Printf("session: account poll failed: %v", err)
		return
	}
	w.apply(chain, accounts)
}

// apply reconciles freshly polled provider state with the session. A chain
// switch discards everything; an identity switch invalidates dependent state
// while keeping the process alive.
func (w *Watcher) apply(chain *big.Int, accounts []common.Address) {
	w.mu.Lock()

	chainChanged := w.chainID != nil && chain != nil && w.chainID.Cmp(chain) != 0
	if w.chainID == nil || chainChanged {
		w.chainID = new(big.Int).Set(chain)
	}

	identityChanged := false
	if len(accounts) == 0 {
		if w.hasAccount {
			w.hasAccount = false
			w.account = common.Address{}
			identityChanged = true
		}
	} else if !w.hasAccount || accounts[0] != w.account {
		w.account = accounts[0]
		w.hasAccount = true
		identityChanged = true
	}

	hooks := w.onReset
	w.mu.Unlock()

	if chainChanged || identityChanged {
		if chainChanged {
			log.Printf("session: chain switched to %s, discarding dependent state", chain.String())
		}
		for _, fn := range hooks {
			fn()
		}
		w.notify()
	}
}

func (w *Watcher) notify() {
	select {
	case w.updates <- struct{}{}:
	default:
	}
}

// Connect performs the explicit, user-initiated authorization request. This
// is the only path that may prompt.
func (w *Watcher) Connect(ctx context.Context) error {
	if w.provider == nil {
		return types.NewError(types.ErrProviderUnavailable,
			"no wallet found; install a wallet or point MSC_RPC_URL at a node that holds your accounts")
	}
	accounts, err := w.provider.RequestAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return types.NewError(types.ErrAuthRejected, "the wallet authorized no identities")
	}
	chain, err := w.provider.ChainID(ctx)
	if err != nil {
		return err
	}
	w.apply(chain, accounts)
	return nil
}

// Disconnect clears the active identity locally. The provider's own
// authorization state is untouched.
func (w *Watcher) Disconnect() {
	w.mu.Lock()
	changed := w.hasAccount
	w.hasAccount = false
	w.account = common.Address{}
	hooks := w.onReset
	w.mu.Unlock()

	if changed {
		for _, fn := range hooks {
			fn()
		}
		w.notify()
	}
}

// Active returns the hex address of the active identity, if any.
func (w *Watcher) Active() (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.hasAccount {
		return "", false
	}
	return w.account.Hex(), true
}

// Chain returns the current chain id as a decimal string, or empty before
// the first successful poll.
func (w *Watcher) Chain() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.chainID == nil {
		return ""
	}
	return w.chainID.String()
}

// Handle builds a fresh ledger binding for the current identity. Callers use
// it for one operation and drop it; holding a handle across an identity
// change would submit writes under the wrong signer.
func (w *Watcher) Handle() (*ledger.Contract, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.contract == (common.Address{}) {
		return nil, types.NewError(types.ErrConfig, "contract address is not set (MSC_CONTRACT_ADDRESS)")
	}
	if w.backend == nil {
		return nil, types.NewError(types.ErrProviderUnavailable, "no wallet provider available")
	}
	if !w.hasAccount {
		return nil, types.NewError(types.ErrProviderUnavailable, "wallet is not connected")
	}
	return ledger.NewContract(w.backend, w.contract, w.account, w.timeout), nil
}
