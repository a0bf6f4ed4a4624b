package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/ratelimit"

	"crowdfund.io/crowdfund-dapp/internal/chains"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

// Backend is the read/submit side of the chain a signer talks to. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// BackendDialer opens a Backend for chain.
type BackendDialer func(ctx context.Context, chain *chains.Blockchain) (Backend, error)

// DialBackend connects to the first RPC URL of chain.
func DialBackend(ctx context.Context, chain *chains.Blockchain) (Backend, error) {
	if len(chain.RPCURLs) == 0 {
		return nil, errors.Mark(errors.Errorf("chain %s has no rpc url", chain.Name), ErrNetwork)
	}
	client, err := ethclient.DialContext(ctx, chain.RPCURLs[0])
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "dial %s", chain.RPCURLs[0]), ErrNetwork)
	}
	log.Debugf("dialed %s rpc %s", chain.Name, chain.RPCURLs[0])
	return client, nil
}

// Throttle paces every round trip to b at perSecond requests per second. A
// non-positive rate returns b unchanged.
func Throttle(b Backend, perSecond int) Backend {
	if perSecond <= 0 {
		return b
	}
	return &throttledBackend{Backend: b, limiter: ratelimit.New(perSecond)}
}

type throttledBackend struct {
	Backend
	limiter ratelimit.Limiter
}

func (t *throttledBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	t.limiter.Take()
	return t.Backend.CodeAt(ctx, account, blockNumber)
}

func (t *throttledBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	t.limiter.Take()
	return t.Backend.CallContract(ctx, call, blockNumber)
}

func (t *throttledBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	t.limiter.Take()
	return t.Backend.HeaderByNumber(ctx, number)
}

func (t *throttledBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	t.limiter.Take()
	return t.Backend.PendingCodeAt(ctx, account)
}

func (t *throttledBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	t.limiter.Take()
	return t.Backend.PendingNonceAt(ctx, account)
}

func (t *throttledBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	t.limiter.Take()
	return t.Backend.SuggestGasPrice(ctx)
}

func (t *throttledBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	t.limiter.Take()
	return t.Backend.SuggestGasTipCap(ctx)
}

func (t *throttledBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	t.limiter.Take()
	return t.Backend.EstimateGas(ctx, call)
}

func (t *throttledBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	t.limiter.Take()
	return t.Backend.SendTransaction(ctx, tx)
}

func (t *throttledBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	t.limiter.Take()
	return t.Backend.TransactionReceipt(ctx, txHash)
}

func closeBackend(b Backend) {
	if tb, ok := b.(*throttledBackend); ok {
		b = tb.Backend
	}
	if c, ok := b.(interface{ Close() }); ok {
		c.Close()
	}
}

// lease counts the requests still using a session's backend. Once the session is
// replaced or cleared the lease is retired, and the backend is closed when the last
// holder is done.
type lease struct {
	backend Backend
	owned   bool

	mu      sync.Mutex
	holders int
	retired bool
}

func newLease(b Backend, owned bool) *lease {
	return &lease{backend: b, owned: owned}
}

func (l *lease) hold() {
	l.mu.Lock()
	l.holders++
	l.mu.Unlock()
}

func (l *lease) done() {
	l.mu.Lock()
	l.holders--
	closing := l.retired && l.holders == 0
	l.mu.Unlock()
	if closing {
		l.close()
	}
}

func (l *lease) retire() {
	l.mu.Lock()
	if l.retired {
		l.mu.Unlock()
		return
	}
	l.retired = true
	closing := l.holders == 0
	if !closing {
		log.Debugf("session backend kept open for %d in-flight requests", l.holders)
	}
	l.mu.Unlock()
	if closing {
		l.close()
	}
}

func (l *lease) close() {
	if l.owned {
		closeBackend(l.backend)
	}
}
