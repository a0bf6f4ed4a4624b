// Package wallet owns the connection to a user's wallet: it requests account access,
// moves the wallet onto the marketplace network and hands out the Signer that the
// contract client submits transactions with.
package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/atomic"

	"crowdfund.io/crowdfund-dapp/internal/chains"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

// Session is a snapshot of the connection. Connected is true exactly when both
// Address and Signer are set.
type Session struct {
	Connected bool
	Address   *common.Address
	Signer    *Signer
}

// Manager drives the Disconnected -> Connected -> Disconnected lifecycle. Only one
// Connect or Restore runs at a time; overlapping calls fail with ErrConnectInProgress.
type Manager struct {
	provider  Provider
	chain     *chains.Blockchain
	dial      BackendDialer
	shared    bool
	rateLimit int
	notifier  Notifier
	now       func() time.Time

	connecting atomic.Bool

	mu      sync.RWMutex
	session Session
	lease   *lease
}

type Option func(*Manager)

func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

func WithBackendDialer(dial BackendDialer) Option {
	return func(m *Manager) {
		m.dial = dial
	}
}

// WithBackend reuses one backend for every session instead of dialing the chain.
func WithBackend(b Backend) Option {
	return func(m *Manager) {
		m.shared = true
		m.dial = func(context.Context, *chains.Blockchain) (Backend, error) {
			return b, nil
		}
	}
}

// WithRateLimit paces backend round trips, see Throttle.
func WithRateLimit(perSecond int) Option {
	return func(m *Manager) {
		m.rateLimit = perSecond
	}
}

// NewManager binds a session manager to provider and the target chain. provider may
// be nil, meaning no wallet is installed; Connect then reports ErrWalletNotFound.
func NewManager(provider Provider, chain *chains.Blockchain, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		chain:    chain,
		dial:     DialBackend,
		notifier: LogNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Chain() *chains.Blockchain { return m.chain }

func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Manager) IsConnected() bool {
	return m.Session().Connected
}

// Signer returns the connected signer or ErrNotConnected.
func (m *Manager) Signer() (*Signer, error) {
	s := m.Session()
	if !s.Connected {
		return nil, ErrNotConnected
	}
	return s.Signer, nil
}

// Acquire is Signer for callers that keep using the signer across a possible
// disconnect or reconnect: the session's backend stays open until release is called.
// release is safe to call more than once.
func (m *Manager) Acquire() (signer *Signer, release func(), err error) {
	m.mu.RLock()
	s, l := m.session, m.lease
	if s.Connected {
		l.hold()
	}
	m.mu.RUnlock()
	if !s.Connected {
		return nil, func() {}, ErrNotConnected
	}
	var once sync.Once
	return s.Signer, func() { once.Do(l.done) }, nil
}

// Connect asks the wallet for account access, switches it to the target chain
// (adding the chain first when the wallet does not know it) and stores the signer.
// Failures are reported through the notifier, leave the session disconnected and
// are returned.
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	if m.provider == nil {
		return Session{}, m.fail(ErrWalletNotFound)
	}
	if !m.connecting.CAS(false, true) {
		log.Warn("wallet connect ignored, another attempt is in flight")
		return m.Session(), ErrConnectInProgress
	}
	defer m.connecting.Store(false)

	log.Infof("connecting wallet to %s (%s)", m.chain.Name, m.chain.IDHex())
	accounts, err := m.accounts(ctx, MethodRequestAccounts)
	if err != nil {
		return Session{}, m.fail(err)
	}
	if len(accounts) == 0 {
		return Session{}, m.fail(ErrNoAccounts)
	}
	if err := m.ensureChain(ctx); err != nil {
		return Session{}, m.fail(err)
	}
	signer, err := m.newSigner(ctx, accounts[0])
	if err != nil {
		return Session{}, m.fail(err)
	}
	session := m.store(signer)
	log.Infof("wallet connected with address %s", signer.Address().Hex())
	m.notify(LevelSuccess, "Wallet connected successfully", KindUnknown)
	return session, nil
}

// Restore silently checks whether the wallet already authorized an account and, if
// so, restores the session without prompting. It reports whether a session was
// restored; failures are logged only.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	if m.provider == nil {
		return false, nil
	}
	if !m.connecting.CAS(false, true) {
		return false, ErrConnectInProgress
	}
	defer m.connecting.Store(false)

	accounts, err := m.accounts(ctx, MethodAccounts)
	if err != nil {
		log.Warnf("check wallet connection: %v", err)
		return false, err
	}
	if len(accounts) == 0 {
		log.Debug("no authorized wallet account found")
		return false, nil
	}
	if id, err := m.walletChainID(ctx); err == nil && id != m.chain.ID {
		log.Warnf("wallet is on chain %d, transactions need %d until reconnected", id, m.chain.ID)
	}
	signer, err := m.newSigner(ctx, accounts[0])
	if err != nil {
		log.Warnf("restore wallet session: %v", err)
		return false, err
	}
	m.store(signer)
	log.Infof("restored wallet session for %s", signer.Address().Hex())
	return true, nil
}

// Disconnect forgets the signer and address. It always succeeds. A backend still held
// through Acquire is closed once released.
func (m *Manager) Disconnect() {
	m.swap(Session{})
	m.notify(LevelSuccess, "Wallet disconnected", KindUnknown)
}

// FormatEther and ParseEther are exposed on the manager for callers holding only it.
func (m *Manager) FormatEther(wei *big.Int) string { return FormatEther(wei) }

func (m *Manager) ParseEther(value string) (*big.Int, error) { return ParseEther(value) }

func (m *Manager) store(signer *Signer) Session {
	addr := signer.Address()
	session := Session{Connected: true, Address: &addr, Signer: signer}
	m.swap(session)
	return session
}

func (m *Manager) clear() {
	m.swap(Session{})
}

// swap installs next and retires the previous session's lease. A shared backend is
// never closed.
func (m *Manager) swap(next Session) {
	var l *lease
	if next.Signer != nil {
		l = newLease(next.Signer.Backend(), !m.shared)
	}
	m.mu.Lock()
	prev := m.lease
	m.session, m.lease = next, l
	m.mu.Unlock()
	if prev != nil {
		prev.retire()
	}
}

func (m *Manager) fail(err error) error {
	m.clear()
	kind := Classify(err)
	log.Warnf("wallet connect failed (%s): %v", kind, err)
	m.notify(LevelError, failureMessage(err, kind), kind)
	return err
}

func failureMessage(err error, kind Kind) string {
	switch kind {
	case KindWalletAbsent:
		return "Please install a wallet"
	case KindUserRejected:
		return "Wallet request was rejected"
	}
	if err.Error() == "" {
		return "Failed to connect wallet"
	}
	return err.Error()
}

func (m *Manager) notify(level Level, msg string, kind Kind) {
	n := Notification{Level: level, Message: msg, At: m.now()}
	if level == LevelError {
		n.Kind = kind.String()
	}
	m.notifier.Notify(n)
}

func (m *Manager) accounts(ctx context.Context, method string) ([]common.Address, error) {
	raw, err := m.provider.Request(ctx, method)
	if err != nil {
		return nil, providerFailure(err, ErrNetwork)
	}
	var hexes []string
	if err := json.Unmarshal(raw, &hexes); err != nil {
		return nil, errors.Wrapf(err, "decode %s result", method)
	}
	out := make([]common.Address, 0, len(hexes))
	for _, h := range hexes {
		if !common.IsHexAddress(h) {
			return nil, errors.Errorf("wallet returned invalid account %q", h)
		}
		out = append(out, common.HexToAddress(h))
	}
	return out, nil
}

func (m *Manager) walletChainID(ctx context.Context) (int64, error) {
	raw, err := m.provider.Request(ctx, MethodChainID)
	if err != nil {
		return 0, providerFailure(err, ErrNetwork)
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, errors.Mark(errors.Wrap(err, "decode eth_chainId result"), ErrNetwork)
	}
	parsed, err := chains.ParseID(id)
	if err != nil {
		return 0, errors.Mark(err, ErrNetwork)
	}
	return parsed, nil
}

func (m *Manager) ensureChain(ctx context.Context) error {
	current, err := m.walletChainID(ctx)
	if err != nil {
		return err
	}
	if current == m.chain.ID {
		return nil
	}
	log.Infof("switching wallet from chain %d to %s", current, m.chain.Name)
	err = m.switchChain(ctx)
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Code != CodeUnrecognizedChain {
		return providerFailure(err, ErrNetwork)
	}
	log.Infof("wallet does not know %s, adding it", m.chain.Name)
	if _, err := m.provider.Request(ctx, MethodAddChain, m.chain.AddParams()); err != nil {
		return providerFailure(err, ErrNetwork)
	}
	if err := m.switchChain(ctx); err != nil {
		return providerFailure(err, ErrNetwork)
	}
	return nil
}

func (m *Manager) switchChain(ctx context.Context) error {
	_, err := m.provider.Request(ctx, MethodSwitchChain, m.chain.SwitchParams())
	return err
}

func (m *Manager) newSigner(ctx context.Context, address common.Address) (*Signer, error) {
	backend, err := m.dial(ctx, m.chain)
	if err != nil {
		return nil, errors.Mark(err, ErrNetwork)
	}
	backend = Throttle(backend, m.rateLimit)
	chainID := m.chain.ChainID()
	return NewSigner(address, chainID, ProviderSignFunc(m.provider, chainID), backend), nil
}
