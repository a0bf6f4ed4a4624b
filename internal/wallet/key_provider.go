package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"crowdfund.io/crowdfund-dapp/internal/chains"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

// ApproveFunc stands in for the wallet's confirmation prompt. Returning false answers
// the request with a 4001 rejection.
type ApproveFunc func(method string, params []interface{}) bool

// KeyProvider is an in-process wallet holding one secp256k1 key. It behaves like an
// injected browser wallet: accounts must be requested before they are exposed, it
// tracks an active network and a list of networks it knows, and each prompt goes
// through the approval hook.
type KeyProvider struct {
	mu         sync.Mutex
	key        *ecdsa.PrivateKey
	address    common.Address
	authorized bool
	active     *chains.Blockchain
	networks   map[int64]*chains.Blockchain
	approve    ApproveFunc
}

type KeyProviderOption func(*KeyProvider)

// WithActiveChain sets the network the wallet starts on, adding it to known networks.
func WithActiveChain(c *chains.Blockchain) KeyProviderOption {
	return func(p *KeyProvider) {
		p.networks[c.ID] = c
		p.active = c
	}
}

// WithKnownChains registers networks the wallet can switch to without adding them.
func WithKnownChains(cs ...*chains.Blockchain) KeyProviderOption {
	return func(p *KeyProvider) {
		for _, c := range cs {
			p.networks[c.ID] = c
		}
	}
}

func WithApproval(fn ApproveFunc) KeyProviderOption {
	return func(p *KeyProvider) {
		p.approve = fn
	}
}

// WithAuthorized pre-authorizes the dapp, as if a previous session granted access.
func WithAuthorized() KeyProviderOption {
	return func(p *KeyProvider) {
		p.authorized = true
	}
}

func NewKeyProvider(key *ecdsa.PrivateKey, opts ...KeyProviderOption) *KeyProvider {
	mainnet, _ := chains.Lookup(1)
	p := &KeyProvider{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		networks: map[int64]*chains.Blockchain{mainnet.ID: mainnet},
		active:   mainnet,
		approve:  func(string, []interface{}) bool { return true },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// KeyProviderFromHex loads the key from a hex string, with or without 0x.
func KeyProviderFromHex(hexKey string, opts ...KeyProviderOption) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse wallet private key")
	}
	return NewKeyProvider(key, opts...), nil
}

func (p *KeyProvider) Address() common.Address { return p.address }

// ActiveChain returns the network the wallet is currently on.
func (p *KeyProvider) ActiveChain() *chains.Blockchain {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Revoke drops the dapp's account permission.
func (p *KeyProvider) Revoke() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authorized = false
}

func (p *KeyProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	log.Debugf("key wallet - %s", method)
	switch method {
	case MethodRequestAccounts:
		if !p.authorized {
			if !p.approve(method, params) {
				return nil, userRejected()
			}
			p.authorized = true
		}
		return json.Marshal([]string{p.address.Hex()})
	case MethodAccounts:
		if !p.authorized {
			return json.Marshal([]string{})
		}
		return json.Marshal([]string{p.address.Hex()})
	case MethodChainID:
		return json.Marshal(p.active.IDHex())
	case MethodSwitchChain:
		return p.switchChain(method, params)
	case MethodAddChain:
		return p.addChain(method, params)
	case MethodSignTransaction:
		return p.signTransaction(method, params)
	default:
		return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: "The requested method is not supported by this wallet."}
	}
}

func (p *KeyProvider) switchChain(method string, params []interface{}) (json.RawMessage, error) {
	var req chains.SwitchChainParams
	if err := decodeParam(params, 0, &req); err != nil {
		return nil, err
	}
	id, err := chains.ParseID(req.ChainID)
	if err != nil {
		return nil, &ProviderError{Code: -32602, Message: err.Error()}
	}
	target, ok := p.networks[id]
	if !ok {
		return nil, &ProviderError{
			Code:    CodeUnrecognizedChain,
			Message: "Unrecognized chain ID \"" + req.ChainID + "\". Try adding the chain using wallet_addEthereumChain first.",
		}
	}
	if target.ID == p.active.ID {
		return json.RawMessage("null"), nil
	}
	if !p.approve(method, params) {
		return nil, userRejected()
	}
	p.active = target
	return json.RawMessage("null"), nil
}

func (p *KeyProvider) addChain(method string, params []interface{}) (json.RawMessage, error) {
	var req chains.AddChainParams
	if err := decodeParam(params, 0, &req); err != nil {
		return nil, err
	}
	c, err := req.Blockchain()
	if err != nil {
		return nil, &ProviderError{Code: -32602, Message: err.Error()}
	}
	if len(c.RPCURLs) == 0 {
		return nil, &ProviderError{Code: -32602, Message: "rpcUrls must contain at least one url"}
	}
	if _, ok := p.networks[c.ID]; ok {
		return json.RawMessage("null"), nil
	}
	if !p.approve(method, params) {
		return nil, userRejected()
	}
	p.networks[c.ID] = c
	return json.RawMessage("null"), nil
}

func (p *KeyProvider) signTransaction(method string, params []interface{}) (json.RawMessage, error) {
	if !p.authorized {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "The requested account has not been authorized by the user."}
	}
	var args TransactionArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return nil, err
	}
	if args.From != p.address {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "Unknown account " + args.From.Hex()}
	}
	if args.ChainID != nil && args.ChainID.ToInt().Int64() != p.active.ID {
		return nil, &ProviderError{Code: CodeDisconnected, Message: "Transaction chain id does not match the active network."}
	}
	if !p.approve(method, params) {
		return nil, userRejected()
	}
	signed, err := types.SignTx(args.Tx(), types.LatestSignerForChainID(p.active.ChainID()), p.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign transaction")
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encode signed transaction")
	}
	return json.Marshal(hexutil.Encode(raw))
}
