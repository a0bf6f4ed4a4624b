package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tidwall/gjson"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

// Signer authorizes and submits transactions for one account. Signing is delegated to
// the wallet; submission and reads go through the backend.
type Signer struct {
	address common.Address
	chainID *big.Int
	sign    SignFunc
	backend Backend
}

// SignFunc signs tx for from.
type SignFunc func(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error)

// FromSignerFn adapts a go-ethereum signer, e.g. one made by
// bind.NewKeyedTransactorWithChainID.
func FromSignerFn(fn bind.SignerFn) SignFunc {
	return func(_ context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		return fn(from, tx)
	}
}

func NewSigner(address common.Address, chainID *big.Int, sign SignFunc, backend Backend) *Signer {
	return &Signer{
		address: address,
		chainID: new(big.Int).Set(chainID),
		sign:    sign,
		backend: backend,
	}
}

func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

func (s *Signer) Backend() Backend { return s.backend }

// TransactOpts returns fresh options for one transaction; callers may set Value.
func (s *Signer) TransactOpts(ctx context.Context) *bind.TransactOpts {
	return &bind.TransactOpts{
		From: s.address,
		Signer: func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return s.sign(ctx, from, tx)
		},
		Context: ctx,
	}
}

// CallOpts makes read calls on behalf of the signer's account, so contract views
// that consult msg.sender answer for it.
func (s *Signer) CallOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{
		From:    s.address,
		Context: ctx,
	}
}

// TransactionArgs is the eth_signTransaction request object.
type TransactionArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data"`
	ChainID              *hexutil.Big    `json:"chainId,omitempty"`
}

func argsFromTx(from common.Address, tx *types.Transaction, chainID *big.Int) TransactionArgs {
	args := TransactionArgs{
		From:    from,
		To:      tx.To(),
		Gas:     hexutil.Uint64(tx.Gas()),
		Value:   (*hexutil.Big)(tx.Value()),
		Nonce:   hexutil.Uint64(tx.Nonce()),
		Data:    tx.Data(),
		ChainID: (*hexutil.Big)(chainID),
	}
	if tx.Type() == types.DynamicFeeTxType {
		args.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap())
		args.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap())
	} else {
		args.GasPrice = (*hexutil.Big)(tx.GasPrice())
	}
	return args
}

// Tx builds the unsigned transaction described by the args.
func (a TransactionArgs) Tx() *types.Transaction {
	value := new(big.Int)
	if a.Value != nil {
		value = a.Value.ToInt()
	}
	if a.MaxFeePerGas != nil {
		tip := new(big.Int)
		if a.MaxPriorityFeePerGas != nil {
			tip = a.MaxPriorityFeePerGas.ToInt()
		}
		chainID := new(big.Int)
		if a.ChainID != nil {
			chainID = a.ChainID.ToInt()
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     uint64(a.Nonce),
			GasTipCap: tip,
			GasFeeCap: a.MaxFeePerGas.ToInt(),
			Gas:       uint64(a.Gas),
			To:        a.To,
			Value:     value,
			Data:      a.Data,
		})
	}
	gasPrice := new(big.Int)
	if a.GasPrice != nil {
		gasPrice = a.GasPrice.ToInt()
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    uint64(a.Nonce),
		GasPrice: gasPrice,
		Gas:      uint64(a.Gas),
		To:       a.To,
		Value:    value,
		Data:     a.Data,
	})
}

// ProviderSignFunc asks provider to sign with eth_signTransaction. Wallets answer
// either with the raw transaction hex or with geth's {raw, tx} object; both are
// accepted. The recovered sender must match the requested account.
func ProviderSignFunc(provider Provider, chainID *big.Int) SignFunc {
	signer := types.LatestSignerForChainID(chainID)
	return func(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		resp, err := provider.Request(ctx, MethodSignTransaction, argsFromTx(from, tx, chainID))
		if err != nil {
			return nil, providerFailure(err, ErrNetwork)
		}
		raw, err := rawSignedTx(resp)
		if err != nil {
			return nil, err
		}
		signed := new(types.Transaction)
		if err := signed.UnmarshalBinary(raw); err != nil {
			return nil, errors.Wrap(err, "decode signed transaction")
		}
		sender, err := types.Sender(signer, signed)
		if err != nil {
			return nil, errors.Wrap(err, "recover transaction sender")
		}
		if sender != from {
			return nil, errors.Errorf("wallet signed with %s, expected %s", sender.Hex(), from.Hex())
		}
		return signed, nil
	}
}

func rawSignedTx(resp json.RawMessage) ([]byte, error) {
	result := gjson.ParseBytes(resp)
	var encoded string
	switch {
	case result.Type == gjson.String:
		encoded = result.String()
	case result.Get("raw").Exists():
		encoded = result.Get("raw").String()
	default:
		return nil, errors.Errorf("unexpected eth_signTransaction result %s", strings.TrimSpace(string(resp)))
	}
	raw, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decode signed transaction hex")
	}
	return raw, nil
}
