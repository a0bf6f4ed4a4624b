package wallet

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/rpc"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

// RPCProvider forwards wallet requests to a JSON-RPC endpoint, e.g. a node with
// unlocked accounts or a desktop wallet exposing its provider over HTTP or IPC.
type RPCProvider struct {
	client *rpc.Client
}

func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

func DialRPCProvider(ctx context.Context, rawurl string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "dial wallet %s", rawurl), ErrWalletNotFound)
	}
	return NewRPCProvider(client), nil
}

// Client exposes the underlying connection so a Backend can share it.
func (p *RPCProvider) Client() *rpc.Client { return p.client }

func (p *RPCProvider) Close() { p.client.Close() }

func (p *RPCProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var out json.RawMessage
	err := p.client.CallContext(ctx, &out, method, params...)
	if err == nil {
		return out, nil
	}
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return nil, errors.Wrapf(err, "wallet request %s", method)
	}
	perr := &ProviderError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		perr.Data = dataErr.ErrorData()
	}
	// Plain nodes expose eth_accounts only; their accounts are always authorized.
	if method == MethodRequestAccounts && perr.Code == CodeMethodNotFound {
		return p.Request(ctx, MethodAccounts)
	}
	return nil, perr
}
